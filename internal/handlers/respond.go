package handlers

import (
	"errors"
	"net/http"

	"github.com/cartdotfun/settlement-backend/internal/core"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// statusForError maps a core failure to an HTTP status and error code.
// Unknown errors are treated as internal.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrUnauthorized),
		errors.Is(err, core.ErrComponentUnauthorized):
		return http.StatusForbidden, "FORBIDDEN"

	case errors.Is(err, core.ErrDealNotFound),
		errors.Is(err, core.ErrSessionNotFound),
		errors.Is(err, core.ErrGatewayNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, "NOT_FOUND"

	case errors.Is(err, core.ErrDealExists),
		errors.Is(err, core.ErrSlugTaken),
		errors.Is(err, core.ErrAlreadyProcessed):
		return http.StatusConflict, "ALREADY_EXISTS"

	case errors.Is(err, core.ErrInvalidState),
		errors.Is(err, core.ErrSessionNotExpired),
		errors.Is(err, core.ErrTimeLocked),
		errors.Is(err, core.ErrGatewayInactive),
		errors.Is(err, core.ErrGatewayBusy),
		errors.Is(err, core.ErrTooManyChildren):
		return http.StatusConflict, "INVALID_STATE"

	case errors.Is(err, core.ErrInsufficientBalance),
		errors.Is(err, core.ErrUsageExceedsDeposit):
		return http.StatusPaymentRequired, "INSUFFICIENT_FUNDS"

	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidAddress),
		errors.Is(err, core.ErrInvalidID),
		errors.Is(err, core.ErrMetadataTooLarge),
		errors.Is(err, core.ErrInvalidDuration),
		errors.Is(err, core.ErrInvalidExpiry),
		errors.Is(err, core.ErrInvalidSlug),
		errors.Is(err, core.ErrFeeTooHigh),
		errors.Is(err, core.ErrNoSettlementAsset):
		return http.StatusBadRequest, "INVALID_REQUEST"
	}

	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

// respondError writes the standard error envelope for a failed operation
func respondError(c *gin.Context, err error) {
	status, code := statusForError(err)
	c.JSON(status, gin.H{
		"success": false,
		"error":   err.Error(),
		"code":    code,
	})
}

// respondBadRequest writes a 400 for malformed request bodies
func respondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   "Invalid request body",
		"message": err.Error(),
		"code":    "INVALID_REQUEST_BODY",
	})
}

// callerAddress returns the authenticated wallet address set by the auth
// middleware. The second return is false when the route is misconfigured
// and no authenticated user is present.
func callerAddress(c *gin.Context) (string, bool) {
	addr := c.GetString("user_address")
	if addr == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "Authentication required",
			"code":    "MISSING_AUTH",
		})
		return "", false
	}
	return addr, true
}
