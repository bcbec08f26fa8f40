package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/cartdotfun/settlement-backend/internal/dto"
	"github.com/cartdotfun/settlement-backend/internal/services"

	"github.com/gin-gonic/gin"
)

// AdminHandler exposes owner-gated protocol configuration. Routes using it
// sit behind the IP whitelist middleware in addition to JWT auth; the core
// engine still rejects any caller that is not the configured owner.
type AdminHandler struct {
	adminService *services.AdminService
}

// NewAdminHandler creates a new AdminHandler instance
func NewAdminHandler(adminService *services.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// GetConfigHandler returns the live protocol configuration
// GET /admin/api/config
func (h *AdminHandler) GetConfigHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"config":  h.adminService.Snapshot(),
	})
}

// SetFeeRateHandler updates the protocol fee rate in basis points
// PUT /admin/api/config/fee-rate
func (h *AdminHandler) SetFeeRateHandler(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	var req dto.SetFeeRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	if err := h.adminService.SetFeeRate(c.Request.Context(), caller, req.RateBps); err != nil {
		respondError(c, err)
		return
	}

	log.Printf("🔧 Fee rate updated: rate_bps=%d by=%s", req.RateBps, caller)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Fee rate updated",
	})
}

// SetFeeRecipientHandler updates the fee recipient address
// PUT /admin/api/config/fee-recipient
func (h *AdminHandler) SetFeeRecipientHandler(c *gin.Context) {
	h.setAddress(c, "Fee recipient updated", h.adminService.SetFeeRecipient)
}

// SetArbiterHandler updates the dispute arbiter address
// PUT /admin/api/config/arbiter
func (h *AdminHandler) SetArbiterHandler(c *gin.Context) {
	h.setAddress(c, "Arbiter updated", h.adminService.SetArbiter)
}

// SetRelayHandler updates the cross-chain relay address
// PUT /admin/api/config/relay
func (h *AdminHandler) SetRelayHandler(c *gin.Context) {
	h.setAddress(c, "Relay updated", h.adminService.SetRelay)
}

// SetValidationBridgeHandler updates the validation bridge address
// PUT /admin/api/config/validation-bridge
func (h *AdminHandler) SetValidationBridgeHandler(c *gin.Context) {
	h.setAddress(c, "Validation bridge updated", h.adminService.SetValidationBridge)
}

// SetSettlementAssetHandler updates the asset used for cross-chain payouts
// PUT /admin/api/config/settlement-asset
func (h *AdminHandler) SetSettlementAssetHandler(c *gin.Context) {
	h.setAddress(c, "Settlement asset updated", h.adminService.SetSettlementAsset)
}

// setAddress is the shared body for the single-address config setters
func (h *AdminHandler) setAddress(c *gin.Context, message string, apply func(ctx context.Context, caller, address string) error) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	var req dto.SetAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	if err := apply(c.Request.Context(), caller, req.Address); err != nil {
		respondError(c, err)
		return
	}

	log.Printf("🔧 %s: address=%s by=%s", message, req.Address, caller)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": message,
	})
}
