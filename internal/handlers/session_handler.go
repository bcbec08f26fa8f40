package handlers

import (
	"log"
	"net/http"

	"github.com/cartdotfun/settlement-backend/internal/dto"
	"github.com/cartdotfun/settlement-backend/internal/models"
	"github.com/cartdotfun/settlement-backend/internal/services"

	"github.com/gin-gonic/gin"
)

// SessionHandler exposes gateway registration and metered sessions over HTTP
type SessionHandler struct {
	sessionService *services.SessionService
}

// NewSessionHandler creates a new SessionHandler instance
func NewSessionHandler(sessionService *services.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// ============================================================================
// Gateway endpoints
// ============================================================================

// RegisterGatewayHandler claims a slug for the calling provider
// POST /api/gateways
func (h *SessionHandler) RegisterGatewayHandler(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	var req dto.RegisterGatewayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	gw, err := h.sessionService.RegisterGateway(c.Request.Context(), caller, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	log.Printf("✅ Gateway registered: slug=%s provider=%s", gw.Slug, caller)

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"gateway": models.GatewayFromCore(gw),
	})
}

// UpdateGatewayPriceHandler updates a gateway's advisory price
// PUT /api/gateways/:slug/price
func (h *SessionHandler) UpdateGatewayPriceHandler(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	var req dto.UpdateGatewayPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	if err := h.sessionService.UpdateGatewayPrice(c.Request.Context(), caller, c.Param("slug"), req.PricePerRequest); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Gateway price updated",
	})
}

// DeactivateGatewayHandler takes a gateway out of service
// DELETE /api/gateways/:slug
func (h *SessionHandler) DeactivateGatewayHandler(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	if err := h.sessionService.DeactivateGateway(c.Request.Context(), caller, c.Param("slug")); err != nil {
		respondError(c, err)
		return
	}

	log.Printf("🔧 Gateway deactivated: slug=%s provider=%s", c.Param("slug"), caller)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Gateway deactivated",
	})
}

// GetGatewayHandler returns one gateway by slug
// GET /api/gateways/:slug
func (h *SessionHandler) GetGatewayHandler(c *gin.Context) {
	gw, err := h.sessionService.Gateway(c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"gateway": models.GatewayFromCore(gw),
	})
}

// ListGatewaysHandler returns every registered gateway
// GET /api/gateways
func (h *SessionHandler) ListGatewaysHandler(c *gin.Context) {
	gateways := h.sessionService.Gateways()

	out := make([]*models.Gateway, 0, len(gateways))
	for _, gw := range gateways {
		out = append(out, models.GatewayFromCore(gw))
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"gateways": out,
		"total":    len(out),
	})
}

// ============================================================================
// Session endpoints
// ============================================================================

// OpenSessionHandler locks a deposit against a gateway for metered usage
// POST /api/sessions
func (h *SessionHandler) OpenSessionHandler(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	var req dto.OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	sess, err := h.sessionService.OpenSession(caller, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	log.Printf("✅ Session opened: id=%s agent=%s gateway=%s deposit=%s", sess.ID, caller, req.Gateway, req.Deposit)

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"session": models.SessionFromCore(sess),
	})
}

// RecordUsageHandler accrues provider usage against a session deposit
// POST /api/sessions/:id/usage
func (h *SessionHandler) RecordUsageHandler(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	var req dto.RecordUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	if err := h.sessionService.RecordUsage(caller, c.Param("id"), req.Amount); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Usage recorded",
	})
}

// SettleSessionHandler pays accrued usage to the provider and refunds the
// remainder to the agent
// POST /api/sessions/:id/settle
func (h *SessionHandler) SettleSessionHandler(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	if err := h.sessionService.SettleSession(caller, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Session settled",
	})
}

// CancelSessionHandler lets the agent close an expired session with zero
// recorded usage
// POST /api/sessions/:id/cancel
func (h *SessionHandler) CancelSessionHandler(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	if err := h.sessionService.CancelSession(caller, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Session cancelled",
	})
}

// RenewSessionHandler extends an open session's expiry
// POST /api/sessions/:id/renew
func (h *SessionHandler) RenewSessionHandler(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	var req dto.RenewSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	if err := h.sessionService.RenewSession(caller, c.Param("id"), req.Extension); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Session renewed",
	})
}

// GetSessionHandler returns one session snapshot
// GET /api/sessions/:id
func (h *SessionHandler) GetSessionHandler(c *gin.Context) {
	sess, err := h.sessionService.Session(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"session": models.SessionFromCore(sess),
	})
}

// ListSessionsHandler returns the caller's sessions. Providers pass
// ?role=provider to list sessions against their gateways.
// GET /api/sessions?role=agent&page=1&page_size=20
func (h *SessionHandler) ListSessionsHandler(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	page, pageSize := paginationParams(c)

	var (
		sessions []*models.Session
		total    int64
		err      error
	)
	if c.DefaultQuery("role", "agent") == "provider" {
		sessions, total, err = h.sessionService.SessionsByProvider(c.Request.Context(), caller, page, pageSize)
	} else {
		sessions, total, err = h.sessionService.SessionsByAgent(c.Request.Context(), caller, page, pageSize)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"sessions":  sessions,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}
