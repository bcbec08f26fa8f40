package handlers

import (
	"log"
	"net/http"

	"github.com/cartdotfun/settlement-backend/internal/dto"
	"github.com/cartdotfun/settlement-backend/internal/services"
	"github.com/cartdotfun/settlement-backend/internal/utils"

	"github.com/gin-gonic/gin"
)

// CrossChainHandler exposes the relay-driven settlement bridge over HTTP
type CrossChainHandler struct {
	crossChainService *services.CrossChainService
}

// NewCrossChainHandler creates a new CrossChainHandler instance
func NewCrossChainHandler(crossChainService *services.CrossChainService) *CrossChainHandler {
	return &CrossChainHandler{crossChainService: crossChainService}
}

// SettleHandler mirrors a settlement observed on another chain. Only the
// configured relay passes the core authorization check.
// POST /api/crosschain/settle
func (h *CrossChainHandler) SettleHandler(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	var req dto.CrossChainSettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	fee, err := h.crossChainService.Settle(caller, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	log.Printf("✅ Cross-chain settlement: external_id=%s agent=%s provider=%s amount=%s fee=%s",
		req.ExternalID, req.Agent, req.Provider, req.Amount, utils.FormatAmount(fee))

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"external_id": req.ExternalID,
		"fee":         utils.FormatAmount(fee),
	})
}

// GetSettlementHandler returns one mirrored settlement by external id
// GET /api/crosschain/settlements/:external_id
func (h *CrossChainHandler) GetSettlementHandler(c *gin.Context) {
	row, err := h.crossChainService.Settlement(c.Request.Context(), c.Param("external_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"settlement": row,
	})
}

// ListSettlementsHandler returns the caller's mirrored settlements
// GET /api/crosschain/settlements?page=1&page_size=20
func (h *CrossChainHandler) ListSettlementsHandler(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	page, pageSize := paginationParams(c)

	rows, total, err := h.crossChainService.SettlementsByAgent(c.Request.Context(), caller, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"settlements": rows,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
	})
}
