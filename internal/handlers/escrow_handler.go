package handlers

import (
	"log"
	"net/http"

	"github.com/cartdotfun/settlement-backend/internal/dto"
	"github.com/cartdotfun/settlement-backend/internal/models"
	"github.com/cartdotfun/settlement-backend/internal/services"

	"github.com/gin-gonic/gin"
)

// EscrowHandler exposes the deal escrow lifecycle over HTTP
type EscrowHandler struct {
	escrowService *services.EscrowService
}

// NewEscrowHandler creates a new EscrowHandler instance
func NewEscrowHandler(escrowService *services.EscrowService) *EscrowHandler {
	return &EscrowHandler{escrowService: escrowService}
}

// CreateDealHandler locks the caller's funds into a new deal
// POST /api/deals
func (h *EscrowHandler) CreateDealHandler(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	var req dto.CreateDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	deal, err := h.escrowService.CreateDeal(caller, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	log.Printf("✅ Deal created: id=%s buyer=%s seller=%s amount=%s", deal.ID, caller, req.Seller, req.Amount)

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"deal":    models.DealFromCore(deal),
	})
}

// SubmitWorkHandler records the seller's work submission
// POST /api/deals/:id/submit
func (h *EscrowHandler) SubmitWorkHandler(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	var req dto.SubmitWorkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	if err := h.escrowService.SubmitWork(caller, c.Param("id"), req.ResultRef); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Work submitted",
	})
}

// RaiseDisputeHandler moves a deal into dispute
// POST /api/deals/:id/dispute
func (h *EscrowHandler) RaiseDisputeHandler(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	if err := h.escrowService.RaiseDispute(caller, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	log.Printf("⚠️ Dispute raised: deal=%s by=%s", c.Param("id"), caller)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Dispute raised",
	})
}

// ResolveDisputeHandler lets the arbiter settle a disputed deal
// POST /api/deals/:id/resolve
func (h *EscrowHandler) ResolveDisputeHandler(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	var req dto.ResolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	if err := h.escrowService.ResolveDispute(caller, c.Param("id"), req.ReleaseToSeller, req.JudgmentRef); err != nil {
		respondError(c, err)
		return
	}

	log.Printf("✅ Dispute resolved: deal=%s release_to_seller=%v", c.Param("id"), req.ReleaseToSeller)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Dispute resolved",
	})
}

// ReleaseHandler pays the seller out of escrow
// POST /api/deals/:id/release
func (h *EscrowHandler) ReleaseHandler(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	if err := h.escrowService.Release(caller, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Funds released to seller",
	})
}

// RefundHandler returns the locked funds to the buyer
// POST /api/deals/:id/refund
func (h *EscrowHandler) RefundHandler(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	if err := h.escrowService.Refund(caller, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Funds refunded to buyer",
	})
}

// GetDealHandler returns a single deal snapshot
// GET /api/deals/:id
func (h *EscrowHandler) GetDealHandler(c *gin.Context) {
	deal, err := h.escrowService.Deal(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"deal":    models.DealFromCore(deal),
	})
}

// ListDealsHandler returns the caller's deals (buyer or seller side),
// optionally filtered by state
// GET /api/deals?state=LOCKED&page=1&page_size=20
func (h *EscrowHandler) ListDealsHandler(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	if state := c.Query("state"); state != "" {
		deals, err := h.escrowService.DealsByState(c.Request.Context(), state)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"deals":   deals,
			"total":   len(deals),
		})
		return
	}

	page, pageSize := paginationParams(c)
	deals, total, err := h.escrowService.DealsByParty(c.Request.Context(), caller, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"deals":     deals,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}
