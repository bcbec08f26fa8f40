package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/cartdotfun/settlement-backend/internal/dto"
	"github.com/cartdotfun/settlement-backend/internal/services"
	"github.com/cartdotfun/settlement-backend/internal/utils"

	"github.com/gin-gonic/gin"
)

// LedgerHandler exposes the custodial vault over HTTP
type LedgerHandler struct {
	ledgerService *services.LedgerService
}

// NewLedgerHandler creates a new LedgerHandler instance
func NewLedgerHandler(ledgerService *services.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerService: ledgerService}
}

// DepositHandler credits the caller's vault balance
// POST /api/vault/deposit
func (h *LedgerHandler) DepositHandler(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	var req dto.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	balance, err := h.ledgerService.Deposit(caller, req.Asset, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	log.Printf("✅ Deposit: owner=%s asset=%s amount=%s", caller, req.Asset, req.Amount)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"owner":   caller,
		"asset":   req.Asset,
		"balance": utils.FormatAmount(balance),
	})
}

// WithdrawHandler debits the caller's balance and pays out on chain when a
// treasury is wired
// POST /api/vault/withdraw
func (h *LedgerHandler) WithdrawHandler(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	var req dto.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	balance, err := h.ledgerService.Withdraw(caller, req.Asset, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	log.Printf("✅ Withdraw: owner=%s asset=%s amount=%s", caller, req.Asset, req.Amount)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"owner":   caller,
		"asset":   req.Asset,
		"balance": utils.FormatAmount(balance),
	})
}

// GetBalanceHandler returns the caller's balance for one asset
// GET /api/vault/balances/:asset
func (h *LedgerHandler) GetBalanceHandler(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	balance, err := h.ledgerService.Balance(caller, c.Param("asset"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"owner":   caller,
		"asset":   c.Param("asset"),
		"balance": utils.FormatAmount(balance),
	})
}

// ListBalancesHandler returns all non-zero balances of the caller
// GET /api/vault/balances
func (h *LedgerHandler) ListBalancesHandler(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	balances, err := h.ledgerService.Balances(c.Request.Context(), caller)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"owner":    caller,
		"balances": balances,
	})
}

// GetHistoryHandler returns the caller's ledger entries, newest first
// GET /api/vault/history?page=1&page_size=20
func (h *LedgerHandler) GetHistoryHandler(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	page, pageSize := paginationParams(c)

	entries, total, err := h.ledgerService.History(c.Request.Context(), caller, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"entries":   entries,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetEntriesByRefHandler returns all ledger entries tied to a deal,
// session or external settlement id
// GET /api/vault/entries/:ref
func (h *LedgerHandler) GetEntriesByRefHandler(c *gin.Context) {
	entries, err := h.ledgerService.EntriesByRef(c.Request.Context(), c.Param("ref"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"entries": entries,
	})
}

// paginationParams reads page/page_size query params with sane bounds
func paginationParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
