package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cartdotfun/settlement-backend/internal/core"
	"github.com/cartdotfun/settlement-backend/internal/services"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	hOwner = "0x00000000000000000000000000000000000000a0"
	hUser  = "0x00000000000000000000000000000000000000b1"
	hAsset = "0x00000000000000000000000000000000000000d1"
)

// asUser stubs the auth middleware by injecting the authenticated address
func asUser(address string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_address", address)
		c.Next()
	}
}

func newLedgerRouter(user string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	eng := core.NewEngine(common.HexToAddress(hOwner), nil)
	h := NewLedgerHandler(services.NewLedgerService(eng, nil, nil))

	r := gin.New()
	r.Use(asUser(user))
	r.POST("/api/vault/deposit", h.DepositHandler)
	r.POST("/api/vault/withdraw", h.WithdrawHandler)
	r.GET("/api/vault/balances/:asset", h.GetBalanceHandler)
	return r
}

func postJSON(r *gin.Engine, path string, payload any) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestDepositAndBalance(t *testing.T) {
	r := newLedgerRouter(hUser)

	w := postJSON(r, "/api/vault/deposit", gin.H{"asset": hAsset, "amount": "250"})
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool   `json:"success"`
		Balance string `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "250", body.Balance)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/vault/balances/"+hAsset, nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "250", body.Balance)
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	r := newLedgerRouter(hUser)

	w := postJSON(r, "/api/vault/withdraw", gin.H{"asset": hAsset, "amount": "10"})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	var body struct {
		Success bool   `json:"success"`
		Code    string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "INSUFFICIENT_FUNDS", body.Code)
}

func TestDepositRejectsMissingFields(t *testing.T) {
	r := newLedgerRouter(hUser)

	w := postJSON(r, "/api/vault/deposit", gin.H{"asset": hAsset})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDepositWithoutAuthContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	eng := core.NewEngine(common.HexToAddress(hOwner), nil)
	h := NewLedgerHandler(services.NewLedgerService(eng, nil, nil))

	r := gin.New()
	r.POST("/api/vault/deposit", h.DepositHandler)

	w := postJSON(r, "/api/vault/deposit", gin.H{"asset": hAsset, "amount": "1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
