package handlers

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cartdotfun/settlement-backend/internal/utils"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthRouter() (*gin.Engine, *AuthHandler) {
	gin.SetMode(gin.TestMode)
	h := NewAuthHandler()
	r := gin.New()
	r.GET("/api/auth/nonce", h.GenerateNonceHandler)
	r.POST("/api/auth/login", h.AuthenticateHandler)
	return r, h
}

// signMessage produces an EIP-191 personal_sign signature the way a wallet
// would, including the 27/28 recovery id offset.
func signMessage(t *testing.T, keyHex, message string) string {
	t.Helper()
	key, err := crypto.HexToECDSA(keyHex)
	require.NoError(t, err)

	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	digest := crypto.Keccak256([]byte(prefixed))

	sig, err := crypto.Sign(digest, key)
	require.NoError(t, err)
	sig[64] += 27
	return "0x" + hex.EncodeToString(sig)
}

func requestNonce(t *testing.T, r *gin.Engine) string {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/nonce", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.Message)
	return body.Message
}

func login(r *gin.Engine, address, message, signature string) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(map[string]string{
		"address":   address,
		"message":   message,
		"signature": signature,
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe51296170827936ea5cce4b76994b0f"

func TestAuthFlow(t *testing.T) {
	r, _ := newAuthRouter()

	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)
	address := utils.NormalizeAddress(crypto.PubkeyToAddress(key.PublicKey))

	message := requestNonce(t, r)
	w := login(r, address, message, signMessage(t, testKeyHex, message))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool   `json:"success"`
		Token   string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	require.NotEmpty(t, body.Token)

	claims, err := ValidateJWTToken(body.Token)
	require.NoError(t, err)
	assert.Equal(t, address, claims.Address)
}

func TestAuthRejectsWrongSigner(t *testing.T) {
	r, _ := newAuthRouter()

	// Signature made by a different key than the claimed address.
	otherKey := "2c0883a69102937d6231471b5dbb6204fe51296170827936ea5cce4b76994b0e"
	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)
	address := utils.NormalizeAddress(crypto.PubkeyToAddress(key.PublicKey))

	message := requestNonce(t, r)
	w := login(r, address, message, signMessage(t, otherKey, message))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRejectsReplayedNonce(t *testing.T) {
	r, _ := newAuthRouter()

	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)
	address := utils.NormalizeAddress(crypto.PubkeyToAddress(key.PublicKey))

	message := requestNonce(t, r)
	sig := signMessage(t, testKeyHex, message)

	require.Equal(t, http.StatusOK, login(r, address, message, sig).Code)

	// The nonce is burned on first use.
	assert.Equal(t, http.StatusUnauthorized, login(r, address, message, sig).Code)
}

func TestAuthRejectsUnknownChallenge(t *testing.T) {
	r, _ := newAuthRouter()

	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)
	address := utils.NormalizeAddress(crypto.PubkeyToAddress(key.PublicKey))

	message := "Settlement Authentication\nNonce: deadbeef\nTimestamp: 0"
	w := login(r, address, message, signMessage(t, testKeyHex, message))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestValidateJWTTokenRejectsGarbage(t *testing.T) {
	_, err := ValidateJWTToken("not.a.token")
	assert.Error(t, err)
}
