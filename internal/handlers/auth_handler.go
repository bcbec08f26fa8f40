package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cartdotfun/settlement-backend/internal/config"
	"github.com/cartdotfun/settlement-backend/internal/dto"
	"github.com/cartdotfun/settlement-backend/internal/utils"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// nonceTTL is how long a challenge stays redeemable.
const nonceTTL = 5 * time.Minute

// AuthHandler issues signing challenges and exchanges wallet signatures
// for JWT tokens.
type AuthHandler struct {
	mu     sync.Mutex
	nonces map[string]time.Time // nonce -> issue time
}

// Alias the dto types so handler call sites read naturally.
type AuthRequest = dto.AuthRequest
type AuthResponse = dto.AuthResponse
type JWTClaims = dto.JWTClaims

// NewAuthHandler creates a new AuthHandler instance
func NewAuthHandler() *AuthHandler {
	return &AuthHandler{
		nonces: make(map[string]time.Time),
	}
}

// GenerateNonceHandler issues a one-time signing challenge
// GET /api/auth/nonce
func (h *AuthHandler) GenerateNonceHandler(c *gin.Context) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to generate nonce",
			"code":    "NONCE_GENERATION_FAILED",
		})
		return
	}

	nonce := hex.EncodeToString(buf)
	issued := time.Now()

	h.mu.Lock()
	h.nonces[nonce] = issued
	// Drop stale challenges so the map does not grow unbounded.
	for n, t := range h.nonces {
		if time.Since(t) > nonceTTL {
			delete(h.nonces, n)
		}
	}
	h.mu.Unlock()

	message := fmt.Sprintf("Settlement Authentication\nNonce: %s\nTimestamp: %d", nonce, issued.Unix())

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"nonce":     nonce,
		"message":   message,
		"timestamp": issued.Unix(),
	})
}

// AuthenticateHandler verifies a wallet signature over a previously issued
// challenge and returns a JWT token
// POST /api/auth/login
func (h *AuthHandler) AuthenticateHandler(c *gin.Context) {
	var req AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, AuthResponse{
			Success: false,
			Message: fmt.Sprintf("Invalid request: %v", err),
		})
		return
	}

	addr, err := utils.ParseAddress(req.Address)
	if err != nil {
		c.JSON(http.StatusBadRequest, AuthResponse{
			Success: false,
			Message: fmt.Sprintf("Invalid address: %v", err),
		})
		return
	}
	normalized := utils.NormalizeAddress(addr)

	if !h.consumeNonce(req.Message) {
		c.JSON(http.StatusUnauthorized, AuthResponse{
			Success: false,
			Message: "Unknown or expired challenge, request a new nonce",
		})
		return
	}

	if !verifySignature(normalized, req.Message, req.Signature) {
		log.Printf("❌ Signature verification failed: address=%s", normalized)
		c.JSON(http.StatusUnauthorized, AuthResponse{
			Success: false,
			Message: "Signature verification failed",
		})
		return
	}

	token, err := generateJWTToken(normalized)
	if err != nil {
		log.Printf("❌ JWT generation failed: %v", err)
		c.JSON(http.StatusInternalServerError, AuthResponse{
			Success: false,
			Message: "Token generation failed",
		})
		return
	}

	log.Printf("✅ Authenticated: address=%s", normalized)

	c.JSON(http.StatusOK, AuthResponse{
		Success: true,
		Token:   token,
		Message: "Authentication successful",
	})
}

// consumeNonce checks that the signed message embeds a live challenge and
// burns it. A nonce is redeemable exactly once.
func (h *AuthHandler) consumeNonce(message string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	for nonce, issued := range h.nonces {
		if strings.Contains(message, nonce) {
			delete(h.nonces, nonce)
			return time.Since(issued) <= nonceTTL
		}
	}
	return false
}

// verifySignature recovers the signer from an EIP-191 personal_sign
// signature and compares it to the claimed address.
func verifySignature(address, message, signature string) bool {
	sigHex := strings.TrimPrefix(signature, "0x")
	sig, err := hex.DecodeString(sigHex)
	if err != nil || len(sig) != 65 {
		return false
	}

	// Wallets return v as 27/28, go-ethereum expects 0/1.
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	digest := crypto.Keccak256([]byte(prefixed))

	pubKey, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return false
	}

	recovered := crypto.PubkeyToAddress(*pubKey)
	return utils.NormalizeAddress(recovered) == address
}

// jwtSecret returns the signing key from config, with a development
// fallback for tests that run without a loaded config.
func jwtSecret() []byte {
	if config.AppConfig != nil && config.AppConfig.JWT.Secret != "" {
		return []byte(config.AppConfig.JWT.Secret)
	}
	return []byte("settlement-dev-secret")
}

func tokenExpiry() time.Duration {
	if config.AppConfig != nil && config.AppConfig.JWT.ExpiryHours > 0 {
		return time.Duration(config.AppConfig.JWT.ExpiryHours) * time.Hour
	}
	return 24 * time.Hour
}

// generateJWTToken signs a token carrying the wallet address
func generateJWTToken(address string) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		Address: address,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenExpiry())),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "settlement-backend",
			Subject:   address,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(jwtSecret())
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateJWTToken verifies a JWT token and returns its claims
func ValidateJWTToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSecret(), nil
	})
	if err != nil {
		return nil, fmt.Errorf("token parsing failed: %w", err)
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}
