package dto

import "github.com/golang-jwt/jwt/v5"

// ==================== Auth DTOs ====================

// AuthRequest Authentication request structure
type AuthRequest struct {
	Address   string `json:"address" binding:"required"`   // wallet address
	Message   string `json:"message" binding:"required"`   // message that was signed
	Signature string `json:"signature" binding:"required"` // personal-sign signature over the message
}

// AuthResponse Authentication response structure
type AuthResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message"`
}

// JWTClaims JWT Claims structure
type JWTClaims struct {
	Address string `json:"address"` // wallet address
	jwt.RegisteredClaims
}
