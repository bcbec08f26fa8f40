package dto

// ==================== Vault DTOs ====================

// DepositRequest credits the caller's custodial balance
type DepositRequest struct {
	Asset  string `json:"asset" binding:"required"`
	Amount string `json:"amount" binding:"required"` // BigInt as string
}

// WithdrawRequest debits the caller's custodial balance
type WithdrawRequest struct {
	Asset  string `json:"asset" binding:"required"`
	Amount string `json:"amount" binding:"required"` // BigInt as string
}

// ==================== Escrow DTOs ====================

// CreateDealRequest locks the caller's funds into a new escrow deal
type CreateDealRequest struct {
	ID        string `json:"id" binding:"required"`
	Seller    string `json:"seller" binding:"required"`
	Asset     string `json:"asset" binding:"required"`
	Amount    string `json:"amount" binding:"required"` // BigInt as string
	Metadata  string `json:"metadata"`
	ParentID  string `json:"parent_id"`
	ExpiresAt int64  `json:"expires_at"` // unix seconds, 0 = no time-lock
}

// SubmitWorkRequest attaches a result reference to a deal
type SubmitWorkRequest struct {
	ResultRef string `json:"result_ref" binding:"required"`
}

// ResolveDisputeRequest is the arbiter's judgment on a disputed deal
type ResolveDisputeRequest struct {
	ReleaseToSeller bool   `json:"release_to_seller"`
	JudgmentRef     string `json:"judgment_ref"`
}

// ==================== Session DTOs ====================

// RegisterGatewayRequest claims a gateway slug for the caller
type RegisterGatewayRequest struct {
	Slug            string `json:"slug" binding:"required"`
	PricePerRequest string `json:"price_per_request"` // advisory, BigInt as string
}

// UpdateGatewayPriceRequest updates the advisory price of a gateway
type UpdateGatewayPriceRequest struct {
	PricePerRequest string `json:"price_per_request" binding:"required"`
}

// OpenSessionRequest opens a pre-funded metered session
type OpenSessionRequest struct {
	Gateway  string `json:"gateway" binding:"required"`
	Asset    string `json:"asset" binding:"required"`
	Deposit  string `json:"deposit" binding:"required"`  // BigInt as string
	Duration int64  `json:"duration" binding:"required"` // seconds
}

// RecordUsageRequest reports additional metered usage against a session
type RecordUsageRequest struct {
	Amount string `json:"amount" binding:"required"` // BigInt as string
}

// RenewSessionRequest replaces the session expiry with now+extension
type RenewSessionRequest struct {
	Extension int64 `json:"extension" binding:"required"` // seconds
}

// ==================== Cross-chain DTOs ====================

// CrossChainSettleRequest is the relay's attestation of an externally
// metered session
type CrossChainSettleRequest struct {
	ExternalID string `json:"external_id" binding:"required"`
	Agent      string `json:"agent" binding:"required"`
	Provider   string `json:"provider" binding:"required"`
	Amount     string `json:"amount" binding:"required"` // BigInt as string
}

// ==================== Admin DTOs ====================

// SetFeeRateRequest sets the protocol fee rate in basis points
type SetFeeRateRequest struct {
	RateBps uint32 `json:"rate_bps"`
}

// SetAddressRequest sets one of the protocol's configured addresses
type SetAddressRequest struct {
	Address string `json:"address" binding:"required"`
}
