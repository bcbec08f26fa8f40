package core

import "errors"

// Failure taxonomy for the settlement core. Every operation either fully
// applies or fails with one of these; there is no partial state to clean up
// and every failure is safe to retry once the triggering condition is fixed.
var (
	// Authorization failures
	ErrUnauthorized          = errors.New("caller is not authorized for this operation")
	ErrComponentUnauthorized = errors.New("component is not authorized to mutate the vault")

	// State-precondition failures
	ErrInvalidState      = errors.New("operation not allowed in current lifecycle state")
	ErrSessionNotExpired = errors.New("session has not expired yet")
	ErrTimeLocked        = errors.New("deal expiry has not passed yet")
	ErrGatewayInactive   = errors.New("gateway is not active")
	ErrGatewayBusy       = errors.New("provider still has open sessions")

	// Resource-sufficiency failures
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUsageExceedsDeposit = errors.New("cumulative usage exceeds session deposit")

	// Input-validation failures
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidAddress    = errors.New("address must not be the zero address")
	ErrInvalidID         = errors.New("identifier must not be empty")
	ErrMetadataTooLarge  = errors.New("metadata exceeds size limit")
	ErrInvalidDuration   = errors.New("duration is zero or exceeds the maximum")
	ErrInvalidExpiry     = errors.New("expiry must be strictly in the future")
	ErrInvalidSlug       = errors.New("gateway slug is empty or too long")
	ErrFeeTooHigh        = errors.New("fee rate exceeds the hard cap")
	ErrNoSettlementAsset = errors.New("no settlement asset configured")

	// Idempotency failures
	ErrDealExists       = errors.New("deal id already in use")
	ErrSlugTaken        = errors.New("gateway slug already claimed")
	ErrAlreadyProcessed = errors.New("external settlement id already processed")

	// Not-found lookups
	ErrDealNotFound    = errors.New("deal not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrGatewayNotFound = errors.New("gateway not found")
	ErrTooManyChildren = errors.New("parent deal has the maximum number of children")
)
