package services

import (
	"context"
	"fmt"
	"time"

	"github.com/cartdotfun/settlement-backend/internal/core"
	"github.com/cartdotfun/settlement-backend/internal/dto"
	"github.com/cartdotfun/settlement-backend/internal/models"
	"github.com/cartdotfun/settlement-backend/internal/repository"
	"github.com/cartdotfun/settlement-backend/internal/utils"
)

// EscrowService exposes the deal escrow state machine. All lifecycle writes
// go through the engine; list queries read the persisted copy.
type EscrowService struct {
	engine   *core.Engine
	dealRepo repository.DealRepository
}

// NewEscrowService creates a new EscrowService instance
func NewEscrowService(engine *core.Engine, dealRepo repository.DealRepository) *EscrowService {
	return &EscrowService{engine: engine, dealRepo: dealRepo}
}

// CreateDeal locks the buyer's funds into a new deal
func (s *EscrowService) CreateDeal(buyer string, req *dto.CreateDealRequest) (*core.Deal, error) {
	buyerAddr, err := utils.ParseAddress(buyer)
	if err != nil {
		return nil, fmt.Errorf("invalid buyer address: %w", err)
	}
	sellerAddr, err := utils.ParseAddress(req.Seller)
	if err != nil {
		return nil, fmt.Errorf("invalid seller address: %w", err)
	}
	assetAddr, err := utils.ParseAddress(req.Asset)
	if err != nil {
		return nil, fmt.Errorf("invalid asset address: %w", err)
	}
	amount, err := utils.ParseAmount(req.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}

	var expiresAt time.Time
	if req.ExpiresAt != 0 {
		expiresAt = time.Unix(req.ExpiresAt, 0).UTC()
	}
	return s.engine.Escrow.CreateDeal(buyerAddr, req.ID, sellerAddr, assetAddr, amount, req.Metadata, req.ParentID, expiresAt)
}

// SubmitWork marks the seller's work as delivered
func (s *EscrowService) SubmitWork(caller, id, resultRef string) error {
	callerAddr, err := utils.ParseAddress(caller)
	if err != nil {
		return fmt.Errorf("invalid caller address: %w", err)
	}
	return s.engine.Escrow.SubmitWork(callerAddr, id, resultRef)
}

// RaiseDispute freezes the deal pending arbiter judgment
func (s *EscrowService) RaiseDispute(caller, id string) error {
	callerAddr, err := utils.ParseAddress(caller)
	if err != nil {
		return fmt.Errorf("invalid caller address: %w", err)
	}
	return s.engine.Escrow.RaiseDispute(callerAddr, id)
}

// ResolveDispute applies the arbiter's judgment
func (s *EscrowService) ResolveDispute(caller, id string, releaseToSeller bool, judgmentRef string) error {
	callerAddr, err := utils.ParseAddress(caller)
	if err != nil {
		return fmt.Errorf("invalid caller address: %w", err)
	}
	return s.engine.Escrow.ResolveDispute(callerAddr, id, releaseToSeller, judgmentRef)
}

// Release pays the seller out, fee-split
func (s *EscrowService) Release(caller, id string) error {
	callerAddr, err := utils.ParseAddress(caller)
	if err != nil {
		return fmt.Errorf("invalid caller address: %w", err)
	}
	return s.engine.Escrow.Release(callerAddr, id)
}

// Refund returns the full lock to the buyer, fee-free. Seller only.
func (s *EscrowService) Refund(caller, id string) error {
	callerAddr, err := utils.ParseAddress(caller)
	if err != nil {
		return fmt.Errorf("invalid caller address: %w", err)
	}
	return s.engine.Escrow.Refund(callerAddr, id)
}

// Deal returns the live deal snapshot
func (s *EscrowService) Deal(id string) (*core.Deal, error) {
	return s.engine.Escrow.Deal(id)
}

// DealsByParty lists persisted deals where the address is buyer or seller
func (s *EscrowService) DealsByParty(ctx context.Context, party string, page, pageSize int) ([]*models.Deal, int64, error) {
	partyAddr, err := utils.ParseAddress(party)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid party address: %w", err)
	}
	return s.dealRepo.FindByParty(ctx, utils.NormalizeAddress(partyAddr), page, pageSize)
}

// DealsByState lists persisted deals in a given lifecycle state
func (s *EscrowService) DealsByState(ctx context.Context, state string) ([]*models.Deal, error) {
	return s.dealRepo.FindByState(ctx, state)
}
