package services

import (
	"context"
	"fmt"
	"math/big"

	"github.com/cartdotfun/settlement-backend/internal/core"
	"github.com/cartdotfun/settlement-backend/internal/models"
	"github.com/cartdotfun/settlement-backend/internal/repository"
	"github.com/cartdotfun/settlement-backend/internal/utils"
)

// LedgerService exposes the custodial vault: deposits, withdrawals, balance
// queries and the journal. Writes go through the in-memory engine; reads on
// history use the persisted journal.
type LedgerService struct {
	engine      *core.Engine
	balanceRepo repository.BalanceRepository
	ledgerRepo  repository.LedgerEntryRepository
}

// NewLedgerService creates a new LedgerService instance
func NewLedgerService(engine *core.Engine, balanceRepo repository.BalanceRepository, ledgerRepo repository.LedgerEntryRepository) *LedgerService {
	return &LedgerService{
		engine:      engine,
		balanceRepo: balanceRepo,
		ledgerRepo:  ledgerRepo,
	}
}

// Deposit credits the owner's balance for the given asset
func (s *LedgerService) Deposit(owner, asset, amount string) (*big.Int, error) {
	ownerAddr, err := utils.ParseAddress(owner)
	if err != nil {
		return nil, fmt.Errorf("invalid owner address: %w", err)
	}
	assetAddr, err := utils.ParseAddress(asset)
	if err != nil {
		return nil, fmt.Errorf("invalid asset address: %w", err)
	}
	value, err := utils.ParseAmount(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}

	if err := s.engine.Vault.Deposit(ownerAddr, assetAddr, value); err != nil {
		return nil, err
	}
	return s.engine.Vault.Balance(ownerAddr, assetAddr), nil
}

// Withdraw debits the owner's balance and triggers the external payout leg
func (s *LedgerService) Withdraw(owner, asset, amount string) (*big.Int, error) {
	ownerAddr, err := utils.ParseAddress(owner)
	if err != nil {
		return nil, fmt.Errorf("invalid owner address: %w", err)
	}
	assetAddr, err := utils.ParseAddress(asset)
	if err != nil {
		return nil, fmt.Errorf("invalid asset address: %w", err)
	}
	value, err := utils.ParseAmount(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}

	if err := s.engine.Vault.Withdraw(ownerAddr, assetAddr, value); err != nil {
		return nil, err
	}
	return s.engine.Vault.Balance(ownerAddr, assetAddr), nil
}

// Balance returns the live free balance for (owner, asset)
func (s *LedgerService) Balance(owner, asset string) (*big.Int, error) {
	ownerAddr, err := utils.ParseAddress(owner)
	if err != nil {
		return nil, fmt.Errorf("invalid owner address: %w", err)
	}
	assetAddr, err := utils.ParseAddress(asset)
	if err != nil {
		return nil, fmt.Errorf("invalid asset address: %w", err)
	}
	return s.engine.Vault.Balance(ownerAddr, assetAddr), nil
}

// Balances returns every persisted balance row for the owner
func (s *LedgerService) Balances(ctx context.Context, owner string) ([]*models.Balance, error) {
	ownerAddr, err := utils.ParseAddress(owner)
	if err != nil {
		return nil, fmt.Errorf("invalid owner address: %w", err)
	}
	return s.balanceRepo.FindByOwner(ctx, utils.NormalizeAddress(ownerAddr))
}

// History returns the owner's journal entries, newest first
func (s *LedgerService) History(ctx context.Context, owner string, page, pageSize int) ([]*models.LedgerEntry, int64, error) {
	ownerAddr, err := utils.ParseAddress(owner)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid owner address: %w", err)
	}
	return s.ledgerRepo.FindByOwner(ctx, utils.NormalizeAddress(ownerAddr), page, pageSize)
}

// EntriesByRef returns every journal entry tied to a deal, session or
// external settlement id
func (s *LedgerService) EntriesByRef(ctx context.Context, ref string) ([]*models.LedgerEntry, error) {
	return s.ledgerRepo.FindByRef(ctx, ref)
}
