package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/cartdotfun/settlement-backend/internal/core"
	"github.com/cartdotfun/settlement-backend/internal/dto"
	"github.com/cartdotfun/settlement-backend/internal/metrics"
	"github.com/cartdotfun/settlement-backend/internal/models"
	"github.com/cartdotfun/settlement-backend/internal/repository"
	"github.com/cartdotfun/settlement-backend/internal/utils"
)

// CrossChainService exposes the cross-chain settlement adapter. Only the
// configured relay address can move funds through it; the engine enforces
// that, this layer just translates the wire format.
type CrossChainService struct {
	engine         *core.Engine
	settlementRepo repository.SettlementRepository
}

// NewCrossChainService creates a new CrossChainService instance
func NewCrossChainService(engine *core.Engine, settlementRepo repository.SettlementRepository) *CrossChainService {
	return &CrossChainService{engine: engine, settlementRepo: settlementRepo}
}

// Settle applies a relay-attested external settlement and returns the fee
// taken
func (s *CrossChainService) Settle(caller string, req *dto.CrossChainSettleRequest) (*big.Int, error) {
	callerAddr, err := utils.ParseAddress(caller)
	if err != nil {
		return nil, fmt.Errorf("invalid caller address: %w", err)
	}
	agentAddr, err := utils.ParseAddress(req.Agent)
	if err != nil {
		return nil, fmt.Errorf("invalid agent address: %w", err)
	}
	providerAddr, err := utils.ParseAddress(req.Provider)
	if err != nil {
		return nil, fmt.Errorf("invalid provider address: %w", err)
	}
	amount, err := utils.ParseAmount(req.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}

	fee, err := s.engine.CrossChain.SettleFromSolana(callerAddr, req.ExternalID, agentAddr, providerAddr, amount)
	if errors.Is(err, core.ErrAlreadyProcessed) {
		metrics.CrossChainReplaysRejected.Inc()
	}
	return fee, err
}

// Processed reports whether an external id has already been settled
func (s *CrossChainService) Processed(externalID string) bool {
	return s.engine.CrossChain.Processed(externalID)
}

// Settlement returns the persisted settlement record for an external id
func (s *CrossChainService) Settlement(ctx context.Context, externalID string) (*models.CrossChainSettlement, error) {
	return s.settlementRepo.GetByExternalID(ctx, externalID)
}

// SettlementsByAgent lists persisted settlements debited from an agent
func (s *CrossChainService) SettlementsByAgent(ctx context.Context, agent string, page, pageSize int) ([]*models.CrossChainSettlement, int64, error) {
	agentAddr, err := utils.ParseAddress(agent)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid agent address: %w", err)
	}
	return s.settlementRepo.FindByAgent(ctx, utils.NormalizeAddress(agentAddr), page, pageSize)
}
