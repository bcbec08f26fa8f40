package services

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/cartdotfun/settlement-backend/internal/core"
	"github.com/cartdotfun/settlement-backend/internal/models"
	"github.com/cartdotfun/settlement-backend/internal/repository"
	"github.com/cartdotfun/settlement-backend/internal/utils"

	"github.com/ethereum/go-ethereum/common"
)

// AdminService applies owner-gated protocol configuration changes and
// persists them so they survive restarts. The engine's config enforces the
// owner check and the fee cap; persistence happens only after it accepts.
type AdminService struct {
	engine     *core.Engine
	configRepo repository.ProtocolConfigRepository
}

// NewAdminService creates a new AdminService instance
func NewAdminService(engine *core.Engine, configRepo repository.ProtocolConfigRepository) *AdminService {
	return &AdminService{engine: engine, configRepo: configRepo}
}

// SetFeeRate sets the protocol fee rate in basis points. Capped at 10%.
func (s *AdminService) SetFeeRate(ctx context.Context, caller string, rateBps uint32) error {
	callerAddr, err := utils.ParseAddress(caller)
	if err != nil {
		return fmt.Errorf("invalid caller address: %w", err)
	}
	if err := s.engine.Config.SetFeeRate(callerAddr, rateBps); err != nil {
		return err
	}
	s.persist(ctx, models.ConfigKeyFeeRateBps, strconv.FormatUint(uint64(rateBps), 10), callerAddr)
	return nil
}

// SetFeeRecipient sets the fee recipient. The zero address disables fees.
func (s *AdminService) SetFeeRecipient(ctx context.Context, caller, recipient string) error {
	callerAddr, recipientAddr, err := s.parsePair(caller, recipient)
	if err != nil {
		return err
	}
	if err := s.engine.Config.SetFeeRecipient(callerAddr, recipientAddr); err != nil {
		return err
	}
	s.persist(ctx, models.ConfigKeyFeeRecipient, utils.NormalizeAddress(recipientAddr), callerAddr)
	return nil
}

// SetArbiter sets the dispute arbiter address
func (s *AdminService) SetArbiter(ctx context.Context, caller, arbiter string) error {
	callerAddr, arbiterAddr, err := s.parsePair(caller, arbiter)
	if err != nil {
		return err
	}
	if err := s.engine.Config.SetArbiter(callerAddr, arbiterAddr); err != nil {
		return err
	}
	s.persist(ctx, models.ConfigKeyArbiter, utils.NormalizeAddress(arbiterAddr), callerAddr)
	return nil
}

// SetRelay sets the cross-chain relay address
func (s *AdminService) SetRelay(ctx context.Context, caller, relay string) error {
	callerAddr, relayAddr, err := s.parsePair(caller, relay)
	if err != nil {
		return err
	}
	if err := s.engine.Config.SetRelay(callerAddr, relayAddr); err != nil {
		return err
	}
	s.persist(ctx, models.ConfigKeyRelay, utils.NormalizeAddress(relayAddr), callerAddr)
	return nil
}

// SetValidationBridge sets the automated validation bridge address
func (s *AdminService) SetValidationBridge(ctx context.Context, caller, bridge string) error {
	callerAddr, bridgeAddr, err := s.parsePair(caller, bridge)
	if err != nil {
		return err
	}
	if err := s.engine.Config.SetValidationBridge(callerAddr, bridgeAddr); err != nil {
		return err
	}
	s.persist(ctx, models.ConfigKeyValidationBridge, utils.NormalizeAddress(bridgeAddr), callerAddr)
	return nil
}

// SetSettlementAsset sets the asset used by cross-chain settlements
func (s *AdminService) SetSettlementAsset(ctx context.Context, caller, asset string) error {
	callerAddr, assetAddr, err := s.parsePair(caller, asset)
	if err != nil {
		return err
	}
	if err := s.engine.Config.SetSettlementAsset(callerAddr, assetAddr); err != nil {
		return err
	}
	s.persist(ctx, models.ConfigKeySettlementAsset, utils.NormalizeAddress(assetAddr), callerAddr)
	return nil
}

// Snapshot returns the current protocol configuration
func (s *AdminService) Snapshot() map[string]string {
	rateBps, recipient := s.engine.Config.FeePolicy()
	snapshot := make(map[string]string)
	snapshot["owner"] = utils.NormalizeAddress(s.engine.Config.Owner())
	snapshot[models.ConfigKeyArbiter] = utils.NormalizeAddress(s.engine.Config.Arbiter())
	snapshot[models.ConfigKeyRelay] = utils.NormalizeAddress(s.engine.Config.Relay())
	snapshot[models.ConfigKeyValidationBridge] = utils.NormalizeAddress(s.engine.Config.ValidationBridge())
	snapshot[models.ConfigKeyFeeRecipient] = utils.NormalizeAddress(recipient)
	snapshot[models.ConfigKeyFeeRateBps] = strconv.FormatUint(uint64(rateBps), 10)
	snapshot[models.ConfigKeySettlementAsset] = utils.NormalizeAddress(s.engine.Config.SettlementAsset())
	return snapshot
}

func (s *AdminService) parsePair(caller, target string) (common.Address, common.Address, error) {
	callerAddr, err := utils.ParseAddress(caller)
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("invalid caller address: %w", err)
	}
	targetAddr, err := utils.ParseAddress(target)
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("invalid address: %w", err)
	}
	return callerAddr, targetAddr, nil
}

func (s *AdminService) persist(ctx context.Context, key, value string, updatedBy common.Address) {
	if s.configRepo == nil {
		return
	}
	if err := s.configRepo.Set(ctx, key, value, utils.NormalizeAddress(updatedBy)); err != nil {
		log.Printf("❌ Failed to persist config %s: %v", key, err)
	}
}
