package services

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/cartdotfun/settlement-backend/internal/config"
	"github.com/cartdotfun/settlement-backend/internal/core"
	"github.com/cartdotfun/settlement-backend/internal/metrics"
	"github.com/cartdotfun/settlement-backend/internal/models"
	"github.com/cartdotfun/settlement-backend/internal/repository"
	"github.com/cartdotfun/settlement-backend/internal/utils"

	"github.com/ethereum/go-ethereum/common"
)

// LoadState rebuilds the in-memory engine from the database at boot. It must
// run before the recorder is attached and before the server takes requests:
// restores are not journaled and must not race live operations.
func LoadState(
	ctx context.Context,
	engine *core.Engine,
	balanceRepo repository.BalanceRepository,
	dealRepo repository.DealRepository,
	sessionRepo repository.SessionRepository,
	gatewayRepo repository.GatewayRepository,
	settlementRepo repository.SettlementRepository,
	configRepo repository.ProtocolConfigRepository,
) error {
	if err := loadProtocolConfig(ctx, engine, configRepo); err != nil {
		return err
	}

	balances, err := balanceRepo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load balances: %w", err)
	}
	for _, row := range balances {
		amount, err := row.BalanceAmount()
		if err != nil {
			return fmt.Errorf("corrupt balance row for %s/%s: %w", row.Owner, row.Asset, err)
		}
		engine.Vault.RestoreBalance(common.HexToAddress(row.Owner), common.HexToAddress(row.Asset), amount)
	}

	deals, err := dealRepo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load deals: %w", err)
	}
	openDeals := 0
	for _, row := range deals {
		deal, err := row.ToCore()
		if err != nil {
			return fmt.Errorf("corrupt deal row %s: %w", row.ID, err)
		}
		engine.Escrow.RestoreDeal(deal)
		if !deal.State.IsTerminal() {
			openDeals++
		}
	}
	metrics.OpenDeals.Set(float64(openDeals))

	gateways, err := gatewayRepo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load gateways: %w", err)
	}
	for _, row := range gateways {
		gw, err := row.ToCore()
		if err != nil {
			return fmt.Errorf("corrupt gateway row %s: %w", row.Slug, err)
		}
		engine.Sessions.RestoreGateway(gw)
	}
	metrics.RegisteredGateways.Set(float64(len(gateways)))

	sessions, err := sessionRepo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load sessions: %w", err)
	}
	// Session ids are derived from a per-agent nonce that increments on
	// every open, so the count of ever-opened sessions is the next nonce.
	nonces := make(map[common.Address]uint64)
	openSessions := 0
	for _, row := range sessions {
		sess, err := row.ToCore()
		if err != nil {
			return fmt.Errorf("corrupt session row %s: %w", row.ID, err)
		}
		engine.Sessions.RestoreSession(sess)
		nonces[sess.Agent]++
		if !sess.State.IsTerminal() {
			openSessions++
		}
	}
	for agent, next := range nonces {
		engine.Sessions.RestoreNonce(agent, next)
	}
	metrics.OpenSessions.Set(float64(openSessions))

	settlements, err := settlementRepo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settlements: %w", err)
	}
	for _, row := range settlements {
		engine.CrossChain.RestoreProcessed(row.ExternalID)
	}

	log.Printf("✅ State recovered: %d balances, %d deals, %d gateways, %d sessions, %d settlements",
		len(balances), len(deals), len(gateways), len(sessions), len(settlements))
	return nil
}

// loadProtocolConfig restores persisted protocol parameters, falling back to
// the config file for any value never written by the admin API
func loadProtocolConfig(ctx context.Context, engine *core.Engine, configRepo repository.ProtocolConfigRepository) error {
	stored, err := configRepo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load protocol config: %w", err)
	}

	seed := config.AppConfig.Protocol

	pick := func(key, fallback string) string {
		if v, ok := stored[key]; ok && v != "" {
			return v
		}
		return fallback
	}

	feeRateBps := uint32(seed.FeeRateBps)
	if v, ok := stored[models.ConfigKeyFeeRateBps]; ok {
		if parsed, err := strconv.ParseUint(v, 10, 32); err == nil {
			feeRateBps = uint32(parsed)
		}
	}

	engine.Config.Restore(
		parseOrZero(pick(models.ConfigKeyArbiter, seed.Arbiter)),
		parseOrZero(pick(models.ConfigKeyRelay, seed.Relay)),
		parseOrZero(pick(models.ConfigKeyValidationBridge, seed.ValidationBridge)),
		parseOrZero(pick(models.ConfigKeyFeeRecipient, seed.FeeRecipient)),
		parseOrZero(pick(models.ConfigKeySettlementAsset, seed.SettlementAsset)),
		feeRateBps,
	)
	return nil
}

// parseOrZero maps an empty or malformed address to the zero address, which
// the engine treats as "not configured"
func parseOrZero(s string) common.Address {
	if s == "" {
		return common.Address{}
	}
	addr, err := utils.ParseAddress(s)
	if err != nil {
		log.Printf("⚠️ Ignoring malformed configured address %q: %v", s, err)
		return common.Address{}
	}
	return addr
}
