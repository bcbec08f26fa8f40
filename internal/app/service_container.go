package app

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/cartdotfun/settlement-backend/internal/clients"
	"github.com/cartdotfun/settlement-backend/internal/config"
	"github.com/cartdotfun/settlement-backend/internal/core"
	"github.com/cartdotfun/settlement-backend/internal/db"
	"github.com/cartdotfun/settlement-backend/internal/events"
	"github.com/cartdotfun/settlement-backend/internal/repository"
	"github.com/cartdotfun/settlement-backend/internal/services"
	"github.com/cartdotfun/settlement-backend/internal/utils"

	"gorm.io/gorm"
)

// ServiceContainer holds every wired component of the backend. The core
// engine is the authoritative state; everything else hangs off it.
type ServiceContainer struct {
	// Database
	DB *gorm.DB

	// Core engine
	Engine *core.Engine

	// Repositories
	BalanceRepo    repository.BalanceRepository
	LedgerRepo     repository.LedgerEntryRepository
	DealRepo       repository.DealRepository
	SessionRepo    repository.SessionRepository
	GatewayRepo    repository.GatewayRepository
	SettlementRepo repository.SettlementRepository
	ConfigRepo     repository.ProtocolConfigRepository

	// Services
	LedgerService     *services.LedgerService
	EscrowService     *services.EscrowService
	SessionService    *services.SessionService
	CrossChainService *services.CrossChainService
	AdminService      *services.AdminService
	Recorder          *services.Recorder

	// External clients
	TreasuryClient *clients.TreasuryClient
}

// Global service container instance
var Container *ServiceContainer
var containerOnce sync.Once

// InitializeContainer builds the container exactly once
func InitializeContainer() (*ServiceContainer, error) {
	var initErr error

	containerOnce.Do(func() {
		log.Println("🚀 Initializing Service Container...")

		container := &ServiceContainer{
			DB: db.DB,
		}

		if err := container.initEngine(); err != nil {
			initErr = fmt.Errorf("failed to initialize engine: %w", err)
			return
		}

		container.initRepositories()
		container.initServices()

		// Recover persisted state into the engine before the recorder
		// starts journaling, so restores are not re-persisted.
		if err := services.LoadState(
			context.Background(),
			container.Engine,
			container.BalanceRepo,
			container.DealRepo,
			container.SessionRepo,
			container.GatewayRepo,
			container.SettlementRepo,
			container.ConfigRepo,
		); err != nil {
			initErr = fmt.Errorf("failed to recover state: %w", err)
			return
		}
		container.Recorder.Attach()

		if err := container.initEventServices(); err != nil {
			// Event services are optional, log but don't fail
			log.Printf("⚠️ Event services initialization skipped or failed: %v", err)
		}

		if err := container.initTreasury(); err != nil {
			initErr = fmt.Errorf("failed to initialize treasury: %w", err)
			return
		}

		Container = container
		log.Println("✅ Service Container initialized successfully")
	})

	return Container, initErr
}

// initEngine builds the authoritative in-memory settlement engine
func (c *ServiceContainer) initEngine() error {
	if config.AppConfig == nil {
		return fmt.Errorf("config not loaded")
	}

	owner, err := utils.ParseAddress(config.AppConfig.Protocol.Owner)
	if err != nil {
		return fmt.Errorf("invalid protocol.owner: %w", err)
	}

	c.Engine = core.NewEngine(owner, core.SystemClock)
	log.Printf("📋 Engine initialized: owner=%s", utils.NormalizeAddress(owner))
	return nil
}

// initRepositories builds the persistence layer
func (c *ServiceContainer) initRepositories() {
	log.Println("📦 Initializing Repositories...")

	c.BalanceRepo = repository.NewBalanceRepository(c.DB)
	c.LedgerRepo = repository.NewLedgerEntryRepository(c.DB)
	c.DealRepo = repository.NewDealRepository(c.DB)
	c.SessionRepo = repository.NewSessionRepository(c.DB)
	c.GatewayRepo = repository.NewGatewayRepository(c.DB)
	c.SettlementRepo = repository.NewSettlementRepository(c.DB)
	c.ConfigRepo = repository.NewProtocolConfigRepository(c.DB)
}

// initServices builds the service layer over the engine and repositories
func (c *ServiceContainer) initServices() {
	log.Println("🔧 Initializing Services...")

	c.LedgerService = services.NewLedgerService(c.Engine, c.BalanceRepo, c.LedgerRepo)
	c.EscrowService = services.NewEscrowService(c.Engine, c.DealRepo)
	c.SessionService = services.NewSessionService(c.Engine, c.SessionRepo, c.GatewayRepo)
	c.CrossChainService = services.NewCrossChainService(c.Engine, c.SettlementRepo)
	c.AdminService = services.NewAdminService(c.Engine, c.ConfigRepo)
	c.Recorder = services.NewRecorder(c.Engine, c.BalanceRepo, c.LedgerRepo, c.DealRepo, c.SessionRepo, c.SettlementRepo)
}

// initEventServices connects to NATS when configured
func (c *ServiceContainer) initEventServices() error {
	return events.InitNATSServices()
}

// initTreasury wires the on-chain payout hook when enabled
func (c *ServiceContainer) initTreasury() error {
	if config.AppConfig == nil || !config.AppConfig.Treasury.Enabled {
		log.Println("📋 Treasury disabled, withdrawals settle ledger-only")
		return nil
	}

	tc, err := clients.NewTreasuryClient(
		config.AppConfig.Treasury.RPCURL,
		config.AppConfig.Treasury.PrivateKey,
		config.AppConfig.Treasury.GasLimit,
	)
	if err != nil {
		return err
	}

	c.TreasuryClient = tc
	c.Engine.Vault.SetTreasury(tc)
	log.Printf("✅ Treasury wired: signer=%s", utils.NormalizeAddress(tc.Address()))
	return nil
}

// Shutdown releases external connections
func (c *ServiceContainer) Shutdown() {
	events.Close()
	if c.TreasuryClient != nil {
		c.TreasuryClient.Close()
	}
	log.Println("📋 Service Container shut down")
}
