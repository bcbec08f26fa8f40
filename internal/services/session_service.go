package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cartdotfun/settlement-backend/internal/core"
	"github.com/cartdotfun/settlement-backend/internal/dto"
	"github.com/cartdotfun/settlement-backend/internal/events"
	"github.com/cartdotfun/settlement-backend/internal/metrics"
	"github.com/cartdotfun/settlement-backend/internal/models"
	"github.com/cartdotfun/settlement-backend/internal/repository"
	"github.com/cartdotfun/settlement-backend/internal/utils"
)

// SessionService exposes the gateway registry and the metered-session state
// machine. Session transitions are persisted by the recorder; gateway
// changes have no engine event stream, so this service writes them through
// itself.
type SessionService struct {
	engine      *core.Engine
	sessionRepo repository.SessionRepository
	gatewayRepo repository.GatewayRepository
}

// NewSessionService creates a new SessionService instance
func NewSessionService(engine *core.Engine, sessionRepo repository.SessionRepository, gatewayRepo repository.GatewayRepository) *SessionService {
	return &SessionService{
		engine:      engine,
		sessionRepo: sessionRepo,
		gatewayRepo: gatewayRepo,
	}
}

// RegisterGateway claims a slug for the calling provider
func (s *SessionService) RegisterGateway(ctx context.Context, provider string, req *dto.RegisterGatewayRequest) (*core.Gateway, error) {
	providerAddr, err := utils.ParseAddress(provider)
	if err != nil {
		return nil, fmt.Errorf("invalid provider address: %w", err)
	}
	price, err := utils.ParseAmount(defaultAmount(req.PricePerRequest))
	if err != nil {
		return nil, fmt.Errorf("invalid price: %w", err)
	}

	gw, err := s.engine.Sessions.RegisterGateway(providerAddr, req.Slug, price)
	if err != nil {
		return nil, err
	}

	s.persistGateway(ctx, gw)
	metrics.RegisteredGateways.Inc()
	events.Publish("gateway", "registered", models.GatewayFromCore(gw))
	return gw, nil
}

// UpdateGatewayPrice updates the advisory per-request price of a gateway
func (s *SessionService) UpdateGatewayPrice(ctx context.Context, provider, slug, price string) error {
	providerAddr, err := utils.ParseAddress(provider)
	if err != nil {
		return fmt.Errorf("invalid provider address: %w", err)
	}
	value, err := utils.ParseAmount(price)
	if err != nil {
		return fmt.Errorf("invalid price: %w", err)
	}

	if err := s.engine.Sessions.UpdateGatewayPrice(providerAddr, slug, value); err != nil {
		return err
	}

	if gw, err := s.engine.Sessions.Gateway(slug); err == nil {
		s.persistGateway(ctx, gw)
		events.Publish("gateway", "price_updated", models.GatewayFromCore(gw))
	}
	return nil
}

// DeactivateGateway retires a gateway. The slug stays claimed forever; the
// call is refused while the provider has open sessions.
func (s *SessionService) DeactivateGateway(ctx context.Context, provider, slug string) error {
	providerAddr, err := utils.ParseAddress(provider)
	if err != nil {
		return fmt.Errorf("invalid provider address: %w", err)
	}

	if err := s.engine.Sessions.DeactivateGateway(providerAddr, slug); err != nil {
		return err
	}

	if gw, err := s.engine.Sessions.Gateway(slug); err == nil {
		s.persistGateway(ctx, gw)
		events.Publish("gateway", "deactivated", models.GatewayFromCore(gw))
	}
	return nil
}

// OpenSession locks the agent's deposit into a new metered session
func (s *SessionService) OpenSession(agent string, req *dto.OpenSessionRequest) (*core.Session, error) {
	agentAddr, err := utils.ParseAddress(agent)
	if err != nil {
		return nil, fmt.Errorf("invalid agent address: %w", err)
	}
	assetAddr, err := utils.ParseAddress(req.Asset)
	if err != nil {
		return nil, fmt.Errorf("invalid asset address: %w", err)
	}
	deposit, err := utils.ParseAmount(req.Deposit)
	if err != nil {
		return nil, fmt.Errorf("invalid deposit: %w", err)
	}

	duration := time.Duration(req.Duration) * time.Second
	return s.engine.Sessions.OpenSession(agentAddr, req.Gateway, assetAddr, deposit, duration)
}

// RecordUsage accumulates metered usage against a session. Provider only.
func (s *SessionService) RecordUsage(provider, id, amount string) error {
	providerAddr, err := utils.ParseAddress(provider)
	if err != nil {
		return fmt.Errorf("invalid provider address: %w", err)
	}
	value, err := utils.ParseAmount(amount)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	return s.engine.Sessions.RecordUsage(providerAddr, id, value)
}

// SettleSession splits the lock into provider payout and agent refund
func (s *SessionService) SettleSession(caller, id string) error {
	callerAddr, err := utils.ParseAddress(caller)
	if err != nil {
		return fmt.Errorf("invalid caller address: %w", err)
	}
	return s.engine.Sessions.SettleSession(callerAddr, id)
}

// CancelSession refunds an unused session in full. Agent only.
func (s *SessionService) CancelSession(caller, id string) error {
	callerAddr, err := utils.ParseAddress(caller)
	if err != nil {
		return fmt.Errorf("invalid caller address: %w", err)
	}
	return s.engine.Sessions.CancelSession(callerAddr, id)
}

// RenewSession replaces the session expiry with now+extension. Agent only.
func (s *SessionService) RenewSession(caller, id string, extension int64) error {
	callerAddr, err := utils.ParseAddress(caller)
	if err != nil {
		return fmt.Errorf("invalid caller address: %w", err)
	}
	return s.engine.Sessions.RenewSession(callerAddr, id, time.Duration(extension)*time.Second)
}

// Session returns the live session snapshot
func (s *SessionService) Session(id string) (*core.Session, error) {
	return s.engine.Sessions.Session(id)
}

// SessionsByAgent lists persisted sessions opened by an agent
func (s *SessionService) SessionsByAgent(ctx context.Context, agent string, page, pageSize int) ([]*models.Session, int64, error) {
	agentAddr, err := utils.ParseAddress(agent)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid agent address: %w", err)
	}
	return s.sessionRepo.FindByAgent(ctx, utils.NormalizeAddress(agentAddr), page, pageSize)
}

// SessionsByProvider lists persisted sessions pointed at a provider
func (s *SessionService) SessionsByProvider(ctx context.Context, provider string, page, pageSize int) ([]*models.Session, int64, error) {
	providerAddr, err := utils.ParseAddress(provider)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid provider address: %w", err)
	}
	return s.sessionRepo.FindByProvider(ctx, utils.NormalizeAddress(providerAddr), page, pageSize)
}

// Gateway returns the live gateway snapshot
func (s *SessionService) Gateway(slug string) (*core.Gateway, error) {
	return s.engine.Sessions.Gateway(slug)
}

// Gateways lists every registered gateway
func (s *SessionService) Gateways() []*core.Gateway {
	return s.engine.Sessions.Gateways()
}

func (s *SessionService) persistGateway(ctx context.Context, gw *core.Gateway) {
	if s.gatewayRepo == nil {
		return
	}
	row := models.GatewayFromCore(gw)
	row.UpdatedAt = time.Now().UTC()
	if err := s.gatewayRepo.Upsert(ctx, row); err != nil {
		log.Printf("❌ Failed to persist gateway %s: %v", gw.Slug, err)
	}
}

// defaultAmount maps an omitted amount string to zero
func defaultAmount(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
