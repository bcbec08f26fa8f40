package core

import (
	"encoding/binary"
	"encoding/hex"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SessionState is the metered-session lifecycle state. "Expired" is a time
// predicate, not a stored state: an expired session stays ACTIVE in storage
// until someone settles it.
type SessionState string

const (
	SessionActive    SessionState = "ACTIVE"
	SessionSettled   SessionState = "SETTLED"
	SessionCancelled SessionState = "CANCELLED"
)

func (s SessionState) IsTerminal() bool {
	return s == SessionSettled || s == SessionCancelled
}

// Session is a pre-funded, time-bounded metered allowance between an agent
// (payer) and a provider (payee). The deposit is locked at open; usage
// accumulates against it and settlement splits the lock between provider
// payout and agent refund.
type Session struct {
	ID        string
	Agent     common.Address
	Provider  common.Address
	Asset     common.Address
	Deposit   *big.Int
	Used      *big.Int
	State     SessionState
	Gateway   string
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (s *Session) clone() *Session {
	cp := *s
	cp.Deposit = new(big.Int).Set(s.Deposit)
	cp.Used = new(big.Int).Set(s.Used)
	return &cp
}

// Expired reports whether the session's window has closed as of now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Gateway is a provider-owned metering endpoint registration. The slug is
// unique and never recycled: a deactivated gateway keeps its slug forever.
// PricePerRequest is advisory discovery metadata only and is never checked
// against reported usage.
type Gateway struct {
	Slug            string
	Provider        common.Address
	PricePerRequest *big.Int
	Active          bool
	CreatedAt       time.Time
}

func (g *Gateway) clone() *Gateway {
	cp := *g
	cp.PricePerRequest = new(big.Int).Set(g.PricePerRequest)
	return &cp
}

// SessionEvent is emitted to the session observer after every committed
// transition.
type SessionEvent struct {
	Kind    string
	Session *Session
	Fee     *big.Int
}

const (
	SessionEventOpened    = "opened"
	SessionEventUsage     = "usage"
	SessionEventSettled   = "settled"
	SessionEventCancelled = "cancelled"
	SessionEventRenewed   = "renewed"
)

// Sessions manages the gateway registry and the metered-session state
// machine on top of the vault.
type Sessions struct {
	mu       sync.Mutex
	clock    Clock
	cfg      *Config
	vault    *Vault
	sessions map[string]*Session
	gateways map[string]*Gateway
	nonces   map[common.Address]uint64

	// openByProvider backs both the "may this gateway owner deactivate"
	// check and the per-provider open-session listing.
	openByProvider map[common.Address]map[string]struct{}

	observer func(SessionEvent)
}

func NewSessions(cfg *Config, vault *Vault, clock Clock) *Sessions {
	return &Sessions{
		clock:          clock,
		cfg:            cfg,
		vault:          vault,
		sessions:       make(map[string]*Session),
		gateways:       make(map[string]*Gateway),
		nonces:         make(map[common.Address]uint64),
		openByProvider: make(map[common.Address]map[string]struct{}),
	}
}

func (m *Sessions) SetObserver(fn func(SessionEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observer = fn
}

// RegisterGateway claims a slug for the calling provider. Slugs are
// first-come-first-served and permanent.
func (m *Sessions) RegisterGateway(provider common.Address, slug string, pricePerRequest *big.Int) (*Gateway, error) {
	if provider == (common.Address{}) {
		return nil, ErrInvalidAddress
	}
	if slug == "" || len(slug) > MaxGatewaySlug {
		return nil, ErrInvalidSlug
	}
	if pricePerRequest == nil || pricePerRequest.Sign() < 0 {
		return nil, ErrInvalidAmount
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.gateways[slug]; ok {
		return nil, ErrSlugTaken
	}
	gw := &Gateway{
		Slug:            slug,
		Provider:        provider,
		PricePerRequest: new(big.Int).Set(pricePerRequest),
		Active:          true,
		CreatedAt:       m.clock(),
	}
	m.gateways[slug] = gw
	return gw.clone(), nil
}

// UpdateGatewayPrice changes the advisory price. Owner only.
func (m *Sessions) UpdateGatewayPrice(provider common.Address, slug string, pricePerRequest *big.Int) error {
	if pricePerRequest == nil || pricePerRequest.Sign() < 0 {
		return ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	gw, ok := m.gateways[slug]
	if !ok {
		return ErrGatewayNotFound
	}
	if gw.Provider != provider {
		return ErrUnauthorized
	}
	gw.PricePerRequest = new(big.Int).Set(pricePerRequest)
	return nil
}

// DeactivateGateway closes a gateway to new sessions. Refused while the
// provider has any open sessions, so a live lock can never be orphaned
// behind a dead gateway.
func (m *Sessions) DeactivateGateway(provider common.Address, slug string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	gw, ok := m.gateways[slug]
	if !ok {
		return ErrGatewayNotFound
	}
	if gw.Provider != provider {
		return ErrUnauthorized
	}
	if len(m.openByProvider[provider]) > 0 {
		return ErrGatewayBusy
	}
	gw.Active = false
	return nil
}

// OpenSession locks deposit of the agent's balance against an active
// gateway for at most duration. The id is derived from the participants, a
// per-agent nonce and the open time, so it is collision-free without caller
// coordination.
func (m *Sessions) OpenSession(agent common.Address, slug string, asset common.Address, deposit *big.Int, duration time.Duration) (*Session, error) {
	if agent == (common.Address{}) || asset == (common.Address{}) {
		return nil, ErrInvalidAddress
	}
	if deposit == nil || deposit.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if duration <= 0 || duration > MaxSessionDuration {
		return nil, ErrInvalidDuration
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	gw, ok := m.gateways[slug]
	if !ok {
		return nil, ErrGatewayNotFound
	}
	if !gw.Active {
		return nil, ErrGatewayInactive
	}

	now := m.clock()
	nonce := m.nonces[agent]
	id := sessionID(agent, gw.Provider, slug, nonce, now)

	// Last fallible step.
	if err := m.vault.DebitFor(ComponentSessions, agent, asset, deposit, EntrySessionLock, id); err != nil {
		return nil, err
	}

	m.nonces[agent] = nonce + 1
	sess := &Session{
		ID:        id,
		Agent:     agent,
		Provider:  gw.Provider,
		Asset:     asset,
		Deposit:   new(big.Int).Set(deposit),
		Used:      new(big.Int),
		State:     SessionActive,
		Gateway:   slug,
		CreatedAt: now,
		ExpiresAt: now.Add(duration),
	}
	m.sessions[id] = sess
	m.indexOpen(gw.Provider, id)
	m.emit(SessionEventOpened, sess, nil)
	return sess.clone(), nil
}

// RecordUsage adds amount to the session's cumulative usage. Provider only,
// session must be ACTIVE and inside its window, and the new total must fit
// inside the deposit. Hot path: no payouts, no external calls.
func (m *Sessions) RecordUsage(provider common.Address, id string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if provider != sess.Provider {
		return ErrUnauthorized
	}
	if sess.State != SessionActive || sess.Expired(m.clock()) {
		return ErrInvalidState
	}
	total := new(big.Int).Add(sess.Used, amount)
	if total.Cmp(sess.Deposit) > 0 {
		return ErrUsageExceedsDeposit
	}
	sess.Used = total
	m.emit(SessionEventUsage, sess, nil)
	return nil
}

// SettleSession finalizes an ACTIVE session: the used amount is paid
// fee-split to the provider and the remainder refunded to the agent. The
// agent and provider may settle at any time; once the session has expired
// anyone may, so a lock can never be stranded by two silent parties.
func (m *Sessions) SettleSession(caller common.Address, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if sess.State != SessionActive {
		return ErrInvalidState
	}
	if caller != sess.Agent && caller != sess.Provider && !sess.Expired(m.clock()) {
		return ErrSessionNotExpired
	}

	refund := new(big.Int).Sub(sess.Deposit, sess.Used)

	var fee *big.Int
	if sess.Used.Sign() > 0 {
		var err error
		fee, err = m.vault.PayoutWithFee(ComponentSessions, sess.Provider, sess.Asset, sess.Used, EntrySessionPayout, id)
		if err != nil {
			return err
		}
	}
	if err := m.vault.CreditFor(ComponentSessions, sess.Agent, sess.Asset, refund, EntrySessionRefund, id); err != nil {
		return err
	}

	sess.State = SessionSettled
	m.unindexOpen(sess.Provider, id)
	m.emit(SessionEventSettled, sess, fee)
	return nil
}

// CancelSession aborts an untouched session and refunds the full deposit,
// fee-free. Agent only, and only while usage is still zero.
func (m *Sessions) CancelSession(caller common.Address, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if caller != sess.Agent {
		return ErrUnauthorized
	}
	if sess.State != SessionActive {
		return ErrInvalidState
	}
	if sess.Used.Sign() != 0 {
		return ErrInvalidState
	}

	if err := m.vault.CreditFor(ComponentSessions, sess.Agent, sess.Asset, sess.Deposit, EntrySessionRefund, id); err != nil {
		return err
	}
	sess.State = SessionCancelled
	m.unindexOpen(sess.Provider, id)
	m.emit(SessionEventCancelled, sess, nil)
	return nil
}

// RenewSession moves the expiry to now + extension. The new window replaces
// the old one rather than stacking on it, so repeated renewal can never
// push the expiry more than MaxSessionDuration past now.
func (m *Sessions) RenewSession(caller common.Address, id string, extension time.Duration) error {
	if extension <= 0 || extension > MaxSessionDuration {
		return ErrInvalidDuration
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if caller != sess.Agent {
		return ErrUnauthorized
	}
	if sess.State != SessionActive {
		return ErrInvalidState
	}
	sess.ExpiresAt = m.clock().Add(extension)
	m.emit(SessionEventRenewed, sess, nil)
	return nil
}

// Session returns a snapshot of the session record.
func (m *Sessions) Session(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess.clone(), nil
}

// Sessions snapshots every session.
func (m *Sessions) Sessions() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.clone())
	}
	return out
}

// OpenSessions lists the ids of the provider's currently open sessions.
func (m *Sessions) OpenSessions(provider common.Address) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.openByProvider[provider]))
	for id := range m.openByProvider[provider] {
		ids = append(ids, id)
	}
	return ids
}

// Gateway returns a snapshot of the gateway record.
func (m *Sessions) Gateway(slug string) (*Gateway, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gw, ok := m.gateways[slug]
	if !ok {
		return nil, ErrGatewayNotFound
	}
	return gw.clone(), nil
}

// Gateways snapshots every gateway.
func (m *Sessions) Gateways() []*Gateway {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Gateway, 0, len(m.gateways))
	for _, g := range m.gateways {
		out = append(out, g.clone())
	}
	return out
}

// RestoreGateway and RestoreSession seed state during boot recovery.
func (m *Sessions) RestoreGateway(gw *Gateway) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gateways[gw.Slug] = gw.clone()
}

func (m *Sessions) RestoreSession(sess *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = sess.clone()
	if sess.State == SessionActive {
		m.indexOpen(sess.Provider, sess.ID)
	}
}

// RestoreNonce seeds a per-agent nonce floor during boot recovery.
func (m *Sessions) RestoreNonce(agent common.Address, next uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if next > m.nonces[agent] {
		m.nonces[agent] = next
	}
}

func (m *Sessions) indexOpen(provider common.Address, id string) {
	set := m.openByProvider[provider]
	if set == nil {
		set = make(map[string]struct{})
		m.openByProvider[provider] = set
	}
	set[id] = struct{}{}
}

func (m *Sessions) unindexOpen(provider common.Address, id string) {
	if set := m.openByProvider[provider]; set != nil {
		delete(set, id)
		if len(set) == 0 {
			delete(m.openByProvider, provider)
		}
	}
}

func (m *Sessions) emit(kind string, sess *Session, fee *big.Int) {
	if m.observer == nil {
		return
	}
	m.observer(SessionEvent{Kind: kind, Session: sess.clone(), Fee: fee})
}

// sessionID derives the session identifier from its participants, the
// agent's nonce and the open time. Nonce and timestamp make the hash unique
// even for identical participants opening back to back.
func sessionID(agent, provider common.Address, slug string, nonce uint64, at time.Time) string {
	buf := make([]byte, 0, 2*common.AddressLength+len(slug)+16)
	buf = append(buf, agent.Bytes()...)
	buf = append(buf, provider.Bytes()...)
	buf = append(buf, slug...)
	buf = binary.BigEndian.AppendUint64(buf, nonce)
	buf = binary.BigEndian.AppendUint64(buf, uint64(at.Unix()))
	return hex.EncodeToString(crypto.Keccak256(buf))
}
