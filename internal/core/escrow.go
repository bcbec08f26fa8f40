package core

import (
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DealState is the escrow lifecycle state. Transitions are one-way; a
// terminal state is never re-entered.
type DealState string

const (
	DealLocked    DealState = "LOCKED"
	DealVerifying DealState = "VERIFYING"
	DealDispute   DealState = "DISPUTE"
	DealCompleted DealState = "COMPLETED"
	DealRefunded  DealState = "REFUNDED"
)

// IsTerminal reports whether the state admits no further transitions.
func (s DealState) IsTerminal() bool {
	return s == DealCompleted || s == DealRefunded
}

// Deal is an escrowed buyer-to-seller payment. Funds are debited from the
// buyer at creation and held until a terminal transition pays out.
type Deal struct {
	ID          string
	Buyer       common.Address
	Seller      common.Address
	Asset       common.Address
	Amount      *big.Int
	State       DealState
	ResultRef   string
	JudgmentRef string
	Metadata    string
	ParentID    string
	ChildIDs    []string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

func (d *Deal) clone() *Deal {
	cp := *d
	cp.Amount = new(big.Int).Set(d.Amount)
	cp.ChildIDs = append([]string(nil), d.ChildIDs...)
	return &cp
}

// DealEvent is emitted to the escrow observer after every committed
// transition, with a snapshot of the deal and the fee taken (nil when the
// transition moved no funds or paid fee-free).
type DealEvent struct {
	Kind string
	Deal *Deal
	Fee  *big.Int
}

const (
	DealEventCreated  = "created"
	DealEventWork     = "work_submitted"
	DealEventDisputed = "disputed"
	DealEventResolved = "resolved"
	DealEventReleased = "released"
	DealEventRefunded = "refunded"
)

// Escrow is the deal state machine. It never holds funds itself; every
// debit and payout goes through the vault under the escrow component
// identity, so the balance table stays the single point of truth.
type Escrow struct {
	mu       sync.Mutex
	clock    Clock
	cfg      *Config
	vault    *Vault
	deals    map[string]*Deal
	observer func(DealEvent)
}

func NewEscrow(cfg *Config, vault *Vault, clock Clock) *Escrow {
	return &Escrow{
		clock: clock,
		cfg:   cfg,
		vault: vault,
		deals: make(map[string]*Deal),
	}
}

// SetObserver installs the event observer, invoked while the transition is
// still serialized.
func (e *Escrow) SetObserver(fn func(DealEvent)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observer = fn
}

// CreateDeal locks amount of the buyer's balance into a new deal. The id is
// caller-chosen and must be unused. A nonzero parentID links the deal into
// the parent's child list for provenance; parent settlement is unaffected.
func (e *Escrow) CreateDeal(buyer common.Address, id string, seller, asset common.Address, amount *big.Int, metadata, parentID string, expiresAt time.Time) (*Deal, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	if seller == (common.Address{}) {
		return nil, ErrInvalidAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if len(metadata) > MaxDealMetadata {
		return nil, ErrMetadataTooLarge
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock()
	if !expiresAt.IsZero() && !expiresAt.After(now) {
		return nil, ErrInvalidExpiry
	}
	if _, ok := e.deals[id]; ok {
		return nil, ErrDealExists
	}

	var parent *Deal
	if parentID != "" {
		parent = e.deals[parentID]
		if parent == nil {
			return nil, ErrDealNotFound
		}
		if parent.Buyer != buyer {
			return nil, ErrUnauthorized
		}
		if len(parent.ChildIDs) >= MaxDealChildren {
			return nil, ErrTooManyChildren
		}
	}

	// Last fallible step: after the debit succeeds nothing below can fail.
	if err := e.vault.DebitFor(ComponentEscrow, buyer, asset, amount, EntryDealLock, id); err != nil {
		return nil, err
	}

	deal := &Deal{
		ID:        id,
		Buyer:     buyer,
		Seller:    seller,
		Asset:     asset,
		Amount:    new(big.Int).Set(amount),
		State:     DealLocked,
		Metadata:  metadata,
		ParentID:  parentID,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}
	e.deals[id] = deal
	if parent != nil {
		parent.ChildIDs = append(parent.ChildIDs, id)
	}
	e.emit(DealEventCreated, deal, nil)
	return deal.clone(), nil
}

// SubmitWork moves a LOCKED deal to VERIFYING and records the seller's
// result reference.
func (e *Escrow) SubmitWork(caller common.Address, id, resultRef string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	deal, ok := e.deals[id]
	if !ok {
		return ErrDealNotFound
	}
	if caller != deal.Seller {
		return ErrUnauthorized
	}
	if deal.State != DealLocked {
		return ErrInvalidState
	}
	deal.State = DealVerifying
	deal.ResultRef = resultRef
	e.emit(DealEventWork, deal, nil)
	return nil
}

// RaiseDispute escalates a LOCKED or VERIFYING deal to DISPUTE. Either
// party may escalate.
func (e *Escrow) RaiseDispute(caller common.Address, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	deal, ok := e.deals[id]
	if !ok {
		return ErrDealNotFound
	}
	if caller != deal.Buyer && caller != deal.Seller {
		return ErrUnauthorized
	}
	if deal.State != DealLocked && deal.State != DealVerifying {
		return ErrInvalidState
	}
	deal.State = DealDispute
	e.emit(DealEventDisputed, deal, nil)
	return nil
}

// ResolveDispute is the arbiter's terminal verdict on a DISPUTE deal.
// Releasing pays the seller fee-split; refusing refunds the buyer in full,
// fee-free.
func (e *Escrow) ResolveDispute(caller common.Address, id string, releaseToSeller bool, judgmentRef string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	deal, ok := e.deals[id]
	if !ok {
		return ErrDealNotFound
	}
	if caller != e.cfg.Arbiter() || caller == (common.Address{}) {
		return ErrUnauthorized
	}
	if deal.State != DealDispute {
		return ErrInvalidState
	}

	deal.JudgmentRef = judgmentRef
	if releaseToSeller {
		fee, err := e.vault.PayoutWithFee(ComponentEscrow, deal.Seller, deal.Asset, deal.Amount, EntryDealPayout, id)
		if err != nil {
			return err
		}
		deal.State = DealCompleted
		e.emit(DealEventResolved, deal, fee)
		return nil
	}

	if err := e.vault.CreditFor(ComponentEscrow, deal.Buyer, deal.Asset, deal.Amount, EntryDealRefund, id); err != nil {
		return err
	}
	deal.State = DealRefunded
	e.emit(DealEventResolved, deal, nil)
	return nil
}

// Release completes a LOCKED or VERIFYING deal in the seller's favor. The
// buyer, the arbiter, and the configured validation bridge are the
// authorized callers. A nonzero expiry time-locks release until it passes.
func (e *Escrow) Release(caller common.Address, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	deal, ok := e.deals[id]
	if !ok {
		return ErrDealNotFound
	}
	if !e.canRelease(caller, deal) {
		return ErrUnauthorized
	}
	if deal.State != DealLocked && deal.State != DealVerifying {
		return ErrInvalidState
	}
	if !deal.ExpiresAt.IsZero() && e.clock().Before(deal.ExpiresAt) {
		return ErrTimeLocked
	}

	fee, err := e.vault.PayoutWithFee(ComponentEscrow, deal.Seller, deal.Asset, deal.Amount, EntryDealPayout, id)
	if err != nil {
		return err
	}
	deal.State = DealCompleted
	e.emit(DealEventReleased, deal, fee)
	return nil
}

// Refund returns the full escrowed amount to the buyer. Seller-initiated
// and always fee-free.
func (e *Escrow) Refund(caller common.Address, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	deal, ok := e.deals[id]
	if !ok {
		return ErrDealNotFound
	}
	if caller != deal.Seller {
		return ErrUnauthorized
	}
	if deal.State != DealLocked && deal.State != DealVerifying {
		return ErrInvalidState
	}

	if err := e.vault.CreditFor(ComponentEscrow, deal.Buyer, deal.Asset, deal.Amount, EntryDealRefund, id); err != nil {
		return err
	}
	deal.State = DealRefunded
	e.emit(DealEventRefunded, deal, nil)
	return nil
}

// Deal returns a snapshot of the deal record.
func (e *Escrow) Deal(id string) (*Deal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	deal, ok := e.deals[id]
	if !ok {
		return nil, ErrDealNotFound
	}
	return deal.clone(), nil
}

// Deals snapshots every deal, for persistence and the read API.
func (e *Escrow) Deals() []*Deal {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Deal, 0, len(e.deals))
	for _, d := range e.deals {
		out = append(out, d.clone())
	}
	return out
}

// RestoreDeal seeds a deal during boot recovery. Not validated, not
// journaled.
func (e *Escrow) RestoreDeal(deal *Deal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deals[deal.ID] = deal.clone()
}

func (e *Escrow) canRelease(caller common.Address, deal *Deal) bool {
	if caller == (common.Address{}) {
		return false
	}
	if caller == deal.Buyer {
		return true
	}
	if caller == e.cfg.Arbiter() {
		return true
	}
	return caller == e.cfg.ValidationBridge()
}

func (e *Escrow) emit(kind string, deal *Deal, fee *big.Int) {
	if e.observer == nil {
		return
	}
	e.observer(DealEvent{Kind: kind, Deal: deal.clone(), Fee: fee})
}
