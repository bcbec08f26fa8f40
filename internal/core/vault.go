package core

import (
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Component identifies an internal state machine that is allowed to move
// other accounts' funds through the vault's privileged entry points. End
// users only ever touch their own balance via Deposit/Withdraw; everything
// else goes through an authorized component.
type Component string

const (
	ComponentEscrow     Component = "escrow"
	ComponentSessions   Component = "sessions"
	ComponentCrossChain Component = "crosschain"
)

// EntryKind classifies a committed balance mutation in the ledger journal.
type EntryKind string

const (
	EntryDeposit        EntryKind = "deposit"
	EntryWithdraw       EntryKind = "withdraw"
	EntryDealLock       EntryKind = "deal_lock"
	EntryDealPayout     EntryKind = "deal_payout"
	EntryDealRefund     EntryKind = "deal_refund"
	EntrySessionLock    EntryKind = "session_lock"
	EntrySessionPayout  EntryKind = "session_payout"
	EntrySessionRefund  EntryKind = "session_refund"
	EntryExternalDebit  EntryKind = "external_debit"
	EntryExternalPayout EntryKind = "external_payout"
	EntryFee            EntryKind = "fee"
)

// Entry is one committed balance mutation. Delta is signed: negative for
// debits, positive for credits. Balance is the owner's balance for the asset
// after the mutation, captured so observers never have to call back into the
// vault. Ref ties the entry to the deal, session or external settlement that
// caused it (empty for plain deposits/withdrawals).
type Entry struct {
	Kind    EntryKind
	Owner   common.Address
	Asset   common.Address
	Delta   *big.Int
	Balance *big.Int
	Ref     string
	At      time.Time
}

// Treasury is the external transfer leg of a withdrawal. It is invoked only
// after the debit has been committed (state before external interaction); a
// transfer failure does not roll the debit back - the payout is retried out
// of band against the journal.
type Treasury interface {
	Transfer(owner, asset common.Address, amount *big.Int) error
}

type balanceKey struct {
	Owner common.Address
	Asset common.Address
}

// Vault is the custodial balance ledger keyed by (owner, asset) and the
// single point of truth for who owns what. It is the exclusive mutator of
// balance state: the escrow and session state machines never write balances
// directly, they call the privileged entry points below under their
// component identity.
//
// All operations are serialized by one mutex, mirroring the one-at-a-time
// execution model the settlement semantics are specified against. Every
// operation validates completely before mutating, so a failed call leaves no
// partial state.
type Vault struct {
	mu         sync.Mutex
	clock      Clock
	cfg        *Config
	balances   map[balanceKey]*big.Int
	authorized map[Component]bool

	treasury Treasury
	observer func(Entry)
}

// NewVault creates an empty vault.
func NewVault(cfg *Config, clock Clock) *Vault {
	return &Vault{
		clock:      clock,
		cfg:        cfg,
		balances:   make(map[balanceKey]*big.Int),
		authorized: make(map[Component]bool),
	}
}

// Authorize grants a component access to the privileged mutation entry
// points. Called once at wiring time.
func (v *Vault) Authorize(c Component) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.authorized[c] = true
}

// SetTreasury installs the external transfer hook for withdrawals. A nil
// treasury leaves the vault in custody-only mode.
func (v *Vault) SetTreasury(t Treasury) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.treasury = t
}

// SetObserver installs the journal observer, invoked once per committed
// entry while the operation is still serialized. The observer must not call
// back into the vault.
func (v *Vault) SetObserver(fn func(Entry)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.observer = fn
}

// Deposit credits the caller's own balance. Funds custody is assumed to have
// been received by the time this is called.
func (v *Vault) Deposit(owner, asset common.Address, amount *big.Int) error {
	if owner == (common.Address{}) {
		return ErrInvalidAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.credit(owner, asset, amount)
	v.emit(EntryDeposit, owner, asset, amount, "")
	return nil
}

// Withdraw debits the caller's own balance and then hands the amount to the
// treasury for the external transfer. The debit is committed first so a
// reentrant transfer callback can never observe (or double-spend) the
// pre-debit balance.
func (v *Vault) Withdraw(owner, asset common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	v.mu.Lock()
	if err := v.debit(owner, asset, amount); err != nil {
		v.mu.Unlock()
		return err
	}
	v.emit(EntryWithdraw, owner, asset, new(big.Int).Neg(amount), "")
	treasury := v.treasury
	v.mu.Unlock()

	if treasury != nil {
		return treasury.Transfer(owner, asset, amount)
	}
	return nil
}

// Balance returns the free balance for (owner, asset). Pure read.
func (v *Vault) Balance(owner, asset common.Address) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	if b, ok := v.balances[balanceKey{owner, asset}]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// BalanceView is a snapshot row used by persistence and the read API.
type BalanceView struct {
	Owner  common.Address
	Asset  common.Address
	Amount *big.Int
}

// Balances snapshots every non-zero balance.
func (v *Vault) Balances() []BalanceView {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]BalanceView, 0, len(v.balances))
	for k, b := range v.balances {
		if b.Sign() == 0 {
			continue
		}
		out = append(out, BalanceView{Owner: k.Owner, Asset: k.Asset, Amount: new(big.Int).Set(b)})
	}
	return out
}

// RestoreBalance seeds a balance during boot recovery. Not journaled.
func (v *Vault) RestoreBalance(owner, asset common.Address, amount *big.Int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.balances[balanceKey{owner, asset}] = new(big.Int).Set(amount)
}

// DebitFor removes amount from owner's balance on behalf of an authorized
// component (locking funds into a deal or session, or settling externally).
func (v *Vault) DebitFor(c Component, owner, asset common.Address, amount *big.Int, kind EntryKind, ref string) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.authorized[c] {
		return ErrComponentUnauthorized
	}
	if err := v.debit(owner, asset, amount); err != nil {
		return err
	}
	v.emit(kind, owner, asset, new(big.Int).Neg(amount), ref)
	return nil
}

// CreditFor adds amount to owner's balance on behalf of an authorized
// component (refunds and other fee-free credits).
func (v *Vault) CreditFor(c Component, owner, asset common.Address, amount *big.Int, kind EntryKind, ref string) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.authorized[c] {
		return ErrComponentUnauthorized
	}
	if amount.Sign() == 0 {
		return nil
	}
	v.credit(owner, asset, amount)
	v.emit(kind, owner, asset, amount, ref)
	return nil
}

// PayoutWithFee credits payee with gross minus the protocol fee and the fee
// recipient with the fee, under the single floor-division rounding rule. The
// skim is skipped entirely when the rate is zero or no recipient is set.
// Returns the fee actually taken.
func (v *Vault) PayoutWithFee(c Component, payee, asset common.Address, gross *big.Int, kind EntryKind, ref string) (*big.Int, error) {
	if gross == nil || gross.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.authorized[c] {
		return nil, ErrComponentUnauthorized
	}
	if gross.Sign() == 0 {
		return new(big.Int), nil
	}

	rateBps, recipient := v.cfg.FeePolicy()
	fee := new(big.Int)
	if recipient != (common.Address{}) {
		fee = ComputeFee(gross, rateBps)
	}
	net := new(big.Int).Sub(gross, fee)

	v.credit(payee, asset, net)
	v.emit(kind, payee, asset, net, ref)
	if fee.Sign() > 0 {
		v.credit(recipient, asset, fee)
		v.emit(EntryFee, recipient, asset, fee, ref)
	}
	return fee, nil
}

// credit and debit are the only two functions that touch the balance table.
func (v *Vault) credit(owner, asset common.Address, amount *big.Int) {
	key := balanceKey{owner, asset}
	if b, ok := v.balances[key]; ok {
		b.Add(b, amount)
		return
	}
	v.balances[key] = new(big.Int).Set(amount)
}

func (v *Vault) debit(owner, asset common.Address, amount *big.Int) error {
	key := balanceKey{owner, asset}
	b, ok := v.balances[key]
	if !ok || b.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	b.Sub(b, amount)
	return nil
}

func (v *Vault) emit(kind EntryKind, owner, asset common.Address, delta *big.Int, ref string) {
	if v.observer == nil {
		return
	}
	balance := new(big.Int)
	if b, ok := v.balances[balanceKey{owner, asset}]; ok {
		balance.Set(b)
	}
	v.observer(Entry{
		Kind:    kind,
		Owner:   owner,
		Asset:   asset,
		Delta:   new(big.Int).Set(delta),
		Balance: balance,
		Ref:     ref,
		At:      v.clock(),
	})
}
