package core

import (
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// SettlementEvent is emitted after a committed cross-chain settlement.
type SettlementEvent struct {
	ExternalID string
	Agent      common.Address
	Provider   common.Address
	Asset      common.Address
	Amount     *big.Int
	Fee        *big.Int
	At         time.Time
}

// CrossChain is the settlement adapter for sessions that originated on a
// foreign chain. A single configured relay address asserts "agent owes
// provider amount for external session X" and the adapter moves the funds
// from the agent's custodial balance. The payload is trusted as-is; the
// only protections are relay authentication, balance sufficiency and the
// write-once replay guard on external ids.
type CrossChain struct {
	mu        sync.Mutex
	clock     Clock
	cfg       *Config
	vault     *Vault
	processed map[string]bool
	observer  func(SettlementEvent)
}

func NewCrossChain(cfg *Config, vault *Vault, clock Clock) *CrossChain {
	return &CrossChain{
		clock:     clock,
		cfg:       cfg,
		vault:     vault,
		processed: make(map[string]bool),
	}
}

func (x *CrossChain) SetObserver(fn func(SettlementEvent)) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.observer = fn
}

// SettleFromSolana debits the agent and pays the provider fee-split for an
// externally metered session. The external id is marked processed in the
// same critical section as the debit, so a replayed id can never move funds
// twice.
func (x *CrossChain) SettleFromSolana(caller common.Address, externalID string, agent, provider common.Address, amount *big.Int) (*big.Int, error) {
	if externalID == "" {
		return nil, ErrInvalidID
	}
	if agent == (common.Address{}) || provider == (common.Address{}) {
		return nil, ErrInvalidAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if caller != x.cfg.Relay() || caller == (common.Address{}) {
		return nil, ErrUnauthorized
	}
	asset := x.cfg.SettlementAsset()
	if asset == (common.Address{}) {
		return nil, ErrNoSettlementAsset
	}
	if x.processed[externalID] {
		return nil, ErrAlreadyProcessed
	}

	if err := x.vault.DebitFor(ComponentCrossChain, agent, asset, amount, EntryExternalDebit, externalID); err != nil {
		return nil, err
	}
	x.processed[externalID] = true

	fee, err := x.vault.PayoutWithFee(ComponentCrossChain, provider, asset, amount, EntryExternalPayout, externalID)
	if err != nil {
		return nil, err
	}

	if x.observer != nil {
		x.observer(SettlementEvent{
			ExternalID: externalID,
			Agent:      agent,
			Provider:   provider,
			Asset:      asset,
			Amount:     new(big.Int).Set(amount),
			Fee:        fee,
			At:         x.clock(),
		})
	}
	return fee, nil
}

// Processed reports whether an external id has already been settled.
func (x *CrossChain) Processed(externalID string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.processed[externalID]
}

// RestoreProcessed seeds the replay guard during boot recovery.
func (x *CrossChain) RestoreProcessed(externalID string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.processed[externalID] = true
}
