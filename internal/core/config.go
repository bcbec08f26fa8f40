package core

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Hard limits shared by every deployment. These are protocol constants, not
// tunables: changing them changes settlement semantics.
const (
	// MaxFeeRateBps is the hard cap on the protocol fee, enforced when the
	// rate is configured rather than at distribution time.
	MaxFeeRateBps = 1000 // 10%

	// MaxSessionDuration bounds openSession/renewSession windows.
	MaxSessionDuration = 7 * 24 * time.Hour

	// MaxDealMetadata caps the opaque metadata blob stored per deal.
	MaxDealMetadata = 4096

	// MaxDealChildren caps the number of child deals per parent.
	MaxDealChildren = 32

	// MaxGatewaySlug caps the length of a gateway slug.
	MaxGatewaySlug = 64
)

// Config is the owner-gated singleton configuration shared by the vault and
// the state machines. It is injected at wiring time rather than read as an
// ambient global; mutation goes through the setters only.
type Config struct {
	mu sync.RWMutex

	owner            common.Address
	arbiter          common.Address
	relay            common.Address
	validationBridge common.Address

	feeRateBps   uint32
	feeRecipient common.Address

	// settlementAsset is the asset debited/credited by the cross-chain
	// settlement adapter.
	settlementAsset common.Address
}

// NewConfig creates a configuration owned by the given address.
func NewConfig(owner common.Address) *Config {
	return &Config{owner: owner}
}

func (c *Config) Owner() common.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.owner
}

func (c *Config) Arbiter() common.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.arbiter
}

func (c *Config) Relay() common.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.relay
}

func (c *Config) ValidationBridge() common.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.validationBridge
}

// FeePolicy returns the current rate and recipient as one consistent pair.
func (c *Config) FeePolicy() (uint32, common.Address) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.feeRateBps, c.feeRecipient
}

func (c *Config) SettlementAsset() common.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settlementAsset
}

func (c *Config) isOwner(caller common.Address) bool {
	return caller == c.owner && caller != (common.Address{})
}

// SetFeeRate sets the protocol fee rate in basis points. The 10% hard cap is
// enforced here, at configuration time.
func (c *Config) SetFeeRate(caller common.Address, rateBps uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isOwner(caller) {
		return ErrUnauthorized
	}
	if rateBps > MaxFeeRateBps {
		return ErrFeeTooHigh
	}
	c.feeRateBps = rateBps
	return nil
}

// SetFeeRecipient sets the fee recipient. The zero address disables fee
// collection entirely.
func (c *Config) SetFeeRecipient(caller, recipient common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isOwner(caller) {
		return ErrUnauthorized
	}
	c.feeRecipient = recipient
	return nil
}

func (c *Config) SetArbiter(caller, arbiter common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isOwner(caller) {
		return ErrUnauthorized
	}
	c.arbiter = arbiter
	return nil
}

func (c *Config) SetRelay(caller, relay common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isOwner(caller) {
		return ErrUnauthorized
	}
	c.relay = relay
	return nil
}

func (c *Config) SetValidationBridge(caller, bridge common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isOwner(caller) {
		return ErrUnauthorized
	}
	c.validationBridge = bridge
	return nil
}

func (c *Config) SetSettlementAsset(caller, asset common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isOwner(caller) {
		return ErrUnauthorized
	}
	c.settlementAsset = asset
	return nil
}

// Restore applies persisted configuration without owner checks. Used only by
// boot recovery before the service starts taking requests.
func (c *Config) Restore(arbiter, relay, bridge, feeRecipient, settlementAsset common.Address, feeRateBps uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.arbiter = arbiter
	c.relay = relay
	c.validationBridge = bridge
	c.feeRecipient = feeRecipient
	c.settlementAsset = settlementAsset
	if feeRateBps <= MaxFeeRateBps {
		c.feeRateBps = feeRateBps
	}
}
