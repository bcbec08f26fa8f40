package core

import "github.com/ethereum/go-ethereum/common"

// Engine wires the vault, escrow, session manager and cross-chain adapter
// around one shared configuration. Construction authorizes the two state
// machines and the adapter as the only privileged vault callers.
type Engine struct {
	Config     *Config
	Vault      *Vault
	Escrow     *Escrow
	Sessions   *Sessions
	CrossChain *CrossChain
}

func NewEngine(owner common.Address, clock Clock) *Engine {
	if clock == nil {
		clock = SystemClock
	}
	cfg := NewConfig(owner)
	vault := NewVault(cfg, clock)
	vault.Authorize(ComponentEscrow)
	vault.Authorize(ComponentSessions)
	vault.Authorize(ComponentCrossChain)

	return &Engine{
		Config:     cfg,
		Vault:      vault,
		Escrow:     NewEscrow(cfg, vault, clock),
		Sessions:   NewSessions(cfg, vault, clock),
		CrossChain: NewCrossChain(cfg, vault, clock),
	}
}
