package models

import (
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cartdotfun/settlement-backend/internal/core"
	"github.com/cartdotfun/settlement-backend/internal/utils"
)

// All amounts are stored as decimal strings (BigInt as string) - values can
// exceed 2^53 and must never pass through floats.

// Balance is the persisted custodial balance row, keyed by normalized
// lowercase (owner, asset). The in-memory vault is authoritative; these rows
// are the write-through copy used for boot recovery and the read API.
type Balance struct {
	ID        uint      `json:"-" gorm:"primaryKey;autoIncrement"`
	Owner     string    `json:"owner" gorm:"type:varchar(42);not null;uniqueIndex:idx_owner_asset,priority:1"`
	Asset     string    `json:"asset" gorm:"type:varchar(42);not null;uniqueIndex:idx_owner_asset,priority:2"`
	Amount    string    `json:"amount" gorm:"type:varchar(78);not null"` // BigInt as string
	UpdatedAt time.Time `json:"updated_at"`
}

// LedgerEntry is one committed balance mutation, appended from the vault
// journal. Delta is signed.
type LedgerEntry struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Kind      string    `json:"kind" gorm:"type:varchar(32);not null;index"`
	Owner     string    `json:"owner" gorm:"type:varchar(42);not null;index"`
	Asset     string    `json:"asset" gorm:"type:varchar(42);not null"`
	Delta     string    `json:"delta" gorm:"type:varchar(78);not null"` // signed BigInt as string
	Ref       string    `json:"ref" gorm:"type:varchar(128);index"`    // deal/session/external id
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// Deal is the persisted escrow record.
type Deal struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(128)"`
	Buyer       string    `json:"buyer" gorm:"type:varchar(42);not null;index"`
	Seller      string    `json:"seller" gorm:"type:varchar(42);not null;index"`
	Asset       string    `json:"asset" gorm:"type:varchar(42);not null"`
	Amount      string    `json:"amount" gorm:"type:varchar(78);not null"` // BigInt as string
	State       string    `json:"state" gorm:"type:varchar(16);not null;index"`
	ResultRef   string    `json:"result_ref" gorm:"type:text"`
	JudgmentRef string    `json:"judgment_ref" gorm:"type:text"`
	Metadata    string    `json:"metadata" gorm:"type:text"`
	ParentID    string    `json:"parent_id" gorm:"type:varchar(128);index"`
	ChildIDs    string    `json:"child_ids" gorm:"type:text"` // comma-joined
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Session is the persisted metered-session record.
type Session struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Agent     string    `json:"agent" gorm:"type:varchar(42);not null;index"`
	Provider  string    `json:"provider" gorm:"type:varchar(42);not null;index"`
	Asset     string    `json:"asset" gorm:"type:varchar(42);not null"`
	Deposit   string    `json:"deposit" gorm:"type:varchar(78);not null"` // BigInt as string
	Used      string    `json:"used" gorm:"type:varchar(78);not null"`
	State     string    `json:"state" gorm:"type:varchar(16);not null;index"`
	Gateway   string    `json:"gateway" gorm:"type:varchar(64);not null;index"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Gateway is the persisted gateway registration. Slugs are permanent.
type Gateway struct {
	Slug            string    `json:"slug" gorm:"primaryKey;type:varchar(64)"`
	Provider        string    `json:"provider" gorm:"type:varchar(42);not null;index"`
	PricePerRequest string    `json:"price_per_request" gorm:"type:varchar(78);not null"` // advisory, BigInt as string
	Active          bool      `json:"active" gorm:"not null;default:true"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CrossChainSettlement records a processed external settlement. External ids
// are write-once: a row existing means the id is burned forever.
type CrossChainSettlement struct {
	ExternalID string    `json:"external_id" gorm:"primaryKey;type:varchar(128)"`
	Agent      string    `json:"agent" gorm:"type:varchar(42);not null;index"`
	Provider   string    `json:"provider" gorm:"type:varchar(42);not null;index"`
	Asset      string    `json:"asset" gorm:"type:varchar(42);not null"`
	Amount     string    `json:"amount" gorm:"type:varchar(78);not null"` // BigInt as string
	Fee        string    `json:"fee" gorm:"type:varchar(78);not null"`
	CreatedAt  time.Time `json:"created_at"`
}

// ProtocolConfig is owner-gated single-value storage for the fee policy and
// authorized addresses, keyed by config name.
type ProtocolConfig struct {
	ConfigKey   string    `json:"config_key" gorm:"primaryKey;type:varchar(64)"`
	ConfigValue string    `json:"config_value" gorm:"type:varchar(128);not null"`
	UpdatedBy   string    `json:"updated_by" gorm:"type:varchar(42)"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProtocolConfig keys.
const (
	ConfigKeyFeeRateBps       = "fee_rate_bps"
	ConfigKeyFeeRecipient     = "fee_recipient"
	ConfigKeyArbiter          = "arbiter"
	ConfigKeyRelay            = "relay"
	ConfigKeyValidationBridge = "validation_bridge"
	ConfigKeySettlementAsset  = "settlement_asset"
)

// DealFromCore converts a core deal snapshot into its persisted form.
func DealFromCore(d *core.Deal) *Deal {
	return &Deal{
		ID:          d.ID,
		Buyer:       utils.NormalizeAddress(d.Buyer),
		Seller:      utils.NormalizeAddress(d.Seller),
		Asset:       utils.NormalizeAddress(d.Asset),
		Amount:      utils.FormatAmount(d.Amount),
		State:       string(d.State),
		ResultRef:   d.ResultRef,
		JudgmentRef: d.JudgmentRef,
		Metadata:    d.Metadata,
		ParentID:    d.ParentID,
		ChildIDs:    joinIDs(d.ChildIDs),
		ExpiresAt:   d.ExpiresAt,
		CreatedAt:   d.CreatedAt,
	}
}

// ToCore rebuilds the in-memory deal from a persisted row.
func (m *Deal) ToCore() (*core.Deal, error) {
	amount, err := utils.ParseAmount(m.Amount)
	if err != nil {
		return nil, err
	}
	return &core.Deal{
		ID:          m.ID,
		Buyer:       common.HexToAddress(m.Buyer),
		Seller:      common.HexToAddress(m.Seller),
		Asset:       common.HexToAddress(m.Asset),
		Amount:      amount,
		State:       core.DealState(m.State),
		ResultRef:   m.ResultRef,
		JudgmentRef: m.JudgmentRef,
		Metadata:    m.Metadata,
		ParentID:    m.ParentID,
		ChildIDs:    splitIDs(m.ChildIDs),
		ExpiresAt:   m.ExpiresAt,
		CreatedAt:   m.CreatedAt,
	}, nil
}

// SessionFromCore converts a core session snapshot into its persisted form.
func SessionFromCore(s *core.Session) *Session {
	return &Session{
		ID:        s.ID,
		Agent:     utils.NormalizeAddress(s.Agent),
		Provider:  utils.NormalizeAddress(s.Provider),
		Asset:     utils.NormalizeAddress(s.Asset),
		Deposit:   utils.FormatAmount(s.Deposit),
		Used:      utils.FormatAmount(s.Used),
		State:     string(s.State),
		Gateway:   s.Gateway,
		ExpiresAt: s.ExpiresAt,
		CreatedAt: s.CreatedAt,
	}
}

// ToCore rebuilds the in-memory session from a persisted row.
func (m *Session) ToCore() (*core.Session, error) {
	deposit, err := utils.ParseAmount(m.Deposit)
	if err != nil {
		return nil, err
	}
	used, err := utils.ParseAmount(m.Used)
	if err != nil {
		return nil, err
	}
	return &core.Session{
		ID:        m.ID,
		Agent:     common.HexToAddress(m.Agent),
		Provider:  common.HexToAddress(m.Provider),
		Asset:     common.HexToAddress(m.Asset),
		Deposit:   deposit,
		Used:      used,
		State:     core.SessionState(m.State),
		Gateway:   m.Gateway,
		ExpiresAt: m.ExpiresAt,
		CreatedAt: m.CreatedAt,
	}, nil
}

// GatewayFromCore converts a core gateway snapshot into its persisted form.
func GatewayFromCore(g *core.Gateway) *Gateway {
	return &Gateway{
		Slug:            g.Slug,
		Provider:        utils.NormalizeAddress(g.Provider),
		PricePerRequest: utils.FormatAmount(g.PricePerRequest),
		Active:          g.Active,
		CreatedAt:       g.CreatedAt,
	}
}

// ToCore rebuilds the in-memory gateway from a persisted row.
func (m *Gateway) ToCore() (*core.Gateway, error) {
	price, err := utils.ParseAmount(m.PricePerRequest)
	if err != nil {
		return nil, err
	}
	return &core.Gateway{
		Slug:            m.Slug,
		Provider:        common.HexToAddress(m.Provider),
		PricePerRequest: price,
		Active:          m.Active,
		CreatedAt:       m.CreatedAt,
	}, nil
}

// BalanceAmount parses the stored amount. Corrupt rows surface the parse
// error to the caller instead of silently zeroing a balance.
func (m *Balance) BalanceAmount() (*big.Int, error) {
	return utils.ParseAmount(m.Amount)
}

func joinIDs(ids []string) string {
	return strings.Join(ids, ",")
}

func splitIDs(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
