package services

import (
	"context"
	"log"
	"time"

	"github.com/cartdotfun/settlement-backend/internal/core"
	"github.com/cartdotfun/settlement-backend/internal/events"
	"github.com/cartdotfun/settlement-backend/internal/metrics"
	"github.com/cartdotfun/settlement-backend/internal/models"
	"github.com/cartdotfun/settlement-backend/internal/repository"
	"github.com/cartdotfun/settlement-backend/internal/utils"
)

// Recorder subscribes to the engine's committed-event streams and writes
// them through to the database, NATS and Prometheus. The in-memory engine is
// authoritative; a write-through failure is logged and the row is repaired
// on the next transition touching it (every persist is a full upsert).
//
// A nil *Recorder is valid and records nothing, which keeps engine-level
// tests free of database plumbing.
type Recorder struct {
	balanceRepo    repository.BalanceRepository
	ledgerRepo     repository.LedgerEntryRepository
	dealRepo       repository.DealRepository
	sessionRepo    repository.SessionRepository
	settlementRepo repository.SettlementRepository

	engine *core.Engine
}

// NewRecorder creates a Recorder over the given repositories
func NewRecorder(
	engine *core.Engine,
	balanceRepo repository.BalanceRepository,
	ledgerRepo repository.LedgerEntryRepository,
	dealRepo repository.DealRepository,
	sessionRepo repository.SessionRepository,
	settlementRepo repository.SettlementRepository,
) *Recorder {
	return &Recorder{
		balanceRepo:    balanceRepo,
		ledgerRepo:     ledgerRepo,
		dealRepo:       dealRepo,
		sessionRepo:    sessionRepo,
		settlementRepo: settlementRepo,
		engine:         engine,
	}
}

// Attach registers the recorder on every engine event stream
func (r *Recorder) Attach() {
	if r == nil {
		return
	}
	r.engine.Vault.SetObserver(r.onEntry)
	r.engine.Escrow.SetObserver(r.onDealEvent)
	r.engine.Sessions.SetObserver(r.onSessionEvent)
	r.engine.CrossChain.SetObserver(r.onSettlementEvent)
}

// onEntry persists one journal entry and the resulting balance row
func (r *Recorder) onEntry(e core.Entry) {
	ctx := context.Background()

	entry := &models.LedgerEntry{
		Kind:      string(e.Kind),
		Owner:     utils.NormalizeAddress(e.Owner),
		Asset:     utils.NormalizeAddress(e.Asset),
		Delta:     utils.FormatAmount(e.Delta),
		Ref:       e.Ref,
		CreatedAt: e.At,
	}
	if err := r.ledgerRepo.Create(ctx, entry); err != nil {
		log.Printf("❌ Failed to persist ledger entry (%s %s): %v", e.Kind, e.Owner.Hex(), err)
	}

	// The entry carries the post-mutation balance. The vault calls the
	// observer while its mutex is held, so reading it back would deadlock.
	row := &models.Balance{
		Owner:     utils.NormalizeAddress(e.Owner),
		Asset:     utils.NormalizeAddress(e.Asset),
		Amount:    utils.FormatAmount(e.Balance),
		UpdatedAt: e.At,
	}
	if err := r.balanceRepo.Upsert(ctx, row); err != nil {
		log.Printf("❌ Failed to persist balance for %s: %v", e.Owner.Hex(), err)
	}

	metrics.LedgerEntries.WithLabelValues(string(e.Kind)).Inc()
	switch e.Kind {
	case core.EntryDeposit:
		metrics.DepositsProcessed.Inc()
	case core.EntryWithdraw:
		metrics.WithdrawalsProcessed.Inc()
	}

	events.Publish("vault", string(e.Kind), entry)
}

// onDealEvent persists the deal snapshot after every committed transition
func (r *Recorder) onDealEvent(e core.DealEvent) {
	ctx := context.Background()

	row := models.DealFromCore(e.Deal)
	row.UpdatedAt = time.Now().UTC()
	if err := r.dealRepo.Upsert(ctx, row); err != nil {
		log.Printf("❌ Failed to persist deal %s: %v", e.Deal.ID, err)
	}

	metrics.DealTransitions.WithLabelValues(e.Kind).Inc()
	switch {
	case e.Kind == core.DealEventCreated:
		metrics.OpenDeals.Inc()
	case e.Deal.State.IsTerminal():
		metrics.OpenDeals.Dec()
	}

	events.Publish("deal", e.Kind, row)
}

// onSessionEvent persists the session snapshot after every committed
// transition
func (r *Recorder) onSessionEvent(e core.SessionEvent) {
	ctx := context.Background()

	row := models.SessionFromCore(e.Session)
	row.UpdatedAt = time.Now().UTC()
	if err := r.sessionRepo.Upsert(ctx, row); err != nil {
		log.Printf("❌ Failed to persist session %s: %v", e.Session.ID, err)
	}

	metrics.SessionEvents.WithLabelValues(e.Kind).Inc()
	switch e.Kind {
	case core.SessionEventOpened:
		metrics.OpenSessions.Inc()
	case core.SessionEventSettled, core.SessionEventCancelled:
		metrics.OpenSessions.Dec()
	}

	events.Publish("session", e.Kind, row)
}

// onSettlementEvent records a committed cross-chain settlement. The insert
// doubles as the durable replay guard: the external id is the primary key.
func (r *Recorder) onSettlementEvent(e core.SettlementEvent) {
	ctx := context.Background()

	row := &models.CrossChainSettlement{
		ExternalID: e.ExternalID,
		Agent:      utils.NormalizeAddress(e.Agent),
		Provider:   utils.NormalizeAddress(e.Provider),
		Asset:      utils.NormalizeAddress(e.Asset),
		Amount:     utils.FormatAmount(e.Amount),
		Fee:        utils.FormatAmount(e.Fee),
		CreatedAt:  e.At,
	}
	if err := r.settlementRepo.Create(ctx, row); err != nil {
		log.Printf("❌ Failed to persist settlement %s: %v", e.ExternalID, err)
	}

	metrics.CrossChainSettlements.Inc()
	events.Publish("crosschain", "settled", row)
}
