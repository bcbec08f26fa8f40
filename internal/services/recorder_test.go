package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cartdotfun/settlement-backend/internal/core"
	"github.com/cartdotfun/settlement-backend/internal/dto"
	"github.com/cartdotfun/settlement-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// In-memory repositories so the recorder can be exercised exactly as the
// service container wires it, without a database.

type memBalanceRepo struct {
	mu   sync.Mutex
	rows map[string]*models.Balance
}

func newMemBalanceRepo() *memBalanceRepo {
	return &memBalanceRepo{rows: make(map[string]*models.Balance)}
}

func (r *memBalanceRepo) Upsert(_ context.Context, b *models.Balance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[b.Owner+"/"+b.Asset] = b
	return nil
}

func (r *memBalanceRepo) Get(_ context.Context, owner, asset string) (*models.Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[owner+"/"+asset], nil
}

func (r *memBalanceRepo) FindByOwner(context.Context, string) ([]*models.Balance, error) {
	return nil, nil
}

func (r *memBalanceRepo) GetAll(context.Context) ([]*models.Balance, error) { return nil, nil }

type memLedgerRepo struct {
	mu      sync.Mutex
	entries []*models.LedgerEntry
}

func (r *memLedgerRepo) Create(_ context.Context, e *models.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *memLedgerRepo) FindByOwner(context.Context, string, int, int) ([]*models.LedgerEntry, int64, error) {
	return nil, 0, nil
}

func (r *memLedgerRepo) FindByRef(context.Context, string) ([]*models.LedgerEntry, error) {
	return nil, nil
}

type memDealRepo struct{}

func (memDealRepo) Upsert(context.Context, *models.Deal) error { return nil }
func (memDealRepo) GetByID(context.Context, string) (*models.Deal, error) { return nil, nil }
func (memDealRepo) FindByParty(context.Context, string, int, int) ([]*models.Deal, int64, error) {
	return nil, 0, nil
}
func (memDealRepo) FindByState(context.Context, string) ([]*models.Deal, error) { return nil, nil }
func (memDealRepo) GetAll(context.Context) ([]*models.Deal, error) { return nil, nil }

type memSessionRepo struct{}

func (memSessionRepo) Upsert(context.Context, *models.Session) error { return nil }
func (memSessionRepo) GetByID(context.Context, string) (*models.Session, error) { return nil, nil }
func (memSessionRepo) FindByAgent(context.Context, string, int, int) ([]*models.Session, int64, error) {
	return nil, 0, nil
}
func (memSessionRepo) FindByProvider(context.Context, string, int, int) ([]*models.Session, int64, error) {
	return nil, 0, nil
}
func (memSessionRepo) CountByAgent(context.Context, string) (int64, error) { return 0, nil }
func (memSessionRepo) GetAll(context.Context) ([]*models.Session, error) { return nil, nil }

type memSettlementRepo struct{}

func (memSettlementRepo) Create(context.Context, *models.CrossChainSettlement) error { return nil }
func (memSettlementRepo) GetByExternalID(context.Context, string) (*models.CrossChainSettlement, error) {
	return nil, nil
}
func (memSettlementRepo) FindByAgent(context.Context, string, int, int) ([]*models.CrossChainSettlement, int64, error) {
	return nil, 0, nil
}
func (memSettlementRepo) GetAll(context.Context) ([]*models.CrossChainSettlement, error) {
	return nil, nil
}

// The vault invokes the observer while its mutex is held, so the recorder
// must work entirely from the entry it is handed. A deposit with the
// recorder attached has to return promptly and land the right rows.
func TestRecorderWriteThroughDeposit(t *testing.T) {
	eng, _ := newServiceEngine(t)
	balances := newMemBalanceRepo()
	journal := &memLedgerRepo{}

	rec := NewRecorder(eng, balances, journal, memDealRepo{}, memSessionRepo{}, memSettlementRepo{})
	rec.Attach()

	ledger := NewLedgerService(eng, nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := ledger.Deposit(buyerHex, assetHex, "1000")
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("deposit did not return with the recorder attached")
	}

	row, err := balances.Get(context.Background(), buyerHex, assetHex)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "1000", row.Amount)

	journal.mu.Lock()
	defer journal.mu.Unlock()
	require.Len(t, journal.entries, 1)
	assert.Equal(t, string(core.EntryDeposit), journal.entries[0].Kind)
	assert.Equal(t, "1000", journal.entries[0].Delta)
}

// A full deal round-trip through the recorder: every balance mutation is
// journaled and the balance rows track the post-mutation amounts.
func TestRecorderTracksDealPayout(t *testing.T) {
	eng, _ := newServiceEngine(t)
	balances := newMemBalanceRepo()
	journal := &memLedgerRepo{}

	rec := NewRecorder(eng, balances, journal, memDealRepo{}, memSessionRepo{}, memSettlementRepo{})
	rec.Attach()

	ledger := NewLedgerService(eng, nil, nil)
	escrow := NewEscrowService(eng, nil)

	_, err := ledger.Deposit(buyerHex, assetHex, "1000")
	require.NoError(t, err)

	_, err = escrow.CreateDeal(buyerHex, &dto.CreateDealRequest{
		ID:     "deal-rec",
		Seller: sellerHex,
		Asset:  assetHex,
		Amount: "500",
	})
	require.NoError(t, err)
	require.NoError(t, escrow.SubmitWork(sellerHex, "deal-rec", "ipfs://result"))
	require.NoError(t, escrow.Release(buyerHex, "deal-rec"))

	buyerRow, err := balances.Get(context.Background(), buyerHex, assetHex)
	require.NoError(t, err)
	require.NotNil(t, buyerRow)
	assert.Equal(t, "500", buyerRow.Amount)

	sellerRow, err := balances.Get(context.Background(), sellerHex, assetHex)
	require.NoError(t, err)
	require.NotNil(t, sellerRow)
	assert.Equal(t, "495", sellerRow.Amount)

	feeRow, err := balances.Get(context.Background(), feeAddrHex, assetHex)
	require.NoError(t, err)
	require.NotNil(t, feeRow)
	assert.Equal(t, "5", feeRow.Amount)

	journal.mu.Lock()
	defer journal.mu.Unlock()
	// deposit, deal_lock, deal_payout, fee
	assert.Len(t, journal.entries, 4)
}
