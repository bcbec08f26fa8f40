package core

import (
	"fmt"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createDeal(t *testing.T, eng *Engine, id string, amount int64) *Deal {
	t.Helper()
	deal, err := eng.Escrow.CreateDeal(testBuyer, id, testSeller, testAsset, big.NewInt(amount), "", "", time.Time{})
	require.NoError(t, err)
	return deal
}

func TestCreateDealLocksBuyerFunds(t *testing.T) {
	eng, _ := newFundedEngine(250, 1000, testBuyer)

	deal := createDeal(t, eng, "deal-1", 400)

	assert.Equal(t, DealLocked, deal.State)
	assert.Equal(t, int64(600), bal(eng, testBuyer))
}

func TestCreateDealValidation(t *testing.T) {
	eng, clock := newFundedEngine(0, 1000, testBuyer)

	_, err := eng.Escrow.CreateDeal(testBuyer, "", testSeller, testAsset, big.NewInt(1), "", "", time.Time{})
	assert.ErrorIs(t, err, ErrInvalidID)

	_, err = eng.Escrow.CreateDeal(testBuyer, "d", testSeller, testAsset, big.NewInt(0), "", "", time.Time{})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = eng.Escrow.CreateDeal(testBuyer, "d", common.Address{}, testAsset, big.NewInt(1), "", "", time.Time{})
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = eng.Escrow.CreateDeal(testBuyer, "d", testSeller, testAsset, big.NewInt(1), strings.Repeat("x", MaxDealMetadata+1), "", time.Time{})
	assert.ErrorIs(t, err, ErrMetadataTooLarge)

	_, err = eng.Escrow.CreateDeal(testBuyer, "d", testSeller, testAsset, big.NewInt(1), "", "", clock.Now().Add(-time.Second))
	assert.ErrorIs(t, err, ErrInvalidExpiry)

	_, err = eng.Escrow.CreateDeal(testBuyer, "d", testSeller, testAsset, big.NewInt(2000), "", "", time.Time{})
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	// No lock happened on any failed path.
	assert.Equal(t, int64(1000), bal(eng, testBuyer))
}

func TestCreateDealDuplicateID(t *testing.T) {
	eng, _ := newFundedEngine(0, 1000, testBuyer)
	createDeal(t, eng, "deal-1", 100)

	_, err := eng.Escrow.CreateDeal(testBuyer, "deal-1", testSeller, testAsset, big.NewInt(100), "", "", time.Time{})
	assert.ErrorIs(t, err, ErrDealExists)
	assert.Equal(t, int64(900), bal(eng, testBuyer))
}

func TestChildDeals(t *testing.T) {
	eng, _ := newFundedEngine(0, 1000, testBuyer)
	createDeal(t, eng, "parent", 100)

	_, err := eng.Escrow.CreateDeal(testBuyer, "child-1", testSeller, testAsset, big.NewInt(50), "", "parent", time.Time{})
	require.NoError(t, err)

	parent, err := eng.Escrow.Deal("parent")
	require.NoError(t, err)
	assert.Equal(t, []string{"child-1"}, parent.ChildIDs)

	// Only the parent's buyer may attach children.
	_, err = eng.Escrow.CreateDeal(testOutsider, "child-2", testSeller, testAsset, big.NewInt(1), "", "parent", time.Time{})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = eng.Escrow.CreateDeal(testBuyer, "child-3", testSeller, testAsset, big.NewInt(1), "", "missing", time.Time{})
	assert.ErrorIs(t, err, ErrDealNotFound)

	// Child settlement never touches the parent.
	require.NoError(t, eng.Escrow.Release(testBuyer, "child-1"))
	parent, err = eng.Escrow.Deal("parent")
	require.NoError(t, err)
	assert.Equal(t, DealLocked, parent.State)
}

func TestChildDealLimit(t *testing.T) {
	eng, _ := newFundedEngine(0, 100000, testBuyer)
	createDeal(t, eng, "parent", 10)

	for i := 0; i < MaxDealChildren; i++ {
		_, err := eng.Escrow.CreateDeal(testBuyer, fmt.Sprintf("child-%d", i), testSeller, testAsset, big.NewInt(1), "", "parent", time.Time{})
		require.NoError(t, err)
	}
	_, err := eng.Escrow.CreateDeal(testBuyer, "one-too-many", testSeller, testAsset, big.NewInt(1), "", "parent", time.Time{})
	assert.ErrorIs(t, err, ErrTooManyChildren)
}

func TestSubmitWorkAndRelease(t *testing.T) {
	eng, _ := newFundedEngine(250, 1000, testBuyer)
	createDeal(t, eng, "deal-1", 400)

	assert.ErrorIs(t, eng.Escrow.SubmitWork(testBuyer, "deal-1", "ipfs://r"), ErrUnauthorized)
	require.NoError(t, eng.Escrow.SubmitWork(testSeller, "deal-1", "ipfs://r"))

	deal, err := eng.Escrow.Deal("deal-1")
	require.NoError(t, err)
	assert.Equal(t, DealVerifying, deal.State)
	assert.Equal(t, "ipfs://r", deal.ResultRef)

	// Submitting twice fails on state.
	assert.ErrorIs(t, eng.Escrow.SubmitWork(testSeller, "deal-1", "ipfs://again"), ErrInvalidState)

	require.NoError(t, eng.Escrow.Release(testBuyer, "deal-1"))
	// 400 at 250 bps: fee 10, seller 390.
	assert.Equal(t, int64(390), bal(eng, testSeller))
	assert.Equal(t, int64(10), bal(eng, testFeeAddr))
}

func TestReleaseAuthorization(t *testing.T) {
	eng, _ := newFundedEngine(0, 1000, testBuyer)

	createDeal(t, eng, "d1", 10)
	createDeal(t, eng, "d2", 10)
	createDeal(t, eng, "d3", 10)

	assert.ErrorIs(t, eng.Escrow.Release(testSeller, "d1"), ErrUnauthorized)
	assert.ErrorIs(t, eng.Escrow.Release(testOutsider, "d1"), ErrUnauthorized)

	assert.NoError(t, eng.Escrow.Release(testBuyer, "d1"))
	assert.NoError(t, eng.Escrow.Release(testArbiter, "d2"))
	assert.NoError(t, eng.Escrow.Release(testBridge, "d3"))
}

func TestReleaseTimeLock(t *testing.T) {
	eng, clock := newFundedEngine(0, 1000, testBuyer)

	expiry := clock.Now().Add(time.Hour)
	_, err := eng.Escrow.CreateDeal(testBuyer, "d1", testSeller, testAsset, big.NewInt(100), "", "", expiry)
	require.NoError(t, err)

	assert.ErrorIs(t, eng.Escrow.Release(testBuyer, "d1"), ErrTimeLocked)

	clock.Advance(time.Hour)
	assert.NoError(t, eng.Escrow.Release(testBuyer, "d1"))
	assert.Equal(t, int64(100), bal(eng, testSeller))
}

func TestSellerRefundIsFeeFree(t *testing.T) {
	eng, _ := newFundedEngine(1000, 1000, testBuyer)
	createDeal(t, eng, "d1", 500)

	assert.ErrorIs(t, eng.Escrow.Refund(testBuyer, "d1"), ErrUnauthorized)
	require.NoError(t, eng.Escrow.Refund(testSeller, "d1"))

	assert.Equal(t, int64(1000), bal(eng, testBuyer))
	assert.Zero(t, bal(eng, testFeeAddr))

	deal, err := eng.Escrow.Deal("d1")
	require.NoError(t, err)
	assert.Equal(t, DealRefunded, deal.State)
}

func TestDisputeResolution(t *testing.T) {
	eng, _ := newFundedEngine(250, 1000, testBuyer)
	createDeal(t, eng, "d1", 100)

	assert.ErrorIs(t, eng.Escrow.RaiseDispute(testOutsider, "d1"), ErrUnauthorized)
	require.NoError(t, eng.Escrow.RaiseDispute(testBuyer, "d1"))

	deal, _ := eng.Escrow.Deal("d1")
	assert.Equal(t, DealDispute, deal.State)

	// Disputed deals are frozen for everything but resolution.
	assert.ErrorIs(t, eng.Escrow.Release(testBuyer, "d1"), ErrInvalidState)
	assert.ErrorIs(t, eng.Escrow.Refund(testSeller, "d1"), ErrInvalidState)
	assert.ErrorIs(t, eng.Escrow.SubmitWork(testSeller, "d1", "r"), ErrInvalidState)

	assert.ErrorIs(t, eng.Escrow.ResolveDispute(testBuyer, "d1", true, "j"), ErrUnauthorized)
	require.NoError(t, eng.Escrow.ResolveDispute(testArbiter, "d1", true, "ipfs://judgment"))

	deal, _ = eng.Escrow.Deal("d1")
	assert.Equal(t, DealCompleted, deal.State)
	assert.Equal(t, "ipfs://judgment", deal.JudgmentRef)
	// 100 at 250 bps: fee 2, seller 98.
	assert.Equal(t, int64(98), bal(eng, testSeller))
	assert.Equal(t, int64(2), bal(eng, testFeeAddr))
}

// Buyer-favoring resolution refunds the full escrowed amount with no fee.
func TestDisputeResolvedForBuyerSkipsFee(t *testing.T) {
	eng, _ := newFundedEngine(250, 1000, testBuyer)
	createDeal(t, eng, "d1", 100)
	require.NoError(t, eng.Escrow.SubmitWork(testSeller, "d1", "r"))
	require.NoError(t, eng.Escrow.RaiseDispute(testBuyer, "d1"))

	require.NoError(t, eng.Escrow.ResolveDispute(testArbiter, "d1", false, "j"))

	assert.Equal(t, int64(1000), bal(eng, testBuyer))
	assert.Zero(t, bal(eng, testSeller))
	assert.Zero(t, bal(eng, testFeeAddr))
}

func TestNoDoubleSettlementDeal(t *testing.T) {
	eng, _ := newFundedEngine(0, 1000, testBuyer)
	createDeal(t, eng, "d1", 100)

	require.NoError(t, eng.Escrow.Release(testBuyer, "d1"))
	sellerAfter := bal(eng, testSeller)

	assert.ErrorIs(t, eng.Escrow.Release(testBuyer, "d1"), ErrInvalidState)
	assert.ErrorIs(t, eng.Escrow.Refund(testSeller, "d1"), ErrInvalidState)
	assert.ErrorIs(t, eng.Escrow.RaiseDispute(testBuyer, "d1"), ErrInvalidState)
	assert.Equal(t, sellerAfter, bal(eng, testSeller))
}

func TestDealEvents(t *testing.T) {
	eng, _ := newFundedEngine(0, 1000, testBuyer)

	var kinds []string
	eng.Escrow.SetObserver(func(e DealEvent) { kinds = append(kinds, e.Kind) })

	createDeal(t, eng, "d1", 100)
	require.NoError(t, eng.Escrow.SubmitWork(testSeller, "d1", "r"))
	require.NoError(t, eng.Escrow.Release(testBuyer, "d1"))

	assert.Equal(t, []string{DealEventCreated, DealEventWork, DealEventReleased}, kinds)
}
