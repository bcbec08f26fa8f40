package core

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// totalCustodied sums every free balance plus every live deal and session
// lock. The conservation invariant says this equals net deposits minus net
// withdrawals at every observable point.
func totalCustodied(eng *Engine) *big.Int {
	total := new(big.Int)
	for _, b := range eng.Vault.Balances() {
		total.Add(total, b.Amount)
	}
	for _, d := range eng.Escrow.Deals() {
		if !d.State.IsTerminal() {
			total.Add(total, d.Amount)
		}
	}
	for _, s := range eng.Sessions.Sessions() {
		if !s.State.IsTerminal() {
			total.Add(total, s.Deposit)
		}
	}
	return total
}

func TestConservationAcrossMixedOperations(t *testing.T) {
	eng, clock := newFundedEngine(250, 0)
	_, err := eng.Sessions.RegisterGateway(testProvider, "gw", big.NewInt(2))
	require.NoError(t, err)

	net := big.NewInt(0)
	check := func() {
		t.Helper()
		require.Equal(t, net.String(), totalCustodied(eng).String())
	}

	deposit := func(owner int64) {
		require.NoError(t, eng.Vault.Deposit(testAgent, testAsset, big.NewInt(owner)))
		net.Add(net, big.NewInt(owner))
		check()
	}

	deposit(10000)
	require.NoError(t, eng.Vault.Deposit(testBuyer, testAsset, big.NewInt(5000)))
	net.Add(net, big.NewInt(5000))
	check()

	// Escrow: lock, dispute, arbiter releases to seller.
	_, err = eng.Escrow.CreateDeal(testBuyer, "d1", testSeller, testAsset, big.NewInt(1200), "", "", time.Time{})
	require.NoError(t, err)
	check()
	require.NoError(t, eng.Escrow.RaiseDispute(testSeller, "d1"))
	check()
	require.NoError(t, eng.Escrow.ResolveDispute(testArbiter, "d1", true, "j"))
	check()

	// Sessions: open, meter, renew, settle.
	sess, err := eng.Sessions.OpenSession(testAgent, "gw", testAsset, big.NewInt(3000), time.Hour)
	require.NoError(t, err)
	check()
	require.NoError(t, eng.Sessions.RecordUsage(testProvider, sess.ID, big.NewInt(700)))
	check()
	clock.Advance(10 * time.Minute)
	require.NoError(t, eng.Sessions.RenewSession(testAgent, sess.ID, time.Hour))
	check()
	require.NoError(t, eng.Sessions.SettleSession(testProvider, sess.ID))
	check()

	// Cross-chain settlement moves funds between balances only.
	_, err = eng.CrossChain.SettleFromSolana(testRelay, "ext-1", testAgent, testProvider, big.NewInt(500))
	require.NoError(t, err)
	check()

	// Withdrawals reduce the custodied total.
	require.NoError(t, eng.Vault.Withdraw(testAgent, testAsset, big.NewInt(1000)))
	net.Sub(net, big.NewInt(1000))
	check()

	// Failed operations leave the total untouched.
	_, err = eng.Escrow.CreateDeal(testBuyer, "d2", testSeller, testAsset, big.NewInt(99999999), "", "", time.Time{})
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	check()
}

func TestEngineAuthorizesComponents(t *testing.T) {
	eng, _ := newFundedEngine(0, 100, testBuyer, testAgent)
	_, err := eng.Sessions.RegisterGateway(testProvider, "gw", big.NewInt(1))
	require.NoError(t, err)

	// Each component can reach the vault's privileged entry points.
	_, err = eng.Escrow.CreateDeal(testBuyer, "d1", testSeller, testAsset, big.NewInt(10), "", "", time.Time{})
	assert.NoError(t, err)
	_, err = eng.Sessions.OpenSession(testAgent, "gw", testAsset, big.NewInt(10), time.Hour)
	assert.NoError(t, err)
	_, err = eng.CrossChain.SettleFromSolana(testRelay, "x", testAgent, testProvider, big.NewInt(10))
	assert.NoError(t, err)
}

func TestEngineDefaultsToSystemClock(t *testing.T) {
	eng := NewEngine(testOwner, nil)
	require.NoError(t, eng.Vault.Deposit(testAgent, testAsset, big.NewInt(1)))
}
