package core

import (
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSlug = "inference-api"

func registerGateway(t *testing.T, eng *Engine) {
	t.Helper()
	_, err := eng.Sessions.RegisterGateway(testProvider, testSlug, big.NewInt(5))
	require.NoError(t, err)
}

func openSession(t *testing.T, eng *Engine, deposit int64, duration time.Duration) *Session {
	t.Helper()
	sess, err := eng.Sessions.OpenSession(testAgent, testSlug, testAsset, big.NewInt(deposit), duration)
	require.NoError(t, err)
	return sess
}

func TestRegisterGateway(t *testing.T) {
	eng, _ := newTestEngine()

	gw, err := eng.Sessions.RegisterGateway(testProvider, testSlug, big.NewInt(5))
	require.NoError(t, err)
	assert.True(t, gw.Active)
	assert.Equal(t, testProvider, gw.Provider)

	// Slugs are first come first served.
	_, err = eng.Sessions.RegisterGateway(testOutsider, testSlug, big.NewInt(1))
	assert.ErrorIs(t, err, ErrSlugTaken)

	_, err = eng.Sessions.RegisterGateway(testProvider, "", big.NewInt(1))
	assert.ErrorIs(t, err, ErrInvalidSlug)

	_, err = eng.Sessions.RegisterGateway(testProvider, strings.Repeat("x", MaxGatewaySlug+1), big.NewInt(1))
	assert.ErrorIs(t, err, ErrInvalidSlug)
}

func TestUpdateGatewayPrice(t *testing.T) {
	eng, _ := newTestEngine()
	registerGateway(t, eng)

	assert.ErrorIs(t, eng.Sessions.UpdateGatewayPrice(testOutsider, testSlug, big.NewInt(9)), ErrUnauthorized)
	require.NoError(t, eng.Sessions.UpdateGatewayPrice(testProvider, testSlug, big.NewInt(9)))

	gw, err := eng.Sessions.Gateway(testSlug)
	require.NoError(t, err)
	assert.Equal(t, int64(9), gw.PricePerRequest.Int64())
}

func TestDeactivateGatewayBlockedByOpenSessions(t *testing.T) {
	eng, _ := newFundedEngine(0, 1000, testAgent)
	registerGateway(t, eng)
	sess := openSession(t, eng, 100, time.Hour)

	assert.ErrorIs(t, eng.Sessions.DeactivateGateway(testProvider, testSlug), ErrGatewayBusy)

	require.NoError(t, eng.Sessions.SettleSession(testAgent, sess.ID))
	require.NoError(t, eng.Sessions.DeactivateGateway(testProvider, testSlug))

	// Slug stays claimed after deactivation.
	_, err := eng.Sessions.RegisterGateway(testOutsider, testSlug, big.NewInt(1))
	assert.ErrorIs(t, err, ErrSlugTaken)

	// And no new sessions open against it.
	_, err = eng.Sessions.OpenSession(testAgent, testSlug, testAsset, big.NewInt(10), time.Hour)
	assert.ErrorIs(t, err, ErrGatewayInactive)
}

func TestOpenSessionLocksDeposit(t *testing.T) {
	eng, _ := newFundedEngine(0, 1000, testAgent)
	registerGateway(t, eng)

	sess := openSession(t, eng, 100, time.Hour)

	assert.Equal(t, SessionActive, sess.State)
	assert.Equal(t, int64(900), bal(eng, testAgent))
	assert.Zero(t, sess.Used.Sign())
	assert.Contains(t, eng.Sessions.OpenSessions(testProvider), sess.ID)
}

func TestOpenSessionValidation(t *testing.T) {
	eng, _ := newFundedEngine(0, 50, testAgent)
	registerGateway(t, eng)

	_, err := eng.Sessions.OpenSession(testAgent, "nope", testAsset, big.NewInt(10), time.Hour)
	assert.ErrorIs(t, err, ErrGatewayNotFound)

	_, err = eng.Sessions.OpenSession(testAgent, testSlug, testAsset, big.NewInt(0), time.Hour)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = eng.Sessions.OpenSession(testAgent, testSlug, testAsset, big.NewInt(10), 0)
	assert.ErrorIs(t, err, ErrInvalidDuration)

	_, err = eng.Sessions.OpenSession(testAgent, testSlug, testAsset, big.NewInt(10), MaxSessionDuration+time.Second)
	assert.ErrorIs(t, err, ErrInvalidDuration)

	_, err = eng.Sessions.OpenSession(testAgent, testSlug, testAsset, big.NewInt(100), time.Hour)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	assert.Equal(t, int64(50), bal(eng, testAgent))
}

func TestSessionIDsAreUnique(t *testing.T) {
	eng, _ := newFundedEngine(0, 1000, testAgent)
	registerGateway(t, eng)

	// Same participants, same instant: the nonce still separates them.
	a := openSession(t, eng, 10, time.Hour)
	b := openSession(t, eng, 10, time.Hour)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestRecordUsage(t *testing.T) {
	eng, _ := newFundedEngine(0, 1000, testAgent)
	registerGateway(t, eng)
	sess := openSession(t, eng, 100, time.Hour)

	assert.ErrorIs(t, eng.Sessions.RecordUsage(testAgent, sess.ID, big.NewInt(10)), ErrUnauthorized)
	require.NoError(t, eng.Sessions.RecordUsage(testProvider, sess.ID, big.NewInt(30)))
	require.NoError(t, eng.Sessions.RecordUsage(testProvider, sess.ID, big.NewInt(30)))

	got, err := eng.Sessions.Session(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(60), got.Used.Int64())

	// Usage is capped at the deposit.
	assert.ErrorIs(t, eng.Sessions.RecordUsage(testProvider, sess.ID, big.NewInt(41)), ErrUsageExceedsDeposit)
	require.NoError(t, eng.Sessions.RecordUsage(testProvider, sess.ID, big.NewInt(40)))
}

func TestRecordUsageAfterExpiryFails(t *testing.T) {
	eng, clock := newFundedEngine(0, 1000, testAgent)
	registerGateway(t, eng)
	sess := openSession(t, eng, 100, time.Minute)

	clock.Advance(time.Minute)
	assert.ErrorIs(t, eng.Sessions.RecordUsage(testProvider, sess.ID, big.NewInt(1)), ErrInvalidState)
}

// Agent deposits 1000, opens a 100-unit session, provider meters 60 total;
// settling at 25 bps pays the provider the full 60 (dust fee floors to
// zero) and refunds 40.
func TestSettleSessionScenario(t *testing.T) {
	eng, _ := newFundedEngine(25, 1000, testAgent)
	registerGateway(t, eng)
	sess := openSession(t, eng, 100, time.Hour)

	require.NoError(t, eng.Sessions.RecordUsage(testProvider, sess.ID, big.NewInt(30)))
	require.NoError(t, eng.Sessions.RecordUsage(testProvider, sess.ID, big.NewInt(30)))
	require.NoError(t, eng.Sessions.SettleSession(testAgent, sess.ID))

	assert.Equal(t, int64(60), bal(eng, testProvider))
	assert.Zero(t, bal(eng, testFeeAddr))
	assert.Equal(t, int64(940), bal(eng, testAgent))

	got, _ := eng.Sessions.Session(sess.ID)
	assert.Equal(t, SessionSettled, got.State)
	assert.Empty(t, eng.Sessions.OpenSessions(testProvider))
}

func TestSettleWithFee(t *testing.T) {
	eng, _ := newFundedEngine(250, 100000, testAgent)
	registerGateway(t, eng)
	sess := openSession(t, eng, 20000, time.Hour)

	require.NoError(t, eng.Sessions.RecordUsage(testProvider, sess.ID, big.NewInt(10000)))
	require.NoError(t, eng.Sessions.SettleSession(testProvider, sess.ID))

	// 10000 at 250 bps: fee 250, provider 9750, agent refunded 10000.
	assert.Equal(t, int64(9750), bal(eng, testProvider))
	assert.Equal(t, int64(250), bal(eng, testFeeAddr))
	assert.Equal(t, int64(90000), bal(eng, testAgent))
}

// A third party cannot settle a live session but can settle an expired one,
// so a lock never strands behind two silent parties.
func TestThirdPartySettleOnlyAfterExpiry(t *testing.T) {
	eng, clock := newFundedEngine(0, 1000, testAgent)
	registerGateway(t, eng)
	sess := openSession(t, eng, 10, time.Minute)

	assert.ErrorIs(t, eng.Sessions.SettleSession(testOutsider, sess.ID), ErrSessionNotExpired)

	clock.Advance(2 * time.Minute)
	require.NoError(t, eng.Sessions.SettleSession(testOutsider, sess.ID))
	assert.Equal(t, int64(1000), bal(eng, testAgent))
}

func TestNoDoubleSettlementSession(t *testing.T) {
	eng, _ := newFundedEngine(0, 1000, testAgent)
	registerGateway(t, eng)
	sess := openSession(t, eng, 100, time.Hour)

	require.NoError(t, eng.Sessions.SettleSession(testAgent, sess.ID))
	agentAfter := bal(eng, testAgent)

	assert.ErrorIs(t, eng.Sessions.SettleSession(testAgent, sess.ID), ErrInvalidState)
	assert.ErrorIs(t, eng.Sessions.CancelSession(testAgent, sess.ID), ErrInvalidState)
	assert.Equal(t, agentAfter, bal(eng, testAgent))
}

func TestCancelSessionOnlyWhenUnused(t *testing.T) {
	eng, _ := newFundedEngine(250, 1000, testAgent)
	registerGateway(t, eng)
	sess := openSession(t, eng, 100, time.Hour)

	assert.ErrorIs(t, eng.Sessions.CancelSession(testProvider, sess.ID), ErrUnauthorized)
	require.NoError(t, eng.Sessions.CancelSession(testAgent, sess.ID))

	// Full fee-free refund.
	assert.Equal(t, int64(1000), bal(eng, testAgent))
	assert.Zero(t, bal(eng, testFeeAddr))

	sess2 := openSession(t, eng, 100, time.Hour)
	require.NoError(t, eng.Sessions.RecordUsage(testProvider, sess2.ID, big.NewInt(1)))
	assert.ErrorIs(t, eng.Sessions.CancelSession(testAgent, sess2.ID), ErrInvalidState)
}

func TestRenewalReplacesExpiryInsteadOfStacking(t *testing.T) {
	eng, clock := newFundedEngine(0, 1000, testAgent)
	registerGateway(t, eng)
	sess := openSession(t, eng, 100, time.Hour)

	clock.Advance(10 * time.Minute)
	require.NoError(t, eng.Sessions.RenewSession(testAgent, sess.ID, 30*time.Minute))

	got, err := eng.Sessions.Session(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(30*time.Minute), got.ExpiresAt)
	assert.True(t, got.ExpiresAt.Before(sess.ExpiresAt))

	assert.ErrorIs(t, eng.Sessions.RenewSession(testProvider, sess.ID, time.Minute), ErrUnauthorized)
	assert.ErrorIs(t, eng.Sessions.RenewSession(testAgent, sess.ID, 0), ErrInvalidDuration)
	assert.ErrorIs(t, eng.Sessions.RenewSession(testAgent, sess.ID, MaxSessionDuration+time.Second), ErrInvalidDuration)
}

// An expired session stays ACTIVE in storage; expiry only changes who may
// act on it.
func TestExpiredSessionRemainsActiveUntilSettled(t *testing.T) {
	eng, clock := newFundedEngine(0, 1000, testAgent)
	registerGateway(t, eng)
	sess := openSession(t, eng, 100, time.Minute)

	clock.Advance(time.Hour)
	got, err := eng.Sessions.Session(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, SessionActive, got.State)
	assert.True(t, got.Expired(clock.Now()))

	require.NoError(t, eng.Sessions.SettleSession(testProvider, sess.ID))
}

func TestSessionEvents(t *testing.T) {
	eng, _ := newFundedEngine(0, 1000, testAgent)
	registerGateway(t, eng)

	var kinds []string
	eng.Sessions.SetObserver(func(e SessionEvent) { kinds = append(kinds, e.Kind) })

	sess := openSession(t, eng, 100, time.Hour)
	require.NoError(t, eng.Sessions.RecordUsage(testProvider, sess.ID, big.NewInt(5)))
	require.NoError(t, eng.Sessions.RenewSession(testAgent, sess.ID, time.Hour))
	require.NoError(t, eng.Sessions.SettleSession(testAgent, sess.ID))

	assert.Equal(t, []string{SessionEventOpened, SessionEventUsage, SessionEventRenewed, SessionEventSettled}, kinds)
}
