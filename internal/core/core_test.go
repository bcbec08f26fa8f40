package core

import (
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	testOwner    = common.HexToAddress("0x00000000000000000000000000000000000000a0")
	testArbiter  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	testRelay    = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	testBridge   = common.HexToAddress("0x00000000000000000000000000000000000000a3")
	testFeeAddr  = common.HexToAddress("0x00000000000000000000000000000000000000a4")
	testBuyer    = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	testSeller   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	testAgent    = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	testProvider = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	testOutsider = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	testAsset    = common.HexToAddress("0x00000000000000000000000000000000000000d1")
)

// fakeClock is a manually advanced clock shared by a test engine.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestEngine() (*Engine, *fakeClock) {
	clock := newFakeClock()
	eng := NewEngine(testOwner, clock.Now)
	return eng, clock
}

// newFundedEngine wires the standard arbiter/relay/bridge/fee config and
// deposits balance units of the test asset for each funded address.
func newFundedEngine(feeBps uint32, balance int64, funded ...common.Address) (*Engine, *fakeClock) {
	eng, clock := newTestEngine()
	mustNoErr(eng.Config.SetArbiter(testOwner, testArbiter))
	mustNoErr(eng.Config.SetRelay(testOwner, testRelay))
	mustNoErr(eng.Config.SetValidationBridge(testOwner, testBridge))
	mustNoErr(eng.Config.SetSettlementAsset(testOwner, testAsset))
	mustNoErr(eng.Config.SetFeeRecipient(testOwner, testFeeAddr))
	mustNoErr(eng.Config.SetFeeRate(testOwner, feeBps))
	for _, addr := range funded {
		mustNoErr(eng.Vault.Deposit(addr, testAsset, big.NewInt(balance)))
	}
	return eng, clock
}

func mustNoErr(err error) {
	if err != nil {
		panic(err)
	}
}

func bal(eng *Engine, owner common.Address) int64 {
	return eng.Vault.Balance(owner, testAsset).Int64()
}
