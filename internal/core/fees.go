package core

import "math/big"

var bpsDenominator = big.NewInt(10000)

// ComputeFee returns floor(amount * rateBps / 10000).
//
// Integer floor division is deliberate: sub-unit ("dust") payouts round the
// fee down to zero and the payee receives the full amount. Every payout path
// in the system (deal release, dispute resolution, session settlement,
// cross-chain settlement) uses this single rounding rule so that
// payee credit + fee == gross amount holds exactly.
func ComputeFee(amount *big.Int, rateBps uint32) *big.Int {
	if amount == nil || amount.Sign() <= 0 || rateBps == 0 {
		return new(big.Int)
	}
	fee := new(big.Int).Mul(amount, big.NewInt(int64(rateBps)))
	return fee.Div(fee, bpsDenominator)
}
