package model

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Pair is a tracked liquidity pair and its last known reserves.
type Pair struct {
	Address  string   `json:"address"`
	TokenA   string   `json:"token_a"`
	TokenB   string   `json:"token_b"`
	ReserveA *big.Int `json:"reserve_a"`
	ReserveB *big.Int `json:"reserve_b"`
}

// Clone returns a deep copy so the pair can cross goroutine boundaries safely.
func (p Pair) Clone() Pair {
	out := p
	out.ReserveA = cloneInt(p.ReserveA)
	out.ReserveB = cloneInt(p.ReserveB)
	return out
}

// Price returns reserveB per unit of reserveA in raw units, or false when reserveA is empty.
func (p Pair) Price() (decimal.Decimal, bool) {
	return p.ScaledPrice(0, 0)
}

// ScaledPrice is Price with each reserve shifted down by its token's decimals.
func (p Pair) ScaledPrice(decimalsA, decimalsB uint32) (decimal.Decimal, bool) {
	if p.ReserveA == nil || p.ReserveA.Sign() == 0 || p.ReserveB == nil {
		return decimal.Zero, false
	}
	a := decimal.NewFromBigInt(p.ReserveA, -int32(decimalsA))
	b := decimal.NewFromBigInt(p.ReserveB, -int32(decimalsB))
	return b.DivRound(a, 18), true
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
