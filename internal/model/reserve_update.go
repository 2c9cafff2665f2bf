package model

import "math/big"

// ReserveUpdate is an observed reserve snapshot for one pair.
type ReserveUpdate struct {
	Address  string   `json:"address"`
	ReserveA *big.Int `json:"reserve_a"`
	ReserveB *big.Int `json:"reserve_b"`
	Ledger   uint32   `json:"ledger"`
}
