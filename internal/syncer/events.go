package syncer

import (
	"fmt"

	"reserveSync/internal/model"
	"reserveSync/internal/soroban"
)

const (
	syncTopic     = "sync"
	reserve0Field = "new_reserve_0"
	reserve1Field = "new_reserve_1"
)

// IsSyncEvent reports whether any decoded topic of the event is the "sync" symbol or string.
// Topics that fail to decode never match.
func IsSyncEvent(ev model.ContractEvent) bool {
	for _, raw := range ev.Topic {
		val, err := soroban.DecodeScVal(raw)
		if err != nil {
			continue
		}
		if s, ok := soroban.ScValString(val); ok && s == syncTopic {
			return true
		}
	}
	return false
}

// ParseSyncEvent extracts the reserve snapshot carried by a sync event.
func ParseSyncEvent(ev model.ContractEvent) (model.ReserveUpdate, error) {
	if ev.ContractID == "" {
		return model.ReserveUpdate{}, fmt.Errorf("event %s has no contract id", ev.ID)
	}
	val, err := soroban.DecodeScVal(ev.Value)
	if err != nil {
		return model.ReserveUpdate{}, err
	}
	fields, err := soroban.ScValToMap(val)
	if err != nil {
		return model.ReserveUpdate{}, err
	}

	raw0, ok := fields[reserve0Field]
	if !ok {
		return model.ReserveUpdate{}, fmt.Errorf("missing %s", reserve0Field)
	}
	raw1, ok := fields[reserve1Field]
	if !ok {
		return model.ReserveUpdate{}, fmt.Errorf("missing %s", reserve1Field)
	}
	reserveA, err := soroban.ScValToBigInt(raw0)
	if err != nil {
		return model.ReserveUpdate{}, fmt.Errorf("%s: %w", reserve0Field, err)
	}
	reserveB, err := soroban.ScValToBigInt(raw1)
	if err != nil {
		return model.ReserveUpdate{}, fmt.Errorf("%s: %w", reserve1Field, err)
	}
	if reserveA.Sign() < 0 || reserveB.Sign() < 0 {
		return model.ReserveUpdate{}, fmt.Errorf("event %s carries negative reserves %s/%s", ev.ID, reserveA, reserveB)
	}

	return model.ReserveUpdate{
		Address:  ev.ContractID,
		ReserveA: reserveA,
		ReserveB: reserveB,
		Ledger:   ev.Ledger,
	}, nil
}
