package model

// ContractEvent is a contract event as returned by the Soroban RPC getEvents method.
// Topic and Value hold base64 encoded XDR ScVal values.
type ContractEvent struct {
	ID         string   `json:"id"`
	Type       string   `json:"type"`
	Ledger     uint32   `json:"ledger"`
	ContractID string   `json:"contractId"`
	Topic      []string `json:"topic"`
	Value      string   `json:"value"`
}
