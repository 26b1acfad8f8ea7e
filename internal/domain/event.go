package domain

import "encoding/json"

// Event is a contract-emitted event normalized from the Soroban RPC
// getEvents response. Timestamp is always populated: records lacking both a
// timestamp and a ledger-closed-at field are dropped during normalization.
type Event struct {
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	Ledger         int64           `json:"ledger"`
	LedgerClosedAt string          `json:"ledgerClosedAt"`
	ContractID     string          `json:"contractId"`
	Topic          []string        `json:"topic"`
	Value          json.RawMessage `json:"value"`
	TxHash         string          `json:"txHash"`
	Timestamp      string          `json:"timestamp"`
}
