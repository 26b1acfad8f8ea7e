package domain

import "encoding/json"

// OperationType identifies the Horizon operation kinds that can touch a
// Soroban contract. Every other type is ignored by the involvement check.
type OperationType string

const (
	OpInvokeHostFunction OperationType = "invoke_host_function"
	OpExtendTTL          OperationType = "extend_ttl"
	OpRestoreFootprint   OperationType = "restore_footprint"
)

// Transaction is a ledger transaction as served by the Horizon feed.
// Records are immutable once produced by the feed; the scanner only reads
// and filters them.
type Transaction struct {
	ID             string `json:"id"`
	Hash           string `json:"hash"`
	Ledger         int64  `json:"ledger"`
	CreatedAt      string `json:"created_at"` // RFC 3339, as delivered by Horizon
	FeeCharged     string `json:"fee_charged"`
	OperationCount int    `json:"operation_count"`
	Successful     bool   `json:"successful"`
	PagingToken    string `json:"paging_token"`
}

// Operation is a single operation of a transaction. Only the fields the
// involvement check inspects are decoded; Raw holds the full source record
// for the serialized-payload substring test.
type Operation struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	ContractID    string `json:"contract_id,omitempty"`
	SourceAccount string `json:"source_account,omitempty"`
	Function      string `json:"function,omitempty"`
	Contract      string `json:"contract,omitempty"`

	Raw json.RawMessage `json:"-"`
}
