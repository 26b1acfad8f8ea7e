package domain

import "time"

// ContractRef is a registered contract in the local registry.
// Corresponds to the contracts table in PostgreSQL.
//
// The engine only writes LastSeenTxCount and LastUpdated back after a
// successful statistics fetch; rows are created and deleted elsewhere.
type ContractRef struct {
	ContractID      string
	Name            string
	Network         string
	DeployedAt      time.Time
	LastSeenTxCount int
	LastUpdated     time.Time
}

// RefreshRecord captures the outcome of one completed statistics refresh.
// It is an observability side-channel: refresh outcomes are recorded, the
// statistics themselves are never persisted.
type RefreshRecord struct {
	ContractID   string
	Kind         string // "initial" | "foreground" | "background"
	TotalTx      int
	TotalEvents  int
	AvgFee       string
	LastActivity string // empty when no activity was observed
	DurationMs   int64
	Err          string // empty on success
	RefreshedAt  time.Time
}

// Refresh kinds recorded in RefreshRecord.Kind.
const (
	RefreshInitial    = "initial"
	RefreshForeground = "foreground"
	RefreshBackground = "background"
)
