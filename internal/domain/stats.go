package domain

// ContractStats is the canonical statistics record. It is constructed fresh
// on every request, never mutated after construction and never persisted.
type ContractStats struct {
	ContractID   string        `json:"contractId"`
	ContractName string        `json:"contractName"`
	Network      string        `json:"network"`
	TotalTx      int           `json:"totalTx"`
	TotalEvents  int           `json:"totalEvents"`
	AvgFee       string        `json:"avgFee"` // fixed-point string, "0" when no transactions
	LastActivity *string       `json:"lastActivity"`
	Transactions []Transaction `json:"transactions"` // ledger-descending, at most 20
	Events       []Event       `json:"events"`       // ledger-descending, at most 20
}

// LegacyContractStats is the field-renamed view of ContractStats served on
// the legacy route. It is a pure projection and never computed independently.
type LegacyContractStats struct {
	ContractID         string        `json:"contractId"`
	ContractName       string        `json:"contractName"`
	Network            string        `json:"network"`
	TotalTransactions  int           `json:"totalTransactions"`
	TotalEvents        int           `json:"totalEvents"`
	AverageFee         string        `json:"averageFee"`
	LastInteraction    *string       `json:"lastInteraction"`
	RecentTransactions []Transaction `json:"recentTransactions"`
}
