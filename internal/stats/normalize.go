package stats

import (
	"encoding/json"
	"fmt"

	"soroban-watch/internal/domain"
)

// wireStats accepts a statistics record in either the canonical or the
// legacy field naming. During the server-side migration clients can receive
// either shape, so every field carries both names.
type wireStats struct {
	ContractID   string `json:"contractId"`
	ContractName string `json:"contractName"`
	Network      string `json:"network"`

	TotalTx           *int `json:"totalTx"`
	TotalTransactions *int `json:"totalTransactions"`

	TotalEvents int `json:"totalEvents"`

	AvgFee     string `json:"avgFee"`
	AverageFee string `json:"averageFee"`

	LastActivity    *string `json:"lastActivity"`
	LastInteraction *string `json:"lastInteraction"`

	Transactions       []domain.Transaction `json:"transactions"`
	RecentTransactions []domain.Transaction `json:"recentTransactions"`

	Events []domain.Event `json:"events"`
}

// Normalize decodes a statistics payload of either schema version into the
// canonical record. Every field is read with a fallback chain: the new name,
// then the old name, then a type-appropriate empty default.
func Normalize(data []byte) (*domain.ContractStats, error) {
	var w wireStats
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode stats payload: %w", err)
	}
	return fromWire(&w), nil
}

func fromWire(w *wireStats) *domain.ContractStats {
	s := &domain.ContractStats{
		ContractID:   w.ContractID,
		ContractName: w.ContractName,
		Network:      w.Network,
		TotalEvents:  w.TotalEvents,
	}

	switch {
	case w.TotalTx != nil:
		s.TotalTx = *w.TotalTx
	case w.TotalTransactions != nil:
		s.TotalTx = *w.TotalTransactions
	}

	switch {
	case w.AvgFee != "":
		s.AvgFee = w.AvgFee
	case w.AverageFee != "":
		s.AvgFee = w.AverageFee
	default:
		s.AvgFee = "0"
	}

	switch {
	case w.LastActivity != nil:
		s.LastActivity = w.LastActivity
	case w.LastInteraction != nil:
		s.LastActivity = w.LastInteraction
	}

	switch {
	case w.Transactions != nil:
		s.Transactions = w.Transactions
	case w.RecentTransactions != nil:
		s.Transactions = w.RecentTransactions
	default:
		s.Transactions = []domain.Transaction{}
	}

	if w.Events != nil {
		s.Events = w.Events
	} else {
		s.Events = []domain.Event{}
	}

	return s
}
