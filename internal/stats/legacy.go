package stats

import "soroban-watch/internal/domain"

// ToLegacy projects a canonical record onto the legacy field names. It is a
// pure renaming: both shapes carry the same values for the same contract and
// instant, so any divergence between the two routes is a bug.
func ToLegacy(s *domain.ContractStats) *domain.LegacyContractStats {
	if s == nil {
		return nil
	}

	txs := make([]domain.Transaction, len(s.Transactions))
	copy(txs, s.Transactions)

	return &domain.LegacyContractStats{
		ContractID:         s.ContractID,
		ContractName:       s.ContractName,
		Network:            s.Network,
		TotalTransactions:  s.TotalTx,
		TotalEvents:        s.TotalEvents,
		AverageFee:         s.AvgFee,
		LastInteraction:    s.LastActivity,
		RecentTransactions: txs,
	}
}
