package mapping

import (
	"github.com/motormate/dealer_backoffice/internal/core/domain"
	"github.com/motormate/dealer_backoffice/internal/models"
)

// ToModelLedgerTransaction converts a domain LedgerTransaction to a model LedgerTransaction
func ToModelLedgerTransaction(d domain.LedgerTransaction) models.LedgerTransaction {
	return models.LedgerTransaction{
		TransactionID: d.TransactionID,
		CustomerID:    d.CustomerID,
		Type:          models.TransactionType(d.Type),
		Amount:        d.Amount,
		BalanceBefore: d.BalanceBefore,
		BalanceAfter:  d.BalanceAfter,
		ReferenceID:   d.ReferenceID,
		Description:   d.Description,
		CreatedAt:     d.CreatedAt,
	}
}

// ToDomainLedgerTransaction converts a model LedgerTransaction to a domain LedgerTransaction
func ToDomainLedgerTransaction(m models.LedgerTransaction) domain.LedgerTransaction {
	return domain.LedgerTransaction{
		TransactionID: m.TransactionID,
		CustomerID:    m.CustomerID,
		Type:          domain.TransactionType(m.Type),
		Amount:        m.Amount,
		BalanceBefore: m.BalanceBefore,
		BalanceAfter:  m.BalanceAfter,
		ReferenceID:   m.ReferenceID,
		Description:   m.Description,
		CreatedAt:     m.CreatedAt,
	}
}

// ToDomainLedgerTransactionSlice converts a slice of model rows to domain rows
func ToDomainLedgerTransactionSlice(ms []models.LedgerTransaction) []domain.LedgerTransaction {
	ds := make([]domain.LedgerTransaction, len(ms))
	for i, m := range ms {
		ds[i] = ToDomainLedgerTransaction(m)
	}
	return ds
}
