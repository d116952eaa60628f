package settlement

import (
	"github.com/motormate/dealer_backoffice/internal/core/domain"
	"github.com/motormate/dealer_backoffice/internal/utils/billing"
	"github.com/shopspring/decimal"
)

// SettlementBalance computes the outstanding balance of one specific deal
// from already-fetched data. It never touches the ledger store and mutates
// nothing, so callers may invoke it on every render.
//
// The result is negative while the customer still owes, zero when settled,
// and positive when overpaid (overpayment is allowed, not clamped).
func SettlementBalance(deal domain.Deal, bills []domain.Bill) decimal.Decimal {
	// The deal starts as a debt.
	balance := deal.SellingPrice.Abs().Neg()

	// Trade-in credit reduces the debt before any payment lands.
	if deal.DealType == domain.DealExchange && !deal.CustomerCarEvalValue.IsZero() {
		balance = balance.Add(deal.CustomerCarEvalValue.Abs())
	}

	for _, bill := range bills {
		switch bill.Type {
		case domain.TaxInvoiceReceipt:
			// The receipt portion of a combined tax-invoice-and-receipt bill
			// counts as payment irrespective of direction; direction on this
			// bill type governs tax classification, not cash flow.
			balance = balance.Add(billing.RawBillTotal(bill, bill.Payments).Abs())
		case domain.ReceiptOnly:
			amount := billing.RawBillTotal(bill, bill.Payments).Abs()
			if bill.Direction == domain.DirectionNegative {
				balance = balance.Sub(amount)
			} else {
				balance = balance.Add(amount)
			}
		default:
			// tax_invoice and general bills do not move the deal's cash position.
		}
	}

	return balance
}
