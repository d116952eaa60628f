package billing

import (
	"fmt"
	"strings"

	"github.com/motormate/dealer_backoffice/internal/core/domain"
	"github.com/shopspring/decimal"
)

// CurrencySymbol used in generated payment descriptions. Multi-currency is
// out of scope, so this is fixed.
const CurrencySymbol = "₪"

// AggregateBillAmount computes the single signed total of a bill.
// Itemized payments take precedence over the legacy single-method fields;
// when both are populated the legacy fields are ignored (deterministic
// precedence, not best-effort guessing). The result is normalized to a
// definite sign from the direction flag regardless of how the raw fields
// were entered, which protects against negative data-entry errors.
func AggregateBillAmount(bill domain.Bill, direction domain.BillDirection, payments []domain.PaymentItem) decimal.Decimal {
	total := RawBillTotal(bill, payments)
	if direction == domain.DirectionNegative {
		return total.Abs().Neg()
	}
	return total.Abs()
}

// RawBillTotal sums a bill's payment fields without applying any direction.
// The settlement calculator uses this directly because its direction handling
// differs per bill type.
func RawBillTotal(bill domain.Bill, payments []domain.PaymentItem) decimal.Decimal {
	if len(payments) > 0 {
		total := decimal.Zero
		for _, p := range payments {
			total = total.Add(p.Amount)
		}
		return total
	}

	total := bill.VisaAmount.
		Add(bill.TransferAmount).
		Add(bill.CheckAmount).
		Add(bill.CashAmount).
		Add(bill.BankAmount)
	if bill.Type == domain.GeneralBill {
		total = total.Add(bill.BillAmount)
	}
	return total
}

// DescribePayments renders a human-readable payment breakdown for the ledger
// description column, e.g. "visa: ₪500, cash: ₪200". Zero legacy fields are
// omitted; itemized entries are listed in the order they were entered.
func DescribePayments(bill domain.Bill, payments []domain.PaymentItem) string {
	parts := make([]string, 0, 6)

	if len(payments) > 0 {
		for _, p := range payments {
			parts = append(parts, formatPart(p.PaymentType, p.Amount))
		}
		return strings.Join(parts, ", ")
	}

	legacy := []struct {
		label  string
		amount decimal.Decimal
	}{
		{"visa", bill.VisaAmount},
		{"transfer", bill.TransferAmount},
		{"check", bill.CheckAmount},
		{"cash", bill.CashAmount},
		{"bank", bill.BankAmount},
	}
	for _, f := range legacy {
		if !f.amount.IsZero() {
			parts = append(parts, formatPart(f.label, f.amount))
		}
	}
	if bill.Type == domain.GeneralBill && !bill.BillAmount.IsZero() {
		parts = append(parts, formatPart("bill", bill.BillAmount))
	}
	return strings.Join(parts, ", ")
}

func formatPart(label string, amount decimal.Decimal) string {
	return fmt.Sprintf("%s: %s%s", label, CurrencySymbol, amount.String())
}
