package domain

import "github.com/shopspring/decimal"

// BillType classifies a bill/receipt record.
type BillType string

const (
	TaxInvoice        BillType = "tax_invoice"
	ReceiptOnly       BillType = "receipt_only"
	TaxInvoiceReceipt BillType = "tax_invoice_receipt"
	GeneralBill       BillType = "general"
)

// BillDirection is the sign convention of a bill: positive bills are payments
// toward a deal, negative bills are expenses/deductions.
type BillDirection string

const (
	DirectionPositive BillDirection = "positive"
	DirectionNegative BillDirection = "negative"
)

// PaymentItem is one entry of an itemized payment breakdown. When a bill
// carries itemized payments they supersede the legacy single-method fields.
type PaymentItem struct {
	Amount      decimal.Decimal `json:"amount"`
	PaymentType string          `json:"paymentType"` // e.g. "visa", "cash", "check"
}

// Bill is a read model supplied by the caller; the ledger core never fetches
// bills itself. Legacy amount fields are zero when unset.
type Bill struct {
	BillID    string        `json:"billID"`
	DealID    string        `json:"dealID"`
	Type      BillType      `json:"type"`
	Direction BillDirection `json:"direction"`
	Payments  []PaymentItem `json:"payments"` // Itemized; wins over legacy fields when non-empty

	// Legacy single-method payment fields.
	VisaAmount     decimal.Decimal `json:"visaAmount"`
	TransferAmount decimal.Decimal `json:"transferAmount"`
	CheckAmount    decimal.Decimal `json:"checkAmount"`
	CashAmount     decimal.Decimal `json:"cashAmount"`
	BankAmount     decimal.Decimal `json:"bankAmount"`
	BillAmount     decimal.Decimal `json:"billAmount"` // Counted for general bills only
}
