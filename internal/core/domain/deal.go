package domain

import "github.com/shopspring/decimal"

// DealType classifies a deal. Exchange deals carry a trade-in vehicle whose
// evaluated value offsets the selling price.
type DealType string

const (
	DealNormal       DealType = "normal"
	DealExchange     DealType = "exchange"
	DealIntermediary DealType = "intermediary"
)

// Deal is a read model supplied by the caller (already fetched with whatever
// joins the caller needs). Read-only to the ledger core.
type Deal struct {
	DealID               string          `json:"dealID"`
	CustomerID           string          `json:"customerID"`
	Title                string          `json:"title"`
	DealType             DealType        `json:"dealType"`
	SellingPrice         decimal.Decimal `json:"sellingPrice"`
	CustomerCarEvalValue decimal.Decimal `json:"customerCarEvalValue"` // Trade-in credit; meaningful for exchange deals
}

// EffectiveAmount returns the amount the customer actually owes on the deal:
// the selling price reduced by the trade-in credit for exchange deals,
// floored at zero.
func (d Deal) EffectiveAmount() decimal.Decimal {
	amount := d.SellingPrice
	if d.DealType == DealExchange && d.CustomerCarEvalValue.IsPositive() {
		amount = amount.Sub(d.CustomerCarEvalValue)
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}
