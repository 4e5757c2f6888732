// Package model defines the core domain models used throughout the application.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineItemSource indicates how a line item came into existence.
type LineItemSource string

// Line item source constants.
const (
	SourceExplicit       LineItemSource = "explicit"
	SourceSynthesizedTax LineItemSource = "synthesized-tax"
	SourceSynthesizedTip LineItemSource = "synthesized-tip"
)

// LineItem is a single line on an extracted receipt. Instances are immutable
// once extracted; only the normalizer creates synthesized ones.
type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitAmount  decimal.Decimal `json:"unit_amount"`
	Amount      decimal.Decimal `json:"amount"`
	Source      LineItemSource  `json:"source,omitempty"`
}

// Receipt is the structured record produced by the external extraction
// collaborator. The core never performs extraction itself.
type Receipt struct {
	ID                   string          `json:"id"`
	VendorName           string          `json:"vendor_name"`
	VendorAddress        string          `json:"vendor_address,omitempty"`
	TransactionDate      time.Time       `json:"transaction_date"`
	LineItems            []LineItem      `json:"line_items"`
	Subtotal             decimal.Decimal `json:"subtotal"`
	TaxAmount            decimal.Decimal `json:"tax_amount"`
	TipAmount            decimal.Decimal `json:"tip_amount"`
	TotalAmount          decimal.Decimal `json:"total_amount"`
	Currency             string          `json:"currency"`
	JurisdictionCode     string          `json:"jurisdiction_code,omitempty"`
	ExtractionConfidence float64         `json:"extraction_confidence"`
}
