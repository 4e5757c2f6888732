// Package normalize prepares extracted line items for categorization.
package normalize

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ledgerprep/ledgerprep/internal/common"
	"github.com/ledgerprep/ledgerprep/internal/model"
)

// Keyword sets used to detect whether a receipt already itemizes its tax or tip.
var (
	taxKeywords = []string{"gst", "hst", "pst", "qst", "tax"}
	tipKeywords = []string{"tip", "gratuity", "service charge"}
)

// centTolerance bounds the allowed gap between the reconciled item sum and the
// receipt's stated total.
var centTolerance = decimal.RequireFromString("0.01")

// Normalizer synthesizes missing tax and tip line items from top-level receipt
// fields. It is the only component permitted to create synthetic line items.
type Normalizer struct{}

// New creates a line item normalizer.
func New() *Normalizer {
	return &Normalizer{}
}

// Normalize validates the extracted line items, synthesizes at most one tax
// and one tip item from the receipt's top-level amounts, and checks that the
// result reconciles to the stated total. A reconciliation failure is surfaced,
// never auto-corrected; silent correction would hide upstream extraction errors.
func (n *Normalizer) Normalize(receipt *model.Receipt) ([]model.LineItem, error) {
	if len(receipt.LineItems) == 0 {
		return nil, common.ErrNoLineItems
	}

	items := make([]model.LineItem, 0, len(receipt.LineItems)+2)
	for _, item := range receipt.LineItems {
		if !item.Amount.IsPositive() {
			return nil, &common.NormalizationInvariantError{
				Reason: fmt.Sprintf("line item %q has non-positive amount %s",
					item.Description, item.Amount.StringFixed(2)),
			}
		}
		if item.Source == "" {
			item.Source = model.SourceExplicit
		}
		items = append(items, item)
	}

	if receipt.TaxAmount.IsPositive() && !containsAnyKeyword(items, taxKeywords) {
		items = append(items, model.LineItem{
			Description: "Sales Tax",
			Quantity:    decimal.NewFromInt(1),
			UnitAmount:  receipt.TaxAmount,
			Amount:      receipt.TaxAmount,
			Source:      model.SourceSynthesizedTax,
		})
	}

	if receipt.TipAmount.IsPositive() && !containsAnyKeyword(items, tipKeywords) {
		items = append(items, model.LineItem{
			Description: "Tip",
			Quantity:    decimal.NewFromInt(1),
			UnitAmount:  receipt.TipAmount,
			Amount:      receipt.TipAmount,
			Source:      model.SourceSynthesizedTip,
		})
	}

	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.Amount)
	}
	if sum.Sub(receipt.TotalAmount).Abs().GreaterThan(centTolerance) {
		return nil, &common.NormalizationInvariantError{
			Reason:   "line items do not reconcile to receipt total",
			Expected: receipt.TotalAmount,
			Actual:   sum,
		}
	}

	return items, nil
}

// containsAnyKeyword reports whether any line item description contains one of
// the keywords, case-insensitively.
func containsAnyKeyword(items []model.LineItem, keywords []string) bool {
	for _, item := range items {
		description := strings.ToLower(item.Description)
		for _, kw := range keywords {
			if strings.Contains(description, kw) {
				return true
			}
		}
	}
	return false
}
