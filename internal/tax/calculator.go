package tax

import (
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerprep/ledgerprep/internal/model"
)

// Discrepancy thresholds on |stated - expected| / expected.
var (
	passThreshold = decimal.RequireFromString("0.02")
	warnThreshold = decimal.RequireFromString("0.5")
)

// Calculator computes expected tax for a jurisdiction and cross-checks it
// against the tax a receipt actually states. The jurisdiction table is
// published behind an atomic pointer; reloads never disturb in-flight work.
type Calculator struct {
	table atomic.Pointer[Table]
}

// NewCalculator creates a calculator over the given jurisdiction table.
func NewCalculator(table *Table) *Calculator {
	c := &Calculator{}
	c.table.Store(table)
	return c
}

// Snapshot returns the currently active jurisdiction table.
func (c *Calculator) Snapshot() *Table {
	return c.table.Load()
}

// Reload atomically replaces the active jurisdiction table.
func (c *Calculator) Reload(table *Table) {
	c.table.Store(table)
}

// Compute builds the tax breakdown for one jurisdiction/category pair.
// Components exempted for the category are zeroed before computing the
// expected tax, so a legitimately omitted sub-tax is not a false discrepancy.
// A WARNING or FAIL verdict only annotates the breakdown; it never overrides
// the categorization.
func (c *Calculator) Compute(code string, date time.Time, subtotal, statedTax decimal.Decimal, category string) (model.TaxBreakdown, error) {
	jurisdiction, err := c.table.Load().Lookup(code, date)
	if err != nil {
		return model.TaxBreakdown{}, err
	}

	exempt := jurisdiction.ExemptComponents(category)

	breakdown := model.TaxBreakdown{
		JurisdictionCode: code,
		Category:         category,
		Subtotal:         subtotal,
		StatedTax:        statedTax,
	}

	expectedTax := decimal.Zero
	for _, component := range jurisdiction.Components {
		computed := model.ComputedComponent{
			Name:        component.Name,
			Rate:        component.Rate,
			ITCEligible: component.ITCEligible,
			Exempt:      exempt[component.Name],
		}
		if !computed.Exempt {
			computed.Expected = subtotal.Mul(component.Rate).Round(2)
			expectedTax = expectedTax.Add(computed.Expected)
		}
		breakdown.Components = append(breakdown.Components, computed)
	}
	breakdown.ExpectedTax = expectedTax
	breakdown.Discrepancy = statedTax.Sub(expectedTax)

	if expectedTax.IsZero() {
		// Ratio is undefined; only an actually-charged tax is a failure.
		breakdown.DiscrepancyRatio = decimal.Zero
		if statedTax.IsZero() {
			breakdown.Verdict = model.VerdictPass
		} else {
			breakdown.Verdict = model.VerdictFail
		}
		return breakdown, nil
	}

	breakdown.DiscrepancyRatio = breakdown.Discrepancy.Div(expectedTax).Round(6)
	switch ratio := breakdown.DiscrepancyRatio.Abs(); {
	case ratio.LessThanOrEqual(passThreshold):
		breakdown.Verdict = model.VerdictPass
	case ratio.LessThanOrEqual(warnThreshold):
		breakdown.Verdict = model.VerdictWarning
	default:
		breakdown.Verdict = model.VerdictFail
	}

	c.allocateCharged(&breakdown, expectedTax, statedTax)
	return breakdown, nil
}

// allocateCharged prorates the stated tax across the non-exempt components and
// sums the ITC-eligible share. The claim is always based on tax actually
// charged, never on the computed expectation.
func (c *Calculator) allocateCharged(breakdown *model.TaxBreakdown, expectedTax, statedTax decimal.Decimal) {
	remaining := statedTax
	lastActive := -1
	for i, component := range breakdown.Components {
		if !component.Exempt && component.Expected.IsPositive() {
			lastActive = i
		}
	}

	for i := range breakdown.Components {
		component := &breakdown.Components[i]
		if component.Exempt || !component.Expected.IsPositive() {
			continue
		}
		if i == lastActive {
			// Remainder goes to the last component so the charged amounts
			// always sum to the stated tax.
			component.Charged = remaining
		} else {
			component.Charged = statedTax.Mul(component.Expected).Div(expectedTax).Round(2)
			remaining = remaining.Sub(component.Charged)
		}
		if component.ITCEligible {
			breakdown.ITCClaimable = breakdown.ITCClaimable.Add(component.Charged)
		}
	}
}

// DeductibleAmount computes the deductible portion of an expense amount.
func DeductibleAmount(amount decimal.Decimal, percent int) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(int64(percent))).Div(decimal.NewFromInt(100)).Round(2)
}
