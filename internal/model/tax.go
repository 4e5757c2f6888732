package model

import "github.com/shopspring/decimal"

// TaxVerdict classifies the computed-vs-stated tax discrepancy.
type TaxVerdict string

// Tax verdict constants.
const (
	VerdictPass    TaxVerdict = "PASS"
	VerdictWarning TaxVerdict = "WARNING"
	VerdictFail    TaxVerdict = "FAIL"
)

// ComputedComponent is one jurisdiction tax component applied to a subtotal.
type ComputedComponent struct {
	Name        string          `json:"name"`
	Rate        decimal.Decimal `json:"rate"`
	Expected    decimal.Decimal `json:"expected"`
	Charged     decimal.Decimal `json:"charged"`
	ITCEligible bool            `json:"itc_eligible"`
	Exempt      bool            `json:"exempt"`
}

// TaxBreakdown is the calculator's verdict for one jurisdiction/category pair.
// A WARNING or FAIL never overrides the rule engine's categorization; it only
// annotates the result for downstream review.
type TaxBreakdown struct {
	JurisdictionCode string              `json:"jurisdiction_code"`
	Category         string              `json:"category"`
	Subtotal         decimal.Decimal     `json:"subtotal"`
	Components       []ComputedComponent `json:"components"`
	ExpectedTax      decimal.Decimal     `json:"expected_tax"`
	StatedTax        decimal.Decimal     `json:"stated_tax"`
	Discrepancy      decimal.Decimal     `json:"discrepancy"`
	DiscrepancyRatio decimal.Decimal     `json:"discrepancy_ratio"`
	Verdict          TaxVerdict          `json:"verdict"`
	ITCClaimable     decimal.Decimal     `json:"itc_claimable"`
}
