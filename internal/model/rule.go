package model

import "github.com/shopspring/decimal"

// Rule matches line items against keyword, vendor, and amount conditions and
// carries the categorization it assigns. Rules are immutable once loaded.
type Rule struct {
	ID                int              `json:"id" yaml:"id"`
	Name              string           `json:"name" yaml:"name"`
	Priority          int              `json:"priority" yaml:"priority"`
	Keywords          []string         `json:"keywords" yaml:"keywords"`
	VendorPatterns    []string         `json:"vendor_patterns,omitempty" yaml:"vendor_patterns,omitempty"`
	AmountMin         *decimal.Decimal `json:"amount_min,omitempty" yaml:"amount_min,omitempty"`
	AmountMax         *decimal.Decimal `json:"amount_max,omitempty" yaml:"amount_max,omitempty"`
	Category          string           `json:"category" yaml:"category"`
	DeductiblePercent int              `json:"deductible_percent" yaml:"deductible_percent"`
	LedgerAccount     string           `json:"ledger_account" yaml:"ledger_account"`
	TaxTreatment      string           `json:"tax_treatment" yaml:"tax_treatment"`
	Confidence        float64          `json:"confidence" yaml:"confidence"`
	ConfidenceBoost   float64          `json:"confidence_boost,omitempty" yaml:"confidence_boost,omitempty"`
	Fallback          bool             `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// VendorScoped reports whether the rule only applies to specific vendors.
// Vendor-scoped rules outrank vendor-agnostic rules of equal priority.
func (r *Rule) VendorScoped() bool {
	return len(r.VendorPatterns) > 0
}

// MatchResult is the outcome of evaluating a line item against the rule table.
type MatchResult struct {
	RuleID            int
	RuleName          string
	Category          string
	DeductiblePercent int
	LedgerAccount     string
	TaxTreatment      string
	Confidence        float64
	Reasoning         string
	MatchedKeywords   []string
	VendorScoped      bool
	Fallback          bool
	RequiresReview    bool
}

// CategorizedLineItem is a line item after rule matching.
type CategorizedLineItem struct {
	LineItem          LineItem        `json:"line_item"`
	RuleID            int             `json:"rule_id"`
	RuleName          string          `json:"rule_name"`
	Category          string          `json:"category"`
	DeductiblePercent int             `json:"deductible_percent"`
	DeductibleAmount  decimal.Decimal `json:"deductible_amount"`
	LedgerAccount     string          `json:"ledger_account"`
	TaxTreatment      string          `json:"tax_treatment"`
	Confidence        float64         `json:"confidence"`
	Reasoning         string          `json:"reasoning"`
	Fallback          bool            `json:"fallback"`
}
