// Package rules implements the categorization rule engine for receipt line items.
package rules

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/gobwas/glob"
	"github.com/shopspring/decimal"

	"github.com/ledgerprep/ledgerprep/internal/common"
	"github.com/ledgerprep/ledgerprep/internal/model"
)

// FallbackMaxConfidence caps the confidence of a fallback categorization.
const FallbackMaxConfidence = 0.5

// compiledRule is a rule with its keywords lowercased and vendor globs
// compiled once at table load.
type compiledRule struct {
	model.Rule
	keywords []string
	globs    []glob.Glob
}

// Table is an immutable, validated rule snapshot. Processing runs hold a
// reference to one snapshot for their entire lifetime.
type Table struct {
	rules    []compiledRule
	fallback compiledRule
}

// NewTable validates and compiles a rule set into an immutable snapshot.
// Malformed tables are rejected here; no malformed rule is ever evaluated.
func NewTable(ruleSet []model.Rule) (*Table, error) {
	if len(ruleSet) == 0 {
		return nil, &common.RuleValidationError{Reason: "rule table is empty"}
	}

	t := &Table{}
	seen := make(map[int]bool, len(ruleSet))
	fallbackCount := 0

	for _, r := range ruleSet {
		if r.ID <= 0 {
			return nil, &common.RuleValidationError{RuleID: r.ID, Reason: "id must be positive"}
		}
		if seen[r.ID] {
			return nil, &common.RuleValidationError{RuleID: r.ID, Reason: "duplicate id"}
		}
		seen[r.ID] = true

		if r.Priority < 0 {
			return nil, &common.RuleValidationError{RuleID: r.ID, Reason: "priority must be non-negative"}
		}
		if r.DeductiblePercent < 0 || r.DeductiblePercent > 100 {
			return nil, &common.RuleValidationError{RuleID: r.ID, Reason: "deductible_percent must be within [0,100]"}
		}
		if r.Confidence < 0 || r.Confidence > 1 {
			return nil, &common.RuleValidationError{RuleID: r.ID, Reason: "confidence must be within [0,1]"}
		}
		if r.Category == "" {
			return nil, &common.RuleValidationError{RuleID: r.ID, Reason: "category must not be empty"}
		}
		if r.AmountMin != nil && r.AmountMax != nil && r.AmountMin.GreaterThan(*r.AmountMax) {
			return nil, &common.RuleValidationError{RuleID: r.ID, Reason: "amount_min exceeds amount_max"}
		}
		if !r.Fallback && len(r.Keywords) == 0 {
			return nil, &common.RuleValidationError{RuleID: r.ID, Reason: "rule has no keyword conditions"}
		}

		compiled := compiledRule{Rule: r}
		for _, kw := range r.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				return nil, &common.RuleValidationError{RuleID: r.ID, Reason: "empty keyword"}
			}
			compiled.keywords = append(compiled.keywords, kw)
		}
		for _, pattern := range r.VendorPatterns {
			g, err := glob.Compile(strings.ToLower(pattern))
			if err != nil {
				return nil, &common.RuleValidationError{
					RuleID: r.ID,
					Reason: fmt.Sprintf("invalid vendor pattern %q: %v", pattern, err),
				}
			}
			compiled.globs = append(compiled.globs, g)
		}

		if r.Fallback {
			fallbackCount++
			t.fallback = compiled
			continue
		}
		t.rules = append(t.rules, compiled)
	}

	if fallbackCount != 1 {
		return nil, &common.RuleValidationError{
			Reason: fmt.Sprintf("exactly one fallback rule required, found %d", fallbackCount),
		}
	}

	// Stable evaluation order: priority descending, id ascending.
	sort.Slice(t.rules, func(i, j int) bool {
		if t.rules[i].Priority != t.rules[j].Priority {
			return t.rules[i].Priority > t.rules[j].Priority
		}
		return t.rules[i].ID < t.rules[j].ID
	})

	return t, nil
}

// Rules returns the non-fallback rules in evaluation order.
func (t *Table) Rules() []model.Rule {
	out := make([]model.Rule, len(t.rules))
	for i, r := range t.rules {
		out[i] = r.Rule
	}
	return out
}

// Fallback returns the designated fallback rule.
func (t *Table) Fallback() model.Rule {
	return t.fallback.Rule
}

// Categories returns the distinct categories the table can assign.
func (t *Table) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range t.rules {
		if !seen[r.Category] {
			seen[r.Category] = true
			out = append(out, r.Category)
		}
	}
	if !seen[t.fallback.Category] {
		out = append(out, t.fallback.Category)
	}
	sort.Strings(out)
	return out
}

// Engine matches line items against the active rule table. The table is
// published behind an atomic pointer so reloads never disturb in-flight work.
type Engine struct {
	table atomic.Pointer[Table]
}

// NewEngine creates an engine with the given initial table.
func NewEngine(table *Table) *Engine {
	e := &Engine{}
	e.table.Store(table)
	return e
}

// Snapshot returns the currently active table.
func (e *Engine) Snapshot() *Table {
	return e.table.Load()
}

// Reload atomically replaces the active table. Invalid tables never reach
// this point; NewTable rejects them without touching the active snapshot.
func (e *Engine) Reload(table *Table) {
	e.table.Store(table)
}

// match holds a candidate rule with its matched keyword terms.
type match struct {
	rule     *compiledRule
	keywords []string
}

// Match evaluates a line item against the active table and returns the winning
// categorization. It is a pure function of its inputs and the table snapshot,
// so every invocation is independently reproducible.
func (e *Engine) Match(item model.LineItem, vendorName string) (model.MatchResult, error) {
	return e.table.Load().Match(item, vendorName)
}

// Match evaluates a line item against this snapshot.
func (t *Table) Match(item model.LineItem, vendorName string) (model.MatchResult, error) {
	if !item.Amount.IsPositive() {
		return model.MatchResult{}, fmt.Errorf("line item %q has non-positive amount %s",
			item.Description, item.Amount.StringFixed(2))
	}

	description := strings.ToLower(item.Description)
	vendor := strings.ToLower(vendorName)

	var best *match
	for i := range t.rules {
		rule := &t.rules[i]
		matched := rule.matchedKeywords(description)
		if len(matched) == 0 {
			continue
		}
		if !rule.matchesVendor(vendor) {
			continue
		}
		if !rule.matchesAmount(item.Amount) {
			continue
		}

		candidate := &match{rule: rule, keywords: matched}
		if best == nil || candidate.beats(best) {
			best = candidate
		}
	}

	if best == nil {
		return t.fallbackResult(item), nil
	}

	rule := best.rule
	confidence := clampConfidence(rule.Confidence + rule.ConfidenceBoost)

	reasoning := fmt.Sprintf("rule %q matched keywords [%s]", rule.Name, strings.Join(best.keywords, ", "))
	if rule.VendorScoped() {
		reasoning += fmt.Sprintf(" for vendor %q", vendorName)
	}

	return model.MatchResult{
		RuleID:            rule.ID,
		RuleName:          rule.Name,
		Category:          rule.Category,
		DeductiblePercent: rule.DeductiblePercent,
		LedgerAccount:     rule.LedgerAccount,
		TaxTreatment:      rule.TaxTreatment,
		Confidence:        confidence,
		Reasoning:         reasoning,
		MatchedKeywords:   best.keywords,
		VendorScoped:      rule.VendorScoped(),
	}, nil
}

// beats reports whether m wins over other. Tie-break order: higher declared
// priority, vendor-scoped over generic, more matched keyword terms, lowest id.
func (m *match) beats(other *match) bool {
	if m.rule.Priority != other.rule.Priority {
		return m.rule.Priority > other.rule.Priority
	}
	if m.rule.VendorScoped() != other.rule.VendorScoped() {
		return m.rule.VendorScoped()
	}
	if len(m.keywords) != len(other.keywords) {
		return len(m.keywords) > len(other.keywords)
	}
	return m.rule.ID < other.rule.ID
}

func (t *Table) fallbackResult(item model.LineItem) model.MatchResult {
	fb := t.fallback
	confidence := clampConfidence(fb.Confidence)
	if confidence > FallbackMaxConfidence {
		confidence = FallbackMaxConfidence
	}

	return model.MatchResult{
		RuleID:            fb.ID,
		RuleName:          fb.Name,
		Category:          fb.Category,
		DeductiblePercent: fb.DeductiblePercent,
		LedgerAccount:     fb.LedgerAccount,
		TaxTreatment:      fb.TaxTreatment,
		Confidence:        confidence,
		Reasoning:         fmt.Sprintf("no rule matched %q, applied fallback", item.Description),
		Fallback:          true,
		RequiresReview:    true,
	}
}

func (r *compiledRule) matchedKeywords(description string) []string {
	var matched []string
	for _, kw := range r.keywords {
		if strings.Contains(description, kw) {
			matched = append(matched, kw)
		}
	}
	return matched
}

func (r *compiledRule) matchesVendor(vendor string) bool {
	if len(r.globs) == 0 {
		return true
	}
	for _, g := range r.globs {
		if g.Match(vendor) {
			return true
		}
	}
	return false
}

func (r *compiledRule) matchesAmount(amount decimal.Decimal) bool {
	if r.AmountMin != nil && amount.LessThan(*r.AmountMin) {
		return false
	}
	if r.AmountMax != nil && amount.GreaterThan(*r.AmountMax) {
		return false
	}
	return true
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
