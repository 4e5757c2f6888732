package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaxComponent is one tax levied by a jurisdiction (e.g. GST at 5%).
type TaxComponent struct {
	Name        string          `json:"name" yaml:"name"`
	Rate        decimal.Decimal `json:"rate" yaml:"rate"`
	ITCEligible bool            `json:"itc_eligible" yaml:"itc_eligible"`
}

// Jurisdiction is a tax authority's rate set. Static, versioned configuration;
// never mutated at runtime.
type Jurisdiction struct {
	Code       string         `json:"code" yaml:"code"`
	Name       string         `json:"name" yaml:"name"`
	Components []TaxComponent `json:"components" yaml:"components"`
	// Exemptions maps an expense category to the component names that do not
	// apply to it (e.g. BC restaurant meals are PST-exempt).
	Exemptions    map[string][]string `json:"exemptions,omitempty" yaml:"exemptions,omitempty"`
	EffectiveFrom time.Time           `json:"effective_from" yaml:"effective_from"`
	EffectiveTo   *time.Time          `json:"effective_to,omitempty" yaml:"effective_to,omitempty"`
}

// ExemptComponents returns the component names exempted for a category.
func (j *Jurisdiction) ExemptComponents(category string) map[string]bool {
	exempt := make(map[string]bool)
	for _, name := range j.Exemptions[category] {
		exempt[name] = true
	}
	return exempt
}

// InEffect reports whether the jurisdiction entry covers the given date.
func (j *Jurisdiction) InEffect(date time.Time) bool {
	if date.Before(j.EffectiveFrom) {
		return false
	}
	if j.EffectiveTo != nil && date.After(*j.EffectiveTo) {
		return false
	}
	return true
}
