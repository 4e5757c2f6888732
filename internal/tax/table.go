// Package tax implements jurisdiction-aware tax computation and validation.
package tax

import (
	"fmt"
	"sort"
	"time"

	"github.com/ledgerprep/ledgerprep/internal/common"
	"github.com/ledgerprep/ledgerprep/internal/model"
)

// Table is an immutable jurisdiction snapshot, validated at load time.
type Table struct {
	byCode map[string][]model.Jurisdiction
}

// NewTable validates jurisdiction configuration into an immutable snapshot.
func NewTable(jurisdictions []model.Jurisdiction) (*Table, error) {
	if len(jurisdictions) == 0 {
		return nil, fmt.Errorf("%w: jurisdiction table is empty", common.ErrInvalidConfig)
	}

	byCode := make(map[string][]model.Jurisdiction)
	for _, j := range jurisdictions {
		if j.Code == "" {
			return nil, fmt.Errorf("%w: jurisdiction has empty code", common.ErrInvalidConfig)
		}
		if len(j.Components) == 0 {
			return nil, fmt.Errorf("%w: jurisdiction %s has no tax components", common.ErrInvalidConfig, j.Code)
		}

		componentNames := make(map[string]bool, len(j.Components))
		for _, c := range j.Components {
			if c.Name == "" {
				return nil, fmt.Errorf("%w: jurisdiction %s has unnamed component", common.ErrInvalidConfig, j.Code)
			}
			if componentNames[c.Name] {
				return nil, fmt.Errorf("%w: jurisdiction %s has duplicate component %s", common.ErrInvalidConfig, j.Code, c.Name)
			}
			if c.Rate.IsNegative() {
				return nil, fmt.Errorf("%w: jurisdiction %s component %s has negative rate", common.ErrInvalidConfig, j.Code, c.Name)
			}
			componentNames[c.Name] = true
		}

		for category, names := range j.Exemptions {
			for _, name := range names {
				if !componentNames[name] {
					return nil, fmt.Errorf("%w: jurisdiction %s exempts unknown component %s for category %s",
						common.ErrInvalidConfig, j.Code, name, category)
				}
			}
		}

		if j.EffectiveTo != nil && j.EffectiveTo.Before(j.EffectiveFrom) {
			return nil, fmt.Errorf("%w: jurisdiction %s effective range is inverted", common.ErrInvalidConfig, j.Code)
		}

		byCode[j.Code] = append(byCode[j.Code], j)
	}

	// Newest effective entry first, so Lookup picks the latest match.
	for code := range byCode {
		entries := byCode[code]
		sort.Slice(entries, func(i, k int) bool {
			return entries[i].EffectiveFrom.After(entries[k].EffectiveFrom)
		})
	}

	return &Table{byCode: byCode}, nil
}

// Lookup returns the jurisdiction entry in effect for the given date.
func (t *Table) Lookup(code string, date time.Time) (*model.Jurisdiction, error) {
	entries, ok := t.byCode[code]
	if !ok {
		return nil, &common.UnknownJurisdictionError{Code: code}
	}
	for i := range entries {
		if entries[i].InEffect(date) {
			return &entries[i], nil
		}
	}
	return nil, &common.UnknownJurisdictionError{Code: code}
}

// Codes returns the configured jurisdiction codes, sorted.
func (t *Table) Codes() []string {
	codes := make([]string, 0, len(t.byCode))
	for code := range t.byCode {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Jurisdictions returns all configured entries, ordered by code.
func (t *Table) Jurisdictions() []model.Jurisdiction {
	var out []model.Jurisdiction
	for _, code := range t.Codes() {
		out = append(out, t.byCode[code]...)
	}
	return out
}
