package tax

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerprep/ledgerprep/internal/model"
)

func rate(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// DefaultJurisdictions returns the built-in Canadian jurisdiction table, used
// when no external table is configured. PST is not ITC-eligible; GST, HST and
// QST are creditable on business purchases.
func DefaultJurisdictions() []model.Jurisdiction {
	effective := time.Date(2013, 4, 1, 0, 0, 0, 0, time.UTC)

	return []model.Jurisdiction{
		{
			Code: "CA-BC",
			Name: "British Columbia",
			Components: []model.TaxComponent{
				{Name: "GST", Rate: rate("0.05"), ITCEligible: true},
				{Name: "PST", Rate: rate("0.07"), ITCEligible: false},
			},
			// Restaurant food is PST-exempt in BC; without this the
			// calculator reports a phantom discrepancy on every meal.
			Exemptions: map[string][]string{
				"Meals & Entertainment": {"PST"},
				"Tips":                  {"PST"},
				"Sales Tax":             {"PST"},
			},
			EffectiveFrom: effective,
		},
		{
			Code: "CA-AB",
			Name: "Alberta",
			Components: []model.TaxComponent{
				{Name: "GST", Rate: rate("0.05"), ITCEligible: true},
			},
			EffectiveFrom: effective,
		},
		{
			Code: "CA-ON",
			Name: "Ontario",
			Components: []model.TaxComponent{
				{Name: "HST", Rate: rate("0.13"), ITCEligible: true},
			},
			EffectiveFrom: effective,
		},
		{
			Code: "CA-QC",
			Name: "Quebec",
			Components: []model.TaxComponent{
				{Name: "GST", Rate: rate("0.05"), ITCEligible: true},
				{Name: "QST", Rate: rate("0.09975"), ITCEligible: true},
			},
			EffectiveFrom: effective,
		},
		{
			Code: "CA-NS",
			Name: "Nova Scotia",
			Components: []model.TaxComponent{
				{Name: "HST", Rate: rate("0.15"), ITCEligible: true},
			},
			EffectiveFrom: effective,
		},
	}
}
