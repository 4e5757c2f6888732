package rules

import "github.com/ledgerprep/ledgerprep/internal/model"

// DefaultRules returns the built-in categorization rule set, used when no
// external rule table is configured.
func DefaultRules() []model.Rule {
	return []model.Rule{
		{
			ID:                1,
			Name:              "Meals & Entertainment",
			Priority:          80,
			Keywords:          []string{"restaurant", "cafe", "coffee", "lunch", "dinner", "breakfast", "food", "meal", "catering", "burger", "pizza", "sandwich", "salad", "sushi"},
			Category:          "Meals & Entertainment",
			DeductiblePercent: 50,
			LedgerAccount:     "Expenses:Meals",
			TaxTreatment:      "meals-50",
			Confidence:        0.85,
		},
		{
			ID:                2,
			Name:              "Lodging",
			Priority:          85,
			Keywords:          []string{"room", "night", "lodging", "accommodation", "suite", "hotel", "motel"},
			Category:          "Lodging",
			DeductiblePercent: 100,
			LedgerAccount:     "Expenses:Travel:Lodging",
			TaxTreatment:      "standard",
			Confidence:        0.9,
		},
		{
			// Hotels bill ancillary fees (marketing, resort, destination) on
			// the room folio; they belong to Lodging, not the generic
			// category a keyword-only rule would pick.
			ID:                3,
			Name:              "Hotel Ancillary Fees",
			Priority:          70,
			Keywords:          []string{"marketing fee", "resort fee", "destination fee", "facility fee", "tourism levy"},
			VendorPatterns:    []string{"*hotel*", "*inn*", "*resort*", "*lodge*", "*suites*"},
			Category:          "Lodging",
			DeductiblePercent: 100,
			LedgerAccount:     "Expenses:Travel:Lodging",
			TaxTreatment:      "standard",
			Confidence:        0.85,
			ConfidenceBoost:   0.05,
		},
		{
			ID:                4,
			Name:              "Professional Services",
			Priority:          70,
			Keywords:          []string{"consulting", "legal", "accounting", "marketing fee", "professional", "advisory", "service fee"},
			Category:          "Professional Services",
			DeductiblePercent: 100,
			LedgerAccount:     "Expenses:Professional",
			TaxTreatment:      "standard",
			Confidence:        0.8,
		},
		{
			// Outranks Sales Tax so "taxi" never trips the "tax" keyword.
			ID:                5,
			Name:              "Ground Transportation",
			Priority:          96,
			Keywords:          []string{"taxi", "uber", "lyft", "transit", "parking", "toll", "mileage", "car rental"},
			Category:          "Transportation",
			DeductiblePercent: 100,
			LedgerAccount:     "Expenses:Travel:Transport",
			TaxTreatment:      "standard",
			Confidence:        0.85,
		},
		{
			ID:                6,
			Name:              "Office Supplies",
			Priority:          70,
			Keywords:          []string{"paper", "toner", "stapler", "pens", "office", "supplies", "printer"},
			Category:          "Office Supplies",
			DeductiblePercent: 100,
			LedgerAccount:     "Expenses:Office",
			TaxTreatment:      "standard",
			Confidence:        0.8,
		},
		{
			ID:                7,
			Name:              "Software & Subscriptions",
			Priority:          75,
			Keywords:          []string{"subscription", "license", "saas", "software", "hosting", "domain"},
			Category:          "Software",
			DeductiblePercent: 100,
			LedgerAccount:     "Expenses:Software",
			TaxTreatment:      "standard",
			Confidence:        0.85,
		},
		{
			// Synthesized tax lines land here so the charged tax flows into
			// the expense record at full deductibility.
			ID:                8,
			Name:              "Sales Tax",
			Priority:          95,
			Keywords:          []string{"gst", "hst", "pst", "qst", "sales tax", "tax"},
			Category:          "Sales Tax",
			DeductiblePercent: 100,
			LedgerAccount:     "Expenses:Tax:Sales",
			TaxTreatment:      "tax-line",
			Confidence:        0.95,
		},
		{
			ID:                9,
			Name:              "Tips & Gratuities",
			Priority:          95,
			Keywords:          []string{"tip", "gratuity", "service charge"},
			Category:          "Tips",
			DeductiblePercent: 50,
			LedgerAccount:     "Expenses:Meals",
			TaxTreatment:      "tip",
			Confidence:        0.95,
		},
		{
			ID:                999,
			Name:              "Uncategorized",
			Priority:          0,
			Category:          "Uncategorized",
			DeductiblePercent: 0,
			LedgerAccount:     "Expenses:Uncategorized",
			TaxTreatment:      "none",
			Confidence:        0.3,
			Fallback:          true,
		},
	}
}
