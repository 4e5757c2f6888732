package rules

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerprep/ledgerprep/internal/common"
	"github.com/ledgerprep/ledgerprep/internal/model"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func item(description, amount string) model.LineItem {
	return model.LineItem{
		Description: description,
		Quantity:    decimal.NewFromInt(1),
		UnitAmount:  dec(amount),
		Amount:      dec(amount),
		Source:      model.SourceExplicit,
	}
}

func fallbackRule() model.Rule {
	return model.Rule{
		ID:            999,
		Name:          "Uncategorized",
		Category:      "Uncategorized",
		LedgerAccount: "Expenses:Uncategorized",
		TaxTreatment:  "none",
		Confidence:    0.3,
		Fallback:      true,
	}
}

func TestNewTable_Validation(t *testing.T) {
	valid := model.Rule{
		ID:                1,
		Name:              "Meals",
		Priority:          10,
		Keywords:          []string{"lunch"},
		Category:          "Meals",
		DeductiblePercent: 50,
		Confidence:        0.8,
	}

	tests := []struct {
		name    string
		mutate  func(r *model.Rule)
		wantErr string
	}{
		{
			name:    "valid rule",
			mutate:  func(*model.Rule) {},
			wantErr: "",
		},
		{
			name:    "non-positive id",
			mutate:  func(r *model.Rule) { r.ID = 0 },
			wantErr: "id must be positive",
		},
		{
			name:    "negative priority",
			mutate:  func(r *model.Rule) { r.Priority = -1 },
			wantErr: "priority must be non-negative",
		},
		{
			name:    "deductibility above 100",
			mutate:  func(r *model.Rule) { r.DeductiblePercent = 101 },
			wantErr: "deductible_percent must be within [0,100]",
		},
		{
			name:    "negative deductibility",
			mutate:  func(r *model.Rule) { r.DeductiblePercent = -5 },
			wantErr: "deductible_percent must be within [0,100]",
		},
		{
			name:    "confidence above 1",
			mutate:  func(r *model.Rule) { r.Confidence = 1.5 },
			wantErr: "confidence must be within [0,1]",
		},
		{
			name:    "empty category",
			mutate:  func(r *model.Rule) { r.Category = "" },
			wantErr: "category must not be empty",
		},
		{
			name:    "no keywords",
			mutate:  func(r *model.Rule) { r.Keywords = nil },
			wantErr: "no keyword conditions",
		},
		{
			name: "inverted amount range",
			mutate: func(r *model.Rule) {
				r.AmountMin = decPtr("100")
				r.AmountMax = decPtr("10")
			},
			wantErr: "amount_min exceeds amount_max",
		},
		{
			name:    "invalid vendor glob",
			mutate:  func(r *model.Rule) { r.VendorPatterns = []string{"[unclosed"} },
			wantErr: "invalid vendor pattern",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := valid
			tt.mutate(&rule)

			_, err := NewTable([]model.Rule{rule, fallbackRule()})
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			var validationErr *common.RuleValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewTable_DuplicateIDs(t *testing.T) {
	r1 := model.Rule{ID: 1, Name: "A", Keywords: []string{"a"}, Category: "A", Confidence: 0.5}
	r2 := model.Rule{ID: 1, Name: "B", Keywords: []string{"b"}, Category: "B", Confidence: 0.5}

	_, err := NewTable([]model.Rule{r1, r2, fallbackRule()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate id")
}

func TestNewTable_FallbackRequired(t *testing.T) {
	r := model.Rule{ID: 1, Name: "A", Keywords: []string{"a"}, Category: "A", Confidence: 0.5}

	_, err := NewTable([]model.Rule{r})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one fallback rule")

	fb2 := fallbackRule()
	fb2.ID = 998
	_, err = NewTable([]model.Rule{r, fallbackRule(), fb2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one fallback rule")
}

func TestNewTable_EmptyTable(t *testing.T) {
	_, err := NewTable(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestMatch_KeywordAndPriority(t *testing.T) {
	table, err := NewTable([]model.Rule{
		{ID: 1, Name: "Meals", Priority: 80, Keywords: []string{"coffee", "lunch"},
			Category: "Meals", DeductiblePercent: 50, LedgerAccount: "Expenses:Meals", Confidence: 0.85},
		{ID: 2, Name: "Office", Priority: 50, Keywords: []string{"coffee maker"},
			Category: "Office", DeductiblePercent: 100, Confidence: 0.8},
		fallbackRule(),
	})
	require.NoError(t, err)

	result, err := table.Match(item("Coffee maker for the office", "89.99"), "Staples")
	require.NoError(t, err)

	// Higher declared priority wins even though rule 2 matches too.
	assert.Equal(t, 1, result.RuleID)
	assert.Equal(t, "Meals", result.Category)
	assert.Equal(t, 50, result.DeductiblePercent)
	assert.Equal(t, []string{"coffee"}, result.MatchedKeywords)
	assert.False(t, result.Fallback)
	assert.False(t, result.RequiresReview)
}

func TestMatch_VendorScopedBeatsGenericAtEqualPriority(t *testing.T) {
	// Regression: a hotel's "marketing fee" must resolve to Lodging via the
	// vendor-aware rule, not to Professional Services via the generic one.
	table, err := NewTable([]model.Rule{
		{ID: 10, Name: "Professional Services", Priority: 70,
			Keywords: []string{"marketing fee"}, Category: "Professional Services",
			DeductiblePercent: 100, Confidence: 0.8},
		{ID: 11, Name: "Hotel Ancillary Fees", Priority: 70,
			Keywords: []string{"marketing fee"}, VendorPatterns: []string{"*hotel*"},
			Category: "Lodging", DeductiblePercent: 100, Confidence: 0.85},
		fallbackRule(),
	})
	require.NoError(t, err)

	result, err := table.Match(item("Marketing Fee", "12.00"), "Grand Pacific Hotel")
	require.NoError(t, err)
	assert.Equal(t, 11, result.RuleID)
	assert.Equal(t, "Lodging", result.Category)
	assert.True(t, result.VendorScoped)

	// Without a matching vendor the generic rule applies.
	result, err = table.Match(item("Marketing Fee", "12.00"), "Acme Consulting")
	require.NoError(t, err)
	assert.Equal(t, 10, result.RuleID)
	assert.Equal(t, "Professional Services", result.Category)
}

func TestMatch_TieBreakKeywordCountThenID(t *testing.T) {
	table, err := NewTable([]model.Rule{
		{ID: 5, Name: "One keyword", Priority: 10, Keywords: []string{"widget"},
			Category: "A", Confidence: 0.8},
		{ID: 3, Name: "Two keywords", Priority: 10, Keywords: []string{"widget", "deluxe"},
			Category: "B", Confidence: 0.8},
		fallbackRule(),
	})
	require.NoError(t, err)

	// More matched keyword terms wins.
	result, err := table.Match(item("Deluxe widget", "10.00"), "")
	require.NoError(t, err)
	assert.Equal(t, 3, result.RuleID)

	// Only "widget" matches both rules once: lowest id is the final tie-break.
	result, err = table.Match(item("widget", "10.00"), "")
	require.NoError(t, err)
	assert.Equal(t, 3, result.RuleID)
}

func TestMatch_AmountRange(t *testing.T) {
	table, err := NewTable([]model.Rule{
		{ID: 1, Name: "Small supplies", Priority: 10, Keywords: []string{"cable"},
			AmountMax: decPtr("50"), Category: "Office", Confidence: 0.8},
		{ID: 2, Name: "Equipment", Priority: 10, Keywords: []string{"cable"},
			AmountMin: decPtr("50.01"), Category: "Equipment", Confidence: 0.8},
		fallbackRule(),
	})
	require.NoError(t, err)

	result, err := table.Match(item("HDMI cable", "19.99"), "")
	require.NoError(t, err)
	assert.Equal(t, "Office", result.Category)

	result, err = table.Match(item("Fiber cable spool", "320.00"), "")
	require.NoError(t, err)
	assert.Equal(t, "Equipment", result.Category)
}

func TestMatch_FallbackFlagsReview(t *testing.T) {
	table, err := NewTable([]model.Rule{
		{ID: 1, Name: "Meals", Priority: 10, Keywords: []string{"lunch"},
			Category: "Meals", Confidence: 0.8},
		fallbackRule(),
	})
	require.NoError(t, err)

	result, err := table.Match(item("Mystery charge", "10.00"), "Unknown Vendor")
	require.NoError(t, err)
	assert.True(t, result.Fallback)
	assert.True(t, result.RequiresReview)
	assert.Equal(t, "Uncategorized", result.Category)
	assert.LessOrEqual(t, result.Confidence, FallbackMaxConfidence)
}

func TestMatch_FallbackConfidenceCapped(t *testing.T) {
	fb := fallbackRule()
	fb.Confidence = 0.9

	table, err := NewTable([]model.Rule{
		{ID: 1, Name: "Meals", Priority: 10, Keywords: []string{"lunch"},
			Category: "Meals", Confidence: 0.8},
		fb,
	})
	require.NoError(t, err)

	result, err := table.Match(item("Mystery charge", "10.00"), "")
	require.NoError(t, err)
	assert.Equal(t, FallbackMaxConfidence, result.Confidence)
}

func TestMatch_ConfidenceBoostClamped(t *testing.T) {
	table, err := NewTable([]model.Rule{
		{ID: 1, Name: "Meals", Priority: 10, Keywords: []string{"lunch"},
			Category: "Meals", Confidence: 0.95, ConfidenceBoost: 0.2},
		fallbackRule(),
	})
	require.NoError(t, err)

	result, err := table.Match(item("Team lunch", "45.00"), "")
	require.NoError(t, err)
	assert.Equal(t, 1.0, result.Confidence)
}

func TestMatch_RejectsNonPositiveAmount(t *testing.T) {
	table, err := NewTable([]model.Rule{
		{ID: 1, Name: "Meals", Priority: 10, Keywords: []string{"lunch"},
			Category: "Meals", Confidence: 0.8},
		fallbackRule(),
	})
	require.NoError(t, err)

	_, err = table.Match(item("Zero filler", "0"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-positive amount")
}

func TestEngine_ReloadIsAtomic(t *testing.T) {
	initial, err := NewTable([]model.Rule{
		{ID: 1, Name: "Meals", Priority: 10, Keywords: []string{"lunch"},
			Category: "Meals", Confidence: 0.8},
		fallbackRule(),
	})
	require.NoError(t, err)

	engine := NewEngine(initial)
	snapshot := engine.Snapshot()

	replacement, err := NewTable([]model.Rule{
		{ID: 1, Name: "Meals", Priority: 10, Keywords: []string{"lunch"},
			Category: "Dining", Confidence: 0.8},
		fallbackRule(),
	})
	require.NoError(t, err)
	engine.Reload(replacement)

	// New matches see the new table.
	result, err := engine.Match(item("lunch", "10.00"), "")
	require.NoError(t, err)
	assert.Equal(t, "Dining", result.Category)

	// A run holding the old snapshot keeps it for its lifetime.
	result, err = snapshot.Match(item("lunch", "10.00"), "")
	require.NoError(t, err)
	assert.Equal(t, "Meals", result.Category)
}

func TestEngine_InvalidReloadLeavesActiveTable(t *testing.T) {
	initial, err := NewTable([]model.Rule{
		{ID: 1, Name: "Meals", Priority: 10, Keywords: []string{"lunch"},
			Category: "Meals", Confidence: 0.8},
		fallbackRule(),
	})
	require.NoError(t, err)
	engine := NewEngine(initial)

	// A malformed table never compiles, so there is nothing to swap in.
	_, err = NewTable([]model.Rule{{ID: 1, Category: ""}})
	require.Error(t, err)

	result, err := engine.Match(item("lunch", "10.00"), "")
	require.NoError(t, err)
	assert.Equal(t, "Meals", result.Category)
}

func TestDefaultRules_Load(t *testing.T) {
	table, err := NewTable(DefaultRules())
	require.NoError(t, err)
	assert.NotEmpty(t, table.Rules())
	assert.True(t, table.Fallback().Fallback)
	assert.Contains(t, table.Categories(), "Meals & Entertainment")
}

func TestDefaultRules_TaxiIsNotSalesTax(t *testing.T) {
	table, err := NewTable(DefaultRules())
	require.NoError(t, err)

	result, err := table.Match(item("Taxi from airport", "42.50"), "Yellow Cab Co")
	require.NoError(t, err)
	assert.Equal(t, "Transportation", result.Category)
}
