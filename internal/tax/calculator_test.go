package tax

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerprep/ledgerprep/internal/common"
	"github.com/ledgerprep/ledgerprep/internal/model"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var testDate = time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

func newTestCalculator(t *testing.T) *Calculator {
	t.Helper()
	table, err := NewTable(DefaultJurisdictions())
	require.NoError(t, err)
	return NewCalculator(table)
}

func TestCompute_BCMealIsPSTExempt(t *testing.T) {
	// BC restaurant meal: $30.00 subtotal, $1.50 stated tax. GST applies,
	// PST does not; the verdict must be PASS, not a phantom discrepancy.
	calc := newTestCalculator(t)

	breakdown, err := calc.Compute("CA-BC", testDate, dec("30.00"), dec("1.50"), "Meals & Entertainment")
	require.NoError(t, err)

	assert.Equal(t, model.VerdictPass, breakdown.Verdict)
	assert.True(t, breakdown.ExpectedTax.Equal(dec("1.50")), "expected tax %s", breakdown.ExpectedTax)
	assert.True(t, breakdown.Discrepancy.IsZero())
	assert.True(t, breakdown.ITCClaimable.Equal(dec("1.50")), "ITC %s", breakdown.ITCClaimable)

	require.Len(t, breakdown.Components, 2)
	gst, pst := breakdown.Components[0], breakdown.Components[1]
	assert.Equal(t, "GST", gst.Name)
	assert.False(t, gst.Exempt)
	assert.True(t, gst.Charged.Equal(dec("1.50")))
	assert.Equal(t, "PST", pst.Name)
	assert.True(t, pst.Exempt)
	assert.True(t, pst.Expected.IsZero())
}

func TestCompute_BCNonExemptCategoryExpectsPST(t *testing.T) {
	calc := newTestCalculator(t)

	// $100 of office supplies in BC: GST $5 + PST $7 expected.
	breakdown, err := calc.Compute("CA-BC", testDate, dec("100.00"), dec("12.00"), "Office Supplies")
	require.NoError(t, err)

	assert.True(t, breakdown.ExpectedTax.Equal(dec("12.00")))
	assert.Equal(t, model.VerdictPass, breakdown.Verdict)
	// Only the GST share is ITC-eligible.
	assert.True(t, breakdown.ITCClaimable.Equal(dec("5.00")), "ITC %s", breakdown.ITCClaimable)
}

func TestCompute_Verdicts(t *testing.T) {
	calc := newTestCalculator(t)

	tests := []struct {
		name      string
		statedTax string
		want      model.TaxVerdict
	}{
		{name: "exact", statedTax: "5.00", want: model.VerdictPass},
		{name: "within two percent", statedTax: "5.09", want: model.VerdictPass},
		{name: "moderate discrepancy", statedTax: "6.50", want: model.VerdictWarning},
		{name: "half expected", statedTax: "2.50", want: model.VerdictWarning},
		{name: "large discrepancy", statedTax: "12.00", want: model.VerdictFail},
		{name: "no tax charged", statedTax: "0", want: model.VerdictFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Alberta: GST only, expected tax on $100 is $5.00.
			breakdown, err := calc.Compute("CA-AB", testDate, dec("100.00"), dec(tt.statedTax), "Office Supplies")
			require.NoError(t, err)
			assert.Equal(t, tt.want, breakdown.Verdict)
		})
	}
}

func TestCompute_ZeroExpectedTax(t *testing.T) {
	table, err := NewTable([]model.Jurisdiction{{
		Code: "XX",
		Name: "Exempt-everything",
		Components: []model.TaxComponent{
			{Name: "VAT", Rate: dec("0.2"), ITCEligible: true},
		},
		Exemptions:    map[string][]string{"Meals": {"VAT"}},
		EffectiveFrom: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}})
	require.NoError(t, err)
	calc := NewCalculator(table)

	// Expected zero and stated zero: PASS, ratio guarded.
	breakdown, err := calc.Compute("XX", testDate, dec("50.00"), decimal.Zero, "Meals")
	require.NoError(t, err)
	assert.Equal(t, model.VerdictPass, breakdown.Verdict)
	assert.True(t, breakdown.DiscrepancyRatio.IsZero())

	// Expected zero but tax was charged: FAIL.
	breakdown, err = calc.Compute("XX", testDate, dec("50.00"), dec("2.00"), "Meals")
	require.NoError(t, err)
	assert.Equal(t, model.VerdictFail, breakdown.Verdict)
	assert.True(t, breakdown.ITCClaimable.IsZero())
}

func TestCompute_UnknownJurisdiction(t *testing.T) {
	calc := newTestCalculator(t)

	_, err := calc.Compute("US-WA", testDate, dec("100.00"), dec("10.00"), "Office Supplies")
	require.Error(t, err)

	var unknownErr *common.UnknownJurisdictionError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "US-WA", unknownErr.Code)
}

func TestCompute_ITCProrationSumsToStatedTax(t *testing.T) {
	calc := newTestCalculator(t)

	// Quebec: GST 5% + QST 9.975%, both creditable. A slightly-off stated
	// tax must still allocate exactly, with the remainder on the last
	// component.
	breakdown, err := calc.Compute("CA-QC", testDate, dec("100.00"), dec("14.97"), "Office Supplies")
	require.NoError(t, err)

	charged := decimal.Zero
	for _, component := range breakdown.Components {
		charged = charged.Add(component.Charged)
	}
	assert.True(t, charged.Equal(dec("14.97")), "charged sum %s", charged)
	assert.True(t, breakdown.ITCClaimable.Equal(dec("14.97")))
}

func TestCompute_WarningDoesNotAlterCategory(t *testing.T) {
	calc := newTestCalculator(t)

	breakdown, err := calc.Compute("CA-AB", testDate, dec("100.00"), dec("6.50"), "Office Supplies")
	require.NoError(t, err)
	assert.Equal(t, model.VerdictWarning, breakdown.Verdict)
	// The breakdown annotates; the category it was asked about is untouched.
	assert.Equal(t, "Office Supplies", breakdown.Category)
}

func TestDeductibleAmount(t *testing.T) {
	tests := []struct {
		amount  string
		percent int
		want    string
	}{
		{amount: "175.00", percent: 100, want: "175.00"},
		{amount: "40.70", percent: 50, want: "20.35"},
		{amount: "12.00", percent: 0, want: "0.00"},
		{amount: "33.33", percent: 50, want: "16.67"},
	}

	for _, tt := range tests {
		got := DeductibleAmount(dec(tt.amount), tt.percent)
		assert.True(t, got.Equal(dec(tt.want)), "%s at %d%% = %s, want %s",
			tt.amount, tt.percent, got, tt.want)
	}
}

func TestCalculator_ReloadIsAtomic(t *testing.T) {
	calc := newTestCalculator(t)
	snapshot := calc.Snapshot()

	replacement, err := NewTable([]model.Jurisdiction{{
		Code: "CA-AB",
		Name: "Alberta",
		Components: []model.TaxComponent{
			{Name: "GST", Rate: dec("0.06"), ITCEligible: true},
		},
		EffectiveFrom: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}})
	require.NoError(t, err)
	calc.Reload(replacement)

	breakdown, err := calc.Compute("CA-AB", testDate, dec("100.00"), dec("6.00"), "Office Supplies")
	require.NoError(t, err)
	assert.True(t, breakdown.ExpectedTax.Equal(dec("6.00")))

	// The old snapshot still computes with the old rate.
	_, err = snapshot.Lookup("CA-BC", testDate)
	assert.NoError(t, err)
}
