package consensus

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/ledgerprep/ledgerprep/internal/common"
	"github.com/ledgerprep/ledgerprep/internal/model"
	"github.com/ledgerprep/ledgerprep/internal/normalize"
	"github.com/ledgerprep/ledgerprep/internal/rules"
	"github.com/ledgerprep/ledgerprep/internal/tax"
)

// Tax treatments excluded from taxable subtotals: tax lines are the tax
// itself, tip lines are not taxed.
const (
	treatmentTaxLine = "tax-line"
	treatmentTip     = "tip"
)

// extractionStage validates the structured record handed over by the external
// extraction collaborator. It performs no extraction itself.
type extractionStage struct{}

func (s *extractionStage) Name() string { return model.StageExtractionValidation }

// missingVendorConfidence caps the extraction confidence when the receipt has
// no vendor name. An empty vendor is a valid input; it only means vendor-scoped
// rules cannot fire.
const missingVendorConfidence = 0.6

func (s *extractionStage) Run(_ context.Context, state *State) (float64, error) {
	receipt := state.Receipt
	if len(receipt.LineItems) == 0 {
		return 0, common.ErrNoLineItems
	}
	if !receipt.TotalAmount.IsPositive() {
		return 0, fmt.Errorf("receipt total %s is not positive", receipt.TotalAmount.StringFixed(2))
	}

	// Proceed with the raw extracted items; normalization refines them next.
	state.Items = receipt.LineItems

	confidence := receipt.ExtractionConfidence
	if confidence <= 0 || confidence > 1 {
		confidence = 0.5
	}
	if receipt.VendorName == "" && confidence > missingVendorConfidence {
		confidence = missingVendorConfidence
	}
	return confidence, nil
}

// normalizationStage synthesizes missing tax/tip items and reconciles the
// item sum against the stated total.
type normalizationStage struct {
	normalizer *normalize.Normalizer
}

func (s *normalizationStage) Name() string { return model.StageNormalization }

func (s *normalizationStage) Run(_ context.Context, state *State) (float64, error) {
	items, err := s.normalizer.Normalize(state.Receipt)
	if err != nil {
		return 0, err
	}
	state.Items = items
	return 1.0, nil
}

// categorizationStage matches every line item against the active rule table.
// Items are independent, so they run on a bounded worker pool; results are
// written by index and the output is identical to sequential execution.
type categorizationStage struct {
	engine  *rules.Engine
	workers int
}

func (s *categorizationStage) Name() string { return model.StageCategorization }

func (s *categorizationStage) Run(ctx context.Context, state *State) (float64, error) {
	if len(state.Items) == 0 {
		return 0, common.ErrNoLineItems
	}

	// One snapshot for the whole stage; a concurrent reload must not split
	// a receipt across two rule tables.
	table := s.engine.Snapshot()
	vendor := state.Receipt.VendorName

	categorized := make([]model.CategorizedLineItem, len(state.Items))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, item := range state.Items {
		i, item := i, item
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			result, err := table.Match(item, vendor)
			if err != nil {
				return err
			}
			categorized[i] = model.CategorizedLineItem{
				LineItem:          item,
				RuleID:            result.RuleID,
				RuleName:          result.RuleName,
				Category:          result.Category,
				DeductiblePercent: result.DeductiblePercent,
				DeductibleAmount:  tax.DeductibleAmount(item.Amount, result.DeductiblePercent),
				LedgerAccount:     result.LedgerAccount,
				TaxTreatment:      result.TaxTreatment,
				Confidence:        result.Confidence,
				Reasoning:         result.Reasoning,
				Fallback:          result.Fallback,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	state.Categorized = categorized

	total := 0.0
	for _, item := range categorized {
		total += item.Confidence
	}
	return total / float64(len(categorized)), nil
}

// taxValidationStage cross-checks the receipt's stated tax against the
// jurisdiction table, one breakdown per category.
type taxValidationStage struct {
	calculator *tax.Calculator
}

func (s *taxValidationStage) Name() string { return model.StageTaxValidation }

func (s *taxValidationStage) Run(_ context.Context, state *State) (float64, error) {
	if len(state.Categorized) == 0 {
		return 0, fmt.Errorf("no categorized line items to validate")
	}

	receipt := state.Receipt
	if receipt.JurisdictionCode == "" {
		return 0, fmt.Errorf("receipt has no jurisdiction code")
	}

	subtotals := make(map[string]decimal.Decimal)
	taxableTotal := decimal.Zero
	for _, item := range state.Categorized {
		if item.TaxTreatment == treatmentTaxLine || item.TaxTreatment == treatmentTip {
			continue
		}
		subtotals[item.Category] = subtotals[item.Category].Add(item.LineItem.Amount)
		taxableTotal = taxableTotal.Add(item.LineItem.Amount)
	}
	if len(subtotals) == 0 {
		return 0, fmt.Errorf("no taxable line items to validate")
	}

	categories := make([]string, 0, len(subtotals))
	for category := range subtotals {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	// The receipt states one tax figure; allocate it across categories in
	// proportion to their taxable subtotals.
	var breakdowns []model.TaxBreakdown
	allocated := decimal.Zero
	for i, category := range categories {
		subtotal := subtotals[category]
		stated := receipt.TaxAmount.Sub(allocated)
		if i < len(categories)-1 {
			stated = receipt.TaxAmount.Mul(subtotal).Div(taxableTotal).Round(2)
			allocated = allocated.Add(stated)
		}

		breakdown, err := s.calculator.Compute(
			receipt.JurisdictionCode, receipt.TransactionDate, subtotal, stated, category)
		if err != nil {
			return 0, err
		}
		breakdowns = append(breakdowns, breakdown)
	}

	state.Breakdowns = breakdowns

	total := 0.0
	for _, b := range breakdowns {
		total += verdictConfidence(b.Verdict)
	}
	return total / float64(len(breakdowns)), nil
}

func verdictConfidence(v model.TaxVerdict) float64 {
	switch v {
	case model.VerdictPass:
		return 1.0
	case model.VerdictWarning:
		return 0.7
	default:
		return 0.25
	}
}
