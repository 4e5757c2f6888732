package consensus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerprep/ledgerprep/internal/common"
	"github.com/ledgerprep/ledgerprep/internal/model"
	"github.com/ledgerprep/ledgerprep/internal/normalize"
	"github.com/ledgerprep/ledgerprep/internal/rules"
	"github.com/ledgerprep/ledgerprep/internal/service"
	"github.com/ledgerprep/ledgerprep/internal/tax"
)

// ReviewThreshold is the final confidence below which a result is flagged.
const ReviewThreshold = 0.75

// Aggregation weights per stage. Extraction validation gates unanimity but
// carries no weight of its own; weights are rebalanced over the stages present.
var stageWeights = map[string]float64{
	model.StageNormalization:  0.1,
	model.StageCategorization: 0.5,
	model.StageTaxValidation:  0.4,
}

// Aggregation penalties.
const (
	majorityPenalty   = 0.8
	bestEffortPenalty = 0.6
)

// Config holds configuration options for the orchestrator.
type Config struct {
	StageTimeout  time.Duration
	StageAttempts int
	MaxWorkers    int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		StageTimeout:  30 * time.Second,
		StageAttempts: 2,
		MaxWorkers:    4,
	}
}

// Orchestrator runs the fixed stage pipeline over one receipt and aggregates
// the per-stage outcomes into a single immutable ConsensusResult.
type Orchestrator struct {
	stages   []Stage
	timeout  time.Duration
	attempts int
}

// New creates an orchestrator wired to the given rule engine and calculator.
func New(engine *rules.Engine, calculator *tax.Calculator, config Config) *Orchestrator {
	if config.StageTimeout <= 0 {
		config.StageTimeout = DefaultConfig().StageTimeout
	}
	if config.StageAttempts <= 0 {
		config.StageAttempts = DefaultConfig().StageAttempts
	}
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = DefaultConfig().MaxWorkers
	}

	return &Orchestrator{
		stages: []Stage{
			&extractionStage{},
			&normalizationStage{normalizer: normalize.New()},
			&categorizationStage{engine: engine, workers: config.MaxWorkers},
			&taxValidationStage{calculator: calculator},
		},
		timeout:  config.StageTimeout,
		attempts: config.StageAttempts,
	}
}

// NewWithStages creates an orchestrator over an explicit stage list.
func NewWithStages(stages []Stage, config Config) *Orchestrator {
	if config.StageTimeout <= 0 {
		config.StageTimeout = DefaultConfig().StageTimeout
	}
	if config.StageAttempts <= 0 {
		config.StageAttempts = DefaultConfig().StageAttempts
	}

	return &Orchestrator{
		stages:   stages,
		timeout:  config.StageTimeout,
		attempts: config.StageAttempts,
	}
}

// Process runs the pipeline on one receipt. Stage failures degrade the result,
// they never abort it: a partial answer with clear warnings is still a usable
// financial record.
func (o *Orchestrator) Process(ctx context.Context, receipt *model.Receipt) (*model.ConsensusResult, error) {
	if receipt == nil {
		return nil, fmt.Errorf("receipt must not be nil")
	}

	slog.Info("Processing receipt",
		"receipt_id", receipt.ID,
		"vendor", receipt.VendorName,
		"line_items", len(receipt.LineItems))

	state := &State{Receipt: receipt}
	stageResults := make([]model.AgentResult, 0, len(o.stages))

	for _, stage := range o.stages {
		stageResults = append(stageResults, o.runStage(ctx, stage, state))
	}

	result := o.aggregate(receipt, state, stageResults)

	slog.Info("Receipt processed",
		"receipt_id", receipt.ID,
		"confidence", result.Confidence,
		"method", result.Method,
		"flags", len(result.FlagsForReview))

	return result, nil
}

// retryDelay is the backoff floor between stage attempts.
const retryDelay = 100 * time.Millisecond

// runStage executes one stage with a bounded timeout and a small fixed retry
// bound. Exhausting retries is a stage failure, not an orchestrator failure.
func (o *Orchestrator) runStage(ctx context.Context, stage Stage, state *State) model.AgentResult {
	start := time.Now()

	var confidence float64
	var lastErr error
	timedOut := false

	err := common.WithRetry(ctx, func() error {
		c, runErr := o.runStageOnce(ctx, stage, state)
		if runErr != nil {
			lastErr = runErr
			var stageErr *common.StageError
			if errors.As(runErr, &stageErr) {
				timedOut = stageErr.Timeout
			} else {
				timedOut = errors.Is(runErr, context.DeadlineExceeded)
			}
			return runErr
		}
		confidence = c
		return nil
	}, service.RetryOptions{
		MaxAttempts:  o.attempts,
		InitialDelay: retryDelay,
	})
	if err == nil {
		return model.AgentResult{
			Stage:      stage.Name(),
			Success:    true,
			Confidence: confidence,
			Elapsed:    time.Since(start),
		}
	}

	var stageErr *common.StageError
	if !errors.As(lastErr, &stageErr) {
		stageErr = &common.StageError{Stage: stage.Name(), Err: lastErr, Timeout: timedOut}
	}
	common.LogError(stageErr, "Stage failed, continuing degraded", common.Fields{
		"stage": stage.Name(),
	})

	return model.AgentResult{
		Stage:   stage.Name(),
		Success: false,
		Error:   stageErr.Error(),
		Elapsed: time.Since(start),
	}
}

// runStageOnce executes a single attempt under the per-stage timeout. The
// stage works against a private copy of the state; its writes publish into the
// shared state only when it finishes inside the deadline. An abandoned attempt
// keeps writing to the discarded copy, so a late finisher can never race the
// next stage or leak output into the result.
func (o *Orchestrator) runStageOnce(ctx context.Context, stage Stage, state *State) (float64, error) {
	stageCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	scratch := *state

	type outcome struct {
		err        error
		confidence float64
	}

	done := make(chan outcome, 1)
	go func() {
		confidence, err := stage.Run(stageCtx, &scratch)
		done <- outcome{confidence: confidence, err: err}
	}()

	select {
	case <-stageCtx.Done():
		return 0, &common.StageError{Stage: stage.Name(), Err: stageCtx.Err(), Timeout: true}
	case out := <-done:
		if out.err == nil {
			*state = scratch
		}
		return out.confidence, out.err
	}
}

// aggregate reconciles the stage trace into the terminal result.
func (o *Orchestrator) aggregate(receipt *model.Receipt, state *State, stageResults []model.AgentResult) *model.ConsensusResult {
	successes := 0
	for _, r := range stageResults {
		if r.Success {
			successes++
		}
	}

	var confidence float64
	var method model.ConsensusMethod
	var flags []string

	switch {
	case successes == len(stageResults):
		method = model.MethodUnanimous
		confidence = weightedConfidence(stageResults)
	case successes*2 >= len(stageResults):
		method = model.MethodMajority
		confidence = meanSuccessConfidence(stageResults) * majorityPenalty
	case successes > 0:
		method = model.MethodBestEffort
		confidence = bestSuccessConfidence(stageResults) * bestEffortPenalty
		flags = append(flags, "fewer than half of pipeline stages succeeded")
	default:
		method = model.MethodFailure
		confidence = 0
		flags = append(flags, "all pipeline stages failed")
	}

	for _, r := range stageResults {
		if !r.Success {
			flags = append(flags, fmt.Sprintf("stage %s failed: %s", r.Stage, r.Error))
		}
	}

	if confidence < ReviewThreshold {
		flags = append(flags, fmt.Sprintf("confidence %.2f below review threshold %.2f", confidence, ReviewThreshold))
	}
	for _, item := range state.Categorized {
		if item.Fallback {
			flags = append(flags, fmt.Sprintf("line item %q categorized by fallback rule", item.LineItem.Description))
		}
	}
	for _, breakdown := range state.Breakdowns {
		if breakdown.Verdict == model.VerdictFail {
			flags = append(flags, fmt.Sprintf("tax validation failed for category %q in %s",
				breakdown.Category, breakdown.JurisdictionCode))
		}
	}

	return &model.ConsensusResult{
		ID:             uuid.New().String(),
		ReceiptID:      receipt.ID,
		Success:        method != model.MethodFailure,
		Confidence:     confidence,
		Method:         method,
		Stages:         stageResults,
		FlagsForReview: flags,
		Expense:        buildExpense(receipt, state),
		GeneratedAt:    time.Now().UTC(),
	}
}

// weightedConfidence is the fixed weighted average over the weighted stages
// present, rebalanced by the weight actually present.
func weightedConfidence(stageResults []model.AgentResult) float64 {
	var sum, totalWeight float64
	for _, r := range stageResults {
		weight, ok := stageWeights[r.Stage]
		if !ok {
			continue
		}
		sum += r.Confidence * weight
		totalWeight += weight
	}
	if totalWeight == 0 {
		return meanSuccessConfidence(stageResults)
	}
	return sum / totalWeight
}

func meanSuccessConfidence(stageResults []model.AgentResult) float64 {
	var sum float64
	count := 0
	for _, r := range stageResults {
		if r.Success {
			sum += r.Confidence
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func bestSuccessConfidence(stageResults []model.AgentResult) float64 {
	best := 0.0
	for _, r := range stageResults {
		if r.Success && r.Confidence > best {
			best = r.Confidence
		}
	}
	return best
}

// buildExpense assembles the ledger-collaborator record from whatever the
// pipeline managed to produce. With no categorized items there is no expense.
func buildExpense(receipt *model.Receipt, state *State) *model.CategorizedExpense {
	if len(state.Categorized) == 0 {
		return nil
	}

	totals := make(map[string]*model.CategoryTotal)
	totalDeductible := decimal.Zero
	for _, item := range state.Categorized {
		t, ok := totals[item.Category]
		if !ok {
			t = &model.CategoryTotal{Category: item.Category, LedgerAccount: item.LedgerAccount}
			totals[item.Category] = t
		}
		t.Amount = t.Amount.Add(item.LineItem.Amount)
		t.DeductibleAmount = t.DeductibleAmount.Add(item.DeductibleAmount)
		t.ItemCount++
		totalDeductible = totalDeductible.Add(item.DeductibleAmount)
	}

	categories := make([]model.CategoryTotal, 0, len(totals))
	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		categories = append(categories, *totals[name])
	}

	itcClaimable := decimal.Zero
	for _, breakdown := range state.Breakdowns {
		itcClaimable = itcClaimable.Add(breakdown.ITCClaimable)
	}

	return &model.CategorizedExpense{
		ReceiptID:       receipt.ID,
		VendorName:      receipt.VendorName,
		TransactionDate: receipt.TransactionDate,
		Currency:        receipt.Currency,
		Items:           state.Categorized,
		Categories:      categories,
		TaxSummary: model.TaxSummary{
			TotalDeductible:   totalDeductible,
			TotalITCClaimable: itcClaimable,
			Breakdowns:        state.Breakdowns,
		},
		TotalAmount: receipt.TotalAmount,
	}
}
