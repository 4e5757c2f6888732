// Package consensus orchestrates the fixed receipt-processing pipeline and
// reconciles per-stage outcomes into one result with a confidence score.
package consensus

import (
	"context"

	"github.com/ledgerprep/ledgerprep/internal/model"
)

// Stage is one step of the pipeline. Implementations read and extend the
// shared state and report a confidence for their own output. A rule-driven
// stage and an external-reasoning stage look identical to the orchestrator.
type Stage interface {
	// Name returns the stage's fixed identifier.
	Name() string
	// Run executes the stage against the pipeline state, returning the
	// stage's confidence in its output.
	Run(ctx context.Context, state *State) (float64, error)
}

// State carries pipeline data between stages. Each stage consumes what the
// previous stages produced; on a stage failure the orchestrator proceeds with
// the best available prior data, never with fabricated data.
//
// Stages run against a private copy of the state that the orchestrator merges
// back on an in-deadline success. Implementations must replace the slice
// fields wholesale, never mutate their elements in place.
type State struct {
	Receipt     *model.Receipt
	Items       []model.LineItem
	Categorized []model.CategorizedLineItem
	Breakdowns  []model.TaxBreakdown
}
