package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pipeline stage names, in execution order.
const (
	StageExtractionValidation = "extraction-validation"
	StageNormalization        = "normalization"
	StageCategorization       = "categorization"
	StageTaxValidation        = "tax-validation"
)

// ConsensusMethod describes how stage results were aggregated.
type ConsensusMethod string

// Consensus method constants.
const (
	MethodUnanimous  ConsensusMethod = "unanimous"
	MethodMajority   ConsensusMethod = "majority"
	MethodBestEffort ConsensusMethod = "best-effort"
	MethodFailure    ConsensusMethod = "failure"
)

// AgentResult records one pipeline stage's outcome. Produced once per stage,
// never mutated after creation.
type AgentResult struct {
	Stage      string        `json:"stage"`
	Success    bool          `json:"success"`
	Confidence float64       `json:"confidence"`
	Error      string        `json:"error,omitempty"`
	Elapsed    time.Duration `json:"elapsed"`
}

// CategoryTotal aggregates categorized line items for one category.
type CategoryTotal struct {
	Category         string          `json:"category"`
	LedgerAccount    string          `json:"ledger_account"`
	Amount           decimal.Decimal `json:"amount"`
	DeductibleAmount decimal.Decimal `json:"deductible_amount"`
	ItemCount        int             `json:"item_count"`
}

// TaxSummary is the overall tax picture for a categorized expense.
type TaxSummary struct {
	TotalDeductible   decimal.Decimal `json:"total_deductible"`
	TotalITCClaimable decimal.Decimal `json:"total_itc_claimable"`
	Breakdowns        []TaxBreakdown  `json:"breakdowns"`
}

// CategorizedExpense is the record handed to the ledger-posting collaborator.
// The core never calls the ledger API itself.
type CategorizedExpense struct {
	ReceiptID       string                `json:"receipt_id"`
	VendorName      string                `json:"vendor_name"`
	TransactionDate time.Time             `json:"transaction_date"`
	Currency        string                `json:"currency"`
	Items           []CategorizedLineItem `json:"items"`
	Categories      []CategoryTotal       `json:"categories"`
	TaxSummary      TaxSummary            `json:"tax_summary"`
	TotalAmount     decimal.Decimal       `json:"total_amount"`
}

// ConsensusResult is the terminal artifact of the pipeline: the aggregated
// confidence, the stage-by-stage trace, and the final expense record.
type ConsensusResult struct {
	ID             string              `json:"id"`
	ReceiptID      string              `json:"receipt_id"`
	Success        bool                `json:"success"`
	Confidence     float64             `json:"confidence"`
	Method         ConsensusMethod     `json:"method"`
	Stages         []AgentResult       `json:"stages"`
	FlagsForReview []string            `json:"flags_for_review,omitempty"`
	Expense        *CategorizedExpense `json:"expense,omitempty"`
	GeneratedAt    time.Time           `json:"generated_at"`
}
