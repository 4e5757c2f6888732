// Package service defines the interfaces for all application services.
// Receipt extraction happens outside this system; input arrives as an
// already-extracted model.Receipt record.
package service

import (
	"context"
	"time"

	"github.com/ledgerprep/ledgerprep/internal/model"
)

// Storage defines the contract for the audit persistence layer. The
// orchestrator writes one immutable consensus trace per processed receipt;
// the read side powers the manual review queue.
type Storage interface {
	SaveResult(ctx context.Context, result *model.ConsensusResult) error
	GetResult(ctx context.Context, id string) (*model.ConsensusResult, error)
	GetResultsByReceipt(ctx context.Context, receiptID string) ([]model.ConsensusResult, error)
	ListFlaggedResults(ctx context.Context, limit int) ([]model.ConsensusResult, error)

	Migrate(ctx context.Context) error
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
