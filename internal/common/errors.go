// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Common application errors.
var (
	// Storage errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")

	// Pipeline errors.
	ErrNoLineItems = errors.New("receipt has no line items")
)

// RuleValidationError reports a malformed rule table at load time. It is fatal
// to the load; an already-active snapshot is unaffected.
type RuleValidationError struct {
	RuleID int
	Reason string
}

func (e *RuleValidationError) Error() string {
	if e.RuleID != 0 {
		return fmt.Sprintf("invalid rule %d: %s", e.RuleID, e.Reason)
	}
	return fmt.Sprintf("invalid rule table: %s", e.Reason)
}

// UnknownJurisdictionError reports a tax computation requested for an
// unconfigured jurisdiction. The calculator never guesses a default; the
// caller decides fallback policy.
type UnknownJurisdictionError struct {
	Code string
}

func (e *UnknownJurisdictionError) Error() string {
	return fmt.Sprintf("unknown jurisdiction %q", e.Code)
}

// NormalizationInvariantError reports line items that do not reconcile to the
// receipt's stated total. Surfaced to the caller, never auto-corrected.
type NormalizationInvariantError struct {
	Reason   string
	Expected decimal.Decimal
	Actual   decimal.Decimal
}

func (e *NormalizationInvariantError) Error() string {
	if e.Expected.Equal(e.Actual) {
		return fmt.Sprintf("normalization invariant violated: %s", e.Reason)
	}
	return fmt.Sprintf("normalization invariant violated: %s (expected %s, got %s)",
		e.Reason, e.Expected.StringFixed(2), e.Actual.StringFixed(2))
}

// StageError reports a pipeline stage failure. The orchestrator recovers it
// locally into a degraded result; it is never fatal to the caller.
type StageError struct {
	Stage   string
	Err     error
	Timeout bool
}

func (e *StageError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("stage %s timed out: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// RetryableError wraps an error with retry-specific metadata.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
