package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/ledgerprep/ledgerprep/internal/common"
	"github.com/ledgerprep/ledgerprep/internal/model"
)

// SaveResult persists one consensus result with its stage trace.
func (s *SQLiteStorage) SaveResult(ctx context.Context, result *model.ConsensusResult) error {
	if result == nil {
		return fmt.Errorf("result must not be nil")
	}
	if result.ID == "" {
		return fmt.Errorf("result has no id")
	}

	flagsJSON, err := json.Marshal(result.FlagsForReview)
	if err != nil {
		return fmt.Errorf("failed to marshal flags: %w", err)
	}

	var expenseJSON []byte
	if result.Expense != nil {
		expenseJSON, err = json.Marshal(result.Expense)
		if err != nil {
			return fmt.Errorf("failed to marshal expense: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO consensus_results (id, receipt_id, success, confidence, method, flags, expense_json, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ID, result.ReceiptID, result.Success, result.Confidence,
		string(result.Method), string(flagsJSON), nullableString(expenseJSON), result.GeneratedAt)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("%w: result %s", common.ErrDuplicateEntry, result.ID)
		}
		return fmt.Errorf("failed to insert result: %w", err)
	}

	for i, stage := range result.Stages {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO stage_results (result_id, stage, position, success, confidence, error, elapsed_ns)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			result.ID, stage.Stage, i, stage.Success, stage.Confidence, stage.Error, stage.Elapsed.Nanoseconds())
		if err != nil {
			return fmt.Errorf("failed to insert stage result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit result: %w", err)
	}
	return nil
}

// GetResult loads one consensus result by id.
func (s *SQLiteStorage) GetResult(ctx context.Context, id string) (*model.ConsensusResult, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, receipt_id, success, confidence, method, flags, expense_json, generated_at
		FROM consensus_results WHERE id = ?`, id)

	result, err := scanResult(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}

	if err := s.loadStages(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetResultsByReceipt loads all consensus results recorded for a receipt.
func (s *SQLiteStorage) GetResultsByReceipt(ctx context.Context, receiptID string) ([]model.ConsensusResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, receipt_id, success, confidence, method, flags, expense_json, generated_at
		FROM consensus_results WHERE receipt_id = ? ORDER BY generated_at`, receiptID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return s.collectResults(ctx, rows)
}

// ListFlaggedResults returns the most recent results carrying review flags.
func (s *SQLiteStorage) ListFlaggedResults(ctx context.Context, limit int) ([]model.ConsensusResult, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, receipt_id, success, confidence, method, flags, expense_json, generated_at
		FROM consensus_results
		WHERE flags IS NOT NULL AND flags != '[]' AND flags != 'null'
		ORDER BY generated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query flagged results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return s.collectResults(ctx, rows)
}

func (s *SQLiteStorage) collectResults(ctx context.Context, rows *sql.Rows) ([]model.ConsensusResult, error) {
	var results []model.ConsensusResult
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		if err := s.loadStages(ctx, result); err != nil {
			return nil, err
		}
		results = append(results, *result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate results: %w", err)
	}
	return results, nil
}

func (s *SQLiteStorage) loadStages(ctx context.Context, result *model.ConsensusResult) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT stage, success, confidence, error, elapsed_ns
		FROM stage_results WHERE result_id = ? ORDER BY position`, result.ID)
	if err != nil {
		return fmt.Errorf("failed to query stage results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var stage model.AgentResult
		var stageErr sql.NullString
		var elapsedNs int64
		if err := rows.Scan(&stage.Stage, &stage.Success, &stage.Confidence, &stageErr, &elapsedNs); err != nil {
			return fmt.Errorf("failed to scan stage result: %w", err)
		}
		stage.Error = stageErr.String
		stage.Elapsed = time.Duration(elapsedNs)
		result.Stages = append(result.Stages, stage)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResult(row rowScanner) (*model.ConsensusResult, error) {
	var result model.ConsensusResult
	var method string
	var flagsJSON sql.NullString
	var expenseJSON sql.NullString

	err := row.Scan(&result.ID, &result.ReceiptID, &result.Success, &result.Confidence,
		&method, &flagsJSON, &expenseJSON, &result.GeneratedAt)
	if err != nil {
		return nil, err
	}
	result.Method = model.ConsensusMethod(method)

	if flagsJSON.Valid && flagsJSON.String != "" {
		if err := json.Unmarshal([]byte(flagsJSON.String), &result.FlagsForReview); err != nil {
			return nil, fmt.Errorf("failed to unmarshal flags: %w", err)
		}
	}
	if expenseJSON.Valid && expenseJSON.String != "" {
		var expense model.CategorizedExpense
		if err := json.Unmarshal([]byte(expenseJSON.String), &expense); err != nil {
			return nil, fmt.Errorf("failed to unmarshal expense: %w", err)
		}
		result.Expense = &expense
	}

	return &result, nil
}

func nullableString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
