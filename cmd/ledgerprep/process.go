package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ledgerprep/ledgerprep/internal/consensus"
	"github.com/ledgerprep/ledgerprep/internal/model"
	"github.com/ledgerprep/ledgerprep/internal/rules"
	"github.com/ledgerprep/ledgerprep/internal/tax"
)

func processCmd() *cobra.Command {
	var (
		outputPath   string
		noStore      bool
		stageTimeout time.Duration
		maxWorkers   int
	)

	cmd := &cobra.Command{
		Use:   "process <receipt.json>",
		Short: "Categorize an extracted receipt into a ledger-ready expense record",
		Long: `Reads a structured receipt record (the output of the external extraction
collaborator), runs the normalization, categorization, tax-validation and
consensus pipeline, and emits the categorized expense with its audit trace.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			receipt, err := readReceipt(args[0])
			if err != nil {
				return err
			}

			ruleTable, err := loadRuleTable()
			if err != nil {
				return fmt.Errorf("failed to load rule table: %w", err)
			}
			jurisdictionTable, err := loadJurisdictionTable()
			if err != nil {
				return fmt.Errorf("failed to load jurisdiction table: %w", err)
			}

			orchestrator := consensus.New(
				rules.NewEngine(ruleTable),
				tax.NewCalculator(jurisdictionTable),
				consensus.Config{StageTimeout: stageTimeout, MaxWorkers: maxWorkers},
			)

			result, err := orchestrator.Process(cmd.Context(), receipt)
			if err != nil {
				return err
			}

			if !noStore {
				store, err := openStorage()
				if err != nil {
					return fmt.Errorf("failed to open audit store: %w", err)
				}
				defer func() { _ = store.Close() }()

				if err := store.Migrate(cmd.Context()); err != nil {
					return fmt.Errorf("failed to migrate audit store: %w", err)
				}
				if err := store.SaveResult(cmd.Context(), result); err != nil {
					return fmt.Errorf("failed to save audit trace: %w", err)
				}
			}

			return writeResult(result, outputPath)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the result to a file instead of stdout")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "skip persisting the audit trace")
	cmd.Flags().DurationVar(&stageTimeout, "stage-timeout", 30*time.Second, "per-stage timeout")
	cmd.Flags().IntVar(&maxWorkers, "workers", 4, "max concurrent line-item categorizations")

	return cmd
}

func readReceipt(path string) (*model.Receipt, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read receipt: %w", err)
	}

	var receipt model.Receipt
	if err := json.Unmarshal(data, &receipt); err != nil {
		return nil, fmt.Errorf("failed to parse receipt record: %w", err)
	}
	return &receipt, nil
}

func writeResult(result *model.ConsensusResult, outputPath string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	data = append(data, '\n')

	if outputPath == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(outputPath, data, 0600)
}
