package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func resultsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Inspect stored consensus results",
	}
	cmd.AddCommand(resultsFlaggedCmd())
	return cmd
}

func resultsFlaggedCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "flagged",
		Short: "List results flagged for manual review",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStorage()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.Migrate(cmd.Context()); err != nil {
				return err
			}

			results, err := store.ListFlaggedResults(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				cmd.Println("no flagged results")
				return nil
			}

			for _, result := range results {
				fmt.Printf("%s  receipt=%s  confidence=%.2f  method=%s\n",
					result.GeneratedAt.Format("2006-01-02 15:04"),
					result.ReceiptID, result.Confidence, result.Method)
				for _, flag := range result.FlagsForReview {
					fmt.Printf("    - %s\n", flag)
				}
				fmt.Println(strings.Repeat("-", 60))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum results to list")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply audit database schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStorage()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.Migrate(cmd.Context()); err != nil {
				return err
			}
			cmd.Println("migrations applied")
			return nil
		},
	}
}
