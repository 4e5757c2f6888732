package main

import (
	"github.com/spf13/cobra"

	"github.com/ledgerprep/ledgerprep/internal/config"
	"github.com/ledgerprep/ledgerprep/internal/model"
	"github.com/ledgerprep/ledgerprep/internal/rules"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and validate the categorization rule table",
	}
	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesValidateCmd())
	return cmd
}

func rulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the active rule table in evaluation order",
		RunE: func(_ *cobra.Command, _ []string) error {
			table, err := loadRuleTable()
			if err != nil {
				return err
			}
			printRules(table.Rules())
			printRules([]model.Rule{table.Fallback()})
			return nil
		},
	}
}

func rulesValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <rules.yaml>",
		Short: "Validate a rule table document without activating it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ruleSet, err := config.LoadRules(args[0])
			if err != nil {
				return err
			}
			table, err := rules.NewTable(ruleSet)
			if err != nil {
				return err
			}
			cmd.Printf("ok: %d rules, %d categories\n", len(table.Rules())+1, len(table.Categories()))
			return nil
		},
	}
}
