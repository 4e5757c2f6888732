package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ledgerprep/ledgerprep/internal/config"
	"github.com/ledgerprep/ledgerprep/internal/model"
	"github.com/ledgerprep/ledgerprep/internal/tax"
)

func jurisdictionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jurisdictions",
		Short: "Inspect and validate the tax jurisdiction table",
	}
	cmd.AddCommand(jurisdictionsListCmd())
	cmd.AddCommand(jurisdictionsValidateCmd())
	return cmd
}

func jurisdictionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the active jurisdiction table",
		RunE: func(_ *cobra.Command, _ []string) error {
			table, err := loadJurisdictionTable()
			if err != nil {
				return err
			}
			for _, j := range table.Jurisdictions() {
				var parts []string
				for _, c := range j.Components {
					itc := ""
					if c.ITCEligible {
						itc = " (ITC)"
					}
					parts = append(parts, fmt.Sprintf("%s %s%%%s",
						c.Name, c.Rate.Mul(hundred).StringFixed(3), itc))
				}
				fmt.Printf("%-6s %-20s %s\n", j.Code, j.Name, strings.Join(parts, ", "))
				for _, line := range exemptionLines(j) {
					fmt.Println(line)
				}
			}
			return nil
		},
	}
}

// exemptionLines renders a jurisdiction's exemption set in sorted category
// order, so listings are stable between runs.
func exemptionLines(j model.Jurisdiction) []string {
	categories := make([]string, 0, len(j.Exemptions))
	for category := range j.Exemptions {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	lines := make([]string, 0, len(categories))
	for _, category := range categories {
		lines = append(lines, fmt.Sprintf("       exempt: %s -> %v", category, j.Exemptions[category]))
	}
	return lines
}

func jurisdictionsValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <jurisdictions.yaml>",
		Short: "Validate a jurisdiction table document without activating it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jurisdictions, err := config.LoadJurisdictions(args[0])
			if err != nil {
				return err
			}
			table, err := tax.NewTable(jurisdictions)
			if err != nil {
				return err
			}
			cmd.Printf("ok: %d jurisdictions\n", len(table.Codes()))
			return nil
		},
	}
}
