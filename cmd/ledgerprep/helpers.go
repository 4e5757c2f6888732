package main

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/ledgerprep/ledgerprep/internal/config"
	"github.com/ledgerprep/ledgerprep/internal/model"
	"github.com/ledgerprep/ledgerprep/internal/rules"
	"github.com/ledgerprep/ledgerprep/internal/service"
	"github.com/ledgerprep/ledgerprep/internal/storage"
	"github.com/ledgerprep/ledgerprep/internal/tax"
)

var hundred = decimal.NewFromInt(100)

// loadRuleTable builds the active rule table: the configured YAML document if
// present, the built-in defaults otherwise.
func loadRuleTable() (*rules.Table, error) {
	ruleSet := rules.DefaultRules()

	if path := viper.GetString("tables.rules"); path != "" {
		loaded, err := config.LoadRules(path)
		if err != nil {
			return nil, err
		}
		ruleSet = loaded
	}

	return rules.NewTable(ruleSet)
}

// loadJurisdictionTable builds the active jurisdiction table.
func loadJurisdictionTable() (*tax.Table, error) {
	jurisdictions := tax.DefaultJurisdictions()

	if path := viper.GetString("tables.jurisdictions"); path != "" {
		loaded, err := config.LoadJurisdictions(path)
		if err != nil {
			return nil, err
		}
		jurisdictions = loaded
	}

	return tax.NewTable(jurisdictions)
}

// openStorage opens the audit database at the configured path.
func openStorage() (service.Storage, error) {
	path := viper.GetString("storage.path")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = fmt.Sprintf("%s/.local/share/ledgerprep/ledgerprep.db", home)
	}
	return storage.NewSQLiteStorage(path)
}

// printRules writes a short human listing of a rule set.
func printRules(ruleSet []model.Rule) {
	for _, r := range ruleSet {
		marker := " "
		if r.Fallback {
			marker = "*"
		}
		scope := "any vendor"
		if len(r.VendorPatterns) > 0 {
			scope = fmt.Sprintf("vendors %v", r.VendorPatterns)
		}
		fmt.Printf("%s %4d  p%-3d  %-28s -> %-24s %3d%% deductible  (%s)\n",
			marker, r.ID, r.Priority, r.Name, r.Category, r.DeductiblePercent, scope)
	}
}
