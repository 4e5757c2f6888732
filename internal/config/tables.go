// Package config loads the externally supplied rule and jurisdiction tables.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ledgerprep/ledgerprep/internal/common"
	"github.com/ledgerprep/ledgerprep/internal/model"
)

// RuleTableFile is the on-disk form of a versioned rule table.
type RuleTableFile struct {
	Version string       `yaml:"version"`
	Rules   []model.Rule `yaml:"rules"`
}

// JurisdictionTableFile is the on-disk form of a versioned jurisdiction table.
type JurisdictionTableFile struct {
	Version       string               `yaml:"version"`
	Jurisdictions []model.Jurisdiction `yaml:"jurisdictions"`
}

// LoadRules reads a rule table document. Schema errors are load-time fatal;
// semantic validation happens when the rules are compiled into a table.
func LoadRules(path string) ([]model.Rule, error) {
	var file RuleTableFile
	if err := loadYAML(path, &file); err != nil {
		return nil, err
	}
	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("%w: %s contains no rules", common.ErrInvalidConfig, path)
	}
	return file.Rules, nil
}

// LoadJurisdictions reads a jurisdiction table document.
func LoadJurisdictions(path string) ([]model.Jurisdiction, error) {
	var file JurisdictionTableFile
	if err := loadYAML(path, &file); err != nil {
		return nil, err
	}
	if len(file.Jurisdictions) == 0 {
		return nil, fmt.Errorf("%w: %s contains no jurisdictions", common.ErrInvalidConfig, path)
	}
	return file.Jurisdictions, nil
}

func loadYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: failed to parse %s: %v", common.ErrInvalidConfig, path, err)
	}
	return nil
}
