package conflict

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/iudanet/booksync/internal/models"
)

// StrategyTable maps entity types to their resolution strategy.
// Types missing from the table resolve manually.
type StrategyTable map[string]models.Strategy

// DefaultStrategyTable returns the built-in strategies.
func DefaultStrategyTable() StrategyTable {
	return StrategyTable{
		models.EntityTypeTransaction: models.StrategyLocalWins,
		models.EntityTypeInvoice:     models.StrategyLocalWins,
		models.EntityTypeBill:        models.StrategyLocalWins,
		models.EntityTypePayment:     models.StrategyLocalWins,
		models.EntityTypeAccount:     models.StrategyLastModifiedWins,
		models.EntityTypeCustomer:    models.StrategyLastModifiedWins,
		models.EntityTypeVendor:      models.StrategyLastModifiedWins,
	}
}

// StrategyFor returns the strategy for entityType.
func (t StrategyTable) StrategyFor(entityType string) models.Strategy {
	if s, ok := t[entityType]; ok {
		return s
	}
	return models.StrategyManual
}

type strategyFile struct {
	Strategies map[string]string `yaml:"strategies"`
}

// LoadStrategyTable reads overrides from a YAML file on top of the defaults:
//
//	strategies:
//	  Invoice: field_merge
//	  Budget: remote_wins
func LoadStrategyTable(path string) (StrategyTable, error) {
	table := DefaultStrategyTable()
	if path == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read strategy file: %w", err)
	}

	var f strategyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse strategy file: %w", err)
	}

	for entityType, name := range f.Strategies {
		s := models.Strategy(name)
		if !s.Valid() {
			return nil, fmt.Errorf("unknown strategy %q for %s", name, entityType)
		}
		table[entityType] = s
	}
	return table, nil
}
