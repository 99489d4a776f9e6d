package campaign

import (
	"errors"

	"github.com/leapstack-labs/waterfall/pkg/core"
)

// Definition is a fully loaded and validated campaign.
type Definition struct {
	Campaign    core.Campaign
	Conditions  *core.Conditions
	Tables      *core.TableSet
	Identifiers []core.Identifier
}

// Sources locates the campaign documents.
type Sources struct {
	Campaign       core.Campaign
	ConditionsFile string
	TablesFile     string
	Identifiers    []string
}

// Load reads every document and validates them together. Problems from all
// documents are returned at once, joined.
func Load(src Sources) (*Definition, error) {
	var errs []error

	if err := ValidateCampaign(src.Campaign); err != nil {
		errs = append(errs, err)
	}

	conds, err := LoadConditions(src.ConditionsFile)
	if err != nil {
		errs = append(errs, err)
	}

	tables, err := LoadTables(src.TablesFile)
	if err != nil {
		errs = append(errs, err)
	}

	var ids []core.Identifier
	if tables != nil {
		ids, err = ParseIdentifiers(src.Identifiers, tables)
		if err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &Definition{
		Campaign:    src.Campaign,
		Conditions:  conds,
		Tables:      tables,
		Identifiers: ids,
	}, nil
}
