package core

// WaterfallRow is the per-condition accounting for one identifier.
type WaterfallRow struct {
	Condition       string `json:"condition"`
	Description     string `json:"description,omitempty"`
	UniqueDrop      int64  `json:"unique_drop"`
	IncrementalDrop int64  `json:"incremental_drop"`
	CumulativeDrop  int64  `json:"cumulative_drop"`
	Regain          int64  `json:"regain"`
	Remaining       int64  `json:"remaining"`
	SoleDrop        int64  `json:"sole_drop"`
}

// IdentifierResult is the waterfall of one identifier. Err is set when the
// identifier's pipeline failed; Rows then holds whatever completed.
type IdentifierResult struct {
	Identifier         Identifier     `json:"-"`
	Key                string         `json:"identifier"`
	StartingPopulation int64          `json:"starting_population"`
	EligiblePopulation int64          `json:"eligible_population"`
	Rows               []WaterfallRow `json:"rows"`
	Err                error          `json:"-"`
}

// Final returns the remaining population after the last condition.
func (r *IdentifierResult) Final() int64 {
	if len(r.Rows) == 0 {
		return r.StartingPopulation
	}
	return r.Rows[len(r.Rows)-1].Remaining
}
