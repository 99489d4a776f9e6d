package waterfall

import (
	"github.com/leapstack-labs/waterfall/pkg/core"
)

// Reconcile checks that the counts of a waterfall add up:
//
//	unique_drop(i) = incremental_drop(i) + regain(i)
//	remaining(i)   = remaining(i-1) - incremental_drop(i), remaining(0) = starting
//	remaining(i)   = starting - sum unique_drop + sum regain
//	cumulative(i)  = starting - remaining(i)
//	remaining(n)   = eligible population
//
// and that no count is negative. The first violation is returned.
func Reconcile(r *core.IdentifierResult) error {
	bad := func(cond, rule string, want, got int64) error {
		return &core.ReconciliationError{Identifier: r.Key, Condition: cond, Rule: rule, Want: want, Got: got}
	}

	if r.StartingPopulation < 0 {
		return bad("", "starting population is non-negative", 0, r.StartingPopulation)
	}

	prev := r.StartingPopulation
	var sumUnique, sumRegain int64
	for _, row := range r.Rows {
		for _, v := range []int64{row.UniqueDrop, row.IncrementalDrop, row.CumulativeDrop, row.Regain, row.Remaining, row.SoleDrop} {
			if v < 0 {
				return bad(row.Condition, "counts are non-negative", 0, v)
			}
		}
		if got := row.IncrementalDrop + row.Regain; got != row.UniqueDrop {
			return bad(row.Condition, "unique_drop = incremental_drop + regain", row.UniqueDrop, got)
		}
		if want := prev - row.IncrementalDrop; row.Remaining != want {
			return bad(row.Condition, "remaining = previous remaining - incremental_drop", want, row.Remaining)
		}
		sumUnique += row.UniqueDrop
		sumRegain += row.Regain
		if want := r.StartingPopulation - sumUnique + sumRegain; row.Remaining != want {
			return bad(row.Condition, "remaining = starting - sum(unique_drop) + sum(regain)", want, row.Remaining)
		}
		if want := r.StartingPopulation - row.Remaining; row.CumulativeDrop != want {
			return bad(row.Condition, "cumulative_drop = starting - remaining", want, row.CumulativeDrop)
		}
		if row.SoleDrop > row.UniqueDrop {
			return bad(row.Condition, "sole_drop <= unique_drop", row.UniqueDrop, row.SoleDrop)
		}
		prev = row.Remaining
	}

	if final := r.Final(); final != r.EligiblePopulation {
		return bad("", "final remaining = eligible population", r.EligiblePopulation, final)
	}
	return nil
}
