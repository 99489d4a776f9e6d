// Package waterfall computes, per identifier set, how many records each
// condition removes from the eligible population.
package waterfall

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/waterfall/internal/eligible"
	"github.com/leapstack-labs/waterfall/internal/logging"
	"github.com/leapstack-labs/waterfall/internal/sqlgen"
	"github.com/leapstack-labs/waterfall/pkg/core"
)

// Options tunes Analyze.
type Options struct {
	// Parallelism bounds concurrent identifier pipelines. Values below 1 mean 1.
	Parallelism int
}

// Waterfall analyzes an eligibility table.
type Waterfall struct {
	e       *eligible.Eligible
	opts    Options
	logger  *slog.Logger
	results []core.IdentifierResult
}

// FromEligible prepares a waterfall over a generated eligibility table.
func FromEligible(e *eligible.Eligible, opts Options) *Waterfall {
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	return &Waterfall{e: e, opts: opts, logger: e.Logger()}
}

// Analyze runs the pipeline of every identifier set. A failing identifier
// does not stop the others; its Result.Err is set and the failures are
// returned joined.
func (w *Waterfall) Analyze(ctx context.Context) (err error) {
	if !w.e.Generated() {
		return errors.New("eligibility table has not been generated")
	}
	span := logging.Trace(w.logger, "Waterfall.Analyze", slog.Int("identifiers", len(w.e.Identifiers())))
	defer func() { span.End(err) }()

	ids := w.e.Identifiers()
	results := make([]core.IdentifierResult, len(ids))

	var g errgroup.Group
	g.SetLimit(w.opts.Parallelism)
	for i, id := range ids {
		g.Go(func() error {
			results[i] = w.analyzeIdentifier(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	w.results = results
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("identifier %q: %w", r.Key, r.Err))
		}
	}
	return errors.Join(errs...)
}

func (w *Waterfall) analyzeIdentifier(ctx context.Context, id core.Identifier) core.IdentifierResult {
	result := core.IdentifierResult{Identifier: id, Key: id.Key}
	logger := w.logger.With(slog.String("identifier", id.Key))

	fail := func(stmt sqlgen.Statement, err error) core.IdentifierResult {
		result.Err = stmt.Error(err)
		logger.Error("waterfall query failed",
			slog.String("stage", stmt.Stage),
			slog.String("condition", stmt.Condition),
			slog.String("sql", stmt.SQL),
			slog.String("error", err.Error()))
		return result
	}

	c := w.e.Constructor()
	s := w.e.Session()

	details := c.IdentifierDetails(id)
	if err := eligible.Materialize(ctx, s, details); err != nil {
		result.Err = err
		logger.Error("failed to create details table", slog.String("sql", details.SQL), slog.String("error", err.Error()))
		return result
	}

	start := c.StartingPopulation(id)
	counts, err := s.Counts(ctx, start.SQL)
	if err != nil {
		return fail(start, err)
	}
	result.StartingPopulation = counts[sqlgen.ColStarting]

	conds := c.Conditions()
	result.Rows = make([]core.WaterfallRow, 0, conds.Len())
	for i := range conds.Len() {
		stmt := c.ConditionMetrics(id, i)
		counts, err := s.Counts(ctx, stmt.SQL)
		if err != nil {
			return fail(stmt, err)
		}
		check := conds.At(i)
		row := core.WaterfallRow{
			Condition:       check.Name,
			Description:     check.Label(),
			UniqueDrop:      counts[sqlgen.ColUniqueDrop],
			IncrementalDrop: counts[sqlgen.ColIncrementalDrop],
			Regain:          counts[sqlgen.ColRegain],
			Remaining:       counts[sqlgen.ColRemaining],
			SoleDrop:        counts[sqlgen.ColSoleDrop],
		}
		row.CumulativeDrop = result.StartingPopulation - row.Remaining
		result.Rows = append(result.Rows, row)
	}

	final := c.EligiblePopulation(id)
	counts, err = s.Counts(ctx, final.SQL)
	if err != nil {
		return fail(final, err)
	}
	result.EligiblePopulation = counts[sqlgen.ColEligible]

	if err := Reconcile(&result); err != nil {
		result.Err = err
		logger.Error("waterfall does not reconcile", slog.String("error", err.Error()))
		return result
	}
	logger.Info("waterfall complete",
		slog.Int64("starting", result.StartingPopulation),
		slog.Int64("eligible", result.EligiblePopulation))
	return result
}

// Results returns one result per identifier set, in declaration order.
func (w *Waterfall) Results() []core.IdentifierResult {
	return w.results
}

// Report returns the analyzed waterfall with its campaign metadata.
func (w *Waterfall) Report() *Report {
	return &Report{
		Campaign:    w.e.Constructor().Campaign(),
		Identifiers: w.results,
	}
}

// WriteReport writes the analyzed waterfall as an .xlsx workbook.
func (w *Waterfall) WriteReport(path string) error {
	return w.Report().WriteXLSX(path)
}
