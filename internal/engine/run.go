package engine

// run.go - Execution orchestration for a campaign run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/leapstack-labs/waterfall/internal/eligible"
	"github.com/leapstack-labs/waterfall/internal/logging"
	"github.com/leapstack-labs/waterfall/internal/output"
	"github.com/leapstack-labs/waterfall/internal/warehouse"
	"github.com/leapstack-labs/waterfall/internal/waterfall"
	"github.com/leapstack-labs/waterfall/pkg/core"
)

// RunOptions tunes a single run.
type RunOptions struct {
	// SkipOutput stops after the waterfall report.
	SkipOutput bool
	// KeepTables leaves generated tables in place; they stay recorded in the
	// state store for a later cleanup.
	KeepTables bool
}

// RunResult is what a run produced. It is returned even when the run failed
// part way.
type RunResult struct {
	RunID      string            `json:"run_id,omitempty"`
	Report     *waterfall.Report `json:"report,omitempty"`
	ReportPath string            `json:"report_path,omitempty"`
	Outputs    []output.Result   `json:"outputs,omitempty"`
	KeptTables []string          `json:"kept_tables,omitempty"`
}

// ReportPath returns where the workbook of the current campaign is written.
func (e *Engine) ReportPath() string {
	if e.cfg.ReportDir == "" {
		return ""
	}
	return filepath.Join(e.cfg.ReportDir, e.definition.Campaign.OfferCode+"_waterfall.xlsx")
}

// Run executes the campaign. Generated tables are dropped before it returns,
// also on failure and cancellation, unless opts.KeepTables is set.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (res *RunResult, err error) {
	offer := e.definition.Campaign.OfferCode
	span := logging.Trace(e.logger, "Engine.Run", slog.String("offer_code", offer))
	defer func() { span.End(err) }()

	c, err := e.Constructor()
	if err != nil {
		return nil, err
	}

	res = &RunResult{}
	var wopts []warehouse.Option
	if e.store != nil {
		run, cerr := e.store.CreateRun(ctx, offer, e.cfg.Environment)
		if cerr != nil {
			return nil, fmt.Errorf("failed to create run: %w", cerr)
		}
		res.RunID = run.ID
		wopts = append(wopts, warehouse.WithStore(e.store, run.ID))
		// Registered before the session close so the close error is included.
		defer func() { e.completeRun(ctx, res, err) }()
	}
	wopts = append(wopts, warehouse.WithKeepTables(opts.KeepTables))

	s, err := warehouse.Open(ctx, e.cfg.Target.AdapterConfig(), e.logger, wopts...)
	if err != nil {
		return res, err
	}
	defer func() {
		if opts.KeepTables {
			res.KeptTables = s.Tracked()
		}
		if cerr := s.Close(ctx); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	elig := eligible.New(s, c, e.logger)
	if err := elig.Generate(ctx); err != nil {
		return res, err
	}

	wf := waterfall.FromEligible(elig, waterfall.Options{Parallelism: e.cfg.Parallelism})
	wfErr := wf.Analyze(ctx)
	res.Report = wf.Report()

	if path := e.ReportPath(); path != "" {
		if err := wf.WriteReport(path); err != nil {
			return res, errors.Join(wfErr, err)
		}
		res.ReportPath = path
		e.logger.Info("waterfall report written", slog.String("path", path))
	}

	if err := ctx.Err(); err != nil {
		return res, errors.Join(wfErr, err)
	}
	if opts.SkipOutput || len(e.cfg.Outputs) == 0 {
		return res, wfErr
	}

	results, outErr := output.New(s, c, e.logger).Write(ctx, e.cfg.Outputs)
	res.Outputs = results
	return res, errors.Join(wfErr, outErr)
}

// completeRun records the outcome. A run that produced a report but hit
// identifier or channel failures is partial.
func (e *Engine) completeRun(ctx context.Context, res *RunResult, err error) {
	status := core.RunStatusCompleted
	msg := ""
	if err != nil {
		msg = err.Error()
		status = core.RunStatusFailed
		if res.Report != nil {
			status = core.RunStatusPartial
		}
	}
	if cerr := e.store.CompleteRun(context.WithoutCancel(ctx), res.RunID, status, msg); cerr != nil {
		e.logger.Warn("failed to record run status", slog.String("run_id", res.RunID), slog.String("error", cerr.Error()))
	}
}
