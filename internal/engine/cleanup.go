package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/leapstack-labs/waterfall/internal/warehouse"
	"github.com/leapstack-labs/waterfall/pkg/core"
)

// ErrNoStateStore is returned by operations that need run state when
// state_path is empty.
var ErrNoStateStore = errors.New("run state is disabled (state_path is empty)")

// Runs lists recorded runs, newest first.
func (e *Engine) Runs(ctx context.Context, limit int) ([]*core.Run, error) {
	if e.store == nil {
		return nil, ErrNoStateStore
	}
	return e.store.ListRuns(ctx, limit)
}

// PendingTables lists tables recorded by runID (all runs when empty) that
// were never dropped.
func (e *Engine) PendingTables(ctx context.Context, runID string) ([]*core.TrackedTable, error) {
	if e.store == nil {
		return nil, ErrNoStateStore
	}
	return e.store.PendingTables(ctx, runID)
}

// Cleanup connects to the warehouse and drops tables earlier runs left behind.
func (e *Engine) Cleanup(ctx context.Context, runID string) (dropped []string, err error) {
	if e.store == nil {
		return nil, ErrNoStateStore
	}
	pending, err := e.store.PendingTables(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		e.logger.Info("no tables to clean up")
		return nil, nil
	}

	s, err := warehouse.Open(ctx, e.cfg.Target.AdapterConfig(), e.logger, warehouse.WithStore(e.store, runID))
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := s.Close(ctx); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	dropped, err = s.DropPending(ctx, runID)
	e.logger.Info("cleanup finished", slog.Int("dropped", len(dropped)), slog.Int("pending", len(pending)))
	return dropped, err
}
