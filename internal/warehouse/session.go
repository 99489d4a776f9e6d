// Package warehouse owns the connection to the warehouse for the duration of
// a run and every temporary table the run creates.
//
// A Session replaces ambient connection state: stages receive it explicitly,
// issue statements through it and register the tables they create with Track.
// Close drops those tables in reverse creation order and disconnects; it is
// safe to call more than once and is deferred on every exit path.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/waterfall/pkg/adapter"
	"github.com/leapstack-labs/waterfall/pkg/core"
	"github.com/leapstack-labs/waterfall/pkg/dialect"
)

// ErrClosed is returned by statements issued after Close.
var ErrClosed = errors.New("warehouse session is closed")

// Session is a connected warehouse plus the tables created through it.
type Session struct {
	adapter adapter.Adapter
	dialect *dialect.Dialect
	logger  *slog.Logger

	store core.Store
	runID string

	mu         sync.Mutex
	tracked    []string
	keepTables bool
	closed     bool
}

// Option configures a Session.
type Option func(*Session)

// WithStore records tracked tables against runID in store, so that a later
// process can drop them if this one never reaches Close.
func WithStore(store core.Store, runID string) Option {
	return func(s *Session) {
		s.store = store
		s.runID = runID
	}
}

// WithKeepTables skips dropping tracked tables on Close.
func WithKeepTables(keep bool) Option {
	return func(s *Session) { s.keepTables = keep }
}

// Open creates the adapter for cfg.Type and connects it.
func Open(ctx context.Context, cfg core.AdapterConfig, logger *slog.Logger, opts ...Option) (*Session, error) {
	a, err := adapter.NewAdapter(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := a.Connect(ctx, cfg); err != nil {
		return nil, &core.ConnectionError{Target: cfg.Type, Err: err}
	}
	s, err := New(a, logger, opts...)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	s.logger.Info("connected to warehouse", slog.String("type", cfg.Type), slog.String("dialect", s.dialect.Name))
	return s, nil
}

// New wraps an already connected adapter.
func New(a adapter.Adapter, logger *slog.Logger, opts ...Option) (*Session, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	d := a.Dialect()
	if d == nil {
		return nil, fmt.Errorf("adapter %q has no dialect: %w", a.DialectName(), dialect.ErrDialectRequired)
	}
	s := &Session{adapter: a, dialect: d, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dialect returns the warehouse dialect.
func (s *Session) Dialect() *dialect.Dialect { return s.dialect }

// RunID returns the run tables are recorded against, if any.
func (s *Session) RunID() string { return s.runID }

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Exec runs a statement that returns no rows.
func (s *Session) Exec(ctx context.Context, sql string) error {
	if s.isClosed() {
		return ErrClosed
	}
	s.logger.Debug("executing statement", slog.String("sql", sql))
	return s.adapter.Exec(ctx, sql)
}

// Track registers a table created by this session for cleanup.
func (s *Session) Track(ctx context.Context, table string) {
	s.mu.Lock()
	s.tracked = append(s.tracked, table)
	s.mu.Unlock()

	s.logger.Debug("tracking table", slog.String("table", table))
	if s.store == nil {
		return
	}
	if err := s.store.TrackTable(ctx, s.runID, table); err != nil {
		s.logger.Warn("failed to record tracked table", slog.String("table", table), slog.String("error", err.Error()))
	}
}

// Tracked returns the tracked tables in creation order.
func (s *Session) Tracked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tracked...)
}

// Cleanup drops every tracked table, newest first. A failed drop is logged and
// cleanup carries on; all failures are returned joined.
func (s *Session) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	tables := s.tracked
	s.tracked = nil
	s.mu.Unlock()

	var errs []error
	for i := len(tables) - 1; i >= 0; i-- {
		if err := s.drop(ctx, s.runID, tables[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Session) drop(ctx context.Context, runID, table string) error {
	stmt := s.dialect.DropTable(table)
	if err := s.adapter.Exec(ctx, stmt); err != nil {
		s.logger.Error("failed to drop table", slog.String("table", table), slog.String("error", err.Error()))
		return &core.QueryError{Stage: core.StageCleanup, Table: table, SQL: stmt, Err: err}
	}
	s.logger.Debug("dropped table", slog.String("table", table))
	if s.store != nil {
		if err := s.store.MarkTableDropped(ctx, runID, table); err != nil {
			s.logger.Warn("failed to record dropped table", slog.String("table", table), slog.String("error", err.Error()))
		}
	}
	return nil
}

// DropPending drops tables an earlier run recorded but never dropped. An empty
// runID covers every run. It returns the tables dropped.
func (s *Session) DropPending(ctx context.Context, runID string) ([]string, error) {
	if s.store == nil {
		return nil, errors.New("no state store configured")
	}
	pending, err := s.store.PendingTables(ctx, runID)
	if err != nil {
		return nil, err
	}

	var (
		dropped []string
		errs    []error
	)
	for _, t := range pending {
		if err := s.drop(ctx, t.RunID, t.Name); err != nil {
			errs = append(errs, err)
			continue
		}
		dropped = append(dropped, t.Name)
	}
	return dropped, errors.Join(errs...)
}

// Close drops tracked tables (unless kept) and disconnects. Cleanup runs even
// when ctx is already cancelled. Calling Close again is a no-op.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	keep := s.keepTables
	s.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	var errs []error
	if keep {
		if n := len(s.Tracked()); n > 0 {
			s.logger.Info("keeping generated tables", slog.Int("count", n))
		}
	} else if err := s.Cleanup(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to clean up tables: %w", err))
	}
	if err := s.adapter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to disconnect: %w", err))
	}
	s.logger.Debug("warehouse session closed")
	return errors.Join(errs...)
}
