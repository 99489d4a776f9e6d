// Package logging builds the CLI's structured logger.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Options configures New.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // text or json
	// File, when set, receives a copy of every record.
	File string
	// Writer is the primary destination, stderr when nil.
	Writer io.Writer
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q (want debug, info, warn or error)", s)
	}
}

// New returns a logger and a closer for the log file (a no-op without one).
func New(opts Options) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o750); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) //nolint:gosec // path from user config
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w = io.MultiWriter(w, f)
		closer = f
	}

	hopts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	switch strings.ToLower(opts.Format) {
	case "", "text":
		h = slog.NewTextHandler(w, hopts)
	case "json":
		h = slog.NewJSONHandler(w, hopts)
	default:
		_ = closer.Close()
		return nil, nil, fmt.Errorf("unknown log format %q (want text or json)", opts.Format)
	}
	return slog.New(NewDedupHandler(h)), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// DedupHandler drops a record whose level and message repeat the record
// logged immediately before it.
type DedupHandler struct {
	next slog.Handler
	last *lastRecord
}

type lastRecord struct {
	mu    sync.Mutex
	level slog.Level
	msg   string
	set   bool
}

// NewDedupHandler wraps next.
func NewDedupHandler(next slog.Handler) *DedupHandler {
	return &DedupHandler{next: next, last: &lastRecord{}}
}

// Enabled implements slog.Handler.
func (h *DedupHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *DedupHandler) Handle(ctx context.Context, r slog.Record) error {
	h.last.mu.Lock()
	dup := h.last.set && h.last.level == r.Level && h.last.msg == r.Message
	h.last.level, h.last.msg, h.last.set = r.Level, r.Message, true
	h.last.mu.Unlock()
	if dup {
		return nil
	}
	return h.next.Handle(ctx, r)
}

// WithAttrs implements slog.Handler. Derived handlers share the last record.
func (h *DedupHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &DedupHandler{next: h.next.WithAttrs(attrs), last: h.last}
}

// WithGroup implements slog.Handler.
func (h *DedupHandler) WithGroup(name string) slog.Handler {
	return &DedupHandler{next: h.next.WithGroup(name), last: h.last}
}

// Span is an in-flight traced operation.
type Span struct {
	logger *slog.Logger
	op     string
	start  time.Time
}

// Trace logs that op is initiating and returns a span to finish it.
//
//	span := logging.Trace(logger, "Eligible.Generate")
//	defer func() { span.End(err) }()
func Trace(logger *slog.Logger, op string, attrs ...any) *Span {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With(slog.String("op", op))
	if len(attrs) > 0 {
		logger = logger.With(attrs...)
	}
	logger.Debug("initiating")
	return &Span{logger: logger, op: op, start: time.Now()}
}

// End logs finished, or failed with the error.
func (s *Span) End(err error) {
	d := slog.Duration("duration", time.Since(s.start))
	if err != nil {
		s.logger.Error("failed", d, slog.String("error", err.Error()))
		return
	}
	s.logger.Info("finished", d)
}
