package core

import (
	"context"
	"time"
)

// Store defines the interface for run state management.
type Store interface {
	Close() error

	// Run operations
	CreateRun(ctx context.Context, offerCode, env string) (*Run, error)
	GetRun(ctx context.Context, id string) (*Run, error)
	CompleteRun(ctx context.Context, id string, status RunStatus, errMsg string) error
	ListRuns(ctx context.Context, limit int) ([]*Run, error)

	// Tracked table operations
	TrackTable(ctx context.Context, runID, table string) error
	MarkTableDropped(ctx context.Context, runID, table string) error
	PendingTables(ctx context.Context, runID string) ([]*TrackedTable, error)
}

// RunStatus represents the status of a run.
type RunStatus string

// Run status values.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusPartial   RunStatus = "partial"
)

// Run represents one execution of the pipeline.
type Run struct {
	ID          string     `json:"id"`
	OfferCode   string     `json:"offer_code"`
	Environment string     `json:"environment"`
	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// TrackedTable is a temporary warehouse object created during a run.
type TrackedTable struct {
	RunID     string     `json:"run_id"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
	DroppedAt *time.Time `json:"dropped_at,omitempty"`
}
