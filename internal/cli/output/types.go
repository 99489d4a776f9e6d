package output

import (
	"time"

	"github.com/leapstack-labs/waterfall/pkg/core"
)

// RunOutput is the JSON shape of the run command.
type RunOutput struct {
	RunID       string                  `json:"run_id,omitempty"`
	Status      string                  `json:"status"`
	Campaign    core.Campaign           `json:"campaign"`
	ReportPath  string                  `json:"report_path,omitempty"`
	Identifiers []core.IdentifierResult `json:"identifiers"`
	Channels    []ChannelOutput         `json:"channels,omitempty"`
	KeptTables  []string                `json:"kept_tables,omitempty"`
	Errors      []string                `json:"errors,omitempty"`
}

// ChannelOutput describes one channel file.
type ChannelOutput struct {
	Channel string `json:"channel"`
	Path    string `json:"path,omitempty"`
	Rows    int64  `json:"rows"`
	Error   string `json:"error,omitempty"`
}

// RenderOutput is the JSON shape of the render command.
type RenderOutput struct {
	Statements []StatementOutput `json:"statements"`
}

// StatementOutput is one generated statement.
type StatementOutput struct {
	Stage      string `json:"stage"`
	Identifier string `json:"identifier,omitempty"`
	Condition  string `json:"condition,omitempty"`
	Channel    string `json:"channel,omitempty"`
	Table      string `json:"table,omitempty"`
	SQL        string `json:"sql"`
}

// RunsOutput is the JSON shape of the runs command.
type RunsOutput struct {
	Runs []RunInfo `json:"runs"`
}

// RunInfo is one recorded run.
type RunInfo struct {
	ID          string     `json:"id"`
	OfferCode   string     `json:"offer_code"`
	Environment string     `json:"environment"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Duration    string     `json:"duration,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// CleanupOutput is the JSON shape of the cleanup command.
type CleanupOutput struct {
	Dropped []string `json:"dropped"`
	Errors  []string `json:"errors,omitempty"`
}

// ValidateOutput is the JSON shape of the validate command.
type ValidateOutput struct {
	Valid       bool     `json:"valid"`
	OfferCode   string   `json:"offer_code,omitempty"`
	Conditions  int      `json:"conditions"`
	Channels    []string `json:"channels,omitempty"`
	Identifiers []string `json:"identifiers,omitempty"`
	Issues      []string `json:"issues,omitempty"`
}
