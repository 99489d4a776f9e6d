package core

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigError reports malformed campaign or tool configuration. It is raised
// before any warehouse call.
type ConfigError struct {
	Source string
	Issues []error
}

// NewConfigError returns nil when there are no issues.
func NewConfigError(source string, issues []error) error {
	if len(issues) == 0 {
		return nil
	}
	return &ConfigError{Source: source, Issues: issues}
}

func (e *ConfigError) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		msgs[i] = "  - " + issue.Error()
	}
	return fmt.Sprintf("invalid %s (%d issue(s)):\n%s", e.Source, len(e.Issues), strings.Join(msgs, "\n"))
}

// Unwrap exposes the individual issues to errors.Is/As.
func (e *ConfigError) Unwrap() []error {
	return e.Issues
}

// ConnectionError is returned when the warehouse cannot be reached.
type ConnectionError struct {
	Target string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s warehouse: %v\nHint: check target host, user and credentials", e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Stages a query can fail in.
const (
	StageWorkTable   = "work_table"
	StageEligibility = "eligibility"
	StageDetails     = "identifier_details"
	StagePopulation  = "starting_population"
	StageCondition   = "condition_metrics"
	StageEligible    = "eligible_population"
	StageChannel     = "channel_eligibility"
	StageExtract     = "channel_extract"
	StageCleanup     = "cleanup"
)

// QueryError carries the context of a failed warehouse statement.
type QueryError struct {
	Stage      string
	Identifier string
	Condition  string
	Channel    string
	Table      string
	SQL        string
	Err        error
}

func (e *QueryError) Error() string {
	var ctx []string
	if e.Identifier != "" {
		ctx = append(ctx, fmt.Sprintf("identifier=%q", e.Identifier))
	}
	if e.Condition != "" {
		ctx = append(ctx, fmt.Sprintf("condition=%q", e.Condition))
	}
	if e.Channel != "" {
		ctx = append(ctx, fmt.Sprintf("channel=%q", e.Channel))
	}
	if e.Table != "" {
		ctx = append(ctx, fmt.Sprintf("table=%q", e.Table))
	}
	msg := fmt.Sprintf("%s query failed", e.Stage)
	if len(ctx) > 0 {
		msg += " (" + strings.Join(ctx, ", ") + ")"
	}
	return msg + ": " + e.Err.Error()
}

func (e *QueryError) Unwrap() error { return e.Err }

// ChannelError reports a failed channel output.
type ChannelError struct {
	Channel string
	Path    string
	Err     error
}

func (e *ChannelError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("channel %q (%s): %v", e.Channel, e.Path, e.Err)
	}
	return fmt.Sprintf("channel %q: %v", e.Channel, e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }

// ReconciliationError is returned when waterfall counts do not add up.
type ReconciliationError struct {
	Identifier string
	Condition  string
	Rule       string
	Want       int64
	Got        int64
}

func (e *ReconciliationError) Error() string {
	where := e.Identifier
	if e.Condition != "" {
		where += "/" + e.Condition
	}
	return fmt.Sprintf("waterfall does not reconcile at %s: %s (want %d, got %d)", where, e.Rule, e.Want, e.Got)
}

// IsConfigError reports whether err contains a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
