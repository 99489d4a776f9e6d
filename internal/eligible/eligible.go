// Package eligible materializes the eligibility table: the join of every
// campaign table with one 0/1 flag column per condition.
package eligible

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/waterfall/internal/logging"
	"github.com/leapstack-labs/waterfall/internal/sqlgen"
	"github.com/leapstack-labs/waterfall/internal/warehouse"
	"github.com/leapstack-labs/waterfall/pkg/core"
)

// Eligible creates the work tables and the eligibility table of a run.
type Eligible struct {
	session     *warehouse.Session
	constructor *sqlgen.Constructor
	logger      *slog.Logger
	generated   bool
}

// New returns an Eligible for one run. If logger is nil, a discard logger is used.
func New(session *warehouse.Session, constructor *sqlgen.Constructor, logger *slog.Logger) *Eligible {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Eligible{session: session, constructor: constructor, logger: logger}
}

// Generate creates every work table, then the eligibility table. Each table is
// tracked for cleanup as soon as it exists. The first failure aborts.
func (e *Eligible) Generate(ctx context.Context) (err error) {
	span := logging.Trace(e.logger, "Eligible.Generate", slog.String("offer_code", e.constructor.Campaign().OfferCode))
	defer func() { span.End(err) }()

	for _, stmt := range e.constructor.WorkTables() {
		if err := Materialize(ctx, e.session, stmt); err != nil {
			return err
		}
	}
	if err := Materialize(ctx, e.session, e.constructor.Eligibility()); err != nil {
		return err
	}
	e.generated = true
	e.logger.Info("eligibility table created",
		slog.String("table", e.constructor.EligibilityTable()),
		slog.Int("conditions", e.constructor.Conditions().Len()))
	return nil
}

// Materialize runs a create statement, tracks the table and refreshes its
// statistics. Failures carry the statement context.
func Materialize(ctx context.Context, s *warehouse.Session, stmt sqlgen.Statement) error {
	if err := s.Exec(ctx, stmt.SQL); err != nil {
		return stmt.Error(err)
	}
	if stmt.Table != "" {
		s.Track(ctx, stmt.Table)
	}
	if stmt.Statistics != "" {
		if err := s.Exec(ctx, stmt.Statistics); err != nil {
			failed := stmt
			failed.SQL = stmt.Statistics
			return failed.Error(err)
		}
	}
	return nil
}

// Generated reports whether Generate completed.
func (e *Eligible) Generated() bool { return e.generated }

// Session returns the warehouse session the tables live in.
func (e *Eligible) Session() *warehouse.Session { return e.session }

// Constructor returns the SQL constructor of the run.
func (e *Eligible) Constructor() *sqlgen.Constructor { return e.constructor }

// EligibilityTable returns the generated eligibility table name.
func (e *Eligible) EligibilityTable() string { return e.constructor.EligibilityTable() }

// Conditions returns the ordered conditions.
func (e *Eligible) Conditions() *core.Conditions { return e.constructor.Conditions() }

// Identifiers returns the identifier sets.
func (e *Eligible) Identifiers() []core.Identifier { return e.constructor.Identifiers() }

// Logger returns the logger passed to New.
func (e *Eligible) Logger() *slog.Logger { return e.logger }
