package warehouse

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/waterfall/internal/testutil"
	"github.com/leapstack-labs/waterfall/pkg/adapter"
	"github.com/leapstack-labs/waterfall/pkg/core"
	"github.com/leapstack-labs/waterfall/pkg/dialect"
)

var testDialect = dialect.New(&dialect.Config{Name: "mock", DropIfExists: true}).Build()

type mockAdapter struct {
	adapter.BaseSQLAdapter
	connectErr error
}

func (m *mockAdapter) Connect(context.Context, core.AdapterConfig) error { return m.connectErr }
func (m *mockAdapter) DialectName() string                               { return "mock" }
func (m *mockAdapter) Dialect() *dialect.Dialect                         { return testDialect }

// recordingStore is a core.Store keeping tracked tables in memory.
type recordingStore struct {
	core.Store
	mu      sync.Mutex
	tracked []string
	dropped []string
	pending []*core.TrackedTable
}

func (r *recordingStore) TrackTable(_ context.Context, _, table string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracked = append(r.tracked, table)
	return nil
}

func (r *recordingStore) MarkTableDropped(_ context.Context, runID, table string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped = append(r.dropped, runID+":"+table)
	return nil
}

func (r *recordingStore) PendingTables(context.Context, string) ([]*core.TrackedTable, error) {
	return r.pending, nil
}

func newMockSession(t *testing.T, opts ...Option) (*Session, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	a := &mockAdapter{BaseSQLAdapter: adapter.BaseSQLAdapter{DB: db}}
	s, err := New(a, testutil.NewTestLogger(t), opts...)
	require.NoError(t, err)
	return s, mock
}

func TestSession_CleanupReverseOrder(t *testing.T) {
	ctx := context.Background()
	store := &recordingStore{}
	s, mock := newMockSession(t, WithStore(store, "run-1"))

	s.Track(ctx, "w.a")
	s.Track(ctx, "w.b")
	s.Track(ctx, "w.c")
	assert.Equal(t, []string{"w.a", "w.b", "w.c"}, store.tracked)

	mock.ExpectExec("DROP TABLE IF EXISTS w.c").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DROP TABLE IF EXISTS w.b").WillReturnError(errors.New("permission denied"))
	mock.ExpectExec("DROP TABLE IF EXISTS w.a").WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Cleanup(ctx)
	require.Error(t, err)
	var qe *core.QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "w.b", qe.Table)
	assert.Equal(t, core.StageCleanup, qe.Stage)

	assert.Equal(t, []string{"run-1:w.c", "run-1:w.a"}, store.dropped)
	assert.Empty(t, s.Tracked())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSession_CloseIdempotent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s, mock := newMockSession(t)
	s.Track(ctx, "w.a")
	cancel()

	mock.ExpectExec("DROP TABLE IF EXISTS w.a").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	require.NoError(t, s.Close(ctx))
	require.NoError(t, s.Close(ctx))
	require.NoError(t, mock.ExpectationsWereMet())

	require.ErrorIs(t, s.Exec(context.Background(), "SELECT 1"), ErrClosed)
	_, err := s.FetchTable(context.Background(), "SELECT 1")
	require.ErrorIs(t, err, ErrClosed)
}

func TestSession_CloseKeepTables(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	logger, rec := testutil.NewRecordingLogger(t)
	s, err := New(&mockAdapter{BaseSQLAdapter: adapter.BaseSQLAdapter{DB: db}}, logger, WithKeepTables(true))
	require.NoError(t, err)
	s.Track(context.Background(), "w.a")
	s.Track(context.Background(), "w.b")

	mock.ExpectClose()
	require.NoError(t, s.Close(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())

	kept, ok := rec.Find("keeping generated tables")
	require.True(t, ok)
	assert.Equal(t, "2", kept.Attrs["count"])
	_, ok = rec.Find("dropped table")
	assert.False(t, ok)
}

func TestSession_CloseReportsCleanupFailure(t *testing.T) {
	s, mock := newMockSession(t)
	s.Track(context.Background(), "w.a")

	mock.ExpectExec("DROP TABLE IF EXISTS w.a").WillReturnError(errors.New("locked"))
	mock.ExpectClose()

	err := s.Close(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to clean up tables")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSession_DropPending(t *testing.T) {
	store := &recordingStore{pending: []*core.TrackedTable{
		{RunID: "old-1", Name: "w.x"},
		{RunID: "old-2", Name: "w.y"},
	}}
	s, mock := newMockSession(t, WithStore(store, "run-2"))

	mock.ExpectExec("DROP TABLE IF EXISTS w.x").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DROP TABLE IF EXISTS w.y").WillReturnError(errors.New("gone"))

	dropped, err := s.DropPending(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, []string{"w.x"}, dropped)
	assert.Equal(t, []string{"old-1:w.x"}, store.dropped)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSession_DropPendingWithoutStore(t *testing.T) {
	s, _ := newMockSession(t)
	_, err := s.DropPending(context.Background(), "")
	require.Error(t, err)
}

func TestSession_FetchTable(t *testing.T) {
	s, mock := newMockSession(t)
	mock.ExpectQuery("SELECT acct_id, name FROM t").WillReturnRows(
		sqlmock.NewRows([]string{"acct_id", "name"}).
			AddRow(int64(1), []byte("alpha")).
			AddRow(int64(2), nil),
	)

	got, err := s.FetchTable(context.Background(), "SELECT acct_id, name FROM t")
	require.NoError(t, err)
	assert.Equal(t, []string{"acct_id", "name"}, got.Columns)
	assert.Equal(t, [][]any{{int64(1), "alpha"}, {int64(2), nil}}, got.Rows)
	require.NoError(t, mock.ExpectationsWereMet())
}

type failingWriter struct{ rows int }

func (f *failingWriter) WriteHeader([]string) error { return nil }
func (f *failingWriter) WriteRow([]any) error {
	f.rows++
	if f.rows == 2 {
		return errors.New("disk full")
	}
	return nil
}

func TestSession_ExportWriterError(t *testing.T) {
	s, mock := newMockSession(t)
	mock.ExpectQuery("SELECT x FROM t").WillReturnRows(
		sqlmock.NewRows([]string{"x"}).AddRow(1).AddRow(2).AddRow(3),
	)

	n, err := s.Export(context.Background(), "SELECT x FROM t", &failingWriter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, int64(1), n)
}

func TestSession_Counts(t *testing.T) {
	s, mock := newMockSession(t)
	mock.ExpectQuery("SELECT counts").WillReturnRows(
		sqlmock.NewRows([]string{"UNIQUE_DROP", "regain"}).AddRow("12", float64(3)),
	)

	got, err := s.Counts(context.Background(), "SELECT counts")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"unique_drop": 12, "regain": 3}, got)

	mock.ExpectQuery("SELECT none").WillReturnRows(sqlmock.NewRows([]string{"n"}))
	_, err = s.Counts(context.Background(), "SELECT none")
	require.Error(t, err)
}

func TestToInt64(t *testing.T) {
	tests := []struct {
		in      any
		want    int64
		wantErr bool
	}{
		{nil, 0, false},
		{int64(7), 7, false},
		{int32(7), 7, false},
		{float64(7), 7, false},
		{[]byte("42"), 42, false},
		{"42.0", 42, false},
		{big.NewInt(9), 9, false},
		{"abc", 0, true},
		{true, 0, true},
	}
	for _, tt := range tests {
		got, err := toInt64(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "%v", tt.in)
			continue
		}
		require.NoError(t, err, "%v", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestOpen(t *testing.T) {
	adapter.Register("warehouse_test_fail", func(*slog.Logger) adapter.Adapter {
		return &mockAdapter{connectErr: errors.New("host unreachable")}
	})

	_, err := Open(context.Background(), core.AdapterConfig{Type: "warehouse_test_fail"}, nil)
	var ce *core.ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "warehouse_test_fail", ce.Target)

	_, err = Open(context.Background(), core.AdapterConfig{Type: "no_such_adapter"}, nil)
	var unknown *adapter.UnknownAdapterError
	require.ErrorAs(t, err, &unknown)
}
