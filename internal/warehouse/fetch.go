package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Table is a fully materialized query result.
type Table struct {
	Columns []string
	Rows    [][]any
}

// TableWriter receives a query result row by row.
type TableWriter interface {
	WriteHeader(columns []string) error
	WriteRow(values []any) error
}

// FetchTable runs a query and returns all of its rows. Use Export for results
// that do not fit in memory.
func (s *Session) FetchTable(ctx context.Context, query string) (*Table, error) {
	t := &Table{}
	if _, err := s.Export(ctx, query, &tableCollector{t}); err != nil {
		return nil, err
	}
	return t, nil
}

type tableCollector struct{ t *Table }

func (c *tableCollector) WriteHeader(columns []string) error {
	c.t.Columns = columns
	return nil
}

func (c *tableCollector) WriteRow(values []any) error {
	c.t.Rows = append(c.t.Rows, append([]any(nil), values...))
	return nil
}

// Export streams a query result into w and returns the number of rows written.
// Byte slices are passed on as strings.
func (s *Session) Export(ctx context.Context, query string, w TableWriter) (int64, error) {
	if s.isClosed() {
		return 0, ErrClosed
	}
	s.logger.Debug("running query", slog.String("sql", query))

	rows, err := s.adapter.Query(ctx, query)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return 0, fmt.Errorf("failed to read columns: %w", err)
	}
	if err := w.WriteHeader(cols); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	var n int64
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return n, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		if err := w.WriteRow(values); err != nil {
			return n, fmt.Errorf("failed to write row %d: %w", n+1, err)
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, fmt.Errorf("failed to read rows: %w", err)
	}
	return n, nil
}

// Counts runs a single-row query of integer columns and returns them by
// lower-cased column name.
func (s *Session) Counts(ctx context.Context, query string) (map[string]int64, error) {
	t, err := s.FetchTable(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(t.Rows) != 1 {
		return nil, fmt.Errorf("expected 1 row, got %d", len(t.Rows))
	}
	out := make(map[string]int64, len(t.Columns))
	for i, col := range t.Columns {
		v, err := toInt64(t.Rows[0][i])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col, err)
		}
		out[strings.ToLower(col)] = v
	}
	return out, nil
}

// toInt64 converts the count types drivers return. NULL counts as zero
// (SUM over an empty table).
func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return x, nil
	case int32:
		return int64(x), nil
	case int:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case []byte:
		return parseCount(string(x))
	case string:
		return parseCount(x)
	case sql.NullInt64:
		return x.Int64, nil
	case fmt.Stringer:
		return parseCount(x.String())
	default:
		return 0, fmt.Errorf("unexpected count type %T", v)
	}
}

func parseCount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid count %q", s)
	}
	return int64(f), nil
}
