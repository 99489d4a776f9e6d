package output

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/leapstack-labs/waterfall/internal/warehouse"
	"github.com/leapstack-labs/waterfall/pkg/core"
)

// DefaultDelimiter separates fields of the delimited format.
const DefaultDelimiter = "|"

// FileWriter is a warehouse.TableWriter backed by a file.
type FileWriter interface {
	warehouse.TableWriter
	Close() error
}

// NewWriter creates the file at path and returns a writer for format.
func NewWriter(path string, inst core.OutputInstruction) (FileWriter, error) {
	switch inst.Format {
	case "", core.FormatCSV:
		return newCSVWriter(path, ',', inst.WantHeader())
	case core.FormatDelimited:
		delim := inst.Delimiter
		if delim == "" {
			delim = DefaultDelimiter
		}
		r, size := utf8.DecodeRuneInString(delim)
		if size != len(delim) {
			return nil, fmt.Errorf("delimiter must be a single character, got %q", delim)
		}
		return newCSVWriter(path, r, inst.WantHeader())
	case core.FormatJSONL:
		return newJSONLWriter(path)
	case core.FormatXLSX:
		return newXLSXWriter(path, inst.WantHeader())
	default:
		return nil, fmt.Errorf("unsupported format %q", inst.Format)
	}
}

// formatValue renders a driver value as text.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

type csvWriter struct {
	f      *os.File
	w      *csv.Writer
	header bool
	record []string
}

func newCSVWriter(path string, comma rune, header bool) (*csvWriter, error) {
	f, err := os.Create(path) //nolint:gosec // path built from output config
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	w.Comma = comma
	return &csvWriter{f: f, w: w, header: header}, nil
}

func (c *csvWriter) WriteHeader(columns []string) error {
	c.record = make([]string, len(columns))
	if !c.header {
		return nil
	}
	return c.w.Write(columns)
}

func (c *csvWriter) WriteRow(values []any) error {
	for i, v := range values {
		c.record[i] = formatValue(v)
	}
	return c.w.Write(c.record)
}

func (c *csvWriter) Close() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		_ = c.f.Close()
		return err
	}
	return c.f.Close()
}

type jsonlWriter struct {
	f       *os.File
	buf     *bufio.Writer
	enc     *json.Encoder
	columns []string
}

func newJSONLWriter(path string) (*jsonlWriter, error) {
	f, err := os.Create(path) //nolint:gosec // path built from output config
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	buf := bufio.NewWriter(f)
	return &jsonlWriter{f: f, buf: buf, enc: json.NewEncoder(buf)}, nil
}

func (j *jsonlWriter) WriteHeader(columns []string) error {
	j.columns = columns
	return nil
}

func (j *jsonlWriter) WriteRow(values []any) error {
	obj := make(map[string]any, len(values))
	for i, v := range values {
		obj[j.columns[i]] = v
	}
	return j.enc.Encode(obj)
}

func (j *jsonlWriter) Close() error {
	if err := j.buf.Flush(); err != nil {
		_ = j.f.Close()
		return err
	}
	return j.f.Close()
}

// xlsxWriter streams rows into the first sheet of a workbook.
type xlsxWriter struct {
	path   string
	f      *excelize.File
	sw     *excelize.StreamWriter
	header bool
	row    int
}

func newXLSXWriter(path string, header bool) (*xlsxWriter, error) {
	f := excelize.NewFile()
	sw, err := f.NewStreamWriter("Sheet1")
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to start xlsx stream: %w", err)
	}
	return &xlsxWriter{path: path, f: f, sw: sw, header: header}, nil
}

func (x *xlsxWriter) write(values []any) error {
	x.row++
	cell, err := excelize.CoordinatesToCellName(1, x.row)
	if err != nil {
		return err
	}
	return x.sw.SetRow(cell, values)
}

func (x *xlsxWriter) WriteHeader(columns []string) error {
	if !x.header {
		return nil
	}
	row := make([]any, len(columns))
	for i, c := range columns {
		row[i] = c
	}
	return x.write(row)
}

func (x *xlsxWriter) WriteRow(values []any) error {
	row := make([]any, len(values))
	for i, v := range values {
		switch v.(type) {
		case nil, int64, float64, bool, string:
			row[i] = v
		default:
			row[i] = formatValue(v)
		}
	}
	return x.write(row)
}

func (x *xlsxWriter) Close() error {
	defer func() { _ = x.f.Close() }()
	if err := x.sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush xlsx stream: %w", err)
	}
	if err := x.f.SaveAs(x.path); err != nil {
		return fmt.Errorf("failed to save %s: %w", x.path, err)
	}
	return nil
}
