// Package table loads tab-separated query results into a column-addressable table.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"ukcensusapi/internal/core"
)

// NameSuffix is appended to a code column's name to form its label column.
const NameSuffix = "_NAME"

// Table is a header row plus data rows. Rows may be shorter than the header;
// missing cells read as "".
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]string
}

// Parse reads tab-separated text whose first line is the header. A header
// with no data rows is a valid empty table.
func Parse(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, core.NewInvalidQueryError("no header row")
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}

	t := &Table{index: make(map[string]int, len(header))}
	for _, col := range header {
		t.addColumnName(strings.TrimSpace(col))
	}

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", len(t.rows)+1, err)
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

// ParseFile parses the file at path.
func ParseFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

func (t *Table) addColumnName(name string) {
	t.index[name] = len(t.columns)
	t.columns = append(t.columns, name)
}

// Columns returns the column names in order.
func (t *Table) Columns() []string { return slices.Clone(t.columns) }

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.rows) }

// HasColumn reports whether the table has a column called name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Value returns the cell at row and column, or "" if either is absent.
func (t *Table) Value(row int, column string) string {
	i, ok := t.index[column]
	if !ok || row < 0 || row >= len(t.rows) || i >= len(t.rows[row]) {
		return ""
	}
	return t.rows[row][i]
}

// Column returns a copy of every value of column.
func (t *Table) Column(name string) ([]string, bool) {
	if !t.HasColumn(name) {
		return nil, false
	}
	out := make([]string, len(t.rows))
	for r := range t.rows {
		out[r] = t.Value(r, name)
	}
	return out, true
}

// AddColumn appends a column; values must have one entry per row.
func (t *Table) AddColumn(name string, values []string) error {
	if len(values) != len(t.rows) {
		return fmt.Errorf("column %s has %d values, table has %d rows", name, len(values), len(t.rows))
	}
	if t.HasColumn(name) {
		i := t.index[name]
		for r := range t.rows {
			t.setCell(r, i, values[r])
		}
		return nil
	}
	t.addColumnName(name)
	i := len(t.columns) - 1
	for r := range t.rows {
		t.setCell(r, i, values[r])
	}
	return nil
}

func (t *Table) setCell(row, col int, v string) {
	for len(t.rows[row]) <= col {
		t.rows[row] = append(t.rows[row], "")
	}
	t.rows[row][col] = v
}

// Labeler resolves a field name to its code→label dictionary.
// *metadata.Record implements it.
type Labeler interface {
	Lookup(field string) (map[int]string, bool)
}

// ConvertCode adds a column named column+NameSuffix holding the label of each
// code in column. A code that is not an integer or has no label maps to "".
//
// When the field is absent from meta or the column is absent from the table,
// the table is left unchanged, a warning is logged and a lookup_error is
// returned.
func (t *Table) ConvertCode(column string, meta Labeler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	var (
		fieldLabels map[int]string
		ok          bool
	)
	if meta != nil {
		fieldLabels, ok = meta.Lookup(column)
	}
	if !ok {
		logger.Warn("column is not in metadata", "column", column)
		return core.NewLookupError(column + " is not in metadata")
	}
	values, found := t.Column(column)
	if !found {
		logger.Warn("column is not in table", "column", column)
		return core.NewLookupError(column + " is not in table")
	}

	names := make([]string, len(values))
	for r, v := range values {
		code, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			continue
		}
		names[r] = fieldLabels[code]
	}
	return t.AddColumn(column+NameSuffix, names)
}
