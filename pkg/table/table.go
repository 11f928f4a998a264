// Package table loads a row-logged delimited file into memory and offers the
// small set of column operations the plotter and exporters need: numeric
// views, filtering by a flag value, grouping and min/max statistics.
package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ajitpratap0/dflog/pkg/errors"
)

// Table is an in-memory view of a delimited file: ordered column names and
// string cells. Numeric interpretations are derived on demand.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]string
}

// Group is one distinct value of a column and the rows holding it.
type Group struct {
	Value string
	Rows  []int
}

// New creates an empty table with the given columns. Duplicate names are
// suffixed with ".1", ".2", ... in order of appearance.
func New(columns []string) *Table {
	t := &Table{
		columns: dedupe(columns),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range t.columns {
		t.index[c] = i
	}
	return t
}

func dedupe(columns []string) []string {
	out := make([]string, len(columns))
	used := make(map[string]bool, len(columns))
	counts := make(map[string]int, len(columns))
	for i, c := range columns {
		name := c
		for used[name] {
			counts[c]++
			name = fmt.Sprintf("%s.%d", c, counts[c])
		}
		used[name] = true
		out[i] = name
	}
	return out
}

// AppendRow adds a row. The number of cells must match the columns.
func (t *Table) AppendRow(cells ...string) error {
	if len(cells) != len(t.columns) {
		return errors.Newf(errors.ErrorTypeSchemaMismatch,
			"row has %d cells but the table has %d columns", len(cells), len(t.columns))
	}
	row := make([]string, len(cells))
	copy(row, cells)
	t.rows = append(t.rows, row)
	return nil
}

// ReadFile parses the delimited file at path.
func ReadFile(path, sep string) (*Table, error) {
	f, err := os.Open(path) //nolint:gosec // path is the caller's log file
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open log file").
			WithDetail("path", path)
	}
	defer f.Close()

	t, err := Parse(f, sep)
	if err != nil {
		var e *errors.Error
		if errors.As(err, &e) {
			e.WithDetail("path", path)
		}
		return nil, err
	}
	return t, nil
}

// Parse reads a header line followed by rows separated by sep. Every row must
// have as many fields as the header.
func Parse(r io.Reader, sep string) (*Table, error) {
	comma, err := separatorRune(sep)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.LazyQuotes = true
	reader.FieldsPerRecord = 0

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New(errors.ErrorTypeParse, "log file is empty")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeParse, "failed to read header")
	}

	t := New(header)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeParse, "failed to read row").
				WithDetail("row", len(t.rows)+1)
		}
		t.rows = append(t.rows, record)
	}
	return t, nil
}

func separatorRune(sep string) (rune, error) {
	if utf8.RuneCountInString(sep) != 1 {
		return 0, errors.Newf(errors.ErrorTypeParse, "separator %q must be a single character", sep)
	}
	r, _ := utf8.DecodeRuneInString(sep)
	if r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
		return 0, errors.Newf(errors.ErrorTypeParse, "separator %q cannot be used", sep)
	}
	return r, nil
}

// Columns returns the column names in file order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Has reports whether the table has the named column.
func (t *Table) Has(col string) bool {
	_, ok := t.index[col]
	return ok
}

// Row returns the cells of row i.
func (t *Table) Row(i int) []string {
	out := make([]string, len(t.rows[i]))
	copy(out, t.rows[i])
	return out
}

// Column returns the cells of the named column, or nil when it does not exist.
func (t *Table) Column(col string) []string {
	i, ok := t.index[col]
	if !ok {
		return nil
	}
	out := make([]string, len(t.rows))
	for r, row := range t.rows {
		out[r] = row[i]
	}
	return out
}

// Float64s returns the named column as floats. ok is false when the column
// does not exist or is not numeric: a column is numeric when it has at least
// one non-empty cell and every non-empty cell parses as a float. Empty cells
// become NaN.
func (t *Table) Float64s(col string) (vals []float64, ok bool) {
	if !t.Has(col) {
		return nil, false
	}
	cells := t.Column(col)

	vals = make([]float64, len(cells))
	seen := false
	for i, c := range cells {
		c = strings.TrimSpace(c)
		if c == "" {
			vals[i] = math.NaN()
			continue
		}
		f, err := strconv.ParseFloat(c, 64)
		if err != nil {
			return nil, false
		}
		vals[i] = f
		seen = true
	}
	if !seen {
		return nil, false
	}
	return vals, true
}

// IsNumeric reports whether the named column is numeric.
func (t *Table) IsNumeric(col string) bool {
	_, ok := t.Float64s(col)
	return ok
}

// Filter returns the indexes of rows whose col cell equals value.
func (t *Table) Filter(col, value string) []int {
	i, ok := t.index[col]
	if !ok {
		return nil
	}
	var rows []int
	for r, row := range t.rows {
		if row[i] == value {
			rows = append(rows, r)
		}
	}
	return rows
}

// Groups returns the distinct values of col in ascending order with the rows
// holding each of them.
func (t *Table) Groups(col string) []Group {
	i, ok := t.index[col]
	if !ok {
		return nil
	}
	byValue := make(map[string][]int)
	for r, row := range t.rows {
		byValue[row[i]] = append(byValue[row[i]], r)
	}
	groups := make([]Group, 0, len(byValue))
	for v, rows := range byValue {
		groups = append(groups, Group{Value: v, Rows: rows})
	}
	sort.Slice(groups, func(a, b int) bool { return groups[a].Value < groups[b].Value })
	return groups
}

// MinMax returns the smallest and largest finite value of vals at the given
// rows. ok is false when there is no such value.
func MinMax(vals []float64, rows []int) (min, max float64, ok bool) {
	for _, r := range rows {
		if r < 0 || r >= len(vals) {
			continue
		}
		v := vals[r]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if !ok {
			min, max, ok = v, v, true
			continue
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max, ok
}
