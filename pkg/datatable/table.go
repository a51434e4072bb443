package datatable

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrNoData is returned by exports when there is nothing to write.
var ErrNoData = errors.New("No data available to export.")

// Column is one exported column. Selector wins over Field; Field names a
// key of the row's fields.
type Column[T any] struct {
	Name     string
	Field    string
	Selector func(T) any
}

// Table is a searchable list of rows.
type Table[T any] struct {
	Columns []Column[T]
	// Fields returns the searchable values of a row. When nil the row's JSON
	// object form is used.
	Fields func(T) map[string]any
	// Active reports whether a row is active. When nil every row is.
	Active func(T) bool

	rows     []T
	filter   string
	filtered []T
}

// New creates a table over rows.
func New[T any](columns []Column[T], rows []T) *Table[T] {
	t := &Table[T]{Columns: columns}
	t.SetRows(rows)
	return t
}

// SetRows replaces the rows and reapplies the current filter.
func (t *Table[T]) SetRows(rows []T) {
	t.rows = rows
	t.apply()
}

// Rows returns every row.
func (t *Table[T]) Rows() []T {
	return t.rows
}

// Filter returns the current search text.
func (t *Table[T]) Filter() string {
	return t.filter
}

// Search keeps the rows where any field's string form contains filter,
// ignoring case, and returns them. A blank filter keeps every row.
func (t *Table[T]) Search(filter string) []T {
	t.filter = filter
	t.apply()
	return t.filtered
}

// Visible returns the rows kept by the current filter.
func (t *Table[T]) Visible() []T {
	return t.filtered
}

func (t *Table[T]) apply() {
	needle := strings.ToLower(strings.TrimSpace(t.filter))
	if needle == "" {
		t.filtered = t.rows
		return
	}
	out := make([]T, 0, len(t.rows))
	for _, row := range t.rows {
		if t.matches(row, needle) {
			out = append(out, row)
		}
	}
	t.filtered = out
}

func (t *Table[T]) matches(row T, needle string) bool {
	for _, v := range t.fields(row) {
		if strings.Contains(strings.ToLower(Stringify(v)), needle) {
			return true
		}
	}
	return false
}

func (t *Table[T]) fields(row T) map[string]any {
	if t.Fields != nil {
		return t.Fields(row)
	}
	raw, err := json.Marshal(row)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

// ExportRows returns the filtered rows when a filter is set and every row
// otherwise.
func (t *Table[T]) ExportRows() []T {
	if strings.TrimSpace(t.filter) != "" {
		return t.filtered
	}
	return t.rows
}

// Headers returns the column names in order.
func (t *Table[T]) Headers() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Values returns the exported cell values of row in column order.
func (t *Table[T]) Values(row T) []any {
	var fields map[string]any
	out := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		if c.Selector != nil {
			out[i] = c.Selector(row)
			continue
		}
		if fields == nil {
			fields = t.fields(row)
		}
		out[i] = fields[c.Field]
	}
	return out
}

// Stringify renders a field value for matching and export. nil is empty
// and nested values use their JSON form.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool, int, int64, int32:
		return fmt.Sprint(x)
	case fmt.Stringer:
		return x.String()
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, Stringify(x[k]))
		}
		return strings.Join(parts, " ")
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(raw)
}
