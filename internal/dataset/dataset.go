// Package dataset holds the in-memory table passed between pipeline stages
// and the CSV codecs used to read sources and materialize stage artifacts.
package dataset

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Kind is the value type of a column. Cells of a column are either nil (null)
// or the Go type matching its kind: string, float64 or int64.
type Kind int

const (
	Text Kind = iota
	Float
	Int
)

func (k Kind) String() string {
	switch k {
	case Float:
		return "float"
	case Int:
		return "int"
	default:
		return "text"
	}
}

// Column is a named, typed column.
type Column struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Dataset is an ordered sequence of rows over ordered named columns.
type Dataset struct {
	Columns []Column
	Rows    [][]interface{}
}

// ValueCount is the number of rows holding a distinct value of a column.
type ValueCount struct {
	Value interface{} `json:"value"`
	Count int         `json:"count"`
}

// ErrColumnNotFound is returned by operations addressing a missing column.
var ErrColumnNotFound = eris.New("column not found")

// New creates an empty dataset with the given columns.
func New(columns ...Column) *Dataset {
	cols := make([]Column, len(columns))
	copy(cols, columns)
	return &Dataset{Columns: cols}
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// Index returns the position of a column or -1.
func (d *Dataset) Index(name string) int {
	for i, c := range d.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the dataset has the named column.
func (d *Dataset) HasColumn(name string) bool {
	return d.Index(name) >= 0
}

// ColumnNames returns the column names in order.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// Append adds a row. The row must have one cell per column.
func (d *Dataset) Append(row ...interface{}) error {
	if len(row) != len(d.Columns) {
		return eris.Errorf("row has %d cells, dataset has %d columns", len(row), len(d.Columns))
	}
	r := make([]interface{}, len(row))
	copy(r, row)
	d.Rows = append(d.Rows, r)
	return nil
}

// Value returns the cell of a row by column name, nil when the column is missing.
func (d *Dataset) Value(row int, column string) interface{} {
	idx := d.Index(column)
	if idx < 0 || row < 0 || row >= len(d.Rows) {
		return nil
	}
	return d.Rows[row][idx]
}

// Column returns every cell of the named column.
func (d *Dataset) Column(name string) ([]interface{}, error) {
	idx := d.Index(name)
	if idx < 0 {
		return nil, eris.Wrapf(ErrColumnNotFound, "column %q", name)
	}
	out := make([]interface{}, len(d.Rows))
	for i, row := range d.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// Clone returns a deep copy of the dataset.
func (d *Dataset) Clone() *Dataset {
	out := New(d.Columns...)
	out.Rows = make([][]interface{}, len(d.Rows))
	for i, row := range d.Rows {
		r := make([]interface{}, len(row))
		copy(r, row)
		out.Rows[i] = r
	}
	return out
}

// DropColumns removes the named columns. Missing names are ignored.
func (d *Dataset) DropColumns(names ...string) *Dataset {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	return d.DropColumnsFunc(func(name string) bool { return drop[name] })
}

// DropColumnsFunc removes every column for which match returns true.
func (d *Dataset) DropColumnsFunc(match func(name string) bool) *Dataset {
	var keep []int
	var cols []Column
	for i, c := range d.Columns {
		if !match(c.Name) {
			keep = append(keep, i)
			cols = append(cols, c)
		}
	}
	if len(cols) == len(d.Columns) {
		return d
	}
	for r, row := range d.Rows {
		nr := make([]interface{}, len(keep))
		for j, idx := range keep {
			nr[j] = row[idx]
		}
		d.Rows[r] = nr
	}
	d.Columns = cols
	return d
}

// DropDuplicates removes rows identical to an earlier row and returns how
// many were removed. The first occurrence is kept.
func (d *Dataset) DropDuplicates() int {
	seen := make(map[string]bool, len(d.Rows))
	return d.Filter(func(row []interface{}) bool {
		key := RowKey(row)
		if seen[key] {
			return false
		}
		seen[key] = true
		return true
	})
}

// Filter keeps the rows for which keep returns true and returns the number of
// rows removed.
func (d *Dataset) Filter(keep func(row []interface{}) bool) int {
	kept := d.Rows[:0]
	removed := 0
	for _, row := range d.Rows {
		if keep(row) {
			kept = append(kept, row)
		} else {
			removed++
		}
	}
	d.Rows = kept
	return removed
}

// Map replaces every cell of a column with fn(cell) and sets the column kind.
func (d *Dataset) Map(column string, kind Kind, fn func(v interface{}) interface{}) error {
	idx := d.Index(column)
	if idx < 0 {
		return eris.Wrapf(ErrColumnNotFound, "column %q", column)
	}
	for _, row := range d.Rows {
		row[idx] = fn(row[idx])
	}
	d.Columns[idx].Kind = kind
	return nil
}

// FillNull replaces null cells of a column with v.
func (d *Dataset) FillNull(column string, v interface{}) error {
	idx := d.Index(column)
	if idx < 0 {
		return eris.Wrapf(ErrColumnNotFound, "column %q", column)
	}
	for _, row := range d.Rows {
		if row[idx] == nil {
			row[idx] = v
		}
	}
	return nil
}

// AddColumn appends a column whose cells are computed from each row.
// An existing column with the same name is replaced in place.
func (d *Dataset) AddColumn(col Column, fn func(row []interface{}) interface{}) {
	if idx := d.Index(col.Name); idx >= 0 {
		for _, row := range d.Rows {
			row[idx] = fn(row)
		}
		d.Columns[idx].Kind = col.Kind
		return
	}
	for i, row := range d.Rows {
		d.Rows[i] = append(row, fn(row))
	}
	d.Columns = append(d.Columns, col)
}

// InsertColumn inserts a column at pos, computing each cell from the row index.
func (d *Dataset) InsertColumn(pos int, col Column, fn func(i int) interface{}) error {
	if pos < 0 || pos > len(d.Columns) {
		return eris.Errorf("column position %d out of range", pos)
	}
	if d.HasColumn(col.Name) {
		return eris.Errorf("column %q already exists", col.Name)
	}
	cols := make([]Column, 0, len(d.Columns)+1)
	cols = append(cols, d.Columns[:pos]...)
	cols = append(cols, col)
	cols = append(cols, d.Columns[pos:]...)
	d.Columns = cols
	for i, row := range d.Rows {
		nr := make([]interface{}, 0, len(row)+1)
		nr = append(nr, row[:pos]...)
		nr = append(nr, fn(i))
		nr = append(nr, row[pos:]...)
		d.Rows[i] = nr
	}
	return nil
}

// ValueCounts groups the non-null cells of a column and counts rows per value,
// ordered by first appearance.
func (d *Dataset) ValueCounts(column string) ([]ValueCount, error) {
	idx := d.Index(column)
	if idx < 0 {
		return nil, eris.Wrapf(ErrColumnNotFound, "column %q", column)
	}
	pos := make(map[string]int)
	var counts []ValueCount
	for _, row := range d.Rows {
		v := row[idx]
		if v == nil {
			continue
		}
		key := cellKey(v)
		if i, ok := pos[key]; ok {
			counts[i].Count++
			continue
		}
		pos[key] = len(counts)
		counts = append(counts, ValueCount{Value: v, Count: 1})
	}
	return counts, nil
}

// RowKey returns a string identifying the row's cells, equal for identical rows.
func RowKey(row []interface{}) string {
	var b strings.Builder
	for i, v := range row {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		b.WriteString(cellKey(v))
	}
	return b.String()
}

func cellKey(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "\x00"
	case string:
		return "s" + val
	case float64:
		return "f" + strconv.FormatFloat(val, 'g', -1, 64)
	case int64:
		return "i" + strconv.FormatInt(val, 10)
	default:
		return fmt.Sprintf("?%v", val)
	}
}

// AsText renders a non-null cell as text. ok is false for null cells.
func AsText(v interface{}) (s string, ok bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case int64:
		return strconv.FormatInt(val, 10), true
	default:
		return fmt.Sprintf("%v", val), true
	}
}
