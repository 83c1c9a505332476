package dataset

import "fmt"

// ColumnType is the storage class of a column once the frame has been typed.
type ColumnType string

const (
	// TypeRaw marks a column that still holds the untouched CSV strings.
	TypeRaw     ColumnType = ""
	TypeText    ColumnType = "TEXT"
	TypeInteger ColumnType = "INTEGER"
	TypeReal    ColumnType = "REAL"
	TypeDate    ColumnType = "DATE"
)

// Column describes one frame column
type Column struct {
	Name string
	Type ColumnType
}

// Frame is an in-memory table read from a CSV file.
//
// Cells are nil (NULL), string, int64, float64 or time.Time. A raw frame
// straight out of ReadCSV only holds strings.
type Frame struct {
	Name    string
	Columns []Column
	Rows    [][]any
}

// Len returns the number of rows
func (f *Frame) Len() int {
	return len(f.Rows)
}

// Index returns the position of the named column, or -1.
func (f *Frame) Index(name string) int {
	for i, col := range f.Columns {
		if col.Name == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the frame has a column with the given name
func (f *Frame) HasColumn(name string) bool {
	return f.Index(name) >= 0
}

// ColumnNames returns the column names in order
func (f *Frame) ColumnNames() []string {
	names := make([]string, len(f.Columns))
	for i, col := range f.Columns {
		names[i] = col.Name
	}
	return names
}

// Require returns an error naming the first missing column.
func (f *Frame) Require(names ...string) error {
	for _, name := range names {
		if !f.HasColumn(name) {
			return fmt.Errorf("%s: missing required column %q", f.Name, name)
		}
	}
	return nil
}

// Value returns the cell at row for the named column. Unknown columns read as nil.
func (f *Frame) Value(row int, name string) any {
	idx := f.Index(name)
	if idx < 0 || row < 0 || row >= len(f.Rows) {
		return nil
	}
	return f.Rows[row][idx]
}

// AppendColumn adds a column to the right of the frame, filling each row with fill(row).
func (f *Frame) AppendColumn(col Column, fill func(row int) any) error {
	if f.HasColumn(col.Name) {
		return fmt.Errorf("%s: column %q already exists", f.Name, col.Name)
	}
	f.Columns = append(f.Columns, col)
	for i := range f.Rows {
		var v any
		if fill != nil {
			v = fill(i)
		}
		f.Rows[i] = append(f.Rows[i], v)
	}
	return nil
}

// Project returns a new frame holding only the named columns, in the given order.
func (f *Frame) Project(names ...string) (*Frame, error) {
	idx := make([]int, len(names))
	cols := make([]Column, len(names))
	for i, name := range names {
		j := f.Index(name)
		if j < 0 {
			return nil, fmt.Errorf("%s: missing required column %q", f.Name, name)
		}
		idx[i] = j
		cols[i] = f.Columns[j]
	}

	rows := make([][]any, len(f.Rows))
	for r, src := range f.Rows {
		row := make([]any, len(idx))
		for i, j := range idx {
			row[i] = src[j]
		}
		rows[r] = row
	}

	return &Frame{Name: f.Name, Columns: cols, Rows: rows}, nil
}
