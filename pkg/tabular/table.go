// Package tabular holds the in-memory table produced by the loader and consumed by the
// statistics, cleaning and plotting engines.
package tabular

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/tabula/pkg/apperrors"
)

// FileType is the closed set of file formats the loader understands.
type FileType string

const (
	CSV  FileType = "csv"
	XLSX FileType = "xlsx"
)

// ParseFileType maps an extension ("csv", ".XLSX", ...) to a FileType.
// Anything else fails with apperrors.ErrUnsupportedFormat.
func ParseFileType(ext string) (FileType, error) {
	switch FileType(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))) {
	case CSV:
		return CSV, nil
	case XLSX:
		return XLSX, nil
	}
	return "", fmt.Errorf("%w: %q", apperrors.ErrUnsupportedFormat, ext)
}

// FileTypeFromName takes the extension of filename case-insensitively.
func FileTypeFromName(filename string) (FileType, error) {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 || idx == len(filename)-1 {
		return "", fmt.Errorf("%w: %q has no extension", apperrors.ErrUnsupportedFormat, filename)
	}
	return ParseFileType(filename[idx+1:])
}

// ContentType returns the MIME type used when serving files of this type.
func (ft FileType) ContentType() string {
	switch ft {
	case CSV:
		return "text/csv"
	case XLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/octet-stream"
}

// Kind is the inferred type of a column.
type Kind string

const (
	KindNumeric Kind = "numeric"
	KindText    Kind = "text"
)

// Cell is a single value. Numeric columns use Number, text columns use Text.
type Cell struct {
	Number  float64
	Text    string
	Missing bool
}

// MissingCell returns the missing marker.
func MissingCell() Cell { return Cell{Missing: true} }

// NumberCell returns a numeric cell.
func NumberCell(v float64) Cell { return Cell{Number: v} }

// TextCell returns a text cell.
func TextCell(s string) Cell { return Cell{Text: s} }

// Column is a named, typed sequence of cells.
type Column struct {
	Name  string
	Kind  Kind
	Cells []Cell
}

// IsNumeric reports whether the column holds numbers.
func (c *Column) IsNumeric() bool {
	return c.Kind == KindNumeric
}

// Numbers returns the non-missing values of a numeric column in row order.
func (c *Column) Numbers() []float64 {
	if !c.IsNumeric() {
		return nil
	}
	values := make([]float64, 0, len(c.Cells))
	for _, cell := range c.Cells {
		if !cell.Missing {
			values = append(values, cell.Number)
		}
	}
	return values
}

// MissingCount returns how many cells are missing.
func (c *Column) MissingCount() int {
	n := 0
	for _, cell := range c.Cells {
		if cell.Missing {
			n++
		}
	}
	return n
}

// Table is an ordered set of equally long columns with unique names.
type Table struct {
	Columns []*Column
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0].Cells)
}

// NumCols returns the number of columns.
func (t *Table) NumCols() int {
	return len(t.Columns)
}

// Shape returns [rows, columns].
func (t *Table) Shape() [2]int {
	return [2]int{t.NumRows(), t.NumCols()}
}

// Column looks a column up by name.
func (t *Table) Column(name string) (*Column, bool) {
	for _, col := range t.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return nil, false
}

// ColumnNames returns column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = col.Name
	}
	return names
}

// NumericColumns returns the numeric columns in order.
func (t *Table) NumericColumns() []*Column {
	var cols []*Column
	for _, col := range t.Columns {
		if col.IsNumeric() {
			cols = append(cols, col)
		}
	}
	return cols
}

// MissingCounts returns the missing-cell count per column name.
func (t *Table) MissingCounts() map[string]int {
	counts := make(map[string]int, len(t.Columns))
	for _, col := range t.Columns {
		counts[col.Name] = col.MissingCount()
	}
	return counts
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := &Table{Columns: make([]*Column, len(t.Columns))}
	for i, col := range t.Columns {
		cells := make([]Cell, len(col.Cells))
		copy(cells, col.Cells)
		out.Columns[i] = &Column{Name: col.Name, Kind: col.Kind, Cells: cells}
	}
	return out
}

// SelectRows returns a new table holding only the given row indexes, in order.
func (t *Table) SelectRows(rows []int) *Table {
	out := &Table{Columns: make([]*Column, len(t.Columns))}
	for i, col := range t.Columns {
		cells := make([]Cell, len(rows))
		for j, r := range rows {
			cells[j] = col.Cells[r]
		}
		out.Columns[i] = &Column{Name: col.Name, Kind: col.Kind, Cells: cells}
	}
	return out
}
