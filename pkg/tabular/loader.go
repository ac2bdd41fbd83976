package tabular

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/ekaya-inc/tabula/pkg/apperrors"
)

// naTokens are read as missing values. Matching is exact: " NA" or a lone space is text.
var naTokens = map[string]struct{}{
	"":         {},
	"NA":       {},
	"N/A":      {},
	"n/a":      {},
	"NaN":      {},
	"nan":      {},
	"-NaN":     {},
	"-nan":     {},
	"null":     {},
	"NULL":     {},
	"None":     {},
	"#N/A":     {},
	"#N/A N/A": {},
	"#NA":      {},
	"<NA>":     {},
	"1.#IND":   {},
	"1.#QNAN":  {},
	"-1.#IND":  {},
	"-1.#QNAN": {},
}

// Load reads a CSV or XLSX stream into a Table.
//
// Header detection: if every cell of the first row is text (present and not a number
// or boolean) the row is used as the header. Otherwise the data is headerless and
// columns are named "Column 0", "Column 1", ... This is a heuristic: a file whose
// first data row happens to be all text is read as having a header.
func Load(r io.Reader, ft FileType) (*Table, error) {
	var (
		rows        [][]string
		strictWidth bool
		err         error
	)

	switch ft {
	case CSV:
		rows, err = readCSV(r)
		strictWidth = true
	case XLSX:
		rows, err = readXLSX(r)
		rows = dropEmptyRows(rows)
	default:
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnsupportedFormat, ft)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrCorruptData, err)
	}

	return buildTable(rows, strictWidth)
}

// buildTable keeps every record it is given. A CSV line of bare delimiters such as ","
// is a row of missing cells; blank lines never reach here because encoding/csv skips them.
func buildTable(rows [][]string, strictWidth bool) (*Table, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no columns to parse from file", apperrors.ErrCorruptData)
	}

	hasHeader := isHeaderRow(rows[0])

	width := len(rows[0])
	if !strictWidth {
		for _, row := range rows {
			width = max(width, len(row))
		}
	}
	for i, row := range rows {
		if len(row) > width {
			return nil, fmt.Errorf("%w: expected %d fields in line %d, saw %d",
				apperrors.ErrCorruptData, width, i+1, len(row))
		}
	}

	var names []string
	data := rows
	if hasHeader {
		names = headerNames(rows[0], width)
		data = rows[1:]
	} else {
		names = make([]string, width)
		for i := range names {
			names[i] = fmt.Sprintf("Column %d", i)
		}
	}

	table := &Table{Columns: make([]*Column, width)}
	for c := 0; c < width; c++ {
		raw := make([]string, len(data))
		for r, row := range data {
			if c < len(row) {
				raw[r] = row[c]
			}
		}
		table.Columns[c] = typeColumn(names[c], raw)
	}
	return table, nil
}

// typeColumn infers numeric vs text. A column is numeric when every present value parses
// as a finite number (an all-missing column is numeric too).
func typeColumn(name string, raw []string) *Column {
	col := &Column{Name: name, Kind: KindNumeric, Cells: make([]Cell, len(raw))}

	for _, s := range raw {
		if isNA(s) {
			continue
		}
		if _, ok := parseNumber(s); !ok {
			col.Kind = KindText
			break
		}
	}

	for i, s := range raw {
		switch {
		case isNA(s):
			col.Cells[i] = MissingCell()
		case col.Kind == KindNumeric:
			v, _ := parseNumber(s)
			col.Cells[i] = NumberCell(v)
		default:
			col.Cells[i] = TextCell(s)
		}
	}
	return col
}

func isHeaderRow(row []string) bool {
	if len(row) == 0 {
		return false
	}
	for _, cell := range row {
		if isNA(cell) || isBool(cell) {
			return false
		}
		if _, ok := parseNumber(cell); ok {
			return false
		}
	}
	return true
}

// headerNames pads the header to width and disambiguates repeated names as
// "name", "name.1", "name.2", ...
func headerNames(row []string, width int) []string {
	names := make([]string, width)
	seen := make(map[string]int, width)
	taken := make(map[string]bool, width)
	for i := 0; i < width; i++ {
		name := fmt.Sprintf("Unnamed: %d", i)
		if i < len(row) && strings.TrimSpace(row[i]) != "" {
			name = row[i]
		}
		base := name
		for taken[name] {
			seen[base]++
			name = fmt.Sprintf("%s.%d", base, seen[base])
		}
		taken[name] = true
		names[i] = name
	}
	return names
}

// dropEmptyRows removes the zero-cell rows excelize returns for sheet rows with no values.
func dropEmptyRows(rows [][]string) [][]string {
	out := rows[:0:0]
	for _, row := range rows {
		if len(row) > 0 {
			out = append(out, row)
		}
	}
	return out
}

func isNA(s string) bool {
	_, ok := naTokens[s]
	return ok
}

func isBool(s string) bool {
	switch strings.TrimSpace(s) {
	case "True", "TRUE", "true", "False", "FALSE", "false":
		return true
	}
	return false
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
