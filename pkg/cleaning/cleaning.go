// Package cleaning removes duplicate rows and imputes missing numeric values.
package cleaning

import (
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/ekaya-inc/tabula/pkg/apperrors"
	"github.com/ekaya-inc/tabula/pkg/models"
	"github.com/ekaya-inc/tabula/pkg/stats"
	"github.com/ekaya-inc/tabula/pkg/tabular"
)

// Clean applies opts to a copy of t and returns the cleaned table with its result.
// The report's cleaned file fields are left for the caller to fill once the table is stored.
// t is not modified.
func Clean(t *tabular.Table, opts Options) (*tabular.Table, *models.CleaningResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, nil, err
	}

	report := &models.CleaningReport{
		OriginalShape:    t.Shape(),
		ActionsPerformed: []string{},
	}
	result := &models.CleaningResult{CleaningReport: report}

	cleaned := t.Clone()
	if opts.HandleDuplicates == DuplicatesDrop {
		var removed int
		cleaned, removed = DropDuplicates(cleaned)
		result.DuplicatesRemoved = removed
		report.ActionsPerformed = append(report.ActionsPerformed, models.ActionDuplicatesDropped)
	}

	before := cleaned.MissingCounts()
	if err := FillMissing(cleaned, opts.FillMissing); err != nil {
		return nil, nil, err
	}
	result.MissingValuesFilled = &models.MissingValuesFilled{
		Before: before,
		After:  cleaned.MissingCounts(),
		Method: string(opts.FillMissing),
	}
	report.ActionsPerformed = append(report.ActionsPerformed, models.ActionMissingValuesFilled)

	report.CleanedShape = cleaned.Shape()
	return cleaned, result, nil
}

// DropDuplicates keeps the first occurrence of every group of identical rows.
// Missing cells compare equal to each other.
func DropDuplicates(t *tabular.Table) (*tabular.Table, int) {
	seen := make(map[string]struct{}, t.NumRows())
	keep := make([]int, 0, t.NumRows())
	for r := 0; r < t.NumRows(); r++ {
		key := rowKey(t, r)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keep = append(keep, r)
	}
	if len(keep) == t.NumRows() {
		return t, 0
	}
	return t.SelectRows(keep), t.NumRows() - len(keep)
}

// FillMissing replaces missing cells of numeric columns in place. Text columns are left alone.
// A column with no values at all is filled with 0 whatever the method. A fill value that
// overflows is a processing failure, and no column is modified in that case.
func FillMissing(t *tabular.Table, method FillMethod) error {
	fills := make(map[*tabular.Column]float64)
	for _, col := range t.NumericColumns() {
		if col.MissingCount() == 0 {
			continue
		}
		fill := fillValue(col.Numbers(), method)
		if !stats.IsFinite(fill) {
			return apperrors.ProcessingFailure(fmt.Errorf("%s of column %q is not a finite number", method, col.Name))
		}
		fills[col] = fill
	}

	for col, fill := range fills {
		for i := range col.Cells {
			if col.Cells[i].Missing {
				col.Cells[i] = tabular.NumberCell(fill)
			}
		}
	}
	return nil
}

func fillValue(values []float64, method FillMethod) float64 {
	if len(values) == 0 {
		return 0
	}
	switch method {
	case FillMean:
		return stat.Mean(values, nil)
	case FillMedian:
		return stats.Median(values)
	}
	return 0
}

// rowKey encodes a row so that equal rows, and only equal rows, share a key.
func rowKey(t *tabular.Table, r int) string {
	var b strings.Builder
	for _, col := range t.Columns {
		cell := col.Cells[r]
		switch {
		case cell.Missing:
			b.WriteString("m;")
		case col.IsNumeric():
			v := cell.Number
			if v == 0 {
				v = 0 // -0 and 0 are the same value
			}
			b.WriteString("n")
			b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
			b.WriteByte(';')
		default:
			b.WriteString("t")
			b.WriteString(strconv.Itoa(len(cell.Text)))
			b.WriteByte(':')
			b.WriteString(cell.Text)
		}
	}
	return b.String()
}
