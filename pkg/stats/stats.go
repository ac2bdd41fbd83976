// Package stats computes descriptive statistics over the numeric columns of a table.
package stats

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ekaya-inc/tabula/pkg/models"
	"github.com/ekaya-inc/tabula/pkg/tabular"
)

// Compute returns mean, median, sample standard deviation, min, max and pairwise Pearson
// correlation for every numeric column of t. Missing cells are skipped per column, and
// correlations use only the rows where both columns are present. Undefined values, and
// values that overflow to ±Inf or NaN, are left out of the maps. A table without numeric
// columns yields empty maps.
func Compute(t *tabular.Table) *models.StatsResult {
	result := models.NewStatsResult()
	numeric := t.NumericColumns()

	for _, col := range numeric {
		values := col.Numbers()
		if len(values) == 0 {
			continue
		}
		setFinite(result.Mean, col.Name, stat.Mean(values, nil))
		setFinite(result.Median, col.Name, Median(values))
		setFinite(result.Min, col.Name, floats.Min(values))
		setFinite(result.Max, col.Name, floats.Max(values))
		if len(values) > 1 {
			setFinite(result.Std, col.Name, stat.StdDev(values, nil))
		}
	}

	for _, a := range numeric {
		row := map[string]float64{}
		for _, b := range numeric {
			if r, ok := Correlation(a, b); ok {
				row[b.Name] = r
			}
		}
		if len(row) > 0 {
			result.Correlation[a.Name] = row
		}
	}

	return result
}

// IsFinite reports whether v is neither NaN nor ±Inf.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func setFinite(m map[string]float64, key string, v float64) {
	if IsFinite(v) {
		m[key] = v
	}
}

// Median returns the middle value of values, averaging the two middle values when the
// count is even. values is not modified.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	// Halve first so two large values cannot overflow.
	return sorted[mid-1]/2 + sorted[mid]/2
}

// Correlation returns the Pearson coefficient of two numeric columns over the rows where
// both are present. ok is false when it is undefined: fewer than two such rows or a
// constant column.
func Correlation(a, b *tabular.Column) (r float64, ok bool) {
	x, y := pairwiseComplete(a, b)
	if len(x) < 2 {
		return 0, false
	}
	vx, vy := stat.Variance(x, nil), stat.Variance(y, nil)
	if vx == 0 || vy == 0 || !IsFinite(vx) || !IsFinite(vy) {
		return 0, false
	}
	if a == b {
		return 1, true
	}

	r = stat.Correlation(x, y, nil)
	if !IsFinite(r) {
		return 0, false
	}
	return r, true
}

func pairwiseComplete(a, b *tabular.Column) (x, y []float64) {
	n := min(len(a.Cells), len(b.Cells))
	x = make([]float64, 0, n)
	y = make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if a.Cells[i].Missing || b.Cells[i].Missing {
			continue
		}
		x = append(x, a.Cells[i].Number)
		y = append(y, b.Cells[i].Number)
	}
	return x, y
}
