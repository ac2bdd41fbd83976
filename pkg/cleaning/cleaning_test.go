package cleaning

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/tabula/pkg/apperrors"
	"github.com/ekaya-inc/tabula/pkg/models"
	"github.com/ekaya-inc/tabula/pkg/tabular"
)

const scenarioCSV = "id,value,text_column\n1,10.5,jr\n2,20.3,sss\n3,15.7,ssw2\n4,,346374\n"

func load(t *testing.T, csv string) *tabular.Table {
	t.Helper()
	table, err := tabular.Load(strings.NewReader(csv), tabular.CSV)
	require.NoError(t, err)
	return table
}

func TestClean_ScenarioMean(t *testing.T) {
	table := load(t, scenarioCSV)

	cleaned, result, err := Clean(table, DefaultOptions())
	require.NoError(t, err)

	value, _ := cleaned.Column("value")
	assert.False(t, value.Cells[3].Missing)
	assert.InDelta(t, 15.5, value.Cells[3].Number, 1e-9)
	assert.Equal(t, 0, result.DuplicatesRemoved)

	assert.Equal(t, map[string]int{"id": 0, "value": 1, "text_column": 0}, result.MissingValuesFilled.Before)
	assert.Equal(t, map[string]int{"id": 0, "value": 0, "text_column": 0}, result.MissingValuesFilled.After)
	assert.Equal(t, "mean", result.MissingValuesFilled.Method)

	report := result.CleaningReport
	assert.Equal(t, [2]int{4, 3}, report.OriginalShape)
	assert.Equal(t, [2]int{4, 3}, report.CleanedShape)
	assert.Equal(t, []string{models.ActionDuplicatesDropped, models.ActionMissingValuesFilled}, report.ActionsPerformed)

	original, _ := table.Column("value")
	assert.True(t, original.Cells[3].Missing, "input table is not modified")
}

func TestClean_FillMethods(t *testing.T) {
	tests := []struct {
		method FillMethod
		want   float64
	}{
		{FillMean, 4},
		{FillMedian, 2},
		{FillZero, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.method), func(t *testing.T) {
			table := load(t, "x,label\n1,a\n2,b\n9,c\n,d\n")

			cleaned, result, err := Clean(table, Options{HandleDuplicates: DuplicatesKeep, FillMissing: tt.method})
			require.NoError(t, err)

			x, _ := cleaned.Column("x")
			assert.Equal(t, tt.want, x.Cells[3].Number)
			assert.Equal(t, string(tt.method), result.MissingValuesFilled.Method)
			assert.Equal(t, []string{models.ActionMissingValuesFilled}, result.CleaningReport.ActionsPerformed)
		})
	}
}

func TestClean_DropsDuplicatesKeepingFirst(t *testing.T) {
	table := load(t, "a,b\n1,x\n2,y\n1,x\n,z\n,z\n2,y\n3,x\n")

	cleaned, result, err := Clean(table, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 3, result.DuplicatesRemoved)
	assert.Equal(t, [2]int{7, 2}, result.CleaningReport.OriginalShape)
	assert.Equal(t, [2]int{4, 2}, result.CleaningReport.CleanedShape)

	b, _ := cleaned.Column("b")
	var order []string
	for _, c := range b.Cells {
		order = append(order, c.Text)
	}
	assert.Equal(t, []string{"x", "y", "z", "x"}, order)
}

func TestClean_KeepLeavesDuplicates(t *testing.T) {
	table := load(t, "a,b\n1,x\n1,x\n")

	cleaned, result, err := Clean(table, Options{HandleDuplicates: DuplicatesKeep, FillMissing: FillZero})
	require.NoError(t, err)

	assert.Equal(t, 0, result.DuplicatesRemoved)
	assert.Equal(t, 2, cleaned.NumRows())
}

func TestClean_TextColumnsAreNotImputed(t *testing.T) {
	table := load(t, "n,s\n1,a\n2,NA\n,c\n")

	cleaned, result, err := Clean(table, Options{HandleDuplicates: DuplicatesKeep, FillMissing: FillZero})
	require.NoError(t, err)

	s, _ := cleaned.Column("s")
	assert.True(t, s.Cells[1].Missing)
	assert.Equal(t, 1, result.MissingValuesFilled.After["s"])
	assert.Equal(t, 0, result.MissingValuesFilled.After["n"])
}

func TestClean_AllMissingColumnFallsBackToZero(t *testing.T) {
	table := load(t, "n,empty\n1,\n2,\n")

	cleaned, _, err := Clean(table, DefaultOptions())
	require.NoError(t, err)

	empty, _ := cleaned.Column("empty")
	for _, c := range empty.Cells {
		assert.Equal(t, tabular.NumberCell(0), c)
	}
}

func TestClean_DelimiterOnlyRowsCountAsMissing(t *testing.T) {
	table := load(t, "x,y\n1,a\n1,a\n,\n,\n")

	cleaned, result, err := Clean(table, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 2, result.DuplicatesRemoved)
	assert.Equal(t, map[string]int{"x": 1, "y": 1}, result.MissingValuesFilled.Before)
	assert.Equal(t, map[string]int{"x": 0, "y": 1}, result.MissingValuesFilled.After)
	assert.Equal(t, [2]int{4, 2}, result.CleaningReport.OriginalShape)
	assert.Equal(t, [2]int{2, 2}, result.CleaningReport.CleanedShape)

	x, _ := cleaned.Column("x")
	assert.Equal(t, []float64{1, 1}, x.Numbers())
}

func TestClean_SignedZeroRowsAreDuplicates(t *testing.T) {
	table := load(t, "a,b\n0,1\n-0,1\n")

	_, result, err := Clean(table, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 1, result.DuplicatesRemoved)
}

func TestClean_OverflowingFillValueFails(t *testing.T) {
	table := load(t, "a,b\n1e308,x\n1e308,y\n,z\n")

	_, _, err := Clean(table, Options{HandleDuplicates: DuplicatesKeep, FillMissing: FillMean})
	assert.ErrorIs(t, err, apperrors.ErrProcessingFailure)
	a, _ := table.Column("a")
	assert.True(t, a.Cells[2].Missing, "source table is untouched")

	cleaned, _, err := Clean(table, Options{HandleDuplicates: DuplicatesKeep, FillMissing: FillMedian})
	require.NoError(t, err)
	a, _ = cleaned.Column("a")
	assert.Equal(t, 1e308, a.Cells[2].Number)
}

func TestClean_InvalidOptions(t *testing.T) {
	table := load(t, scenarioCSV)

	_, _, err := Clean(table, Options{HandleDuplicates: "maybe", FillMissing: FillMean})
	assert.ErrorIs(t, err, apperrors.ErrInvalidParameter)

	_, _, err = Clean(table, Options{HandleDuplicates: DuplicatesDrop, FillMissing: "mode"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidParameter)
}

func TestClean_RoundTripHasNoMissingNumericValues(t *testing.T) {
	for _, ft := range []tabular.FileType{tabular.CSV, tabular.XLSX} {
		t.Run(string(ft), func(t *testing.T) {
			table := load(t, "a,b,c\n1,,x\n1,,x\n,5,y\n4,6,\n")

			cleaned, _, err := Clean(table, DefaultOptions())
			require.NoError(t, err)

			data, err := tabular.Encode(cleaned, ft)
			require.NoError(t, err)
			reloaded, err := tabular.Load(bytes.NewReader(data), ft)
			require.NoError(t, err)

			assert.LessOrEqual(t, reloaded.NumRows(), table.NumRows())
			for _, col := range reloaded.NumericColumns() {
				assert.Zero(t, col.MissingCount(), col.Name)
			}
		})
	}
}

func TestParseOptions(t *testing.T) {
	opts, err := ParseOptions("", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions(), opts)

	opts, err = ParseOptions("keep", "median")
	require.NoError(t, err)
	assert.Equal(t, Options{HandleDuplicates: DuplicatesKeep, FillMissing: FillMedian}, opts)

	_, err = ParseOptions("remove", "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidParameter)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = ParseOptions("", "average")
	assert.ErrorIs(t, err, apperrors.ErrInvalidParameter)
}
