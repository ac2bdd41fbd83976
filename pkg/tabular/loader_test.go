package tabular

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ekaya-inc/tabula/pkg/apperrors"
)

const sampleCSV = "id,value,text_column\n1,10.5,jr\n2,20.3,sss\n3,15.7,ssw2\n4,,346374\n"

func TestLoad_CSVWithHeader(t *testing.T) {
	table, err := Load(strings.NewReader(sampleCSV), CSV)
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "value", "text_column"}, table.ColumnNames())
	assert.Equal(t, [2]int{4, 3}, table.Shape())

	id, ok := table.Column("id")
	require.True(t, ok)
	assert.Equal(t, KindNumeric, id.Kind)
	assert.Equal(t, []float64{1, 2, 3, 4}, id.Numbers())

	value, ok := table.Column("value")
	require.True(t, ok)
	assert.Equal(t, KindNumeric, value.Kind)
	assert.Equal(t, []float64{10.5, 20.3, 15.7}, value.Numbers())
	assert.True(t, value.Cells[3].Missing)
	assert.Equal(t, 1, value.MissingCount())

	text, ok := table.Column("text_column")
	require.True(t, ok)
	assert.Equal(t, KindText, text.Kind)
	assert.Equal(t, "346374", text.Cells[3].Text)
	assert.Nil(t, text.Numbers())
}

func TestLoad_CSVHeaderless(t *testing.T) {
	table, err := Load(strings.NewReader("1,a,2.5\n2,b,3.5\n"), CSV)
	require.NoError(t, err)

	assert.Equal(t, []string{"Column 0", "Column 1", "Column 2"}, table.ColumnNames())
	assert.Equal(t, 2, table.NumRows())
	assert.Equal(t, KindNumeric, table.Columns[0].Kind)
	assert.Equal(t, KindText, table.Columns[1].Kind)
}

func TestLoad_FirstRowWithMissingCellIsData(t *testing.T) {
	table, err := Load(strings.NewReader("a,,c\nd,e,f\n"), CSV)
	require.NoError(t, err)

	assert.Equal(t, []string{"Column 0", "Column 1", "Column 2"}, table.ColumnNames())
	assert.Equal(t, 2, table.NumRows())
}

func TestLoad_AllTextFirstDataRowIsTakenAsHeader(t *testing.T) {
	// Known limitation of the header heuristic.
	table, err := Load(strings.NewReader("apple,red\nbanana,yellow\n"), CSV)
	require.NoError(t, err)

	assert.Equal(t, []string{"apple", "red"}, table.ColumnNames())
	assert.Equal(t, 1, table.NumRows())
}

func TestLoad_DuplicateHeaderNamesAreDisambiguated(t *testing.T) {
	table, err := Load(strings.NewReader("a,a,b,a\n1,2,3,4\n"), CSV)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "a.1", "b", "a.2"}, table.ColumnNames())
}

func TestLoad_ShortRowsArePadded(t *testing.T) {
	table, err := Load(strings.NewReader("x,y\n1,2\n3\n"), CSV)
	require.NoError(t, err)

	y, _ := table.Column("y")
	assert.True(t, y.Cells[1].Missing)
}

func TestLoad_DelimiterOnlyLinesAreMissingRows(t *testing.T) {
	table, err := Load(strings.NewReader("x,y\n1,a\n1,a\n,\n,\n"), CSV)
	require.NoError(t, err)

	assert.Equal(t, [2]int{4, 2}, table.Shape())
	assert.Equal(t, map[string]int{"x": 2, "y": 2}, table.MissingCounts())
	x, _ := table.Column("x")
	assert.Equal(t, KindNumeric, x.Kind)
}

func TestLoad_BlankLinesAreSkipped(t *testing.T) {
	table, err := Load(strings.NewReader("x,y\n1,2\n\n3,4\n\n"), CSV)
	require.NoError(t, err)

	assert.Equal(t, 2, table.NumRows())
}

func TestLoad_NATokens(t *testing.T) {
	table, err := Load(strings.NewReader("v\n1\n#N/A N/A\n-1.#IND\n-1.#QNAN\nNULL\n<NA>\n"), CSV)
	require.NoError(t, err)

	v, _ := table.Column("v")
	assert.Equal(t, KindNumeric, v.Kind)
	assert.Equal(t, 5, v.MissingCount())
}

func TestLoad_NATokensMatchExactly(t *testing.T) {
	table, err := Load(strings.NewReader("v,w\n1,1\n NA,2\n3, \n"), CSV)
	require.NoError(t, err)

	v, _ := table.Column("v")
	assert.Equal(t, KindText, v.Kind)
	assert.Equal(t, " NA", v.Cells[1].Text)

	w, _ := table.Column("w")
	assert.Equal(t, KindText, w.Kind)
	assert.Zero(t, w.MissingCount())
}

func TestLoad_CSVStripsBOM(t *testing.T) {
	table, err := Load(strings.NewReader("\ufeffx,y\n1,2\n"), CSV)
	require.NoError(t, err)

	assert.Equal(t, []string{"x", "y"}, table.ColumnNames())
}

func TestLoad_CorruptData(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty file", ""},
		{"only blank lines", "\n\n"},
		{"row wider than header", "a,b\n1,2,3\n"},
		{"bare quote", "a,b\n1,x\"y\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.input), CSV)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrCorruptData)
			assert.ErrorIs(t, err, apperrors.ErrProcessingFailure)
		})
	}
}

func TestLoad_UnsupportedFormat(t *testing.T) {
	_, err := Load(strings.NewReader(sampleCSV), FileType("txt"))
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedFormat)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestLoad_XLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	rows := [][]any{
		{"id", "value", "text_column"},
		{1, 10.5, "jr"},
		{2, 20.3, "sss"},
		{3, 15.7, "ssw2"},
		{4, nil, "346374"},
	}
	for i, row := range rows {
		axis, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", axis, &row))
	}
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)

	table, err := Load(&buf, XLSX)
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "value", "text_column"}, table.ColumnNames())
	value, _ := table.Column("value")
	assert.Equal(t, KindNumeric, value.Kind)
	assert.Equal(t, []float64{10.5, 20.3, 15.7}, value.Numbers())
	assert.True(t, value.Cells[3].Missing)
}

func TestLoad_XLSXSkipsEmptySheetRows(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"x", "y"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{1, 2}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A4", &[]any{3, 4}))
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)

	table, err := Load(&buf, XLSX)
	require.NoError(t, err)

	assert.Equal(t, [2]int{2, 2}, table.Shape())
	x, _ := table.Column("x")
	assert.Equal(t, []float64{1, 3}, x.Numbers())
}

func TestLoad_XLSXCorrupt(t *testing.T) {
	_, err := Load(strings.NewReader("definitely not a zip archive"), XLSX)
	assert.ErrorIs(t, err, apperrors.ErrCorruptData)
}

func TestParseFileType(t *testing.T) {
	tests := []struct {
		in      string
		want    FileType
		wantErr bool
	}{
		{"csv", CSV, false},
		{".CSV", CSV, false},
		{"XlSx", XLSX, false},
		{"xls", "", true},
		{"txt", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFileType(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFileTypeFromName(t *testing.T) {
	ft, err := FileTypeFromName("Report.Final.XLSX")
	require.NoError(t, err)
	assert.Equal(t, XLSX, ft)

	_, err = FileTypeFromName("noextension")
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedFormat)

	_, err = FileTypeFromName("trailingdot.")
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedFormat)
}
