package tabular

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"strconv"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func readCSV(r io.Reader) ([][]string, error) {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	return reader.ReadAll()
}

func writeCSV(w io.Writer, t *Table) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(t.ColumnNames()); err != nil {
		return err
	}

	record := make([]string, t.NumCols())
	for r := 0; r < t.NumRows(); r++ {
		for c, col := range t.Columns {
			record[c] = formatCell(col, col.Cells[r])
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatCell(col *Column, cell Cell) string {
	switch {
	case cell.Missing:
		return ""
	case col.IsNumeric():
		return strconv.FormatFloat(cell.Number, 'f', -1, 64)
	default:
		return cell.Text
	}
}
