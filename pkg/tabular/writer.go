package tabular

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ekaya-inc/tabula/pkg/apperrors"
)

// Write serialises t in the given format: CSV as UTF-8 text with a header row, XLSX as
// a workbook with a single sheet.
func Write(w io.Writer, t *Table, ft FileType) error {
	switch ft {
	case CSV:
		return writeCSV(w, t)
	case XLSX:
		return writeXLSX(w, t)
	}
	return fmt.Errorf("%w: %q", apperrors.ErrUnsupportedFormat, ft)
}

// Encode is Write into a byte slice.
func Encode(t *Table, ft FileType) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, t, ft); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
