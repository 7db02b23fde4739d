package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	commonerrors "passos-predictor/internal/common/errors"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Supported reports whether filename has an accepted extension.
func Supported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".xlsx", ".xls":
		return true
	}
	return false
}

// Parse reads an upload by extension. Unsupported extensions yield
// UNSUPPORTED_FILE_TYPE; unreadable content yields FILE_PARSE_FAILED.
func Parse(filename string, r io.Reader) (*Table, error) {
	var (
		t   *Table
		err error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		t, err = ParseCSV(r)
	case ".xlsx", ".xls":
		t, err = parseWorkbook(r)
	default:
		return nil, commonerrors.NewUnsupportedFileTypeError(filename)
	}
	if err != nil {
		return nil, commonerrors.NewFileParseFailedError(filename, err)
	}
	return t, nil
}

// ParseCSV reads a header row followed by data rows. Ragged rows are
// tolerated and a leading UTF-8 BOM is dropped.
func ParseCSV(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty file")
	}
	if err != nil {
		return nil, err
	}

	t := &Table{Columns: normalizeHeader(header)}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if blank(rec) {
			continue
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// parseWorkbook picks the reader by content rather than extension, since
// legacy .xls files are often renamed .xlsx and the reverse.
func parseWorkbook(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if IsCompoundFile(data) {
		return ParseLegacyWorkbook(data)
	}
	return ParseSpreadsheet(bytes.NewReader(data))
}

// ParseSpreadsheet reads the first worksheet of an OOXML workbook.
func ParseSpreadsheet(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	return tableFromRows(sheets[0], rows)
}

// tableFromRows takes the first row as header and drops blank data rows.
func tableFromRows(sheet string, rows [][]string) (*Table, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}

	t := &Table{Columns: normalizeHeader(rows[0])}
	for _, rec := range rows[1:] {
		if blank(rec) {
			continue
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = strings.TrimSpace(h)
	}
	return out
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
