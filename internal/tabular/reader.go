package tabular

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Linh3694/frappe-erp-sub001/internal/domain"
)

var (
	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

	dateLayouts = []string{
		time.RFC3339,
		"2006-01-02",
		"2006-01-02 15:04:05",
		"2006/01/02",
		"01/02/2006",
		"02/01/2006",
		"01-02-06",
		"2-Jan-06",
	}
)

// Table is an ordered sequence of rows sharing one header row.
type Table struct {
	Headers []string
	Rows    []Row
}

// Row keeps its cells in header order together with the 1-based row number
// the cell occupied in the source file, header and skipped rows included.
type Row struct {
	Number int
	Cells  []string
}

// Cell returns the value under the given header, or "" when absent.
func (t Table) Cell(row Row, header string) string {
	for i, h := range t.Headers {
		if h == header && i < len(row.Cells) {
			return row.Cells[i]
		}
	}
	return ""
}

// ReadTable parses an uploaded spreadsheet into rows of named cells. The
// first row is the header; skipRows additional rows after it (secondary
// header or instruction rows on some templates) are discarded; fully blank
// rows are dropped. Date-like cells are canonicalized to YYYY-MM-DD.
func ReadTable(reader io.Reader, fileName string, skipRows int) (Table, error) {
	payload, err := io.ReadAll(reader)
	if err != nil {
		return Table{}, fmt.Errorf("%w: %v", domain.ErrUnreadableSource, err)
	}
	if len(payload) == 0 {
		return Table{}, fmt.Errorf("%w: file is empty", domain.ErrUnreadableSource)
	}

	var records [][]string
	switch ext := strings.ToLower(filepath.Ext(fileName)); ext {
	case ".csv":
		records, err = readCSV(payload)
	case ".xlsx":
		records, err = readExcel(payload)
	default:
		return Table{}, fmt.Errorf("%w: unsupported file format %q", domain.ErrUnreadableSource, ext)
	}
	if err != nil {
		return Table{}, err
	}

	return buildTable(records, skipRows)
}

func readCSV(payload []byte) ([][]string, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid csv: %v", domain.ErrUnreadableSource, err)
	}
	return records, nil
}

func readExcel(payload []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid xlsx: %v", domain.ErrUnreadableSource, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", domain.ErrUnreadableSource)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read sheet: %v", domain.ErrUnreadableSource, err)
	}
	return rows, nil
}

func buildTable(records [][]string, skipRows int) (Table, error) {
	if len(records) == 0 {
		return Table{}, fmt.Errorf("%w: no rows found", domain.ErrUnreadableSource)
	}
	if skipRows < 0 {
		skipRows = 0
	}

	headerRow := records[0]
	headers := make([]string, len(headerRow))
	for i, value := range headerRow {
		headers[i] = strings.TrimSpace(value)
	}

	firstData := 1 + skipRows
	var rows []Row
	for idx := firstData; idx < len(records); idx++ {
		cells := padRow(records[idx], len(headers))
		if isBlankRow(cells) {
			continue
		}
		for i, cell := range cells {
			cells[i] = canonicalizeCell(cell)
		}
		rows = append(rows, Row{Number: idx + 1, Cells: cells})
	}

	if len(rows) == 0 {
		return Table{}, domain.ErrEmptySource
	}

	return Table{Headers: headers, Rows: rows}, nil
}

func padRow(row []string, length int) []string {
	padded := make([]string, length)
	for i := 0; i < length && i < len(row); i++ {
		padded[i] = strings.TrimSpace(row[i])
	}
	return padded
}

func isBlankRow(cells []string) bool {
	for _, cell := range cells {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// canonicalizeCell rewrites date-like values to the ISO calendar date the
// record store expects; everything else passes through untouched.
func canonicalizeCell(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if ts, ok := parseDate(trimmed); ok {
		return ts.Format("2006-01-02")
	}
	return trimmed
}

func parseDate(value string) (time.Time, bool) {
	// Bare numbers are never dates; without this, codes like "20250101"
	// or serial values would be misread.
	if !strings.ContainsAny(value, "-/:TJanFebMarAprMayJunJulAugSepOctNovDec") {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// IsEmptySource reports whether the error means the file parsed fine but had
// no usable data rows.
func IsEmptySource(err error) bool {
	return errors.Is(err, domain.ErrEmptySource)
}
