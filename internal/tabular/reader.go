// Package tabular decodes uploaded CSV and XLSX files into raw tables and
// encodes cleaned records back to CSV.
package tabular

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rpattn/salesingest/internal/domain"

	"github.com/xuri/excelize/v2"
)

// Format identifies a supported source encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}
)

// FormatFromName derives the source format from a file name extension.
func FormatFromName(fileName string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// DetectHeaders returns the first non-empty record of the source. For CSV
// only the records up to the header are decoded.
func DetectHeaders(r io.Reader, format Format) ([]string, error) {
	switch format {
	case FormatCSV:
		reader := newCSVReader(r)
		for {
			record, err := reader.Read()
			if errors.Is(err, io.EOF) {
				return nil, &domain.UnreadableSourceError{Reason: "no header row"}
			}
			if err != nil {
				return nil, &domain.UnreadableSourceError{Reason: "malformed csv", Err: err}
			}
			if !isEmptyRow(record) {
				return sanitizeHeaders(record), nil
			}
		}
	case FormatXLSX:
		records, err := readExcel(r)
		if err != nil {
			return nil, err
		}
		for _, record := range records {
			if !isEmptyRow(record) {
				return sanitizeHeaders(record), nil
			}
		}
		return nil, &domain.UnreadableSourceError{Reason: "no header row"}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// ReadTable decodes the whole source. The first non-empty record is the
// header row; rows are padded or truncated to the header width and empty rows
// are skipped.
func ReadTable(r io.Reader, format Format) (domain.RawTable, error) {
	var (
		records [][]string
		err     error
	)
	switch format {
	case FormatCSV:
		records, err = newCSVReader(r).ReadAll()
		if err != nil {
			return domain.RawTable{}, &domain.UnreadableSourceError{Reason: "malformed csv", Err: err}
		}
	case FormatXLSX:
		records, err = readExcel(r)
		if err != nil {
			return domain.RawTable{}, err
		}
	default:
		return domain.RawTable{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return normalizeTable(records)
}

func newCSVReader(r io.Reader) *csv.Reader {
	buffered := bufio.NewReader(r)
	if prefix, err := buffered.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = buffered.Discard(len(byteOrderMark))
	}

	reader := csv.NewReader(buffered)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	return reader
}

func readExcel(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &domain.UnreadableSourceError{Reason: "malformed xlsx", Err: err}
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &domain.UnreadableSourceError{Reason: "workbook has no sheets"}
	}

	// Raw values keep numbers unrounded; date serials are formatted below.
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &domain.UnreadableSourceError{Reason: "failed to read rows from xlsx", Err: err}
	}
	if err := formatExcelDates(f, sheets[0], rows); err != nil {
		return nil, &domain.UnreadableSourceError{Reason: "failed to read dates from xlsx", Err: err}
	}
	return rows, nil
}

// excelDateLayout is used for date-formatted numeric cells.
const excelDateLayout = "2006-01-02 15:04:05"

// formatExcelDates rewrites numeric cells carrying a date number format as
// ISO timestamps.
func formatExcelDates(f *excelize.File, sheet string, rows [][]string) error {
	props, err := f.GetWorkbookProps()
	if err != nil {
		return err
	}
	date1904 := props.Date1904 != nil && *props.Date1904

	dateStyles := make(map[int]bool)
	for i, row := range rows {
		for j, value := range row {
			if value == "" {
				continue
			}
			serial, err := strconv.ParseFloat(value, 64)
			if err != nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return err
			}
			cellType, err := f.GetCellType(sheet, cell)
			if err != nil {
				return err
			}
			if cellType != excelize.CellTypeUnset && cellType != excelize.CellTypeNumber {
				continue
			}
			styleID, err := f.GetCellStyle(sheet, cell)
			if err != nil {
				return err
			}
			isDate, seen := dateStyles[styleID]
			if !seen {
				isDate = isDateStyle(f, styleID)
				dateStyles[styleID] = isDate
			}
			if !isDate {
				continue
			}
			ts, err := excelize.ExcelDateToTime(serial, date1904)
			if err != nil {
				continue
			}
			row[j] = ts.Format(excelDateLayout)
		}
	}
	return nil
}

func isDateStyle(f *excelize.File, styleID int) bool {
	style, err := f.GetStyle(styleID)
	if err != nil || style == nil {
		return false
	}
	if style.CustomNumFmt != nil {
		return isDateFormatCode(*style.CustomNumFmt)
	}
	switch id := style.NumFmt; {
	case id >= 14 && id <= 22, id >= 27 && id <= 36, id >= 45 && id <= 47, id >= 50 && id <= 58:
		return true
	}
	return false
}

// isDateFormatCode reports whether a custom number format renders a date or
// time. Quoted literals, escapes and bracketed sections are ignored.
func isDateFormatCode(code string) bool {
	var (
		b       strings.Builder
		quoted  bool
		bracket bool
		escaped bool
	)
	for _, r := range strings.ToLower(code) {
		switch {
		case escaped:
			escaped = false
		case quoted:
			quoted = r != '"'
		case bracket:
			bracket = r != ']'
		case r == '\\':
			escaped = true
		case r == '"':
			quoted = true
		case r == '[':
			bracket = true
		default:
			b.WriteRune(r)
		}
	}
	return strings.ContainsAny(b.String(), "ydhs")
}

func normalizeTable(records [][]string) (domain.RawTable, error) {
	var (
		headers []string
		rows    []map[string]string
	)
	for _, record := range records {
		if isEmptyRow(record) {
			continue
		}
		if headers == nil {
			headers = sanitizeHeaders(record)
			continue
		}

		padded := padRow(record, len(headers))
		row := make(map[string]string, len(headers))
		for i, h := range headers {
			row[h] = padded[i]
		}
		rows = append(rows, row)
	}

	if headers == nil {
		return domain.RawTable{}, &domain.UnreadableSourceError{Reason: "no header row"}
	}
	return domain.RawTable{Headers: headers, Rows: rows}, nil
}

// sanitizeHeaders trims header names, names blank headers by position and
// suffixes repeated names so every header is a unique row key. A generated
// name never takes one that appears literally in the header row.
func sanitizeHeaders(raw []string) []string {
	names := make([]string, len(raw))
	taken := make(map[string]bool, len(raw))
	for idx, value := range raw {
		name := strings.TrimSpace(value)
		if name == "" {
			name = fmt.Sprintf("column_%d", idx+1)
		}
		names[idx] = name
		taken[name] = true
	}

	headers := make([]string, len(raw))
	used := make(map[string]bool, len(raw))
	for idx, name := range names {
		if used[name] {
			base := name
			for n := 2; ; n++ {
				name = fmt.Sprintf("%s_%d", base, n)
				if !used[name] && !taken[name] {
					break
				}
			}
		}
		used[name] = true
		headers[idx] = name
	}

	return headers
}

func padRow(row []string, length int) []string {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]string, length)
	copy(padded, row)
	return padded
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
