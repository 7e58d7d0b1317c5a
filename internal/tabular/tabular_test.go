package tabular

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rpattn/salesingest/internal/cleaning"
	"github.com/rpattn/salesingest/internal/domain"

	"github.com/xuri/excelize/v2"
)

func TestFormatFromName(t *testing.T) {
	if format, err := FormatFromName("Sales.CSV"); err != nil || format != FormatCSV {
		t.Fatalf("expected csv format, got %q (%v)", format, err)
	}
	if format, err := FormatFromName("book.xlsx"); err != nil || format != FormatXLSX {
		t.Fatalf("expected xlsx format, got %q (%v)", format, err)
	}
	if _, err := FormatFromName("notes.txt"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestDetectHeadersSkipsLeadingBlankRowsAndBOM(t *testing.T) {
	data := "\xEF\xBB\xBF,,\n order_no , Item Name,\n1,Pen,x\n"
	headers, err := DetectHeaders(strings.NewReader(data), FormatCSV)
	if err != nil {
		t.Fatalf("detect returned error: %v", err)
	}
	want := []string{"order_no", "Item Name", "column_3"}
	if !reflect.DeepEqual(headers, want) {
		t.Fatalf("expected %v, got %v", want, headers)
	}
}

func TestDetectHeadersStopsAtHeaderRow(t *testing.T) {
	// A malformed body row must not be decoded while detecting headers.
	data := "a,b\n\"unterminated,1\n"
	headers, err := DetectHeaders(strings.NewReader(data), FormatCSV)
	if err != nil {
		t.Fatalf("detect returned error: %v", err)
	}
	if !reflect.DeepEqual(headers, []string{"a", "b"}) {
		t.Fatalf("unexpected headers: %v", headers)
	}
}

func TestDetectHeadersEmptySource(t *testing.T) {
	_, err := DetectHeaders(strings.NewReader("\n\n"), FormatCSV)
	var unreadable *domain.UnreadableSourceError
	if !errors.As(err, &unreadable) {
		t.Fatalf("expected UnreadableSourceError, got %v", err)
	}
}

func TestReadTablePadsRowsAndSkipsEmpty(t *testing.T) {
	data := "id,qty,qty\n1,2\n,,\n2,3,4,5\n"
	table, err := ReadTable(strings.NewReader(data), FormatCSV)
	if err != nil {
		t.Fatalf("read returned error: %v", err)
	}
	if !reflect.DeepEqual(table.Headers, []string{"id", "qty", "qty_2"}) {
		t.Fatalf("unexpected headers: %v", table.Headers)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(table.Rows))
	}
	if table.Rows[0]["qty_2"] != "" || table.Rows[0]["qty"] != "2" {
		t.Fatalf("unexpected first row: %v", table.Rows[0])
	}
	if table.Rows[1]["qty_2"] != "4" || len(table.Rows[1]) != 3 {
		t.Fatalf("unexpected second row: %v", table.Rows[1])
	}
}

func TestSanitizeHeadersAvoidsLiteralNames(t *testing.T) {
	cases := []struct {
		raw  []string
		want []string
	}{
		{[]string{"Qty", "Qty", "Qty_2"}, []string{"Qty", "Qty_3", "Qty_2"}},
		{[]string{"Qty", "Qty_2", "Qty"}, []string{"Qty", "Qty_2", "Qty_3"}},
		{[]string{"", "column_1", "a", "a"}, []string{"column_1", "column_1_2", "a", "a_2"}},
	}
	for _, tc := range cases {
		got := sanitizeHeaders(tc.raw)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("sanitizeHeaders(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestReadTableMalformedCSV(t *testing.T) {
	_, err := ReadTable(strings.NewReader("a,b\n\"broken,1\n"), FormatCSV)
	var unreadable *domain.UnreadableSourceError
	if !errors.As(err, &unreadable) {
		t.Fatalf("expected UnreadableSourceError, got %v", err)
	}
}

func TestReadTableXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &[]any{"Order ID", "City"}); err != nil {
		t.Fatalf("failed to write header: %v", err)
	}
	if err := f.SetSheetRow(sheet, "A2", &[]any{"A1", "Pune"}); err != nil {
		t.Fatalf("failed to write row: %v", err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("failed to encode workbook: %v", err)
	}

	headers, err := DetectHeaders(bytes.NewReader(buf.Bytes()), FormatXLSX)
	if err != nil {
		t.Fatalf("detect returned error: %v", err)
	}
	if !reflect.DeepEqual(headers, []string{"Order ID", "City"}) {
		t.Fatalf("unexpected headers: %v", headers)
	}

	table, err := ReadTable(bytes.NewReader(buf.Bytes()), FormatXLSX)
	if err != nil {
		t.Fatalf("read returned error: %v", err)
	}
	if len(table.Rows) != 1 || table.Rows[0]["City"] != "Pune" {
		t.Fatalf("unexpected rows: %v", table.Rows)
	}
}

func TestReadTableXLSXFormatsDateCells(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &[]any{"Order No", "Date", "SKU", "Qty", "Price", "Payment", "Shipped"}); err != nil {
		t.Fatalf("failed to write header: %v", err)
	}
	if err := f.SetSheetRow(sheet, "A2", &[]any{"A1", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), "P-1", 2, 9.99, "UPI", 45366.5}); err != nil {
		t.Fatalf("failed to write row: %v", err)
	}
	custom := "dd/mm/yyyy hh:mm"
	styleID, err := f.NewStyle(&excelize.Style{CustomNumFmt: &custom})
	if err != nil {
		t.Fatalf("failed to create style: %v", err)
	}
	if err := f.SetCellStyle(sheet, "G2", "G2", styleID); err != nil {
		t.Fatalf("failed to apply style: %v", err)
	}
	priceStyle, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		t.Fatalf("failed to create style: %v", err)
	}
	if err := f.SetCellStyle(sheet, "E2", "E2", priceStyle); err != nil {
		t.Fatalf("failed to apply style: %v", err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("failed to encode workbook: %v", err)
	}

	table, err := ReadTable(bytes.NewReader(buf.Bytes()), FormatXLSX)
	if err != nil {
		t.Fatalf("read returned error: %v", err)
	}
	if len(table.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(table.Rows))
	}
	row := table.Rows[0]
	want := map[string]string{
		"Date":    "2024-03-15 00:00:00",
		"Shipped": "2024-03-15 12:00:00",
		"Price":   "9.99",
		"Qty":     "2",
		"SKU":     "P-1",
	}
	for header, value := range want {
		if row[header] != value {
			t.Fatalf("expected %s=%q, got %q", header, value, row[header])
		}
	}

	mapping := domain.ColumnMapping{
		domain.ColumnOrderID:     "Order No",
		domain.ColumnOrderDate:   "Date",
		domain.ColumnProductID:   "SKU",
		domain.ColumnQuantity:    "Qty",
		domain.ColumnUnitPrice:   "Price",
		domain.ColumnPaymentMode: "Payment",
	}
	result, err := cleaning.NewTransformer().Clean(table, mapping)
	if err != nil {
		t.Fatalf("clean returned error: %v", err)
	}
	if len(result.Records) != 1 {
		t.Fatalf("expected the xlsx row to survive cleaning, got %+v", result.Stats)
	}
	if got := result.Records[0].OrderDate; !got.Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected order date: %v", got)
	}
}

func TestIsDateFormatCode(t *testing.T) {
	cases := map[string]bool{
		"dd/mm/yyyy":   true,
		"[h]:mm:ss":    true,
		"0.00":         false,
		`#,##0 "days"`: false,
		"[Red]0.00":    false,
		`0.00\h`:       false,
		"mmm-yy":       true,
	}
	for code, want := range cases {
		if got := isDateFormatCode(code); got != want {
			t.Errorf("isDateFormatCode(%q) = %v, want %v", code, got, want)
		}
	}
}

func TestReadTableMalformedXLSX(t *testing.T) {
	_, err := ReadTable(strings.NewReader("not a workbook"), FormatXLSX)
	var unreadable *domain.UnreadableSourceError
	if !errors.As(err, &unreadable) {
		t.Fatalf("expected UnreadableSourceError, got %v", err)
	}
}

func TestWriteCSV(t *testing.T) {
	records := []domain.SalesRecord{{
		OrderID:      "A1",
		OrderDate:    time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
		ProductID:    "P1",
		Quantity:     2,
		UnitPrice:    12.5,
		TotalAmount:  25,
		PaymentMode:  "UPI",
		ProductName:  "Pen, blue",
		Category:     domain.UnknownValue,
		SalesChannel: "Online",
		State:        "MH",
		City:         "Pune",
	}}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, records); err != nil {
		t.Fatalf("write returned error: %v", err)
	}
	want := strings.Join(CleanedHeaders, ",") + "\n" +
		"A1,2024-03-01 09:30:00,P1,2,12.5,25,UPI,\"Pen, blue\",Unknown,Online,MH,Pune\n"
	if buf.String() != want {
		t.Fatalf("unexpected csv:\n%s", buf.String())
	}
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatalf("write returned error: %v", err)
	}
	if buf.String() != strings.Join(CleanedHeaders, ",")+"\n" {
		t.Fatalf("expected header only, got %q", buf.String())
	}
}
