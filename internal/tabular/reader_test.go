package tabular

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/Linh3694/frappe-erp-sub001/internal/domain"
)

func TestReadTableSkipsSecondaryHeaderAndBlankRows(t *testing.T) {
	data := strings.Join([]string{
		"student_name,student_code",
		"(điền họ tên),(điền mã)",
		"Nguyễn Văn An,WS001",
		",",
		"Trần Thị Bình,WS002",
	}, "\n")

	table, err := ReadTable(strings.NewReader(data), "students.csv", 1)
	if err != nil {
		t.Fatalf("ReadTable returned error: %v", err)
	}

	if len(table.Rows) != 2 {
		t.Fatalf("expected 2 data rows after skip and blank drop, got %d", len(table.Rows))
	}
	if table.Rows[0].Number != 3 || table.Rows[1].Number != 5 {
		t.Fatalf("unexpected origin row numbers: %d, %d", table.Rows[0].Number, table.Rows[1].Number)
	}
	if got := table.Cell(table.Rows[1], "student_code"); got != "WS002" {
		t.Fatalf("expected WS002, got %q", got)
	}
}

func TestReadTableEmptySource(t *testing.T) {
	data := "student_name,student_code\n,\n"
	_, err := ReadTable(strings.NewReader(data), "students.csv", 0)
	if !errors.Is(err, domain.ErrEmptySource) {
		t.Fatalf("expected ErrEmptySource, got %v", err)
	}
}

func TestReadTableUnreadableSource(t *testing.T) {
	_, err := ReadTable(strings.NewReader("not an xlsx"), "students.xlsx", 0)
	if !errors.Is(err, domain.ErrUnreadableSource) {
		t.Fatalf("expected ErrUnreadableSource, got %v", err)
	}

	_, err = ReadTable(strings.NewReader("payload"), "students.pdf", 0)
	if !errors.Is(err, domain.ErrUnreadableSource) {
		t.Fatalf("expected ErrUnreadableSource for unsupported extension, got %v", err)
	}
}

func TestReadTableCanonicalizesDates(t *testing.T) {
	data := "student_name,dob\nAn,2015/09/01\nBình,01/09/2015\n"
	table, err := ReadTable(strings.NewReader(data), "students.csv", 0)
	if err != nil {
		t.Fatalf("ReadTable returned error: %v", err)
	}
	if got := table.Cell(table.Rows[0], "dob"); got != "2015-09-01" {
		t.Fatalf("expected 2015-09-01, got %q", got)
	}
	// Codes without separators must not be misread as dates.
	data = "student_name,student_code\nAn,20150901\n"
	table, err = ReadTable(strings.NewReader(data), "students.csv", 0)
	if err != nil {
		t.Fatalf("ReadTable returned error: %v", err)
	}
	if got := table.Cell(table.Rows[0], "student_code"); got != "20150901" {
		t.Fatalf("expected raw code, got %q", got)
	}
}

func TestReadTableXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	_ = f.SetSheetRow(sheet, "A1", &[]any{"Tên môn học", "Cấp học"})
	_ = f.SetSheetRow(sheet, "A2", &[]any{"Toán", "Tiểu học"})
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("failed to build workbook: %v", err)
	}

	table, err := ReadTable(&buf, "subjects.xlsx", 0)
	if err != nil {
		t.Fatalf("ReadTable returned error: %v", err)
	}
	if len(table.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(table.Rows))
	}
	if got := table.Cell(table.Rows[0], "Cấp học"); got != "Tiểu học" {
		t.Fatalf("expected Tiểu học, got %q", got)
	}
}
