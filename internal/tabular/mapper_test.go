package tabular

import (
	"testing"

	"github.com/Linh3694/frappe-erp-sub001/internal/domain"
)

func TestBuildMappingFromSchemaAndOverrides(t *testing.T) {
	schema := domain.Registry["subjects"]
	headers := []string{"Tên môn học", "Cấp học", "Curriculum", "Ghi chú"}

	mapping := BuildMapping(schema, headers)

	if mapping["Tên môn học"] != "title" {
		t.Fatalf("label header not mapped: %+v", mapping)
	}
	if mapping["Cấp học"] != "education_stage" {
		t.Fatalf("diacritic label not mapped: %+v", mapping)
	}
	// Override table: a header literally named "curriculum" must land on the
	// free-text curriculum column, not be dropped.
	if mapping["Curriculum"] != "curriculum" {
		t.Fatalf("override header not mapped: %+v", mapping)
	}
	// Unknown headers pass through under their original name.
	if mapping["Ghi chú"] != "Ghi chú" {
		t.Fatalf("unknown header should pass through: %+v", mapping)
	}
}

func TestBuildMappingMachineNames(t *testing.T) {
	schema := domain.Registry["students"]
	mapping := BuildMapping(schema, []string{"student_code", "Họ tên", "NGÀY SINH"})

	if mapping["student_code"] != "student_code" {
		t.Fatalf("machine name not mapped: %+v", mapping)
	}
	if mapping["Họ tên"] != "student_name" {
		t.Fatalf("label not mapped: %+v", mapping)
	}
	if mapping["NGÀY SINH"] != "dob" {
		t.Fatalf("case-folded label not mapped: %+v", mapping)
	}
}

func TestMapRowBlankCellsBecomeNil(t *testing.T) {
	schema := domain.Registry["students"]
	table := Table{
		Headers: []string{"Họ tên", "Mã học sinh", "Ngày sinh"},
		Rows:    []Row{{Number: 2, Cells: []string{"Nguyễn Văn An", "WS001", ""}}},
	}
	mapping := BuildMapping(schema, table.Headers)

	mapped := MapRow(table, table.Rows[0], mapping)

	if mapped["student_name"] != "Nguyễn Văn An" {
		t.Fatalf("unexpected mapped row: %+v", mapped)
	}
	if value, ok := mapped["dob"]; !ok || value != nil {
		t.Fatalf("blank cell should map to nil, got %+v", mapped)
	}
}
