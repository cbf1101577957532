package tabular

import (
	"github.com/Linh3694/frappe-erp-sub001/internal/domain"
	"github.com/Linh3694/frappe-erp-sub001/internal/textnorm"
)

// headerOverrides injects template header spellings that cannot be derived
// from the schema itself. Keyed by schema name, then by the alnum key of the
// observed header. Overrides win over schema-derived mappings.
var headerOverrides = map[string]map[string]string{
	"subjects": {
		"monhoc":         "title",
		"tenmon":         "title",
		"caphoc":         "education_stage",
		"stage":          "education_stage",
		"curriculum":     "curriculum",
		"chuongtrinh":    "curriculum",
		"chuongtrinhhoc": "curriculum",
	},
	"students": {
		"hovaten":     "student_name",
		"fullname":    "student_name",
		"mahs":        "student_code",
		"studentcode": "student_code",
		"ngaysinh":    "dob",
		"dateofbirth": "dob",
		"gioitinh":    "gender",
	},
	"classes": {
		"lop":        "title",
		"tenlop":     "title",
		"viettat":    "short_title",
		"shorttitle": "short_title",
		"caphoc":     "education_stage",
	},
}

// BuildMapping computes the header -> canonical field mapping for one run.
// Every schema field is reachable by the alnum key of either its machine
// name or its human label; static overrides add the spellings templates have
// accumulated over time. Unknown headers map to themselves so unexpected
// columns stay visible in diagnostics instead of being dropped.
func BuildMapping(schema domain.TargetSchema, headers []string) map[string]string {
	byKey := make(map[string]string, len(schema.Fields)*2)
	for _, field := range schema.Fields {
		byKey[textnorm.AlnumKey(field.Name)] = field.Name
		if field.Label != "" {
			byKey[textnorm.AlnumKey(field.Label)] = field.Name
		}
	}
	for key, field := range headerOverrides[schema.Name] {
		byKey[key] = field
	}

	mapping := make(map[string]string, len(headers))
	for _, header := range headers {
		if header == "" {
			continue
		}
		if field, ok := byKey[textnorm.AlnumKey(header)]; ok {
			mapping[header] = field
		} else {
			mapping[header] = header
		}
	}
	return mapping
}

// MapRow converts one raw row into canonical field names using the mapping
// computed once per run. Blank cells become nil so update merges can tell
// "absent" apart from an explicit value.
func MapRow(table Table, row Row, mapping map[string]string) map[string]any {
	mapped := make(map[string]any, len(table.Headers))
	for i, header := range table.Headers {
		if header == "" || i >= len(row.Cells) {
			continue
		}
		field, ok := mapping[header]
		if !ok {
			field = header
		}
		if row.Cells[i] == "" {
			mapped[field] = nil
			continue
		}
		mapped[field] = row.Cells[i]
	}
	return mapped
}
