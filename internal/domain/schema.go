package domain

import "fmt"

// FieldDef describes one importable field of a target schema: its machine
// name plus the human label printed on spreadsheet templates.
type FieldDef struct {
	Name     string
	Label    string
	Required bool
}

// ReferenceField binds a free-text spreadsheet column to a canonical link
// field. The import engine resolves the free text against the candidate
// schema's records and writes the canonical id into TargetField.
type ReferenceField struct {
	// RowField is the mapped column carrying the human-entered name,
	// e.g. "education_stage" holding "Tiểu học".
	RowField string
	// TargetField receives the resolved canonical id.
	TargetField string
	// CandidateSchema names the campus-scoped record set to resolve against.
	CandidateSchema string
	// DisplayField is the candidate schema's display-name field.
	DisplayField string
	// MinSubstringLen gates the substring tier: it only fires when the
	// normalized search text is strictly longer than this.
	MinSubstringLen int
}

// TargetSchema is the static registry entry for one importable record type.
type TargetSchema struct {
	Name             string
	Fields           []FieldDef
	SystemFields     []string
	NaturalKey       []string
	ReferenceFields  []ReferenceField
	HeaderRowsToSkip int
}

// FieldNames returns the machine names of all declared fields.
func (s TargetSchema) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	return names
}

// IsSystemField reports whether a field is owned by the store (identity and
// audit columns) and must never be copied from an imported row.
func (s TargetSchema) IsSystemField(name string) bool {
	for _, f := range s.SystemFields {
		if f == name {
			return true
		}
	}
	return false
}

// systemFields are owned by the record store on every schema.
var systemFields = []string{"id", "created_at", "updated_at"}

// Registry holds the static target schema definitions. Mirrors the import
// templates of the school information system this service feeds.
var Registry = map[string]TargetSchema{
	"students": {
		Name: "students",
		Fields: []FieldDef{
			{Name: "student_name", Label: "Họ tên", Required: true},
			{Name: "student_code", Label: "Mã học sinh", Required: true},
			{Name: "dob", Label: "Ngày sinh"},
			{Name: "gender", Label: "Giới tính"},
			{Name: "campus_id", Label: "Campus"},
		},
		SystemFields: systemFields,
		NaturalKey:   []string{"student_code"},
	},
	"subjects": {
		Name: "subjects",
		Fields: []FieldDef{
			{Name: "title", Label: "Tên môn học", Required: true},
			{Name: "education_stage", Label: "Cấp học", Required: true},
			{Name: "curriculum", Label: "Chương trình"},
			{Name: "campus_id", Label: "Campus"},
		},
		SystemFields: systemFields,
		NaturalKey:   []string{"title"},
		ReferenceFields: []ReferenceField{
			{
				RowField:        "education_stage",
				TargetField:     "education_stage_id",
				CandidateSchema: "education_stages",
				DisplayField:    "title",
				MinSubstringLen: 3,
			},
			{
				RowField:        "curriculum",
				TargetField:     "curriculum_id",
				CandidateSchema: "curricula",
				DisplayField:    "title",
				MinSubstringLen: 2,
			},
		},
	},
	"classes": {
		Name: "classes",
		Fields: []FieldDef{
			{Name: "title", Label: "Tên lớp", Required: true},
			{Name: "short_title", Label: "Tên viết tắt", Required: true},
			{Name: "education_stage", Label: "Cấp học"},
			{Name: "campus_id", Label: "Campus"},
		},
		SystemFields: systemFields,
		NaturalKey:   []string{"short_title"},
		ReferenceFields: []ReferenceField{
			{
				RowField:        "education_stage",
				TargetField:     "education_stage_id",
				CandidateSchema: "education_stages",
				DisplayField:    "title",
				MinSubstringLen: 3,
			},
		},
	},
}

// SchemaByName looks a target schema up in the registry.
func SchemaByName(name string) (TargetSchema, error) {
	schema, ok := Registry[name]
	if !ok {
		return TargetSchema{}, fmt.Errorf("unknown target schema %q", name)
	}
	return schema, nil
}
