package importer

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/Linh3694/frappe-erp-sub001/internal/domain"
	"github.com/Linh3694/frappe-erp-sub001/internal/tabular"
)

func subjectsFixture(t *testing.T) (domain.TargetSchema, tabular.Table, map[string]string) {
	t.Helper()
	schema, err := domain.SchemaByName("subjects")
	if err != nil {
		t.Fatalf("schema lookup: %v", err)
	}
	table := tabular.Table{
		Headers: []string{"title", "education_stage", "curriculum"},
		Rows: []tabular.Row{
			{Number: 2, Cells: []string{"Toán", "Tiểu học", ""}},
			{Number: 3, Cells: []string{"Văn", "Cao đẳng nghề", ""}},
			{Number: 4, Cells: []string{"Khoa học", "tieu hoc", ""}},
		},
	}
	mapping := tabular.BuildMapping(schema, table.Headers)
	return schema, table, mapping
}

func stageStore(stageID uuid.UUID) *stubRecordStore {
	return &stubRecordStore{
		queryAll: []domain.Record{
			{ID: stageID, Fields: map[string]any{"title": "Tiểu học"}},
		},
	}
}

func TestEngineProcessBatchIsolatesRowFailures(t *testing.T) {
	schema, table, mapping := subjectsFixture(t)
	stageID := uuid.New()
	store := stageStore(stageID)
	engine := NewEngine(store, 100)
	campusID := uuid.New()
	cache := NewCandidateCache(store, campusID)

	result := engine.ProcessBatch(context.Background(), schema, table, table.Rows, mapping, campusID, domain.ImportOptions{}, cache)

	if result.SuccessCount != 2 || result.ErrorCount != 1 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 row error, got %d", len(result.Errors))
	}
	rowErr := result.Errors[0]
	if rowErr.RowNumber != 3 {
		t.Fatalf("expected source row 3, got %d", rowErr.RowNumber)
	}
	if !strings.Contains(rowErr.Message, "education_stage") || !strings.Contains(rowErr.Message, "Cao đẳng nghề") {
		t.Fatalf("error message should name field and text: %q", rowErr.Message)
	}
	if rowErr.Data["title"] != "Văn" {
		t.Fatalf("row error should carry the mapped row data: %+v", rowErr.Data)
	}

	if len(store.created) != 2 {
		t.Fatalf("expected 2 created records, got %d", len(store.created))
	}
	for _, record := range store.created {
		if record.Fields["education_stage_id"] != stageID.String() {
			t.Fatalf("expected resolved stage id, got %+v", record.Fields)
		}
		if _, ok := record.Fields["education_stage"]; ok {
			t.Fatalf("free-text reference column must not reach the store: %+v", record.Fields)
		}
		if record.Fields["campus_id"] != campusID.String() {
			t.Fatalf("expected job campus fallback, got %+v", record.Fields)
		}
	}
}

func TestEngineDryRunWritesNothing(t *testing.T) {
	schema, table, mapping := subjectsFixture(t)
	store := stageStore(uuid.New())
	engine := NewEngine(store, 100)
	campusID := uuid.New()
	cache := NewCandidateCache(store, campusID)

	result := engine.ProcessBatch(context.Background(), schema, table, table.Rows, mapping, campusID, domain.ImportOptions{DryRun: true}, cache)

	// Validation outcome matches a real run, but nothing is written.
	if result.SuccessCount != 2 || result.ErrorCount != 1 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if len(store.created) != 0 || len(store.updated) != 0 {
		t.Fatalf("dry run must not write: created=%d updated=%d", len(store.created), len(store.updated))
	}
}

func TestEngineUpdateIfExistsMergesByNaturalKey(t *testing.T) {
	schema, table, mapping := subjectsFixture(t)
	stageID := uuid.New()
	store := stageStore(stageID)
	campusID := uuid.New()

	existing := domain.NewRecord(campusID, "subjects", map[string]any{
		"title":     "Toán",
		"room":      "B204",
		"campus_id": campusID.String(),
	})
	store.records = append(store.records, existing)

	engine := NewEngine(store, 100)
	cache := NewCandidateCache(store, campusID)

	result := engine.ProcessBatch(context.Background(), schema, table, table.Rows[:1], mapping, campusID, domain.ImportOptions{UpdateIfExists: true}, cache)
	if result.SuccessCount != 1 || result.ErrorCount != 0 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if len(store.created) != 0 {
		t.Fatalf("expected update, got %d creates", len(store.created))
	}
	if len(store.updated) != 1 {
		t.Fatalf("expected 1 update, got %d", len(store.updated))
	}
	merged := store.updated[0]
	if merged.ID != existing.ID {
		t.Fatalf("update must keep the existing identity")
	}
	if merged.Fields["room"] != "B204" {
		t.Fatalf("merge must keep fields the import did not touch: %+v", merged.Fields)
	}
	if merged.Fields["education_stage_id"] != stageID.String() {
		t.Fatalf("merge must apply the resolved reference: %+v", merged.Fields)
	}
}

func TestEngineRequiredFieldMissing(t *testing.T) {
	schema, _, _ := subjectsFixture(t)
	store := stageStore(uuid.New())
	engine := NewEngine(store, 100)
	campusID := uuid.New()
	cache := NewCandidateCache(store, campusID)

	table := tabular.Table{
		Headers: []string{"title", "education_stage"},
		Rows:    []tabular.Row{{Number: 2, Cells: []string{"Toán", ""}}},
	}
	mapping := tabular.BuildMapping(schema, table.Headers)

	result := engine.ProcessBatch(context.Background(), schema, table, table.Rows, mapping, campusID, domain.ImportOptions{}, cache)
	if result.ErrorCount != 1 {
		t.Fatalf("expected required-field failure, got %+v", result)
	}
	if !strings.Contains(result.Errors[0].Message, "education_stage") {
		t.Fatalf("error should name the missing field: %q", result.Errors[0].Message)
	}
}

// stubRecordStore is an in-memory RecordStore for engine and service tests.
type stubRecordStore struct {
	records       []domain.Record
	created       []domain.Record
	updated       []domain.Record
	queryAll      []domain.Record
	queryAllCalls int
	createErr     error
}

func (s *stubRecordStore) Exists(ctx context.Context, schema string, campusID uuid.UUID, filter map[string]any) (bool, error) {
	_, err := s.FindOne(ctx, schema, campusID, filter)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (s *stubRecordStore) Get(ctx context.Context, schema string, id uuid.UUID) (domain.Record, error) {
	for _, record := range s.records {
		if record.ID == id {
			return record, nil
		}
	}
	return domain.Record{}, domain.ErrNotFound
}

func (s *stubRecordStore) Create(ctx context.Context, record domain.Record) (domain.Record, error) {
	if s.createErr != nil {
		return domain.Record{}, s.createErr
	}
	s.created = append(s.created, record)
	s.records = append(s.records, record)
	return record, nil
}

func (s *stubRecordStore) Update(ctx context.Context, record domain.Record) error {
	s.updated = append(s.updated, record)
	for i := range s.records {
		if s.records[i].ID == record.ID {
			s.records[i] = record
		}
	}
	return nil
}

func (s *stubRecordStore) QueryAll(ctx context.Context, schema string, campusID uuid.UUID, filter map[string]any, orderBy string) ([]domain.Record, error) {
	s.queryAllCalls++
	return append([]domain.Record(nil), s.queryAll...), nil
}

func (s *stubRecordStore) FindOne(ctx context.Context, schema string, campusID uuid.UUID, filter map[string]any) (domain.Record, error) {
	for _, record := range s.records {
		if record.Schema != schema {
			continue
		}
		match := true
		for key, value := range filter {
			if record.Fields[key] != value {
				match = false
				break
			}
		}
		if match {
			return record, nil
		}
	}
	return domain.Record{}, domain.ErrNotFound
}
