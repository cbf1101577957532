package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Linh3694/frappe-erp-sub001/internal/domain"
)

// recordRepository stores target records as one row per record with the
// schema-specific fields in a JSONB column.
type recordRepository struct {
	pool *pgxpool.Pool
}

// NewRecordStore wires a record store backed by pgxpool.
func NewRecordStore(pool *pgxpool.Pool) RecordStore {
	return &recordRepository{pool: pool}
}

func (r *recordRepository) Exists(ctx context.Context, schema string, campusID uuid.UUID, filter map[string]any) (bool, error) {
	where, args := buildFilter(schema, campusID, filter)
	var exists bool
	err := r.pool.QueryRow(
		ctx,
		fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM records WHERE %s)`, where),
		args...,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check %s existence: %w", schema, err)
	}
	return exists, nil
}

func (r *recordRepository) Get(ctx context.Context, schema string, id uuid.UUID) (domain.Record, error) {
	row := r.pool.QueryRow(
		ctx,
		`SELECT id, campus_id, schema_name, fields, created_at, updated_at
		 FROM records
		 WHERE schema_name = $1 AND id = $2`,
		schema,
		id,
	)
	record, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Record{}, fmt.Errorf("%s %s: %w", schema, id, domain.ErrNotFound)
	}
	return record, err
}

func (r *recordRepository) Create(ctx context.Context, record domain.Record) (domain.Record, error) {
	fieldsJSON, err := json.Marshal(record.Fields)
	if err != nil {
		return domain.Record{}, fmt.Errorf("failed to marshal record fields: %w", err)
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	_, err = r.pool.Exec(
		ctx,
		`INSERT INTO records (id, campus_id, schema_name, fields)
		 VALUES ($1, $2, $3, $4)`,
		record.ID,
		record.CampusID,
		record.Schema,
		fieldsJSON,
	)
	if err != nil {
		return domain.Record{}, &domain.StoreWriteError{Schema: record.Schema, Err: err}
	}
	return r.Get(ctx, record.Schema, record.ID)
}

func (r *recordRepository) Update(ctx context.Context, record domain.Record) error {
	fieldsJSON, err := json.Marshal(record.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal record fields: %w", err)
	}

	tag, err := r.pool.Exec(
		ctx,
		`UPDATE records
		 SET fields = $1, updated_at = now()
		 WHERE schema_name = $2 AND id = $3`,
		fieldsJSON,
		record.Schema,
		record.ID,
	)
	if err != nil {
		return &domain.StoreWriteError{Schema: record.Schema, Err: err}
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", record.Schema, record.ID, domain.ErrNotFound)
	}
	return nil
}

func (r *recordRepository) QueryAll(ctx context.Context, schema string, campusID uuid.UUID, filter map[string]any, orderBy string) ([]domain.Record, error) {
	where, args := buildFilter(schema, campusID, filter)
	order := "id"
	if strings.TrimSpace(orderBy) != "" {
		args = append(args, orderBy)
		order = fmt.Sprintf("fields->>$%d, id", len(args))
	}

	rows, err := r.pool.Query(
		ctx,
		fmt.Sprintf(
			`SELECT id, campus_id, schema_name, fields, created_at, updated_at
			 FROM records
			 WHERE %s
			 ORDER BY %s`,
			where, order,
		),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s records: %w", schema, err)
	}
	defer rows.Close()

	records := []domain.Record{}
	for rows.Next() {
		record, scanErr := scanRecord(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, record)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate %s records: %w", schema, rowsErr)
	}
	return records, nil
}

func (r *recordRepository) FindOne(ctx context.Context, schema string, campusID uuid.UUID, filter map[string]any) (domain.Record, error) {
	where, args := buildFilter(schema, campusID, filter)
	row := r.pool.QueryRow(
		ctx,
		fmt.Sprintf(
			`SELECT id, campus_id, schema_name, fields, created_at, updated_at
			 FROM records
			 WHERE %s
			 ORDER BY id
			 LIMIT 1`,
			where,
		),
		args...,
	)
	record, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Record{}, fmt.Errorf("%s: %w", schema, domain.ErrNotFound)
	}
	return record, err
}

// buildFilter renders the WHERE clause for a schema + campus + field filter.
// Field filters compare against the JSONB text representation, which is how
// imported scalar values are stored.
func buildFilter(schema string, campusID uuid.UUID, filter map[string]any) (string, []any) {
	clauses := []string{"schema_name = $1", "campus_id = $2"}
	args := []any{schema, campusID}
	for _, key := range sortedKeys(filter) {
		args = append(args, fmt.Sprintf("%v", filter[key]))
		clauses = append(clauses, fmt.Sprintf("fields->>'%s' = $%d", sanitizeFieldName(key), len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

func sortedKeys(filter map[string]any) []string {
	keys := make([]string, 0, len(filter))
	for key := range filter {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// sanitizeFieldName keeps JSONB path keys to identifier characters; field
// names come from the static registry, this guards interpolation.
func sanitizeFieldName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (domain.Record, error) {
	var (
		record    domain.Record
		fields    []byte
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)
	if err := row.Scan(&record.ID, &record.CampusID, &record.Schema, &fields, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Record{}, err
		}
		return domain.Record{}, fmt.Errorf("failed to scan record: %w", err)
	}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &record.Fields); err != nil {
			return domain.Record{}, fmt.Errorf("failed to decode record fields: %w", err)
		}
	}
	if record.Fields == nil {
		record.Fields = map[string]any{}
	}
	if createdAt.Valid {
		record.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		record.UpdatedAt = updatedAt.Time
	}
	return record, nil
}
