package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Linh3694/frappe-erp-sub001/internal/domain"
)

// ErrImportJobStatusConflict indicates a write against a job that is already
// terminal in storage.
var ErrImportJobStatusConflict = errors.New("import job status conflict")

type importJobRepository struct {
	pool *pgxpool.Pool
}

// NewImportJobRepository wires a job repository backed by pgxpool.
func NewImportJobRepository(pool *pgxpool.Pool) ImportJobRepository {
	return &importJobRepository{pool: pool}
}

func (r *importJobRepository) Create(ctx context.Context, job domain.ImportJob) (domain.ImportJob, error) {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	optionsJSON, err := json.Marshal(job.Options)
	if err != nil {
		return domain.ImportJob{}, fmt.Errorf("failed to marshal import options: %w", err)
	}

	_, err = r.pool.Exec(
		ctx,
		`INSERT INTO import_jobs (id, schema_name, file_id, campus_id, options, status)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		job.ID,
		job.SchemaName,
		job.FileID,
		job.CampusID,
		optionsJSON,
		string(job.Status),
	)
	if err != nil {
		return domain.ImportJob{}, fmt.Errorf("failed to insert import job: %w", err)
	}
	return r.GetByID(ctx, job.ID)
}

func (r *importJobRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.ImportJob, error) {
	row := r.pool.QueryRow(
		ctx,
		`SELECT id, schema_name, file_id, campus_id, options, status,
		        total_rows, processed_rows, success_count, error_count,
		        message, error_report_id, created_at, started_at, finished_at
		 FROM import_jobs
		 WHERE id = $1`,
		id,
	)
	job, err := scanImportJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ImportJob{}, fmt.Errorf("import job %s: %w", id, domain.ErrNotFound)
	}
	return job, err
}

// Update persists the job's mutable state. The status guard keeps a stale
// worker from resurrecting a job another path already finalized.
func (r *importJobRepository) Update(ctx context.Context, job domain.ImportJob) error {
	tag, err := r.pool.Exec(
		ctx,
		`UPDATE import_jobs
		 SET status = $1,
		     total_rows = $2,
		     processed_rows = $3,
		     success_count = $4,
		     error_count = $5,
		     message = $6,
		     error_report_id = $7,
		     started_at = $8,
		     finished_at = $9
		 WHERE id = $10
		   AND status NOT IN ('COMPLETED', 'FAILED')`,
		string(job.Status),
		job.TotalRows,
		job.ProcessedRows,
		job.SuccessCount,
		job.ErrorCount,
		job.Message,
		job.ErrorReportID,
		job.StartedAt,
		job.FinishedAt,
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update import job %s: %w", job.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrImportJobStatusConflict
	}
	return nil
}

func (r *importJobRepository) ListActive(ctx context.Context, campusID uuid.UUID) ([]domain.ImportJob, error) {
	rows, err := r.pool.Query(
		ctx,
		`SELECT id, schema_name, file_id, campus_id, options, status,
		        total_rows, processed_rows, success_count, error_count,
		        message, error_report_id, created_at, started_at, finished_at
		 FROM import_jobs
		 WHERE campus_id = $1
		   AND status IN ('QUEUED', 'RUNNING')
		 ORDER BY created_at DESC`,
		campusID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list active import jobs: %w", err)
	}
	defer rows.Close()

	jobs := []domain.ImportJob{}
	for rows.Next() {
		job, scanErr := scanImportJob(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		jobs = append(jobs, job)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate import jobs: %w", rowsErr)
	}
	return jobs, nil
}

func scanImportJob(row rowScanner) (domain.ImportJob, error) {
	var (
		job           domain.ImportJob
		options       []byte
		status        string
		errorReportID pgtype.UUID
		createdAt     pgtype.Timestamptz
		startedAt     pgtype.Timestamptz
		finishedAt    pgtype.Timestamptz
	)
	if err := row.Scan(
		&job.ID,
		&job.SchemaName,
		&job.FileID,
		&job.CampusID,
		&options,
		&status,
		&job.TotalRows,
		&job.ProcessedRows,
		&job.SuccessCount,
		&job.ErrorCount,
		&job.Message,
		&errorReportID,
		&createdAt,
		&startedAt,
		&finishedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ImportJob{}, err
		}
		return domain.ImportJob{}, fmt.Errorf("failed to scan import job: %w", err)
	}

	job.Status = domain.ImportJobStatus(status)
	if len(options) > 0 {
		if err := json.Unmarshal(options, &job.Options); err != nil {
			return domain.ImportJob{}, fmt.Errorf("failed to decode import options: %w", err)
		}
	}
	if errorReportID.Valid {
		id := uuid.UUID(errorReportID.Bytes)
		job.ErrorReportID = &id
	}
	if createdAt.Valid {
		job.CreatedAt = createdAt.Time
	}
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		job.FinishedAt = &t
	}
	return job, nil
}
