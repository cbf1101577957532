package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ImportJobStatus captures lifecycle state for a bulk import job.
type ImportJobStatus string

const (
	ImportJobStatusQueued    ImportJobStatus = "QUEUED"
	ImportJobStatusRunning   ImportJobStatus = "RUNNING"
	ImportJobStatusCompleted ImportJobStatus = "COMPLETED"
	ImportJobStatusFailed    ImportJobStatus = "FAILED"
)

// ImportOptions are the caller-supplied knobs for one import run.
type ImportOptions struct {
	UpdateIfExists bool `json:"update_if_exists"`
	DryRun         bool `json:"dry_run"`
}

// ImportJob tracks one bulk import run. Progress fields are mutated only
// through the transition methods so the pipeline that owns the job is the
// single writer and the counter invariants hold at the boundary.
type ImportJob struct {
	ID             uuid.UUID       `json:"id"`
	SchemaName     string          `json:"schema_name"`
	FileID         uuid.UUID       `json:"file_id"`
	CampusID       uuid.UUID       `json:"campus_id"`
	Options        ImportOptions   `json:"options"`
	Status         ImportJobStatus `json:"status"`
	TotalRows      int             `json:"total_rows"`
	ProcessedRows  int             `json:"processed_rows"`
	SuccessCount   int             `json:"success_count"`
	ErrorCount     int             `json:"error_count"`
	Message        string          `json:"message"`
	ErrorReportID  *uuid.UUID      `json:"error_report_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	StartedAt      *time.Time      `json:"started_at,omitempty"`
	FinishedAt     *time.Time      `json:"finished_at,omitempty"`
}

// NewImportJob creates a job in the Queued state.
func NewImportJob(schemaName string, fileID, campusID uuid.UUID, options ImportOptions) ImportJob {
	return ImportJob{
		ID:         uuid.New(),
		SchemaName: schemaName,
		FileID:     fileID,
		CampusID:   campusID,
		Options:    options,
		Status:     ImportJobStatusQueued,
		CreatedAt:  time.Now(),
	}
}

// IsTerminal reports whether the job has finished, successfully or not.
func (j *ImportJob) IsTerminal() bool {
	return j.Status == ImportJobStatusCompleted || j.Status == ImportJobStatusFailed
}

// Start transitions Queued -> Running and records the start time once.
// Calling Start on a job that is already Running is a no-op.
func (j *ImportJob) Start() error {
	switch j.Status {
	case ImportJobStatusRunning:
		return nil
	case ImportJobStatusQueued:
		j.Status = ImportJobStatusRunning
		if j.StartedAt == nil {
			now := time.Now()
			j.StartedAt = &now
		}
		return nil
	default:
		return fmt.Errorf("cannot start import job in status %s", j.Status)
	}
}

// SetTotalRows records the row count discovered after the source is loaded.
func (j *ImportJob) SetTotalRows(total int) error {
	if j.Status != ImportJobStatusRunning {
		return fmt.Errorf("cannot set total rows in status %s", j.Status)
	}
	if total < 0 {
		total = 0
	}
	j.TotalRows = total
	return nil
}

// RecordProgress updates the counters after a batch. Counters are monotonic
// and processed never exceeds the total.
func (j *ImportJob) RecordProgress(processed, success, errors int) error {
	if j.Status != ImportJobStatusRunning {
		return fmt.Errorf("cannot record progress in status %s", j.Status)
	}
	if processed < j.ProcessedRows || success < j.SuccessCount || errors < j.ErrorCount {
		return fmt.Errorf("progress counters must not decrease (processed %d -> %d)", j.ProcessedRows, processed)
	}
	if processed > j.TotalRows {
		return fmt.Errorf("processed rows %d exceed total %d", processed, j.TotalRows)
	}
	if success+errors != processed {
		return fmt.Errorf("success %d + errors %d != processed %d", success, errors, processed)
	}
	j.ProcessedRows = processed
	j.SuccessCount = success
	j.ErrorCount = errors
	return nil
}

// Complete transitions Running -> Completed. Duplicate finalization is a
// no-op so a worker retrying its final save cannot corrupt the timestamps.
func (j *ImportJob) Complete(message string, errorReportID *uuid.UUID) error {
	if j.IsTerminal() {
		return nil
	}
	if j.Status != ImportJobStatusRunning {
		return fmt.Errorf("cannot complete import job in status %s", j.Status)
	}
	j.finalize(ImportJobStatusCompleted, message, errorReportID)
	return nil
}

// Fail transitions Running -> Failed, or Queued -> Failed when the run dies
// before processing starts (unreadable source, missing file). Duplicate
// finalization is a no-op.
func (j *ImportJob) Fail(message string, errorReportID *uuid.UUID) error {
	if j.IsTerminal() {
		return nil
	}
	j.finalize(ImportJobStatusFailed, message, errorReportID)
	return nil
}

func (j *ImportJob) finalize(status ImportJobStatus, message string, errorReportID *uuid.UUID) {
	j.Status = status
	j.Message = message
	if errorReportID != nil {
		j.ErrorReportID = errorReportID
	}
	if j.FinishedAt == nil {
		now := time.Now()
		j.FinishedAt = &now
	}
}

// ProgressPercentage is a convenience for status displays.
func (j *ImportJob) ProgressPercentage() int {
	if j.TotalRows <= 0 {
		return 0
	}
	pct := j.ProcessedRows * 100 / j.TotalRows
	if pct > 100 {
		pct = 100
	}
	return pct
}

// RowError captures one failed row together with the data it carried, so the
// error report can reproduce the row for correction and resubmission.
type RowError struct {
	RowNumber int            `json:"row_number"`
	Data      map[string]any `json:"data,omitempty"`
	Fallback  string         `json:"fallback,omitempty"`
	Message   string         `json:"message"`
}
