package domain

import (
	"testing"

	"github.com/google/uuid"
)

func newRunningJob(t *testing.T, total int) ImportJob {
	t.Helper()
	job := NewImportJob("students", uuid.New(), uuid.New(), ImportOptions{})
	if err := job.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := job.SetTotalRows(total); err != nil {
		t.Fatalf("set total rows: %v", err)
	}
	return job
}

func TestImportJobLifecycle(t *testing.T) {
	job := NewImportJob("students", uuid.New(), uuid.New(), ImportOptions{})
	if job.Status != ImportJobStatusQueued {
		t.Fatalf("expected queued, got %s", job.Status)
	}
	if err := job.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if job.Status != ImportJobStatusRunning {
		t.Fatalf("expected running, got %s", job.Status)
	}
	if job.StartedAt == nil {
		t.Fatalf("expected started_at to be set")
	}

	// Start is idempotent while running.
	startedAt := *job.StartedAt
	if err := job.Start(); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if !job.StartedAt.Equal(startedAt) {
		t.Fatalf("started_at changed on duplicate start")
	}

	if err := job.SetTotalRows(10); err != nil {
		t.Fatalf("set total rows: %v", err)
	}
	if err := job.Complete("done", nil); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !job.IsTerminal() {
		t.Fatalf("expected terminal job")
	}
}

func TestImportJobProgressInvariants(t *testing.T) {
	job := newRunningJob(t, 10)

	if err := job.RecordProgress(5, 3, 2); err != nil {
		t.Fatalf("record progress: %v", err)
	}
	if err := job.RecordProgress(4, 3, 1); err == nil {
		t.Fatalf("expected decreasing counters to be rejected")
	}
	if err := job.RecordProgress(11, 9, 2); err == nil {
		t.Fatalf("expected processed > total to be rejected")
	}
	if err := job.RecordProgress(8, 4, 2); err == nil {
		t.Fatalf("expected success+errors != processed to be rejected")
	}
	if err := job.RecordProgress(10, 7, 3); err != nil {
		t.Fatalf("final progress: %v", err)
	}
	if job.ProgressPercentage() != 100 {
		t.Fatalf("expected 100%%, got %d", job.ProgressPercentage())
	}
}

func TestImportJobTerminalStateIsSticky(t *testing.T) {
	job := newRunningJob(t, 2)
	reportID := uuid.New()
	if err := job.Complete("2 rows imported, 0 rows with errors", &reportID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	finishedAt := *job.FinishedAt

	// Duplicate finalization must not change anything.
	if err := job.Complete("other message", nil); err != nil {
		t.Fatalf("duplicate complete: %v", err)
	}
	if err := job.Fail("late failure", nil); err != nil {
		t.Fatalf("fail after complete: %v", err)
	}
	if job.Status != ImportJobStatusCompleted {
		t.Fatalf("status changed after finalization: %s", job.Status)
	}
	if job.Message != "2 rows imported, 0 rows with errors" {
		t.Fatalf("message changed after finalization: %q", job.Message)
	}
	if !job.FinishedAt.Equal(finishedAt) {
		t.Fatalf("finished_at changed after finalization")
	}
	if job.ErrorReportID == nil || *job.ErrorReportID != reportID {
		t.Fatalf("error report id lost after duplicate finalization")
	}
}

func TestImportJobFailFromQueued(t *testing.T) {
	job := NewImportJob("subjects", uuid.New(), uuid.New(), ImportOptions{})
	if err := job.Fail("source file could not be parsed", nil); err != nil {
		t.Fatalf("fail from queued: %v", err)
	}
	if job.Status != ImportJobStatusFailed {
		t.Fatalf("expected failed, got %s", job.Status)
	}
	if job.FinishedAt == nil {
		t.Fatalf("expected finished_at to be set")
	}
}

func TestImportJobCompleteFromQueuedRejected(t *testing.T) {
	job := NewImportJob("subjects", uuid.New(), uuid.New(), ImportOptions{})
	if err := job.Complete("done", nil); err == nil {
		t.Fatalf("expected complete from queued to be rejected")
	}
}
