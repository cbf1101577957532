package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Linh3694/frappe-erp-sub001/internal/domain"
	"github.com/Linh3694/frappe-erp-sub001/internal/repository"
	"github.com/Linh3694/frappe-erp-sub001/internal/tabular"
)

var errJobNotRunnable = errors.New("import job is no longer runnable")

// Service owns the import pipeline: it accepts uploads, queues jobs, runs one
// sequential worker per job and exposes status and cancellation.
type Service struct {
	jobs  repository.ImportJobRepository
	files repository.FileStore
	store repository.RecordStore

	engine     *Engine
	jobTimeout time.Duration

	workerCancels sync.Map // map[uuid.UUID]context.CancelFunc
}

type Option func(*Service)

// WithBatchSize sets how many rows each progress checkpoint covers.
func WithBatchSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.engine = NewEngine(s.store, size)
		}
	}
}

// WithJobTimeout bounds how long a single import run may take.
func WithJobTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.jobTimeout = timeout
		}
	}
}

func NewService(
	jobs repository.ImportJobRepository,
	files repository.FileStore,
	store repository.RecordStore,
	opts ...Option,
) *Service {
	service := &Service{
		jobs:       jobs,
		files:      files,
		store:      store,
		jobTimeout: 30 * time.Minute,
	}
	service.engine = NewEngine(store, defaultBatchSize)
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// ImportRequest describes one queued import run.
type ImportRequest struct {
	SchemaName string
	CampusID   uuid.UUID
	FileName   string
	FileData   []byte
	Options    domain.ImportOptions
}

// StartImport stores the uploaded source file, persists a queued job and
// launches its worker. The returned job is the queued snapshot; progress is
// observed through GetStatus.
func (s *Service) StartImport(ctx context.Context, req ImportRequest) (domain.ImportJob, error) {
	schema, err := domain.SchemaByName(req.SchemaName)
	if err != nil {
		return domain.ImportJob{}, err
	}
	if req.CampusID == uuid.Nil {
		return domain.ImportJob{}, errors.New("campus ID is required")
	}
	if len(req.FileData) == 0 {
		return domain.ImportJob{}, errors.New("source file is empty")
	}

	stored, err := s.files.Save(ctx, req.FileData, req.FileName, "import_jobs", uuid.Nil, domain.FileVisibilityPrivate)
	if err != nil {
		return domain.ImportJob{}, fmt.Errorf("store source file: %w", err)
	}

	job := domain.NewImportJob(schema.Name, stored.ID, req.CampusID, req.Options)
	persisted, err := s.jobs.Create(ctx, job)
	if err != nil {
		return domain.ImportJob{}, err
	}
	s.launchWorker(persisted, schema)
	return persisted, nil
}

// GetStatus returns the current snapshot of a job.
func (s *Service) GetStatus(ctx context.Context, id uuid.UUID) (domain.ImportJob, error) {
	if id == uuid.Nil {
		return domain.ImportJob{}, errors.New("job ID is required")
	}
	return s.jobs.GetByID(ctx, id)
}

// ListActive returns queued and running jobs for a campus.
func (s *Service) ListActive(ctx context.Context, campusID uuid.UUID) ([]domain.ImportJob, error) {
	return s.jobs.ListActive(ctx, campusID)
}

// Cancel requests cancellation of a queued or running job. The worker
// observes the cancellation at its next batch boundary and finalizes the job
// as failed.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (domain.ImportJob, error) {
	if id == uuid.Nil {
		return domain.ImportJob{}, errors.New("job ID is required")
	}
	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return domain.ImportJob{}, err
	}
	if job.IsTerminal() {
		return job, fmt.Errorf("import job in status %s cannot be cancelled", job.Status)
	}
	if cancel, ok := s.workerCancels.LoadAndDelete(id); ok {
		if fn, okCast := cancel.(context.CancelFunc); okCast {
			fn()
		}
	}
	return job, nil
}

// OpenErrorReport streams the generated error report for a finished job.
func (s *Service) OpenErrorReport(ctx context.Context, jobID uuid.UUID) (io.ReadCloser, domain.StoredFile, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, domain.StoredFile{}, err
	}
	if job.ErrorReportID == nil {
		return nil, domain.StoredFile{}, errors.New("import job has no error report")
	}
	return s.files.Open(ctx, *job.ErrorReportID)
}

// OpenFile streams an arbitrary stored file, for source re-download.
func (s *Service) OpenFile(ctx context.Context, fileID uuid.UUID) (io.ReadCloser, domain.StoredFile, error) {
	return s.files.Open(ctx, fileID)
}

func (s *Service) launchWorker(job domain.ImportJob, schema domain.TargetSchema) {
	baseCtx, baseCancel := context.WithCancel(context.Background())
	ctx := baseCtx
	cancelFunc := baseCancel
	if s.jobTimeout > 0 {
		timeoutCtx, timeoutCancel := context.WithTimeout(baseCtx, s.jobTimeout)
		ctx = timeoutCtx
		cancelFunc = func() {
			timeoutCancel()
			baseCancel()
		}
	}
	s.workerCancels.Store(job.ID, cancelFunc)
	go func() {
		defer func() {
			cancelFunc()
			s.workerCancels.Delete(job.ID)
		}()
		defer func() {
			if rec := recover(); rec != nil {
				err := fmt.Errorf("panic: %v", rec)
				log.Printf("[import] panic while processing job %s: %v", job.ID, rec)
				s.failJob(context.Background(), job.ID, err)
			}
		}()
		if err := s.runImport(ctx, job, schema); err != nil {
			switch {
			case errors.Is(err, context.Canceled):
				log.Printf("[import] job %s cancelled", job.ID)
				s.failJob(context.Background(), job.ID, errors.New("import cancelled"))
			case errors.Is(err, context.DeadlineExceeded):
				log.Printf("[import] job %s timed out", job.ID)
				s.failJob(context.Background(), job.ID, errors.New("import timed out"))
			case errors.Is(err, errJobNotRunnable):
				log.Printf("[import] job %s not runnable, skipping", job.ID)
			default:
				s.failJob(context.Background(), job.ID, err)
			}
		}
	}()
}

func (s *Service) failJob(ctx context.Context, jobID uuid.UUID, cause error) {
	if cause == nil {
		return
	}
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		log.Printf("[import] failed to load job %s for failure marking: %v (original error: %v)", jobID, err, cause)
		return
	}
	if err := job.Fail(truncateError(cause), nil); err != nil {
		log.Printf("[import] failed to finalize job %s: %v", jobID, err)
		return
	}
	if err := s.jobs.Update(ctx, job); err != nil && !errors.Is(err, repository.ErrImportJobStatusConflict) {
		log.Printf("[import] failed to mark job %s as failed: %v (original error: %v)", jobID, err, cause)
		return
	}
	log.Printf("[import] job %s failed: %v", jobID, cause)
}

// runImport is the sequential worker body for one job. Every batch boundary
// persists progress and checks for cancellation; row failures never abort the
// run, only run-fatal conditions do.
func (s *Service) runImport(ctx context.Context, job domain.ImportJob, schema domain.TargetSchema) error {
	if err := s.markRunning(ctx, &job); err != nil {
		return err
	}

	table, err := s.loadTable(ctx, job, schema)
	if err != nil {
		return err
	}

	mapping := tabular.BuildMapping(schema, table.Headers)

	if err := job.SetTotalRows(len(table.Rows)); err != nil {
		return err
	}
	if err := s.jobs.Update(ctx, job); err != nil {
		return s.classifyUpdateErr(err)
	}
	log.Printf("[import] job %s running (schema=%s rows=%d dry_run=%t)", job.ID, schema.Name, len(table.Rows), job.Options.DryRun)

	cache := NewCandidateCache(s.store, job.CampusID)
	batchSize := s.engine.BatchSize()

	processed := 0
	successTotal := 0
	errorTotal := 0
	var rowErrors []domain.RowError

	for start := 0; start < len(table.Rows); start += batchSize {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		end := start + batchSize
		if end > len(table.Rows) {
			end = len(table.Rows)
		}
		result := s.engine.ProcessBatch(ctx, schema, table, table.Rows[start:end], mapping, job.CampusID, job.Options, cache)
		processed = end
		successTotal += result.SuccessCount
		errorTotal += result.ErrorCount
		rowErrors = append(rowErrors, result.Errors...)

		if err := job.RecordProgress(processed, successTotal, errorTotal); err != nil {
			return err
		}
		if err := s.jobs.Update(ctx, job); err != nil {
			return s.classifyUpdateErr(err)
		}
	}

	var reportID *uuid.UUID
	if len(rowErrors) > 0 {
		stored, reportErr := s.saveErrorReport(ctx, job, schema, rowErrors)
		if reportErr != nil {
			// The run itself succeeded; a missing report is reported in the
			// message instead of failing the job.
			log.Printf("[import] job %s error report generation failed: %v", job.ID, reportErr)
		} else {
			reportID = &stored.ID
		}
	}

	message := summaryMessage(job.Options, successTotal, errorTotal)
	if err := job.Complete(message, reportID); err != nil {
		return err
	}
	if err := s.jobs.Update(ctx, job); err != nil {
		return s.classifyUpdateErr(err)
	}
	log.Printf("[import] job %s completed (success=%d errors=%d)", job.ID, successTotal, errorTotal)
	return nil
}

func (s *Service) markRunning(ctx context.Context, job *domain.ImportJob) error {
	if err := job.Start(); err != nil {
		return errJobNotRunnable
	}
	if err := s.jobs.Update(ctx, *job); err != nil {
		return s.classifyUpdateErr(err)
	}
	return nil
}

// loadTable opens the uploaded source and parses it. Parse failures here are
// run-fatal: there is nothing row-scoped to isolate yet.
func (s *Service) loadTable(ctx context.Context, job domain.ImportJob, schema domain.TargetSchema) (tabular.Table, error) {
	reader, meta, err := s.files.Open(ctx, job.FileID)
	if err != nil {
		return tabular.Table{}, fmt.Errorf("open source file: %w", err)
	}
	defer reader.Close()

	table, err := tabular.ReadTable(reader, meta.FileName, schema.HeaderRowsToSkip)
	if err != nil {
		return tabular.Table{}, err
	}
	return table, nil
}

func (s *Service) saveErrorReport(ctx context.Context, job domain.ImportJob, schema domain.TargetSchema, rowErrors []domain.RowError) (domain.StoredFile, error) {
	data, err := BuildErrorReport(schema, rowErrors)
	if err != nil {
		return domain.StoredFile{}, err
	}
	fileName := fmt.Sprintf("%s-import-errors-%s.xlsx", schema.Name, job.ID.String())
	return s.files.Save(ctx, data, fileName, "import_jobs", job.ID, domain.FileVisibilityPrivate)
}

func (s *Service) classifyUpdateErr(err error) error {
	if errors.Is(err, repository.ErrImportJobStatusConflict) {
		return errJobNotRunnable
	}
	return err
}

func summaryMessage(opts domain.ImportOptions, success, failed int) string {
	if opts.DryRun {
		return fmt.Sprintf("Dry run: %d rows valid, %d rows with errors, no records written", success, failed)
	}
	return fmt.Sprintf("%d rows imported, %d rows with errors", success, failed)
}

func truncateError(err error) string {
	if err == nil {
		return ""
	}
	const maxLen = 512
	msg := err.Error()
	if len(msg) > maxLen {
		return msg[:maxLen]
	}
	return msg
}
