package repository

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/Linh3694/frappe-erp-sub001/internal/domain"
)

// RecordStore is the opaque store of campus-scoped target records. The
// import pipeline only needs existence checks, lookups and writes; it never
// owns a record's lifecycle.
type RecordStore interface {
	Exists(ctx context.Context, schema string, campusID uuid.UUID, filter map[string]any) (bool, error)
	Get(ctx context.Context, schema string, id uuid.UUID) (domain.Record, error)
	Create(ctx context.Context, record domain.Record) (domain.Record, error)
	Update(ctx context.Context, record domain.Record) error
	// QueryAll returns every record of a schema within a campus matching the
	// filter, ordered by the named field then id so iteration is stable.
	QueryAll(ctx context.Context, schema string, campusID uuid.UUID, filter map[string]any, orderBy string) ([]domain.Record, error)
	// FindOne resolves a record by filter, for natural-key lookups. Returns
	// domain.ErrNotFound when nothing matches.
	FindOne(ctx context.Context, schema string, campusID uuid.UUID, filter map[string]any) (domain.Record, error)
}

// ImportJobRepository persists bulk import jobs.
type ImportJobRepository interface {
	Create(ctx context.Context, job domain.ImportJob) (domain.ImportJob, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.ImportJob, error)
	// Update persists the job's current state. Writing to a job that is
	// already terminal in storage fails with ErrImportJobStatusConflict.
	Update(ctx context.Context, job domain.ImportJob) error
	ListActive(ctx context.Context, campusID uuid.UUID) ([]domain.ImportJob, error)
}

// FileStore keeps uploaded spreadsheets and generated error reports.
type FileStore interface {
	Save(ctx context.Context, data []byte, fileName, ownerSchema string, ownerID uuid.UUID, visibility domain.FileVisibility) (domain.StoredFile, error)
	Open(ctx context.Context, id uuid.UUID) (io.ReadCloser, domain.StoredFile, error)
}
