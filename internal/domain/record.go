package domain

import (
	"time"

	"github.com/google/uuid"
)

// Record is a generic target record owned by the record store. The import
// pipeline only issues create/update calls against it; each registered
// target schema decides which field names appear in Fields.
type Record struct {
	ID        uuid.UUID      `json:"id"`
	CampusID  uuid.UUID      `json:"campus_id"`
	Schema    string         `json:"schema"`
	Fields    map[string]any `json:"fields"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewRecord creates a record for the given schema with a fresh identity.
func NewRecord(campusID uuid.UUID, schema string, fields map[string]any) Record {
	now := time.Now()
	return Record{
		ID:        uuid.New(),
		CampusID:  campusID,
		Schema:    schema,
		Fields:    copyFields(fields),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MergeFields overlays non-nil incoming fields onto the record, for
// update-if-exists imports.
func (r Record) MergeFields(incoming map[string]any) Record {
	merged := copyFields(r.Fields)
	for key, value := range incoming {
		if value == nil {
			continue
		}
		merged[key] = value
	}
	r.Fields = merged
	r.UpdatedAt = time.Now()
	return r
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// Candidate is one (canonical id, display name) pair drawn from a
// campus-scoped record set, used by reference resolution.
type Candidate struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// FileVisibility controls whether a stored file is served publicly.
type FileVisibility string

const (
	FileVisibilityPrivate FileVisibility = "PRIVATE"
	FileVisibilityPublic  FileVisibility = "PUBLIC"
)

// StoredFile is the metadata row for a file kept in the file store:
// uploaded source spreadsheets and generated error reports.
type StoredFile struct {
	ID          uuid.UUID      `json:"id"`
	FileName    string         `json:"file_name"`
	OwnerSchema string         `json:"owner_schema"`
	OwnerID     uuid.UUID      `json:"owner_id"`
	Path        string         `json:"path"`
	ByteSize    int64          `json:"byte_size"`
	Visibility  FileVisibility `json:"visibility"`
	CreatedAt   time.Time      `json:"created_at"`
}
