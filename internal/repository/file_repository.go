package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Linh3694/frappe-erp-sub001/internal/domain"
)

// fileRepository keeps file bytes on disk under a base directory and the
// metadata row in Postgres. Files are written to a temp name and promoted
// with a rename so a crashed save never leaves a half-written artifact.
type fileRepository struct {
	pool    *pgxpool.Pool
	baseDir string
}

// NewFileStore wires a disk-backed file store rooted at baseDir.
func NewFileStore(pool *pgxpool.Pool, baseDir string) (FileStore, error) {
	if strings.TrimSpace(baseDir) == "" {
		baseDir = filepath.Join(os.TempDir(), "sis-import-files")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create file store directory: %w", err)
	}
	return &fileRepository{pool: pool, baseDir: filepath.Clean(baseDir)}, nil
}

func (r *fileRepository) Save(ctx context.Context, data []byte, fileName, ownerSchema string, ownerID uuid.UUID, visibility domain.FileVisibility) (domain.StoredFile, error) {
	id := uuid.New()
	relPath := filepath.Join(id.String()[:2], id.String()+filepath.Ext(fileName))
	absPath := filepath.Join(r.baseDir, relPath)
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return domain.StoredFile{}, fmt.Errorf("failed to create file directory: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(absPath), "upload-*")
	if err != nil {
		return domain.StoredFile{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()
	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		_ = os.Remove(tempPath)
		return domain.StoredFile{}, fmt.Errorf("failed to write file data: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		_ = os.Remove(tempPath)
		return domain.StoredFile{}, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tempPath, absPath); err != nil {
		_ = os.Remove(tempPath)
		return domain.StoredFile{}, fmt.Errorf("failed to promote file: %w", err)
	}

	_, err = r.pool.Exec(
		ctx,
		`INSERT INTO stored_files (id, file_name, owner_schema, owner_id, path, byte_size, visibility)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id,
		fileName,
		ownerSchema,
		ownerID,
		relPath,
		int64(len(data)),
		string(visibility),
	)
	if err != nil {
		_ = os.Remove(absPath)
		return domain.StoredFile{}, fmt.Errorf("failed to record stored file: %w", err)
	}

	return r.getByID(ctx, id)
}

func (r *fileRepository) Open(ctx context.Context, id uuid.UUID) (io.ReadCloser, domain.StoredFile, error) {
	meta, err := r.getByID(ctx, id)
	if err != nil {
		return nil, domain.StoredFile{}, err
	}
	file, err := os.Open(filepath.Join(r.baseDir, meta.Path))
	if err != nil {
		return nil, domain.StoredFile{}, fmt.Errorf("failed to open stored file %s: %w", id, err)
	}
	return file, meta, nil
}

func (r *fileRepository) getByID(ctx context.Context, id uuid.UUID) (domain.StoredFile, error) {
	var (
		meta       domain.StoredFile
		visibility string
		createdAt  pgtype.Timestamptz
	)
	err := r.pool.QueryRow(
		ctx,
		`SELECT id, file_name, owner_schema, owner_id, path, byte_size, visibility, created_at
		 FROM stored_files
		 WHERE id = $1`,
		id,
	).Scan(&meta.ID, &meta.FileName, &meta.OwnerSchema, &meta.OwnerID, &meta.Path, &meta.ByteSize, &visibility, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.StoredFile{}, fmt.Errorf("stored file %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.StoredFile{}, fmt.Errorf("failed to load stored file: %w", err)
	}
	meta.Visibility = domain.FileVisibility(visibility)
	if createdAt.Valid {
		meta.CreatedAt = createdAt.Time
	}
	return meta, nil
}
