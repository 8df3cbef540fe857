// Package files implements spec §6's blob-storage external interface
// (upload, get_content, retrieve, list, delete) over the S3-compatible
// internal/storage collaborator, recording metadata rows alongside the
// underlying object.
package files

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.uber.org/fx"

	"github.com/arclane/assistants-executor/internal/storage"
	"github.com/arclane/assistants-executor/pkg/logger"
)

// Module provides the files Service as an fx module.
var Module = fx.Module("files",
	fx.Provide(NewService),
)

// Service is the blob-storage collaborator: upload/get_content/retrieve/
// list/delete over StoredFile metadata plus the underlying blob.
type Service struct {
	db      bun.IDB
	storage *storage.Service
	log     *slog.Logger
}

func NewService(db bun.IDB, storageSvc *storage.Service, log *slog.Logger) *Service {
	return &Service{db: db, storage: storageSvc, log: log.With(logger.Scope("files"))}
}

// Upload stores file content and its metadata row, returning the new
// StoredFile.
func (s *Service) Upload(ctx context.Context, filename, mimeType, purpose string, data io.Reader, size int64) (*StoredFile, error) {
	id := uuid.New()
	key := fmt.Sprintf("%s-%s", id.String(), storage.SanitizeFilename(filename))

	if _, err := s.storage.Upload(ctx, key, data, size, storage.UploadOptions{ContentType: mimeType}); err != nil {
		return nil, fmt.Errorf("upload blob: %w", err)
	}

	f := &StoredFile{
		ID:         id,
		Filename:   filename,
		Bytes:      size,
		MimeType:   mimeType,
		Purpose:    purpose,
		StorageKey: key,
	}
	if _, err := s.db.NewInsert().Model(f).Exec(ctx); err != nil {
		return nil, fmt.Errorf("persist file metadata: %w", err)
	}
	return f, nil
}

// Retrieve returns a StoredFile's metadata, or (nil, nil) if unknown.
func (s *Service) Retrieve(ctx context.Context, id uuid.UUID) (*StoredFile, error) {
	f := new(StoredFile)
	err := s.db.NewSelect().Model(f).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("retrieve file: %w", err)
	}
	return f, nil
}

// GetContent streams the underlying blob for a file id.
func (s *Service) GetContent(ctx context.Context, id uuid.UUID) (io.ReadCloser, error) {
	f, err := s.Retrieve(ctx, id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("file %s not found", id)
	}
	return s.storage.Download(ctx, f.StorageKey)
}

// List returns all known files, newest first.
func (s *Service) List(ctx context.Context) ([]*StoredFile, error) {
	var out []*StoredFile
	if err := s.db.NewSelect().Model(&out).OrderExpr("created_at DESC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return out, nil
}

// Delete removes a file's blob and metadata row.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	f, err := s.Retrieve(ctx, id)
	if err != nil {
		return err
	}
	if f == nil {
		return nil
	}
	if err := s.storage.Delete(ctx, f.StorageKey); err != nil {
		s.log.Error("failed to delete blob", logger.Error(err))
		return fmt.Errorf("delete blob: %w", err)
	}
	_, err = s.db.NewDelete().Model((*StoredFile)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete file metadata: %w", err)
	}
	return nil
}
