package chunks

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/arclane/assistants-executor/pkg/apperror"
	"github.com/arclane/assistants-executor/pkg/logger"
)

// Repository handles database operations for chunks.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new chunks repository.
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("chunks.repo")),
	}
}

// ListByFile returns a file's chunks ordered by sequence.
func (r *Repository) ListByFile(ctx context.Context, fileID uuid.UUID) ([]*Chunk, error) {
	var out []*Chunk
	err := r.db.NewSelect().Model(&out).Where("file_id = ?", fileID).OrderExpr("sequence ASC").Scan(ctx)
	if err != nil {
		r.log.Error("failed to list chunks", logger.Error(err))
		return nil, apperror.NewInternal("failed to list chunks", err)
	}
	return out, nil
}

// GetByID retrieves a single chunk by id.
func (r *Repository) GetByID(ctx context.Context, chunkID uuid.UUID) (*Chunk, error) {
	c := new(Chunk)
	err := r.db.NewSelect().Model(c).Where("id = ?", chunkID).Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NewNotFound("chunk", chunkID.String())
		}
		r.log.Error("failed to get chunk", logger.Error(err))
		return nil, apperror.NewInternal("failed to get chunk", err)
	}
	return c, nil
}

// CreateBatch inserts chunks for a file within the caller's transaction
// (spec §5's "one transaction per file" requirement), computing the
// tsvector column from text.
func (r *Repository) CreateBatch(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	for _, c := range chunks {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
	}

	_, err := r.db.NewInsert().Model(&chunks).Exec(ctx)
	if err != nil {
		r.log.Error("failed to create chunks batch", logger.Error(err), slog.Int("count", len(chunks)))
		return apperror.NewInternal("failed to create chunks", err)
	}

	for _, c := range chunks {
		if _, err := r.db.NewRaw(
			"UPDATE executor.chunks SET tsv = to_tsvector('english', ?) WHERE id = ?",
			c.Text, c.ID,
		).Exec(ctx); err != nil {
			r.log.Error("failed to update chunk tsvector", logger.Error(err))
			return apperror.NewInternal("failed to index chunk", err)
		}
	}

	return nil
}

// DeleteByFile removes every chunk for a file id.
func (r *Repository) DeleteByFile(ctx context.Context, fileID uuid.UUID) error {
	_, err := r.db.NewDelete().Model((*Chunk)(nil)).Where("file_id = ?", fileID).Exec(ctx)
	if err != nil {
		r.log.Error("failed to delete file chunks", logger.Error(err))
		return apperror.NewInternal("failed to delete chunks", err)
	}
	return nil
}

// CountByFile returns the number of chunks for a file.
func (r *Repository) CountByFile(ctx context.Context, fileID uuid.UUID) (int, error) {
	count, err := r.db.NewSelect().Model((*Chunk)(nil)).Where("file_id = ?", fileID).Count(ctx)
	if err != nil {
		return 0, apperror.NewInternal("failed to count chunks", err)
	}
	return count, nil
}

// Search runs a full-text search across chunks using a precomposed
// tsquery string (built by the retrieval subsystem's query generation,
// spec §4.7). An empty or invalid query is the caller's responsibility to
// avoid; Search itself just executes the to_tsquery expression against
// the stored tsvector.
func (r *Repository) Search(ctx context.Context, tsQuery string, limit int) ([]*Chunk, error) {
	if limit <= 0 {
		limit = 10
	}

	var out []*Chunk
	err := r.db.NewSelect().
		Model(&out).
		Where("tsv @@ to_tsquery('english', ?)", tsQuery).
		OrderExpr("ts_rank(tsv, to_tsquery('english', ?)) DESC", tsQuery).
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("chunk search: %w", err)
	}
	return out, nil
}
