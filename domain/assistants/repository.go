package assistants

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/arclane/assistants-executor/pkg/logger"
)

// Repository provides CRUD access to assistants.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{db: db, log: log.With(logger.Scope("assistants.repository"))}
}

// Create inserts a new assistant, applying Temperature/TopP defaults and
// validating tool schemas before the row is written.
func (r *Repository) Create(ctx context.Context, a *Assistant) error {
	if a.Temperature == 0 {
		a.Temperature = DefaultTemperature
	}
	if a.TopP == 0 {
		a.TopP = DefaultTopP
	}
	if err := ValidateTools(a.Tools); err != nil {
		return fmt.Errorf("validate tools: %w", err)
	}
	if err := ValidateMetadata(a.Metadata); err != nil {
		return fmt.Errorf("validate metadata: %w", err)
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	_, err := r.db.NewInsert().Model(a).Exec(ctx)
	if err != nil {
		r.log.Error("failed to create assistant", logger.Error(err))
		return fmt.Errorf("create assistant: %w", err)
	}
	return nil
}

// GetByID returns an assistant, or (nil, nil) if it doesn't exist.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Assistant, error) {
	a := new(Assistant)
	err := r.db.NewSelect().Model(a).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get assistant: %w", err)
	}
	return a, nil
}

// Update replaces an assistant's mutable fields and re-validates its tools.
func (r *Repository) Update(ctx context.Context, a *Assistant) error {
	if err := ValidateTools(a.Tools); err != nil {
		return fmt.Errorf("validate tools: %w", err)
	}
	if err := ValidateMetadata(a.Metadata); err != nil {
		return fmt.Errorf("validate metadata: %w", err)
	}

	_, err := r.db.NewUpdate().Model(a).WherePK().Exec(ctx)
	if err != nil {
		r.log.Error("failed to update assistant", logger.Error(err))
		return fmt.Errorf("update assistant: %w", err)
	}
	return nil
}

// Delete removes an assistant by id.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.NewDelete().Model((*Assistant)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete assistant: %w", err)
	}
	return nil
}

// List returns all assistants ordered by creation time, newest first.
func (r *Repository) List(ctx context.Context) ([]*Assistant, error) {
	var out []*Assistant
	err := r.db.NewSelect().Model(&out).OrderExpr("created_at DESC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assistants: %w", err)
	}
	return out, nil
}
