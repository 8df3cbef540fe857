package threads

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/arclane/assistants-executor/pkg/logger"
)

// Repository provides CRUD access to threads and their messages.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{db: db, log: log.With(logger.Scope("threads.repository"))}
}

func (r *Repository) CreateThread(ctx context.Context, t *Thread) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if _, err := r.db.NewInsert().Model(t).Exec(ctx); err != nil {
		return fmt.Errorf("create thread: %w", err)
	}
	return nil
}

func (r *Repository) GetThread(ctx context.Context, id uuid.UUID) (*Thread, error) {
	t := new(Thread)
	err := r.db.NewSelect().Model(t).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get thread: %w", err)
	}
	return t, nil
}

// AppendMessage appends a message to a thread. Used both for user-authored
// turns and for the Run Executor's final assistant message (§4.1 step 9).
func (r *Repository) AppendMessage(ctx context.Context, m *Message) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if _, err := r.db.NewInsert().Model(m).Exec(ctx); err != nil {
		r.log.Error("failed to append message", logger.Error(err))
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// ListMessages returns a thread's messages in chronological order, used by
// the Prompt Assembler's "previous messages" section (§4.3).
func (r *Repository) ListMessages(ctx context.Context, threadID uuid.UUID, limit int) ([]*Message, error) {
	q := r.db.NewSelect().
		Model((*Message)(nil)).
		Where("thread_id = ?", threadID).
		OrderExpr("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var out []*Message
	if err := q.Scan(ctx, &out); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return out, nil
}
