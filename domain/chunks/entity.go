package chunks

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Chunk is one fixed-token-count slice of a file's extracted text (spec §3
// [Chunk]). FileID+Sequence is the identity the retrieval subsystem
// searches and fetches by; StartIndex/EndIndex are byte offsets into the
// original file content.
//
// The teacher's kb.chunks table called this column "document_id" and
// nested offsets inside a jsonb metadata blob; this table renames to the
// spec's "file id"/"sequence" vocabulary and promotes the offsets to
// top-level columns so the contiguous-sequence invariant (spec §8) can be
// checked with a plain index scan.
type Chunk struct {
	bun.BaseModel `bun:"table:executor.chunks,alias:c"`

	ID         uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	FileID     uuid.UUID `bun:"file_id,type:uuid,notnull"`
	Sequence   int       `bun:"sequence,notnull"`
	Text       string    `bun:"text,notnull"`
	StartIndex int       `bun:"start_index,notnull"`
	EndIndex   int       `bun:"end_index,notnull"`
	TSV        string    `bun:"tsv,type:tsvector"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
