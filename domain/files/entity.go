package files

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// StoredFile is the metadata record for a blob uploaded for retrieval or
// code-interpreter input (spec §3 [StoredFile]).
type StoredFile struct {
	bun.BaseModel `bun:"table:executor.files,alias:f"`

	ID        uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Filename  string    `bun:"filename,notnull"`
	Bytes     int64     `bun:"bytes,notnull"`
	MimeType  string    `bun:"mime_type"`
	Purpose   string    `bun:"purpose"`
	StorageKey string   `bun:"storage_key,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
