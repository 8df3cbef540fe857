package threads

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Thread groups an ordered sequence of Messages exchanged with an
// assistant across one or more Runs (spec §3 [Thread]).
type Thread struct {
	bun.BaseModel `bun:"table:executor.threads,alias:th"`

	ID        uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Metadata  Metadata  `bun:"metadata,type:jsonb"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// MessageRole is the canonical role tag on a Message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is one turn in a Thread, optionally attaching file ids that the
// Retrieval Subsystem can fetch content for (spec §3 [Message]).
type Message struct {
	bun.BaseModel `bun:"table:executor.messages,alias:msg"`

	ID        uuid.UUID   `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	ThreadID  uuid.UUID   `bun:"thread_id,notnull"`
	Role      MessageRole `bun:"role,notnull"`
	Content   string      `bun:"content,notnull"`
	FileIDs   StringList  `bun:"file_ids,type:jsonb"`
	RunID     *uuid.UUID  `bun:"run_id,type:uuid"`
	Metadata  Metadata    `bun:"metadata,type:jsonb"`
	CreatedAt time.Time   `bun:"created_at,notnull,default:current_timestamp"`
}

// StringList is a []string stored as a jsonb column.
type StringList []string

func (s StringList) Value() (driver.Value, error) {
	if len(s) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

func (s *StringList) Scan(src any) error {
	if src == nil {
		*s = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("threads: unsupported StringList scan type %T", src)
	}
	if len(raw) == 0 {
		*s = nil
		return nil
	}
	return json.Unmarshal(raw, s)
}

// Metadata is an arbitrary user-supplied key/value bag, stored as jsonb.
type Metadata map[string]string

func (m Metadata) Value() (driver.Value, error) {
	if len(m) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *Metadata) Scan(src any) error {
	if src == nil {
		*m = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("threads: unsupported Metadata scan type %T", src)
	}
	if len(raw) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(raw, m)
}
