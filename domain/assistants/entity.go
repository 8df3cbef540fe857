package assistants

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ToolKind discriminates the tagged Tool variant persisted on an Assistant.
type ToolKind string

const (
	ToolKindFunction       ToolKind = "function"
	ToolKindRetrieval      ToolKind = "retrieval"
	ToolKindCodeInterpreter ToolKind = "code_interpreter"
	ToolKindAction         ToolKind = "action"
)

// FunctionTool is the Function-kind tool config: a name, description, and
// JSON-schema parameter contract validated at create/update time.
type FunctionTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ActionTool is the Action-kind tool config: an operation descriptor for
// the Action Executor (spec §4.5).
type ActionTool struct {
	Domain      string            `json:"domain"`
	Path        string            `json:"path"`
	Method      string            `json:"method"`
	OperationID string            `json:"operation_id"`
	ContentType string            `json:"content_type,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Params      json.RawMessage   `json:"params,omitempty"`
}

// Tool is the tagged-variant polymorphism described in spec §9: exactly one
// of Function/Action is populated depending on Kind; Retrieval and
// CodeInterpreter carry no config beyond the tag itself.
type Tool struct {
	Kind     ToolKind      `json:"kind"`
	Function *FunctionTool `json:"function,omitempty"`
	Action   *ActionTool   `json:"action,omitempty"`
}

// Name returns the tool's routing tag as used by the Tool Router's
// extracted <name> tags (spec §4.2): the function name for Function tools,
// the operation id for Action tools, and the tag itself otherwise.
func (t Tool) Name() string {
	switch t.Kind {
	case ToolKindFunction:
		if t.Function != nil {
			return t.Function.Name
		}
	case ToolKindAction:
		if t.Action != nil {
			return t.Action.OperationID
		}
	}
	return string(t.Kind)
}

// ToolList is a []Tool stored as a single jsonb column.
type ToolList []Tool

var _ driver.Valuer = (*ToolList)(nil)

func (t ToolList) Value() (driver.Value, error) {
	if len(t) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(t)
}

func (t *ToolList) Scan(src any) error {
	if src == nil {
		*t = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("assistants: unsupported ToolList scan type %T", src)
	}
	if len(raw) == 0 {
		*t = nil
		return nil
	}
	return json.Unmarshal(raw, t)
}

// Assistant is a named, configured combination of model, instructions and
// tools (spec §3 [Assistant]).
type Assistant struct {
	bun.BaseModel `bun:"table:executor.assistants,alias:a"`

	ID           uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Name         string    `bun:"name,notnull"`
	Description  string    `bun:"description"`
	Model        string    `bun:"model,notnull"`
	Instructions string    `bun:"instructions"`
	// Temperature and TopP default to the values the original_source
	// assistant-core spec uses for deterministic tool-routing behavior.
	Temperature float64    `bun:"temperature,notnull,default:1"`
	TopP        float64    `bun:"top_p,notnull,default:1"`
	Tools       ToolList   `bun:"tools,type:jsonb,notnull,default:'[]'"`
	FileIDs     StringList `bun:"file_ids,type:jsonb"`
	Metadata    Metadata   `bun:"metadata,type:jsonb"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
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
		return fmt.Errorf("assistants: unsupported Metadata scan type %T", src)
	}
	if len(raw) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(raw, m)
}

// StringList is a []string stored as a jsonb column, used for an
// Assistant's attached file ids (spec §3 [Assistant]).
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
		return fmt.Errorf("assistants: unsupported StringList scan type %T", src)
	}
	if len(raw) == 0 {
		*s = nil
		return nil
	}
	return json.Unmarshal(raw, s)
}

// DefaultTemperature and DefaultTopP match original_source's
// assistants-core/src/assistant.rs defaults, used when a caller omits
// either field on create.
const (
	DefaultTemperature = 1.0
	DefaultTopP        = 1.0
)
