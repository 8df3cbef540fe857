// Package runs implements the Run Executor (spec §4.1): the state
// machine, tool orchestration, and persistence for a single bounded
// execution of an assistant over a thread.
package runs

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Status is a run's position in the state machine (spec §4.1). Wire form
// matches the canonical strings from spec §6.
type Status string

const (
	StatusQueued         Status = "queued"
	StatusInProgress     Status = "in_progress"
	StatusRequiresAction Status = "requires_action"
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
	StatusCancelled      Status = "cancelled"
	StatusExpired        Status = "expired"
	StatusCancelling     Status = "cancelling"
)

// IsTerminal reports whether status is an absorbing state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusExpired:
		return true
	default:
		return false
	}
}

// LastError is the run's terminal error record (spec §7). Code is one of
// apperror's executor error codes (server_error, load_error, ...).
type LastError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *LastError) Value() (driver.Value, error) {
	if e == nil {
		return nil, nil
	}
	return json.Marshal(e)
}

func (e *LastError) Scan(src any) error {
	if src == nil {
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		if s, ok := src.(string); ok {
			b = []byte(s)
		} else {
			return nil
		}
	}
	return json.Unmarshal(b, e)
}

// PendingToolCall is one entry of a RequiredAction (spec §3).
type PendingToolCall struct {
	ID           string `json:"id"`
	FunctionName string `json:"function_name"`
	Arguments    string `json:"arguments"`
}

// RequiredAction is the payload created when the executor suspends a run
// awaiting caller-supplied tool outputs.
type RequiredAction struct {
	ToolCalls []PendingToolCall `json:"tool_calls"`
}

func (r *RequiredAction) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(r)
}

func (r *RequiredAction) Scan(src any) error {
	if src == nil {
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		if s, ok := src.(string); ok {
			b = []byte(s)
		} else {
			return nil
		}
	}
	return json.Unmarshal(b, r)
}

// Run is one bounded execution of an assistant over a thread (spec §3
// [Run]).
type Run struct {
	bun.BaseModel `bun:"table:executor.runs,alias:r"`

	ID            uuid.UUID       `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	ThreadID      uuid.UUID       `bun:"thread_id,type:uuid,notnull"`
	AssistantID   uuid.UUID       `bun:"assistant_id,type:uuid,notnull"`
	UserID        string          `bun:"user_id,notnull"`
	Model         string          `bun:"model,notnull"`
	Instructions  string          `bun:"instructions"`
	FileIDs       StringList      `bun:"file_ids,type:jsonb"`
	Status        Status          `bun:"status,notnull,default:'queued'"`
	RequiredAction *RequiredAction `bun:"required_action,type:jsonb"`
	LastError     *LastError      `bun:"last_error,type:jsonb"`

	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	StartedAt   *time.Time `bun:"started_at"`
	FailedAt    *time.Time `bun:"failed_at"`
	CancelledAt *time.Time `bun:"cancelled_at"`
	CompletedAt *time.Time `bun:"completed_at"`
	ExpiredAt   *time.Time `bun:"expired_at"`
}

// StringList is a jsonb-backed []string, reused across Run.FileIDs.
type StringList []string

func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return json.Marshal(s)
}

func (s *StringList) Scan(src any) error {
	if src == nil {
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		if str, ok := src.(string); ok {
			b = []byte(str)
		} else {
			return nil
		}
	}
	return json.Unmarshal(b, s)
}

// SubmittedToolCall is the caller-supplied output for a PendingToolCall
// (spec §3 [SubmittedToolCall]).
type SubmittedToolCall struct {
	bun.BaseModel `bun:"table:executor.tool_calls,alias:tc"`

	ID        string    `bun:"id,pk"`
	RunID     uuid.UUID `bun:"run_id,type:uuid,notnull"`
	UserID    string    `bun:"user_id,notnull"`
	Output    string    `bun:"output,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// StepType discriminates a RunStep's Details payload.
type StepType string

const (
	StepTypeMessageCreation StepType = "message_creation"
	StepTypeToolCalls       StepType = "tool_calls"
)

// StepToolCallKind discriminates one entry of a ToolCalls step.
type StepToolCallKind string

const (
	StepToolCallFunction  StepToolCallKind = "function"
	StepToolCallRetrieval StepToolCallKind = "retrieval"
	StepToolCallCode      StepToolCallKind = "code"
)

// StepToolCall is one tagged entry inside a ToolCalls step's Details
// (spec §3 [StepToolCall]).
type StepToolCall struct {
	Kind StepToolCallKind `json:"kind"`

	// Function
	ID        string  `json:"id,omitempty"`
	Name      string  `json:"name,omitempty"`
	Arguments string  `json:"arguments,omitempty"`
	Output    *string `json:"output,omitempty"`

	// Retrieval
	RetrievalMetadata map[string]string `json:"retrieval_metadata,omitempty"`

	// Code
	InputCode string   `json:"input_code,omitempty"`
	Outputs   []string `json:"outputs,omitempty"`
}

// StepDetails is the sum-typed payload of a RunStep: either a single
// message reference or an ordered list of StepToolCall.
type StepDetails struct {
	MessageID *uuid.UUID     `json:"message_id,omitempty"`
	ToolCalls []StepToolCall `json:"tool_calls,omitempty"`
}

func (d *StepDetails) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}

func (d *StepDetails) Scan(src any) error {
	if src == nil {
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		if s, ok := src.(string); ok {
			b = []byte(s)
		} else {
			return nil
		}
	}
	return json.Unmarshal(b, d)
}

// RunStep is an audit record of one unit of work performed during a run
// (spec §3 [RunStep]).
type RunStep struct {
	bun.BaseModel `bun:"table:executor.run_steps,alias:rs"`

	ID          uuid.UUID    `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	RunID       uuid.UUID    `bun:"run_id,type:uuid,notnull"`
	AssistantID uuid.UUID    `bun:"assistant_id,type:uuid,notnull"`
	ThreadID    uuid.UUID    `bun:"thread_id,type:uuid,notnull"`
	UserID      string       `bun:"user_id,notnull"`
	Type        StepType     `bun:"type,notnull"`
	Status      Status       `bun:"status,notnull,default:'in_progress'"`
	Details     *StepDetails `bun:"details,type:jsonb"`

	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	CompletedAt *time.Time `bun:"completed_at"`
	FailedAt    *time.Time `bun:"failed_at"`
	CancelledAt *time.Time `bun:"cancelled_at"`
	ExpiredAt   *time.Time `bun:"expired_at"`
}
