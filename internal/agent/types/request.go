package types

import (
	"strings"

	apperrors "github.com/lk2023060901/agent-gateway/internal/pkg/errors"
)

// Role of a chat message author
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ChatMessage is one message of a stateless conversation
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NormalizedRole lower-cases the role so "User" and "user" compare equal.
func (m ChatMessage) NormalizedRole() Role {
	return Role(strings.ToLower(string(m.Role)))
}

// ChatRequest carries a full conversation, oldest message first
type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
}

// Validate rejects a request without messages
func (r *ChatRequest) Validate() error {
	if len(r.Messages) == 0 {
		return apperrors.NewInvalidRequest("No messages found in request.")
	}
	return nil
}

// ChatThreadRequest is one turn of a possibly continued thread
type ChatThreadRequest struct {
	Message  string  `json:"message"`
	File     *string `json:"file,omitempty"`
	ThreadID *string `json:"thread_id,omitempty"`
}

// Validate rejects a turn without message text
func (r *ChatThreadRequest) Validate() error {
	if r.Message == "" {
		return apperrors.NewInvalidRequest("No messages found in request.")
	}
	return nil
}

// FileName returns the attached blob name, or "" when there is none.
func (r *ChatThreadRequest) FileName() string {
	if r.File == nil {
		return ""
	}
	return *r.File
}

// Thread returns the supplied thread id, or "" when a new thread is wanted.
func (r *ChatThreadRequest) Thread() string {
	if r.ThreadID == nil {
		return ""
	}
	return *r.ThreadID
}
