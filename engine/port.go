package engine

import (
	"context"
	"time"

	"github.com/Abraxas-365/supportflow/catalog"
	"github.com/Abraxas-365/supportflow/conversation"
	"github.com/Abraxas-365/supportflow/pkg/kernel"
	"github.com/Abraxas-365/supportflow/workflow"
)

// ============================================================================
// Collaborators
// ============================================================================

// MessageGateway delivers outbound messages to a conversation
type MessageGateway interface {
	Send(ctx context.Context, tenantID kernel.TenantID, conversationID kernel.ConversationID, text string) error
	SendMedia(ctx context.Context, tenantID kernel.TenantID, conversationID kernel.ConversationID, file workflow.FileRef) error
}

// Generator produces an AI reply for a conversation
type Generator interface {
	Generate(ctx context.Context, message string, instructions string) (string, error)
}

// Mailer sends a plain text email
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// ConversationStore reads conversation attributes and flips the AI
// auto-reply toggle
type ConversationStore = conversation.ConversationRepository

// ============================================================================
// Delays
// ============================================================================

// DelayScheduler persists paused runs until they are due
type DelayScheduler interface {
	Schedule(ctx context.Context, c *Continuation, delay time.Duration) error
}

// ContinuationHandler resumes a due continuation
type ContinuationHandler func(ctx context.Context, c *Continuation) error

// ============================================================================
// Actions
// ============================================================================

// ActionInvocation is one action block about to be executed
type ActionInvocation struct {
	Event      Event
	WorkflowID kernel.WorkflowID
	NodeID     string
	Entry      catalog.Entry
	Fields     []workflow.ResolvedField
}

// Value returns the configured value of a field
func (a ActionInvocation) Value(key string) string {
	for _, f := range a.Fields {
		if f.Spec.Key == key {
			return f.Value.Value
		}
	}
	return ""
}

// Files returns the attachments configured on a field
func (a ActionInvocation) Files(key string) []workflow.FileRef {
	for _, f := range a.Fields {
		if f.Spec.Key == key {
			return f.Value.Files
		}
	}
	return nil
}

// ActionExecutor runs one kind of action block
type ActionExecutor interface {
	BlockKey() string
	Execute(ctx context.Context, inv ActionInvocation) error
}
