package engine

import (
	"strconv"
	"time"

	"github.com/Abraxas-365/supportflow/catalog"
	"github.com/Abraxas-365/supportflow/pkg/kernel"
	"github.com/Abraxas-365/supportflow/workflow"
)

// ============================================================================
// Event
// ============================================================================

// MessageType is the content type of an inbound message
type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeAudio    MessageType = "audio"
	MessageTypeVideo    MessageType = "video"
	MessageTypeDocument MessageType = "document"
)

// Event is one inbound message together with the conversation attributes
// the matcher tests against
type Event struct {
	TenantID                 kernel.TenantID       `json:"tenant_id"`
	ConversationID           kernel.ConversationID `json:"conversation_id"`
	Text                     string                `json:"text"`
	MessageType              MessageType           `json:"message_type"`
	Platform                 string                `json:"platform"`
	IntegratedPhoneNumber    string                `json:"integrated_phone_number"`
	CustomerPhoneNumber      string                `json:"customer_phone_number"`
	ConversationMessageCount int                   `json:"conversation_message_count"`
	ConversationStartedAt    time.Time             `json:"conversation_started_at"`
}

// IsValid reports whether the event can be routed to a tenant conversation
func (e Event) IsValid() bool {
	return !e.TenantID.IsEmpty() && !e.ConversationID.IsEmpty()
}

// Attribute returns the event attribute a catalog field compares against,
// rendered as text. Numbers and dates are parsed back by the matcher.
func (e Event) Attribute(attr catalog.Attribute) (string, bool) {
	switch attr {
	case catalog.AttrText:
		return e.Text, true
	case catalog.AttrMessageType:
		return string(e.MessageType), true
	case catalog.AttrPlatform:
		return e.Platform, true
	case catalog.AttrIntegratedPhoneNumber:
		return e.IntegratedPhoneNumber, true
	case catalog.AttrCustomerPhoneNumber:
		return e.CustomerPhoneNumber, true
	case catalog.AttrConversationMessageCount:
		return strconv.Itoa(e.ConversationMessageCount), true
	case catalog.AttrConversationStartedAt:
		if e.ConversationStartedAt.IsZero() {
			return "", true
		}
		return e.ConversationStartedAt.UTC().Format(time.RFC3339Nano), true
	}
	return "", false
}

// Env exposes the event to event-match predicates
func (e Event) Env() map[string]any {
	return map[string]any{
		"Text":                  e.Text,
		"MessageType":           string(e.MessageType),
		"Platform":              e.Platform,
		"IntegratedPhoneNumber": e.IntegratedPhoneNumber,
		"CustomerPhoneNumber":   e.CustomerPhoneNumber,
		"MessageCount":          e.ConversationMessageCount,
		"StartedAt":             e.ConversationStartedAt,
	}
}

// ============================================================================
// Run state
// ============================================================================

// RunState is the state of one workflow within an evaluation run
type RunState string

const (
	StateAwaitingTrigger RunState = "awaiting_trigger"
	StateMatching        RunState = "matching"
	StateExecuting       RunState = "executing"
	StateDone            RunState = "done"
	StateExcepted        RunState = "excepted"
	StateAborted         RunState = "aborted"
)

// IsTerminal reports whether no further transition is possible
func (s RunState) IsTerminal() bool {
	return s == StateDone || s == StateExcepted || s == StateAborted
}

// ActionRecord is one executed action block
type ActionRecord struct {
	NodeID   string `json:"node_id"`
	BlockKey string `json:"block_key"`
	Index    int    `json:"index"`
	Error    string `json:"error,omitempty"`
}

// Failed reports whether the block execution failed
func (a ActionRecord) Failed() bool {
	return a.Error != ""
}

// RunResult is the outcome of evaluating one workflow against one event
type RunResult struct {
	WorkflowID kernel.WorkflowID       `json:"workflow_id"`
	State      RunState                `json:"state"`
	Status     workflow.RunStatus      `json:"status,omitempty"`
	Actions    []ActionRecord          `json:"actions,omitempty"`
	Scheduled  []kernel.ContinuationID `json:"scheduled,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

// Acted reports whether the run executed an action or scheduled a delay
func (r RunResult) Acted() bool {
	return len(r.Actions) > 0 || len(r.Scheduled) > 0
}

// ============================================================================
// Decision
// ============================================================================

// Outcome is the overall response decided for an event
type Outcome string

const (
	OutcomeExecuted Outcome = "executed"
	OutcomeSample   Outcome = "sample"
	OutcomeMove     Outcome = "move"
	OutcomeIgnore   Outcome = "ignore"
	OutcomeNone     Outcome = "none"
)

// Decision is the result of evaluating an event against a tenant's enabled
// workflows
type Decision struct {
	Outcome    Outcome           `json:"outcome"`
	WorkflowID kernel.WorkflowID `json:"workflow_id,omitempty"`
	Runs       []RunResult       `json:"runs"`
	Reply      string            `json:"reply,omitempty"`
}

// Winner returns the run of the workflow that acted on the event
func (d Decision) Winner() (RunResult, bool) {
	if d.Outcome != OutcomeExecuted {
		return RunResult{}, false
	}
	for _, r := range d.Runs {
		if r.WorkflowID == d.WorkflowID {
			return r, true
		}
	}
	return RunResult{}, false
}

// ============================================================================
// Continuation
// ============================================================================

// Continuation is a run paused on a delay node
type Continuation struct {
	ID             kernel.ContinuationID `json:"id"`
	TenantID       kernel.TenantID       `json:"tenant_id"`
	WorkflowID     kernel.WorkflowID     `json:"workflow_id"`
	ConversationID kernel.ConversationID `json:"conversation_id"`
	NodeID         string                `json:"node_id"`
	Depth          int                   `json:"depth"`
	Visited        []string              `json:"visited"`
	Event          Event                 `json:"event"`
	ResumeAt       time.Time             `json:"resume_at"`
	CreatedAt      time.Time             `json:"created_at"`
}
