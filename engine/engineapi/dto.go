package engineapi

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Abraxas-365/supportflow/engine"
	"github.com/Abraxas-365/supportflow/pkg/kernel"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// EventRequest is an inbound message forwarded by the WhatsApp bridge.
// Conversation attributes are optional; missing ones are read from the
// conversation store.
type EventRequest struct {
	TenantID                 string     `json:"tenant_id" validate:"required"`
	ConversationID           string     `json:"conversation_id" validate:"required"`
	Text                     string     `json:"text" validate:"max=4096"`
	MessageType              string     `json:"message_type" validate:"omitempty,oneof=text image audio video document"`
	Platform                 string     `json:"platform"`
	IntegratedPhoneNumber    string     `json:"integrated_phone_number"`
	CustomerPhoneNumber      string     `json:"customer_phone_number"`
	ConversationMessageCount int        `json:"conversation_message_count" validate:"gte=0"`
	ConversationStartedAt    *time.Time `json:"conversation_started_at"`
}

func (r EventRequest) toEvent() engine.Event {
	ev := engine.Event{
		TenantID:                 kernel.NewTenantID(r.TenantID),
		ConversationID:           kernel.NewConversationID(r.ConversationID),
		Text:                     r.Text,
		MessageType:              engine.MessageType(r.MessageType),
		Platform:                 r.Platform,
		IntegratedPhoneNumber:    r.IntegratedPhoneNumber,
		CustomerPhoneNumber:      r.CustomerPhoneNumber,
		ConversationMessageCount: r.ConversationMessageCount,
	}
	if ev.MessageType == "" {
		ev.MessageType = engine.MessageTypeText
	}
	if r.ConversationStartedAt != nil {
		ev.ConversationStartedAt = *r.ConversationStartedAt
	}
	return ev
}

// PendingResponse reports the delayed runs still waiting
type PendingResponse struct {
	Pending int64 `json:"pending"`
}

func validationMessages(err error) []string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []string{err.Error()}
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		messages = append(messages, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return messages
}
