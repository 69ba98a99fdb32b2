package conversation

import (
	"time"

	"github.com/Abraxas-365/supportflow/pkg/kernel"
)

// Conversation is a customer chat as seen by the workflow engine
type Conversation struct {
	ID                    kernel.ConversationID `json:"id"`
	TenantID              kernel.TenantID       `json:"tenant_id"`
	Platform              string                `json:"platform"`
	CustomerPhoneNumber   string                `json:"customer_phone_number"`
	IntegratedPhoneNumber string                `json:"integrated_phone_number"`
	MessageCount          int                   `json:"message_count"`
	AIAutoReply           bool                  `json:"ai_auto_reply"`
	StartedAt             time.Time             `json:"started_at"`
	UpdatedAt             time.Time             `json:"updated_at"`
}

// IsFirstMessage reports whether the conversation holds a single message
func (c *Conversation) IsFirstMessage() bool {
	return c.MessageCount == 1
}
