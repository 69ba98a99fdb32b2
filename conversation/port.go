package conversation

import (
	"context"

	"github.com/Abraxas-365/supportflow/pkg/kernel"
)

// ConversationRepository reads conversation attributes and owns the AI
// auto-reply toggle
type ConversationRepository interface {
	FindByID(ctx context.Context, tenantID kernel.TenantID, id kernel.ConversationID) (*Conversation, error)
	SetAIAutoReply(ctx context.Context, tenantID kernel.TenantID, id kernel.ConversationID, enabled bool) error
}
