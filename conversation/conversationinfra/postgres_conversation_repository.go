package conversationinfra

import (
	"context"
	"database/sql"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/supportflow/conversation"
	"github.com/Abraxas-365/supportflow/pkg/kernel"
	"github.com/jmoiron/sqlx"
)

type PostgresConversationRepository struct {
	db *sqlx.DB
}

var _ conversation.ConversationRepository = (*PostgresConversationRepository)(nil)

func NewPostgresConversationRepository(db *sqlx.DB) *PostgresConversationRepository {
	return &PostgresConversationRepository{db: db}
}

// dbConversation is an intermediate struct for database operations
type dbConversation struct {
	ID                    string         `db:"id"`
	TenantID              string         `db:"tenant_id"`
	Platform              sql.NullString `db:"platform"`
	CustomerPhoneNumber   sql.NullString `db:"customer_phone_number"`
	IntegratedPhoneNumber sql.NullString `db:"integrated_phone_number"`
	MessageCount          int            `db:"message_count"`
	AIAutoReply           bool           `db:"ai_auto_reply"`
	StartedAt             time.Time      `db:"started_at"`
	UpdatedAt             time.Time      `db:"updated_at"`
}

func toDomainConversation(c dbConversation) *conversation.Conversation {
	return &conversation.Conversation{
		ID:                    kernel.ConversationID(c.ID),
		TenantID:              kernel.TenantID(c.TenantID),
		Platform:              c.Platform.String,
		CustomerPhoneNumber:   c.CustomerPhoneNumber.String,
		IntegratedPhoneNumber: c.IntegratedPhoneNumber.String,
		MessageCount:          c.MessageCount,
		AIAutoReply:           c.AIAutoReply,
		StartedAt:             c.StartedAt,
		UpdatedAt:             c.UpdatedAt,
	}
}

// FindByID counts messages on read so the engine sees the message that
// triggered the event
func (r *PostgresConversationRepository) FindByID(ctx context.Context, tenantID kernel.TenantID, id kernel.ConversationID) (*conversation.Conversation, error) {
	query := `
		SELECT
			c.id, c.tenant_id, c.platform, c.customer_phone_number,
			c.integrated_phone_number, c.ai_auto_reply, c.started_at, c.updated_at,
			(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id) AS message_count
		FROM conversations c
		WHERE c.id = $1 AND c.tenant_id = $2`

	var dbConv dbConversation
	err := r.db.GetContext(ctx, &dbConv, query, id.String(), tenantID.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, conversation.ErrConversationNotFound().WithDetail("conversation_id", id.String())
		}
		return nil, errx.Wrap(err, "failed to find conversation", errx.TypeInternal).
			WithDetail("conversation_id", id.String())
	}

	return toDomainConversation(dbConv), nil
}

func (r *PostgresConversationRepository) SetAIAutoReply(ctx context.Context, tenantID kernel.TenantID, id kernel.ConversationID, enabled bool) error {
	query := `UPDATE conversations SET ai_auto_reply = $1, updated_at = NOW() WHERE id = $2 AND tenant_id = $3`

	result, err := r.db.ExecContext(ctx, query, enabled, id.String(), tenantID.String())
	if err != nil {
		return errx.Wrap(err, "failed to update ai auto-reply", errx.TypeInternal).
			WithDetail("conversation_id", id.String())
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}
	if rowsAffected == 0 {
		return conversation.ErrConversationNotFound().WithDetail("conversation_id", id.String())
	}

	return nil
}
