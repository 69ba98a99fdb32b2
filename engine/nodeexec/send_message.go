package nodeexec

import (
	"context"
	"strings"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/craftable/logx"
	"github.com/Abraxas-365/supportflow/catalog"
	"github.com/Abraxas-365/supportflow/engine"
)

type SendMessageExecutor struct {
	gateway engine.MessageGateway
}

var _ engine.ActionExecutor = (*SendMessageExecutor)(nil)

func NewSendMessageExecutor(gateway engine.MessageGateway) *SendMessageExecutor {
	return &SendMessageExecutor{
		gateway: gateway,
	}
}

func (e *SendMessageExecutor) BlockKey() string { return catalog.BlockSendMessage }

// Execute sends the literal text first, then each attachment in order
func (e *SendMessageExecutor) Execute(ctx context.Context, inv engine.ActionInvocation) error {
	text := inv.Value("text")
	files := inv.Files("files")
	if strings.TrimSpace(text) == "" && len(files) == 0 {
		return errx.New("send_message has neither text nor files", errx.TypeValidation).
			WithDetail("node_id", inv.NodeID)
	}

	ev := inv.Event
	if text != "" {
		if err := e.gateway.Send(ctx, ev.TenantID, ev.ConversationID, text); err != nil {
			return err
		}
	}

	for _, f := range files {
		if f.Pending() {
			return errx.New("attachment was never uploaded", errx.TypeInternal).
				WithDetail("file", f.Name)
		}
		if err := e.gateway.SendMedia(ctx, ev.TenantID, ev.ConversationID, f); err != nil {
			return err
		}
	}

	logx.Info("Sent message to conversation %s (%d attachments)", ev.ConversationID, len(files))
	return nil
}
