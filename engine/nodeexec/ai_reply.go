package nodeexec

import (
	"context"
	"strings"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/supportflow/catalog"
	"github.com/Abraxas-365/supportflow/engine"
)

// AIReplyExecutor asks the generator for a reply and delivers it
type AIReplyExecutor struct {
	generator engine.Generator
	gateway   engine.MessageGateway
}

var _ engine.ActionExecutor = (*AIReplyExecutor)(nil)

func NewAIReplyExecutor(generator engine.Generator, gateway engine.MessageGateway) *AIReplyExecutor {
	return &AIReplyExecutor{
		generator: generator,
		gateway:   gateway,
	}
}

func (e *AIReplyExecutor) BlockKey() string { return catalog.BlockAIReply }

func (e *AIReplyExecutor) Execute(ctx context.Context, inv engine.ActionInvocation) error {
	ev := inv.Event

	reply, err := e.generator.Generate(ctx, ev.Text, inv.Value("instructions"))
	if err != nil {
		return errx.Wrap(err, "ai generation failed", errx.TypeExternal).
			WithDetail("conversation_id", ev.ConversationID.String())
	}
	if strings.TrimSpace(reply) == "" {
		return errx.New("ai generation returned an empty reply", errx.TypeExternal).
			WithDetail("conversation_id", ev.ConversationID.String())
	}

	return e.gateway.Send(ctx, ev.TenantID, ev.ConversationID, reply)
}
