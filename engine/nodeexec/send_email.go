package nodeexec

import (
	"context"
	"net/mail"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/supportflow/catalog"
	"github.com/Abraxas-365/supportflow/engine"
)

type SendEmailExecutor struct {
	mailer engine.Mailer
}

var _ engine.ActionExecutor = (*SendEmailExecutor)(nil)

func NewSendEmailExecutor(mailer engine.Mailer) *SendEmailExecutor {
	return &SendEmailExecutor{
		mailer: mailer,
	}
}

func (e *SendEmailExecutor) BlockKey() string { return catalog.BlockSendEmail }

func (e *SendEmailExecutor) Execute(ctx context.Context, inv engine.ActionInvocation) error {
	to := inv.Value("to")
	if _, err := mail.ParseAddress(to); err != nil {
		return errx.Wrap(err, "invalid recipient", errx.TypeValidation).
			WithDetail("to", to)
	}

	return e.mailer.Send(ctx, to, inv.Value("subject"), inv.Value("body"))
}
