package channel

import (
	"context"
	"strings"

	"freshshare/internal/domain"
	"freshshare/internal/transport"
)

const NameEmail = "email"

type Email struct {
	mailer transport.Mailer
	opt    Options
}

var _ Channel = (*Email)(nil)

func NewEmail(m transport.Mailer, opt Options) *Email {
	return &Email{mailer: m, opt: opt}
}

func (c *Email) Name() string { return NameEmail }

func (c *Email) Send(ctx context.Context, ev domain.Event, r domain.Recipient) Outcome {
	to := strings.TrimSpace(r.Email)
	if to == "" {
		return Skip(ReasonMissingContact)
	}
	msg := Message{Event: ev, Recipient: r}
	t := c.opt.templates()
	subject, err := t.Render(TmplEmailSubject, msg)
	if err != nil {
		return Internal(err.Error())
	}
	body, err := t.Render(TmplEmailBody, msg)
	if err != nil {
		return Internal(err.Error())
	}
	return deliver(ctx, c.opt.Limiter, func(ctx context.Context) error {
		return c.mailer.SendMail(ctx, transport.Mail{To: to, Subject: strings.TrimSpace(subject), Body: body})
	})
}
