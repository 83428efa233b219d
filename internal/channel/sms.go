package channel

import (
	"context"
	"strings"

	"freshshare/internal/domain"
	"freshshare/internal/transport"
)

const NameSMS = "sms"

type SMS struct {
	gw  transport.SMSGateway
	opt Options
}

var _ Channel = (*SMS)(nil)

func NewSMS(gw transport.SMSGateway, opt Options) *SMS {
	return &SMS{gw: gw, opt: opt}
}

func (c *SMS) Name() string { return NameSMS }

func (c *SMS) Send(ctx context.Context, ev domain.Event, r domain.Recipient) Outcome {
	to := strings.TrimSpace(r.Phone)
	if to == "" {
		return Skip(ReasonMissingContact)
	}
	text, err := c.opt.templates().Render(TmplSMS, Message{Event: ev, Recipient: r})
	if err != nil {
		return Internal(err.Error())
	}
	return deliver(ctx, c.opt.Limiter, func(ctx context.Context) error {
		return c.gw.SendSMS(ctx, transport.SMS{To: to, Text: strings.TrimSpace(text)})
	})
}
