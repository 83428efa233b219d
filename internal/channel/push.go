package channel

import (
	"context"
	"strings"

	"freshshare/internal/domain"
	"freshshare/internal/transport"
)

const NamePush = "push"

type Push struct {
	gw  transport.PushGateway
	opt Options
}

var _ Channel = (*Push)(nil)

func NewPush(gw transport.PushGateway, opt Options) *Push {
	return &Push{gw: gw, opt: opt}
}

func (c *Push) Name() string { return NamePush }

func (c *Push) Send(ctx context.Context, ev domain.Event, r domain.Recipient) Outcome {
	token := strings.TrimSpace(r.DeviceToken)
	if token == "" {
		return Skip(ReasonMissingContact)
	}
	msg := Message{Event: ev, Recipient: r}
	t := c.opt.templates()
	title, err := t.Render(TmplPushTitle, msg)
	if err != nil {
		return Internal(err.Error())
	}
	body, err := t.Render(TmplPushBody, msg)
	if err != nil {
		return Internal(err.Error())
	}
	p := transport.Push{
		Token: token,
		Title: strings.TrimSpace(title),
		Body:  strings.TrimSpace(body),
		Data:  map[string]string{"listing_id": ev.ID, "type": "new_listing"},
	}
	return deliver(ctx, c.opt.Limiter, func(ctx context.Context) error {
		return c.gw.Push(ctx, p)
	})
}
