package transport

import (
	"context"

	logx "freshshare/pkg/logx"
)

// LogGateway implements every gateway by writing the composed message to the
// log. It is the "log" driver used in development and dry runs.
type LogGateway struct {
	log logx.Logger
}

func NewLogGateway(log logx.Logger) *LogGateway {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &LogGateway{log: log}
}

func (g *LogGateway) SendMail(ctx context.Context, m Mail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.log.Info("mail (log driver)", logx.String("to", m.To), logx.String("subject", m.Subject), logx.Int("body_bytes", len(m.Body)))
	return nil
}

func (g *LogGateway) SendSMS(ctx context.Context, m SMS) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.log.Info("sms (log driver)", logx.String("to", m.To), logx.String("text", m.Text))
	return nil
}

func (g *LogGateway) Push(ctx context.Context, p Push) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.log.Info("push (log driver)", logx.Int("token_len", len(p.Token)), logx.String("title", p.Title), logx.String("body", p.Body))
	return nil
}
