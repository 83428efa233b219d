package transport

import (
	"context"
	"errors"
)

// ErrInvalidAddress is returned by gateways that reject a contact address
// before attempting delivery (for example a device token that does not parse).
var ErrInvalidAddress = errors.New("invalid contact address")

type Mail struct {
	To      string
	Subject string
	Body    string
}

type SMS struct {
	To   string
	Text string
}

// Push is a mobile/browser push payload. Token is the opaque, gateway-specific
// device token stored on the recipient.
type Push struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

// Mailer is the outbound mail relay.
type Mailer interface {
	SendMail(ctx context.Context, m Mail) error
}

// SMSGateway is the outbound SMS provider.
type SMSGateway interface {
	SendSMS(ctx context.Context, m SMS) error
}

// PushGateway is the outbound push provider.
type PushGateway interface {
	Push(ctx context.Context, p Push) error
}
