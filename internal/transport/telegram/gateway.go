// Package telegram is a push gateway that delivers notifications as Telegram
// bot messages. The recipient device token is the numeric chat id.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"freshshare/internal/transport"
)

type Config struct {
	Token string
	// Timeout bounds the underlying Bot API HTTP call.
	Timeout time.Duration
}

type sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

type Gateway struct {
	bot sender
}

var _ transport.PushGateway = (*Gateway)(nil)

func New(cfg Config) (*Gateway, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	// Offline skips the getMe round-trip; this gateway never polls for updates.
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		Offline: true,
		Client:  &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	return &Gateway{bot: b}, nil
}

func (g *Gateway) Push(ctx context.Context, p transport.Push) error {
	chatID, err := strconv.ParseInt(strings.TrimSpace(p.Token), 10, 64)
	if err != nil || chatID == 0 {
		return transport.ErrInvalidAddress
	}
	text := p.Title
	if p.Body != "" {
		text += "\n" + p.Body
	}

	// telebot has no context support; the send keeps running on timeout but
	// the caller is released.
	done := make(chan error, 1)
	go func() {
		_, err := g.bot.Send(&tele.Chat{ID: chatID}, text, &tele.SendOptions{DisableWebPagePreview: true})
		done <- err
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
		return nil
	}
}
