// Package webpush delivers push notifications to browser subscriptions using
// VAPID. The recipient device token is the JSON-encoded PushSubscription.
package webpush

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	wp "github.com/SherClockHolmes/webpush-go"

	"freshshare/internal/transport"
)

// ErrGone means the push service reported the subscription as expired (HTTP 410).
var ErrGone = errors.New("push subscription gone")

type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subject         string
	TTLSeconds      int
	Topic           string
}

type Gateway struct {
	cfg    Config
	client *http.Client
}

type message struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

var _ transport.PushGateway = (*Gateway)(nil)

func New(client *http.Client, cfg Config) (*Gateway, error) {
	if cfg.VAPIDPublicKey == "" || cfg.VAPIDPrivateKey == "" || cfg.Subject == "" {
		return nil, errors.New("webpush requires vapid public key, private key and subject")
	}
	if cfg.TTLSeconds <= 0 {
		cfg.TTLSeconds = 60 * 60 * 6
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Gateway{cfg: cfg, client: client}, nil
}

func (g *Gateway) Push(ctx context.Context, p transport.Push) error {
	sub, err := parseSubscription(p.Token)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(message{Title: p.Title, Body: p.Body, Data: p.Data})
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	resp, err := wp.SendNotificationWithContext(ctx, payload, sub, &wp.Options{
		HTTPClient:      g.client,
		Subscriber:      g.cfg.Subject,
		VAPIDPublicKey:  g.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: g.cfg.VAPIDPrivateKey,
		TTL:             g.cfg.TTLSeconds,
		Urgency:         wp.UrgencyHigh,
		Topic:           g.cfg.Topic,
	})
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		return fmt.Errorf("webpush send to %s: %w", redactEndpoint(sub.Endpoint), err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		return nil
	case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
		return ErrGone
	default:
		return fmt.Errorf("webpush status %d from %s", resp.StatusCode, redactEndpoint(sub.Endpoint))
	}
}

func parseSubscription(token string) (*wp.Subscription, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, transport.ErrInvalidAddress
	}
	var sub wp.Subscription
	if err := json.Unmarshal([]byte(token), &sub); err != nil {
		return nil, fmt.Errorf("%w: %v", transport.ErrInvalidAddress, err)
	}
	if sub.Endpoint == "" || sub.Keys.P256dh == "" || sub.Keys.Auth == "" {
		return nil, fmt.Errorf("%w: incomplete subscription", transport.ErrInvalidAddress)
	}
	return &sub, nil
}

func redactEndpoint(endpoint string) string {
	if strings.HasPrefix(endpoint, "https://") || strings.HasPrefix(endpoint, "http://") {
		parts := strings.Split(endpoint, "/")
		if len(parts) >= 3 {
			return parts[0] + "//" + parts[2]
		}
	}
	return "unknown"
}
