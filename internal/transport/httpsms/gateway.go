// Package httpsms posts SMS messages to an HTTP gateway as JSON.
package httpsms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"freshshare/internal/transport"
)

type Config struct {
	URL    string
	Token  string
	Sender string
}

type Gateway struct {
	client *http.Client
	url    string
	token  string
	sender string
}

type payload struct {
	To   string `json:"to"`
	From string `json:"from,omitempty"`
	Text string `json:"text"`
}

var _ transport.SMSGateway = (*Gateway)(nil)

func New(client *http.Client, cfg Config) (*Gateway, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, errors.New("sms gateway url is required")
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Gateway{client: client, url: url, token: strings.TrimSpace(cfg.Token), sender: strings.TrimSpace(cfg.Sender)}, nil
}

func (g *Gateway) SendSMS(ctx context.Context, m transport.SMS) error {
	if strings.TrimSpace(m.To) == "" {
		return transport.ErrInvalidAddress
	}
	body, err := json.Marshal(payload{To: m.To, From: g.sender, Text: m.Text})
	if err != nil {
		return fmt.Errorf("marshal sms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		return fmt.Errorf("post sms gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms gateway status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
