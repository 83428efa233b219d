// Package smtprelay is the mail relay driver of the email channel.
package smtprelay

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"freshshare/internal/transport"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// StartTLS is attempted whenever the server advertises it unless disabled.
	DisableStartTLS bool
}

type Relay struct {
	cfg Config
	now func() time.Time
}

var _ transport.Mailer = (*Relay)(nil)

func New(cfg Config) (*Relay, error) {
	cfg.Host = strings.TrimSpace(cfg.Host)
	cfg.From = strings.TrimSpace(cfg.From)
	if cfg.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	if cfg.From == "" {
		return nil, errors.New("smtp from address is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	return &Relay{cfg: cfg, now: time.Now}, nil
}

func (r *Relay) SendMail(ctx context.Context, m transport.Mail) error {
	to := strings.TrimSpace(m.To)
	if to == "" || strings.ContainsAny(to, "\r\n") {
		return transport.ErrInvalidAddress
	}

	addr := net.JoinHostPort(r.cfg.Host, strconv.Itoa(r.cfg.Port))
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return r.ctxErr(ctx, fmt.Errorf("dial %s: %w", addr, err))
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	// net/smtp has no context support; closing the conn unblocks it.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	c, err := smtp.NewClient(conn, r.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return r.ctxErr(ctx, fmt.Errorf("smtp handshake: %w", err))
	}
	defer c.Close()

	if !r.cfg.DisableStartTLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: r.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
				return r.ctxErr(ctx, fmt.Errorf("starttls: %w", err))
			}
		}
	}
	if r.cfg.Username != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(smtp.PlainAuth("", r.cfg.Username, r.cfg.Password, r.cfg.Host)); err != nil {
				return r.ctxErr(ctx, fmt.Errorf("smtp auth: %w", err))
			}
		}
	}

	if err := c.Mail(r.cfg.From); err != nil {
		return r.ctxErr(ctx, fmt.Errorf("smtp MAIL FROM: %w", err))
	}
	if err := c.Rcpt(to); err != nil {
		return r.ctxErr(ctx, fmt.Errorf("smtp RCPT TO: %w", err))
	}
	w, err := c.Data()
	if err != nil {
		return r.ctxErr(ctx, fmt.Errorf("smtp DATA: %w", err))
	}
	if _, err := w.Write(buildMessage(r.cfg.From, to, m.Subject, m.Body, r.now())); err != nil {
		_ = w.Close()
		return r.ctxErr(ctx, fmt.Errorf("smtp write: %w", err))
	}
	if err := w.Close(); err != nil {
		return r.ctxErr(ctx, fmt.Errorf("smtp end data: %w", err))
	}
	return r.ctxErr(ctx, c.Quit())
}

// ctxErr prefers the context error so callers can tell a deadline from a
// protocol failure.
func (r *Relay) ctxErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	return err
}

func buildMessage(from, to, subject, body string, at time.Time) []byte {
	var b bytes.Buffer
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("Date: " + at.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")

	body = strings.ReplaceAll(body, "\r\n", "\n")
	for _, line := range strings.Split(body, "\n") {
		b.WriteString(line)
		b.WriteString("\r\n")
	}
	return b.Bytes()
}
