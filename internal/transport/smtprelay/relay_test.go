package smtprelay

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"freshshare/internal/transport"
)

func TestBuildMessageHeadersAndCRLF(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	msg := string(buildMessage("noreply@fresh.test", "ana@example.com", "Fresh bread nearby", "line1\nline2", at))

	for _, want := range []string{
		"From: noreply@fresh.test\r\n",
		"To: ana@example.com\r\n",
		"Subject: Fresh bread nearby\r\n",
		"Content-Type: text/plain; charset=UTF-8\r\n",
		"\r\n\r\nline1\r\nline2\r\n",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestNewRequiresHostAndFrom(t *testing.T) {
	if _, err := New(Config{From: "a@b"}); err == nil {
		t.Fatalf("expected error without host")
	}
	if _, err := New(Config{Host: "mail.local"}); err == nil {
		t.Fatalf("expected error without from")
	}
	r, err := New(Config{Host: "mail.local", From: "a@b"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if r.cfg.Port != 587 {
		t.Fatalf("default port = %d, want 587", r.cfg.Port)
	}
}

func TestSendMailRejectsHeaderInjection(t *testing.T) {
	r, err := New(Config{Host: "127.0.0.1", Port: 1, From: "a@b"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = r.SendMail(context.Background(), transport.Mail{To: "x@y\r\nBcc: evil@z"})
	if !errors.Is(err, transport.ErrInvalidAddress) {
		t.Fatalf("err = %v, want ErrInvalidAddress", err)
	}
}

func TestSendMailHonoursCanceledContext(t *testing.T) {
	r, err := New(Config{Host: "127.0.0.1", Port: 1, From: "a@b"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = r.SendMail(ctx, transport.Mail{To: "x@y"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
