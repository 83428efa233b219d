package telegram

import (
	"context"
	"errors"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	"freshshare/internal/transport"
)

type fakeBot struct {
	delay time.Duration
	err   error
	to    tele.Recipient
	text  string
}

func (f *fakeBot) Send(to tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	time.Sleep(f.delay)
	f.to = to
	f.text, _ = what.(string)
	return &tele.Message{ID: 1}, f.err
}

func TestPushSendsToChat(t *testing.T) {
	fb := &fakeBot{}
	g := &Gateway{bot: fb}
	if err := g.Push(context.Background(), transport.Push{Token: "12345", Title: "New food", Body: "Bread - 3 loaves"}); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if fb.to.Recipient() != "12345" {
		t.Fatalf("recipient = %q", fb.to.Recipient())
	}
	if fb.text != "New food\nBread - 3 loaves" {
		t.Fatalf("text = %q", fb.text)
	}
}

func TestPushRejectsNonNumericToken(t *testing.T) {
	g := &Gateway{bot: &fakeBot{}}
	if err := g.Push(context.Background(), transport.Push{Token: "abc"}); !errors.Is(err, transport.ErrInvalidAddress) {
		t.Fatalf("err = %v, want ErrInvalidAddress", err)
	}
}

func TestPushReleasesCallerOnDeadline(t *testing.T) {
	g := &Gateway{bot: &fakeBot{delay: 500 * time.Millisecond}}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := g.Push(ctx, transport.Push{Token: "1"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
	if time.Since(start) > 300*time.Millisecond {
		t.Fatalf("Push blocked past its deadline")
	}
}

func TestNewRequiresToken(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error for empty token")
	}
}
