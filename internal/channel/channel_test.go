package channel

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"freshshare/internal/domain"
	"freshshare/internal/transport"
)

type fakeTransport struct {
	mu    sync.Mutex
	err   error
	block bool
	mails []transport.Mail
	sms   []transport.SMS
	push  []transport.Push
}

func (f *fakeTransport) wait(ctx context.Context) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.err
}

func (f *fakeTransport) SendMail(ctx context.Context, m transport.Mail) error {
	f.mu.Lock()
	f.mails = append(f.mails, m)
	f.mu.Unlock()
	return f.wait(ctx)
}

func (f *fakeTransport) SendSMS(ctx context.Context, m transport.SMS) error {
	f.mu.Lock()
	f.sms = append(f.sms, m)
	f.mu.Unlock()
	return f.wait(ctx)
}

func (f *fakeTransport) Push(ctx context.Context, p transport.Push) error {
	f.mu.Lock()
	f.push = append(f.push, p)
	f.mu.Unlock()
	return f.wait(ctx)
}

func sampleEvent() domain.Event {
	return domain.Event{
		ID:          "L1",
		PublisherID: "pub",
		Title:       "Sourdough bread",
		Quantity:    3,
		Unit:        "loaves",
		ExpiresAt:   time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC),
		Pickup:      domain.Location{Point: domain.Point{Lat: 48.85, Lon: 2.35}, Address: "1 Rue de Rivoli"},
	}
}

func TestEmailComposesAndSends(t *testing.T) {
	ft := &fakeTransport{}
	ch := NewEmail(ft, Options{})
	out := ch.Send(context.Background(), sampleEvent(), domain.Recipient{ID: "u1", Name: "Ana", Email: "ana@fresh.test"})
	if out.Status != Delivered {
		t.Fatalf("outcome = %+v", out)
	}
	if len(ft.mails) != 1 {
		t.Fatalf("mails = %d", len(ft.mails))
	}
	m := ft.mails[0]
	if m.To != "ana@fresh.test" || !strings.Contains(m.Subject, "Sourdough bread") {
		t.Fatalf("unexpected mail: %+v", m)
	}
	for _, want := range []string{"Hello Ana", "Quantity: 3 loaves", "1 Rue de Rivoli", "2026-05-01 18:00 UTC"} {
		if !strings.Contains(m.Body, want) {
			t.Fatalf("body missing %q:\n%s", want, m.Body)
		}
	}
}

func TestMissingContactIsSkipped(t *testing.T) {
	ft := &fakeTransport{}
	r := domain.Recipient{ID: "u1"}
	for _, ch := range []Channel{NewEmail(ft, Options{}), NewSMS(ft, Options{}), NewPush(ft, Options{})} {
		out := ch.Send(context.Background(), sampleEvent(), r)
		if out.Status != Skipped || out.Reason != ReasonMissingContact {
			t.Fatalf("%s: outcome = %+v", ch.Name(), out)
		}
	}
	if len(ft.mails)+len(ft.sms)+len(ft.push) != 0 {
		t.Fatalf("transport called for missing contact")
	}
}

func TestTransportErrorIsFailedWithReason(t *testing.T) {
	ft := &fakeTransport{err: errors.New("connection refused")}
	out := NewSMS(ft, Options{}).Send(context.Background(), sampleEvent(), domain.Recipient{ID: "u1", Phone: "+1555"})
	if out.Status != Failed || out.Reason != "transport:connection refused" {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestDeadlineIsTimeout(t *testing.T) {
	ft := &fakeTransport{block: true}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	out := NewPush(ft, Options{}).Send(ctx, sampleEvent(), domain.Recipient{ID: "u1", DeviceToken: "42"})
	if out.Status != Failed || out.Reason != ReasonTimeout {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestPushPayload(t *testing.T) {
	ft := &fakeTransport{}
	NewPush(ft, Options{}).Send(context.Background(), sampleEvent(), domain.Recipient{ID: "u1", DeviceToken: "tok"})
	if len(ft.push) != 1 {
		t.Fatalf("push = %d", len(ft.push))
	}
	p := ft.push[0]
	if p.Title != "New Food Available Nearby!" || p.Body != "Sourdough bread - 3 loaves" {
		t.Fatalf("unexpected push: %+v", p)
	}
	if p.Data["listing_id"] != "L1" || p.Data["type"] != "new_listing" {
		t.Fatalf("unexpected data: %+v", p.Data)
	}
}

func TestLimiterWaitPastDeadlineIsTimeout(t *testing.T) {
	ft := &fakeTransport{}
	lim := NewLimiter(0.5, 1)
	ch := NewSMS(ft, Options{Limiter: lim})
	r := domain.Recipient{ID: "u1", Phone: "+1"}
	if out := ch.Send(context.Background(), sampleEvent(), r); out.Status != Delivered {
		t.Fatalf("first send = %+v", out)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if out := ch.Send(ctx, sampleEvent(), r); out.Status != Failed || out.Reason != ReasonTimeout {
		t.Fatalf("throttled send = %+v", out)
	}
	if len(ft.sms) != 1 {
		t.Fatalf("sms = %d, want 1", len(ft.sms))
	}
}

func TestTemplateOverrides(t *testing.T) {
	tm, err := NewTemplates(map[string]string{TmplSMS: "{{.Event.Title}}!"})
	if err != nil {
		t.Fatalf("NewTemplates: %v", err)
	}
	ft := &fakeTransport{}
	NewSMS(ft, Options{Templates: tm}).Send(context.Background(), sampleEvent(), domain.Recipient{ID: "u1", Phone: "+1"})
	if ft.sms[0].Text != "Sourdough bread!" {
		t.Fatalf("text = %q", ft.sms[0].Text)
	}

	if _, err := NewTemplates(map[string]string{"nope": "x"}); err == nil {
		t.Fatalf("expected unknown template error")
	}
	if _, err := NewTemplates(map[string]string{TmplSMS: "{{"}); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestInternalReasonIsSingleLine(t *testing.T) {
	out := Internal("boom\nstack")
	if out.Reason != "internal:boom stack" {
		t.Fatalf("reason = %q", out.Reason)
	}
	if !out.Status.Valid() || Status(0).Valid() {
		t.Fatalf("Valid() mismatch")
	}
}

func TestLongReasonTruncatesOnRuneBoundary(t *testing.T) {
	out := Transport(errors.New(strings.Repeat("a", maxReasonLen-1) + "é trailing"))
	reason := strings.TrimPrefix(out.Reason, ReasonTransport+":")
	if !utf8.ValidString(out.Reason) {
		t.Fatalf("reason is not valid UTF-8: %q", out.Reason)
	}
	if len(reason) != maxReasonLen-1 || strings.Contains(reason, "é") {
		t.Fatalf("truncated len = %d", len(reason))
	}
}
