package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"freshshare/internal/channel"
	"freshshare/internal/domain"
	"freshshare/internal/fanout"
	"freshshare/internal/notifier"
	"freshshare/internal/proximity"
	"freshshare/internal/storage"
	logx "freshshare/pkg/logx"
)

type stubChannel string

func (s stubChannel) Name() string { return string(s) }
func (s stubChannel) Send(context.Context, domain.Event, domain.Recipient) channel.Outcome {
	return channel.Delivery()
}

type catalog map[string]channel.Channel

func (c catalog) Lookup(name string) (channel.Channel, bool) {
	ch, ok := c[name]
	return ch, ok
}

type fakeAnnouncer struct {
	err error
	got domain.Event
}

func (f *fakeAnnouncer) Announce(_ context.Context, ev domain.Event) (notifier.Report, error) {
	f.got = ev
	if f.err != nil {
		return notifier.Report{}, f.err
	}
	return notifier.Report{ID: "rep-1", EventID: ev.ID, Attempts: 3, Delivered: 3}, nil
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	h := NewRouter(Deps{Registry: notifier.NewRegistry()}, logx.Nop())
	rec := do(t, h, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestAttachDetach(t *testing.T) {
	email, sms := stubChannel("email"), stubChannel("sms")
	reg := notifier.NewRegistry(email)
	last := -1
	h := NewRouter(Deps{
		Registry:          reg,
		Channels:          catalog{"email": email, "sms": sms},
		OnChannelsChanged: func(n int) { last = n },
	}, logx.Nop())

	if rec := do(t, h, http.MethodPost, "/api/channels/sms/attach", ""); rec.Code != http.StatusOK {
		t.Fatalf("attach sms = %d", rec.Code)
	}
	if reg.Count() != 2 || last != 2 {
		t.Fatalf("count = %d, last = %d", reg.Count(), last)
	}
	if rec := do(t, h, http.MethodPost, "/api/channels/fax/attach", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("attach unknown = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/channels/email/detach", ""); rec.Code != http.StatusOK {
		t.Fatalf("detach email = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/channels/email/detach", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("second detach = %d", rec.Code)
	}

	rec := do(t, h, http.MethodGet, "/api/channels", "")
	var body struct {
		Channels []channelView `json:"channels"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Channels) != 1 || body.Channels[0].Name != "sms" {
		t.Fatalf("channels = %+v", body.Channels)
	}
}

func TestAnnounceStatusCodes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		body string
		want int
	}{
		{"ok", nil, `{"id":"L1","publisher_id":"p"}`, http.StatusOK},
		{"bad json", nil, `{"id":`, http.StatusUnprocessableEntity},
		{"unknown field", nil, `{"id":"L1","bogus":1}`, http.StatusUnprocessableEntity},
		{"invalid event", fmt.Errorf("%w: id is required", fanout.ErrInvalidEvent), `{}`, http.StatusUnprocessableEntity},
		{"invalid origin", fmt.Errorf("%w: latitude", proximity.ErrInvalidArgument), `{"id":"L1"}`, http.StatusUnprocessableEntity},
		{"unavailable", fmt.Errorf("%w: %w", proximity.ErrSelectionUnavailable, context.DeadlineExceeded), `{"id":"L1"}`, http.StatusServiceUnavailable},
		{"other", fmt.Errorf("boom"), `{"id":"L1"}`, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fa := &fakeAnnouncer{err: tc.err}
			h := NewRouter(Deps{Fanout: fa, Registry: notifier.NewRegistry(), AnnounceTimeout: time.Second}, logx.Nop())
			rec := do(t, h, http.MethodPost, "/api/announce", tc.body)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.want, rec.Body.String())
			}
			if tc.want == http.StatusOK {
				var rep notifier.Report
				if err := json.Unmarshal(rec.Body.Bytes(), &rep); err != nil || rep.EventID != "L1" || rep.Delivered != 3 {
					t.Fatalf("report = %+v, err = %v", rep, err)
				}
			}
		})
	}
}

func TestUpsertRecipient(t *testing.T) {
	st := storage.NewMemory()
	h := NewRouter(Deps{Registry: notifier.NewRegistry(), Recipients: st}, logx.Nop())

	rec := do(t, h, http.MethodPost, "/api/recipients", `{"id":"r1","name":"Ana","verified":true,"location":{"lat":1,"lon":2}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("upsert = %d %s", rec.Code, rec.Body.String())
	}
	got, err := st.FindRecipientsInRadius(context.Background(), 1, 2, 1, "")
	if err != nil || len(got) != 1 || got[0].ID != "r1" {
		t.Fatalf("find = %+v, %v", got, err)
	}

	if rec := do(t, h, http.MethodPost, "/api/recipients", `{"name":"no id"}`); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid upsert = %d", rec.Code)
	}

	h = NewRouter(Deps{Registry: notifier.NewRegistry()}, logx.Nop())
	if rec := do(t, h, http.MethodPost, "/api/recipients", `{"id":"r1"}`); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("disabled storage = %d", rec.Code)
	}
}

func TestServerShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := NewServer(Config{}, NewRouter(Deps{Registry: notifier.NewRegistry()}, logx.Nop()), logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}
}

func TestPprofRequiresToken(t *testing.T) {
	h := NewRouter(Deps{Registry: notifier.NewRegistry(), Pprof: &PprofConfig{Token: "s3cret"}}, logx.Nop())
	if rec := do(t, h, http.MethodGet, "/debug/pprof/", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token = %d", rec.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/cmdline", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("with token = %d", rec.Code)
	}

	off := NewRouter(Deps{Registry: notifier.NewRegistry()}, logx.Nop())
	if rec := do(t, off, http.MethodGet, "/debug/pprof/", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("disabled pprof = %d", rec.Code)
	}
}
