package httpsms

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"freshshare/internal/transport"
)

func TestSendSMSPostsJSONWithBearer(t *testing.T) {
	var got payload
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	g, err := New(srv.Client(), Config{URL: srv.URL, Token: "secret", Sender: "FreshShare"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := g.SendSMS(context.Background(), transport.SMS{To: "+15550100", Text: "bread"}); err != nil {
		t.Fatalf("SendSMS: %v", err)
	}
	if auth != "Bearer secret" {
		t.Fatalf("Authorization = %q", auth)
	}
	if got.To != "+15550100" || got.Text != "bread" || got.From != "FreshShare" {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestSendSMSNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g, _ := New(srv.Client(), Config{URL: srv.URL})
	err := g.SendSMS(context.Background(), transport.SMS{To: "+1", Text: "x"})
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("err = %v, want status 429 error", err)
	}
}

func TestSendSMSDeadlineSurfacesContextError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	g, _ := New(srv.Client(), Config{URL: srv.URL})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := g.SendSMS(ctx, transport.SMS{To: "+1", Text: "x"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
}

func TestSendSMSMissingNumber(t *testing.T) {
	g, _ := New(nil, Config{URL: "http://127.0.0.1:1"})
	if err := g.SendSMS(context.Background(), transport.SMS{}); !errors.Is(err, transport.ErrInvalidAddress) {
		t.Fatalf("err = %v, want ErrInvalidAddress", err)
	}
}
