package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"freshshare/internal/channel"
	"freshshare/internal/notifier"
)

func value(t *testing.T, c prometheus.Metric) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	switch {
	case m.Counter != nil:
		return m.GetCounter().GetValue()
	case m.Gauge != nil:
		return m.GetGauge().GetValue()
	}
	t.Fatalf("unsupported metric type")
	return 0
}

func TestObserversCount(t *testing.T) {
	m := New()
	m.ObserveSend("email", channel.Delivery(), 10*time.Millisecond)
	m.ObserveSend("email", channel.Skip(channel.ReasonMissingContact), time.Millisecond)
	m.ObserveSend("sms", channel.Timeout(), time.Second)
	m.ObserveDispatch(notifier.Report{Duration: time.Second})
	m.ObserveDispatch(notifier.Report{Canceled: true})
	m.ObserveSelectionError(errors.New("db down"))
	m.SetChannelsAttached(3)

	if got := value(t, m.SendsTotal.WithLabelValues("email", "delivered")); got != 1 {
		t.Fatalf("email delivered = %v", got)
	}
	if got := value(t, m.SendsTotal.WithLabelValues("sms", "failed")); got != 1 {
		t.Fatalf("sms failed = %v", got)
	}
	if got := value(t, m.DispatchesTotal.WithLabelValues("true")); got != 1 {
		t.Fatalf("canceled dispatches = %v", got)
	}
	if got := value(t, m.SelectionErrors); got != 1 {
		t.Fatalf("selection errors = %v", got)
	}
	if got := value(t, m.ChannelsAttached); got != 3 {
		t.Fatalf("channels attached = %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveSend("push", channel.Delivery(), time.Millisecond)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `fanout_sends_total{channel="push",status="delivered"} 1`) {
		t.Fatalf("metrics output missing send counter:\n%s", body)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveSend("email", channel.Delivery(), 0)
	m.ObserveDispatch(notifier.Report{})
	m.ObserveSelectionError(nil)
	m.SetChannelsAttached(1)
}
