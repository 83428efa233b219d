package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFieldsAndWith(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug").With(Component("notifier"))
	log.Warn("send failed", Channel("sms"), Event("L1"), Err(errors.New("boom")))

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if m["err"] != "boom" && m["error"] != "boom" {
		t.Fatalf("error field missing: %s", buf.String())
	}
	for k, want := range map[string]string{"comp": "notifier", "channel": "sms", "event": "L1", "level": "warn", "message": "send failed"} {
		if m[k] != want {
			t.Fatalf("%s = %v, want %q (line %s)", k, m[k], want, buf.String())
		}
	}
	if c, _ := m["caller"].(string); !strings.HasPrefix(c, "logx_test.go:") {
		t.Fatalf("caller = %v", m["caller"])
	}
}

func TestLevelFiltersAndZeroValue(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "warn").Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info written at warn level: %s", buf.String())
	}
	var zero Logger
	if !zero.IsZero() {
		t.Fatalf("zero logger should report IsZero")
	}
	zero.Error("discarded")
	if Nop().IsZero() {
		t.Fatalf("Nop is a configured logger")
	}
}

func TestServiceKeepsFileAcrossLevelChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fanoutd.log")
	svc, log := NewService(Config{Level: "info", File: FileConfig{Enabled: true, Path: path}})
	defer svc.Close()

	log.Info("first")
	f := svc.file
	svc.Apply(Config{Level: "debug", File: FileConfig{Enabled: true, Path: path}})
	if svc.file != f {
		t.Fatalf("file reopened on level-only change")
	}
	log.Debug("second")

	svc.Apply(Config{Level: "debug"})
	if svc.file != nil {
		t.Fatalf("file should be closed when disabled")
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(b), "first") || !strings.Contains(string(b), "second") {
		t.Fatalf("log file = %q", b)
	}
}
