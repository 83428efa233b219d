package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"freshshare/internal/domain"
	logx "freshshare/pkg/logx"
)

// Around Paris; 0.01 deg lat is ~1.1 km.
var origin = domain.Point{Lat: 48.8566, Lon: 2.3522}

func at(dLat float64) *domain.Point {
	return &domain.Point{Lat: origin.Lat + dLat, Lon: origin.Lon}
}

func seed() []domain.Recipient {
	return []domain.Recipient{
		{ID: "near", Name: "Near", Email: "near@x.test", Verified: true, Location: at(0.01)},
		{ID: "mid", Name: "Mid", Phone: "+1", Verified: true, Location: at(0.03)},
		{ID: "far", Verified: true, Location: at(0.5)},
		{ID: "unverified", Verified: false, Location: at(0.01)},
		{ID: "nolocation", Verified: true},
		{ID: "pub", Verified: true, Location: at(0.0)},
	}
}

func checkRadius(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()
	for _, r := range seed() {
		if err := st.UpsertRecipient(ctx, r); err != nil {
			t.Fatalf("UpsertRecipient(%s): %v", r.ID, err)
		}
	}
	got, err := st.FindRecipientsInRadius(ctx, origin.Lat, origin.Lon, 5, "pub")
	if err != nil {
		t.Fatalf("FindRecipientsInRadius: %v", err)
	}
	if len(got) != 2 || got[0].ID != "near" || got[1].ID != "mid" {
		t.Fatalf("got %v, want [near mid]", ids(got))
	}
	if got[0].Email != "near@x.test" || got[0].Location == nil {
		t.Fatalf("fields not round-tripped: %+v", got[0])
	}

	// Upsert replaces: unverify "near".
	if err := st.UpsertRecipient(ctx, domain.Recipient{ID: "near", Verified: false, Location: at(0.01)}); err != nil {
		t.Fatalf("UpsertRecipient: %v", err)
	}
	got, _ = st.FindRecipientsInRadius(ctx, origin.Lat, origin.Lon, 5, "")
	if len(got) != 2 || got[0].ID != "pub" || got[1].ID != "mid" {
		t.Fatalf("after update got %v, want [pub mid]", ids(got))
	}
}

func checkReports(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	old := ReportEntry{ID: "r-old", EventID: "e1", At: now.Add(-48 * time.Hour), Attempts: 3, Delivered: 3}
	recent := ReportEntry{ID: "r-new", EventID: "e2", At: now, Attempts: 2, Failed: 1, FailuresJSON: `[{"recipient_id":"a"}]`}
	for _, e := range []ReportEntry{old, recent} {
		if err := st.AppendReport(ctx, e); err != nil {
			t.Fatalf("AppendReport: %v", err)
		}
	}
	n, err := st.PruneReports(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PruneReports: %v", err)
	}
	if n != 1 {
		t.Fatalf("pruned %d, want 1", n)
	}
	if n, _ := st.PruneReports(ctx, now.Add(-24*time.Hour)); n != 0 {
		t.Fatalf("second prune removed %d", n)
	}
}

func ids(rs []domain.Recipient) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.ID)
	}
	return out
}

func TestMemoryStore(t *testing.T) {
	st := NewMemory()
	checkRadius(t, st)
	checkReports(t, st)
	if len(st.Reports()) != 1 {
		t.Fatalf("reports = %d", len(st.Reports()))
	}
	_ = st.Close()
	if _, err := st.FindRecipientsInRadius(context.Background(), 0, 0, 1, ""); err != ErrClosed {
		t.Fatalf("err after close = %v", err)
	}
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fanout.db")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	checkRadius(t, st)
	checkReports(t, st)
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopen from snapshot.
	st, err = Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	got, err := st.FindRecipientsInRadius(context.Background(), origin.Lat, origin.Lon, 5, "")
	if err != nil || len(got) != 2 {
		t.Fatalf("after reopen got %v err=%v", ids(got), err)
	}
}

func TestFileStoreReplaysJournalWithoutClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fanout.db")
	st, err := openFile(Config{Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("openFile: %v", err)
	}
	if err := st.UpsertRecipient(context.Background(), domain.Recipient{ID: "a", Verified: true, Location: at(0)}); err != nil {
		t.Fatalf("UpsertRecipient: %v", err)
	}
	fs := st.(*fileStore)
	_ = fs.journalFile.Sync()

	st2, err := openFile(Config{Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	got, _ := st2.FindRecipientsInRadius(context.Background(), origin.Lat, origin.Lon, 1, "")
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("journal not replayed: %v", ids(got))
	}
	_ = st2.Close()
	_ = st.Close()
}

func TestSQLiteStore(t *testing.T) {
	st, err := Open(Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "fanout.sqlite")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()
	checkRadius(t, st)
	checkReports(t, st)
}

func TestOpenDriverSelection(t *testing.T) {
	st, err := Open(Config{}, logx.Nop())
	if st != nil || err != nil {
		t.Fatalf("disabled storage: st=%v err=%v", st, err)
	}
	if _, err := Open(Config{Driver: "cassette"}, logx.Nop()); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	for _, cfg := range []Config{{Driver: "file"}, {Driver: "sqlite"}, {Driver: "postgres"}, {Driver: "redis"}} {
		if _, err := Open(cfg, logx.Nop()); err == nil {
			t.Fatalf("%s without location: expected error", cfg.Driver)
		}
	}
}

func TestUpsertRejectsInvalid(t *testing.T) {
	st := NewMemory()
	if err := st.UpsertRecipient(context.Background(), domain.Recipient{}); err != ErrInvalidRecipient {
		t.Fatalf("empty id err = %v", err)
	}
	if err := st.UpsertRecipient(context.Background(), domain.Recipient{ID: "x", Location: &domain.Point{Lat: 91}}); err != ErrInvalidRecipient {
		t.Fatalf("bad location err = %v", err)
	}
}

func TestRedisHashRoundTrip(t *testing.T) {
	in := domain.Recipient{ID: "a", Name: "A", Email: "a@x", Verified: true, Location: &domain.Point{Lat: 1.5, Lon: -2.25}}
	h := recipientToHash(in)
	m := make(map[string]string, len(h))
	for k, v := range h {
		m[k] = v.(string)
	}
	out, err := recipientFromHash(m)
	if err != nil {
		t.Fatalf("recipientFromHash: %v", err)
	}
	if out.ID != "a" || !out.Verified || out.Location == nil || out.Location.Lon != -2.25 {
		t.Fatalf("round trip = %+v", out)
	}
	if _, err := recipientFromHash(map[string]string{"name": "x"}); err == nil {
		t.Fatalf("expected error without id")
	}
}
