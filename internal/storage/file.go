package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"freshshare/internal/domain"
	logx "freshshare/pkg/logx"
)

// fileStore keeps everything in a few files next to cfg.Path:
//   - <prefix>.reports.jsonl               (append-only JSON Lines)
//   - <prefix>.recipients.snapshot.json    (periodic snapshot)
//   - <prefix>.recipients.journal.jsonl    (append-only upsert journal)
//
// The journal is compacted into the snapshot every compactEvery upserts and
// on Close. Pruning reports rewrites the reports file.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	reportsPath string
	reportsFile *os.File

	snapshotPath string
	journalFile  *os.File
	recipients   map[string]domain.Recipient

	upserts      int
	compactEvery int
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	st := &fileStore{
		log:          log,
		reportsPath:  prefix + ".reports.jsonl",
		snapshotPath: prefix + ".recipients.snapshot.json",
		recipients:   map[string]domain.Recipient{},
		compactEvery: 1000,
	}
	journalPath := prefix + ".recipients.journal.jsonl"

	if err := loadSnapshot(st.snapshotPath, st.recipients); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("recipient snapshot unreadable; starting from journal", logx.Err(err))
	}
	if err := replayJournal(journalPath, st.recipients); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	rf, err := os.OpenFile(st.reportsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		_ = rf.Close()
		return nil, err
	}
	st.reportsFile = rf
	st.journalFile = jf
	log.Debug("file store opened", logx.String("prefix", prefix), logx.Int("recipients", len(st.recipients)))
	return st, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return nil
	}
	errCompact := s.compactLocked()
	err1 := s.reportsFile.Close()
	err2 := s.journalFile.Close()
	s.reportsFile, s.journalFile = nil, nil
	return errors.Join(errCompact, err1, err2)
}

func (s *fileStore) FindRecipientsInRadius(ctx context.Context, lat, lon, radiusKm float64, excludeID string) ([]domain.Recipient, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.journalFile == nil {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	cands := make([]domain.Recipient, 0, len(s.recipients))
	for _, r := range s.recipients {
		cands = append(cands, cloneRecipient(r))
	}
	s.mu.Unlock()
	return eligible(cands, domain.Point{Lat: lat, Lon: lon}, radiusKm, excludeID), nil
}

func (s *fileStore) UpsertRecipient(ctx context.Context, r domain.Recipient) error {
	if err := validateRecipient(r); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return ErrClosed
	}
	if err := json.NewEncoder(s.journalFile).Encode(r); err != nil {
		return err
	}
	s.recipients[r.ID] = cloneRecipient(r)
	s.upserts++
	if s.upserts%s.compactEvery == 0 {
		if err := s.compactLocked(); err != nil {
			s.log.Debug("recipient compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) AppendReport(ctx context.Context, e ReportEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reportsFile == nil {
		return ErrClosed
	}
	return json.NewEncoder(s.reportsFile).Encode(e)
}

func (s *fileStore) PruneReports(ctx context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reportsFile == nil {
		return 0, ErrClosed
	}

	in, err := os.Open(s.reportsPath)
	if err != nil {
		return 0, err
	}
	var kept []ReportEntry
	removed := 0
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var e ReportEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			removed++
			continue
		}
		if e.At.Before(before) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	_ = in.Close()
	if err := sc.Err(); err != nil {
		return 0, err
	}
	if removed == 0 {
		return 0, nil
	}

	tmp := s.reportsPath + ".tmp"
	if err := writeJSONL(tmp, kept); err != nil {
		return 0, err
	}
	_ = s.reportsFile.Close()
	s.reportsFile = nil
	if err := os.Rename(tmp, s.reportsPath); err != nil {
		return 0, err
	}
	rf, err := os.OpenFile(s.reportsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return 0, err
	}
	s.reportsFile = rf
	return removed, nil
}

func (s *fileStore) compactLocked() error {
	tmp := s.snapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(s.recipients); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		return err
	}
	if err := s.journalFile.Truncate(0); err != nil {
		return err
	}
	_, err = s.journalFile.Seek(0, io.SeekEnd)
	return err
}

func writeJSONL(path string, entries []ReportEntry) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			_ = f.Close()
			return err
		}
	}
	return f.Close()
}

func loadSnapshot(path string, out map[string]domain.Recipient) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var m map[string]domain.Recipient
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return err
	}
	for k, v := range m {
		out[k] = v
	}
	return nil
}

func replayJournal(path string, out map[string]domain.Recipient) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r domain.Recipient
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		if r.ID == "" {
			continue
		}
		out[r.ID] = r
	}
	return sc.Err()
}
