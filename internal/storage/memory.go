package storage

import (
	"context"
	"sync"
	"time"

	"freshshare/internal/domain"
)

// Memory is a process-local Store.
type Memory struct {
	mu         sync.RWMutex
	recipients map[string]domain.Recipient
	reports    []ReportEntry
	closed     bool
}

var _ Store = (*Memory)(nil)

func NewMemory(seed ...domain.Recipient) *Memory {
	m := &Memory{recipients: make(map[string]domain.Recipient, len(seed))}
	for _, r := range seed {
		m.recipients[r.ID] = cloneRecipient(r)
	}
	return m
}

func (m *Memory) FindRecipientsInRadius(ctx context.Context, lat, lon, radiusKm float64, excludeID string) ([]domain.Recipient, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	cands := make([]domain.Recipient, 0, len(m.recipients))
	for _, r := range m.recipients {
		cands = append(cands, cloneRecipient(r))
	}
	return eligible(cands, domain.Point{Lat: lat, Lon: lon}, radiusKm, excludeID), nil
}

func (m *Memory) UpsertRecipient(ctx context.Context, r domain.Recipient) error {
	if err := validateRecipient(r); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.recipients[r.ID] = cloneRecipient(r)
	return nil
}

func (m *Memory) AppendReport(ctx context.Context, e ReportEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	m.reports = append(m.reports, e)
	return nil
}

func (m *Memory) PruneReports(ctx context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	kept := m.reports[:0]
	n := 0
	for _, e := range m.reports {
		if e.At.Before(before) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	m.reports = kept
	return n, nil
}

// Reports returns a copy of the stored report entries.
func (m *Memory) Reports() []ReportEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ReportEntry(nil), m.reports...)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
