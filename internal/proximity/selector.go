// Package proximity selects the recipients that should hear about an event
// at a given origin.
package proximity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"freshshare/internal/domain"
	"freshshare/internal/storage"
	logx "freshshare/pkg/logx"
)

var (
	ErrInvalidArgument = errors.New("invalid selection argument")
	// ErrSelectionUnavailable means the recipient store could not answer.
	// Callers must not treat it as "nobody is nearby".
	ErrSelectionUnavailable = errors.New("recipient selection unavailable")
)

type Config struct {
	// Timeout bounds the storage call. 0 means no extra bound beyond ctx.
	Timeout time.Duration
}

type Selector struct {
	mu    sync.Mutex
	cfg   Config
	store storage.RecipientStore
	log   logx.Logger
}

func New(cfg Config, store storage.RecipientStore, log logx.Logger) *Selector {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Selector{cfg: cfg, store: store, log: log}
}

func (s *Selector) Apply(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

// Select returns verified recipients with a stored location within radiusKm
// of origin, minus exclude, deduplicated by ID. Arguments are validated
// before any I/O.
func (s *Selector) Select(ctx context.Context, origin domain.Point, radiusKm float64, exclude string) ([]domain.Recipient, error) {
	if math.IsNaN(radiusKm) || math.IsInf(radiusKm, 0) || radiusKm <= 0 {
		return nil, fmt.Errorf("%w: radius must be a positive number of km, got %v", ErrInvalidArgument, radiusKm)
	}
	if !origin.Valid() {
		return nil, fmt.Errorf("%w: origin %v,%v out of range", ErrInvalidArgument, origin.Lat, origin.Lon)
	}
	if s.store == nil {
		return nil, fmt.Errorf("%w: no recipient store configured", ErrSelectionUnavailable)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	timeout := s.cfg.Timeout
	s.mu.Unlock()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	cands, err := s.store.FindRecipientsInRadius(ctx, origin.Lat, origin.Lon, radiusKm, exclude)
	if err == nil {
		// Drivers are not trusted to honour ctx.
		err = ctx.Err()
	}
	if err != nil {
		s.log.Warn("recipient selection failed",
			logx.Float64("lat", origin.Lat), logx.Float64("lon", origin.Lon),
			logx.Float64("radius_km", radiusKm), logx.Duration("dur", time.Since(start)), logx.Err(err))
		return nil, fmt.Errorf("%w: %w", ErrSelectionUnavailable, err)
	}

	out := make([]domain.Recipient, 0, len(cands))
	seen := make(map[string]struct{}, len(cands))
	for _, r := range cands {
		if !r.Verified || r.Location == nil || !r.Location.Valid() {
			continue
		}
		if exclude != "" && r.ID == exclude {
			continue
		}
		if _, dup := seen[r.ID]; dup {
			continue
		}
		if domain.DistanceKm(origin, *r.Location) > radiusKm {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	s.log.Debug("recipients selected",
		logx.Int("candidates", len(cands)), logx.Int("selected", len(out)),
		logx.Float64("radius_km", radiusKm), logx.Duration("dur", time.Since(start)))
	return out, nil
}
