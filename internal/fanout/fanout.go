// Package fanout is the publish hook: it selects recipients near an event's
// pickup point and hands them to the dispatch engine.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"freshshare/internal/domain"
	"freshshare/internal/notifier"
	logx "freshshare/pkg/logx"
)

// DefaultRadiusKm is used when Config.RadiusKm is not set.
const DefaultRadiusKm = 5.0

var ErrInvalidEvent = errors.New("invalid event")

type Config struct {
	RadiusKm float64
}

// Selector picks recipients for an origin.
type Selector interface {
	Select(ctx context.Context, origin domain.Point, radiusKm float64, exclude string) ([]domain.Recipient, error)
}

// Notifier dispatches one event to recipients.
type Notifier interface {
	Notify(ctx context.Context, ev domain.Event, recipients []domain.Recipient) notifier.Report
}

// SelectionObserver is told about every selection failure.
type SelectionObserver interface {
	ObserveSelectionError(err error)
}

type Service struct {
	mu  sync.Mutex
	cfg Config
	obs SelectionObserver

	sel Selector
	ntf Notifier
	log logx.Logger
}

func New(cfg Config, sel Selector, ntf Notifier, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, sel: sel, ntf: ntf, log: log}
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *Service) SetObserver(o SelectionObserver) {
	s.mu.Lock()
	s.obs = o
	s.mu.Unlock()
}

func (s *Service) RadiusKm() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.RadiusKm > 0 {
		return s.cfg.RadiusKm
	}
	return DefaultRadiusKm
}

// Announce notifies recipients near ev.Pickup, excluding the publisher. It is
// meant to run after the listing's publish transaction has committed. Only
// selection errors are returned; per-send faults stay in the Report.
func (s *Service) Announce(ctx context.Context, ev domain.Event) (notifier.Report, error) {
	if strings.TrimSpace(ev.ID) == "" {
		return notifier.Report{}, fmt.Errorf("%w: id is required", ErrInvalidEvent)
	}
	radius := s.RadiusKm()
	s.mu.Lock()
	obs := s.obs
	s.mu.Unlock()

	recipients, err := s.sel.Select(ctx, ev.Pickup.Point, radius, ev.PublisherID)
	if err != nil {
		if obs != nil {
			obs.ObserveSelectionError(err)
		}
		s.log.Warn("announce aborted: selection failed", logx.Event(ev.ID), logx.Err(err))
		return notifier.Report{}, err
	}
	s.log.Debug("announce", logx.Event(ev.ID), logx.Int("recipients", len(recipients)), logx.Float64("radius_km", radius))
	return s.ntf.Notify(ctx, ev, recipients), nil
}
