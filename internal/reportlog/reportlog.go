// Package reportlog persists completed dispatch reports and prunes old ones
// on a cron schedule. Persistence is best-effort: a slow or failing store
// never holds up a dispatch, and reports that do not fit the subscription
// buffer are dropped by the event bus.
package reportlog

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"freshshare/internal/eventbus"
	"freshshare/internal/notifier"
	"freshshare/internal/storage"
	logx "freshshare/pkg/logx"
)

const (
	DefaultRetention     = 720 * time.Hour
	DefaultPruneSchedule = "@daily"
	defaultBuffer        = 64
	writeTimeout         = 5 * time.Second
)

type Config struct {
	Retention     time.Duration
	PruneSchedule string
	Buffer        int
}

func (c Config) withDefaults() Config {
	if c.Retention <= 0 {
		c.Retention = DefaultRetention
	}
	if strings.TrimSpace(c.PruneSchedule) == "" {
		c.PruneSchedule = DefaultPruneSchedule
	}
	if c.Buffer <= 0 {
		c.Buffer = defaultBuffer
	}
	return c
}

type Service struct {
	mu     sync.Mutex
	cfg    Config
	c      *cron.Cron
	parser cron.Parser
	runCtx context.Context

	store storage.ReportStore
	bus   eventbus.Bus
	log   logx.Logger
	now   func() time.Time
}

func New(cfg Config, store storage.ReportStore, bus eventbus.Bus, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:    cfg.withDefaults(),
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		store:  store,
		bus:    bus,
		log:    log,
		now:    time.Now,
	}
}

// Apply updates retention and reschedules pruning if the service is running.
func (s *Service) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	old := s.cfg
	s.cfg = cfg
	var prev *cron.Cron
	if s.c != nil && old.PruneSchedule != cfg.PruneSchedule {
		prev = s.swapCronLocked()
	}
	s.mu.Unlock()
	stopCron(prev)
}

// Run subscribes to completed dispatches and persists them until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	buffer := s.cfg.Buffer
	s.runCtx = ctx
	prev := s.swapCronLocked()
	s.mu.Unlock()
	stopCron(prev)

	events, unsub := s.bus.Subscribe(buffer, notifier.EventDispatchCompleted)
	defer unsub()
	defer func() {
		s.mu.Lock()
		prev := s.c
		s.c = nil
		s.mu.Unlock()
		stopCron(prev)
	}()

	s.log.Info("report log started", logx.Int("buffer", buffer))
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			rep, ok := ev.Data.(notifier.Report)
			if !ok {
				continue
			}
			s.persist(ctx, rep)
		}
	}
}

func (s *Service) persist(ctx context.Context, rep notifier.Report) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	if err := s.store.AppendReport(wctx, Entry(rep)); err != nil {
		s.log.Warn("report append failed", logx.String("report", rep.ID), logx.Err(err))
	}
}

// Prune deletes reports older than the retention window.
func (s *Service) Prune(ctx context.Context) (int, error) {
	s.mu.Lock()
	retention := s.cfg.Retention
	s.mu.Unlock()
	before := s.now().Add(-retention)
	n, err := s.store.PruneReports(ctx, before)
	if err != nil {
		s.log.Warn("report prune failed", logx.Err(err))
		return 0, err
	}
	s.log.Info("reports pruned", logx.Int("removed", n), logx.Time("before", before))
	return n, nil
}

// swapCronLocked starts a cron for the current schedule and returns the one
// it replaced. The caller stops the old cron after releasing s.mu, since a
// running prune job may be waiting for it.
func (s *Service) swapCronLocked() *cron.Cron {
	prev := s.c
	ctx := s.runCtx
	spec := s.cfg.PruneSchedule
	s.c = cron.New(cron.WithParser(s.parser))
	if _, err := s.c.AddFunc(spec, func() {
		pctx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		_, _ = s.Prune(pctx)
	}); err != nil {
		s.log.Warn("invalid prune schedule; pruning disabled", logx.String("schedule", spec), logx.Err(err))
	}
	s.c.Start()
	s.log.Debug("report prune scheduled", logx.String("schedule", spec))
	return prev
}

func stopCron(c *cron.Cron) {
	if c != nil {
		<-c.Stop().Done()
	}
}

// Entry converts a dispatch report to its persisted form.
func Entry(r notifier.Report) storage.ReportEntry {
	e := storage.ReportEntry{
		ID:          r.ID,
		EventID:     r.EventID,
		PublisherID: r.PublisherID,
		At:          r.StartedAt,
		Recipients:  r.Recipients,
		Attempts:    r.Attempts,
		Delivered:   r.Delivered,
		Skipped:     r.Skipped,
		Failed:      r.Failed,
		Canceled:    r.Canceled,
		TookMS:      r.Duration.Milliseconds(),
	}
	if len(r.Failures) > 0 {
		if b, err := json.Marshal(r.Failures); err == nil {
			e.FailuresJSON = string(b)
		}
	}
	return e
}
