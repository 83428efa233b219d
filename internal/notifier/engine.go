package notifier

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"freshshare/internal/channel"
	"freshshare/internal/domain"
	"freshshare/internal/eventbus"
	logx "freshshare/pkg/logx"
)

// Engine fans one event out to recipients over the registry's channels.
//
// It is safe for concurrent use; Apply may run while dispatches are in flight.
type Engine struct {
	mu  sync.Mutex
	cfg Config
	obs Observer

	reg *Registry
	log logx.Logger
	bus eventbus.Bus
}

func New(cfg Config, reg *Registry, log logx.Logger, bus eventbus.Bus) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	if reg == nil {
		reg = NewRegistry()
	}
	return &Engine{cfg: cfg.withDefaults(), reg: reg, log: log, bus: bus}
}

func (e *Engine) Registry() *Registry { return e.reg }

func (e *Engine) Apply(cfg Config) {
	e.mu.Lock()
	e.cfg = cfg.withDefaults()
	e.mu.Unlock()
}

func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

func (e *Engine) SetObserver(o Observer) {
	e.mu.Lock()
	e.obs = o
	e.mu.Unlock()
}

type pair struct {
	seq int
	r   domain.Recipient
	ch  channel.Channel
}

// accumulator is the only state shared between workers.
type accumulator struct {
	mu       sync.Mutex
	rep      *Report
	failures []indexedFailure
}

type indexedFailure struct {
	seq int
	f   Failure
}

func (a *accumulator) record(seq int, r domain.Recipient, ch string, out channel.Outcome) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rep.Attempts++
	switch out.Status {
	case channel.Delivered:
		a.rep.Delivered++
		return
	case channel.Skipped:
		a.rep.Skipped++
	default:
		a.rep.Failed++
	}
	a.failures = append(a.failures, indexedFailure{seq: seq, f: Failure{RecipientID: r.ID, Channel: ch, Status: out.Status, Reason: out.Reason}})
}

// Notify delivers ev to every eligible recipient over every attached channel
// and returns the aggregate Report. It never returns an error.
func (e *Engine) Notify(ctx context.Context, ev domain.Event, recipients []domain.Recipient) Report {
	if ctx == nil {
		ctx = context.Background()
	}
	e.mu.Lock()
	cfg := e.cfg
	obs := e.obs
	e.mu.Unlock()

	start := time.Now()
	rep := Report{ID: uuid.NewString(), EventID: ev.ID, PublisherID: ev.PublisherID, StartedAt: start}

	targets := make([]domain.Recipient, 0, len(recipients))
	seen := make(map[string]struct{}, len(recipients))
	for _, r := range recipients {
		if ev.IsPublisher(r) {
			rep.Excluded++
			continue
		}
		if _, dup := seen[r.ID]; dup {
			rep.Duplicates++
			continue
		}
		seen[r.ID] = struct{}{}
		targets = append(targets, r)
	}
	rep.Recipients = len(targets)

	chans := e.reg.List()
	rep.Channels = make([]string, 0, len(chans))
	for _, ch := range chans {
		rep.Channels = append(rep.Channels, ch.Name())
	}

	log := e.log.With(logx.String("report", rep.ID), logx.Event(ev.ID))
	acc := &accumulator{rep: &rep}

	total := len(targets) * len(chans)
	if total > 0 {
		workers := cfg.Workers
		if workers > total {
			workers = total
		}
		work := make(chan pair)
		var wg sync.WaitGroup
		wg.Add(workers)
		for i := 0; i < workers; i++ {
			go func() {
				defer wg.Done()
				for p := range work {
					out, took := e.sendOne(ctx, cfg.SendTimeout, ev, p, log)
					acc.record(p.seq, p.r, p.ch.Name(), out)
					if obs != nil {
						obs.ObserveSend(p.ch.Name(), out, took)
					}
				}
			}()
		}

		seq := 0
	issue:
		for _, r := range targets {
			for _, ch := range chans {
				// Checked first so a canceled dispatch never races a ready worker.
				if ctx.Err() != nil {
					rep.Canceled = true
					break issue
				}
				select {
				case <-ctx.Done():
					rep.Canceled = true
					break issue
				case work <- pair{seq: seq, r: r, ch: ch}:
					seq++
				}
			}
		}
		close(work)
		wg.Wait()
	}

	sort.Slice(acc.failures, func(i, j int) bool { return acc.failures[i].seq < acc.failures[j].seq })
	if len(acc.failures) > 0 {
		rep.Failures = make([]Failure, 0, len(acc.failures))
		for _, f := range acc.failures {
			rep.Failures = append(rep.Failures, f.f)
		}
	}
	rep.Duration = time.Since(start)

	fields := []logx.Field{
		logx.Int("recipients", rep.Recipients),
		logx.Int("channels", len(chans)),
		logx.Int("delivered", rep.Delivered),
		logx.Int("skipped", rep.Skipped),
		logx.Int("failed", rep.Failed),
		logx.Duration("dur", rep.Duration),
	}
	switch {
	case rep.Canceled:
		log.Warn("dispatch canceled", append(fields, logx.Int("attempts", rep.Attempts), logx.Int("planned", total))...)
	case rep.Failed > 0:
		log.Warn("dispatch finished with failures", fields...)
	default:
		log.Info("dispatch finished", fields...)
	}

	if obs != nil {
		obs.ObserveDispatch(rep)
	}
	if e.bus != nil {
		e.bus.Publish(eventbus.Event{Type: EventDispatchCompleted, Time: time.Now(), Data: rep})
	}
	return rep
}

// sendOne runs one channel send bounded by timeout. The send context is
// detached from the dispatch context so issued sends are not aborted by
// cancellation. The engine stops waiting at the deadline even if the
// channel ignores its context.
func (e *Engine) sendOne(ctx context.Context, timeout time.Duration, ev domain.Event, p pair, log logx.Logger) (channel.Outcome, time.Duration) {
	start := time.Now()
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	done := make(chan channel.Outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("panic in channel send",
					logx.Channel(p.ch.Name()),
					logx.Recipient(p.r.ID),
					logx.Any("panic", rec),
					logx.String("stack", string(debug.Stack())))
				done <- channel.Internal(fmt.Sprintf("panic: %v", rec))
			}
		}()
		done <- p.ch.Send(sctx, ev, p.r)
	}()

	var out channel.Outcome
	select {
	case out = <-done:
	case <-sctx.Done():
		out = channel.Timeout()
	}
	if !out.Status.Valid() {
		log.Error("channel returned invalid outcome", logx.Channel(p.ch.Name()), logx.Int("status", int(out.Status)))
		out = channel.Internal("invalid outcome")
	}
	if out.Status != channel.Delivered {
		log.Debug("send not delivered",
			logx.Channel(p.ch.Name()),
			logx.Recipient(p.r.ID),
			logx.String("status", out.Status.String()),
			logx.String("reason", out.Reason))
	}
	return out, time.Since(start)
}
