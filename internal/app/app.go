// Package app wires configuration, storage, channels, the dispatch engine
// and the ops surface into one daemon and applies config hot reloads.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"freshshare/internal/channel"
	"freshshare/internal/config"
	"freshshare/internal/eventbus"
	"freshshare/internal/fanout"
	"freshshare/internal/httpapi"
	"freshshare/internal/metrics"
	"freshshare/internal/notifier"
	"freshshare/internal/proximity"
	"freshshare/internal/reportlog"
	"freshshare/internal/runtime/supervisor"
	"freshshare/internal/storage"
	logx "freshshare/pkg/logx"
)

type App struct {
	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store    storage.Store
	metrics  *metrics.Metrics
	selector *proximity.Selector
	engine   *notifier.Engine
	fanout   *fanout.Service
	reports  *reportlog.Service
	http     *httpapi.Server

	channels  *channelSet
	templates *channel.Templates
}

// New loads the config at cfgPath (with secrets overlaid) and builds every
// component. Nothing runs until Start.
func New(cfgPath string, secrets config.Secrets) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfgm.SetSecrets(secrets)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.NewService(mapLoggingConfig(cfg))
	log = log.With(logx.Component("app"))
	cfgm.SetLogger(log.With(logx.Component("config")))

	a := &App{
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		bus:      eventbus.New(),
		metrics:  metrics.New(),
		channels: newChannelSet(),
	}
	if err := a.build(cfg); err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(cfg *config.Config) error {
	root := a.logs.Logger()

	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return err
	} else if enabled {
		st, err := storage.Open(sc, root.With(logx.Component("storage")))
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		a.store = st
		a.log.Info("storage enabled", logx.String("driver", sc.Driver))
	} else {
		a.log.Warn("storage disabled; announcements will fail selection")
	}

	selCfg, err := mapSelectorConfig(cfg)
	if err != nil {
		return err
	}
	var recipients storage.RecipientStore
	if a.store != nil {
		recipients = a.store
	}
	a.selector = proximity.New(selCfg, recipients, root.With(logx.Component("selector")))

	dispCfg, err := mapDispatchConfig(cfg)
	if err != nil {
		return err
	}
	a.engine = notifier.New(dispCfg, notifier.NewRegistry(), root.With(logx.Component("notifier")), a.bus)
	a.engine.SetObserver(a.metrics)

	tmpl, err := channel.NewTemplates(cfg.Templates)
	if err != nil {
		return fmt.Errorf("templates: %w", err)
	}
	a.templates = tmpl
	syncChannels(channelNames, cfg, tmpl, a.channels, a.engine.Registry(), root.With(logx.Component("channels")))
	a.metrics.SetChannelsAttached(a.engine.Registry().Count())

	a.fanout = fanout.New(fanout.Config{RadiusKm: cfg.Selector.RadiusKm}, a.selector, a.engine, root.With(logx.Component("fanout")))
	a.fanout.SetObserver(a.metrics)

	if cfg.ReportLog.Enabled && a.store != nil {
		rlCfg, err := mapReportLogConfig(cfg)
		if err != nil {
			return err
		}
		a.reports = reportlog.New(rlCfg, a.store, a.bus, root.With(logx.Component("reportlog")))
	}

	httpCfg, announceTimeout, err := mapHTTPConfig(cfg)
	if err != nil {
		return err
	}
	if httpCfg.Addr != "" {
		var pprof *httpapi.PprofConfig
		if cfg.HTTP.Pprof.Enabled {
			pprof = &httpapi.PprofConfig{Token: cfg.HTTP.Pprof.Token}
		}
		router := httpapi.NewRouter(httpapi.Deps{
			Fanout:            a.fanout,
			Registry:          a.engine.Registry(),
			Channels:          a.channels,
			Recipients:        recipients,
			Metrics:           a.metrics.Handler(),
			OnChannelsChanged: a.metrics.SetChannelsAttached,
			AnnounceTimeout:   announceTimeout,
			Pprof:             pprof,
		}, root.With(logx.Component("http")))
		a.http = httpapi.NewServer(httpCfg, router, root.With(logx.Component("http")))
	}
	return nil
}

// Fanout is the publish hook for in-process callers.
func (a *App) Fanout() *fanout.Service { return a.fanout }

// Done is closed when the app supervisor context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	if a.http != nil {
		a.sup.Go("http", a.http.Run)
	}
	if a.reports != nil {
		a.sup.GoRestart("reportlog", a.reports.Run, time.Second, 30*time.Second)
	}

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go("eventbus.log", func(c context.Context) error {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return nil
			case e, ok := <-events:
				if !ok {
					return nil
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return nil
			case next, ok := <-sub:
				if !ok {
					return nil
				}
				// Coalesce bursts: only the newest config matters.
			drain:
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							next = newer
						}
					default:
						break drain
					}
				}
				a.reload(last, next)
				last = next
			}
		}
	})
	a.sup.GoRestart("config.watch", a.cfgm.Watch, time.Second, 30*time.Second)

	a.log.Info("app started", logx.Int("channels", a.engine.Registry().Count()), logx.Bool("http", a.http != nil), logx.Bool("report_log", a.reports != nil))
	return nil
}

// reload applies a validated config. Storage, HTTP and report log enablement
// need a restart; everything else is applied live.
func (a *App) reload(oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)

	for _, s := range sections {
		if s == "storage" || s == "http" {
			a.log.Warn("config section changed; restart required", logx.String("section", s))
		}
	}

	a.logs.Apply(mapLoggingConfig(newCfg))

	if c, err := mapSelectorConfig(newCfg); err != nil {
		a.log.Warn("invalid selector config; keeping previous", logx.Err(err))
	} else {
		a.selector.Apply(c)
	}
	a.fanout.Apply(fanout.Config{RadiusKm: newCfg.Selector.RadiusKm})

	if c, err := mapDispatchConfig(newCfg); err != nil {
		a.log.Warn("invalid dispatch config; keeping previous", logx.Err(err))
	} else {
		a.engine.Apply(c)
	}

	names := config.ChangedChannels(oldCfg, newCfg)
	if !equalTemplates(oldCfg.Templates, newCfg.Templates) {
		tmpl, err := channel.NewTemplates(newCfg.Templates)
		if err != nil {
			a.log.Warn("invalid templates; keeping previous", logx.Err(err))
		} else {
			a.templates = tmpl
			names = channelNames
		}
	}
	if len(names) > 0 {
		syncChannels(names, newCfg, a.templates, a.channels, a.engine.Registry(), a.log.With(logx.Component("channels")))
		a.metrics.SetChannelsAttached(a.engine.Registry().Count())
	}

	if a.reports != nil {
		if c, err := mapReportLogConfig(newCfg); err != nil {
			a.log.Warn("invalid report_log config; keeping previous", logx.Err(err))
		} else {
			a.reports.Apply(c)
		}
	}
	if (a.reports != nil) != (newCfg.ReportLog.Enabled && a.store != nil) {
		a.log.Warn("report_log.enabled changed; restart required")
	}

	a.log.Info("config reloaded", fields...)
}

func equalTemplates(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	a.log.Info("stopping", logx.String("reason", string(reason)))

	step := func(name string, limit time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, limit)
		defer cancel()
		if err := fn(stepCtx); err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	}

	// The HTTP server drains in-flight announcements inside its own loop.
	if a.sup != nil {
		step("supervisor", 15*time.Second, a.sup.Stop)
	}
	step("storage", 2*time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped")
	return a.logs.Close()
}
