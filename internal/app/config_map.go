package app

import (
	"fmt"
	"strings"
	"time"

	"freshshare/internal/config"
	"freshshare/internal/httpapi"
	"freshshare/internal/notifier"
	"freshshare/internal/proximity"
	"freshshare/internal/reportlog"
	"freshshare/internal/storage"
	logx "freshshare/pkg/logx"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		JSON:    cfg.Logging.JSON,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

// mapStorageConfig returns enabled=false when no driver is configured.
func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	out := storage.Config{
		Driver:   driver,
		Path:     strings.TrimSpace(sc.Path),
		DSN:      strings.TrimSpace(sc.DSN),
		MaxConns: sc.MaxConns,
		Redis: storage.RedisConfig{
			Addr:      strings.TrimSpace(sc.Redis.Addr),
			Password:  sc.Redis.Password,
			DB:        sc.Redis.DB,
			KeyPrefix: sc.Redis.KeyPrefix,
		},
	}
	switch driver {
	case "file":
		if out.Path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=file")
		}
	case "sqlite", "sqlite3":
		if out.Path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDuration("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		out.BusyTimeout = busy
	case "postgres", "postgresql", "pg":
		if out.DSN == "" {
			return storage.Config{}, false, fmt.Errorf("storage.dsn is required when storage.driver=postgres")
		}
	case "redis":
		if out.Redis.Addr == "" {
			return storage.Config{}, false, fmt.Errorf("storage.redis.addr is required when storage.driver=redis")
		}
	case "memory", "mem":
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
	return out, true, nil
}

func mapSelectorConfig(cfg *config.Config) (proximity.Config, error) {
	timeout, err := config.ParseDuration("selector.timeout", cfg.Selector.Timeout, 3*time.Second)
	if err != nil {
		return proximity.Config{}, err
	}
	return proximity.Config{Timeout: timeout}, nil
}

func mapDispatchConfig(cfg *config.Config) (notifier.Config, error) {
	timeout, err := config.ParseDuration("dispatch.send_timeout", cfg.Dispatch.SendTimeout, 10*time.Second)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{Workers: cfg.Dispatch.Workers, SendTimeout: timeout}, nil
}

func mapReportLogConfig(cfg *config.Config) (reportlog.Config, error) {
	retention, err := config.ParseDuration("report_log.retention", cfg.ReportLog.Retention, reportlog.DefaultRetention)
	if err != nil {
		return reportlog.Config{}, err
	}
	return reportlog.Config{
		Retention:     retention,
		PruneSchedule: cfg.ReportLog.PruneSchedule,
		Buffer:        cfg.ReportLog.Buffer,
	}, nil
}

func mapHTTPConfig(cfg *config.Config) (httpapi.Config, time.Duration, error) {
	rht, err := config.ParseDuration("http.read_header_timeout", cfg.HTTP.ReadHeaderTimeout, 5*time.Second)
	if err != nil {
		return httpapi.Config{}, 0, err
	}
	announce, err := config.ParseDuration("http.announce_timeout", cfg.HTTP.AnnounceTimeout, time.Minute)
	if err != nil {
		return httpapi.Config{}, 0, err
	}
	return httpapi.Config{Addr: strings.TrimSpace(cfg.HTTP.Addr), ReadHeaderTimeout: rht}, announce, nil
}
