package config

import (
	"errors"
	"fmt"
	"math"
	"net"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ParseDuration parses a Go duration string at the given config path. Empty
// or zero yields def; negative values are rejected.
func ParseDuration(path, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}

// CronParser accepts standard 5-field specs and descriptors like "@daily".
var CronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate checks everything that can be checked without I/O. All problems
// are reported together.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	dur := func(path, raw string) {
		_, err := ParseDuration(path, raw, 0)
		add(err)
	}
	oneOf := func(path, v string, allowed ...string) {
		v = strings.ToLower(strings.TrimSpace(v))
		for _, a := range allowed {
			if v == a {
				return
			}
		}
		add(fmt.Errorf("%s: unknown value %q (want one of %s)", path, v, strings.Join(allowed, ", ")))
	}

	oneOf("storage.driver", cfg.Storage.Driver, "", "none", "memory", "mem", "file", "sqlite", "sqlite3", "postgres", "postgresql", "pg", "redis")
	dur("storage.busy_timeout", cfg.Storage.BusyTimeout)

	if r := cfg.Selector.RadiusKm; r < 0 || math.IsNaN(r) || math.IsInf(r, 0) {
		add(fmt.Errorf("selector.radius_km: must be a positive number, got %v", r))
	}
	dur("selector.timeout", cfg.Selector.Timeout)

	if cfg.Dispatch.Workers < 0 {
		add(fmt.Errorf("dispatch.workers: must be >= 0"))
	}
	dur("dispatch.send_timeout", cfg.Dispatch.SendTimeout)

	ch := cfg.Channels
	if ch.Email.Enabled {
		oneOf("channels.email.driver", ch.Email.Driver, "smtp", "log")
		if strings.EqualFold(ch.Email.Driver, "smtp") && (strings.TrimSpace(ch.Email.SMTP.Host) == "" || strings.TrimSpace(ch.Email.SMTP.From) == "") {
			add(errors.New("channels.email.smtp: host and from are required"))
		}
	}
	if ch.SMS.Enabled {
		oneOf("channels.sms.driver", ch.SMS.Driver, "http", "log")
		if strings.EqualFold(ch.SMS.Driver, "http") && strings.TrimSpace(ch.SMS.HTTP.URL) == "" {
			add(errors.New("channels.sms.http.url is required"))
		}
		dur("channels.sms.http.timeout", ch.SMS.HTTP.Timeout)
	}
	if ch.Push.Enabled {
		oneOf("channels.push.driver", ch.Push.Driver, "webpush", "telegram", "log")
		dur("channels.push.webpush.ttl", ch.Push.WebPush.TTL)
		dur("channels.push.telegram.timeout", ch.Push.Telegram.Timeout)
	}
	for path, t := range map[string]Throttle{"channels.email.throttle": ch.Email.Throttle, "channels.sms.throttle": ch.SMS.Throttle, "channels.push.throttle": ch.Push.Throttle} {
		if t.RatePerSec < 0 || t.Burst < 0 {
			add(fmt.Errorf("%s: rate_per_sec and burst must be >= 0", path))
		}
	}

	dur("http.read_header_timeout", cfg.HTTP.ReadHeaderTimeout)
	dur("http.announce_timeout", cfg.HTTP.AnnounceTimeout)
	if pp := cfg.HTTP.Pprof; pp.Enabled && strings.TrimSpace(pp.Token) == "" && !pp.AllowInsecure && !isLoopbackAddr(cfg.HTTP.Addr) {
		add(errors.New("http.pprof: token is required on a non-loopback addr (or set allow_insecure)"))
	}

	dur("report_log.retention", cfg.ReportLog.Retention)
	if s := strings.TrimSpace(cfg.ReportLog.PruneSchedule); s != "" {
		if _, err := CronParser.Parse(s); err != nil {
			add(fmt.Errorf("report_log.prune_schedule: %w", err))
		}
	}
	return errors.Join(errs...)
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil || h == "" {
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
