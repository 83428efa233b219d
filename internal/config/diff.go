package config

import (
	"reflect"
	"strings"

	logx "freshshare/pkg/logx"
)

// SummarizeConfigChange returns the changed top-level sections and safe
// structured fields for logging. Secrets are never included; only whether
// they are set.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 24)

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}
	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", newCfg.Storage.Driver),
			logx.Bool("storage.dsn_set", set(newCfg.Storage.DSN)),
			logx.String("storage.redis_addr", newCfg.Storage.Redis.Addr),
		)
	}
	if oldCfg.Selector != newCfg.Selector {
		changed = append(changed, "selector")
		attrs = append(attrs,
			logx.Float64("selector.radius_km", newCfg.Selector.RadiusKm),
			logx.String("selector.timeout", newCfg.Selector.Timeout),
		)
	}
	if oldCfg.Dispatch != newCfg.Dispatch {
		changed = append(changed, "dispatch")
		attrs = append(attrs,
			logx.Int("dispatch.workers", newCfg.Dispatch.Workers),
			logx.String("dispatch.send_timeout", newCfg.Dispatch.SendTimeout),
		)
	}
	for _, name := range ChangedChannels(oldCfg, newCfg) {
		changed = append(changed, "channels."+name)
	}
	if len(ChangedChannels(oldCfg, newCfg)) > 0 {
		c := newCfg.Channels
		attrs = append(attrs,
			logx.Bool("channels.email.enabled", c.Email.Enabled),
			logx.String("channels.email.driver", c.Email.Driver),
			logx.Bool("channels.email.smtp_password_set", set(c.Email.SMTP.Password)),
			logx.Bool("channels.sms.enabled", c.SMS.Enabled),
			logx.String("channels.sms.driver", c.SMS.Driver),
			logx.Bool("channels.sms.token_set", set(c.SMS.HTTP.Token)),
			logx.Bool("channels.push.enabled", c.Push.Enabled),
			logx.String("channels.push.driver", c.Push.Driver),
			logx.Bool("channels.push.vapid_key_set", set(c.Push.WebPush.VAPIDPrivateKey)),
			logx.Bool("channels.push.telegram_token_set", set(c.Push.Telegram.Token)),
		)
	}
	if !reflect.DeepEqual(oldCfg.Templates, newCfg.Templates) {
		changed = append(changed, "templates")
		attrs = append(attrs, logx.Int("templates.overrides", len(newCfg.Templates)))
	}
	if oldCfg.HTTP != newCfg.HTTP {
		changed = append(changed, "http")
		attrs = append(attrs,
			logx.String("http.addr", newCfg.HTTP.Addr),
			logx.Bool("http.pprof_enabled", newCfg.HTTP.Pprof.Enabled),
			logx.Bool("http.pprof_token_set", set(newCfg.HTTP.Pprof.Token)),
		)
	}
	if oldCfg.ReportLog != newCfg.ReportLog {
		changed = append(changed, "report_log")
		attrs = append(attrs,
			logx.Bool("report_log.enabled", newCfg.ReportLog.Enabled),
			logx.String("report_log.retention", newCfg.ReportLog.Retention),
			logx.String("report_log.prune_schedule", newCfg.ReportLog.PruneSchedule),
		)
	}
	return changed, attrs
}

// ChangedChannels lists the channel names ("email", "sms", "push") whose
// config differs, in that order.
func ChangedChannels(oldCfg, newCfg *Config) []string {
	var out []string
	if oldCfg.Channels.Email != newCfg.Channels.Email {
		out = append(out, "email")
	}
	if oldCfg.Channels.SMS != newCfg.Channels.SMS {
		out = append(out, "sms")
	}
	if oldCfg.Channels.Push != newCfg.Channels.Push {
		out = append(out, "push")
	}
	return out
}

func set(s string) bool { return strings.TrimSpace(s) != "" }
