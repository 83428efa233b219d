package config

import (
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix of every secret environment variable.
const EnvPrefix = "FANOUT"

// Secrets are read from the environment (FANOUT_SMTP_PASSWORD, ...) and
// override the matching file values when set.
type Secrets struct {
	SMTPPassword    string `envconfig:"SMTP_PASSWORD"`
	SMSToken        string `envconfig:"SMS_TOKEN"`
	VAPIDPrivateKey string `envconfig:"VAPID_PRIVATE_KEY"`
	TelegramToken   string `envconfig:"TELEGRAM_TOKEN"`
	DatabaseDSN     string `envconfig:"DATABASE_DSN"`
	RedisPassword   string `envconfig:"REDIS_PASSWORD"`
	PprofToken      string `envconfig:"PPROF_TOKEN"`
}

func LoadSecrets() (Secrets, error) {
	var s Secrets
	if err := envconfig.Process(EnvPrefix, &s); err != nil {
		return Secrets{}, err
	}
	return s, nil
}

// Overlay copies every non-empty secret into cfg.
func (s Secrets) Overlay(cfg *Config) {
	if cfg == nil {
		return
	}
	set := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	set(&cfg.Channels.Email.SMTP.Password, s.SMTPPassword)
	set(&cfg.Channels.SMS.HTTP.Token, s.SMSToken)
	set(&cfg.Channels.Push.WebPush.VAPIDPrivateKey, s.VAPIDPrivateKey)
	set(&cfg.Channels.Push.Telegram.Token, s.TelegramToken)
	set(&cfg.Storage.DSN, s.DatabaseDSN)
	set(&cfg.Storage.Redis.Password, s.RedisPassword)
	set(&cfg.HTTP.Pprof.Token, s.PprofToken)
}
