package app

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"freshshare/internal/channel"
	"freshshare/internal/config"
	"freshshare/internal/notifier"
	"freshshare/internal/transport"
	"freshshare/internal/transport/httpsms"
	"freshshare/internal/transport/smtprelay"
	"freshshare/internal/transport/telegram"
	"freshshare/internal/transport/webpush"
	logx "freshshare/pkg/logx"
)

var channelNames = []string{channel.NameEmail, channel.NameSMS, channel.NamePush}

// channelSet holds the current instance of every configured channel,
// attached or not, so the ops API can attach a channel that config left
// disabled.
type channelSet struct {
	mu     sync.Mutex
	byName map[string]channel.Channel
}

func newChannelSet() *channelSet {
	return &channelSet{byName: map[string]channel.Channel{}}
}

func (s *channelSet) Lookup(name string) (channel.Channel, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.byName[name]
	return ch, ok
}

func (s *channelSet) swap(name string, ch channel.Channel) channel.Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.byName[name]
	if ch == nil {
		delete(s.byName, name)
	} else {
		s.byName[name] = ch
	}
	return old
}

func channelEnabled(cfg *config.Config, name string) bool {
	switch name {
	case channel.NameEmail:
		return cfg.Channels.Email.Enabled
	case channel.NameSMS:
		return cfg.Channels.SMS.Enabled
	case channel.NamePush:
		return cfg.Channels.Push.Enabled
	}
	return false
}

func driverOf(raw string) string {
	d := strings.ToLower(strings.TrimSpace(raw))
	if d == "" {
		return "log"
	}
	return d
}

func throttle(t config.Throttle) channel.Options {
	return channel.Options{Limiter: channel.NewLimiter(t.RatePerSec, t.Burst)}
}

// buildChannel constructs the named channel and its transport from config.
func buildChannel(name string, cfg *config.Config, tmpl *channel.Templates, log logx.Logger) (channel.Channel, error) {
	logGW := transport.NewLogGateway(log.With(logx.Channel(name)))
	switch name {
	case channel.NameEmail:
		c := cfg.Channels.Email
		opt := throttle(c.Throttle)
		opt.Templates = tmpl
		switch driverOf(c.Driver) {
		case "smtp":
			relay, err := smtprelay.New(smtprelay.Config{
				Host:            c.SMTP.Host,
				Port:            c.SMTP.Port,
				Username:        c.SMTP.Username,
				Password:        c.SMTP.Password,
				From:            c.SMTP.From,
				DisableStartTLS: c.SMTP.DisableStartTLS,
			})
			if err != nil {
				return nil, fmt.Errorf("channels.email: %w", err)
			}
			return channel.NewEmail(relay, opt), nil
		case "log":
			return channel.NewEmail(logGW, opt), nil
		}
		return nil, fmt.Errorf("channels.email: unknown driver %q", c.Driver)

	case channel.NameSMS:
		c := cfg.Channels.SMS
		opt := throttle(c.Throttle)
		opt.Templates = tmpl
		switch driverOf(c.Driver) {
		case "http":
			timeout, err := config.ParseDuration("channels.sms.http.timeout", c.HTTP.Timeout, 10*time.Second)
			if err != nil {
				return nil, err
			}
			gw, err := httpsms.New(&http.Client{Timeout: timeout}, httpsms.Config{URL: c.HTTP.URL, Token: c.HTTP.Token, Sender: c.HTTP.Sender})
			if err != nil {
				return nil, fmt.Errorf("channels.sms: %w", err)
			}
			return channel.NewSMS(gw, opt), nil
		case "log":
			return channel.NewSMS(logGW, opt), nil
		}
		return nil, fmt.Errorf("channels.sms: unknown driver %q", c.Driver)

	case channel.NamePush:
		c := cfg.Channels.Push
		opt := throttle(c.Throttle)
		opt.Templates = tmpl
		switch driverOf(c.Driver) {
		case "webpush":
			ttl, err := config.ParseDuration("channels.push.webpush.ttl", c.WebPush.TTL, 6*time.Hour)
			if err != nil {
				return nil, err
			}
			gw, err := webpush.New(&http.Client{Timeout: 15 * time.Second}, webpush.Config{
				VAPIDPublicKey:  c.WebPush.VAPIDPublicKey,
				VAPIDPrivateKey: c.WebPush.VAPIDPrivateKey,
				Subject:         c.WebPush.Subject,
				TTLSeconds:      int(ttl / time.Second),
				Topic:           c.WebPush.Topic,
			})
			if err != nil {
				return nil, fmt.Errorf("channels.push: %w", err)
			}
			return channel.NewPush(gw, opt), nil
		case "telegram":
			timeout, err := config.ParseDuration("channels.push.telegram.timeout", c.Telegram.Timeout, 10*time.Second)
			if err != nil {
				return nil, err
			}
			gw, err := telegram.New(telegram.Config{Token: c.Telegram.Token, Timeout: timeout})
			if err != nil {
				return nil, fmt.Errorf("channels.push: %w", err)
			}
			return channel.NewPush(gw, opt), nil
		case "log":
			return channel.NewPush(logGW, opt), nil
		}
		return nil, fmt.Errorf("channels.push: unknown driver %q", c.Driver)
	}
	return nil, fmt.Errorf("unknown channel %q", name)
}

// syncChannels rebuilds the named channels from cfg and reconciles the
// registry: enabled channels are attached (replacing the previous instance
// in place), disabled ones detached. A channel that fails to build keeps
// its previous instance.
func syncChannels(names []string, cfg *config.Config, tmpl *channel.Templates, set *channelSet, reg *notifier.Registry, log logx.Logger) {
	for _, name := range names {
		enabled := channelEnabled(cfg, name)
		ch, err := buildChannel(name, cfg, tmpl, log)
		if err != nil {
			if enabled {
				log.Warn("channel build failed; keeping previous", logx.Channel(name), logx.Err(err))
			} else {
				log.Debug("disabled channel not buildable", logx.Channel(name), logx.Err(err))
				if old := set.swap(name, nil); old != nil {
					reg.Detach(old)
				}
			}
			continue
		}
		old := set.swap(name, ch)
		_, attached := reg.Lookup(name)
		switch {
		case enabled && attached && old != nil:
			reg.Replace(old, ch)
			log.Info("channel reconfigured", logx.Channel(name))
		case enabled:
			reg.Attach(ch)
			log.Info("channel attached", logx.Channel(name))
		case attached && old != nil:
			reg.Detach(old)
			log.Info("channel detached", logx.Channel(name))
		}
	}
}
