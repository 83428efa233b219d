package notifier

import (
	"time"

	"freshshare/internal/channel"
)

// EventDispatchCompleted is published on the event bus with a Report as Data.
const EventDispatchCompleted = "dispatch.completed"

// Config controls the dispatch worker pool.
type Config struct {
	// Workers bounds concurrent sends per dispatch. 1 gives strictly
	// sequential delivery in recipient-then-channel order.
	Workers int
	// SendTimeout bounds one channel send.
	SendTimeout time.Duration
}

const (
	defaultWorkers     = 4
	defaultSendTimeout = 10 * time.Second
)

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = defaultSendTimeout
	}
	return c
}

type Failure struct {
	RecipientID string         `json:"recipient_id"`
	Channel     string         `json:"channel"`
	Status      channel.Status `json:"status"`
	Reason      string         `json:"reason"`
}

// Report summarizes one Notify call.
type Report struct {
	ID          string `json:"id"`
	EventID     string `json:"event_id"`
	PublisherID string `json:"publisher_id,omitempty"`

	// Recipients counts distinct recipients considered after exclusion.
	Recipients int      `json:"recipients"`
	Excluded   int      `json:"excluded"`
	Duplicates int      `json:"duplicates"`
	Channels   []string `json:"channels"`

	Attempts  int       `json:"attempts"`
	Delivered int       `json:"delivered"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Failures  []Failure `json:"failures,omitempty"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Canceled  bool          `json:"canceled,omitempty"`
}

// Observer receives per-send and per-dispatch signals. Implementations must
// be safe for concurrent use and must not block.
type Observer interface {
	ObserveSend(channel string, out channel.Outcome, took time.Duration)
	ObserveDispatch(r Report)
}
