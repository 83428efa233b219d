// Package channel implements the delivery channels of the fan-out engine.
//
// A Channel composes a message for one (event, recipient) pair and hands it to
// an injected transport. Channels report per-send results as Outcome values,
// never as errors, so one recipient's fault cannot affect another's.
package channel

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"freshshare/internal/domain"
)

type Status int

const (
	Delivered Status = iota + 1
	Skipped
	Failed
)

func (s Status) String() string {
	switch s {
	case Delivered:
		return "delivered"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s Status) Valid() bool { return s >= Delivered && s <= Failed }

// Failure reasons. Transport and internal reasons carry a suffix after the colon.
const (
	ReasonMissingContact = "missing_contact"
	ReasonTimeout        = "timeout"
	ReasonTransport      = "transport"
	ReasonInternal       = "internal"
)

type Outcome struct {
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
}

func Delivery() Outcome           { return Outcome{Status: Delivered} }
func Skip(reason string) Outcome  { return Outcome{Status: Skipped, Reason: reason} }
func Fail(reason string) Outcome  { return Outcome{Status: Failed, Reason: reason} }
func Timeout() Outcome            { return Fail(ReasonTimeout) }
func Transport(err error) Outcome { return Fail(ReasonTransport + ":" + oneLine(err.Error())) }
func Internal(desc string) Outcome {
	return Fail(ReasonInternal + ":" + oneLine(desc))
}

// Channel delivers one event to one recipient. Implementations must be safe
// for concurrent use and must be pointer types, since the registry compares
// channels by identity.
type Channel interface {
	Name() string
	Send(ctx context.Context, ev domain.Event, r domain.Recipient) Outcome
}

const maxReasonLen = 300

func oneLine(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > maxReasonLen {
		cut := maxReasonLen
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return s
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "delivered":
		*s = Delivered
	case "skipped":
		*s = Skipped
	case "failed":
		*s = Failed
	default:
		return fmt.Errorf("unknown outcome status %q", string(b))
	}
	return nil
}
