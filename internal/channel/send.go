package channel

import (
	"context"
	"errors"

	"golang.org/x/time/rate"
)

// Options are shared by every channel variant.
type Options struct {
	Templates *Templates
	// Limiter throttles sends on this channel. Nil means unlimited.
	Limiter *rate.Limiter
}

func (o Options) templates() *Templates {
	if o.Templates == nil {
		return DefaultTemplates()
	}
	return o.Templates
}

// NewLimiter builds a token bucket for perSecond sends with the given burst.
// perSecond <= 0 disables throttling.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = int(perSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// deliver waits on the limiter, runs send, and maps the result to an Outcome.
func deliver(ctx context.Context, lim *rate.Limiter, send func(context.Context) error) Outcome {
	if lim != nil {
		// Wait also fails early when the deadline cannot be met.
		if err := lim.Wait(ctx); err != nil {
			return Timeout()
		}
	}
	err := send(ctx)
	if err == nil {
		return Delivery()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return Timeout()
	}
	return Transport(err)
}
