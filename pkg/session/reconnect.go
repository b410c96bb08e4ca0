package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"

	"github.com/olivroy/shiny/pkg/present"
)

// Reconnector retries a lost connection with exponential backoff. The
// dialog is shown once the grace period passes without success and hidden
// again when a retry succeeds.
type Reconnector struct {
	Policy    ReconnectPolicy
	Clock     clock.Clock
	Dialog    present.ReconnectDialog
	Logger    *slog.Logger
	OnAttempt func(attempt int, err error)
}

// newBackOff returns the delay schedule for one reconnect run.
func (r *Reconnector) newBackOff() *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     r.Policy.InitialInterval,
		RandomizationFactor: r.Policy.RandomizationFactor,
		Multiplier:          r.Policy.Multiplier,
		MaxInterval:         r.Policy.MaxInterval,
		Stop:                backoff.Stop,
		Clock:               r.Clock,
	}
	b.Reset()
	return b
}

// Run calls attempt until it succeeds, the policy gives up or ctx is
// cancelled. cause is the failure that lost the connection.
func (r *Reconnector) Run(ctx context.Context, cause error, attempt func(context.Context) (Conn, error)) (Conn, error) {
	var (
		mu     sync.Mutex
		shown  bool
		ended  bool
		latest = present.ReconnectInfo{Attempt: 1, Err: cause}
	)
	grace := r.Clock.AfterFunc(r.Policy.GracePeriod, func() {
		mu.Lock()
		defer mu.Unlock()
		if ended {
			return
		}
		shown = true
		r.Dialog.Show(latest)
	})
	// end stops the grace timer and reports whether the dialog is up.
	end := func() bool {
		grace.Stop()
		mu.Lock()
		defer mu.Unlock()
		ended = true
		return shown
	}

	b := r.newBackOff()
	lastErr := cause
	for failures := 0; ; {
		delay := b.NextBackOff()

		mu.Lock()
		latest = present.ReconnectInfo{Attempt: failures + 1, Next: delay, Err: lastErr}
		if shown {
			r.Dialog.Show(latest)
		}
		mu.Unlock()

		timer := r.Clock.Timer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			if end() {
				r.Dialog.Hide()
			}
			return nil, ctx.Err()
		case <-timer.C:
		}

		conn, err := attempt(ctx)
		if err == nil {
			if end() {
				r.Dialog.Hide()
			}
			return conn, nil
		}
		if ctx.Err() != nil {
			if end() {
				r.Dialog.Hide()
			}
			return nil, ctx.Err()
		}

		failures++
		lastErr = err
		r.Logger.Warn("reconnect attempt failed", "attempt", failures, "error", err)
		if r.OnAttempt != nil {
			r.OnAttempt(failures, err)
		}
		if !r.Policy.Unlimited && failures >= r.Policy.MaxRetries {
			end()
			exhausted := fmt.Errorf("%w after %d attempts: %w", ErrReconnectExhausted, failures, err)
			r.Dialog.ShowConnectionLost(exhausted)
			return nil, exhausted
		}
	}
}
