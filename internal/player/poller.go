package player

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Poller periodically reads a handle's position until stopped.
type Poller struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// StartPoller reads h every interval and passes the position to fn.
// Read failures are skipped; the next tick tries again.
func StartPoller(h Handle, interval time.Duration, logger zerolog.Logger, fn func(float64)) *Poller {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Poller{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(p.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pos, err := h.CurrentPosition()
				if err != nil {
					logger.Debug().Err(err).Msg("position poll skipped")
					continue
				}
				if ctx.Err() != nil {
					return
				}
				fn(pos)
			}
		}
	}()

	return p
}

// Stop cancels the poller without waiting for the goroutine to exit.
// It is safe to call more than once and on a nil Poller.
func (p *Poller) Stop() {
	if p == nil {
		return
	}
	p.cancel()
}

// Done is closed once the polling goroutine has exited.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}
