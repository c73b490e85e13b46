package ltp

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultPollInterval is the status polling cadence.
const DefaultPollInterval = time.Second

// Poller paces repeated status requests at a fixed interval. There is no
// backoff and no overall deadline; callers bound it with ctx.
type Poller struct {
	limiter *rate.Limiter
}

// NewPoller returns a poller issuing at most one check per interval.
func NewPoller(interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Until calls check until it reports done or returns an error. The first check
// runs immediately.
func (p *Poller) Until(ctx context.Context, check func(context.Context) (bool, error)) error {
	for {
		if err := p.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}
