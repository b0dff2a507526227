package worker

import (
	"context"
	"time"

	"nightcircle/internal/logging"
)

// Periodic runs a task on a fixed interval until its context ends. A failing
// run is logged and retried on the next tick; only a panic restarts it.
type Periodic struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

func (p *Periodic) Serve(ctx context.Context) error {
	log := logging.With(p.Name)
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("periodic run failed")
			}
		}
	}
}

func (p *Periodic) String() string { return p.Name }
