// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package push

import (
	"context"
	"time"
)

// DefaultPollInterval is how often a mounted page re-checks the subscription.
const DefaultPollInterval = 3 * time.Second

// Poller re-checks the subscription on a fixed cadence so that grants made
// outside the page, and revocations made at the OS level, reach the
// broadcaster. The provider offers no reliable change hook, so polling
// continues for as long as the owning context lives, including after unlock.
type Poller struct {
	client   *Client
	interval time.Duration
}

// NewPoller returns a poller; non-positive intervals use DefaultPollInterval.
func NewPoller(c *Client, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{client: c, interval: interval}
}

// Run polls until ctx is cancelled. Ticks are skipped while the client is not
// ready. The ticker is released on every exit path.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			if p.client.State() != StateReady {
				continue
			}
			p.client.Refresh(ctx)
		}
	}
}
