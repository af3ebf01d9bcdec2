// SPDX-License-Identifier: MIT

package health

import (
	"context"

	"github.com/ManuGH/freesession/internal/push"
)

// PushStater is the slice of the push client the checker reads.
type PushStater interface {
	State() push.InitState
}

// PushChecker reports the push client's initialization state. A client that
// never started or failed is degraded, not unhealthy: browser tabs do not
// need it and a later mount retries initialization.
type PushChecker struct {
	client PushStater
}

// NewPushChecker creates a checker for the process-wide push client.
func NewPushChecker(client PushStater) *PushChecker {
	return &PushChecker{client: client}
}

func (c *PushChecker) Name() string { return "push" }

func (c *PushChecker) Check(_ context.Context) CheckResult {
	state := c.client.State()
	switch state {
	case push.StateReady:
		return CheckResult{Status: StatusHealthy, Message: string(state)}
	case push.StateFailed:
		return CheckResult{Status: StatusDegraded, Message: string(state), Error: "push provider initialization failed"}
	default:
		return CheckResult{Status: StatusDegraded, Message: string(state)}
	}
}
