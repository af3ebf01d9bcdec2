// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package push

import (
	"context"
	"testing"
	"time"

	"github.com/ManuGH/freesession/internal/subscription"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestPoller_DetectsRevocationAfterUnlock(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	sdk := &fakeSDK{subscribed: true}
	c, b, _ := newTestClient(t, sdk, nil, nil)
	require.True(t, c.Initialize(context.Background()))
	require.Equal(t, subscription.Subscribed, b.Current())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		NewPoller(c, 5*time.Millisecond).Run(ctx)
	}()

	sdk.mu.Lock()
	sdk.subscribed = false
	sdk.mu.Unlock()

	assert.Eventually(t, func() bool {
		return b.Current() == subscription.NotSubscribed
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancel")
	}
}

func TestPoller_SkipsWhileNotReady(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	sdk := &fakeSDK{subscribed: true}
	c, b, _ := newTestClient(t, sdk, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	NewPoller(c, 5*time.Millisecond).Run(ctx)

	_, _, queryCalls, _ := sdk.counts()
	assert.Zero(t, queryCalls)
	assert.Equal(t, subscription.Unknown, b.Current())
}

func TestNewPoller_DefaultInterval(t *testing.T) {
	p := NewPoller(nil, 0)
	assert.Equal(t, DefaultPollInterval, p.interval)
}
