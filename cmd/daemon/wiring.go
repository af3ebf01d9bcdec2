// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ManuGH/freesession/internal/api"
	"github.com/ManuGH/freesession/internal/config"
	"github.com/ManuGH/freesession/internal/gate"
	"github.com/ManuGH/freesession/internal/health"
	xglog "github.com/ManuGH/freesession/internal/log"
	"github.com/ManuGH/freesession/internal/platform"
	"github.com/ManuGH/freesession/internal/push"
	"github.com/ManuGH/freesession/internal/push/memsdk"
	"github.com/ManuGH/freesession/internal/push/onesignal"
	"github.com/ManuGH/freesession/internal/subscription"
	"github.com/ManuGH/freesession/internal/view"
	"github.com/google/uuid"
)

// runtime holds the process-wide services built once at startup.
type runtime struct {
	client *push.Client
	gates  *gate.Service
	health *health.Manager
	server *api.Server
}

// externalID returns the configured provider identity, or one derived from
// the host and app ID so it survives restarts without persistence.
func externalID(cfg config.PushConfig) string {
	if cfg.ExternalID != "" {
		return cfg.ExternalID
	}
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(host+"/"+cfg.AppID)).String()
}

func pushOptions(cfg config.PushConfig) push.Options {
	return push.Options{
		AllowLocalhostAsSecureOrigin: cfg.AllowLocalhostAsSecureOrigin,
		NotifyButtonEnabled:          cfg.NotifyButtonEnabled,
		SlidedownPromptEnabled:       cfg.SlidedownPromptEnabled,
	}
}

func newPushSDK(cfg config.PushConfig, extID string) push.SDK {
	if cfg.Provider == config.ProviderSimulated {
		return memsdk.New(
			memsdk.WithReadyAfter(cfg.Simulated.ReadyAfter),
			memsdk.WithSubscribed(cfg.Simulated.Subscribed),
		)
	}
	return onesignal.New(onesignal.Config{
		BaseURL:          cfg.APIBaseURL,
		APIKey:           cfg.APIKey,
		ExternalID:       extID,
		Timeout:          cfg.QueryTimeout,
		RatePerSecond:    cfg.RatePerSecond,
		BreakerThreshold: cfg.BreakerThreshold,
		BreakerReset:     cfg.BreakerReset,
	})
}

func buildRuntime(cfg config.AppConfig) (*runtime, error) {
	extID := externalID(cfg.Push)
	opts := pushOptions(cfg.Push)

	permission := platform.NewReportedPermission()
	client := push.NewClient(push.Config{
		AppID:         cfg.Push.AppID,
		Options:       opts,
		InitRetries:   cfg.Push.InitRetries,
		ReadyAttempts: cfg.Push.ReadyAttempts,
		ReadyInterval: cfg.Push.ReadyInterval,
		QueryTimeout:  cfg.Push.QueryTimeout,
	}, newPushSDK(cfg.Push, extID), permission, subscription.NewBroadcaster(),
		push.WithLogger(xglog.WithComponent("push")))

	gates := gate.NewService(gate.Config{
		PollInterval: cfg.Gate.PollInterval,
		MountTTL:     cfg.Gate.MountTTL,
	}, client, permission)

	renderer, err := view.New(view.Config{
		AppName:         cfg.UI.AppName,
		ShortName:       cfg.UI.ShortName,
		ThemeColor:      cfg.UI.ThemeColor,
		BackgroundColor: cfg.UI.BackgroundColor,
		PushAppID:       cfg.Push.AppID,
		ExternalID:      extID,
		PushOptions:     opts,
	})
	if err != nil {
		gates.Close()
		client.Close()
		return nil, fmt.Errorf("build view: %w", err)
	}

	hm := health.NewManager(cfg.Version)
	hm.RegisterChecker(health.NewPushChecker(client))
	hm.RegisterChecker(health.NewFileChecker("tls_cert", cfg.TLSCert))
	hm.RegisterChecker(health.NewFileChecker("tls_key", cfg.TLSKey))
	hm.RegisterChecker(health.CheckerFunc{
		CheckName: "mounts",
		Fn: func(context.Context) health.CheckResult {
			return health.CheckResult{Status: health.StatusHealthy, Message: fmt.Sprintf("%d active", gates.Len())}
		},
	})

	server := api.New(api.Config{
		RewardURL:      cfg.RewardURL,
		CSP:            cfg.UI.CSP,
		TracingService: cfg.TracingService,
		APIRateLimit:   cfg.API.RateLimit,
		TrustedOrigins: cfg.API.TrustedOrigins,
		SecureCookies:  cfg.TLSCert != "",
	}, gates, renderer, hm)

	return &runtime{client: client, gates: gates, health: hm, server: server}, nil
}

func (r *runtime) close() {
	r.gates.Close()
	r.client.Close()
}
