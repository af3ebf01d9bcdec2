// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"time"

	xnet "github.com/ManuGH/freesession/internal/platform/net"
	"github.com/ManuGH/freesession/internal/validate"
	"github.com/rs/zerolog"
)

// Validate checks a resolved configuration. All failures are reported at
// once, wrapped in ErrInvalidConfig.
func Validate(cfg AppConfig) error {
	v := validate.New()

	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		v.AddError("LogLevel", "unknown log level", cfg.LogLevel)
	}
	v.ListenAddr("APIListenAddr", cfg.APIListenAddr)
	if cfg.MetricsListenAddr != "" {
		v.ListenAddr("MetricsListenAddr", cfg.MetricsListenAddr)
	}
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		v.AddError("TLS", "TLSCert and TLSKey must be set together", nil)
	}
	v.DurationRange("ShutdownTimeout", cfg.ShutdownTimeout, time.Second, 5*time.Minute)
	v.URL("RewardURL", cfg.RewardURL, []string{"https", "http"})
	if _, ok := xnet.ParseDirectHTTPURL(cfg.RewardURL); cfg.RewardURL != "" && !ok {
		v.AddError("RewardURL", "must be a direct http(s) URL without credentials", xnet.SanitizeURL(cfg.RewardURL))
	}

	if cfg.Tracing.Enabled {
		v.OneOf("Tracing.Exporter", cfg.Tracing.Exporter, []string{"grpc", "http"})
		v.NotEmpty("Tracing.Endpoint", cfg.Tracing.Endpoint)
		if cfg.Tracing.SamplingRate < 0 || cfg.Tracing.SamplingRate > 1 {
			v.AddError("Tracing.SamplingRate", "must be between 0 and 1", cfg.Tracing.SamplingRate)
		}
	}

	p := cfg.Push
	v.OneOf("Push.Provider", p.Provider, []string{ProviderOneSignal, ProviderSimulated})
	// An empty app ID is accepted: the push client then settles as failed and
	// standalone pages stay on the permission step.
	if p.Provider == ProviderOneSignal && p.AppID != "" {
		v.NotEmpty("Push.APIKey", p.APIKey)
		v.URL("Push.APIBaseURL", p.APIBaseURL, []string{"https", "http"})
		v.Positive("Push.RatePerSecond", p.RatePerSecond)
		v.Range("Push.BreakerThreshold", p.BreakerThreshold, 1, 100)
		v.DurationRange("Push.BreakerReset", p.BreakerReset, time.Second, 10*time.Minute)
	}
	v.Range("Push.InitRetries", p.InitRetries, 1, 10)
	v.Range("Push.ReadyAttempts", p.ReadyAttempts, 1, 100)
	v.DurationRange("Push.ReadyInterval", p.ReadyInterval, 10*time.Millisecond, time.Minute)
	v.DurationRange("Push.QueryTimeout", p.QueryTimeout, 100*time.Millisecond, time.Minute)
	if p.Simulated.ReadyAfter < 0 {
		v.AddError("Push.Simulated.ReadyAfter", "must not be negative", p.Simulated.ReadyAfter)
	}

	v.DurationRange("Gate.PollInterval", cfg.Gate.PollInterval, 500*time.Millisecond, time.Minute)
	v.DurationRange("Gate.MountTTL", cfg.Gate.MountTTL, time.Minute, 24*time.Hour)

	v.NotEmpty("UI.AppName", cfg.UI.AppName)
	v.Range("API.RateLimit", cfg.API.RateLimit, 1, 100000)
	for i, origin := range cfg.API.TrustedOrigins {
		v.Origin(fmt.Sprintf("API.TrustedOrigins[%d]", i), origin)
	}

	if err := v.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
