// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// DefaultRewardURL is the Free Session landing page.
const DefaultRewardURL = "https://utage-system.com/p/zwvVkDBzc2wb"

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel:          "info",
		APIListenAddr:     ":8080",
		MetricsListenAddr: ":9090",
		ShutdownTimeout:   10 * time.Second,
		TracingService:    "freesession",
		Tracing: TracingConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
			Environment:  "production",
		},
		RewardURL:         DefaultRewardURL,
		Push: PushConfig{
			Provider:                     ProviderOneSignal,
			APIBaseURL:                   "https://api.onesignal.com",
			InitRetries:                  3,
			ReadyAttempts:                10,
			ReadyInterval:                time.Second,
			QueryTimeout:                 5 * time.Second,
			RatePerSecond:                5,
			BreakerThreshold:             5,
			BreakerReset:                 30 * time.Second,
			AllowLocalhostAsSecureOrigin: true,
		},
		Gate: GateConfig{
			PollInterval: 3 * time.Second,
			MountTTL:     10 * time.Minute,
		},
		UI: UIConfig{
			AppName:         "Free Session App",
			ShortName:       "Free Session",
			ThemeColor:      "#000000",
			BackgroundColor: "#ffffff",
		},
		API: APIConfig{
			RateLimit: 600,
		},
	}
}
