// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the daemon configuration with precedence
// ENV > YAML file > defaults.
package config

import "time"

// Push provider names.
const (
	ProviderOneSignal = "onesignal"
	ProviderSimulated = "simulated"
)

// AppConfig is the fully resolved daemon configuration.
type AppConfig struct {
	Version  string
	LogLevel string

	APIListenAddr     string
	MetricsListenAddr string // empty disables the metrics listener
	TLSCert           string
	TLSKey            string
	ShutdownTimeout   time.Duration
	TracingService    string // empty disables server spans
	Tracing           TracingConfig

	RewardURL string

	Push PushConfig
	Gate GateConfig
	UI   UIConfig
	API  APIConfig
}

// TracingConfig configures span export.
type TracingConfig struct {
	Enabled      bool
	Exporter     string // grpc or http
	Endpoint     string
	SamplingRate float64
	Environment  string
}

// PushConfig configures the push provider and the client's retry bounds.
type PushConfig struct {
	Provider   string
	AppID      string
	APIKey     string
	APIBaseURL string
	// ExternalID identifies this daemon's user at the provider. Empty means
	// derive a stable one at startup.
	ExternalID string

	InitRetries   int
	ReadyAttempts int
	ReadyInterval time.Duration
	QueryTimeout  time.Duration
	RatePerSecond float64

	// BreakerThreshold consecutive provider failures open the circuit for
	// BreakerReset.
	BreakerThreshold int
	BreakerReset     time.Duration

	AllowLocalhostAsSecureOrigin bool
	NotifyButtonEnabled          bool
	SlidedownPromptEnabled       bool

	Simulated SimulatedConfig
}

// SimulatedConfig seeds the in-memory provider.
type SimulatedConfig struct {
	ReadyAfter int
	Subscribed bool
}

// GateConfig bounds mount lifetime and status polling.
type GateConfig struct {
	PollInterval time.Duration
	MountTTL     time.Duration
}

// UIConfig holds page branding.
type UIConfig struct {
	AppName         string
	ShortName       string
	ThemeColor      string
	BackgroundColor string
	CSP             string
}

// APIConfig configures ingress protection.
type APIConfig struct {
	RateLimit      int // requests per minute per IP
	TrustedOrigins []string
}
