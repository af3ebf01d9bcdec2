// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Environment keys. Aliases are accepted for provider credentials so an
// existing OneSignal deployment can be pointed at the daemon unchanged.
const (
	EnvLogLevel        = "FREESESSION_LOG_LEVEL"
	EnvListen          = "FREESESSION_LISTEN"
	EnvMetricsListen   = "FREESESSION_METRICS_LISTEN"
	EnvTLSCert         = "FREESESSION_TLS_CERT"
	EnvTLSKey          = "FREESESSION_TLS_KEY"
	EnvShutdownTimeout = "FREESESSION_SHUTDOWN_TIMEOUT"
	EnvTracingService  = "FREESESSION_TRACING_SERVICE"
	EnvRewardURL       = "FREESESSION_REWARD_URL"

	EnvTracingEnabled  = "FREESESSION_TRACING_ENABLED"
	EnvTracingExporter = "FREESESSION_TRACING_EXPORTER"
	EnvTracingEndpoint = "FREESESSION_TRACING_ENDPOINT"
	EnvTracingSampling = "FREESESSION_TRACING_SAMPLING_RATE"
	EnvEnvironment     = "FREESESSION_ENVIRONMENT"

	EnvPushProvider      = "FREESESSION_PUSH_PROVIDER"
	EnvPushAppID         = "FREESESSION_PUSH_APP_ID"
	EnvPushAppIDAlias    = "ONESIGNAL_APP_ID"
	EnvPushAPIKey        = "FREESESSION_PUSH_API_KEY"
	EnvPushAPIKeyAlias   = "ONESIGNAL_API_KEY"
	EnvPushAPIURL        = "FREESESSION_PUSH_API_URL"
	EnvPushExternalID    = "FREESESSION_PUSH_EXTERNAL_ID"
	EnvPushInitRetries   = "FREESESSION_PUSH_INIT_RETRIES"
	EnvPushReadyAttempts = "FREESESSION_PUSH_READY_ATTEMPTS"
	EnvPushReadyInterval = "FREESESSION_PUSH_READY_INTERVAL"
	EnvPushQueryTimeout  = "FREESESSION_PUSH_QUERY_TIMEOUT"
	EnvPushRate          = "FREESESSION_PUSH_RATE"
	EnvPushBreaker       = "FREESESSION_PUSH_BREAKER_THRESHOLD"
	EnvPushBreakerReset  = "FREESESSION_PUSH_BREAKER_RESET"
	EnvPushAllowLocal    = "FREESESSION_PUSH_ALLOW_LOCALHOST"
	EnvPushNotifyButton  = "FREESESSION_PUSH_NOTIFY_BUTTON"
	EnvPushSlidedown     = "FREESESSION_PUSH_SLIDEDOWN"
	EnvSimReadyAfter     = "FREESESSION_SIMULATED_READY_AFTER"
	EnvSimSubscribed     = "FREESESSION_SIMULATED_SUBSCRIBED"

	EnvPollInterval = "FREESESSION_POLL_INTERVAL"
	EnvMountTTL     = "FREESESSION_MOUNT_TTL"

	EnvAppName         = "FREESESSION_APP_NAME"
	EnvShortName       = "FREESESSION_SHORT_NAME"
	EnvThemeColor      = "FREESESSION_THEME_COLOR"
	EnvBackgroundColor = "FREESESSION_BACKGROUND_COLOR"
	EnvCSP             = "FREESESSION_CSP"

	EnvRateLimit      = "FREESESSION_RATELIMIT"
	EnvTrustedOrigins = "FREESESSION_TRUSTED_ORIGINS"
)

// Loader handles configuration loading with precedence.
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a loader. An empty configPath skips the file layer.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(key, def string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, def)
}

func (l *Loader) envBool(key string, def bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, def)
}

func (l *Loader) envInt(key string, def int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, def)
}

func (l *Loader) envDuration(key string, def time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, def)
}

func (l *Loader) envFloat(key string, def float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, def)
}

func (l *Loader) envList(key string, def []string) []string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseList(key, def)
}

// envAlias reads key, falling back to alias. Both set to different values
// is an error.
func (l *Loader) envAlias(key, alias, def string) (string, error) {
	l.ConsumedEnvKeys[key] = struct{}{}
	l.ConsumedEnvKeys[alias] = struct{}{}
	canonical := strings.TrimSpace(os.Getenv(key))
	legacy := strings.TrimSpace(os.Getenv(alias))
	if canonical != "" && legacy != "" && canonical != legacy {
		return "", fmt.Errorf("%w: %s and %s differ", ErrAliasConflict, key, alias)
	}
	if canonical != "" {
		return ParseString(key, def), nil
	}
	return ParseString(alias, def), nil
}

// Load resolves defaults, then the YAML file, then the environment, and
// validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()
	cfg.Version = l.version

	if l.configPath != "" {
		fc, err := loadFile(l.configPath)
		if err != nil {
			return AppConfig{}, err
		}
		fc.apply(&cfg)
	}

	if err := l.mergeEnv(&cfg); err != nil {
		return AppConfig{}, err
	}

	if err := Validate(cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) error {
	cfg.LogLevel = l.envString(EnvLogLevel, cfg.LogLevel)
	cfg.APIListenAddr = l.envString(EnvListen, cfg.APIListenAddr)
	cfg.MetricsListenAddr = l.envString(EnvMetricsListen, cfg.MetricsListenAddr)
	cfg.TLSCert = l.envString(EnvTLSCert, cfg.TLSCert)
	cfg.TLSKey = l.envString(EnvTLSKey, cfg.TLSKey)
	cfg.ShutdownTimeout = l.envDuration(EnvShutdownTimeout, cfg.ShutdownTimeout)
	cfg.TracingService = l.envString(EnvTracingService, cfg.TracingService)
	cfg.RewardURL = l.envString(EnvRewardURL, cfg.RewardURL)
	cfg.Tracing.Enabled = l.envBool(EnvTracingEnabled, cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = strings.ToLower(l.envString(EnvTracingExporter, cfg.Tracing.Exporter))
	cfg.Tracing.Endpoint = l.envString(EnvTracingEndpoint, cfg.Tracing.Endpoint)
	cfg.Tracing.SamplingRate = l.envFloat(EnvTracingSampling, cfg.Tracing.SamplingRate)
	cfg.Tracing.Environment = l.envString(EnvEnvironment, cfg.Tracing.Environment)

	p := &cfg.Push
	var err error
	p.Provider = strings.ToLower(l.envString(EnvPushProvider, p.Provider))
	if p.AppID, err = l.envAlias(EnvPushAppID, EnvPushAppIDAlias, p.AppID); err != nil {
		return err
	}
	if p.APIKey, err = l.envAlias(EnvPushAPIKey, EnvPushAPIKeyAlias, p.APIKey); err != nil {
		return err
	}
	p.APIBaseURL = l.envString(EnvPushAPIURL, p.APIBaseURL)
	p.ExternalID = l.envString(EnvPushExternalID, p.ExternalID)
	p.InitRetries = l.envInt(EnvPushInitRetries, p.InitRetries)
	p.ReadyAttempts = l.envInt(EnvPushReadyAttempts, p.ReadyAttempts)
	p.ReadyInterval = l.envDuration(EnvPushReadyInterval, p.ReadyInterval)
	p.QueryTimeout = l.envDuration(EnvPushQueryTimeout, p.QueryTimeout)
	p.RatePerSecond = l.envFloat(EnvPushRate, p.RatePerSecond)
	p.BreakerThreshold = l.envInt(EnvPushBreaker, p.BreakerThreshold)
	p.BreakerReset = l.envDuration(EnvPushBreakerReset, p.BreakerReset)
	p.AllowLocalhostAsSecureOrigin = l.envBool(EnvPushAllowLocal, p.AllowLocalhostAsSecureOrigin)
	p.NotifyButtonEnabled = l.envBool(EnvPushNotifyButton, p.NotifyButtonEnabled)
	p.SlidedownPromptEnabled = l.envBool(EnvPushSlidedown, p.SlidedownPromptEnabled)
	p.Simulated.ReadyAfter = l.envInt(EnvSimReadyAfter, p.Simulated.ReadyAfter)
	p.Simulated.Subscribed = l.envBool(EnvSimSubscribed, p.Simulated.Subscribed)

	cfg.Gate.PollInterval = l.envDuration(EnvPollInterval, cfg.Gate.PollInterval)
	cfg.Gate.MountTTL = l.envDuration(EnvMountTTL, cfg.Gate.MountTTL)

	cfg.UI.AppName = l.envString(EnvAppName, cfg.UI.AppName)
	cfg.UI.ShortName = l.envString(EnvShortName, cfg.UI.ShortName)
	cfg.UI.ThemeColor = l.envString(EnvThemeColor, cfg.UI.ThemeColor)
	cfg.UI.BackgroundColor = l.envString(EnvBackgroundColor, cfg.UI.BackgroundColor)
	cfg.UI.CSP = l.envString(EnvCSP, cfg.UI.CSP)

	cfg.API.RateLimit = l.envInt(EnvRateLimit, cfg.API.RateLimit)
	cfg.API.TrustedOrigins = l.envList(EnvTrustedOrigins, cfg.API.TrustedOrigins)
	return nil
}
