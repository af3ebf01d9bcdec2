// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk YAML layout. Zero values mean "not set".
type FileConfig struct {
	LogLevel        string        `yaml:"logLevel,omitempty" json:"logLevel,omitempty"`
	Listen          string        `yaml:"listen,omitempty" json:"listen,omitempty"`
	MetricsListen   *string       `yaml:"metricsListen,omitempty" json:"metricsListen,omitempty"`
	TLS             TLSFile       `yaml:"tls,omitempty" json:"tls,omitempty"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout,omitempty" json:"shutdownTimeout,omitempty"`
	TracingService  string        `yaml:"tracingService,omitempty" json:"tracingService,omitempty"`
	Tracing         TracingFile   `yaml:"tracing,omitempty" json:"tracing,omitempty"`
	RewardURL       string        `yaml:"rewardUrl,omitempty" json:"rewardUrl,omitempty"`
	Push            PushFile      `yaml:"push,omitempty" json:"push,omitempty"`
	Gate            GateFile      `yaml:"gate,omitempty" json:"gate,omitempty"`
	UI              UIFile        `yaml:"ui,omitempty" json:"ui,omitempty"`
	API             APIFile       `yaml:"api,omitempty" json:"api,omitempty"`
}

type TracingFile struct {
	Enabled      *bool    `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Exporter     string   `yaml:"exporter,omitempty" json:"exporter,omitempty"`
	Endpoint     string   `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	SamplingRate *float64 `yaml:"samplingRate,omitempty" json:"samplingRate,omitempty"`
	Environment  string   `yaml:"environment,omitempty" json:"environment,omitempty"`
}

type TLSFile struct {
	Cert string `yaml:"cert,omitempty" json:"cert,omitempty"`
	Key  string `yaml:"key,omitempty" json:"key,omitempty"`
}

type PushFile struct {
	Provider      string        `yaml:"provider,omitempty" json:"provider,omitempty"`
	AppID         string        `yaml:"appId,omitempty" json:"appId,omitempty"`
	APIKey        string        `yaml:"apiKey,omitempty" json:"apiKey,omitempty"`
	APIURL        string        `yaml:"apiUrl,omitempty" json:"apiUrl,omitempty"`
	ExternalID    string        `yaml:"externalId,omitempty" json:"externalId,omitempty"`
	InitRetries   int           `yaml:"initRetries,omitempty" json:"initRetries,omitempty"`
	ReadyAttempts int           `yaml:"readyAttempts,omitempty" json:"readyAttempts,omitempty"`
	ReadyInterval time.Duration `yaml:"readyInterval,omitempty" json:"readyInterval,omitempty"`
	QueryTimeout  time.Duration `yaml:"queryTimeout,omitempty" json:"queryTimeout,omitempty"`
	RatePerSecond float64       `yaml:"ratePerSecond,omitempty" json:"ratePerSecond,omitempty"`

	BreakerThreshold int           `yaml:"breakerThreshold,omitempty" json:"breakerThreshold,omitempty"`
	BreakerReset     time.Duration `yaml:"breakerReset,omitempty" json:"breakerReset,omitempty"`

	AllowLocalhostAsSecureOrigin *bool `yaml:"allowLocalhostAsSecureOrigin,omitempty" json:"allowLocalhostAsSecureOrigin,omitempty"`
	NotifyButton                 *bool `yaml:"notifyButton,omitempty" json:"notifyButton,omitempty"`
	SlidedownPrompt              *bool `yaml:"slidedownPrompt,omitempty" json:"slidedownPrompt,omitempty"`

	Simulated SimulatedFile `yaml:"simulated,omitempty" json:"simulated,omitempty"`
}

type SimulatedFile struct {
	ReadyAfter int   `yaml:"readyAfter,omitempty" json:"readyAfter,omitempty"`
	Subscribed *bool `yaml:"subscribed,omitempty" json:"subscribed,omitempty"`
}

type GateFile struct {
	PollInterval time.Duration `yaml:"pollInterval,omitempty" json:"pollInterval,omitempty"`
	MountTTL     time.Duration `yaml:"mountTTL,omitempty" json:"mountTTL,omitempty"`
}

type UIFile struct {
	AppName         string `yaml:"appName,omitempty" json:"appName,omitempty"`
	ShortName       string `yaml:"shortName,omitempty" json:"shortName,omitempty"`
	ThemeColor      string `yaml:"themeColor,omitempty" json:"themeColor,omitempty"`
	BackgroundColor string `yaml:"backgroundColor,omitempty" json:"backgroundColor,omitempty"`
	CSP             string `yaml:"csp,omitempty" json:"csp,omitempty"`
}

type APIFile struct {
	RateLimit      int      `yaml:"rateLimit,omitempty" json:"rateLimit,omitempty"`
	TrustedOrigins []string `yaml:"trustedOrigins,omitempty" json:"trustedOrigins,omitempty"`
}

// ParseFile decodes a single strict YAML document. Unknown keys fail with
// ErrUnknownConfigField.
func ParseFile(data []byte) (FileConfig, error) {
	var fc FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		if errors.Is(err, io.EOF) {
			return FileConfig{}, nil
		}
		if strings.Contains(err.Error(), "not found in type") {
			return FileConfig{}, fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
		}
		return FileConfig{}, fmt.Errorf("parse config: %w", err)
	}
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return FileConfig{}, fmt.Errorf("parse config: multiple YAML documents are not supported")
	}
	return fc, nil
}

func loadFile(path string) (FileConfig, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator supplied path
	if err != nil {
		return FileConfig{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return ParseFile(data)
}

func (fc FileConfig) apply(cfg *AppConfig) {
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.APIListenAddr, fc.Listen)
	if fc.MetricsListen != nil {
		cfg.MetricsListenAddr = *fc.MetricsListen
	}
	setString(&cfg.TLSCert, fc.TLS.Cert)
	setString(&cfg.TLSKey, fc.TLS.Key)
	setDuration(&cfg.ShutdownTimeout, fc.ShutdownTimeout)
	setString(&cfg.TracingService, fc.TracingService)
	setBool(&cfg.Tracing.Enabled, fc.Tracing.Enabled)
	setString(&cfg.Tracing.Exporter, fc.Tracing.Exporter)
	setString(&cfg.Tracing.Endpoint, fc.Tracing.Endpoint)
	if fc.Tracing.SamplingRate != nil {
		cfg.Tracing.SamplingRate = *fc.Tracing.SamplingRate
	}
	setString(&cfg.Tracing.Environment, fc.Tracing.Environment)
	setString(&cfg.RewardURL, fc.RewardURL)

	p := &cfg.Push
	setString(&p.Provider, fc.Push.Provider)
	setString(&p.AppID, fc.Push.AppID)
	setString(&p.APIKey, fc.Push.APIKey)
	setString(&p.APIBaseURL, fc.Push.APIURL)
	setString(&p.ExternalID, fc.Push.ExternalID)
	setInt(&p.InitRetries, fc.Push.InitRetries)
	setInt(&p.ReadyAttempts, fc.Push.ReadyAttempts)
	setDuration(&p.ReadyInterval, fc.Push.ReadyInterval)
	setDuration(&p.QueryTimeout, fc.Push.QueryTimeout)
	if fc.Push.RatePerSecond != 0 {
		p.RatePerSecond = fc.Push.RatePerSecond
	}
	setInt(&p.BreakerThreshold, fc.Push.BreakerThreshold)
	setDuration(&p.BreakerReset, fc.Push.BreakerReset)
	setBool(&p.AllowLocalhostAsSecureOrigin, fc.Push.AllowLocalhostAsSecureOrigin)
	setBool(&p.NotifyButtonEnabled, fc.Push.NotifyButton)
	setBool(&p.SlidedownPromptEnabled, fc.Push.SlidedownPrompt)
	setInt(&p.Simulated.ReadyAfter, fc.Push.Simulated.ReadyAfter)
	setBool(&p.Simulated.Subscribed, fc.Push.Simulated.Subscribed)

	setDuration(&cfg.Gate.PollInterval, fc.Gate.PollInterval)
	setDuration(&cfg.Gate.MountTTL, fc.Gate.MountTTL)

	setString(&cfg.UI.AppName, fc.UI.AppName)
	setString(&cfg.UI.ShortName, fc.UI.ShortName)
	setString(&cfg.UI.ThemeColor, fc.UI.ThemeColor)
	setString(&cfg.UI.BackgroundColor, fc.UI.BackgroundColor)
	setString(&cfg.UI.CSP, fc.UI.CSP)

	setInt(&cfg.API.RateLimit, fc.API.RateLimit)
	if len(fc.API.TrustedOrigins) > 0 {
		cfg.API.TrustedOrigins = append([]string(nil), fc.API.TrustedOrigins...)
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// FromAppConfig renders a resolved configuration in the file layout, for
// dumping the effective configuration.
func FromAppConfig(cfg AppConfig) FileConfig {
	metrics := cfg.MetricsListenAddr
	tracingEnabled := cfg.Tracing.Enabled
	sampling := cfg.Tracing.SamplingRate
	allowLocal := cfg.Push.AllowLocalhostAsSecureOrigin
	notify := cfg.Push.NotifyButtonEnabled
	slidedown := cfg.Push.SlidedownPromptEnabled
	simSubscribed := cfg.Push.Simulated.Subscribed

	return FileConfig{
		LogLevel:        cfg.LogLevel,
		Listen:          cfg.APIListenAddr,
		MetricsListen:   &metrics,
		TLS:             TLSFile{Cert: cfg.TLSCert, Key: cfg.TLSKey},
		ShutdownTimeout: cfg.ShutdownTimeout,
		TracingService:  cfg.TracingService,
		Tracing: TracingFile{
			Enabled:      &tracingEnabled,
			Exporter:     cfg.Tracing.Exporter,
			Endpoint:     cfg.Tracing.Endpoint,
			SamplingRate: &sampling,
			Environment:  cfg.Tracing.Environment,
		},
		RewardURL: cfg.RewardURL,
		Push: PushFile{
			Provider:                     cfg.Push.Provider,
			AppID:                        cfg.Push.AppID,
			APIKey:                       cfg.Push.APIKey,
			APIURL:                       cfg.Push.APIBaseURL,
			ExternalID:                   cfg.Push.ExternalID,
			InitRetries:                  cfg.Push.InitRetries,
			ReadyAttempts:                cfg.Push.ReadyAttempts,
			ReadyInterval:                cfg.Push.ReadyInterval,
			QueryTimeout:                 cfg.Push.QueryTimeout,
			RatePerSecond:                cfg.Push.RatePerSecond,
			BreakerThreshold:             cfg.Push.BreakerThreshold,
			BreakerReset:                 cfg.Push.BreakerReset,
			AllowLocalhostAsSecureOrigin: &allowLocal,
			NotifyButton:                 &notify,
			SlidedownPrompt:              &slidedown,
			Simulated: SimulatedFile{
				ReadyAfter: cfg.Push.Simulated.ReadyAfter,
				Subscribed: &simSubscribed,
			},
		},
		Gate: GateFile{PollInterval: cfg.Gate.PollInterval, MountTTL: cfg.Gate.MountTTL},
		UI: UIFile{
			AppName:         cfg.UI.AppName,
			ShortName:       cfg.UI.ShortName,
			ThemeColor:      cfg.UI.ThemeColor,
			BackgroundColor: cfg.UI.BackgroundColor,
			CSP:             cfg.UI.CSP,
		},
		API: APIFile{RateLimit: cfg.API.RateLimit, TrustedOrigins: cfg.API.TrustedOrigins},
	}
}

// Redact masks credentials before the layout is printed.
func (fc *FileConfig) Redact() {
	if fc.Push.APIKey != "" {
		fc.Push.APIKey = "***"
	}
}
