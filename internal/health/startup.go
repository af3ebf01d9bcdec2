// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"

	"github.com/ManuGH/freesession/internal/config"
	"github.com/ManuGH/freesession/internal/log"
	xnet "github.com/ManuGH/freesession/internal/platform/net"
	"github.com/rs/zerolog"
)

// PerformStartupChecks validates the runtime environment before the server
// starts. Configuration syntax is already checked by config.Validate; this
// covers what can only be known on the host.
func PerformStartupChecks(_ context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if err := checkTLS(logger, cfg.TLSCert, cfg.TLSKey); err != nil {
		return fmt.Errorf("tls check failed: %w", err)
	}
	checkPush(logger, cfg)

	u, ok := xnet.ParseDirectHTTPURL(cfg.RewardURL)
	if !ok {
		return fmt.Errorf("reward url %q is not a direct http(s) URL", xnet.SanitizeURL(cfg.RewardURL))
	}
	if u.Scheme != "https" {
		logger.Warn().Str("url", xnet.SanitizeURL(cfg.RewardURL)).Msg("reward URL is not https; installed apps may refuse to open it")
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}

func checkTLS(logger zerolog.Logger, certFile, keyFile string) error {
	if certFile == "" && keyFile == "" {
		logger.Warn().Msg("TLS not configured; browsers only allow push on https or localhost")
		return nil
	}
	for _, p := range []string{certFile, keyFile} {
		if err := checkFileReadable(p); err != nil {
			return err
		}
	}
	if _, err := tls.LoadX509KeyPair(certFile, keyFile); err != nil {
		return fmt.Errorf("load key pair: %w", err)
	}
	logger.Info().Msg("TLS key pair is valid")
	return nil
}

func checkPush(logger zerolog.Logger, cfg config.AppConfig) {
	switch {
	case cfg.Push.Provider == config.ProviderSimulated:
		logger.Warn().Msg("push provider is simulated; subscriptions are not delivered anywhere")
	case cfg.Push.AppID == "":
		logger.Warn().Msg("push app ID not configured; installed apps will stay on the permission step")
	default:
		logger.Info().
			Str(log.FieldAppID, cfg.Push.AppID).
			Str("url", xnet.SanitizeURL(cfg.Push.APIBaseURL)).
			Msg("push provider configured")
	}
}

func checkFileReadable(path string) error {
	f, err := os.Open(path) // #nosec G304 -- path comes from operator config; verifying readability is expected
	if err != nil {
		return err
	}
	return f.Close()
}
