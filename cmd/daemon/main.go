// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ManuGH/freesession/internal/config"
	"github.com/ManuGH/freesession/internal/daemon"
	"github.com/ManuGH/freesession/internal/health"
	xglog "github.com/ManuGH/freesession/internal/log"
	"github.com/ManuGH/freesession/internal/telemetry"
	"github.com/ManuGH/freesession/internal/version"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			os.Exit(runConfigCLI(os.Args[2:]))
		case "healthcheck":
			os.Exit(runHealthcheckCLI(os.Args[2:]))
		}
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	// Safe defaults until the configuration is loaded.
	xglog.Configure(xglog.Config{Level: "info", Service: "freesession", Version: version.Version})
	logger := xglog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path := strings.TrimSpace(*configPath)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("FREESESSION_CONFIG"))
	}
	loader := config.NewLoader(path, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(xglog.FieldEvent, "config.load_failed").
			Str("config_path", path).
			Msg("failed to load configuration")
	}

	xglog.Configure(xglog.Config{Level: cfg.LogLevel, Service: "freesession", Version: cfg.Version})
	logger = xglog.WithComponent("daemon")

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Fatal().
			Err(err).
			Str(xglog.FieldEvent, "startup.check_failed").
			Msg("startup checks failed")
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    cfg.TracingService,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Tracing.Environment,
		ExporterType:   cfg.Tracing.Exporter,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
	})
	if err != nil {
		logger.Fatal().Err(err).Str(xglog.FieldEvent, "telemetry.init_failed").Msg("failed to initialize tracing")
	}

	rt, err := buildRuntime(cfg)
	if err != nil {
		logger.Fatal().Err(err).Str(xglog.FieldEvent, "startup.wiring_failed").Msg("failed to build services")
	}

	logger.Info().
		Str(xglog.FieldEvent, "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("addr", cfg.APIListenAddr).
		Str("provider", cfg.Push.Provider).
		Str(xglog.FieldAppID, cfg.Push.AppID).
		Bool("tls", cfg.TLSCert != "").
		Bool("tracing", cfg.Tracing.Enabled).
		Msg("starting freesession")

	mgr, err := daemon.NewManager(daemon.DefaultServerConfig(cfg.ShutdownTimeout), daemon.Deps{
		Logger:         logger,
		Config:         cfg,
		APIHandler:     rt.server.Handler(),
		MetricsHandler: promhttp.Handler(),
	})
	if err != nil {
		rt.close()
		logger.Fatal().Err(err).Str(xglog.FieldEvent, "manager.creation.failed").Msg("failed to create daemon manager")
	}

	// LIFO: mounts stop before the push client, spans flush last.
	mgr.RegisterShutdownHook("telemetry", tp.Shutdown)
	mgr.RegisterShutdownHook("push", func(context.Context) error {
		rt.client.Close()
		return nil
	})
	mgr.RegisterShutdownHook("gates", func(context.Context) error {
		rt.gates.Close()
		return nil
	})

	holder := config.NewHolder(cfg, loader)
	holder.OnReload(func(next config.AppConfig) {
		if err := xglog.SetLevel(next.LogLevel); err != nil {
			logger.Warn().Err(err).Msg("keeping previous log level")
		}
		rt.server.SetRewardURL(next.RewardURL)
	})

	app := daemon.NewApp(logger, mgr)
	app.AddWorker("mount-janitor", rt.gates)
	app.AddWorker("config-watcher", holder)
	if err := app.Run(ctx); err != nil {
		logger.Fatal().
			Err(err).
			Str(xglog.FieldEvent, "manager.failed").
			Msg("daemon app failed")
	}

	logger.Info().Msg("server exiting")
}
