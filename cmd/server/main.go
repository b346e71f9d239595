// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/snapvault/internal/command"
	"github.com/tomtom215/snapvault/internal/config"
	"github.com/tomtom215/snapvault/internal/logging"
	"github.com/tomtom215/snapvault/internal/secrets"
	"github.com/tomtom215/snapvault/internal/supervisor"
	"github.com/tomtom215/snapvault/internal/supervisor/services"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// httpShutdownTimeout bounds connection draining for the status server.
const httpShutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to config.yaml (overrides CONFIG_PATH)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("snapvault", version)
		return
	}

	os.Exit(run(*configPath))
}

func run(configPath string) int {
	// Load never fails; bad values are replaced by defaults and reported.
	cfg, report := config.Load(config.Options{Path: configPath})

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Service:   cfg.Service.Name,
		Version:   version,
	})

	logger := logging.Logger()
	report.Log(&logger)

	logging.Info().
		Str("dataset", cfg.ZFS.Dataset).
		Str("timezone", cfg.Service.Timezone).
		Msg("Starting Snapvault")

	store := secrets.NewStore(secrets.Config{
		DockerDir: cfg.Secrets.DockerDir,
		LocalDir:  cfg.Secrets.LocalDir,
		EnvPrefix: cfg.Secrets.EnvPrefix,
	})

	a, err := buildApp(cfg, command.NewExecRunner(), store)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to initialize")
		return 1
	}
	defer func() {
		if err := a.close(); err != nil {
			logging.Error().Err(err).Msg("Error releasing resources")
		}
	}()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		// Leave room for the scheduler to report jobs that outlive the grace.
		ShutdownTimeout: cfg.Shutdown.Grace + httpShutdownTimeout,
	})
	if err != nil {
		logging.Error().Err(err).Msg("Failed to create supervisor tree")
		return 1
	}

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	tree.AddJobService(services.NewSchedulerService(a.scheduler))
	tree.AddAPIService(services.NewHTTPServerService(server, httpShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("Status server configured")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := tree.ServeBackground(ctx)

	// errCh delivers exactly once and is never closed.
	var treeErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, stopping services...")
		treeErr = <-errCh
	case treeErr = <-errCh:
	}
	stop()

	if treeErr != nil && !errors.Is(treeErr, context.Canceled) {
		logging.Error().Err(treeErr).Msg("Supervisor tree error")
	}

	logUnstopped(tree)

	logging.Info().Msg("Snapvault stopped")
	return 0
}

type unstoppedReporter interface {
	UnstoppedServiceReport() ([]suture.UnstoppedService, error)
}

// logUnstopped warns about every service still running after shutdown and
// returns how many there were.
func logUnstopped(r unstoppedReporter) int {
	unstopped, err := r.UnstoppedServiceReport()
	if err != nil {
		logging.Error().Err(err).Msg("Failed to collect unstopped service report")
	}
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}
	return len(unstopped)
}
