// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tomtom215/snapvault/internal/alert"
	"github.com/tomtom215/snapvault/internal/api"
	"github.com/tomtom215/snapvault/internal/backup"
	"github.com/tomtom215/snapvault/internal/command"
	"github.com/tomtom215/snapvault/internal/config"
	"github.com/tomtom215/snapvault/internal/logging"
	"github.com/tomtom215/snapvault/internal/models"
	"github.com/tomtom215/snapvault/internal/scheduler"
	"github.com/tomtom215/snapvault/internal/secrets"
	"github.com/tomtom215/snapvault/internal/snapshot"
)

// Job IDs double as metric labels and alert titles.
const (
	jobSnapshotDaily   = "snapshot_daily"
	jobSnapshotWeekly  = "snapshot_weekly"
	jobSnapshotMonthly = "snapshot_monthly"
	jobReplication     = "replication"
	jobCloudSync       = "cloud_sync"
)

// app holds every long-lived handle main owns.
type app struct {
	cfg        *config.Config
	scheduler  *scheduler.Scheduler
	dispatcher *alert.Dispatcher
	router     http.Handler
	closers    []func() error
}

// buildApp wires the service from a loaded configuration.
func buildApp(cfg *config.Config, runner command.Runner, store *secrets.Store) (*app, error) {
	a := &app{cfg: cfg}

	logSecretSources(cfg, store)

	var stateStore scheduler.StateStore
	if cfg.Schedules.StateDir != "" {
		badgerStore, err := scheduler.OpenBadgerStore(cfg.Schedules.StateDir)
		if err != nil {
			return nil, fmt.Errorf("open scheduler state: %w", err)
		}
		a.closers = append(a.closers, badgerStore.Close)
		stateStore = badgerStore
	}

	a.scheduler = scheduler.New(scheduler.Config{
		Location:      cfg.Location(),
		MisfireGrace:  cfg.Schedules.MisfireGrace,
		ShutdownGrace: cfg.Shutdown.Grace,
		Store:         stateStore,
	})

	var notifier backup.Notifier
	if cfg.Alerting.Enabled {
		a.dispatcher = a.buildDispatcher(store)
		notifier = a.dispatcher
	} else {
		logging.Info().Msg("Alerting disabled")
	}
	reporter := backup.NewReporter(notifier)

	if err := a.registerJobs(runner, store, reporter); err != nil {
		a.close()
		return nil, err
	}

	handler := api.NewHandler(api.HandlerConfig{
		Service: cfg.Service.Name,
		Version: version,
		Configuration: models.ConfigurationSummary{
			ZFSDataset:        cfg.ZFS.Dataset,
			ReplicationTarget: cfg.ReplicationTarget(),
			CloudBucket:       cfg.Cloud.Bucket,
			Timezone:          cfg.Service.Timezone,
		},
		Scheduler: a.scheduler,
	})
	a.router = api.NewRouter(handler, api.RouterConfig{RateLimit: cfg.Server.RateLimit})

	return a, nil
}

func (a *app) registerJobs(runner command.Runner, store *secrets.Store, reporter *backup.Reporter) error {
	cfg := a.cfg
	catalogCfg := snapshot.CatalogConfig{
		Binary:      cfg.ZFS.Binary,
		ListTimeout: cfg.Timeouts.List,
	}
	local := snapshot.NewCatalog(runner, command.Local{}, catalogCfg)

	snapshots := backup.NewSnapshotJob(runner, local, backup.SnapshotJobConfig{
		Dataset: cfg.ZFS.Dataset,
		Binary:  cfg.ZFS.Binary,
		Keep: map[snapshot.Class]int{
			snapshot.ClassDaily:   cfg.Retention.Daily,
			snapshot.ClassWeekly:  cfg.Retention.Weekly,
			snapshot.ClassMonthly: cfg.Retention.Monthly,
		},
		Location:       cfg.Location(),
		CreateTimeout:  cfg.Timeouts.Create,
		DestroyTimeout: cfg.Timeouts.Destroy,
	})

	jobs := []scheduler.Job{
		a.job(reporter, jobSnapshotDaily, "Daily ZFS Snapshot", cfg.Schedules.SnapshotDaily, snapshots.Task(snapshot.ClassDaily)),
		a.job(reporter, jobSnapshotWeekly, "Weekly ZFS Snapshot", cfg.Schedules.SnapshotWeekly, snapshots.Task(snapshot.ClassWeekly)),
		a.job(reporter, jobSnapshotMonthly, "Monthly ZFS Snapshot", cfg.Schedules.SnapshotMonthly, snapshots.Task(snapshot.ClassMonthly)),
	}

	if cfg.Replication.Enabled {
		remote := snapshot.NewCatalog(runner, command.SSH{
			Host:            cfg.Replication.Host,
			User:            cfg.Replication.User,
			Port:            cfg.Replication.Port,
			IdentityFile:    sshKeyPath(cfg, store),
			HostKeyChecking: cfg.Replication.HostKeyChecking,
			ConnectTimeout:  cfg.Timeouts.Connectivity,
		}, catalogCfg)

		replicator := backup.NewReplicator(runner, local, remote, backup.ReplicationConfig{
			LocalDataset:       cfg.ZFS.Dataset,
			RemoteDataset:      cfg.Replication.Dataset,
			Binary:             cfg.ZFS.Binary,
			Raw:                cfg.Replication.Raw,
			Intermediate:       cfg.Replication.Intermediate,
			Verify:             cfg.Replication.Verify,
			FullTimeout:        cfg.Timeouts.Full,
			IncrementalTimeout: cfg.Timeouts.Incremental,
		})
		jobs = append(jobs, a.job(reporter, jobReplication, "ZFS Replication", cfg.Schedules.Replication, replicator.Task()))
		logging.Info().Str("target", replicator.Remote()).Msg("Replication enabled")
	} else {
		logging.Info().Msg("Replication disabled")
	}

	if cfg.Cloud.Enabled {
		cloud := backup.NewCloudSync(runner, store, backup.CloudSyncConfig{
			LocalPath:           cfg.Cloud.LocalPath,
			Remote:              cfg.Cloud.Remote,
			Bucket:              cfg.Cloud.Bucket,
			Transfers:           cfg.Cloud.Transfers,
			Checkers:            cfg.Cloud.Checkers,
			ConnectivityTimeout: cfg.Timeouts.Connectivity,
			SyncTimeout:         cfg.Timeouts.Sync,
		})
		jobs = append(jobs, a.job(reporter, jobCloudSync, "Cloud Sync", cfg.Schedules.CloudSync, cloud.Task()))
		logging.Info().Str("destination", cloud.Destination()).Msg("Cloud sync enabled")
	} else {
		logging.Info().Msg("Cloud sync disabled")
	}

	for _, job := range jobs {
		if err := a.scheduler.Add(job); err != nil {
			return fmt.Errorf("register job %s: %w", job.ID, err)
		}
	}
	return nil
}

func (a *app) job(reporter *backup.Reporter, id, name, schedule string, task backup.Task) scheduler.Job {
	return scheduler.Job{
		ID:       id,
		Name:     name,
		Schedule: schedule,
		Run: func(ctx context.Context) {
			reporter.Run(ctx, id, task)
		},
	}
}

// buildDispatcher registers every sink whose configuration is present.
// A sink that cannot be built is skipped with a warning.
func (a *app) buildDispatcher(store *secrets.Store) *alert.Dispatcher {
	cfg := a.cfg.Alerting
	var sinks []alert.Sink

	if url, ok := store.Get(cfg.WebhookRef); ok {
		sinks = append(sinks, alert.NewDiscordSink(alert.DiscordConfig{
			WebhookURL: url,
			Timeout:    cfg.Timeout,
		}))
	} else {
		logging.Warn().Str("secret", cfg.WebhookRef).Msg("Webhook secret not found, Discord alerts disabled")
	}

	if cfg.NATSURL != "" {
		natsSink, err := alert.NewNATSSink(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			logging.Warn().Err(err).Msg("NATS alert sink disabled")
		} else {
			sinks = append(sinks, natsSink)
			a.closers = append(a.closers, natsSink.Close)
		}
	}

	d := alert.NewDispatcher(alert.DispatcherConfig{
		OnSuccess: cfg.OnSuccess,
		OnFailure: cfg.OnFailure,
		Timeout:   cfg.Timeout,
	}, sinks...)

	logging.Info().
		Strs("sinks", d.Sinks()).
		Bool("on_success", cfg.OnSuccess).
		Bool("on_failure", cfg.OnFailure).
		Msg("Alerting configured")
	return d
}

// close releases resources in reverse order of acquisition.
func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// sshKeyPath prefers the path stored in the secret named by key_ref.
func sshKeyPath(cfg *config.Config, store *secrets.Store) string {
	if cfg.Replication.KeyRef != "" {
		if path, ok := store.Get(cfg.Replication.KeyRef); ok {
			return path
		}
	}
	return cfg.Replication.KeyPath
}

// logSecretSources reports where each credential resolves from, never its value.
func logSecretSources(cfg *config.Config, store *secrets.Store) {
	names := []string{cfg.Alerting.WebhookRef, secrets.B2KeyID, secrets.B2ApplicationKey}
	if cfg.Replication.KeyRef != "" {
		names = append(names, cfg.Replication.KeyRef)
	}
	for _, name := range names {
		if name == "" {
			continue
		}
		source := store.Source(name)
		if source == secrets.SourceNone {
			logging.Debug().Str("secret", name).Msg("Secret not configured")
			continue
		}
		logging.Info().Str("secret", name).Str("source", string(source)).Msg("Secret resolved")
	}
}
