// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

/*
Package services adapts Snapvault components to suture.Service.

Two lifecycle patterns are translated into suture's context-aware Serve:

ListenAndServe (HTTPServerService):

	go server.ListenAndServe()
	<-ctx.Done()
	server.Shutdown(shutdownCtx)

A server that closes while ctx is still live returns ErrServerClosed and is
restarted.

Start/Stop (SchedulerService):

	scheduler.Start(ctx)
	<-ctx.Done()
	scheduler.Stop()

Every wrapper implements fmt.Stringer so suture's log events name the
service.
*/
package services
