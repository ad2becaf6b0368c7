// prolink-core - Pro DJ Link position and identity core
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashgrove-labs/prolink-core

/*
Package supervisor provides process supervision using suture v4.

It implements a hierarchical supervisor tree that manages the lifecycle
of a host's long-running services, with Erlang/OTP-style supervision:
automatic restart, failure isolation, and graceful shutdown.

# Overview

The tree organizes services into three layers for failure isolation:

	RootSupervisor
	├── DataSupervisor ("data-layer")
	├── MessagingSupervisor ("messaging-layer")
	└── APISupervisor ("api-layer")

A crash in one layer does not affect the others; each layer restarts
independently. A caller with only background-style services (no API
surface of its own) can use a single layer and leave the rest empty —
this module's engine package adds its presence sweep to the data layer
and its identity worker drain to the messaging layer, and never touches
the API layer since it owns no sockets.

# Usage Example

	tree, err := supervisor.NewSupervisorTree(logger, supervisor.DefaultTreeConfig())
	if err != nil {
	    log.Fatal(err)
	}
	tree.AddDataService(mySweepService)
	tree.AddMessagingService(myWorkerService)

	errChan := tree.ServeBackground(ctx)
	// ...
	if err := <-errChan; err != nil {
	    log.Printf("supervisor stopped: %v", err)
	}

# Configuration

The TreeConfig controls restart behavior:

	config := supervisor.TreeConfig{
	    FailureThreshold: 5.0,              // Failures before backoff
	    FailureDecay:     30.0,             // Seconds for failures to decay
	    FailureBackoff:   15 * time.Second, // Backoff duration
	    ShutdownTimeout:  10 * time.Second, // Per-service shutdown timeout
	}

# Failure Handling

Each service failure increments a counter that decays exponentially
over FailureDecay seconds. Once the counter exceeds FailureThreshold,
the supervisor enters backoff and delays restarts by FailureBackoff.

# Service Interface

All services implement suture.Service:

	type Service interface {
	    Serve(ctx context.Context) error
	}

Return nil for a clean stop (no restart); return an error to be
restarted; return promptly once ctx is canceled.

# Debugging Shutdown Issues

	report, err := tree.UnstoppedServiceReport()
	for _, svc := range report {
	    log.Printf("service didn't stop: %v", svc)
	}
*/
package supervisor
