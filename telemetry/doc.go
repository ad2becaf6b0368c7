// prolink-core - Pro DJ Link position and identity core
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashgrove-labs/prolink-core

// Package telemetry defines the Prometheus collectors shared across
// the engine. Metrics is always safe to use: every method is a
// nil-receiver no-op, so a caller that never calls New (or passes a
// nil *Metrics into a constructor) gets a core with no metrics
// backend at all.
package telemetry
