// prolink-core - Pro DJ Link position and identity core
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashgrove-labs/prolink-core

// Package fanout provides the generic per-subscriber delivery
// primitive shared by the position engine and the identity worker.
// A Hub tracks subscribers per PlayerId, serializes delivery to each
// one on its own goroutine so a slow or panicking subscriber never
// blocks another, and tolerates concurrent Subscribe/Unsubscribe
// during a Publish by iterating a snapshot of the subscriber set.
package fanout
