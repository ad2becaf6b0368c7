// prolink-core - Pro DJ Link position and identity core
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashgrove-labs/prolink-core

// Package identity computes the stable per-track SHA-1 fingerprint
// used to recognize "the same track" across reloads and across
// players, and notifies subscribers when a player's signature
// changes. Hashing is deliberately kept off the position engine's
// dispatch thread: it runs on a single dedicated worker draining a
// bounded request queue, so a burst of track loads degrades to
// dropped, retried-later requests rather than stalling position
// updates.
package identity
