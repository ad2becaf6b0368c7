// prolink-core - Pro DJ Link position and identity core
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashgrove-labs/prolink-core

// Package position is the engine's heart: it turns
// StatusPacket/BeatPacket/PrecisePositionPacket events into
// PositionSnapshots, dead-reckons playback time between events, and
// fans out movement to subscribers only when the divergence between
// what they last saw and what dead reckoning now predicts exceeds a
// configurable slack. Per-player snapshot state is a single atomic
// pointer swapped with compare-and-swap retry rather than guarded by a
// lock; only looking a player up in the tracker's state map takes a
// read lock (a write lock when the player is first seen or lost).
package position
