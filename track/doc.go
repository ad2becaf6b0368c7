// prolink-core - Pro DJ Link position and identity core
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashgrove-labs/prolink-core

// Package track holds the read-mostly per-track artifacts the engine
// reasons about — beat grids, metadata, cue lists, and waveform detail
// bytes — and the Store that caches them by TrackKey. The
// Store is populated lazily by loader.Loader; it never fetches
// anything itself.
package track
