// prolink-core - Pro DJ Link position and identity core
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashgrove-labs/prolink-core

// Package loader resolves track artifacts (metadata, beat grid, cue
// list, waveforms, album art, song structure) for a TrackKey, trying
// the hot cache, then registered MediaArchive providers, then a
// per-player remote dbserver query, in that order. Remote
// queries are deduplicated with golang.org/x/sync/singleflight,
// circuit-broken per player with sony/gobreaker, and serialized by a
// per-player menu-operation lock because the real hardware's dbserver
// client is single-threaded.
package loader
