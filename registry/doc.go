// prolink-core - Pro DJ Link position and identity core
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashgrove-labs/prolink-core

// Package registry tracks which player device numbers are currently
// present on the network. It is the prerequisite every
// other component is built on: the position engine, the beat grid
// store, and the artifact loader all key their per-player state off
// Joined/Lost events from here.
package registry
