// prolink-core - Pro DJ Link position and identity core
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashgrove-labs/prolink-core

// Package attribution resolves which attached archive actually owns a
// track loaded on Opus-class hardware. Opus players report every slot
// as generic "USB" and never expose which physical device served a
// given load, so the only way to tell archives apart is to match the
// PSSI (Song Structure) bytes the player broadcasts against each
// archive's own analysis data: whichever archive's PSSI bytes appear
// as a contiguous sub-slice of the player's broadcast owns the track.
package attribution
