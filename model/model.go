// prolink-core - Pro DJ Link position and identity core
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashgrove-labs/prolink-core

// Package model holds the identity types shared across every other
// package in the module: player numbers, slot and track identity, and
// the device-kind classification used to tell decks from mixers and
// discovery gateways apart. Keeping these in one leaf package avoids
// import cycles between wire, registry, track, loader, and position.
package model

import "fmt"

// PlayerId is a logical device index on the network. Players use 1-6,
// mixers use 33, and discovery gateways (ignored entirely, see
// GatewayDeviceNumber) use 25.
type PlayerId int

// Reserved device numbers.
const (
	MixerDeviceNumber   PlayerId = 33
	GatewayDeviceNumber PlayerId = 25
)

// GatewayDeviceName is the reserved vendor name a discovery gateway
// announces at GatewayDeviceNumber. CDJ-3000 networks bring one of
// these up and down constantly and the registry must not treat its
// churn as real player join/leave activity.
const GatewayDeviceName = "NXS-GW"

// DeviceKind classifies a PlayerId by its device-number range.
type DeviceKind int

const (
	DeviceKindUnknown DeviceKind = iota
	DeviceKindPlayer
	DeviceKindMixer
	DeviceKindGateway
)

// KindOf classifies a device number, independent of any announced name.
func KindOf(id PlayerId) DeviceKind {
	switch {
	case id == GatewayDeviceNumber:
		return DeviceKindGateway
	case id == MixerDeviceNumber:
		return DeviceKindMixer
	case id >= 1 && id <= 6:
		return DeviceKindPlayer
	default:
		return DeviceKindUnknown
	}
}

// SlotKind is the kind of media slot a track is loaded from.
type SlotKind int

const (
	SlotUnknown SlotKind = iota
	SlotSD
	SlotUSB
	SlotCD
	SlotCollection
)

func (k SlotKind) String() string {
	switch k {
	case SlotSD:
		return "SD"
	case SlotUSB:
		return "USB"
	case SlotCD:
		return "CD"
	case SlotCollection:
		return "COLLECTION"
	default:
		return "UNKNOWN"
	}
}

// SlotRef names a media slot on a player.
type SlotRef struct {
	Player PlayerId
	Slot   SlotKind
}

// TrackType distinguishes how a loaded track should be resolved.
type TrackType int

const (
	TrackTypeNone TrackType = iota
	TrackTypeRekordbox
	TrackTypeUnanalyzed
	TrackTypeCD
)

func (t TrackType) String() string {
	switch t {
	case TrackTypeRekordbox:
		return "REKORDBOX"
	case TrackTypeUnanalyzed:
		return "UNANALYZED"
	case TrackTypeCD:
		return "CD_TRACK"
	default:
		return "NO_TRACK"
	}
}

// TrackKey uniquely names a loadable artifact. It is the key used
// throughout track.Store and loader.Loader.
type TrackKey struct {
	Player    PlayerId
	Slot      SlotKind
	Rekordbox uint32
	Type      TrackType
}

// String renders a TrackKey for logs; it is not a parseable format.
func (k TrackKey) String() string {
	return fmt.Sprintf("player=%d slot=%s id=%d type=%s", k.Player, k.Slot, k.Rekordbox, k.Type)
}

// SlotOf returns the SlotRef a TrackKey is loaded from.
func (k TrackKey) SlotOf() SlotRef {
	return SlotRef{Player: k.Player, Slot: k.Slot}
}

// ArtifactKind enumerates the artifacts the loader can resolve for a
// TrackKey.
type ArtifactKind int

const (
	ArtifactMetadata ArtifactKind = iota
	ArtifactBeatGrid
	ArtifactCueList
	ArtifactWaveformPreview
	ArtifactWaveformDetail
	ArtifactAlbumArt
	ArtifactSongStructure
)

func (k ArtifactKind) String() string {
	switch k {
	case ArtifactMetadata:
		return "metadata"
	case ArtifactBeatGrid:
		return "beat_grid"
	case ArtifactCueList:
		return "cue_list"
	case ArtifactWaveformPreview:
		return "waveform_preview"
	case ArtifactWaveformDetail:
		return "waveform_detail"
	case ArtifactAlbumArt:
		return "album_art"
	case ArtifactSongStructure:
		return "song_structure"
	default:
		return "unknown"
	}
}

// WaveformStyle distinguishes the rendering style of a waveform;
// signature computation is pinned to WaveformRGB so
// fingerprints stay comparable across readers.
type WaveformStyle int

const (
	WaveformBlue WaveformStyle = iota
	WaveformRGB
	WaveformThreeBand
)

func (s WaveformStyle) String() string {
	switch s {
	case WaveformRGB:
		return "RGB"
	case WaveformThreeBand:
		return "THREE_BAND"
	default:
		return "BLUE"
	}
}
