package wire

import (
	"encoding/binary"
	"time"

	"github.com/ashgrove-labs/prolink-core/model"
)

// Status payload field offsets, past the common header.
const (
	statusPlayingOffset    = 0x27
	statusTrackTypeOffset  = 0x28
	statusSlotOffset       = 0x29
	statusRekordboxOffset  = 0x2C // 4 bytes, big-endian
	statusBeatNumberOffset = 0x30 // 4 bytes, big-endian, signed
	statusPitchOffset      = 0x34 // 4 bytes, big-endian
	statusBPMOffset        = 0x38 // 2 bytes, big-endian, BPM*100
)

// Playing/forward flag bits within statusPlayingOffset.
const (
	flagPlaying        = 1 << 0
	flagPlayingForward = 1 << 1
)

func decodeTrackType(b byte) model.TrackType {
	switch b {
	case 1:
		return model.TrackTypeRekordbox
	case 2:
		return model.TrackTypeUnanalyzed
	case 5:
		return model.TrackTypeCD
	default:
		return model.TrackTypeNone
	}
}

func decodeSlot(b byte) model.SlotKind {
	switch b {
	case 1:
		return model.SlotSD
	case 2:
		return model.SlotUSB
	case 3:
		return model.SlotCD
	case 4:
		return model.SlotCollection
	default:
		return model.SlotUnknown
	}
}

// ParseStatus parses either CDJ-style or mixer status datagrams. The
// mixer variant never carries beat/track fields, matching the engine's
// refusal to synthesize positions for it.
func ParseStatus(buf []byte, now time.Time) (StatusPacket, error) {
	kind, err := DetectKind(buf)
	if err != nil {
		return StatusPacket{}, err
	}
	if kind != KindDeviceStatus {
		return StatusPacket{}, ErrUnknownKind
	}

	isMixer := len(buf) == lenDeviceStatusMixer
	wantLen := lenDeviceStatusCDJ
	if isMixer {
		wantLen = lenDeviceStatusMixer
	}
	if len(buf) != wantLen {
		return StatusPacket{}, &ErrBadLength{Kind: KindDeviceStatus, Got: len(buf), Want: wantLen}
	}

	h, err := parseHeader(buf, deviceNumberOffset, now)
	if err != nil {
		return StatusPacket{}, err
	}

	p := StatusPacket{Header: h, IsMixer: isMixer}
	if isMixer {
		// Mixers report presence only; no track, no beat.
		p.BeatNumber = -1
		p.TrackType = model.TrackTypeNone
		return p, nil
	}

	if len(buf) < statusBPMOffset+2 {
		return StatusPacket{}, &ErrBadLength{Kind: KindDeviceStatus, Got: len(buf), Want: statusBPMOffset + 2}
	}

	flags := buf[statusPlayingOffset]
	p.Playing = flags&flagPlaying != 0
	p.PlayingForward = flags&flagPlayingForward != 0
	p.TrackType = decodeTrackType(buf[statusTrackTypeOffset])
	p.Slot = decodeSlot(buf[statusSlotOffset])
	p.Rekordbox = binary.BigEndian.Uint32(buf[statusRekordboxOffset:])
	p.BeatNumber = int32(binary.BigEndian.Uint32(buf[statusBeatNumberOffset:]))
	p.Pitch = binary.BigEndian.Uint32(buf[statusPitchOffset:])
	p.BPM = float64(binary.BigEndian.Uint16(buf[statusBPMOffset:])) / 100.0

	if p.TrackType == model.TrackTypeNone {
		p.BeatNumber = -1
	}

	return p, nil
}
