package wire

import (
	"encoding/binary"
	"time"
)

const (
	beatPitchOffset = 0x28 // 4 bytes, big-endian
	beatBPMOffset   = 0x2C // 2 bytes, big-endian, BPM*100

	precisePositionOffset = 0x28 // 8 bytes, big-endian, ms
	precisePitchOffset    = 0x30 // 4 bytes, big-endian
)

// ParseBeat parses a beat notification datagram.
func ParseBeat(buf []byte, now time.Time) (BeatPacket, error) {
	kind, err := DetectKind(buf)
	if err != nil {
		return BeatPacket{}, err
	}
	if kind != KindBeat {
		return BeatPacket{}, ErrUnknownKind
	}
	if len(buf) != lenBeat {
		return BeatPacket{}, &ErrBadLength{Kind: KindBeat, Got: len(buf), Want: lenBeat}
	}
	h, err := parseHeader(buf, deviceNumberOffset, now)
	if err != nil {
		return BeatPacket{}, err
	}
	return BeatPacket{
		Header: h,
		Pitch:  binary.BigEndian.Uint32(buf[beatPitchOffset:]),
		BPM:    float64(binary.BigEndian.Uint16(buf[beatBPMOffset:])) / 100.0,
	}, nil
}

// ParsePrecisePosition parses a CDJ-3000-class sub-beat position
// packet.
func ParsePrecisePosition(buf []byte, now time.Time) (PrecisePositionPacket, error) {
	kind, err := DetectKind(buf)
	if err != nil {
		return PrecisePositionPacket{}, err
	}
	if kind != KindPrecisePosition {
		return PrecisePositionPacket{}, ErrUnknownKind
	}
	if len(buf) != lenPrecisePosition {
		return PrecisePositionPacket{}, &ErrBadLength{Kind: KindPrecisePosition, Got: len(buf), Want: lenPrecisePosition}
	}
	h, err := parseHeader(buf, altDeviceNumberOffset, now)
	if err != nil {
		return PrecisePositionPacket{}, err
	}
	return PrecisePositionPacket{
		Header:     h,
		PositionMs: int64(binary.BigEndian.Uint64(buf[precisePositionOffset:])),
		Pitch:      binary.BigEndian.Uint32(buf[precisePitchOffset:]),
	}, nil
}
