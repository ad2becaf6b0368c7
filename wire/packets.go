package wire

import (
	"fmt"
	"time"

	"github.com/ashgrove-labs/prolink-core/model"
)

// Fixed header layout shared by every Pro DJ Link packet family.
const (
	headerMagicOffset  = 0x00
	headerMagicLen     = 10
	packetKindOffset   = 0x0A
	deviceNameOffset   = 0x0B
	deviceNameLen      = 20
	deviceNumberOffset = 0x21 // everything except the two kinds below
	altDeviceNumberOffset = 0x24
)

// headerMagic is the fixed byte pattern every packet starts with. Real
// Pro DJ Link traffic spells this "Qspt1WmJOL" in ASCII; any datagram
// that doesn't start with it is not a packet this module understands.
var headerMagic = [headerMagicLen]byte{'Q', 's', 'p', 't', '1', 'W', 'm', 'J', 'O', 'L'}

// Packet kind bytes, as found at packetKindOffset.
const (
	kindDeviceAnnouncement byte = 0x0A
	kindDeviceStatusCDJ    byte = 0x0A // disambiguated from announcement by length
	kindDeviceStatusMixer  byte = 0x29
	kindBeat               byte = 0x28
	kindPrecisePosition    byte = 0x0B
)

// Fixed packet lengths per family. A wrong length is a hard parse
// error; the packet is dropped.
const (
	lenDeviceAnnouncement = 54
	lenDeviceStatusCDJ    = 208
	lenDeviceStatusMixer  = 96
	lenBeat               = 96
	lenPrecisePosition    = 56
)

// PacketKind identifies which of the three wire families a datagram
// belongs to.
type PacketKind int

const (
	KindUnknown PacketKind = iota
	KindDeviceAnnouncement
	KindDeviceStatus
	KindBeat
	KindPrecisePosition
)

// ErrBadLength is returned when a packet's length doesn't match its
// detected family.
type ErrBadLength struct {
	Kind PacketKind
	Got  int
	Want int
}

func (e *ErrBadLength) Error() string {
	return fmt.Sprintf("wire: bad packet length for kind %d: got %d want %d", e.Kind, e.Got, e.Want)
}

// ErrBadMagic is returned when a datagram doesn't start with the
// Pro DJ Link header magic.
var ErrBadMagic = fmt.Errorf("wire: missing header magic")

// ErrUnknownKind is returned when the packet-kind byte doesn't match
// any known family.
var ErrUnknownKind = fmt.Errorf("wire: unknown packet kind")

// Header is the portion common to every packet family.
type Header struct {
	Device     model.PlayerId
	DeviceName string
	ReceivedAt time.Time
}

// DeviceAnnouncement is a periodic presence broadcast.
type DeviceAnnouncement struct {
	Header
}

// StatusPacket is a periodic device status update. IsMixer
// distinguishes the mixer sub-variant, which never carries a usable
// beat number.
type StatusPacket struct {
	Header
	IsMixer        bool
	BeatNumber     int32 // -1 if unknown
	Playing        bool
	PlayingForward bool
	Pitch          uint32 // raw 0..2097152
	BPM            float64
	TrackType      model.TrackType
	Slot           model.SlotKind
	Rekordbox      uint32
}

// TrackKey builds the TrackKey this status packet currently reports,
// or the zero value with ok=false if no track is loaded.
func (s *StatusPacket) TrackKey() (model.TrackKey, bool) {
	if s.TrackType == model.TrackTypeNone {
		return model.TrackKey{}, false
	}
	return model.TrackKey{
		Player:    s.Device,
		Slot:      s.Slot,
		Rekordbox: s.Rekordbox,
		Type:      s.TrackType,
	}, true
}

// BeatPacket is a definitive per-beat notification.
// Beat packets from non-player devices (device number 16 and above)
// are ignored: the position tracker drops them.
type BeatPacket struct {
	Header
	Pitch uint32
	BPM   float64
}

// PrecisePositionPacket is a high-rate sub-beat timing packet, emitted
// only by CDJ-3000-class hardware.
type PrecisePositionPacket struct {
	Header
	PositionMs int64
	Pitch      uint32
}

func trimDeviceName(b []byte) string {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	return string(b[:end])
}

func checkMagic(buf []byte) error {
	if len(buf) < headerMagicOffset+headerMagicLen {
		return ErrBadMagic
	}
	for i := 0; i < headerMagicLen; i++ {
		if buf[headerMagicOffset+i] != headerMagic[i] {
			return ErrBadMagic
		}
	}
	return nil
}

// DetectKind inspects a raw datagram and reports which family it
// belongs to without fully parsing it. Ambiguity between the CDJ
// status and announcement kinds (both 0x0A) is resolved by length.
func DetectKind(buf []byte) (PacketKind, error) {
	if err := checkMagic(buf); err != nil {
		return KindUnknown, err
	}
	if len(buf) <= packetKindOffset {
		return KindUnknown, ErrUnknownKind
	}
	switch buf[packetKindOffset] {
	case kindDeviceAnnouncement:
		if len(buf) == lenDeviceAnnouncement {
			return KindDeviceAnnouncement, nil
		}
		if len(buf) == lenDeviceStatusCDJ {
			return KindDeviceStatus, nil
		}
		return KindUnknown, ErrUnknownKind
	case kindDeviceStatusMixer:
		return KindDeviceStatus, nil
	case kindBeat:
		return KindBeat, nil
	case kindPrecisePosition:
		return KindPrecisePosition, nil
	default:
		return KindUnknown, ErrUnknownKind
	}
}

func parseHeader(buf []byte, numberOffset int, now time.Time) (Header, error) {
	if len(buf) <= numberOffset || len(buf) < deviceNameOffset+deviceNameLen {
		return Header{}, &ErrBadLength{Got: len(buf), Want: numberOffset + 1}
	}
	return Header{
		Device:     model.PlayerId(buf[numberOffset]),
		DeviceName: trimDeviceName(buf[deviceNameOffset : deviceNameOffset+deviceNameLen]),
		ReceivedAt: now,
	}, nil
}

// ParseDeviceAnnouncement parses a device announcement datagram.
func ParseDeviceAnnouncement(buf []byte, now time.Time) (DeviceAnnouncement, error) {
	if len(buf) != lenDeviceAnnouncement {
		return DeviceAnnouncement{}, &ErrBadLength{Kind: KindDeviceAnnouncement, Got: len(buf), Want: lenDeviceAnnouncement}
	}
	h, err := parseHeader(buf, altDeviceNumberOffset, now)
	if err != nil {
		return DeviceAnnouncement{}, err
	}
	return DeviceAnnouncement{Header: h}, nil
}
