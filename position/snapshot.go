package position

import (
	"time"

	"github.com/ashgrove-labs/prolink-core/model"
	"github.com/ashgrove-labs/prolink-core/track"
)

// Source identifies which packet family produced a PositionSnapshot.
type Source int

const (
	SourceStatus Source = iota
	SourceBeat
	SourcePrecise
)

func (s Source) String() string {
	switch s {
	case SourceBeat:
		return "BEAT"
	case SourcePrecise:
		return "PRECISE"
	default:
		return "STATUS"
	}
}

// pitchUnity is the raw pitch value meaning 1.0x playback speed.
const pitchUnity = 1 << 20

// PositionSnapshot is what the engine currently believes about one
// player.
type PositionSnapshot struct {
	Player     model.PlayerId
	Timestamp  time.Time
	TimeMs     int64
	Beat       int32
	Playing    bool
	Reverse    bool
	Pitch      uint32
	Grid       *track.BeatGrid
	Source     Source
	Definitive bool
}

// PitchMultiplier converts the raw pitch integer to a playback speed
// multiplier, where pitchUnity means 1.0x.
func (s *PositionSnapshot) PitchMultiplier() float64 {
	return float64(s.Pitch) / float64(pitchUnity)
}

// EventKind distinguishes which packet family a LastEvent came from,
// independent of whether that event produced a usable snapshot. A
// Kind() accessor lets subscribers log why an answer changed.
type EventKind int

const (
	EventKindStatus EventKind = iota
	EventKindBeat
	EventKindPrecise
)

// LastEvent records the most recent observation of any kind for a
// player, even when no beat grid was known and no PositionSnapshot
// could be produced.
type LastEvent struct {
	Player    model.PlayerId
	Timestamp time.Time
	kind      EventKind
}

// Kind reports which packet family produced this LastEvent.
func (e LastEvent) Kind() EventKind { return e.kind }
