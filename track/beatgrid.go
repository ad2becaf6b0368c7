package track

// Beat is one entry of a BeatGrid: the time within the track at which
// a beat falls, and which beat-within-bar (1-4) it is.
type Beat struct {
	TimeMs        int64
	BeatWithinBar int32 // 1..4
	TempoBPM      float64
}

// BeatGrid is the ordered, time-monotonic sequence of beats for a
// track. Beat numbers are 1-based to match the wire protocol's status
// and beat packets.
type BeatGrid struct {
	beats []Beat
}

// NewBeatGrid builds a BeatGrid from an ordered beat sequence. beats
// must already be sorted by TimeMs and non-empty; callers that resolve
// grids from the loader are expected to enforce this since it mirrors
// what the wire protocol actually sends.
func NewBeatGrid(beats []Beat) *BeatGrid {
	cp := make([]Beat, len(beats))
	copy(cp, beats)
	return &BeatGrid{beats: cp}
}

// Count returns the number of beats in the grid.
func (g *BeatGrid) Count() int {
	if g == nil {
		return 0
	}
	return len(g.beats)
}

// BeatWithinBar returns the bar position (1-4) of beat n, or 0 if n is
// out of range.
func (g *BeatGrid) BeatWithinBar(n int32) int32 {
	if g == nil || n < 1 || int(n) > len(g.beats) {
		return 0
	}
	return g.beats[n-1].BeatWithinBar
}

// TempoAt returns the tempo recorded at beat n, or 0 if out of range.
// Interpolation uses the snapshot's own pitch multiplier
// rather than this value; TempoAt exists so the grid is a complete
// model of what it stores, for callers that want to log or display
// the track's tempo map.
func (g *BeatGrid) TempoAt(n int32) float64 {
	if g == nil || n < 1 || int(n) > len(g.beats) {
		return 0
	}
	return g.beats[n-1].TempoBPM
}

// TimeOfBeat returns the time-within-track, in milliseconds, of beat
// number n. For n within the grid this is a direct
// lookup. For n beyond Count (the looping case) it extrapolates using
// the interval between the last two beats. A grid with fewer than two
// beats always returns the first beat's time, regardless of n.
func (g *BeatGrid) TimeOfBeat(n int32) int64 {
	if g == nil || len(g.beats) == 0 {
		return 0
	}
	if len(g.beats) < 2 {
		return g.beats[0].TimeMs
	}
	if n < 1 {
		n = 1
	}
	if int(n) <= len(g.beats) {
		return g.beats[n-1].TimeMs
	}
	last := g.beats[len(g.beats)-1].TimeMs
	secondToLast := g.beats[len(g.beats)-2].TimeMs
	interval := last - secondToLast
	overshoot := int64(n) - int64(len(g.beats))
	return last + interval*overshoot
}

// BeatAt returns the beat number whose time is closest to (and not
// after) timeMs — the beat the playhead is currently inside. Used to
// compare an interpolated position back against a reported beat
// number.
func (g *BeatGrid) BeatAt(timeMs int64) int32 {
	if g == nil || len(g.beats) == 0 {
		return 0
	}
	if timeMs <= g.beats[0].TimeMs {
		return 1
	}
	lo, hi := 0, len(g.beats)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if g.beats[mid].TimeMs <= timeMs {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return int32(lo + 1)
}
