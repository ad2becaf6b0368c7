package track

// CueEntry is a hot cue or memory point inside a loaded track.
type CueEntry struct {
	TimeMs int64
	// HotCueSlot is 1..8 for a hot cue, 0 for a plain memory point.
	HotCueSlot int
}

// IsHotCue reports whether this entry occupies a hot-cue slot.
func (c CueEntry) IsHotCue() bool { return c.HotCueSlot >= 1 && c.HotCueSlot <= 8 }

// CueList is the ordered set of cue points for a track.
type CueList struct {
	Entries []CueEntry
}

// NearBeat returns the first cue entry whose beat number (computed
// against grid) is within ±1 of beat, used by the "load + jump to hot
// cue" heuristic: a status update reporting a
// beat number that lands on a cue renders the cue's exact time instead
// of the grid's time-of-beat for that number.
func (l *CueList) NearBeat(grid *BeatGrid, beat int32) (CueEntry, bool) {
	if l == nil || grid == nil {
		return CueEntry{}, false
	}
	for _, e := range l.Entries {
		cueBeat := grid.BeatAt(e.TimeMs)
		diff := cueBeat - beat
		if diff == -1 || diff == 0 || diff == 1 {
			return e, true
		}
	}
	return CueEntry{}, false
}
