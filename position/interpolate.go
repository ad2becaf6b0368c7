package position

import (
	"math"
	"time"
)

// interpolate dead-reckons s's time-in-track forward to now. A
// non-playing snapshot returns its stored time unchanged; reverse
// playback is clamped at zero rather than going negative.
func interpolate(s *PositionSnapshot, now time.Time) int64 {
	if !s.Playing {
		return s.TimeMs
	}
	elapsedMs := now.Sub(s.Timestamp).Milliseconds()
	moved := int64(math.Round(s.PitchMultiplier() * float64(elapsedMs)))
	if s.Reverse {
		t := s.TimeMs - moved
		if t < 0 {
			return 0
		}
		return t
	}
	return s.TimeMs + moved
}
