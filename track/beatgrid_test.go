package track

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func grid4() *BeatGrid {
	return NewBeatGrid([]Beat{
		{TimeMs: 0, BeatWithinBar: 1, TempoBPM: 120},
		{TimeMs: 500, BeatWithinBar: 2, TempoBPM: 120},
		{TimeMs: 1000, BeatWithinBar: 3, TempoBPM: 120},
		{TimeMs: 1500, BeatWithinBar: 4, TempoBPM: 120},
	})
}

func TestTimeOfBeatDirect(t *testing.T) {
	g := grid4()
	require.EqualValues(t, 0, g.TimeOfBeat(1))
	require.EqualValues(t, 1000, g.TimeOfBeat(3))
}

func TestTimeOfBeatExtrapolates(t *testing.T) {
	g := grid4()
	// interval is 500ms; beat 6 is 2 beats past count=4.
	require.EqualValues(t, 2500, g.TimeOfBeat(6))
}

func TestTimeOfBeatSingleBeatGrid(t *testing.T) {
	g := NewBeatGrid([]Beat{{TimeMs: 250, BeatWithinBar: 1}})
	require.EqualValues(t, 250, g.TimeOfBeat(1))
	require.EqualValues(t, 250, g.TimeOfBeat(40))
}

func TestBeatAt(t *testing.T) {
	g := grid4()
	require.EqualValues(t, 1, g.BeatAt(0))
	require.EqualValues(t, 1, g.BeatAt(499))
	require.EqualValues(t, 2, g.BeatAt(500))
	require.EqualValues(t, 4, g.BeatAt(1999))
}

func TestNilGridIsSafe(t *testing.T) {
	var g *BeatGrid
	require.Equal(t, 0, g.Count())
	require.EqualValues(t, 0, g.TimeOfBeat(3))
	require.EqualValues(t, 0, g.BeatAt(10))
}
