package identity

import (
	"testing"

	"github.com/ashgrove-labs/prolink-core/model"
	"github.com/ashgrove-labs/prolink-core/track"
)

func fullArtifacts() *track.Artifacts {
	grid := track.NewBeatGrid([]track.Beat{
		{TimeMs: 0, BeatWithinBar: 1, TempoBPM: 120},
		{TimeMs: 500, BeatWithinBar: 2, TempoBPM: 120},
		{TimeMs: 1000, BeatWithinBar: 3, TempoBPM: 120},
		{TimeMs: 1500, BeatWithinBar: 4, TempoBPM: 120},
	})
	return &track.Artifacts{
		BeatGrid: grid,
		Metadata: &track.Metadata{Title: "Test Track", ArtistLabel: "Test Artist", DurationSec: 200},
		Waveform: &track.WaveformDetail{Style: model.WaveformRGB, Data: []byte{1, 2, 3, 4}},
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	a := fullArtifacts()
	sig1, ok1 := Compute(a)
	sig2, ok2 := Compute(a)
	if !ok1 || !ok2 {
		t.Fatal("expected both computations to succeed")
	}
	if sig1 != sig2 {
		t.Fatalf("expected deterministic signature, got %s vs %s", sig1, sig2)
	}
	if len(sig1) != 40 {
		t.Fatalf("expected 40 hex chars for a SHA-1 digest, got %d", len(sig1))
	}
}

func TestComputeMissingArtistUsesPlaceholder(t *testing.T) {
	withArtist := fullArtifacts()
	withoutArtist := fullArtifacts()
	withoutArtist.Metadata.ArtistLabel = ""
	withoutArtist.Metadata.Title = withArtist.Metadata.Title

	placeholder := fullArtifacts()
	placeholder.Metadata.ArtistLabel = "[no artist]"

	sigWithout, _ := Compute(withoutArtist)
	sigPlaceholder, _ := Compute(placeholder)
	if sigWithout != sigPlaceholder {
		t.Fatal("expected empty artist to hash identically to the literal placeholder")
	}
}

func TestComputeIgnoresNonRGBWaveform(t *testing.T) {
	a := fullArtifacts()
	a.Waveform.Style = model.WaveformBlue
	if _, ok := Compute(a); ok {
		t.Fatal("expected non-RGB waveform to fail signature computation")
	}
}

func TestComputeTempoExcluded(t *testing.T) {
	a1 := fullArtifacts()
	a2 := fullArtifacts()
	a2.BeatGrid = track.NewBeatGrid([]track.Beat{
		{TimeMs: 0, BeatWithinBar: 1, TempoBPM: 140},
		{TimeMs: 500, BeatWithinBar: 2, TempoBPM: 140},
		{TimeMs: 1000, BeatWithinBar: 3, TempoBPM: 140},
		{TimeMs: 1500, BeatWithinBar: 4, TempoBPM: 140},
	})
	sig1, _ := Compute(a1)
	sig2, _ := Compute(a2)
	if sig1 != sig2 {
		t.Fatal("expected tempo differences to be excluded from the signature")
	}
}

func TestComputeMissingInputsFail(t *testing.T) {
	cases := []*track.Artifacts{
		{Metadata: fullArtifacts().Metadata, Waveform: fullArtifacts().Waveform},
		{BeatGrid: fullArtifacts().BeatGrid, Waveform: fullArtifacts().Waveform},
		{BeatGrid: fullArtifacts().BeatGrid, Metadata: fullArtifacts().Metadata},
		nil,
	}
	for i, a := range cases {
		if _, ok := Compute(a); ok {
			t.Fatalf("case %d: expected failure on incomplete artifacts", i)
		}
	}
}
