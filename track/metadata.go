package track

import "github.com/ashgrove-labs/prolink-core/model"

// noArtistLabel is substituted for the signature's artist byte stream
// when a track has no artist — the literal string the stable signature
// revision used, preserved for cross-compatibility.
const noArtistLabel = "[no artist]"

// Metadata is the descriptive information attached to a loaded track.
// Title and ArtistLabel are optional: an empty string means "none",
// substituted with defaults only inside the signature hash; callers
// that want to display metadata should treat empty fields as
// genuinely unknown rather than rendering the signature's
// substitution text.
type Metadata struct {
	Title        string
	ArtistLabel  string
	Album        string
	Genre        string
	DurationSec  int
	Rating       int
	OriginalYear int
}

// SignatureArtist returns the byte stream to hash for the artist field,
// substituting the fixed placeholder when no artist is known.
func (m Metadata) SignatureArtist() string {
	if m.ArtistLabel == "" {
		return noArtistLabel
	}
	return m.ArtistLabel
}

// WaveformDetail is opaque per-sample waveform rendering data. Only
// the RGB style participates in signature computation;
// other styles are cached and served but must never be substituted
// into a signature hash.
type WaveformDetail struct {
	Style model.WaveformStyle
	Data  []byte
}
