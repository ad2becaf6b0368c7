package identity

import (
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"

	"github.com/ashgrove-labs/prolink-core/model"
	"github.com/ashgrove-labs/prolink-core/track"
)

// Signature is the lowercase-hex-encoded SHA-1 fingerprint of a track.
type Signature string

// Compute derives Signature from artifacts. It returns ok=false when
// any required input is missing: metadata, an RGB waveform, or a beat
// grid. Tempo is deliberately excluded from the per-beat bytes so that
// signatures stay compatible with a fixed historical framing.
func Compute(a *track.Artifacts) (Signature, bool) {
	if a == nil || a.Metadata == nil || a.Waveform == nil || a.BeatGrid == nil {
		return "", false
	}
	if a.Waveform.Style != model.WaveformRGB {
		return "", false
	}

	h := sha1.New()

	h.Write([]byte(a.Metadata.Title))
	h.Write([]byte{0x00})

	h.Write([]byte(a.Metadata.SignatureArtist()))
	h.Write([]byte{0x00})

	var durBuf [4]byte
	binary.BigEndian.PutUint32(durBuf[:], uint32(a.Metadata.DurationSec))
	h.Write(durBuf[:])

	h.Write(a.Waveform.Data)

	var beatBuf [8]byte
	for n := int32(1); int(n) <= a.BeatGrid.Count(); n++ {
		binary.BigEndian.PutUint32(beatBuf[0:4], uint32(a.BeatGrid.BeatWithinBar(n)))
		binary.BigEndian.PutUint32(beatBuf[4:8], uint32(a.BeatGrid.TimeOfBeat(n)))
		h.Write(beatBuf[:])
	}

	return Signature(hex.EncodeToString(h.Sum(nil))), true
}
