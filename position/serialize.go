package position

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/ashgrove-labs/prolink-core/model"
)

// wireSnapshot is the JSON projection of a PositionSnapshot. The beat
// grid itself is never serialized — it is bulky and derivable from the
// player's TrackKey — so only the beat count a host might want to
// render a position bar against is included.
type wireSnapshot struct {
	Player     model.PlayerId `json:"player"`
	Timestamp  time.Time      `json:"timestamp"`
	TimeMs     int64          `json:"time_ms"`
	Beat       int32          `json:"beat"`
	BeatCount  int            `json:"beat_count"`
	Playing    bool           `json:"playing"`
	Reverse    bool           `json:"reverse"`
	Pitch      uint32         `json:"pitch"`
	Source     string         `json:"source"`
	Definitive bool           `json:"definitive"`
}

// MarshalJSON renders the snapshot for a host application's own
// transport (dashboards, debug endpoints); the module itself never
// opens a socket.
func (s *PositionSnapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireSnapshot{
		Player:     s.Player,
		Timestamp:  s.Timestamp,
		TimeMs:     s.TimeMs,
		Beat:       s.Beat,
		BeatCount:  s.Grid.Count(),
		Playing:    s.Playing,
		Reverse:    s.Reverse,
		Pitch:      s.Pitch,
		Source:     s.Source.String(),
		Definitive: s.Definitive,
	})
}
