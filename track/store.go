package track

import (
	"sync"

	"github.com/ashgrove-labs/prolink-core/model"
)

// Artifacts bundles the four per-track pieces the engine needs to
// compute a position and a signature.
type Artifacts struct {
	BeatGrid      *BeatGrid
	Metadata      *Metadata
	Cues          *CueList
	Waveform      *WaveformDetail // last waveform resolved, of any style; only RGB feeds the signature
	AlbumArt      []byte
	SongStructure []byte // PSSI bytes, used by the Opus attribution resolver
}

// Store is the read-mostly per-TrackKey artifact cache. It never
// fetches anything — loader.Loader populates it lazily on resolve —
// and entries are removed only by explicit Invalidate* calls: the
// engine makes them on the registry's Lost events and when a player
// reports a newly loaded track.
//
// Unlike a typical TTL cache, entries never expire on their own:
// correctness here depends on invalidation being driven explicitly by
// those events, not wall-clock expiry.
type Store struct {
	mu      sync.RWMutex
	tracks  map[model.TrackKey]*Artifacts
	rgbWave map[model.TrackKey]*WaveformDetail // nothing writes to it; the Invalidate* calls clear it alongside tracks
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		tracks:  make(map[model.TrackKey]*Artifacts),
		rgbWave: make(map[model.TrackKey]*WaveformDetail),
	}
}

// PutIfAbsent installs artifacts for key only if nothing is cached yet
// for it, returning the artifacts now in the store (either the ones
// just installed, or whatever raced ahead of this call).
func (s *Store) PutIfAbsent(key model.TrackKey, a *Artifacts) *Artifacts {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.tracks[key]; ok {
		return existing
	}
	s.tracks[key] = a
	return a
}

// Merge fills in any fields of key's cached Artifacts that are nil,
// from partial results the loader resolved one artifact kind at a
// time. Creates the entry if none exists yet.
func (s *Store) Merge(key model.TrackKey, partial *Artifacts) *Artifacts {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.tracks[key]
	if !ok {
		existing = &Artifacts{}
		s.tracks[key] = existing
	}
	if partial.BeatGrid != nil {
		existing.BeatGrid = partial.BeatGrid
	}
	if partial.Metadata != nil {
		existing.Metadata = partial.Metadata
	}
	if partial.Cues != nil {
		existing.Cues = partial.Cues
	}
	if partial.Waveform != nil {
		existing.Waveform = partial.Waveform
	}
	if partial.AlbumArt != nil {
		existing.AlbumArt = partial.AlbumArt
	}
	if partial.SongStructure != nil {
		existing.SongStructure = partial.SongStructure
	}
	return existing
}

// Get returns the cached Artifacts for key, if any.
func (s *Store) Get(key model.TrackKey) (*Artifacts, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.tracks[key]
	return a, ok
}

// Invalidate drops the cached artifacts for a single track. Best
// effort: the engine tolerates a grid disappearing mid-session, it
// simply stops producing positions for any player on it.
func (s *Store) Invalidate(key model.TrackKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tracks, key)
	delete(s.rgbWave, key)
}

// InvalidateForSlot drops every cached track that was loaded from the
// given slot. The engine calls it when a player reports a newly loaded
// track from that slot.
func (s *Store) InvalidateForSlot(slot model.SlotRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.tracks {
		if key.SlotOf() == slot {
			delete(s.tracks, key)
			delete(s.rgbWave, key)
		}
	}
}

// InvalidateForPlayer drops every cached track whose TrackKey
// references player, called on Lost(player).
func (s *Store) InvalidateForPlayer(player model.PlayerId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.tracks {
		if key.Player == player {
			delete(s.tracks, key)
			delete(s.rgbWave, key)
		}
	}
}

// Snapshot returns a point-in-time copy of every cached TrackKey, safe
// to range over while the store continues to mutate concurrently.
func (s *Store) Snapshot() map[model.TrackKey]*Artifacts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make(map[model.TrackKey]*Artifacts, len(s.tracks))
	for k, v := range s.tracks {
		cp[k] = v
	}
	return cp
}
