package attribution

import (
	"bytes"
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ashgrove-labs/prolink-core/loader"
	"github.com/ashgrove-labs/prolink-core/model"
)

// SlotCount is the number of logical Opus archive slots a Resolver
// manages; the hardware exposes exactly three.
const SlotCount = 3

// Resolver matches a track's broadcast PSSI bytes against up to three
// attached archives and caches the winning archive per TrackKey until
// the player loads something else.
type Resolver struct {
	log zerolog.Logger

	mu     sync.RWMutex
	slots  [SlotCount]loader.SongStructureArchive
	cached map[model.TrackKey]loader.SongStructureArchive
}

// New creates an empty Resolver.
func New(log zerolog.Logger) *Resolver {
	return &Resolver{
		log:    log.With().Str("component", "attribution").Logger(),
		cached: make(map[model.TrackKey]loader.SongStructureArchive),
	}
}

// Attach installs archive at slot (1..3), replacing whatever was
// there. Passing a nil archive detaches the slot.
func (r *Resolver) Attach(slot int, archive loader.SongStructureArchive) error {
	if slot < 1 || slot > SlotCount {
		return model.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots[slot-1] = archive
	return nil
}

// Resolve returns the archive that owns key, consulting the cache
// first and falling back to a PSSI byte-match scan across attached
// slots, in slot order, first match wins. The winning archive is
// cached against key until Invalidate(key) is called.
func (r *Resolver) Resolve(ctx context.Context, key model.TrackKey, broadcastPSSI []byte) (loader.SongStructureArchive, bool) {
	r.mu.RLock()
	if cached, ok := r.cached[key]; ok {
		r.mu.RUnlock()
		return cached, true
	}
	slots := r.slots
	r.mu.RUnlock()

	if len(broadcastPSSI) == 0 {
		return nil, false
	}

	for _, archive := range slots {
		if archive == nil {
			continue
		}
		candidate, err := archive.SongStructure(ctx, key)
		if err != nil || len(candidate) == 0 {
			continue
		}
		if bytes.Contains(broadcastPSSI, candidate) {
			r.mu.Lock()
			r.cached[key] = archive
			r.mu.Unlock()
			r.log.Debug().Str("key", key.String()).Str("archive", archive.Name()).
				Msg("resolved Opus track attribution")
			return archive, true
		}
	}
	return nil, false
}

// Invalidate drops the cached attribution for key, e.g. when the
// player loads a different track into the same slot.
func (r *Resolver) Invalidate(key model.TrackKey) {
	r.mu.Lock()
	delete(r.cached, key)
	r.mu.Unlock()
}

// InvalidateForPlayer drops every cached attribution for tracks loaded
// on player, e.g. on Lost(player).
func (r *Resolver) InvalidateForPlayer(player model.PlayerId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.cached {
		if key.Player == player {
			delete(r.cached, key)
		}
	}
}
