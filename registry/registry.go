package registry

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ashgrove-labs/prolink-core/model"
	"github.com/ashgrove-labs/prolink-core/wire"
)

// EventKind distinguishes a join from a loss.
type EventKind int

const (
	EventJoined EventKind = iota
	EventLost
)

// Event is delivered to Listeners on presence changes.
type Event struct {
	Kind   EventKind
	Player model.PlayerId
}

// Listener receives registry Events. Called synchronously from
// Observe/Sweep; keep it fast, it runs on the caller's goroutine.
type Listener func(Event)

type entry struct {
	name      string
	lastHeard time.Time
}

// Registry tracks which player device numbers are currently present.
// It is the prerequisite for every other component: the
// beat grid store, artifact loader, and position engine all purge
// their per-player state off the Lost events this emits.
type Registry struct {
	mu        sync.Mutex
	present   map[model.PlayerId]entry
	listeners []Listener
	timeout   time.Duration
	clock     wire.Clock
	log       zerolog.Logger
}

// New creates a Registry. timeout is the silence threshold after
// which a player without a fresh announcement is declared Lost.
func New(clock wire.Clock, timeout time.Duration, log zerolog.Logger) *Registry {
	return &Registry{
		present: make(map[model.PlayerId]entry),
		timeout: timeout,
		clock:   clock,
		log:     log.With().Str("component", "registry").Logger(),
	}
}

// Subscribe registers a Listener for Joined/Lost events.
func (r *Registry) Subscribe(l Listener) {
	r.mu.Lock()
	r.listeners = append(r.listeners, l)
	r.mu.Unlock()
}

func (r *Registry) notify(ev Event) {
	r.mu.Lock()
	ls := make([]Listener, len(r.listeners))
	copy(ls, r.listeners)
	r.mu.Unlock()
	for _, l := range ls {
		l(ev)
	}
}

// Observe records a device announcement. A device reporting the
// reserved gateway name at GatewayDeviceNumber is ignored outright —
// it appears and disappears constantly on CDJ-3000 networks and is
// not a real participant.
func (r *Registry) Observe(a wire.DeviceAnnouncement) {
	if a.Device == model.GatewayDeviceNumber && a.DeviceName == model.GatewayDeviceName {
		return
	}

	r.mu.Lock()
	_, existed := r.present[a.Device]
	r.present[a.Device] = entry{name: a.DeviceName, lastHeard: a.ReceivedAt}
	r.mu.Unlock()

	if !existed {
		r.log.Info().Int("player", int(a.Device)).Str("name", a.DeviceName).Msg("player joined")
		r.notify(Event{Kind: EventJoined, Player: a.Device})
	}
}

// MarkLost removes a player immediately, e.g. on an explicit leave
// notification from the discovery plane.
func (r *Registry) MarkLost(id model.PlayerId) {
	r.mu.Lock()
	_, existed := r.present[id]
	delete(r.present, id)
	r.mu.Unlock()
	if existed {
		r.log.Info().Int("player", int(id)).Msg("player lost")
		r.notify(Event{Kind: EventLost, Player: id})
	}
}

// Sweep expires players whose last announcement is older than the
// silence timeout, relative to now. Call this periodically from a
// ticker on the engine's supervision tree.
func (r *Registry) Sweep(now time.Time) {
	var lost []model.PlayerId
	r.mu.Lock()
	for id, e := range r.present {
		if now.Sub(e.lastHeard) > r.timeout {
			lost = append(lost, id)
			delete(r.present, id)
		}
	}
	r.mu.Unlock()

	for _, id := range lost {
		r.log.Info().Int("player", int(id)).Msg("player silent, declared lost")
		r.notify(Event{Kind: EventLost, Player: id})
	}
}

// Present returns a snapshot of currently-known player ids.
func (r *Registry) Present() []model.PlayerId {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]model.PlayerId, 0, len(r.present))
	for id := range r.present {
		ids = append(ids, id)
	}
	return ids
}

// IsPresent reports whether id is currently known.
func (r *Registry) IsPresent(id model.PlayerId) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.present[id]
	return ok
}

// DeviceName returns the last-announced name for id, if present.
func (r *Registry) DeviceName(id model.PlayerId) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.present[id]
	return e.name, ok
}

// Kind classifies id by device-number range, independent of
// presence.
func (r *Registry) Kind(id model.PlayerId) model.DeviceKind {
	return model.KindOf(id)
}

// IsPreNexusCDJ reports whether name identifies a pre-nexus CDJ
// (prefix "CDJ", suffix "900" or "2000"). These units never provide
// beat numbers and the engine refuses to synthesize positions for
// them.
func IsPreNexusCDJ(name string) bool {
	if !strings.HasPrefix(name, "CDJ") {
		return false
	}
	return strings.HasSuffix(name, "900") || strings.HasSuffix(name, "2000")
}

// IsOpus reports whether name identifies Opus-class hardware, which
// reports all media as "USB" and requires PSSI-based attribution.
func IsOpus(name string) bool {
	return strings.Contains(strings.ToUpper(name), "OPUS")
}
