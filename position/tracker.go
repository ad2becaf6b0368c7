package position

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ashgrove-labs/prolink-core/fanout"
	"github.com/ashgrove-labs/prolink-core/model"
	"github.com/ashgrove-labs/prolink-core/registry"
	"github.com/ashgrove-labs/prolink-core/telemetry"
	"github.com/ashgrove-labs/prolink-core/track"
	"github.com/ashgrove-labs/prolink-core/wire"
)

type playerState struct {
	snapshot      atomic.Pointer[PositionSnapshot]
	lastDelivered atomic.Pointer[PositionSnapshot]
	lastEvent     atomic.Pointer[LastEvent]
}

// Options configures a Tracker. New replaces a zero DefaultSlackMs
// with 50; the other fields are used as given, so the zero value
// leaves precise packets disabled.
type Options struct {
	DefaultSlackMs    int64
	UsePrecisePackets bool
	Log               zerolog.Logger
	Metrics           *telemetry.Metrics
}

func (o Options) withDefaults() Options {
	if o.DefaultSlackMs == 0 {
		o.DefaultSlackMs = 50
	}
	return o
}

// Tracker is the position engine: it owns one playerState
// per PlayerId and the two fanout hubs downstream subscribers attach
// to. Registry and Store are read-only collaborators it never
// mutates.
type Tracker struct {
	log      zerolog.Logger
	metrics  *telemetry.Metrics
	registry *registry.Registry
	store    *track.Store

	slackMs    atomic.Int64
	usePrecise atomic.Bool

	statesMu sync.RWMutex
	states   map[model.PlayerId]*playerState

	movement *fanout.Hub[*PositionSnapshot] // Movement kind
	beats    *fanout.Hub[*PositionSnapshot] // MovementAndBeats kind
}

// New creates a Tracker.
func New(reg *registry.Registry, store *track.Store, opts Options) *Tracker {
	opts = opts.withDefaults()
	t := &Tracker{
		log:      opts.Log,
		metrics:  opts.Metrics,
		registry: reg,
		store:    store,
		states:   make(map[model.PlayerId]*playerState),
		movement: fanout.NewHub[*PositionSnapshot](opts.Log, opts.Metrics),
		beats:    fanout.NewHub[*PositionSnapshot](opts.Log, opts.Metrics),
	}
	t.slackMs.Store(opts.DefaultSlackMs)
	t.usePrecise.Store(opts.UsePrecisePackets)
	return t
}

// SetSlackMs adjusts the dead-reckoning divergence tolerance. Range
// 0..1000 is enforced by the engine layer above.
func (t *Tracker) SetSlackMs(ms int64) { t.slackMs.Store(ms) }

// SetUsePrecisePackets toggles whether PrecisePositionPacket events
// are processed at all.
func (t *Tracker) SetUsePrecisePackets(use bool) { t.usePrecise.Store(use) }

func (t *Tracker) stateFor(player model.PlayerId) *playerState {
	t.statesMu.RLock()
	st, ok := t.states[player]
	t.statesMu.RUnlock()
	if ok {
		return st
	}
	t.statesMu.Lock()
	defer t.statesMu.Unlock()
	if st, ok := t.states[player]; ok {
		return st
	}
	st = &playerState{}
	t.states[player] = st
	return st
}

// LatestSnapshot returns the current PositionSnapshot for player,
// with its time-in-track dead-reckoned to now.
func (t *Tracker) LatestSnapshot(player model.PlayerId, clock wire.Clock) (*PositionSnapshot, bool) {
	st := t.stateFor(player)
	s := st.snapshot.Load()
	if s == nil {
		return nil, false
	}
	cp := *s
	cp.TimeMs = interpolate(s, clock.Now())
	return &cp, true
}

// LatestEventOfAnyKind returns the most recent observation for player
// regardless of whether it produced a usable snapshot.
func (t *Tracker) LatestEventOfAnyKind(player model.PlayerId) (*LastEvent, bool) {
	st := t.stateFor(player)
	e := st.lastEvent.Load()
	if e == nil {
		return nil, false
	}
	return e, true
}

// TimeFor is a convenience wrapper over LatestSnapshot returning -1
// when the player's position is unknown.
func (t *Tracker) TimeFor(player model.PlayerId, clock wire.Clock) int64 {
	s, ok := t.LatestSnapshot(player, clock)
	if !ok {
		return -1
	}
	return s.TimeMs
}

// SubscribeMovement registers sub for significant movement changes
// only.
func (t *Tracker) SubscribeMovement(player model.PlayerId, sub fanout.Subscriber[*PositionSnapshot]) fanout.Handle {
	return t.movement.Subscribe(player, sub)
}

// SubscribeMovementAndBeats registers sub for significant movement
// changes plus every beat-sourced snapshot, even insignificant ones:
// a beat-wanting subscriber always receives a beat event.
func (t *Tracker) SubscribeMovementAndBeats(player model.PlayerId, sub fanout.Subscriber[*PositionSnapshot]) fanout.Handle {
	return t.beats.Subscribe(player, sub)
}

// UnsubscribeMovement and UnsubscribeMovementAndBeats remove a
// subscription from the hub it was registered on; callers know which
// they used.
func (t *Tracker) UnsubscribeMovement(player model.PlayerId, h fanout.Handle) {
	t.movement.Unsubscribe(player, h)
}

func (t *Tracker) UnsubscribeMovementAndBeats(player model.PlayerId, h fanout.Handle) {
	t.beats.Unsubscribe(player, h)
}

// HandleLost clears every map entry for player and delivers one
// terminal nil snapshot to its subscribers before removing them.
func (t *Tracker) HandleLost(player model.PlayerId) {
	t.statesMu.Lock()
	delete(t.states, player)
	t.statesMu.Unlock()

	t.movement.UnsubscribeAll(player, nil)
	t.beats.UnsubscribeAll(player, nil)
}

// ProcessStatus applies a StatusUpdate event.
func (t *Tracker) ProcessStatus(pkt wire.StatusPacket) {
	if pkt.IsMixer {
		return
	}
	if name, ok := t.registry.DeviceName(pkt.Device); ok && registry.IsPreNexusCDJ(name) {
		return
	}

	st := t.stateFor(pkt.Device)
	t.recordLastEvent(st, pkt.Device, pkt.ReceivedAt, EventKindStatus)

	for {
		cur := st.snapshot.Load()
		if cur != nil && !pkt.ReceivedAt.After(cur.Timestamp) {
			t.metrics.PositionDroppedStale()
			return
		}
		if cur != nil && cur.Source == SourcePrecise {
			return
		}

		next := t.buildFromStatus(pkt, cur)
		if st.snapshot.CompareAndSwap(cur, next) {
			t.afterUpdate(pkt.Device, cur, next)
			return
		}
	}
}

func (t *Tracker) buildFromStatus(pkt wire.StatusPacket, cur *PositionSnapshot) *PositionSnapshot {
	if pkt.BeatNumber < 0 {
		return nil
	}
	key, ok := pkt.TrackKey()
	if !ok {
		return nil
	}
	artifacts, ok := t.store.Get(key)
	if !ok || artifacts.BeatGrid == nil {
		return nil
	}
	grid := artifacts.BeatGrid
	reverse := !pkt.PlayingForward

	if cur == nil || cur.Grid != grid {
		timeMs := grid.TimeOfBeat(pkt.BeatNumber)
		if artifacts.Cues != nil {
			if entry, found := artifacts.Cues.NearBeat(grid, pkt.BeatNumber); found {
				timeMs = entry.TimeMs
			}
		}
		return &PositionSnapshot{
			Player: pkt.Device, Timestamp: pkt.ReceivedAt, TimeMs: timeMs, Beat: pkt.BeatNumber,
			Playing: pkt.Playing, Reverse: reverse, Pitch: pkt.Pitch, Grid: grid,
			Source: SourceStatus, Definitive: false,
		}
	}

	interpolated := interpolate(cur, pkt.ReceivedAt)
	diff := grid.BeatAt(interpolated) - pkt.BeatNumber
	playing := pkt.Playing

	var timeMs int64
	switch {
	case diff > -2 && diff < 2:
		timeMs = interpolated
	case !reverse:
		timeMs = grid.TimeOfBeat(pkt.BeatNumber)
	default:
		timeMs = grid.TimeOfBeat(pkt.BeatNumber + 1)
	}

	if reverse && timeMs <= 0 {
		timeMs = 0
		playing = false
	}

	return &PositionSnapshot{
		Player: pkt.Device, Timestamp: pkt.ReceivedAt, TimeMs: timeMs, Beat: pkt.BeatNumber,
		Playing: playing, Reverse: reverse, Pitch: pkt.Pitch, Grid: grid,
		Source: SourceStatus, Definitive: false,
	}
}

// ProcessBeat applies a BeatPacket event. Beat packets
// from non-player devices are the caller's responsibility to filter
// before this is reached; it is defensive here too.
func (t *Tracker) ProcessBeat(pkt wire.BeatPacket) {
	if pkt.Device >= 16 {
		return
	}

	st := t.stateFor(pkt.Device)
	t.recordLastEvent(st, pkt.Device, pkt.ReceivedAt, EventKindBeat)

	for {
		cur := st.snapshot.Load()
		if cur == nil || cur.Grid == nil {
			return
		}
		if !pkt.ReceivedAt.After(cur.Timestamp) {
			t.metrics.PositionDroppedStale()
			return
		}

		newBeat := cur.Beat
		if pkt.BPM > 0 {
			interpolated := interpolate(cur, pkt.ReceivedAt)
			beatStart := cur.Grid.TimeOfBeat(cur.Beat)
			elapsedInBeat := float64(interpolated - beatStart)
			beatDurationMs := 60000.0 / pkt.BPM
			if elapsedInBeat >= beatDurationMs/5.0 {
				newBeat = cur.Beat + 1
				if int(newBeat) > cur.Grid.Count() {
					newBeat = int32(cur.Grid.Count())
				}
			}
		}

		next := &PositionSnapshot{
			Player: pkt.Device, Timestamp: pkt.ReceivedAt, TimeMs: cur.Grid.TimeOfBeat(newBeat), Beat: newBeat,
			Playing: true, Reverse: false, Pitch: pkt.Pitch, Grid: cur.Grid,
			Source: SourceBeat, Definitive: true,
		}
		if st.snapshot.CompareAndSwap(cur, next) {
			t.afterUpdate(pkt.Device, cur, next)
			return
		}
	}
}

// ProcessPrecise applies a PrecisePositionPacket event.
// Ignored entirely when precise packets are disabled.
func (t *Tracker) ProcessPrecise(pkt wire.PrecisePositionPacket) {
	if !t.usePrecise.Load() {
		return
	}

	st := t.stateFor(pkt.Device)
	t.recordLastEvent(st, pkt.Device, pkt.ReceivedAt, EventKindPrecise)

	for {
		cur := st.snapshot.Load()
		if cur == nil {
			return
		}
		if !pkt.ReceivedAt.After(cur.Timestamp) {
			t.metrics.PositionDroppedStale()
			return
		}

		var beat int32
		if cur.Grid != nil {
			beat = cur.Grid.BeatAt(pkt.PositionMs)
		}

		next := &PositionSnapshot{
			Player: pkt.Device, Timestamp: pkt.ReceivedAt, TimeMs: pkt.PositionMs, Beat: beat,
			Playing: cur.Playing, Reverse: cur.Reverse, Pitch: pkt.Pitch, Grid: cur.Grid,
			Source: SourcePrecise, Definitive: true,
		}
		if st.snapshot.CompareAndSwap(cur, next) {
			t.afterUpdate(pkt.Device, cur, next)
			return
		}
	}
}

func (t *Tracker) recordLastEvent(st *playerState, player model.PlayerId, ts time.Time, kind EventKind) {
	st.lastEvent.Store(&LastEvent{Player: player, Timestamp: ts, kind: kind})
}

func (t *Tracker) afterUpdate(player model.PlayerId, prev, next *PositionSnapshot) {
	if next != nil {
		t.metrics.PositionUpdated(next.Source.String())
	}
	t.log.Debug().Str("component", "position").Int("player", int(player)).
		Bool("had_prev", prev != nil).Bool("has_next", next != nil).Msg("snapshot updated")

	st := t.stateFor(player)
	lastDelivered := st.lastDelivered.Load()

	if t.isSignificant(lastDelivered, next) {
		st.lastDelivered.Store(next)
		t.movement.Publish(player, next)
		t.beats.Publish(player, next)
		return
	}
	if next != nil && next.Source == SourceBeat {
		t.beats.Publish(player, next)
	}
}

func (t *Tracker) isSignificant(last, next *PositionSnapshot) bool {
	if next == nil {
		return last != nil
	}
	if last == nil {
		return true
	}
	if last.Playing != next.Playing {
		return true
	}

	threshold := 1e-6
	if (last.Source == SourcePrecise && next.Source == SourceBeat) ||
		(last.Source == SourceBeat && next.Source == SourcePrecise) {
		threshold = 1e-3
	}
	if math.Abs(last.PitchMultiplier()-next.PitchMultiplier()) > threshold {
		return true
	}

	slack := t.slackMs.Load()
	if !next.Playing {
		slack = 0
	}
	now := next.Timestamp
	delta := interpolate(last, now) - interpolate(next, now)
	if delta < 0 {
		delta = -delta
	}
	return delta > slack
}
