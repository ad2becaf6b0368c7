package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ashgrove-labs/prolink-core/attribution"
	"github.com/ashgrove-labs/prolink-core/fanout"
	"github.com/ashgrove-labs/prolink-core/identity"
	"github.com/ashgrove-labs/prolink-core/internal/supervisor"
	"github.com/ashgrove-labs/prolink-core/loader"
	"github.com/ashgrove-labs/prolink-core/model"
	"github.com/ashgrove-labs/prolink-core/position"
	"github.com/ashgrove-labs/prolink-core/registry"
	"github.com/ashgrove-labs/prolink-core/telemetry"
	"github.com/ashgrove-labs/prolink-core/track"
	"github.com/ashgrove-labs/prolink-core/wire"
)

// SubscriptionKind selects which downstream feed Subscribe attaches
// to for a player.
type SubscriptionKind int

const (
	// KindMovement delivers a PositionSnapshot only when the change is
	// significant enough to matter to a UI (see position.Tracker).
	KindMovement SubscriptionKind = iota
	// KindMovementAndBeats delivers every beat in addition to
	// significant movement.
	KindMovementAndBeats
	// KindSignature delivers the per-track fingerprint as it changes.
	KindSignature
	// KindMetadata delivers the loaded track's Metadata once resolved.
	KindMetadata
	// KindWaveform delivers the loaded track's WaveformDetail once
	// resolved.
	KindWaveform
)

// Engine is the single object a host application embeds: it wires the
// presence registry, artifact store and loader, position tracker,
// identity worker, and Opus attribution resolver together, and owns
// the supervision tree the background services (presence sweep,
// identity worker drain) run under. It opens no sockets itself —
// callers feed it parsed wire packets directly.
type Engine struct {
	log     zerolog.Logger
	metrics *telemetry.Metrics
	clock   wire.Clock
	config  Config

	registry    *registry.Registry
	store       *track.Store
	loader      *loader.Loader
	tracker     *position.Tracker
	identityW   *identity.Worker
	attribution *attribution.Resolver

	metadataHub *fanout.Hub[*track.Metadata]
	waveformHub *fanout.Hub[*track.WaveformDetail]

	tree *supervisor.SupervisorTree

	loadedMu sync.RWMutex
	loaded   map[model.PlayerId]model.TrackKey

	opusMu sync.RWMutex
	opus   map[model.PlayerId]bool

	archivesMu sync.RWMutex
	archives   map[model.SlotKind]loader.MediaArchive

	// running is true from New until Stop tears the engine down. It is
	// not gated by Start/Stop of the supervision tree alone: Start only
	// brings up the background sweep/identity-worker services, so an
	// engine that was never Start-ed is still a running API surface
	// (every package's own tests construct an Engine and call its
	// methods directly without Start). Stop is terminal: once cleared,
	// every subsequent call reports ErrNotRunning with no side effect,
	// matching spec's NotRunning error kind.
	running atomic.Bool

	runCancel context.CancelFunc
	runDone   <-chan error
}

// New assembles an Engine from the given options. The supervision tree
// is built but not started; call Start to begin the presence sweep and
// identity worker drain.
func New(opts ...Option) (*Engine, error) {
	o := defaultBuildOptions()
	for _, apply := range opts {
		apply(&o)
	}
	if err := o.config.Validate(); err != nil {
		return nil, err
	}

	clock := wire.SystemClock{}

	e := &Engine{
		log:      o.log,
		metrics:  o.metrics,
		clock:    clock,
		config:   o.config,
		loaded:   make(map[model.PlayerId]model.TrackKey),
		opus:     make(map[model.PlayerId]bool),
		archives: make(map[model.SlotKind]loader.MediaArchive),
	}

	e.registry = registry.New(clock, o.silenceWindow, o.log)
	e.store = track.NewStore()
	e.loader = loader.New(e.store, nil, o.clientFactory, loader.Options{
		MenuOpTimeout:         o.config.menuOpTimeout(),
		AnalysisWaitTotal:     o.config.analysisWaitTotal(),
		AnalysisRetryInterval: o.config.analysisRetryInterval(),
		CurrentTrack:          e.currentTrack,
		Metrics:               o.metrics,
		Log:                   o.log,
	})
	e.tracker = position.New(e.registry, e.store, position.Options{
		DefaultSlackMs:    o.config.DefaultSlackMs,
		UsePrecisePackets: o.config.UsePrecisePackets,
		Log:               o.log,
		Metrics:           o.metrics,
	})
	e.identityW = identity.New(o.log, o.metrics)
	e.attribution = attribution.New(o.log)
	e.metadataHub = fanout.NewHub[*track.Metadata](o.log, o.metrics)
	e.waveformHub = fanout.NewHub[*track.WaveformDetail](o.log, o.metrics)

	e.registry.Subscribe(e.onPresenceEvent)

	tree, err := supervisor.NewSupervisorTree(newSlogLogger(o.log), supervisor.DefaultTreeConfig())
	if err != nil {
		return nil, err
	}
	e.tree = tree
	e.tree.AddDataService(&sweepService{reg: e.registry, clock: clock, interval: o.sweepInterval})
	e.tree.AddMessagingService(&identityWorkerService{worker: e.identityW})

	e.running.Store(true)
	return e, nil
}

// Start brings up the supervision tree in the background. Stop (or
// cancelling ctx) tears it down.
func (e *Engine) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	e.runCancel = cancel
	e.runDone = e.tree.ServeBackground(runCtx)
}

// Stop cancels the supervision tree, waits for it to finish shutting
// down, and marks the engine as no longer running: every subsequent
// call reports ErrNotRunning rather than touching any state.
func (e *Engine) Stop() {
	e.running.Store(false)
	if e.runCancel == nil {
		return
	}
	e.runCancel()
	<-e.runDone
	e.loader.Close()
}

func (e *Engine) currentTrack(player model.PlayerId) (model.TrackKey, bool) {
	e.loadedMu.RLock()
	defer e.loadedMu.RUnlock()
	key, ok := e.loaded[player]
	return key, ok
}

func (e *Engine) onPresenceEvent(ev registry.Event) {
	if ev.Kind != registry.EventLost {
		return
	}
	e.tracker.HandleLost(ev.Player)
	e.identityW.Clear(ev.Player)
	e.store.InvalidateForPlayer(ev.Player)
	e.attribution.InvalidateForPlayer(ev.Player)

	e.loadedMu.Lock()
	delete(e.loaded, ev.Player)
	e.loadedMu.Unlock()

	e.opusMu.Lock()
	delete(e.opus, ev.Player)
	e.opusMu.Unlock()
}

// FeedAnnouncement records a device presence broadcast. Opus-class
// hardware is flagged by device name so later status updates know to
// route through the attribution resolver instead of slot identity.
// Returns ErrNotRunning with no side effect once Stop has been called.
func (e *Engine) FeedAnnouncement(pkt wire.DeviceAnnouncement) error {
	if !e.running.Load() {
		return model.ErrNotRunning
	}
	if registry.IsOpus(pkt.DeviceName) {
		e.opusMu.Lock()
		e.opus[pkt.Device] = true
		e.opusMu.Unlock()
	}
	e.registry.Observe(pkt)
	return nil
}

// FeedStatus records a status update: the position tracker always
// sees it, and a change in loaded track updates the per-player
// "currently loaded" map the loader's retry scheduler consults.
// Returns ErrNotRunning with no side effect once Stop has been called.
func (e *Engine) FeedStatus(pkt wire.StatusPacket) error {
	if !e.running.Load() {
		return model.ErrNotRunning
	}
	e.registry.Observe(wire.DeviceAnnouncement{Header: pkt.Header})

	if key, ok := pkt.TrackKey(); ok {
		e.loadedMu.Lock()
		prev, had := e.loaded[pkt.Device]
		e.loaded[pkt.Device] = key
		e.loadedMu.Unlock()
		if !had || prev != key {
			e.store.InvalidateForSlot(key.SlotOf())
		}
	}

	e.tracker.ProcessStatus(pkt)
	return nil
}

// FeedBeat records a definitive beat notification. Returns
// ErrNotRunning with no side effect once Stop has been called.
func (e *Engine) FeedBeat(pkt wire.BeatPacket) error {
	if !e.running.Load() {
		return model.ErrNotRunning
	}
	e.registry.Observe(wire.DeviceAnnouncement{Header: pkt.Header})
	e.tracker.ProcessBeat(pkt)
	return nil
}

// FeedPrecisePosition records a sub-beat timing packet from CDJ-3000
// hardware. Returns ErrNotRunning with no side effect once Stop has
// been called.
func (e *Engine) FeedPrecisePosition(pkt wire.PrecisePositionPacket) error {
	if !e.running.Load() {
		return model.ErrNotRunning
	}
	e.registry.Observe(wire.DeviceAnnouncement{Header: pkt.Header})
	e.tracker.ProcessPrecise(pkt)
	return nil
}

// IsOpusDevice reports whether player announced itself as Opus-class
// hardware, which means metadata for its loaded tracks must be routed
// through FeedSongStructure/the attribution resolver rather than
// assumed from slot identity alone.
func (e *Engine) IsOpusDevice(player model.PlayerId) bool {
	e.opusMu.RLock()
	defer e.opusMu.RUnlock()
	return e.opus[player]
}

// FeedSongStructure hands the Opus side-channel PSSI bytestring
// broadcast by player for the track currently loaded in key to the
// attribution resolver. When an attached archive owns the track, it
// resolves the song structure and triggers an identity computation;
// when none does, nothing further happens.
// Returns ErrNotRunning with no side effect once Stop has been called.
func (e *Engine) FeedSongStructure(player model.PlayerId, key model.TrackKey, pssi []byte) error {
	if !e.running.Load() {
		return model.ErrNotRunning
	}
	if _, ok := e.attribution.Resolve(context.Background(), key, pssi); !ok {
		return nil
	}
	if _, err := e.loader.Resolve(context.Background(), key, model.ArtifactSongStructure); err != nil {
		e.log.Debug().Err(err).Str("key", key.String()).Msg("song structure resolve failed")
	}
	e.maybeComputeSignature(player, key)
	return nil
}

func (e *Engine) maybeComputeSignature(player model.PlayerId, key model.TrackKey) {
	artifacts, ok := e.store.Get(key)
	if !ok {
		return
	}
	e.identityW.Enqueue(player, artifacts)
	e.publishArtifacts(player, artifacts)
}

// publishArtifacts fans out whichever of key's resolved artifacts are
// present to player's Metadata/Waveform subscribers. Called whenever a
// resolve might have filled in something new; publishing a nil-free
// artifact that a subscriber already saw is harmless, since Publish
// just overwrites the subscriber's pending value.
func (e *Engine) publishArtifacts(player model.PlayerId, artifacts *track.Artifacts) {
	if artifacts.Metadata != nil {
		e.metadataHub.Publish(player, artifacts.Metadata)
	}
	if artifacts.Waveform != nil {
		e.waveformHub.Publish(player, artifacts.Waveform)
	}
}

// LatestSnapshot returns player's current PositionSnapshot, dead
// reckoned to now. Returns (nil, false) once Stop has been called, the
// same result as "unknown", since this call has no error channel of
// its own to carry a distinct ErrNotRunning (spec's own downstream API
// table defines it as returning an option, not a result).
func (e *Engine) LatestSnapshot(player model.PlayerId) (*position.PositionSnapshot, bool) {
	if !e.running.Load() {
		return nil, false
	}
	return e.tracker.LatestSnapshot(player, e.clock)
}

// LatestSnapshotOfAnyKind returns the most recent observation of any
// kind for player, even when no PositionSnapshot could be produced.
// Returns (nil, false) once Stop has been called; see LatestSnapshot.
func (e *Engine) LatestSnapshotOfAnyKind(player model.PlayerId) (*position.LastEvent, bool) {
	if !e.running.Load() {
		return nil, false
	}
	return e.tracker.LatestEventOfAnyKind(player)
}

// TimeFor dead-reckons player's current time-in-track, in
// milliseconds, as of now. Returns -1 once Stop has been called, the
// same sentinel already used for "unknown".
func (e *Engine) TimeFor(player model.PlayerId) int64 {
	if !e.running.Load() {
		return -1
	}
	return e.tracker.TimeFor(player, e.clock)
}

// CurrentSignature returns player's most recently computed track
// fingerprint, if one has been computed for the track currently
// loaded. Returns ("", false) once Stop has been called; see
// LatestSnapshot.
func (e *Engine) CurrentSignature(player model.PlayerId) (identity.Signature, bool) {
	if !e.running.Load() {
		return "", false
	}
	return e.identityW.Current(player)
}

// Subscribe attaches sub to the given feed for player. Unsubscribe
// with the returned Handle and the same kind. Once Stop has been
// called, no subscription is created and the zero Handle is returned.
func (e *Engine) Subscribe(kind SubscriptionKind, player model.PlayerId, sub any) fanout.Handle {
	if !e.running.Load() {
		return ""
	}
	switch kind {
	case KindMovementAndBeats:
		return e.tracker.SubscribeMovementAndBeats(player, sub.(fanout.Subscriber[*position.PositionSnapshot]))
	case KindSignature:
		return e.identityW.Subscribe(player, sub.(fanout.Subscriber[*identity.Signature]))
	case KindMetadata:
		return e.metadataHub.Subscribe(player, sub.(fanout.Subscriber[*track.Metadata]))
	case KindWaveform:
		return e.waveformHub.Subscribe(player, sub.(fanout.Subscriber[*track.WaveformDetail]))
	default:
		return e.tracker.SubscribeMovement(player, sub.(fanout.Subscriber[*position.PositionSnapshot]))
	}
}

// Unsubscribe detaches a Handle previously returned by Subscribe. A
// no-op once Stop has been called, since Subscribe stops handing out
// live handles at the same point.
func (e *Engine) Unsubscribe(kind SubscriptionKind, player model.PlayerId, h fanout.Handle) {
	if !e.running.Load() {
		return
	}
	switch kind {
	case KindMovementAndBeats:
		e.tracker.UnsubscribeMovementAndBeats(player, h)
	case KindSignature:
		e.identityW.Unsubscribe(player, h)
	case KindMetadata:
		e.metadataHub.Unsubscribe(player, h)
	case KindWaveform:
		e.waveformHub.Unsubscribe(player, h)
	default:
		e.tracker.UnsubscribeMovement(player, h)
	}
}

// SetSlack adjusts the dead-reckoning divergence tolerance used to
// decide when a new status/beat is significant enough to republish.
// Range is clamped to 0..1000ms. A no-op once Stop has been called.
func (e *Engine) SetSlack(d time.Duration) {
	if !e.running.Load() {
		return
	}
	ms := d.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	if ms > 1000 {
		ms = 1000
	}
	e.tracker.SetSlackMs(ms)
}

// SetUsePrecisePackets toggles whether PrecisePositionPacket events
// are processed at all. A no-op once Stop has been called.
func (e *Engine) SetUsePrecisePackets(use bool) {
	if !e.running.Load() {
		return
	}
	e.tracker.SetUsePrecisePackets(use)
}

// AttachArchive installs archive as the provider for media loaded
// from slot, replacing whatever was attached there. Passing a nil
// archive detaches the slot. The loader's ordered provider list is
// rebuilt in SlotKind declaration order. A no-op once Stop has been
// called.
func (e *Engine) AttachArchive(slot model.SlotKind, archive loader.MediaArchive) {
	if !e.running.Load() {
		return
	}
	e.archivesMu.Lock()
	if archive == nil {
		delete(e.archives, slot)
	} else {
		e.archives[slot] = archive
	}
	ordered := make([]loader.MediaArchive, 0, len(e.archives))
	for _, s := range []model.SlotKind{model.SlotSD, model.SlotUSB, model.SlotCD, model.SlotCollection} {
		if a, ok := e.archives[s]; ok {
			ordered = append(ordered, a)
		}
	}
	e.archivesMu.Unlock()
	e.loader.SetArchives(ordered)
}

// AttachArchiveForOpus installs archive at logical Opus slot (1..3)
// for PSSI-based attribution. Passing nil detaches the slot. Returns
// ErrNotRunning with no side effect once Stop has been called.
func (e *Engine) AttachArchiveForOpus(slot int, archive loader.SongStructureArchive) error {
	if !e.running.Load() {
		return model.ErrNotRunning
	}
	return e.attribution.Attach(slot, archive)
}

// ResolveWaveform fetches the waveform artifact for key, requesting
// full per-sample detail when the engine is configured to want it and
// the coarser preview resolution otherwise. The rendering style (RGB,
// blue, or three-band) is whatever the resolved track.WaveformDetail's
// Style field carries; Config.PreferredWaveformStyle is not consulted.
// Only RGB participates in signature computation. A successful resolve is also fanned out to
// player's Waveform subscribers. Returns ErrNotRunning once Stop has
// been called.
func (e *Engine) ResolveWaveform(ctx context.Context, player model.PlayerId, key model.TrackKey) (any, error) {
	if !e.running.Load() {
		return nil, model.ErrNotRunning
	}
	kind := model.ArtifactWaveformPreview
	if e.config.FindWaveformDetail {
		kind = model.ArtifactWaveformDetail
	}
	v, err := e.loader.Resolve(ctx, key, kind)
	if err != nil {
		return nil, err
	}
	if w, ok := v.(*track.WaveformDetail); ok {
		e.waveformHub.Publish(player, w)
	}
	return v, nil
}

// ResolveMetadata fetches the metadata artifact for key, fanning a
// successful resolve out to player's Metadata subscribers. Returns
// ErrNotRunning once Stop has been called.
func (e *Engine) ResolveMetadata(ctx context.Context, player model.PlayerId, key model.TrackKey) (*track.Metadata, error) {
	if !e.running.Load() {
		return nil, model.ErrNotRunning
	}
	v, err := e.loader.Resolve(ctx, key, model.ArtifactMetadata)
	if err != nil {
		return nil, err
	}
	md, _ := v.(*track.Metadata)
	if md != nil {
		e.metadataHub.Publish(player, md)
	}
	return md, nil
}
