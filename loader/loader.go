package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/ashgrove-labs/prolink-core/model"
	"github.com/ashgrove-labs/prolink-core/telemetry"
	"github.com/ashgrove-labs/prolink-core/track"
)

// ClientFactory builds the RemoteClient used to query player's
// dbserver, called lazily the first time a remote query is needed for
// that player.
type ClientFactory func(player model.PlayerId) (RemoteClient, error)

// CurrentTrackFunc reports the TrackKey currently loaded on player, if
// any. The retry scheduler uses it to abort a pending
// StillAnalyzing retry when the player has since loaded something
// else.
type CurrentTrackFunc func(player model.PlayerId) (model.TrackKey, bool)

// Options configures a Loader. Zero value fills in production defaults.
type Options struct {
	MenuOpTimeout         time.Duration
	AnalysisWaitTotal     time.Duration
	AnalysisRetryInterval time.Duration
	CurrentTrack          CurrentTrackFunc
	Metrics               *telemetry.Metrics
	Log                   zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.MenuOpTimeout == 0 {
		o.MenuOpTimeout = 20 * time.Second
	}
	if o.AnalysisWaitTotal == 0 {
		o.AnalysisWaitTotal = 90 * time.Second
	}
	if o.AnalysisRetryInterval == 0 {
		o.AnalysisRetryInterval = 10 * time.Second
	}
	return o
}

// session holds the per-player dbserver connection state: a lazily
// built breaker-wrapped client, the menu-operation lock (real
// hardware's dbserver client is single-threaded), and a limiter
// pacing every remote query this core sends it, retries included.
type session struct {
	mu      sync.Mutex // guards lazy client construction
	client  *breakerClient
	lock    chan struct{} // 1-buffered semaphore: the menu-operation lock
	limiter *rate.Limiter
}

func newSession() *session {
	s := &session{
		lock:    make(chan struct{}, 1),
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
	}
	s.lock <- struct{}{}
	return s
}

func (s *session) acquire(ctx context.Context) error {
	select {
	case <-s.lock:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: menu lock", model.ErrTimeout)
	}
}

func (s *session) release() {
	select {
	case s.lock <- struct{}{}:
	default:
	}
}

// Loader resolves artifacts for a TrackKey through the hot cache,
// then registered MediaArchive providers, then a per-player remote
// dbserver query.
type Loader struct {
	log     zerolog.Logger
	metrics *telemetry.Metrics
	store   *track.Store

	archivesMu sync.RWMutex
	archives   []MediaArchive
	factory    ClientFactory
	current    CurrentTrackFunc

	menuOpTimeout         time.Duration
	analysisWaitTotal     time.Duration
	analysisRetryInterval time.Duration

	mu       sync.Mutex
	sessions map[model.PlayerId]*session

	sf singleflight.Group

	inflightMu sync.Mutex
	inflight   map[string]bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Loader. archives are consulted in the order given.
// factory may be nil if no remote queries are ever needed (tests,
// archive-only deployments); any attempt to reach the remote tier
// then fails with ErrNotAvailable.
func New(store *track.Store, archives []MediaArchive, factory ClientFactory, opts Options) *Loader {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Loader{
		log:                   opts.Log,
		metrics:               opts.Metrics,
		store:                 store,
		archives:              archives,
		factory:               factory,
		current:               opts.CurrentTrack,
		menuOpTimeout:         opts.MenuOpTimeout,
		analysisWaitTotal:     opts.AnalysisWaitTotal,
		analysisRetryInterval: opts.AnalysisRetryInterval,
		sessions:              make(map[model.PlayerId]*session),
		inflight:              make(map[string]bool),
		ctx:                   ctx,
		cancel:                cancel,
	}
}

// Close drops pending retries and cancels any in-flight remote
// requests, which then report ErrCancelled.
func (l *Loader) Close() {
	l.cancel()
}

// SetArchives replaces the ordered list of local providers consulted
// between the hot cache and the remote dbserver query. Safe to call
// concurrently with resolves already in flight.
func (l *Loader) SetArchives(archives []MediaArchive) {
	l.archivesMu.Lock()
	l.archives = archives
	l.archivesMu.Unlock()
}

func (l *Loader) archiveSnapshot() []MediaArchive {
	l.archivesMu.RLock()
	defer l.archivesMu.RUnlock()
	return l.archives
}

// Resolve fetches kind for key, waiting for any remote query already
// in flight for (key.Player, kind) to finish and sharing its result.
func (l *Loader) Resolve(ctx context.Context, key model.TrackKey, kind model.ArtifactKind) (any, error) {
	return l.resolve(ctx, key, kind, true)
}

// TryResolve fetches kind for key without blocking: if the cache and
// local archives miss, it primes the cache by kicking off (or
// joining) a background remote query and immediately reports
// ErrNotAvailable rather than waiting on the network.
func (l *Loader) TryResolve(ctx context.Context, key model.TrackKey, kind model.ArtifactKind) (any, error) {
	return l.resolve(ctx, key, kind, false)
}

func (l *Loader) resolve(ctx context.Context, key model.TrackKey, kind model.ArtifactKind, wait bool) (any, error) {
	if v, ok := l.fromCache(key, kind); ok {
		l.metrics.LoaderCacheHit()
		return v, nil
	}
	l.metrics.LoaderCacheMiss()

	for _, a := range l.archiveSnapshot() {
		v, err := a.Resolve(ctx, key, kind)
		if err == nil {
			l.store.Merge(key, artifactsOf(kind, v))
			return v, nil
		}
		if errors.Is(err, model.ErrNotAvailable) {
			continue
		}
		return nil, err
	}

	return l.remote(ctx, key, kind, wait)
}

func (l *Loader) fromCache(key model.TrackKey, kind model.ArtifactKind) (any, bool) {
	a, ok := l.store.Get(key)
	if !ok {
		return nil, false
	}
	switch kind {
	case model.ArtifactMetadata:
		if a.Metadata != nil {
			return a.Metadata, true
		}
	case model.ArtifactBeatGrid:
		if a.BeatGrid != nil {
			return a.BeatGrid, true
		}
	case model.ArtifactCueList:
		if a.Cues != nil {
			return a.Cues, true
		}
	case model.ArtifactWaveformDetail, model.ArtifactWaveformPreview:
		if a.Waveform != nil {
			return a.Waveform, true
		}
	case model.ArtifactAlbumArt:
		if a.AlbumArt != nil {
			return a.AlbumArt, true
		}
	case model.ArtifactSongStructure:
		if a.SongStructure != nil {
			return a.SongStructure, true
		}
	}
	return nil, false
}

func artifactsOf(kind model.ArtifactKind, v any) *track.Artifacts {
	a := &track.Artifacts{}
	switch kind {
	case model.ArtifactMetadata:
		a.Metadata, _ = v.(*track.Metadata)
	case model.ArtifactBeatGrid:
		a.BeatGrid, _ = v.(*track.BeatGrid)
	case model.ArtifactCueList:
		a.Cues, _ = v.(*track.CueList)
	case model.ArtifactWaveformDetail, model.ArtifactWaveformPreview:
		a.Waveform, _ = v.(*track.WaveformDetail)
	case model.ArtifactAlbumArt:
		a.AlbumArt, _ = v.([]byte)
	case model.ArtifactSongStructure:
		a.SongStructure, _ = v.([]byte)
	}
	return a
}

func (l *Loader) sessionFor(player model.PlayerId) *session {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.sessions[player]
	if !ok {
		s = newSession()
		l.sessions[player] = s
	}
	return s
}

func (l *Loader) clientFor(s *session, player model.PlayerId) (*breakerClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}
	if l.factory == nil {
		return nil, model.ErrNotAvailable
	}
	raw, err := l.factory(player)
	if err != nil {
		return nil, fmt.Errorf("%w: building remote client for player %d: %v", model.ErrTransportFailure, player, err)
	}
	s.client = newBreakerClient(raw, DefaultBreakerSettings(fmt.Sprintf("player-%d", player)), l.log)
	return s.client, nil
}

func sfKey(player model.PlayerId, kind model.ArtifactKind) string {
	return fmt.Sprintf("%d:%s", player, kind)
}

func (l *Loader) remote(ctx context.Context, key model.TrackKey, kind model.ArtifactKind, wait bool) (any, error) {
	k := sfKey(key.Player, kind)

	if !wait {
		l.inflightMu.Lock()
		if l.inflight[k] {
			l.inflightMu.Unlock()
			return nil, model.ErrNotAvailable
		}
		l.inflight[k] = true
		l.inflightMu.Unlock()

		go func() {
			defer func() {
				l.inflightMu.Lock()
				delete(l.inflight, k)
				l.inflightMu.Unlock()
			}()
			v, err := l.singleflightQuery(l.ctx, key, kind, k)
			if err == nil {
				l.store.Merge(key, artifactsOf(kind, v))
			} else if errors.Is(err, model.ErrStillAnalyzing) {
				l.maybeScheduleRetry(key, kind)
			}
		}()
		return nil, model.ErrNotAvailable
	}

	v, err := l.singleflightQuery(ctx, key, kind, k)
	if err != nil {
		if errors.Is(err, model.ErrStillAnalyzing) {
			l.maybeScheduleRetry(key, kind)
		}
		return nil, err
	}
	l.store.Merge(key, artifactsOf(kind, v))
	return v, nil
}

func (l *Loader) singleflightQuery(ctx context.Context, key model.TrackKey, kind model.ArtifactKind, k string) (any, error) {
	l.metrics.LoaderInflightDelta(1)
	defer l.metrics.LoaderInflightDelta(-1)

	v, err, _ := l.sf.Do(k, func() (any, error) {
		return l.queryOnce(ctx, key, kind)
	})
	return v, err
}

func (l *Loader) queryOnce(ctx context.Context, key model.TrackKey, kind model.ArtifactKind) (any, error) {
	// Close cancels l.ctx; tie ctx to it so queries started through
	// Resolve are interrupted as well as the background ones.
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	defer context.AfterFunc(l.ctx, stop)()

	s := l.sessionFor(key.Player)
	client, err := l.clientFor(s, key.Player)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", model.ErrCancelled, err)
	}

	lockCtx, cancel := context.WithTimeout(ctx, l.menuOpTimeout)
	defer cancel()
	if err := s.acquire(lockCtx); err != nil {
		if l.ctx.Err() != nil {
			return nil, fmt.Errorf("%w: loader closed", model.ErrCancelled)
		}
		l.log.Info().Str("component", "loader").Int("player", int(key.Player)).Msg("menu lock timeout")
		return nil, model.ErrNotAvailable
	}
	defer s.release()

	v, err := client.query(ctx, key, kind)
	l.metrics.LoaderBreakerState(fmt.Sprintf("%d", key.Player), float64(client.state()))
	if err == nil {
		return v, nil
	}

	switch {
	case l.ctx.Err() != nil:
		return nil, fmt.Errorf("%w: loader closed", model.ErrCancelled)
	case errors.Is(err, model.ErrStillAnalyzing):
		return nil, err
	case errors.Is(err, model.ErrTransportFailure):
		l.log.Warn().Str("component", "loader").Int("player", int(key.Player)).Err(err).Msg("dbserver transport failure, rebuilding connection")
		s.mu.Lock()
		if s.client != nil {
			_ = s.client.inner.Close()
			s.client = nil
		}
		s.mu.Unlock()
		return nil, model.ErrNotAvailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, model.ErrTimeout):
		l.log.Info().Str("component", "loader").Int("player", int(key.Player)).Msg("remote query timeout")
		return nil, model.ErrNotAvailable
	default:
		return nil, model.ErrNotAvailable
	}
}

// maybeScheduleRetry starts the analysis retry loop for key/kind if
// the loaded track is (still) reported UNANALYZED. It self-terminates
// once analysisWaitTotal has elapsed since this, the first, request,
// or once the player's currently loaded track no longer matches key.
func (l *Loader) maybeScheduleRetry(key model.TrackKey, kind model.ArtifactKind) {
	if key.Type != model.TrackTypeUnanalyzed {
		return
	}
	deadline := time.Now().Add(l.analysisWaitTotal)
	go l.retryLoop(key, kind, deadline)
}

func (l *Loader) retryLoop(key model.TrackKey, kind model.ArtifactKind, deadline time.Time) {
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		wait := l.analysisRetryInterval
		if wait > remaining {
			wait = remaining
		}
		select {
		case <-time.After(wait):
		case <-l.ctx.Done():
			return
		}

		if l.current != nil {
			cur, ok := l.current(key.Player)
			if !ok || cur != key {
				return
			}
		}

		v, err := l.singleflightQuery(l.ctx, key, kind, sfKey(key.Player, kind))
		if err == nil {
			l.store.Merge(key, artifactsOf(kind, v))
			return
		}
		if !errors.Is(err, model.ErrStillAnalyzing) {
			return
		}
	}
}
