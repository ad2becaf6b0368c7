package loader

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ashgrove-labs/prolink-core/model"
	"github.com/ashgrove-labs/prolink-core/track"
)

var testKey = model.TrackKey{Player: 1, Slot: model.SlotUSB, Rekordbox: 42, Type: model.TrackTypeRekordbox}

type fakeArchive struct {
	name     string
	metadata *track.Metadata
	err      error
}

func (a *fakeArchive) Name() string { return a.name }

func (a *fakeArchive) Resolve(ctx context.Context, key model.TrackKey, kind model.ArtifactKind) (any, error) {
	if kind != model.ArtifactMetadata {
		return nil, model.ErrNotAvailable
	}
	if a.err != nil {
		return nil, a.err
	}
	if a.metadata == nil {
		return nil, model.ErrNotAvailable
	}
	return a.metadata, nil
}

type fakeRemote struct {
	calls       int32
	resultFn    func(calls int32) (any, error)
	closeCalled int32
}

func (r *fakeRemote) Query(ctx context.Context, key model.TrackKey, kind model.ArtifactKind) (any, error) {
	n := atomic.AddInt32(&r.calls, 1)
	return r.resultFn(n)
}

func (r *fakeRemote) Close() error {
	atomic.AddInt32(&r.closeCalled, 1)
	return nil
}

func TestResolveHitsCacheBeforeArchivesOrRemote(t *testing.T) {
	s := track.NewStore()
	s.PutIfAbsent(testKey, &track.Artifacts{Metadata: &track.Metadata{Title: "cached"}})

	l := New(s, nil, nil, Options{})
	v, err := l.Resolve(context.Background(), testKey, model.ArtifactMetadata)
	require.NoError(t, err)
	require.Equal(t, "cached", v.(*track.Metadata).Title)
}

func TestResolveFallsThroughToArchive(t *testing.T) {
	s := track.NewStore()
	archive := &fakeArchive{name: "archive-a", metadata: &track.Metadata{Title: "from-archive"}}

	l := New(s, []MediaArchive{archive}, nil, Options{})
	v, err := l.Resolve(context.Background(), testKey, model.ArtifactMetadata)
	require.NoError(t, err)
	require.Equal(t, "from-archive", v.(*track.Metadata).Title)

	cached, ok := s.Get(testKey)
	require.True(t, ok)
	require.Equal(t, "from-archive", cached.Metadata.Title)
}

func TestResolveFallsThroughToRemoteWhenArchivesDecline(t *testing.T) {
	s := track.NewStore()
	archive := &fakeArchive{name: "archive-a"} // declines everything
	remote := &fakeRemote{resultFn: func(int32) (any, error) {
		return &track.Metadata{Title: "from-remote"}, nil
	}}

	l := New(s, []MediaArchive{archive}, func(model.PlayerId) (RemoteClient, error) { return remote, nil }, Options{})
	v, err := l.Resolve(context.Background(), testKey, model.ArtifactMetadata)
	require.NoError(t, err)
	require.Equal(t, "from-remote", v.(*track.Metadata).Title)
}

func TestResolveSingleFlightsConcurrentRemoteCalls(t *testing.T) {
	s := track.NewStore()
	remote := &fakeRemote{resultFn: func(int32) (any, error) {
		time.Sleep(20 * time.Millisecond)
		return &track.Metadata{Title: "shared"}, nil
	}}

	l := New(s, nil, func(model.PlayerId) (RemoteClient, error) { return remote, nil }, Options{})

	results := make(chan error, 5)
	for i := 0; i < 5; i++ {
		go func() {
			_, err := l.Resolve(context.Background(), testKey, model.ArtifactMetadata)
			results <- err
		}()
	}
	for i := 0; i < 5; i++ {
		require.NoError(t, <-results)
	}
	require.EqualValues(t, 1, atomic.LoadInt32(&remote.calls))
}

func TestTryResolveReturnsNotAvailableAndPrimesCache(t *testing.T) {
	s := track.NewStore()
	done := make(chan struct{})
	remote := &fakeRemote{resultFn: func(int32) (any, error) {
		defer close(done)
		return &track.Metadata{Title: "primed"}, nil
	}}

	l := New(s, nil, func(model.PlayerId) (RemoteClient, error) { return remote, nil }, Options{})
	_, err := l.TryResolve(context.Background(), testKey, model.ArtifactMetadata)
	require.ErrorIs(t, err, model.ErrNotAvailable)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("background query never ran")
	}
	time.Sleep(10 * time.Millisecond)

	cached, ok := s.Get(testKey)
	require.True(t, ok)
	require.Equal(t, "primed", cached.Metadata.Title)
}

func TestStillAnalyzingSchedulesRetryAndAbortsOnTrackChange(t *testing.T) {
	s := track.NewStore()
	unanalyzed := testKey
	unanalyzed.Type = model.TrackTypeUnanalyzed

	var trackChanged int32
	remote := &fakeRemote{resultFn: func(n int32) (any, error) {
		if atomic.LoadInt32(&trackChanged) == 1 {
			t.Fatal("retry fired after track changed")
		}
		return nil, model.ErrStillAnalyzing
	}}

	l := New(s, nil, func(model.PlayerId) (RemoteClient, error) { return remote, nil }, Options{
		AnalysisRetryInterval: 10 * time.Millisecond,
		AnalysisWaitTotal:     60 * time.Millisecond,
		CurrentTrack: func(model.PlayerId) (model.TrackKey, bool) {
			if atomic.LoadInt32(&trackChanged) == 1 {
				return model.TrackKey{}, false
			}
			return unanalyzed, true
		},
	})

	_, err := l.Resolve(context.Background(), unanalyzed, model.ArtifactMetadata)
	require.ErrorIs(t, err, model.ErrStillAnalyzing)

	time.Sleep(25 * time.Millisecond)
	atomic.StoreInt32(&trackChanged, 1)
	time.Sleep(40 * time.Millisecond)
}

type fakeArtworkArchive struct {
	fakeArchive
	paths map[string][]byte
}

func (a *fakeArtworkArchive) ArtworkPath(key model.TrackKey, highRes bool) (string, bool) {
	if highRes {
		return "/media/art/hires/42.jpg", true
	}
	return "/media/art/42.jpg", true
}

func (a *fakeArtworkArchive) ReadArtworkPath(p string) ([]byte, error) {
	b, ok := a.paths[p]
	if !ok {
		return nil, errors.New("not found")
	}
	return b, nil
}

func TestResolveArtworkHFSPrefixRetry(t *testing.T) {
	archive := &fakeArtworkArchive{
		fakeArchive: fakeArchive{name: "art"},
		paths: map[string][]byte{
			"/media/.art/42.jpg": []byte("dotted-default"),
		},
	}
	l := New(track.NewStore(), nil, nil, Options{})

	b, err := l.ResolveArtwork(archive, testKey, false)
	require.NoError(t, err)
	require.Equal(t, []byte("dotted-default"), b)
}

func TestResolveArtworkHighResFallsBackToDefault(t *testing.T) {
	archive := &fakeArtworkArchive{
		fakeArchive: fakeArchive{name: "art"},
		paths: map[string][]byte{
			"/media/art/42.jpg": []byte("default-res"),
		},
	}
	l := New(track.NewStore(), nil, nil, Options{})

	b, err := l.ResolveArtwork(archive, testKey, true)
	require.NoError(t, err)
	require.Equal(t, []byte("default-res"), b)
}
