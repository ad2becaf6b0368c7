package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ashgrove-labs/prolink-core/identity"
	"github.com/ashgrove-labs/prolink-core/model"
	"github.com/ashgrove-labs/prolink-core/position"
	"github.com/ashgrove-labs/prolink-core/track"
	"github.com/ashgrove-labs/prolink-core/wire"
)

func header(device model.PlayerId, name string, at time.Time) wire.Header {
	return wire.Header{Device: device, DeviceName: name, ReceivedAt: at}
}

type capture[T any] struct {
	mu     sync.Mutex
	events []T
	signal chan struct{}
}

func newCapture[T any]() *capture[T] {
	return &capture[T]{signal: make(chan struct{}, 64)}
}

func (c *capture[T]) OnEvent(v T) {
	c.mu.Lock()
	c.events = append(c.events, v)
	c.mu.Unlock()
	c.signal <- struct{}{}
}

func (c *capture[T]) waitFor(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-c.signal:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d/%d", i+1, n)
		}
	}
}

func fullArtifacts() *track.Artifacts {
	return &track.Artifacts{
		Metadata: &track.Metadata{Title: "Strobe", ArtistLabel: "Deadmau5", DurationSec: 600},
		Waveform: &track.WaveformDetail{Style: model.WaveformRGB, Data: []byte{1, 2, 3, 4}},
		BeatGrid: track.NewBeatGrid([]track.Beat{
			{TimeMs: 0, BeatWithinBar: 1, TempoBPM: 128},
			{TimeMs: 469, BeatWithinBar: 2, TempoBPM: 128},
		}),
	}
}

func TestFeedStatusUpdatesPositionAndRegistry(t *testing.T) {
	e, err := New(WithSweepInterval(50 * time.Millisecond))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	now := time.Now()
	key := model.TrackKey{Player: 2, Slot: model.SlotUSB, Rekordbox: 7, Type: model.TrackTypeRekordbox}
	e.FeedStatus(wire.StatusPacket{
		Header:         header(2, "CDJ-3000", now),
		BeatNumber:     1,
		Playing:        true,
		PlayingForward: true,
		Pitch:          1 << 20,
		TrackType:      key.Type,
		Slot:           key.Slot,
		Rekordbox:      key.Rekordbox,
	})
	// The first status for a newly loaded track drops the slot's cached
	// artifacts, so the beat grid a position needs is put in place after it.
	e.store.Merge(key, fullArtifacts())
	e.FeedStatus(wire.StatusPacket{
		Header:         header(2, "CDJ-3000", now.Add(100*time.Millisecond)),
		BeatNumber:     1,
		Playing:        true,
		PlayingForward: true,
		Pitch:          1 << 20,
		TrackType:      key.Type,
		Slot:           key.Slot,
		Rekordbox:      key.Rekordbox,
	})

	if !e.registry.IsPresent(2) {
		t.Fatal("expected player 2 to be present after FeedStatus")
	}
	snap, ok := e.LatestSnapshot(2)
	if !ok {
		t.Fatal("expected a snapshot after a playing status update")
	}
	if !snap.Playing {
		t.Fatal("expected snapshot to report playing")
	}
	if got, ok := e.currentTrack(2); !ok || got != key {
		t.Fatalf("currentTrack(2) = %v, %v; want %v, true", got, ok, key)
	}
}

func TestSubscribeMovementDeliversSignificantChanges(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sub := newCapture[*position.PositionSnapshot]()
	h := e.Subscribe(KindMovement, 3, sub)
	defer e.Unsubscribe(KindMovement, 3, h)

	now := time.Now()
	key := model.TrackKey{Player: 3, Slot: model.SlotUSB, Rekordbox: 11, Type: model.TrackTypeRekordbox}
	// Loading the track drops the slot's cached artifacts; the beat grid
	// a position needs is put in place after that first status.
	e.FeedStatus(wire.StatusPacket{
		Header:         header(3, "CDJ-3000", now.Add(-time.Second)),
		BeatNumber:     1,
		PlayingForward: true,
		Pitch:          1 << 20,
		TrackType:      key.Type,
		Slot:           key.Slot,
		Rekordbox:      key.Rekordbox,
	})
	e.store.Merge(key, fullArtifacts())

	e.FeedStatus(wire.StatusPacket{
		Header:         header(3, "CDJ-3000", now),
		BeatNumber:     1,
		Playing:        true,
		PlayingForward: true,
		Pitch:          1 << 20,
		TrackType:      model.TrackTypeRekordbox,
		Slot:           model.SlotUSB,
		Rekordbox:      11,
	})
	sub.waitFor(t, 1)

	e.FeedStatus(wire.StatusPacket{
		Header:         header(3, "CDJ-3000", now.Add(2*time.Second)),
		BeatNumber:     1,
		Playing:        false,
		PlayingForward: true,
		Pitch:          1 << 20,
		TrackType:      model.TrackTypeRekordbox,
		Slot:           model.SlotUSB,
		Rekordbox:      11,
	})
	sub.waitFor(t, 2)
}

func TestPresenceLostClearsDownstreamState(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	now := time.Now()
	e.FeedAnnouncement(wire.DeviceAnnouncement{Header: header(4, "CDJ-3000", now)})
	if !e.registry.IsPresent(4) {
		t.Fatal("expected player 4 present")
	}

	e.registry.MarkLost(4)

	if e.registry.IsPresent(4) {
		t.Fatal("expected player 4 to be gone after MarkLost")
	}
	if _, ok := e.LatestSnapshotOfAnyKind(4); ok {
		t.Fatal("expected no last event after Lost clears tracker state")
	}
}

func TestAttachArchiveForOpusRoutesAttribution(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	archive := &fakeSongStructureArchive{name: "usb-a", pssi: []byte{0xAA, 0xBB}}
	if err := e.AttachArchiveForOpus(1, archive); err != nil {
		t.Fatalf("AttachArchiveForOpus: %v", err)
	}

	key := model.TrackKey{Player: 5, Slot: model.SlotUSB, Rekordbox: 42, Type: model.TrackTypeRekordbox}
	broadcast := []byte{0x01, 0xAA, 0xBB, 0x02}
	e.FeedSongStructure(5, key, broadcast)

	got, ok := e.attribution.Resolve(context.Background(), key, broadcast)
	if !ok || got != archive {
		t.Fatalf("Resolve = %v, %v; want the attached archive", got, ok)
	}
}

func TestComputeSignatureOnceArtifactsAvailable(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	key := model.TrackKey{Player: 6, Slot: model.SlotUSB, Rekordbox: 99, Type: model.TrackTypeRekordbox}
	e.store.Merge(key, fullArtifacts())

	sub := newCapture[*identity.Signature]()
	h := e.Subscribe(KindSignature, 6, sub)
	defer e.Unsubscribe(KindSignature, 6, h)

	e.maybeComputeSignature(6, key)
	sub.waitFor(t, 1)

	sig, ok := e.CurrentSignature(6)
	if !ok || sig == "" {
		t.Fatalf("CurrentSignature = %v, %v; want a computed signature", sig, ok)
	}
}

func TestComputeSignatureAlsoPublishesMetadataAndWaveform(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	key := model.TrackKey{Player: 7, Slot: model.SlotUSB, Rekordbox: 100, Type: model.TrackTypeRekordbox}
	e.store.Merge(key, fullArtifacts())

	mdSub := newCapture[*track.Metadata]()
	mdHandle := e.Subscribe(KindMetadata, 7, mdSub)
	defer e.Unsubscribe(KindMetadata, 7, mdHandle)

	waveSub := newCapture[*track.WaveformDetail]()
	waveHandle := e.Subscribe(KindWaveform, 7, waveSub)
	defer e.Unsubscribe(KindWaveform, 7, waveHandle)

	e.maybeComputeSignature(7, key)
	mdSub.waitFor(t, 1)
	waveSub.waitFor(t, 1)

	mdSub.mu.Lock()
	if len(mdSub.events) != 1 || mdSub.events[0].Title != "Strobe" {
		t.Fatalf("metadata delivered = %v", mdSub.events)
	}
	mdSub.mu.Unlock()
}

func TestSetSlackAcceptsOutOfRangeDuration(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e.SetSlack(5 * time.Second)
	if e.tracker == nil {
		t.Fatal("expected tracker to be initialized")
	}
}

func TestStopReportsNotRunning(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e.Stop()

	now := time.Now()
	if err := e.FeedStatus(wire.StatusPacket{Header: header(8, "CDJ-3000", now)}); !errors.Is(err, model.ErrNotRunning) {
		t.Fatalf("FeedStatus after Stop = %v; want ErrNotRunning", err)
	}
	if _, ok := e.LatestSnapshot(8); ok {
		t.Fatal("expected no snapshot after Stop")
	}
	if h := e.Subscribe(KindMovement, 8, newCapture[*position.PositionSnapshot]()); h != "" {
		t.Fatalf("Subscribe after Stop = %q; want no subscription handle", h)
	}
	if _, err := e.ResolveMetadata(context.Background(), 8, model.TrackKey{}); !errors.Is(err, model.ErrNotRunning) {
		t.Fatalf("ResolveMetadata after Stop = %v; want ErrNotRunning", err)
	}
	if err := e.AttachArchiveForOpus(1, &fakeSongStructureArchive{}); !errors.Is(err, model.ErrNotRunning) {
		t.Fatalf("AttachArchiveForOpus after Stop = %v; want ErrNotRunning", err)
	}
}

type fakeSongStructureArchive struct {
	name string
	pssi []byte
}

func (f *fakeSongStructureArchive) Name() string { return f.name }

func (f *fakeSongStructureArchive) Resolve(_ context.Context, _ model.TrackKey, _ model.ArtifactKind) (any, error) {
	return nil, model.ErrNotAvailable
}

func (f *fakeSongStructureArchive) SongStructure(_ context.Context, _ model.TrackKey) ([]byte, error) {
	return f.pssi, nil
}
