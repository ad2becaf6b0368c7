package track

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashgrove-labs/prolink-core/model"
)

func TestStorePutIfAbsentRace(t *testing.T) {
	s := NewStore()
	key := model.TrackKey{Player: 1, Slot: model.SlotUSB, Rekordbox: 42, Type: model.TrackTypeRekordbox}

	first := s.PutIfAbsent(key, &Artifacts{Metadata: &Metadata{Title: "first"}})
	second := s.PutIfAbsent(key, &Artifacts{Metadata: &Metadata{Title: "second"}})

	require.Same(t, first, second)
	require.Equal(t, "first", second.Metadata.Title)
}

func TestStoreMergeFillsMissingFields(t *testing.T) {
	s := NewStore()
	key := model.TrackKey{Player: 1, Slot: model.SlotUSB, Rekordbox: 42, Type: model.TrackTypeRekordbox}

	s.Merge(key, &Artifacts{Metadata: &Metadata{Title: "A"}})
	s.Merge(key, &Artifacts{BeatGrid: grid4()})

	got, ok := s.Get(key)
	require.True(t, ok)
	require.Equal(t, "A", got.Metadata.Title)
	require.NotNil(t, got.BeatGrid)
}

func TestStoreInvalidateForPlayer(t *testing.T) {
	s := NewStore()
	k1 := model.TrackKey{Player: 1, Slot: model.SlotUSB, Rekordbox: 1, Type: model.TrackTypeRekordbox}
	k2 := model.TrackKey{Player: 2, Slot: model.SlotUSB, Rekordbox: 2, Type: model.TrackTypeRekordbox}
	s.PutIfAbsent(k1, &Artifacts{})
	s.PutIfAbsent(k2, &Artifacts{})

	s.InvalidateForPlayer(1)

	_, ok := s.Get(k1)
	require.False(t, ok)
	_, ok = s.Get(k2)
	require.True(t, ok)
}

func TestStoreInvalidateForSlot(t *testing.T) {
	s := NewStore()
	slot := model.SlotRef{Player: 1, Slot: model.SlotUSB}
	k1 := model.TrackKey{Player: 1, Slot: model.SlotUSB, Rekordbox: 1, Type: model.TrackTypeRekordbox}
	k2 := model.TrackKey{Player: 1, Slot: model.SlotSD, Rekordbox: 2, Type: model.TrackTypeRekordbox}
	s.PutIfAbsent(k1, &Artifacts{})
	s.PutIfAbsent(k2, &Artifacts{})

	s.InvalidateForSlot(slot)

	_, ok := s.Get(k1)
	require.False(t, ok)
	_, ok = s.Get(k2)
	require.True(t, ok)
}

func TestCueListNearBeat(t *testing.T) {
	g := grid4()
	cl := &CueList{Entries: []CueEntry{{TimeMs: 1000, HotCueSlot: 1}}}
	e, ok := cl.NearBeat(g, 3)
	require.True(t, ok)
	require.EqualValues(t, 1000, e.TimeMs)

	_, ok = cl.NearBeat(g, 1)
	require.False(t, ok)
}
