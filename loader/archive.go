package loader

import (
	"context"

	"github.com/ashgrove-labs/prolink-core/model"
)

// MediaArchive is a local source of track artifacts, consulted in
// registration order after the hot cache and before any remote query.
// A provider that does not carry the requested media, or does not
// support the requested kind, returns model.ErrNotAvailable so
// resolution falls through to the next provider or the remote
// dbserver.
type MediaArchive interface {
	// Resolve returns the artifact for key/kind, or ErrNotAvailable.
	Resolve(ctx context.Context, key model.TrackKey, kind model.ArtifactKind) (any, error)

	// Name identifies the archive for logging.
	Name() string
}

// SongStructureArchive is the subset of MediaArchive the Opus
// attribution resolver uses to match PSSI bytes without
// going through the full artifact resolution path.
type SongStructureArchive interface {
	MediaArchive
	SongStructure(ctx context.Context, key model.TrackKey) ([]byte, error)
}
