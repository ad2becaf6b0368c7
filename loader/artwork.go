package loader

import (
	"errors"
	"path/filepath"

	"github.com/ashgrove-labs/prolink-core/model"
)

// ArtworkArchive is an optional, finer-grained MediaArchive that
// knows about high-resolution artwork and the HFS+ dot-prefix folder
// quirk some archive exports carry. An archive that only implements
// MediaArchive can still serve album art through Resolve; implementing
// this interface additionally opts into the high-res-then-default
// fallback chain.
type ArtworkArchive interface {
	MediaArchive
	// ArtworkPath returns the filesystem path for key's artwork, or
	// false if this archive does not carry artwork for that track at
	// all (a short-circuit distinct from "path unreadable").
	ArtworkPath(key model.TrackKey, highRes bool) (string, bool)
	// ReadArtworkPath reads the bytes at an ArtworkPath result.
	ReadArtworkPath(p string) ([]byte, error)
}

// ResolveArtwork fetches album art for key from archive, preferring
// the high-resolution path when preferHighRes is set and falling back
// to the default-resolution path on ErrNotAvailable (a "NoSuchEntry"
// response from the archive). Each path attempt is retried once with
// a "." folder prefix if the canonical path is not readable, since
// archives extracted from HFS+ media may have folder names prefixed
// that way.
func (l *Loader) ResolveArtwork(archive ArtworkArchive, key model.TrackKey, preferHighRes bool) ([]byte, error) {
	if preferHighRes {
		if b, err := l.readArtworkPath(archive, key, true); err == nil {
			return b, nil
		} else if !errors.Is(err, model.ErrNotAvailable) {
			return nil, err
		}
	}
	return l.readArtworkPath(archive, key, false)
}

func (l *Loader) readArtworkPath(archive ArtworkArchive, key model.TrackKey, highRes bool) ([]byte, error) {
	p, ok := archive.ArtworkPath(key, highRes)
	if !ok {
		return nil, model.ErrNotAvailable
	}

	b, err := archive.ReadArtworkPath(p)
	if err == nil {
		return b, nil
	}

	dotted := dotPrefixed(p)
	b, retryErr := archive.ReadArtworkPath(dotted)
	l.metrics.LoaderHFSPrefixRetry()
	if retryErr == nil {
		return b, nil
	}
	return nil, model.ErrNotAvailable
}

// dotPrefixed returns p with its final folder component prefixed by
// ".", the one-shot retry for HFS+-extracted archives.
func dotPrefixed(p string) string {
	dir, base := filepath.Split(p)
	parent, folder := filepath.Split(filepath.Clean(dir))
	if folder == "" || folder == "." {
		return p
	}
	return filepath.Join(parent, "."+folder, base)
}
