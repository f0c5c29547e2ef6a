/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: cache.go
Description: Optional reference-index cache for the Akaylee ArchRec engine.
Profile building over a ~70-architecture corpus costs a few seconds; the cache
persists the built references in a private gob format and reuses them while
they are newer than every corpus entry. Cache failures are never fatal: the
engine falls back to rebuilding from the corpus.
*/

package cache

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kleascm/akaylee-archrec/pkg/corpus"
	"github.com/kleascm/akaylee-archrec/pkg/profile"
)

// DefaultName is the cache file created next to the corpus directory.
const DefaultName = "stats.gob"

// snapshot is the on-disk layout. Private format: any decode error simply
// invalidates the cache.
type snapshot struct {
	Version    int
	References []entry
}

type entry struct {
	Label    string
	Size     int
	Bigrams  profile.Profile
	Trigrams profile.Profile
}

const formatVersion = 2

// Save writes the index references to the cache file.
func Save(path string, idx *corpus.Index) error {
	snap := snapshot{Version: formatVersion}
	for _, ref := range idx.References() {
		snap.References = append(snap.References, entry{
			Label:    ref.Label,
			Size:     ref.Size,
			Bigrams:  *ref.Bigrams,
			Trigrams: *ref.Trigrams,
		})
	}

	f, err := os.CreateTemp(filepath.Dir(path), ".archrec-cache-*")
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	tmp := f.Name()
	if err := gob.NewEncoder(f).Encode(&snap); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to encode cache: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close cache file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to install cache file: %w", err)
	}
	return nil
}

// Load reads the cache and installs its references into a fresh index.
// Returns an error when the cache is missing, stale relative to the corpus
// directory, or undecodable; the caller then rebuilds from the corpus.
func Load(path, corpusDir string, opts ...corpus.Option) (*corpus.Index, error) {
	stale, err := isStale(path, corpusDir)
	if err != nil {
		return nil, err
	}
	if stale {
		return nil, fmt.Errorf("cache %s is older than the corpus", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	defer f.Close()

	var snap snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode cache: %w", err)
	}
	if snap.Version != formatVersion {
		return nil, fmt.Errorf("cache format version %d, want %d", snap.Version, formatVersion)
	}
	if len(snap.References) == 0 {
		return nil, fmt.Errorf("cache holds no references")
	}

	refs := make([]*corpus.Reference, 0, len(snap.References))
	for i := range snap.References {
		e := &snap.References[i]
		refs = append(refs, &corpus.Reference{
			Label:    e.Label,
			Size:     e.Size,
			Bigrams:  &e.Bigrams,
			Trigrams: &e.Trigrams,
		})
	}

	idx := corpus.NewIndex(opts...)
	idx.RestoreRefs(refs)
	return idx, nil
}

// isStale reports whether any corpus entry is newer than the cache file.
func isStale(path, corpusDir string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("cache unavailable: %w", err)
	}
	entries, err := os.ReadDir(corpusDir)
	if err != nil {
		// No corpus to compare against; trust the cache.
		return false, nil
	}
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".corpus") && !strings.HasSuffix(e.Name(), ".corpus.xz") {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		if fi.ModTime().After(info.ModTime()) {
			return true, nil
		}
	}
	return false, nil
}
