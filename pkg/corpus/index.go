/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: index.go
Description: Reference index for the Akaylee ArchRec engine. Loads a directory of
labeled corpus entries, builds smoothed bigram and trigram profiles for each
architecture, and holds them immutable for the session. Entries that cannot be
read or decoded are skipped with a diagnostic so one bad file never aborts a load.
*/

package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/kleascm/akaylee-archrec/pkg/ngram"
	"github.com/kleascm/akaylee-archrec/pkg/profile"
)

// Reference is the pair of profiles trained for one architecture. Both
// profiles derive from the exact same bytes. Labels beginning with an
// underscore are pseudo-architectures: patterns recognized as not machine
// code (zero runs, ASCII text, and so on).
type Reference struct {
	Label    string
	Bigrams  *profile.Profile
	Trigrams *profile.Profile
	Size     int // corpus bytes the profiles were trained on
}

// PseudoArch reports whether the reference describes a non-code pattern.
func (r *Reference) PseudoArch() bool {
	return strings.HasPrefix(r.Label, "_")
}

// Index is the immutable set of references for a session.
type Index struct {
	refs    []*Reference
	byLabel map[string]*Reference
	data    map[string][]byte // raw corpus bytes, only when retained

	alpha  float64
	logger *logrus.Logger
}

// Option configures index construction.
type Option func(*Index)

// WithSmoothing overrides the additive smoothing weight.
func WithSmoothing(alpha float64) Option {
	return func(idx *Index) { idx.alpha = alpha }
}

// WithLogger routes load diagnostics to the given logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(idx *Index) { idx.logger = logger }
}

// WithRawData retains the raw corpus bytes per label, as needed by the
// dump-corpus command. Profiles alone serve classification.
func WithRawData() Option {
	return func(idx *Index) { idx.data = make(map[string][]byte) }
}

// NewIndex creates an empty index. References are added with AddData or by
// Load.
func NewIndex(opts ...Option) *Index {
	idx := &Index{
		byLabel: make(map[string]*Reference),
		alpha:   profile.DefaultSmoothing,
		logger:  logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Load builds an index from a flat corpus directory. Entries are files named
// <Label>.corpus or <Label>.corpus.xz; when both exist for a label only the
// uncompressed one is used. Returns an error only when the directory itself
// is unavailable or no entry loads.
func Load(dir string, opts ...Option) (*Index, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus directory: %w", err)
	}

	names := make(map[string]bool, len(entries))
	for _, e := range entries {
		names[e.Name()] = true
	}

	idx := NewIndex(opts...)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		var label string
		switch {
		case strings.HasSuffix(name, ".corpus"):
			label = strings.TrimSuffix(name, ".corpus")
		case strings.HasSuffix(name, ".corpus.xz"):
			label = strings.TrimSuffix(name, ".corpus.xz")
			if names[label+".corpus"] {
				idx.logger.WithField("label", label).Warn("Both compressed and uncompressed corpus entries present, using the uncompressed one")
				continue
			}
		default:
			continue
		}

		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			idx.logger.WithFields(logrus.Fields{"entry": name, "error": err}).Warn("Skipping unreadable corpus entry")
			continue
		}
		data, err := Unpack(raw)
		if err != nil {
			idx.logger.WithFields(logrus.Fields{"entry": name, "error": err}).Warn("Skipping undecodable corpus entry")
			continue
		}
		if err := idx.AddData(label, data, 1); err != nil {
			idx.logger.WithFields(logrus.Fields{"entry": name, "error": err}).Warn("Skipping malformed corpus entry")
		}
	}

	if len(idx.refs) == 0 {
		return nil, fmt.Errorf("no usable corpus entries in %s", dir)
	}
	idx.logger.WithFields(logrus.Fields{
		"references":    len(idx.refs),
		"architectures": idx.ArchCount(),
	}).Info("Reference index loaded")
	return idx, nil
}

// AddData trains a reference from raw bytes. The weight multiplier stands in
// for repeating a small corpus. Adding data for an existing label is an
// error: corpus concatenation happens at the byte level, before counting,
// so n-grams never straddle chunk boundaries.
func (idx *Index) AddData(label string, data []byte, weight uint64) error {
	if len(data) == 0 {
		return fmt.Errorf("empty corpus data for %q", label)
	}
	if _, dup := idx.byLabel[label]; dup {
		return fmt.Errorf("duplicate corpus label %q: concatenate the raw bytes instead", label)
	}

	p2, err := profile.Build(ngram.Count(data, ngram.OrderBigram), ngram.OrderBigram, idx.alpha, weight)
	if err != nil {
		return fmt.Errorf("bigram profile for %q: %w", label, err)
	}
	p3, err := profile.Build(ngram.Count(data, ngram.OrderTrigram), ngram.OrderTrigram, idx.alpha, weight)
	if err != nil {
		return fmt.Errorf("trigram profile for %q: %w", label, err)
	}

	ref := &Reference{Label: label, Bigrams: p2, Trigrams: p3, Size: len(data)}
	idx.refs = append(idx.refs, ref)
	idx.byLabel[label] = ref
	if idx.data != nil {
		idx.data[label] = data
	}

	idx.logger.WithFields(logrus.Fields{
		"label":    label,
		"bytes":    len(data),
		"bigrams":  len(p2.Probs),
		"trigrams": len(p3.Probs),
	}).Debug("Reference trained")
	return nil
}

// References returns the references in deterministic label order.
func (idx *Index) References() []*Reference {
	refs := make([]*Reference, len(idx.refs))
	copy(refs, idx.refs)
	sort.Slice(refs, func(i, j int) bool { return refs[i].Label < refs[j].Label })
	return refs
}

// Lookup returns the reference for a label, or nil.
func (idx *Index) Lookup(label string) *Reference {
	return idx.byLabel[label]
}

// Len returns the number of references, pseudo-architectures included.
func (idx *Index) Len() int {
	return len(idx.refs)
}

// ArchCount returns the number of real architectures known.
func (idx *Index) ArchCount() int {
	n := 0
	for _, ref := range idx.refs {
		if !ref.PseudoArch() {
			n++
		}
	}
	return n
}

// Dump writes each retained raw corpus back out as <Label>.corpus files in
// the given directory. The index must have been built with WithRawData.
func (idx *Index) Dump(dir string) error {
	if idx.data == nil {
		return fmt.Errorf("index was built without raw data retention")
	}
	for label, data := range idx.data {
		name := strings.ReplaceAll(label, "/", "-") + ".corpus"
		if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
			return fmt.Errorf("failed to dump corpus %q: %w", label, err)
		}
	}
	return nil
}

// RestoreRefs installs pre-built references, as used by the gob cache.
// It replaces any existing contents.
func (idx *Index) RestoreRefs(refs []*Reference) {
	idx.refs = refs
	idx.byLabel = make(map[string]*Reference, len(refs))
	for _, ref := range refs {
		idx.byLabel[ref.Label] = ref
	}
}
