/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: interfaces.go
Description: Shared interfaces for the Akaylee ArchRec engine. Defines the core types
and interfaces used across all packages to break import cycles and enable proper
modular design.
*/

package interfaces

import (
	"fmt"
	"time"
)

// NoneLabel is the literal token used for runs and verdicts that could not
// be attributed to a known architecture.
const NoneLabel = "None"

// Match pairs an architecture label with its divergence from the query.
type Match struct {
	Label      string  `json:"label"`
	Divergence float64 `json:"divergence"`
}

// Ranking is an ordered list of matches, ascending by divergence.
// Ties are broken by lexicographic label order.
type Ranking []Match

// Best returns the top match of the ranking, or a zero Match when empty.
func (r Ranking) Best() Match {
	if len(r) == 0 {
		return Match{}
	}
	return r[0]
}

// Find returns the divergence recorded for the given label and whether
// the label appears in the ranking at all.
func (r Ranking) Find(label string) (float64, bool) {
	for _, m := range r {
		if m.Label == label {
			return m.Divergence, true
		}
	}
	return 0, false
}

// Top returns the first n labels of the ranking.
func (r Ranking) Top(n int) []string {
	if n > len(r) {
		n = len(r)
	}
	labels := make([]string, n)
	for i := 0; i < n; i++ {
		labels[i] = r[i].Label
	}
	return labels
}

// Verdict is the outcome of classifying one block of bytes.
// An empty Label means no confident match.
type Verdict struct {
	Label     string  `json:"label"`
	Confident bool    `json:"confident"`
	Demoted   string  `json:"demoted,omitempty"` // label rejected by a heuristic gate
	Bigrams   Ranking `json:"bigrams"`
	Trigrams  Ranking `json:"trigrams"`
}

// IsNone reports whether the verdict carries no architecture label.
func (v Verdict) IsNone() bool {
	return v.Label == ""
}

// String renders the verdict label, using the None token for empty verdicts.
func (v Verdict) String() string {
	if v.Label == "" {
		return NoneLabel
	}
	return v.Label
}

// WindowResult is the classification of a single window of the scanned file.
type WindowResult struct {
	Offset  int     `json:"offset"`
	Length  int     `json:"length"`
	Verdict Verdict `json:"verdict"`
	Entropy float64 `json:"entropy"`
}

// Segment is one run of the final segmentation. Segments are gapless,
// non-overlapping, and cover the whole input.
type Segment struct {
	Offset      int     `json:"offset"`
	Length      int     `json:"length"`
	Label       string  `json:"label"` // empty for None runs
	Entropy     float64 `json:"entropy"`
	HighEntropy bool    `json:"high_entropy"` // likely encrypted/compressed
}

// LabelString renders the segment label, using the None token for unlabeled runs.
func (s Segment) LabelString() string {
	if s.Label == "" {
		return NoneLabel
	}
	return s.Label
}

// End returns the half-open end offset of the segment.
func (s Segment) End() int {
	return s.Offset + s.Length
}

// Classifier classifies a block of bytes against a loaded reference index.
type Classifier interface {
	Classify(data []byte) Verdict
}

// Scanner slides a window across file bytes and classifies every window.
type Scanner interface {
	Scan(data []byte) []WindowResult
}

// Reconciler turns ordered window results into a gapless segmentation of
// the scanned bytes.
type Reconciler interface {
	Reconcile(data []byte, windows []WindowResult) []Segment
}

// ScanReport is the complete result of analyzing one input file.
type ScanReport struct {
	SessionID   string        `json:"session_id"`
	Path        string        `json:"path"`
	Size        int           `json:"size"`
	WholeFile   Verdict       `json:"whole_file"`
	TextSection *Verdict      `json:"text_section,omitempty"`
	Segments    []Segment     `json:"segments"`
	Duration    time.Duration `json:"duration"`
}

// EngineConfig holds the tunables of the recognition engine.
type EngineConfig struct {
	CorpusDir      string  `json:"corpus_dir"`
	Smoothing      float64 `json:"smoothing"`       // additive smoothing weight
	WindowSize     int     `json:"window_size"`     // bytes per window
	WindowStep     int     `json:"window_step"`     // 0 means one window size
	MinWindow      int     `json:"min_window"`      // smallest block worth classifying
	NoiseThreshold int     `json:"noise_threshold"` // 0 means one window size
	EntropyFlag    float64 `json:"entropy_flag"`    // normalized entropy marking likely packed data
	CacheFile      string  `json:"cache_file"`      // optional gob cache path
}

// DefaultEngineConfig returns the calibrated defaults.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		Smoothing:   0.01,
		WindowSize:  0x1000,
		MinWindow:   0x80,
		EntropyFlag: 0.9,
	}
}

// Validate checks the EngineConfig for invalid or missing values.
// Returns an error if the config is invalid, or nil if valid.
func (c *EngineConfig) Validate() error {
	if c.Smoothing <= 0 {
		return fmt.Errorf("smoothing must be positive")
	}
	if c.WindowSize < c.MinWindow {
		return fmt.Errorf("window size %#x smaller than minimum window %#x", c.WindowSize, c.MinWindow)
	}
	if c.WindowStep < 0 || c.WindowStep > c.WindowSize {
		return fmt.Errorf("window step must be between 0 and the window size")
	}
	if c.MinWindow <= 0 {
		return fmt.Errorf("minimum window must be positive")
	}
	if c.EntropyFlag <= 0 || c.EntropyFlag > 1 {
		return fmt.Errorf("entropy flag must be in (0, 1]")
	}
	return nil
}

// Step returns the effective window step.
func (c *EngineConfig) Step() int {
	if c.WindowStep == 0 {
		return c.WindowSize
	}
	return c.WindowStep
}

// Noise returns the effective noise threshold for the reconciler.
func (c *EngineConfig) Noise() int {
	if c.NoiseThreshold == 0 {
		return c.WindowSize
	}
	return c.NoiseThreshold
}
