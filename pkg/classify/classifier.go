/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: classifier.go
Description: Two-order divergence classifier for the Akaylee ArchRec engine.
Ranks every reference by Kullback-Leibler divergence from the query at orders
2 and 3, requires both orders to agree before naming an architecture, and
applies the heuristic gates that keep statistically noisy references (OCaml
bytecode, IA-64, PIC24, non-code patterns) from dominating false positives.
*/

package classify

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/kleascm/akaylee-archrec/pkg/corpus"
	"github.com/kleascm/akaylee-archrec/pkg/interfaces"
	"github.com/kleascm/akaylee-archrec/pkg/ngram"
	"github.com/kleascm/akaylee-archrec/pkg/profile"
)

// Calibrated gate constants. Both are properties of the shipped corpus,
// captured from the reference corpus build.
const (
	// OCamlLabel marks the bytecode reference whose statistics resemble
	// generic data sections.
	OCamlLabel = "OCaml"
	// OCamlMaxDivergence is the order-3 divergence below which an OCaml
	// verdict is accepted. The constant was calibrated against order-2
	// divergences and has not been re-calibrated for order-3; tune via
	// WithGates when the corpus changes.
	OCamlMaxDivergence = 1.0

	// IA64Label marks the reference gated the same way at order 2.
	IA64Label = "IA-64"
	// IA64MaxDivergence is the order-2 divergence above which an IA-64
	// verdict is demoted.
	IA64MaxDivergence = 3.0

	// PIC24Label marks the 24-bit ISA stored in 32-bit words; genuine
	// PIC24 code keeps one byte column of every word all zero.
	PIC24Label = "PIC24"
)

// Classifier classifies byte blocks against an immutable reference index.
// Safe for concurrent use: all shared state is read-only after construction.
type Classifier struct {
	index  *corpus.Index
	alpha  float64
	logger *logrus.Logger

	ocamlMax float64
	ia64Max  float64
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithSmoothing overrides the query smoothing weight.
func WithSmoothing(alpha float64) Option {
	return func(c *Classifier) { c.alpha = alpha }
}

// WithLogger routes classification diagnostics to the given logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(c *Classifier) { c.logger = logger }
}

// WithGates overrides the calibrated OCaml and IA-64 gate thresholds.
func WithGates(ocamlMax, ia64Max float64) Option {
	return func(c *Classifier) {
		c.ocamlMax = ocamlMax
		c.ia64Max = ia64Max
	}
}

// New creates a classifier over the given index.
func New(index *corpus.Index, opts ...Option) *Classifier {
	c := &Classifier{
		index:    index,
		alpha:    profile.DefaultSmoothing,
		logger:   logrus.StandardLogger(),
		ocamlMax: OCamlMaxDivergence,
		ia64Max:  IA64MaxDivergence,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Rank builds the query profile at the given order and returns every
// reference sorted ascending by divergence, ties broken by label.
func (c *Classifier) Rank(data []byte, order int) interfaces.Ranking {
	counts := ngram.Count(data, order)
	if len(counts) == 0 {
		return nil
	}
	q, err := profile.Build(counts, order, c.alpha, 1)
	if err != nil {
		// Only reachable with a broken smoothing override; treat as a bug.
		c.logger.WithError(err).Error("Query profile construction failed")
		return nil
	}

	refs := c.index.References()
	ranking := make(interfaces.Ranking, 0, len(refs))
	for _, ref := range refs {
		rp := ref.Bigrams
		if order == ngram.OrderTrigram {
			rp = ref.Trigrams
		}
		ranking = append(ranking, interfaces.Match{
			Label:      ref.Label,
			Divergence: profile.KL(q, rp),
		})
	}
	sort.SliceStable(ranking, func(i, j int) bool {
		if ranking[i].Divergence != ranking[j].Divergence {
			return ranking[i].Divergence < ranking[j].Divergence
		}
		return ranking[i].Label < ranking[j].Label
	})
	return ranking
}

// Classify ranks the block at both orders and applies the confidence rule:
// the verdict names an architecture only when the order-2 and order-3
// argmins agree and no heuristic gate rejects the label. The rankings are
// always returned for diagnostics.
func (c *Classifier) Classify(data []byte) interfaces.Verdict {
	v := interfaces.Verdict{
		Bigrams:  c.Rank(data, ngram.OrderBigram),
		Trigrams: c.Rank(data, ngram.OrderTrigram),
	}
	if len(v.Bigrams) == 0 || len(v.Trigrams) == 0 {
		return v
	}

	best2 := v.Bigrams.Best()
	best3 := v.Trigrams.Best()
	if best2.Label != best3.Label {
		// The two orders disagree: no confident match. Normal outcome,
		// not an error.
		return v
	}

	label := best2.Label
	if reason := c.gate(label, best2, best3, data); reason != "" {
		v.Demoted = label
		c.logger.WithFields(logrus.Fields{
			"label":  label,
			"reason": reason,
		}).Debug("Verdict demoted by heuristic gate")
		return v
	}

	v.Label = label
	v.Confident = true
	return v
}

// gate returns a non-empty reason when the agreed label must be demoted.
func (c *Classifier) gate(label string, best2, best3 interfaces.Match, data []byte) string {
	ref := c.index.Lookup(label)
	if ref != nil && ref.PseudoArch() {
		return "recognized as not machine code"
	}
	if label == OCamlLabel && best3.Divergence >= c.ocamlMax {
		return "OCaml divergence above gate"
	}
	if label == IA64Label && best2.Divergence > c.ia64Max {
		return "IA-64 divergence above gate"
	}
	if label == PIC24Label && !hasZeroColumn(data) {
		return "PIC24 zero-column check failed"
	}
	return ""
}

// hasZeroColumn reports whether at least one of the four byte columns of
// the block, read as 32-bit words, is entirely zero.
func hasZeroColumn(data []byte) bool {
	zero := [4]bool{true, true, true, true}
	words := len(data) / 4
	for w := 0; w < words; w++ {
		any := false
		for i := 0; i < 4; i++ {
			if zero[i] && data[4*w+i] != 0 {
				zero[i] = false
			}
			any = any || zero[i]
		}
		if !any {
			return false
		}
	}
	return zero[0] || zero[1] || zero[2] || zero[3]
}
