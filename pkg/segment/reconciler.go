/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: reconciler.go
Description: Segmentation reconciler for the Akaylee ArchRec engine. Resolves
overlapping window results into disjoint intervals, coalesces same-label runs,
absorbs short noise runs between long agreeing neighbors, and emits a gapless
segmentation with per-run entropy and a high-entropy flag for likely packed
or encrypted regions.
*/

package segment

import (
	"github.com/sirupsen/logrus"

	"github.com/kleascm/akaylee-archrec/pkg/interfaces"
	"github.com/kleascm/akaylee-archrec/pkg/scan"
)

// Reconciler merges window results into a final segmentation. It is total:
// any input produces a complete, gapless, non-overlapping cover of the data.
type Reconciler struct {
	noise       int
	entropyFlag float64
	logger      *logrus.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithNoise overrides the noise threshold, the run length below which an
// isolated run is absorbed into agreeing neighbors. Defaults to one window.
func WithNoise(n int) Option {
	return func(r *Reconciler) { r.noise = n }
}

// WithEntropyFlag overrides the normalized entropy at or above which a run
// is flagged as likely encrypted or compressed.
func WithEntropyFlag(f float64) Option {
	return func(r *Reconciler) { r.entropyFlag = f }
}

// WithLogger routes reconciliation diagnostics to the given logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(r *Reconciler) { r.logger = logger }
}

// New creates a reconciler with calibrated defaults: noise threshold of one
// 4 KiB window and a 0.9 entropy flag.
func New(opts ...Option) *Reconciler {
	r := &Reconciler{
		noise:       0x1000,
		entropyFlag: 0.9,
		logger:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type run struct {
	start, end int
	label      string
	confident  bool
}

func (r run) length() int { return r.end - r.start }

// Reconcile turns window results, in ascending offset order, into the final
// segmentation of data. Windows may overlap when the scan step is smaller
// than the window; the overlap goes to whichever window has a confident
// verdict, the earlier one on ties.
func (r *Reconciler) Reconcile(data []byte, windows []interfaces.WindowResult) []interfaces.Segment {
	if len(data) == 0 {
		return nil
	}

	runs := r.disjoint(windows)
	runs = fillGaps(runs, len(data))
	runs = coalesce(runs)
	// Absorption can leave two same-label runs abutting, so coalesce again.
	runs = coalesce(r.absorbNoise(runs))

	segments := make([]interfaces.Segment, 0, len(runs))
	for _, ru := range runs {
		entropy := scan.Entropy(data[ru.start:ru.end])
		segments = append(segments, interfaces.Segment{
			Offset:      ru.start,
			Length:      ru.length(),
			Label:       ru.label,
			Entropy:     entropy,
			HighEntropy: entropy >= r.entropyFlag,
		})
	}
	return segments
}

// disjoint converts possibly-overlapping windows into non-overlapping
// intervals labeled by their verdicts.
func (r *Reconciler) disjoint(windows []interfaces.WindowResult) []run {
	var runs []run
	for _, w := range windows {
		start, end := w.Offset, w.Offset+w.Length
		if n := len(runs); n > 0 && runs[n-1].end > start {
			prev := &runs[n-1]
			if w.Verdict.Confident && !prev.confident {
				// Overlap goes to the confident window.
				prev.end = start
				if prev.length() <= 0 {
					runs = runs[:n-1]
				}
			} else {
				// Tie, or only the earlier window is confident:
				// the earlier window keeps the overlap.
				start = prev.end
			}
		}
		if start >= end {
			continue
		}
		runs = append(runs, run{start: start, end: end, label: w.Verdict.Label, confident: w.Verdict.Confident})
	}
	return runs
}

// fillGaps inserts unlabeled runs wherever the intervals leave the data
// uncovered, so the segmentation is gapless.
func fillGaps(runs []run, total int) []run {
	var out []run
	cursor := 0
	for _, ru := range runs {
		if ru.start > cursor {
			out = append(out, run{start: cursor, end: ru.start})
		}
		out = append(out, ru)
		cursor = ru.end
	}
	if cursor < total {
		out = append(out, run{start: cursor, end: total})
	}
	return out
}

// coalesce merges contiguous runs sharing a label.
func coalesce(runs []run) []run {
	var out []run
	for _, ru := range runs {
		if n := len(out); n > 0 && out[n-1].label == ru.label {
			out[n-1].end = ru.end
			continue
		}
		out = append(out, ru)
	}
	return out
}

// absorbNoise removes isolated flukes: a short run whose two neighbors agree
// on a label is folded into them. Unlabeled runs are absorbed below the
// threshold whenever the flanks agree; labeled runs additionally require
// both flanks to be at least threshold-long, so two genuine architectures
// meeting at a boundary are never merged.
func (r *Reconciler) absorbNoise(runs []run) []run {
	for {
		absorbed := false
		for i := 1; i+1 < len(runs); i++ {
			prev, mid, next := runs[i-1], runs[i], runs[i+1]
			if prev.label != next.label {
				continue
			}
			drop := false
			switch {
			case mid.label == "" && prev.label != "" && mid.length() < r.noise:
				drop = true
			case mid.length() <= r.noise && prev.length() >= r.noise && next.length() >= r.noise:
				drop = true
			}
			if !drop {
				continue
			}
			r.logger.WithFields(logrus.Fields{
				"offset": mid.start,
				"length": mid.length(),
				"label":  mid.label,
				"into":   prev.label,
			}).Debug("Noise run absorbed")
			runs[i-1].end = next.end
			runs = append(runs[:i], runs[i+2:]...)
			absorbed = true
			break
		}
		if !absorbed {
			return runs
		}
	}
}
