/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: scanner.go
Description: Sliding-window scanner for the Akaylee ArchRec engine. Places
fixed-size windows across the file, classifies each window independently
against the shared reference index, and records the normalized byte entropy
of every window. Window results are emitted in strictly ascending offset
order for the segmentation reconciler.
*/

package scan

import (
	"github.com/sirupsen/logrus"

	"github.com/kleascm/akaylee-archrec/pkg/interfaces"
)

// Scanner slides a window across file bytes. The zero step means
// non-overlapping windows, the calibrated default.
type Scanner struct {
	classifier interfaces.Classifier
	windowSize int
	step       int
	minWindow  int
	logger     *logrus.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithWindow overrides the window size and step. A zero step keeps windows
// non-overlapping.
func WithWindow(size, step int) Option {
	return func(s *Scanner) {
		s.windowSize = size
		s.step = step
	}
}

// WithMinWindow overrides the smallest block classified on its own.
func WithMinWindow(min int) Option {
	return func(s *Scanner) { s.minWindow = min }
}

// WithLogger routes scan diagnostics to the given logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(s *Scanner) { s.logger = logger }
}

// New creates a scanner over the given classifier with calibrated defaults:
// 4 KiB windows, non-overlapping, 128-byte minimum.
func New(classifier interfaces.Classifier, opts ...Option) *Scanner {
	s := &Scanner{
		classifier: classifier,
		windowSize: 0x1000,
		minWindow:  0x80,
		logger:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan classifies every window of the file and returns the results in
// ascending offset order. Files shorter than the minimum window are
// classified as one window; files between the minimum and one window size
// get a single window covering the whole file. When the step does not
// divide the file length, a final window is pinned to the tail so coverage
// is complete.
func (s *Scanner) Scan(data []byte) []interfaces.WindowResult {
	if len(data) == 0 {
		return nil
	}

	w := s.windowSize
	if len(data) < s.minWindow || len(data) < w {
		// Single window over the whole file. Below the minimum the
		// verdict is still computed; short-block statistics widen the
		// query default and usually yield NONE on their own.
		return []interfaces.WindowResult{s.classifyWindow(data, 0, len(data))}
	}

	step := s.step
	if step <= 0 {
		step = w
	}

	var results []interfaces.WindowResult
	last := -1
	for off := 0; off+w <= len(data); off += step {
		results = append(results, s.classifyWindow(data, off, w))
		last = off
	}
	if last+w < len(data) {
		// Tail window pinned to the end of the file.
		results = append(results, s.classifyWindow(data, len(data)-w, w))
	}
	return results
}

func (s *Scanner) classifyWindow(data []byte, off, length int) interfaces.WindowResult {
	block := data[off : off+length]
	res := interfaces.WindowResult{
		Offset:  off,
		Length:  length,
		Verdict: s.classifier.Classify(block),
		Entropy: Entropy(block),
	}
	s.logger.WithFields(logrus.Fields{
		"offset":  off,
		"length":  length,
		"label":   res.Verdict.String(),
		"entropy": res.Entropy,
	}).Debug("Window classified")
	return res
}
