/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: engine.go
Description: Session engine for the Akaylee ArchRec engine. Holds the loaded
reference index and wires the classifier, window scanner, and segmentation
reconciler into the library-facing API: whole-file classification, text-section
classification through the container collaborator, and full sliding-window
segmentation. Construction is eager so the first query carries no load cost.
*/

package engine

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kleascm/akaylee-archrec/pkg/cache"
	"github.com/kleascm/akaylee-archrec/pkg/classify"
	"github.com/kleascm/akaylee-archrec/pkg/container"
	"github.com/kleascm/akaylee-archrec/pkg/corpus"
	"github.com/kleascm/akaylee-archrec/pkg/interfaces"
	"github.com/kleascm/akaylee-archrec/pkg/ngram"
	"github.com/kleascm/akaylee-archrec/pkg/scan"
	"github.com/kleascm/akaylee-archrec/pkg/segment"
)

// Engine is a recognition session: an immutable reference index plus the
// pipeline components built over it. Safe for concurrent queries once
// constructed.
type Engine struct {
	cfg        *interfaces.EngineConfig
	index      *corpus.Index
	classifier *classify.Classifier
	scanner    *scan.Scanner
	reconciler *segment.Reconciler
	logger     *logrus.Logger
}

// New builds an engine from the configured corpus directory. When a cache
// file is configured it is used if fresh, and rewritten after a rebuild;
// cache write failures are logged and ignored.
func New(cfg *interfaces.EngineConfig, logger *logrus.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = interfaces.DefaultEngineConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	var idx *corpus.Index
	if cfg.CacheFile != "" {
		cached, err := cache.Load(cfg.CacheFile, cfg.CorpusDir, corpus.WithLogger(logger))
		if err == nil {
			logger.WithField("cache", cfg.CacheFile).Info("Reference index loaded from cache")
			idx = cached
		} else {
			logger.WithError(err).Debug("Reference cache unusable, rebuilding from corpus")
		}
	}
	if idx == nil {
		loaded, err := corpus.Load(cfg.CorpusDir,
			corpus.WithLogger(logger),
			corpus.WithSmoothing(cfg.Smoothing))
		if err != nil {
			return nil, err
		}
		idx = loaded
		if cfg.CacheFile != "" {
			if err := cache.Save(cfg.CacheFile, idx); err != nil {
				logger.WithError(err).Warn("Could not save reference cache")
			}
		}
	}

	return NewWithIndex(cfg, idx, logger), nil
}

// NewWithIndex builds an engine over an already-loaded index.
func NewWithIndex(cfg *interfaces.EngineConfig, idx *corpus.Index, logger *logrus.Logger) *Engine {
	if cfg == nil {
		cfg = interfaces.DefaultEngineConfig()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	classifier := classify.New(idx,
		classify.WithSmoothing(cfg.Smoothing),
		classify.WithLogger(logger))
	return &Engine{
		cfg:        cfg,
		index:      idx,
		classifier: classifier,
		scanner: scan.New(classifier,
			scan.WithWindow(cfg.WindowSize, cfg.WindowStep),
			scan.WithMinWindow(cfg.MinWindow),
			scan.WithLogger(logger)),
		reconciler: segment.New(
			segment.WithNoise(cfg.Noise()),
			segment.WithEntropyFlag(cfg.EntropyFlag),
			segment.WithLogger(logger)),
		logger: logger,
	}
}

// Index returns the session's reference index.
func (e *Engine) Index() *corpus.Index {
	return e.index
}

// Classify runs the whole-block classification.
func (e *Engine) Classify(data []byte) interfaces.Verdict {
	return e.classifier.Classify(data)
}

// WhichArch returns the architecture token for the block: a label, or the
// None token when the classifier has no confident match.
func (e *Engine) WhichArch(data []byte) string {
	return e.Classify(data).String()
}

// Segment scans the block with the sliding window and reconciles the
// window verdicts into a gapless segmentation. Blocks too short to carry a
// single trigram yield an empty segmentation.
func (e *Engine) Segment(data []byte) []interfaces.Segment {
	if len(data) < ngram.OrderTrigram {
		return nil
	}
	return e.reconciler.Reconcile(data, e.scanner.Scan(data))
}

// Analyze reads and unpacks one file and produces its full scan report:
// whole-file verdict, text-section verdict when a container is recognized,
// and the sliding-window segmentation.
func (e *Engine) Analyze(path string) (*interfaces.ScanReport, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	data, err := corpus.Unpack(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", path, err)
	}
	report := e.AnalyzeBytes(data)
	report.Path = path
	return report, nil
}

// AnalyzeBytes produces the full scan report for an in-memory block.
func (e *Engine) AnalyzeBytes(data []byte) *interfaces.ScanReport {
	start := time.Now()
	report := &interfaces.ScanReport{
		SessionID: uuid.New().String(),
		Size:      len(data),
		WholeFile: e.Classify(data),
	}

	if text, ok := container.ExtractText(data); ok && len(text) != len(data) {
		v := e.Classify(text)
		report.TextSection = &v
	}

	report.Segments = e.Segment(data)
	report.Duration = time.Since(start)

	e.logger.WithFields(logrus.Fields{
		"session":  report.SessionID,
		"size":     report.Size,
		"verdict":  report.WholeFile.String(),
		"segments": len(report.Segments),
		"duration": report.Duration,
	}).Info("Analysis complete")
	return report
}

// FormatSegment renders one segmentation run in the standard line format:
// offset in decimal and hexadecimal, label, size in hexadecimal, and
// entropy rounded to six places.
func FormatSegment(s interfaces.Segment) string {
	return fmt.Sprintf("%-10d %#-12x %s (size=%#x, entropy=%.6f)",
		s.Offset, s.Offset, s.LabelString(), s.Length, s.Entropy)
}
