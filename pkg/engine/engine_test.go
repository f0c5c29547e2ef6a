/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: engine_test.go
Description: Tests for the session engine. Covers end-to-end analysis of
synthetic firmware images (data/code/data layouts), whole-file and windowed
classification, degenerate inputs, corpus loading with the gob cache, and the
segmentation output format.
*/

package engine

import (
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kleascm/akaylee-archrec/pkg/corpus"
	"github.com/kleascm/akaylee-archrec/pkg/interfaces"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

// synthCode generates deterministic pseudo-code with per-architecture
// statistics: fixed opcode byte per word, operands in a seed-specific range.
func synthCode(seed byte, size int) []byte {
	data := make([]byte, size)
	state := uint32(seed)*2654435761 + 1
	for i := 0; i < size; i += 4 {
		state = state*1664525 + 1013904223
		data[i] = seed
		if i+1 < size {
			data[i+1] = byte(state>>8)%64 + seed/2
		}
		if i+2 < size {
			data[i+2] = byte(state >> 16)
		}
		if i+3 < size {
			data[i+3] = seed ^ 0x0F
		}
	}
	return data
}

func synthWords(size int) []byte {
	sentence := []byte("statistical recognition of processor architectures in firmware images ")
	var text []byte
	for len(text) < size {
		text = append(text, sentence...)
	}
	return text[:size]
}

var seeds = map[string]byte{
	"X86":    0x8B,
	"MSP430": 0x3C,
	"PPCel":  0x94,
	"Alpha":  0xA5,
}

func testIndex(t *testing.T) *corpus.Index {
	t.Helper()
	idx := corpus.NewIndex(corpus.WithLogger(quietLogger()))
	for label, seed := range seeds {
		require.NoError(t, idx.AddData(label, synthCode(seed, 64*1024), 1))
	}
	require.NoError(t, idx.AddData("_zero", make([]byte, 32*1024), 1))
	require.NoError(t, idx.AddData("_words", synthWords(8*1024), 1))
	return idx
}

func testEngine(t *testing.T) *Engine {
	t.Helper()
	return NewWithIndex(nil, testIndex(t), quietLogger())
}

// TestEngineWholeFileVerdict tests whole-file classification of corpus bytes
func TestEngineWholeFileVerdict(t *testing.T) {
	e := testEngine(t)

	assert.Equal(t, "X86", e.WhichArch(synthCode(seeds["X86"], 64*1024)))
	assert.Equal(t, "MSP430", e.WhichArch(synthCode(seeds["MSP430"], 64*1024)))
	assert.Equal(t, interfaces.NoneLabel, e.WhichArch(nil))
}

// TestEngineSelfSegmentation tests that exact corpus bytes segment as a
// single labeled run
func TestEngineSelfSegmentation(t *testing.T) {
	e := testEngine(t)

	segments := e.Segment(synthCode(seeds["X86"], 64*1024))
	require.Len(t, segments, 1)
	assert.Equal(t, "X86", segments[0].Label)
	assert.Equal(t, 64*1024, segments[0].Length)
}

// TestEngineFirmwareLayout tests a data/code/data image in the shape of the
// PowerPC DLL scenario: zero padding, a long code region, zero padding
func TestEngineFirmwareLayout(t *testing.T) {
	e := testEngine(t)

	const (
		pad1 = 0x5800
		code = 0x4c800
		pad2 = 0x23800
	)
	image := make([]byte, pad1+code+pad2)
	copy(image[pad1:], synthCode(seeds["PPCel"], code))

	segments := e.Segment(image)
	require.NotEmpty(t, segments)

	// Gapless cover
	cursor := 0
	for _, s := range segments {
		assert.Equal(t, cursor, s.Offset)
		cursor = s.End()
	}
	assert.Equal(t, len(image), cursor)

	// Leading and trailing padding stay unlabeled, the code region is one
	// long PPCel run at window resolution
	assert.Empty(t, segments[0].Label)
	assert.Empty(t, segments[len(segments)-1].Label)

	var ppcel int
	for _, s := range segments {
		if s.Label == "PPCel" {
			ppcel += s.Length
		}
		assert.NotEqual(t, "_zero", s.Label)
	}
	assert.GreaterOrEqual(t, ppcel, code-2*0x1000)
	assert.LessOrEqual(t, ppcel, code+2*0x1000)
}

// TestEngineEmbeddedFirmware tests the MSP430-style layout
func TestEngineEmbeddedFirmware(t *testing.T) {
	e := testEngine(t)

	image := make([]byte, 0x8000+0x5000+0x3000)
	copy(image[0x8000:], synthCode(seeds["MSP430"], 0x5000))

	segments := e.Segment(image)
	var msp int
	for _, s := range segments {
		if s.Label == "MSP430" {
			msp += s.Length
		}
	}
	assert.GreaterOrEqual(t, msp, 0x4000)
}

// TestEngineRandomData tests the high-entropy scenario
func TestEngineRandomData(t *testing.T) {
	e := testEngine(t)

	data := make([]byte, 4096)
	rng := rand.New(rand.NewSource(99))
	rng.Read(data)

	segments := e.Segment(data)
	require.Len(t, segments, 1)
	assert.GreaterOrEqual(t, segments[0].Entropy, 0.95)
	assert.True(t, segments[0].HighEntropy)
}

// TestEngineDegenerateInput tests the repeated-byte scenario: statistics
// collapse to a single n-gram and no reference matches
func TestEngineDegenerateInput(t *testing.T) {
	e := testEngine(t)

	mono := make([]byte, 1024*1024)
	for i := range mono {
		mono[i] = 0x41
	}
	v := e.Classify(mono)
	assert.True(t, v.IsNone())
}

// TestEngineEmptyQuery tests the EmptyQuery error-taxonomy path
func TestEngineEmptyQuery(t *testing.T) {
	e := testEngine(t)

	assert.Empty(t, e.Segment(nil))
	assert.Empty(t, e.Segment([]byte{0x41, 0x42}))
	assert.Equal(t, interfaces.NoneLabel, e.WhichArch([]byte{0x41, 0x42}))
}

// TestEngineFromCorpusDirAndCache tests New with a corpus directory and the
// cache round-trip
func TestEngineFromCorpusDirAndCache(t *testing.T) {
	dir := t.TempDir()
	corpusDir := filepath.Join(dir, "corpus")
	require.NoError(t, os.Mkdir(corpusDir, 0755))
	for label, seed := range seeds {
		path := filepath.Join(corpusDir, label+".corpus")
		require.NoError(t, os.WriteFile(path, synthCode(seed, 32*1024), 0644))
	}

	cfg := interfaces.DefaultEngineConfig()
	cfg.CorpusDir = corpusDir
	cfg.CacheFile = filepath.Join(dir, "stats.gob")

	e, err := New(cfg, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, len(seeds), e.Index().Len())
	assert.FileExists(t, cfg.CacheFile)

	// Second construction comes from the cache and classifies identically
	e2, err := New(cfg, quietLogger())
	require.NoError(t, err)
	query := synthCode(seeds["Alpha"], 32*1024)
	assert.Equal(t, e.WhichArch(query), e2.WhichArch(query))
	assert.Equal(t, "Alpha", e2.WhichArch(query))
}

// TestEngineMissingCorpus tests the InputUnavailable path
func TestEngineMissingCorpus(t *testing.T) {
	cfg := interfaces.DefaultEngineConfig()
	cfg.CorpusDir = filepath.Join(t.TempDir(), "absent")
	_, err := New(cfg, quietLogger())
	assert.Error(t, err)
}

// TestEngineAnalyze tests the file-level report
func TestEngineAnalyze(t *testing.T) {
	e := testEngine(t)

	path := filepath.Join(t.TempDir(), "blob.bin")
	require.NoError(t, os.WriteFile(path, synthCode(seeds["X86"], 32*1024), 0644))

	report, err := e.Analyze(path)
	require.NoError(t, err)
	assert.Equal(t, path, report.Path)
	assert.Equal(t, "X86", report.WholeFile.Label)
	assert.NotEmpty(t, report.SessionID)
	assert.NotEmpty(t, report.Segments)

	_, err = e.Analyze(filepath.Join(t.TempDir(), "missing.bin"))
	assert.Error(t, err)
}

// TestFormatSegment tests the human-readable run format
func TestFormatSegment(t *testing.T) {
	line := FormatSegment(interfaces.Segment{
		Offset:  0x5800,
		Length:  0x4c800,
		Label:   "PPCel",
		Entropy: 0.751234567,
	})
	assert.Contains(t, line, "22528")
	assert.Contains(t, line, "0x5800")
	assert.Contains(t, line, "PPCel (size=0x4c800, entropy=0.751235)")

	none := FormatSegment(interfaces.Segment{Offset: 0, Length: 0x100})
	assert.True(t, strings.Contains(none, "None"))
}
