/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: reconciler_test.go
Description: Tests for the segmentation reconciler. Covers gapless coverage,
run coalescing, noise absorption in both labeled and unlabeled forms, overlap
resolution between confident and unconfident windows, and the high-entropy flag.
*/

package segment

import (
	"math/rand"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kleascm/akaylee-archrec/pkg/interfaces"
)

const w = 0x1000

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func win(offset int, label string) interfaces.WindowResult {
	return interfaces.WindowResult{
		Offset: offset,
		Length: w,
		Verdict: interfaces.Verdict{
			Label:     label,
			Confident: label != "",
		},
	}
}

func windowRow(labels ...string) []interfaces.WindowResult {
	results := make([]interfaces.WindowResult, len(labels))
	for i, label := range labels {
		results[i] = win(i*w, label)
	}
	return results
}

func checkCoverage(t *testing.T, total int, segments []interfaces.Segment) {
	t.Helper()
	cursor := 0
	for _, s := range segments {
		assert.Equal(t, cursor, s.Offset, "segments must be contiguous")
		assert.Positive(t, s.Length)
		cursor = s.End()
	}
	assert.Equal(t, total, cursor, "segments must cover the whole input")
}

// TestReconcileCoalesce tests merging of adjacent same-label windows
func TestReconcileCoalesce(t *testing.T) {
	r := New(WithLogger(quietLogger()))
	windows := windowRow("", "X86", "X86", "X86", "")
	data := make([]byte, 5*w)

	segments := r.Reconcile(data, windows)
	require.Len(t, segments, 3)
	checkCoverage(t, len(data), segments)

	assert.Equal(t, "None", segments[0].LabelString())
	assert.Equal(t, "X86", segments[1].Label)
	assert.Equal(t, 3*w, segments[1].Length)
	assert.Equal(t, "None", segments[2].LabelString())
}

// TestReconcileNoiseAbsorption tests the single-fluke absorption property:
// one X window between two long Y runs disappears
func TestReconcileNoiseAbsorption(t *testing.T) {
	r := New(WithLogger(quietLogger()))
	windows := windowRow("PPCel", "PPCel", "IA-64", "PPCel", "PPCel")
	data := make([]byte, 5*w)

	segments := r.Reconcile(data, windows)
	require.Len(t, segments, 1)
	assert.Equal(t, "PPCel", segments[0].Label)
	assert.Equal(t, 5*w, segments[0].Length)
}

// TestReconcileNoneAbsorption tests that a short unlabeled run between
// agreeing labels is folded in
func TestReconcileNoneAbsorption(t *testing.T) {
	r := New(WithLogger(quietLogger()))
	windows := []interfaces.WindowResult{
		win(0, "MSP430"),
		{Offset: w, Length: 0x800, Verdict: interfaces.Verdict{}},
		win(w+0x800, "MSP430"),
	}
	data := make([]byte, 2*w+0x800)

	segments := r.Reconcile(data, windows)
	require.Len(t, segments, 1)
	assert.Equal(t, "MSP430", segments[0].Label)
	checkCoverage(t, len(data), segments)
}

// TestReconcileKeepsRealBoundaries tests that two genuine architectures
// meeting at a boundary are not merged, and that a short run between two
// short flanks survives
func TestReconcileKeepsRealBoundaries(t *testing.T) {
	r := New(WithLogger(quietLogger()))
	data := make([]byte, 6*w)

	segments := r.Reconcile(data, windowRow("X86", "X86", "X86", "PPCel", "PPCel", "PPCel"))
	require.Len(t, segments, 2)
	assert.Equal(t, "X86", segments[0].Label)
	assert.Equal(t, "PPCel", segments[1].Label)

	// Flanks below the noise threshold: the middle run is kept
	half := w / 2
	windows := []interfaces.WindowResult{
		{Offset: 0, Length: half, Verdict: interfaces.Verdict{Label: "X86", Confident: true}},
		{Offset: half, Length: half, Verdict: interfaces.Verdict{Label: "ARMel", Confident: true}},
		{Offset: 2 * half, Length: half, Verdict: interfaces.Verdict{Label: "X86", Confident: true}},
	}
	segments = r.Reconcile(make([]byte, 3*half), windows)
	assert.Len(t, segments, 3)
}

// TestReconcileUnabsorbedNoneSurvives tests that NONE runs between different
// labels stay in the output
func TestReconcileUnabsorbedNoneSurvives(t *testing.T) {
	r := New(WithLogger(quietLogger()))
	data := make([]byte, 3*w)

	segments := r.Reconcile(data, windowRow("X86", "", "PPCel"))
	require.Len(t, segments, 3)
	assert.Equal(t, "None", segments[1].LabelString())
}

// TestReconcileOverlapConfidentWins tests overlap attribution
func TestReconcileOverlapConfidentWins(t *testing.T) {
	r := New(WithLogger(quietLogger()))
	data := make([]byte, w+w/2)

	// Unconfident window followed by an overlapping confident one: the
	// confident window takes the overlap region
	windows := []interfaces.WindowResult{
		{Offset: 0, Length: w, Verdict: interfaces.Verdict{}},
		{Offset: w / 2, Length: w, Verdict: interfaces.Verdict{Label: "Alpha", Confident: true}},
	}
	segments := r.Reconcile(data, windows)
	require.Len(t, segments, 2)
	assert.Equal(t, w/2, segments[0].Length)
	assert.Equal(t, "Alpha", segments[1].Label)
	assert.Equal(t, w/2, segments[1].Offset)

	// Tie between two confident windows: the earlier one keeps the overlap
	windows = []interfaces.WindowResult{
		{Offset: 0, Length: w, Verdict: interfaces.Verdict{Label: "Alpha", Confident: true}},
		{Offset: w / 2, Length: w, Verdict: interfaces.Verdict{Label: "VAX", Confident: true}},
	}
	segments = r.Reconcile(data, windows)
	require.Len(t, segments, 2)
	assert.Equal(t, w, segments[0].Length)
	assert.Equal(t, "VAX", segments[1].Label)
	assert.Equal(t, w/2, segments[1].Length)
}

// TestReconcileTotal tests that no windows still yields a full cover
func TestReconcileTotal(t *testing.T) {
	r := New(WithLogger(quietLogger()))
	data := make([]byte, 0x300)

	segments := r.Reconcile(data, nil)
	require.Len(t, segments, 1)
	assert.Equal(t, "None", segments[0].LabelString())
	checkCoverage(t, len(data), segments)

	assert.Empty(t, r.Reconcile(nil, nil))
}

// TestReconcileEntropyFlag tests the high-entropy marking of final runs
func TestReconcileEntropyFlag(t *testing.T) {
	r := New(WithLogger(quietLogger()))
	data := make([]byte, 2*w)
	rng := rand.New(rand.NewSource(7))
	rng.Read(data[w:])

	segments := r.Reconcile(data, windowRow("", ""))
	require.Len(t, segments, 1)

	// The run mixes zeroes and random bytes; per-half entropies differ
	zeroHalf := r.Reconcile(data[:w], windowRow(""))
	randomHalf := r.Reconcile(data[w:], windowRow(""))
	assert.False(t, zeroHalf[0].HighEntropy)
	assert.True(t, randomHalf[0].HighEntropy)
	assert.Greater(t, randomHalf[0].Entropy, 0.95)
}
