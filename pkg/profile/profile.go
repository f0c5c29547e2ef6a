/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: profile.go
Description: Smoothed n-gram probability profiles for the Akaylee ArchRec engine.
Turns sparse counts into additive-smoothed distributions where every n-gram of
the universe has strictly positive probability, and computes the Kullback-Leibler
divergence between a query profile and a reference profile.
*/

package profile

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/kleascm/akaylee-archrec/pkg/ngram"
)

// DefaultSmoothing is the calibrated additive smoothing weight.
const DefaultSmoothing = 0.01

// Profile is a smoothed probability distribution over the n-grams of one
// order. Keys absent from Probs carry the Default probability, so the
// distribution is strictly positive everywhere while staying sparse.
// LogSum caches the sum of log-probabilities over the stored keys; KL needs
// it to account for reference keys the query never observed without walking
// the reference map. Fields are exported for gob caching; treat a built
// profile as read-only.
type Profile struct {
	Order   int
	Probs   map[uint32]float64
	Default float64
	LogSum  float64
}

// Build derives a profile from sparse counts.
//
// With universe size N = 256^order and S = weight*sum(counts) + alpha*N,
// every observed key k gets (weight*count[k] + alpha) / S and every other
// key the implicit alpha / S. The weight multiplier is the numeric
// equivalent of repeating a small training corpus.
func Build(counts ngram.Counts, order int, alpha float64, weight uint64) (*Profile, error) {
	if alpha <= 0 {
		return nil, fmt.Errorf("smoothing weight must be positive, got %g", alpha)
	}
	if weight == 0 {
		weight = 1
	}

	universe := float64(ngram.UniverseSize(order))
	total := alpha * universe
	for _, c := range counts {
		total += float64(weight * c)
	}
	if total <= 0 || math.IsInf(total, 0) || math.IsNaN(total) {
		return nil, fmt.Errorf("degenerate profile mass %g at order %d", total, order)
	}

	p := &Profile{
		Order:   order,
		Probs:   make(map[uint32]float64, len(counts)),
		Default: alpha / total,
	}
	for k, c := range counts {
		p.Probs[k] = (float64(weight*c) + alpha) / total
	}
	// Summed in key order so that equal profiles carry identical LogSums.
	for _, k := range slices.Sorted(maps.Keys(p.Probs)) {
		p.LogSum += math.Log(p.Probs[k])
	}
	return p, nil
}

// Prob returns the probability of the given key, falling back to the
// implicit default mass for keys never observed.
func (p *Profile) Prob(key uint32) float64 {
	if v, ok := p.Probs[key]; ok {
		return v
	}
	return p.Default
}

// Mass returns the total probability mass of the profile. It equals 1.0
// up to rounding for any profile produced by Build.
func (p *Profile) Mass() float64 {
	mass := p.Default * float64(ngram.UniverseSize(p.Order)-len(p.Probs))
	for _, v := range p.Probs {
		mass += v
	}
	return mass
}

// KL computes the Kullback-Leibler divergence D(q || r) over the full
// n-gram universe. Both distributions are strictly positive everywhere, so
// every term is finite and the result is non-negative, with D(q || q) == 0.
//
// Only the query's stored keys are walked. The keys carrying the query's
// default mass split into two groups whose contributions close over sums
// already at hand: reference-stored keys not seen by the query (via the
// reference's cached LogSum minus the log-probabilities of the keys both
// store), and keys stored by neither side, where both distributions sit at
// their defaults.
//
// The query keys are visited in ascending order, so the result is
// reproducible bit for bit and references with equal profiles tie exactly.
func KL(q, r *Profile) float64 {
	var d float64
	var shared int
	var sharedLog float64
	for _, k := range slices.Sorted(maps.Keys(q.Probs)) {
		qv := q.Probs[k]
		rv, stored := r.Probs[k]
		if !stored {
			rv = r.Default
		} else {
			shared++
			sharedLog += math.Log(rv)
		}
		d += qv * math.Log(qv/rv)
	}

	logQDef := math.Log(q.Default)
	refOnly := float64(len(r.Probs) - shared)
	d += q.Default * (refOnly*logQDef - (r.LogSum - sharedLog))

	neither := float64(ngram.UniverseSize(q.Order)) - float64(len(q.Probs)) - refOnly
	d += neither * q.Default * (logQDef - math.Log(r.Default))
	return d
}
