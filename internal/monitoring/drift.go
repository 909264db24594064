package monitoring

import (
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/equipwatch/equipwatch/pkg/constants"
	"github.com/equipwatch/equipwatch/pkg/models"
)

const (
	psiBins = 10
	// laplaceEpsilon keeps bin proportions strictly positive so the PSI log
	// term is always defined
	laplaceEpsilon = 1e-4
)

// PSIDriftEstimator scores drift as the Population Stability Index of the
// incoming feature batch against a reference distribution captured at
// training time. Per-feature PSI values are averaged and clamped to [0, 1].
type PSIDriftEstimator struct {
	mu        sync.RWMutex
	reference map[string]featureBins
}

// featureBins is one feature's reference distribution: quantile bin edges and
// the proportion of reference samples in each bin
type featureBins struct {
	edges       []float64
	proportions []float64
}

// NewPSIDriftEstimator creates an estimator with no reference set
func NewPSIDriftEstimator() *PSIDriftEstimator {
	return &PSIDriftEstimator{}
}

// SetReference replaces the reference distribution with the given feature set
func (e *PSIDriftEstimator) SetReference(features *models.FeatureSet) {
	columns := featureColumns(features)

	reference := make(map[string]featureBins, len(columns))
	for name, values := range columns {
		if len(values) < 2 {
			continue
		}
		bins := buildBins(values)
		if bins != nil {
			reference[name] = *bins
		}
	}

	e.mu.Lock()
	e.reference = reference
	e.mu.Unlock()
}

// EstimateDrift scores the batch against the reference. Returns 0 when no
// reference has been set or the batch is empty.
func (e *PSIDriftEstimator) EstimateDrift(features *models.FeatureSet) float64 {
	e.mu.RLock()
	reference := e.reference
	e.mu.RUnlock()

	if len(reference) == 0 || features.SampleCount() == 0 {
		return 0
	}

	columns := featureColumns(features)

	var total float64
	var counted int
	for name, bins := range reference {
		values, ok := columns[name]
		if !ok || len(values) == 0 {
			continue
		}
		total += psi(bins, values)
		counted++
	}
	if counted == 0 {
		return 0
	}

	return clamp01(total / float64(counted))
}

// buildBins derives quantile bin edges and reference proportions from a
// feature's sample values
func buildBins(values []float64) *featureBins {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	if sorted[0] == sorted[len(sorted)-1] {
		return nil // constant feature carries no drift signal
	}

	edges := make([]float64, 0, psiBins-1)
	for i := 1; i < psiBins; i++ {
		q := stat.Quantile(float64(i)/psiBins, stat.Empirical, sorted, nil)
		if len(edges) == 0 || q > edges[len(edges)-1] {
			edges = append(edges, q)
		}
	}
	if len(edges) == 0 {
		return nil
	}

	counts := make([]float64, len(edges)+1)
	for _, v := range sorted {
		counts[binIndex(edges, v)]++
	}
	proportions := make([]float64, len(counts))
	for i, c := range counts {
		proportions[i] = (c + laplaceEpsilon) / (float64(len(sorted)) + laplaceEpsilon*float64(len(counts)))
	}

	return &featureBins{edges: edges, proportions: proportions}
}

// psi computes the Population Stability Index of values against the
// reference bins
func psi(bins featureBins, values []float64) float64 {
	counts := make([]float64, len(bins.proportions))
	for _, v := range values {
		counts[binIndex(bins.edges, v)]++
	}

	var index float64
	n := float64(len(values))
	for i, expected := range bins.proportions {
		actual := (counts[i] + laplaceEpsilon) / (n + laplaceEpsilon*float64(len(counts)))
		index += (actual - expected) * math.Log(actual/expected)
	}
	return index
}

func binIndex(edges []float64, v float64) int {
	idx := sort.SearchFloat64s(edges, v)
	if idx < len(edges) && v == edges[idx] {
		idx++
	}
	return idx
}

// featureColumns transposes a feature set into per-feature value slices over
// the canonical training features
func featureColumns(features *models.FeatureSet) map[string][]float64 {
	columns := make(map[string][]float64, len(constants.TrainingFeatures))
	if features == nil {
		return columns
	}
	for _, vector := range features.Features {
		for _, name := range constants.TrainingFeatures {
			if v, ok := vector[name]; ok && !math.IsNaN(v) && !math.IsInf(v, 0) {
				columns[name] = append(columns[name], v)
			}
		}
	}
	return columns
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
