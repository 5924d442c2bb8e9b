// Package gbt implements a gradient-boosted regression tree ensemble with
// squared-error loss. Fitting is deterministic for a fixed seed, and trained
// ensembles serialize to JSON for stable save/load round trips.
package gbt

import (
	"errors"
	"math/rand"
	"sort"
)

// splitGainEpsilon is the minimum sum-of-squares reduction for a usable split.
const splitGainEpsilon = 1e-12

// Params are the fixed fitting hyperparameters. They are design constants
// chosen to avoid overfitting small synthetic sets, not tunable inputs.
type Params struct {
	NumTrees       int     `json:"num_trees"`
	MaxDepth       int     `json:"max_depth"`
	LearningRate   float64 `json:"learning_rate"`
	MinSamplesLeaf int     `json:"min_samples_leaf"`
	Subsample      float64 `json:"subsample"`
	ColSample      float64 `json:"col_sample"`
	Seed           int64   `json:"seed"`
}

// DefaultParams returns the standard configuration for priority scoring.
func DefaultParams() Params {
	return Params{
		NumTrees:       100,
		MaxDepth:       5,
		LearningRate:   0.1,
		MinSamplesLeaf: 3,
		Subsample:      0.8,
		ColSample:      0.8,
		Seed:           42,
	}
}

// ErrNoData is returned when Fit receives an empty sample set.
var ErrNoData = errors.New("gbt: no training rows")

// ErrShapeMismatch is returned when rows and labels disagree in length or
// rows have inconsistent widths.
var ErrShapeMismatch = errors.New("gbt: rows and labels have mismatched shapes")

// Ensemble is a fitted boosted-tree regressor.
type Ensemble struct {
	Base         float64   `json:"base_prediction"`
	LearningRate float64   `json:"learning_rate"`
	NumFeatures  int       `json:"num_features"`
	Trees        []*Tree   `json:"trees"`
	FeatureGain  []float64 `json:"feature_gain"`
}

// Fit trains an ensemble on the given feature rows and labels.
func Fit(rows [][]float64, labels []float64, params Params) (*Ensemble, error) {
	if len(rows) == 0 {
		return nil, ErrNoData
	}
	if len(rows) != len(labels) {
		return nil, ErrShapeMismatch
	}
	numFeats := len(rows[0])
	if numFeats == 0 {
		return nil, ErrShapeMismatch
	}
	for _, row := range rows {
		if len(row) != numFeats {
			return nil, ErrShapeMismatch
		}
	}

	rng := rand.New(rand.NewSource(params.Seed))

	base := mean(labels)
	predictions := make([]float64, len(rows))
	for i := range predictions {
		predictions[i] = base
	}

	ensemble := &Ensemble{
		Base:         base,
		LearningRate: params.LearningRate,
		NumFeatures:  numFeats,
		Trees:        make([]*Tree, 0, params.NumTrees),
		FeatureGain:  make([]float64, numFeats),
	}

	residuals := make([]float64, len(rows))
	for t := 0; t < params.NumTrees; t++ {
		for i := range residuals {
			residuals[i] = labels[i] - predictions[i]
		}

		sampled := sampleRows(len(rows), params.Subsample, rng)

		builder := newTreeBuilder(rows, residuals, numFeats, params, rng)
		tree := builder.grow(sampled)
		ensemble.Trees = append(ensemble.Trees, tree)

		for i := range ensemble.FeatureGain {
			ensemble.FeatureGain[i] += builder.gains[i]
		}

		for i, row := range rows {
			predictions[i] += params.LearningRate * tree.Predict(row)
		}
	}

	return ensemble, nil
}

// Predict produces the raw real-valued score for one feature row.
func (e *Ensemble) Predict(row []float64) float64 {
	score := e.Base
	for _, tree := range e.Trees {
		score += e.LearningRate * tree.Predict(row)
	}
	return score
}

// Importances returns per-feature importance weights normalized to sum to 1,
// derived from accumulated split gains. A gain-free ensemble (e.g. constant
// labels) reports uniform weights.
func (e *Ensemble) Importances() []float64 {
	weights := make([]float64, e.NumFeatures)

	var total float64
	for _, g := range e.FeatureGain {
		total += g
	}
	if total <= 0 {
		for i := range weights {
			weights[i] = 1 / float64(e.NumFeatures)
		}
		return weights
	}

	for i, g := range e.FeatureGain {
		weights[i] = g / total
	}
	return weights
}

// sampleRows draws a subsample of row indices without replacement. The result
// is sorted so tree growth is independent of permutation order.
func sampleRows(n int, fraction float64, rng *rand.Rand) []int {
	count := int(float64(n)*fraction + 0.5)
	if count < 1 {
		count = 1
	}
	if count >= n {
		indices := make([]int, n)
		for i := range indices {
			indices[i] = i
		}
		return indices
	}

	perm := rng.Perm(n)
	indices := perm[:count]
	sort.Ints(indices)
	return indices
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
