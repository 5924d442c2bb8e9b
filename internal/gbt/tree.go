package gbt

import (
	"math/rand"
	"sort"
)

// Node is one decision node in a regression tree. Leaves carry Feature == -1
// and a prediction Value; internal nodes route rows by Threshold.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
}

// Tree is a regression tree stored as a flat node slice, root at index 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Predict routes one feature row to its leaf value.
func (t *Tree) Predict(row []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if row[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// treeBuilder grows a single regression tree on the current residuals.
type treeBuilder struct {
	rows     [][]float64
	target   []float64
	params   Params
	rng      *rand.Rand
	numFeats int

	nodes []Node
	// split gain accumulated per feature, feeds ensemble importances
	gains []float64
}

func newTreeBuilder(rows [][]float64, target []float64, numFeats int, params Params, rng *rand.Rand) *treeBuilder {
	return &treeBuilder{
		rows:     rows,
		target:   target,
		params:   params,
		rng:      rng,
		numFeats: numFeats,
		gains:    make([]float64, numFeats),
	}
}

// grow builds the tree over the given row indices and returns it.
func (b *treeBuilder) grow(indices []int) *Tree {
	b.buildNode(indices, 0)
	return &Tree{Nodes: b.nodes}
}

// buildNode appends a node for the given rows and returns its index.
func (b *treeBuilder) buildNode(indices []int, depth int) int {
	idx := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1})

	if depth >= b.params.MaxDepth || len(indices) < 2*b.params.MinSamplesLeaf {
		b.nodes[idx].Value = b.mean(indices)
		return idx
	}

	feature, threshold, gain, ok := b.bestSplit(indices)
	if !ok {
		b.nodes[idx].Value = b.mean(indices)
		return idx
	}

	left := make([]int, 0, len(indices))
	right := make([]int, 0, len(indices))
	for _, i := range indices {
		if b.rows[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	b.gains[feature] += gain

	b.nodes[idx].Feature = feature
	b.nodes[idx].Threshold = threshold
	b.nodes[idx].Left = b.buildNode(left, depth+1)
	b.nodes[idx].Right = b.buildNode(right, depth+1)
	return idx
}

// bestSplit scans a column-sampled feature subset for the split with the
// largest sum-of-squares reduction.
func (b *treeBuilder) bestSplit(indices []int) (feature int, threshold, gain float64, ok bool) {
	minLeaf := b.params.MinSamplesLeaf
	n := len(indices)

	var totalSum float64
	for _, i := range indices {
		totalSum += b.target[i]
	}
	parentScore := totalSum * totalSum / float64(n)

	bestGain := splitGainEpsilon
	sorted := make([]int, n)

	for _, f := range b.sampleFeatures() {
		copy(sorted, indices)
		sort.SliceStable(sorted, func(a, c int) bool {
			return b.rows[sorted[a]][f] < b.rows[sorted[c]][f]
		})

		var leftSum float64
		for pos := 0; pos < n-minLeaf; pos++ {
			i := sorted[pos]
			leftSum += b.target[i]

			if pos+1 < minLeaf {
				continue
			}
			// No valid threshold between equal feature values.
			cur, next := b.rows[i][f], b.rows[sorted[pos+1]][f]
			if cur == next {
				continue
			}

			nL := float64(pos + 1)
			nR := float64(n - pos - 1)
			rightSum := totalSum - leftSum
			g := leftSum*leftSum/nL + rightSum*rightSum/nR - parentScore
			if g > bestGain {
				bestGain = g
				feature = f
				threshold = (cur + next) / 2
				ok = true
			}
		}
	}

	return feature, threshold, bestGain, ok
}

// sampleFeatures draws the column subset considered at one node.
func (b *treeBuilder) sampleFeatures() []int {
	k := int(float64(b.numFeats)*b.params.ColSample + 0.5)
	if k < 1 {
		k = 1
	}
	if k >= b.numFeats {
		feats := make([]int, b.numFeats)
		for i := range feats {
			feats[i] = i
		}
		return feats
	}
	perm := b.rng.Perm(b.numFeats)
	feats := perm[:k]
	sort.Ints(feats)
	return feats
}

func (b *treeBuilder) mean(indices []int) float64 {
	if len(indices) == 0 {
		return 0
	}
	var sum float64
	for _, i := range indices {
		sum += b.target[i]
	}
	return sum / float64(len(indices))
}
