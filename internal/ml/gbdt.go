package ml

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// GBDTParams are the boosting hyperparameters. Zero values are replaced by
// DefaultGBDTParams at training time.
type GBDTParams struct {
	Rounds         int     `json:"rounds"`
	LearningRate   float64 `json:"learning_rate"`
	MaxDepth       int     `json:"max_depth"`
	MinSamplesLeaf int     `json:"min_samples_leaf"`
	Subsample      float64 `json:"subsample"`
	Seed           int64   `json:"seed"`
}

// DefaultGBDTParams returns the hyperparameters used when none are supplied.
func DefaultGBDTParams() GBDTParams {
	return GBDTParams{
		Rounds:         100,
		LearningRate:   0.1,
		MaxDepth:       4,
		MinSamplesLeaf: 5,
		Subsample:      0.8,
		Seed:           42,
	}
}

func (p *GBDTParams) applyDefaults() {
	d := DefaultGBDTParams()
	if p.Rounds <= 0 {
		p.Rounds = d.Rounds
	}
	if p.LearningRate <= 0 {
		p.LearningRate = d.LearningRate
	}
	if p.MaxDepth <= 0 {
		p.MaxDepth = d.MaxDepth
	}
	if p.MinSamplesLeaf <= 0 {
		p.MinSamplesLeaf = d.MinSamplesLeaf
	}
	if p.Subsample <= 0 || p.Subsample > 1 {
		p.Subsample = d.Subsample
	}
}

// treeNode is one node of a regression tree. Leaf nodes carry the additive
// score contribution; internal nodes route on Feature <= Threshold.
type treeNode struct {
	Feature   int       `json:"feature,omitempty"`
	Threshold float64   `json:"threshold,omitempty"`
	Value     float64   `json:"value,omitempty"`
	Leaf      bool      `json:"leaf"`
	Left      *treeNode `json:"left,omitempty"`
	Right     *treeNode `json:"right,omitempty"`
}

func (n *treeNode) predict(row []float64) float64 {
	if n.Leaf {
		return n.Value
	}
	if row[n.Feature] <= n.Threshold {
		return n.Left.predict(row)
	}
	return n.Right.predict(row)
}

// GBDT is a gradient-boosted decision tree binary classifier with logistic
// loss. Training is deterministic for a fixed seed, and a trained model can
// be extended with further rounds without refitting the earlier trees.
type GBDT struct {
	Params    GBDTParams  `json:"params"`
	InitScore float64     `json:"init_score"`
	Trees     []*treeNode `json:"trees"`
	NumFeat   int         `json:"num_features"`
}

// NewGBDT returns an untrained model with the given hyperparameters.
func NewGBDT(params GBDTParams) *GBDT {
	params.applyDefaults()
	return &GBDT{Params: params}
}

// Trained reports whether the model has at least one boosting round.
func (m *GBDT) Trained() bool {
	return len(m.Trees) > 0
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

// Train fits the model from scratch. Labels must be 0 or 1; weights scale
// each sample's contribution to both the initial score and the gradients.
// A nil weights slice means uniform weights.
func (m *GBDT) Train(X [][]float64, y []int, weights []float64) error {
	m.Trees = nil
	m.InitScore = 0
	if weights == nil {
		weights = uniformWeights(len(y))
	}
	if err := m.validate(X, y, weights); err != nil {
		return err
	}
	m.NumFeat = len(X[0])

	// Initial score is the weighted log-odds of the positive class.
	var posW, totW float64
	for i, label := range y {
		totW += weights[i]
		if label == 1 {
			posW += weights[i]
		}
	}
	p := posW / totW
	p = math.Min(math.Max(p, 1e-6), 1-1e-6)
	m.InitScore = math.Log(p / (1 - p))

	return m.boost(X, y, weights, m.Params.Rounds, m.Params.Seed)
}

// ContinueTraining appends rounds of boosting on top of the existing trees,
// so knowledge from the base model is preserved while new data corrects it.
func (m *GBDT) ContinueTraining(X [][]float64, y []int, weights []float64, rounds int) error {
	if !m.Trained() {
		return fmt.Errorf("cannot continue training an untrained model")
	}
	if weights == nil {
		weights = uniformWeights(len(y))
	}
	if err := m.validate(X, y, weights); err != nil {
		return err
	}
	if len(X[0]) != m.NumFeat {
		return fmt.Errorf("feature count changed: model has %d, data has %d", m.NumFeat, len(X[0]))
	}
	if rounds <= 0 {
		rounds = m.Params.Rounds
	}
	// Offset the seed so continuation rounds do not repeat the base
	// model's subsampling sequence.
	return m.boost(X, y, weights, rounds, m.Params.Seed+int64(len(m.Trees)))
}

func uniformWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	return w
}

func (m *GBDT) validate(X [][]float64, y []int, weights []float64) error {
	if len(X) == 0 {
		return fmt.Errorf("empty training matrix")
	}
	if len(X) != len(y) {
		return fmt.Errorf("matrix has %d rows but %d labels", len(X), len(y))
	}
	if len(weights) != len(y) {
		return fmt.Errorf("matrix has %d rows but %d weights", len(X), len(weights))
	}
	for _, label := range y {
		if label != 0 && label != 1 {
			return fmt.Errorf("labels must be 0 or 1, got %d", label)
		}
	}
	return nil
}

func (m *GBDT) boost(X [][]float64, y []int, weights []float64, rounds int, seed int64) error {
	n := len(X)
	rng := rand.New(rand.NewSource(seed))

	// Raw scores for the current ensemble over the training rows.
	scores := make([]float64, n)
	for i := range scores {
		scores[i] = m.InitScore
		for _, tree := range m.Trees {
			scores[i] += m.Params.LearningRate * tree.predict(X[i])
		}
	}

	grad := make([]float64, n)
	hess := make([]float64, n)
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	for round := 0; round < rounds; round++ {
		for i := range X {
			p := sigmoid(scores[i])
			grad[i] = weights[i] * (float64(y[i]) - p)
			hess[i] = weights[i] * p * (1 - p)
		}

		sample := indices
		if m.Params.Subsample < 1 {
			k := int(math.Ceil(m.Params.Subsample * float64(n)))
			rng.Shuffle(n, func(a, b int) { indices[a], indices[b] = indices[b], indices[a] })
			sample = make([]int, k)
			copy(sample, indices[:k])
		}

		tree := m.buildTree(X, grad, hess, sample, 0)
		m.Trees = append(m.Trees, tree)

		for i := range X {
			scores[i] += m.Params.LearningRate * tree.predict(X[i])
		}
	}
	return nil
}

// buildTree grows one regression tree on the gradient/hessian targets using
// Newton leaf values (sum grad / sum hess).
func (m *GBDT) buildTree(X [][]float64, grad, hess []float64, idx []int, depth int) *treeNode {
	if depth >= m.Params.MaxDepth || len(idx) < 2*m.Params.MinSamplesLeaf {
		return m.leaf(grad, hess, idx)
	}

	feature, threshold, ok := m.bestSplit(X, grad, hess, idx)
	if !ok {
		return m.leaf(grad, hess, idx)
	}

	var left, right []int
	for _, i := range idx {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < m.Params.MinSamplesLeaf || len(right) < m.Params.MinSamplesLeaf {
		return m.leaf(grad, hess, idx)
	}

	return &treeNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      m.buildTree(X, grad, hess, left, depth+1),
		Right:     m.buildTree(X, grad, hess, right, depth+1),
	}
}

func (m *GBDT) leaf(grad, hess []float64, idx []int) *treeNode {
	var g, h float64
	for _, i := range idx {
		g += grad[i]
		h += hess[i]
	}
	value := 0.0
	if h > 1e-12 {
		value = g / h
	}
	return &treeNode{Leaf: true, Value: value}
}

// maxSplitCandidates bounds the thresholds evaluated per feature.
const maxSplitCandidates = 16

func (m *GBDT) bestSplit(X [][]float64, grad, hess []float64, idx []int) (int, float64, bool) {
	var totalG, totalH float64
	for _, i := range idx {
		totalG += grad[i]
		totalH += hess[i]
	}
	parentScore := gain(totalG, totalH)

	bestGain := 1e-9
	bestFeature, bestThreshold := -1, 0.0
	values := make([]float64, 0, len(idx))

	for f := 0; f < m.NumFeat; f++ {
		values = values[:0]
		for _, i := range idx {
			values = append(values, X[i][f])
		}
		sort.Float64s(values)
		if values[0] == values[len(values)-1] {
			continue
		}

		for _, threshold := range splitCandidates(values) {
			var lg, lh float64
			for _, i := range idx {
				if X[i][f] <= threshold {
					lg += grad[i]
					lh += hess[i]
				}
			}
			rg, rh := totalG-lg, totalH-lh
			g := gain(lg, lh) + gain(rg, rh) - parentScore
			if g > bestGain {
				bestGain = g
				bestFeature = f
				bestThreshold = threshold
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

func gain(g, h float64) float64 {
	if h < 1e-12 {
		return 0
	}
	return g * g / h
}

// splitCandidates returns up to maxSplitCandidates midpoints between distinct
// sorted values, evenly spaced through the distribution.
func splitCandidates(sorted []float64) []float64 {
	var distinct []float64
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			distinct = append(distinct, v)
		}
	}
	if len(distinct) < 2 {
		return nil
	}
	step := 1
	if len(distinct)-1 > maxSplitCandidates {
		step = (len(distinct) - 1) / maxSplitCandidates
	}
	var out []float64
	for i := step; i < len(distinct); i += step {
		out = append(out, (distinct[i-1]+distinct[i])/2)
	}
	return out
}

// FeatureImportances returns each feature's share of the ensemble's splits,
// indexed by feature position and normalized to sum to one. Returns nil for
// an untrained model.
func (m *GBDT) FeatureImportances() []float64 {
	if !m.Trained() {
		return nil
	}
	counts := make([]float64, m.NumFeat)
	total := 0.0
	var walk func(n *treeNode)
	walk = func(n *treeNode) {
		if n == nil || n.Leaf {
			return
		}
		counts[n.Feature]++
		total++
		walk(n.Left)
		walk(n.Right)
	}
	for _, tree := range m.Trees {
		walk(tree)
	}
	if total > 0 {
		for i := range counts {
			counts[i] /= total
		}
	}
	return counts
}

// PredictProbability returns P(label == 1) for one feature row.
func (m *GBDT) PredictProbability(row []float64) (float64, error) {
	if !m.Trained() {
		return 0, fmt.Errorf("model is not trained")
	}
	if len(row) != m.NumFeat {
		return 0, fmt.Errorf("expected %d features, got %d", m.NumFeat, len(row))
	}
	score := m.InitScore
	for _, tree := range m.Trees {
		score += m.Params.LearningRate * tree.predict(row)
	}
	return sigmoid(score), nil
}

// MarshalBinary serializes the full ensemble state to JSON.
func (m *GBDT) MarshalBinary() ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalBinary restores ensemble state from JSON.
func (m *GBDT) UnmarshalBinary(data []byte) error {
	if err := json.Unmarshal(data, m); err != nil {
		return fmt.Errorf("failed to decode model state: %w", err)
	}
	return nil
}

// Clone returns a deep copy via serialization, so incremental training can
// extend a copy while the base artifact stays immutable.
func (m *GBDT) Clone() (*GBDT, error) {
	data, err := m.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out := &GBDT{}
	if err := out.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return out, nil
}
