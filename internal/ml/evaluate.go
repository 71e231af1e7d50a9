package ml

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/yourusername/stock-insight/internal/models"
)

// evalResult holds binary classification metrics with label 1 as positive.
type evalResult struct {
	Accuracy  float64
	Precision float64
	Recall    float64
	F1        float64
}

// evaluateModel scores a trained model on held-out rows.
func evaluateModel(model *GBDT, X [][]float64, y []int) (evalResult, error) {
	if len(X) == 0 {
		return evalResult{}, fmt.Errorf("empty evaluation set")
	}
	var tp, tn, fp, fn int
	for i, row := range X {
		p, err := model.PredictProbability(row)
		if err != nil {
			return evalResult{}, err
		}
		pred := 0
		if p >= 0.5 {
			pred = 1
		}
		switch {
		case pred == 1 && y[i] == 1:
			tp++
		case pred == 0 && y[i] == 0:
			tn++
		case pred == 1 && y[i] == 0:
			fp++
		default:
			fn++
		}
	}

	res := evalResult{
		Accuracy: float64(tp+tn) / float64(len(y)),
	}
	if tp+fp > 0 {
		res.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		res.Recall = float64(tp) / float64(tp+fn)
	}
	if res.Precision+res.Recall > 0 {
		res.F1 = 2 * res.Precision * res.Recall / (res.Precision + res.Recall)
	}
	return res, nil
}

// stratifiedSplit partitions rows into train and test sets preserving the
// label ratio. testFraction is clamped so both sides stay non-empty where the
// class has at least two members.
func stratifiedSplit(X [][]float64, y []int, weights []float64, testFraction float64, seed int64) (trainX, testX [][]float64, trainY, testY []int, trainW []float64) {
	rng := rand.New(rand.NewSource(seed))

	byLabel := map[int][]int{}
	var labels []int
	for i, label := range y {
		if _, seen := byLabel[label]; !seen {
			labels = append(labels, label)
		}
		byLabel[label] = append(byLabel[label], i)
	}
	sort.Ints(labels)

	// Labels are walked in a fixed order so the partition is reproducible
	// for a given seed.
	for _, label := range labels {
		idx := byLabel[label]
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		nTest := int(float64(len(idx)) * testFraction)
		if nTest == 0 && len(idx) > 1 {
			nTest = 1
		}
		for i, row := range idx {
			if i < nTest {
				testX = append(testX, X[row])
				testY = append(testY, y[row])
			} else {
				trainX = append(trainX, X[row])
				trainY = append(trainY, y[row])
				trainW = append(trainW, weights[row])
			}
		}
	}
	return trainX, testX, trainY, testY, trainW
}

// crossValidate runs k-fold cross validation and returns mean accuracy.
// Folds are assigned round-robin after a seeded shuffle.
func crossValidate(params GBDTParams, X [][]float64, y []int, weights []float64, folds int, seed int64) (float64, error) {
	if folds < 2 {
		folds = 3
	}
	if len(X) < folds {
		return 0, fmt.Errorf("need at least %d samples for %d-fold cross validation, have %d", folds, folds, len(X))
	}

	rng := rand.New(rand.NewSource(seed))
	order := make([]int, len(X))
	for i := range order {
		order[i] = i
	}
	rng.Shuffle(len(order), func(a, b int) { order[a], order[b] = order[b], order[a] })

	var total float64
	for fold := 0; fold < folds; fold++ {
		var trainX, testX [][]float64
		var trainY, testY []int
		var trainW []float64
		for pos, i := range order {
			if pos%folds == fold {
				testX = append(testX, X[i])
				testY = append(testY, y[i])
			} else {
				trainX = append(trainX, X[i])
				trainY = append(trainY, y[i])
				trainW = append(trainW, weights[i])
			}
		}
		model := NewGBDT(params)
		if err := model.Train(trainX, trainY, trainW); err != nil {
			return 0, fmt.Errorf("fold %d training failed: %w", fold, err)
		}
		res, err := evaluateModel(model, testX, testY)
		if err != nil {
			return 0, fmt.Errorf("fold %d evaluation failed: %w", fold, err)
		}
		total += res.Accuracy
	}
	return total / float64(folds), nil
}

// classDistribution counts labels in a training set.
func classDistribution(y []int) map[int]int {
	dist := make(map[int]int)
	for _, label := range y {
		dist[label]++
	}
	return dist
}

func metricsFromEval(cvAccuracy float64, test evalResult) models.ModelMetrics {
	return models.ModelMetrics{
		CVAccuracy:    cvAccuracy,
		TestAccuracy:  test.Accuracy,
		TestF1:        test.F1,
		TestPrecision: test.Precision,
		TestRecall:    test.Recall,
	}
}
