package ml

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/stock-insight/internal/config"
	"github.com/yourusername/stock-insight/internal/features"
	"github.com/yourusername/stock-insight/internal/models"
	"github.com/yourusername/stock-insight/internal/repository"
)

// TrainerState names the phase a training run is in.
type TrainerState string

const (
	StateIdle          TrainerState = "idle"
	StatePreparingData TrainerState = "preparing_data"
	StateTraining      TrainerState = "training"
	StateEvaluating    TrainerState = "evaluating"
	StatePersisting    TrainerState = "persisting"
	StateDone          TrainerState = "done"
	StateFailed        TrainerState = "failed"
)

const (
	testFraction = 0.2
	cvFolds      = 3

	newSampleWeight    = 1.5
	replaySampleWeight = 1.0

	// replayPoolLimit caps how many prior samples the replay draw scans.
	replayPoolLimit = 50000
)

// Trainer orchestrates training runs over the sample and version stores. A
// run walks preparing_data, training, evaluating, persisting; a new version
// and its audit record are written only after evaluation succeeds.
type Trainer struct {
	samples  *SampleStore
	versions *VersionStore
	history  repository.HistoryRepository
	cfg      config.MLConfig
	logger   *logrus.Logger

	mu    sync.Mutex
	state TrainerState
}

// NewTrainer creates a trainer.
func NewTrainer(samples *SampleStore, versions *VersionStore, history repository.HistoryRepository, cfg config.MLConfig, logger *logrus.Logger) *Trainer {
	if logger == nil {
		logger = logrus.New()
	}
	return &Trainer{
		samples:  samples,
		versions: versions,
		history:  history,
		cfg:      cfg,
		logger:   logger,
		state:    StateIdle,
	}
}

// State returns the phase of the run in progress, or idle.
func (t *Trainer) State() TrainerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Trainer) setState(state TrainerState) {
	t.mu.Lock()
	t.state = state
	t.mu.Unlock()
	recordTrainerState(state)
}

// TrainResult reports one completed training run.
type TrainResult struct {
	Version         *models.ModelVersion         `json:"version"`
	History         *models.TrainingHistoryRecord `json:"history"`
	RejectedSamples int                           `json:"rejected_samples"`
}

// FullOptions tune a full or hybrid run. Zero values fall back to config.
type FullOptions struct {
	MinSamples int
	Sources    []models.SampleSource
}

// TrainFull trains a fresh model from the qualifying sample corpus and
// activates the resulting version.
func (t *Trainer) TrainFull(ctx context.Context, opts FullOptions) (*TrainResult, error) {
	return t.trainFresh(ctx, models.TrainingMethodFull, opts)
}

// TrainHybrid trains fresh on the union of historical and performance
// samples, recorded as a hybrid run.
func (t *Trainer) TrainHybrid(ctx context.Context, minSamples int) (*TrainResult, error) {
	return t.trainFresh(ctx, models.TrainingMethodHybrid, FullOptions{
		MinSamples: minSamples,
		Sources:    []models.SampleSource{models.SampleSourceHistorical, models.SampleSourcePerformance},
	})
}

func (t *Trainer) trainFresh(ctx context.Context, method models.TrainingMethod, opts FullOptions) (result *TrainResult, err error) {
	start := time.Now()
	defer t.finish(&err, string(method), start)

	minSamples := opts.MinSamples
	if minSamples <= 0 {
		minSamples = t.cfg.MinTrainingSamples
	}
	sources := opts.Sources
	if len(sources) == 0 {
		sources = []models.SampleSource{models.SampleSourceHistorical, models.SampleSourcePerformance}
	}

	t.setState(StatePreparingData)
	matrix, labels, samples, err := t.samples.Load(ctx, repository.SampleFilter{
		Sources:       sources,
		SchemaVersion: features.SchemaVersion,
	})
	if err != nil {
		return nil, err
	}
	matrix, labels, weights, rejected := t.qualityFilter(matrix, labels, samples, nil)
	if len(matrix) < minSamples {
		return nil, &InsufficientDataError{Op: string(method) + " training", Required: minSamples, Available: len(matrix)}
	}

	params := DefaultGBDTParams()
	params.Seed = t.cfg.Seed

	trainX, testX, trainY, testY, trainW := stratifiedSplit(matrix, labels, weights, testFraction, t.cfg.Seed)

	t.setState(StateTraining)
	scaler := NewStandardScaler()
	scaledTrain, err := scaler.FitTransform(trainX)
	if err != nil {
		return nil, fmt.Errorf("scaler fit failed: %w", err)
	}
	scaledTest, err := scaler.Transform(testX)
	if err != nil {
		return nil, fmt.Errorf("scaler transform failed: %w", err)
	}

	model := NewGBDT(params)
	if err := model.Train(scaledTrain, trainY, trainW); err != nil {
		return nil, fmt.Errorf("training failed: %w", err)
	}

	t.setState(StateEvaluating)
	cvAccuracy, err := crossValidate(params, scaledTrain, trainY, trainW, cvFolds, t.cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("cross validation failed: %w", err)
	}
	test, err := evaluateModel(model, scaledTest, testY)
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}

	metrics := metricsFromEval(cvAccuracy, test)
	return t.persist(ctx, persistInput{
		method:       method,
		model:        model,
		scaler:       scaler,
		params:       params,
		metrics:      metrics,
		sampleCount:  len(matrix),
		distribution: classDistribution(labels),
		sources:      sources,
		added:        len(matrix),
		rejected:     rejected,
		start:        start,
	})
}

// IncrementalOptions tune an incremental run. Zero values fall back to
// config; an empty BaseVersion continues from the current version.
type IncrementalOptions struct {
	Source        models.SampleSource
	BaseVersion   string
	MinNewSamples int
	ReplayRatio   float64
}

// TrainIncremental continues a base model's ensemble on newly arrived
// samples, mixing in replayed prior samples to damp forgetting.
func (t *Trainer) TrainIncremental(ctx context.Context, opts IncrementalOptions) (result *TrainResult, err error) {
	start := time.Now()
	defer t.finish(&err, string(models.TrainingMethodIncremental), start)

	minNew := opts.MinNewSamples
	if minNew <= 0 {
		minNew = t.cfg.MinNewSamples
	}
	replayRatio := opts.ReplayRatio
	if replayRatio <= 0 {
		replayRatio = t.cfg.ReplayRatio
	}

	t.setState(StatePreparingData)

	var baseModel *GBDT
	var scaler *StandardScaler
	var baseVersion *models.ModelVersion
	if opts.BaseVersion != "" {
		baseModel, scaler, baseVersion, err = t.versions.Load(ctx, opts.BaseVersion)
	} else {
		baseModel, scaler, baseVersion, err = t.versions.LoadCurrent(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load base model: %w", err)
	}

	newFilter := repository.SampleFilter{
		SchemaVersion: features.SchemaVersion,
		CreatedAfter:  &baseVersion.TrainedAt,
	}
	if opts.Source != "" {
		newFilter.Sources = []models.SampleSource{opts.Source}
	}
	newX, newY, newSamples, err := t.samples.Load(ctx, newFilter)
	if err != nil {
		return nil, err
	}
	newX, newY, _, rejected := t.qualityFilter(newX, newY, newSamples, nil)
	if len(newX) < minNew {
		return nil, &InsufficientDataError{Op: "incremental training", Required: minNew, Available: len(newX)}
	}

	replayCount := int(replayRatio * float64(len(newX)))
	var replayX [][]float64
	var replayY []int
	if replayCount > 0 {
		// The replay pool is bounded to samples the base model already saw,
		// so a row cannot enter the run twice under two different weights.
		rX, rY, rSamples, err := t.samples.Load(ctx, repository.SampleFilter{
			SchemaVersion: features.SchemaVersion,
			RandomSample:  true,
			Limit:         min(replayCount*2, replayPoolLimit),
			CreatedBefore: &baseVersion.TrainedAt,
		})
		if err != nil {
			return nil, err
		}
		rX, rY, _, _ = t.qualityFilter(rX, rY, rSamples, nil)
		if len(rX) > replayCount {
			rX, rY = rX[:replayCount], rY[:replayCount]
		}
		replayX, replayY = rX, rY
	}

	matrix := append(append([][]float64{}, newX...), replayX...)
	labels := append(append([]int{}, newY...), replayY...)
	weights := make([]float64, len(matrix))
	for i := range weights {
		if i < len(newX) {
			weights[i] = newSampleWeight
		} else {
			weights[i] = replaySampleWeight
		}
	}

	trainX, testX, trainY, testY, trainW := stratifiedSplit(matrix, labels, weights, testFraction, t.cfg.Seed)

	t.setState(StateTraining)
	// The base ensemble's splits live in the base scaler's space, so the
	// combined set is transformed with that scaler, never refitted.
	scaledTrain, err := scaler.Transform(trainX)
	if err != nil {
		return nil, fmt.Errorf("scaler transform failed: %w", err)
	}
	scaledTest, err := scaler.Transform(testX)
	if err != nil {
		return nil, fmt.Errorf("scaler transform failed: %w", err)
	}

	model, err := baseModel.Clone()
	if err != nil {
		return nil, fmt.Errorf("failed to clone base model: %w", err)
	}
	if err := model.ContinueTraining(scaledTrain, trainY, trainW, t.cfg.IncrementalRounds); err != nil {
		return nil, fmt.Errorf("incremental training failed: %w", err)
	}

	t.setState(StateEvaluating)
	test, err := evaluateModel(model, scaledTest, testY)
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}

	metrics := metricsFromEval(baseVersion.Metrics.CVAccuracy, test)
	metrics.Improvement = test.Accuracy - baseVersion.Metrics.TestAccuracy

	sources := []models.SampleSource{models.SampleSourceHistorical, models.SampleSourcePerformance}
	if opts.Source != "" {
		sources = []models.SampleSource{opts.Source}
	}
	return t.persist(ctx, persistInput{
		method:       models.TrainingMethodIncremental,
		model:        model,
		scaler:       scaler,
		params:       model.Params,
		metrics:      metrics,
		sampleCount:  len(matrix),
		distribution: classDistribution(labels),
		sources:      sources,
		added:        len(newX),
		rejected:     rejected,
		baseVersion:  &baseVersion.VersionID,
		start:        start,
	})
}

type persistInput struct {
	method       models.TrainingMethod
	model        *GBDT
	scaler       *StandardScaler
	params       GBDTParams
	metrics      models.ModelMetrics
	sampleCount  int
	distribution map[int]int
	sources      []models.SampleSource
	added        int
	rejected     int
	baseVersion  *string
	start        time.Time
}

func (t *Trainer) persist(ctx context.Context, in persistInput) (*TrainResult, error) {
	t.setState(StatePersisting)

	now := time.Now().UTC()
	hyperparams, err := json.Marshal(in.params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal hyperparameters: %w", err)
	}

	version := &models.ModelVersion{
		VersionID:         NewVersionID(now),
		TrainingMethod:    in.method,
		SampleCount:       in.sampleCount,
		FeatureCount:      features.Count(),
		PredictDays:       t.cfg.PredictDays,
		SchemaVersion:     features.SchemaVersion,
		Metrics:           in.metrics,
		ClassDistribution: in.distribution,
		TopFeatures:       topFeatureImportances(in.model, topFeatureCount),
		Hyperparameters:   hyperparams,
		BaseVersion:       in.baseVersion,
		TrainedAt:         now,
		CreatedAt:         now,
	}
	if err := t.versions.Save(ctx, in.model, in.scaler, version, true); err != nil {
		return nil, err
	}

	record := &models.TrainingHistoryRecord{
		ID:              uuid.New(),
		VersionID:       version.VersionID,
		TrainingMethod:  in.method,
		DataSources:     in.sources,
		TotalSamples:    in.sampleCount,
		AddedSamples:    in.added,
		RejectedSamples: in.rejected,
		Improvement:     in.metrics.Improvement,
		Duration:        time.Since(in.start),
		CreatedAt:       now,
	}
	if err := t.history.Insert(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to record training history: %w", err)
	}

	CurrentModelAccuracy.Set(in.metrics.TestAccuracy)

	t.logger.WithFields(logrus.Fields{
		"version":       version.VersionID,
		"method":        in.method,
		"samples":       in.sampleCount,
		"rejected":      in.rejected,
		"test_accuracy": in.metrics.TestAccuracy,
		"duration":      record.Duration.String(),
	}).Info("Training run completed")

	return &TrainResult{Version: version, History: record, RejectedSamples: in.rejected}, nil
}

// topFeatureCount bounds how many feature importances a version records.
const topFeatureCount = 10

// topFeatureImportances maps the ensemble's split shares onto canonical
// feature names and returns the largest n, descending.
func topFeatureImportances(model *GBDT, n int) []models.FeatureImportance {
	importances := model.FeatureImportances()
	names := features.Names()

	var out []models.FeatureImportance
	for i, importance := range importances {
		if i >= len(names) || importance == 0 {
			continue
		}
		out = append(out, models.FeatureImportance{Name: names[i], Importance: importance})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Importance > out[j].Importance })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// qualityFilter drops rows whose missing ratio exceeds the configured cap.
// Weights, when given, are filtered in lockstep.
func (t *Trainer) qualityFilter(matrix [][]float64, labels []int, samples []*models.TrainingSample, weights []float64) ([][]float64, []int, []float64, int) {
	maxMissing := t.cfg.MaxMissingRatio
	if maxMissing <= 0 {
		maxMissing = 0.5
	}

	var outX [][]float64
	var outY []int
	var outW []float64
	rejected := 0
	for i := range matrix {
		missing := float64(samples[i].Features.MissingCount) / float64(samples[i].Features.FeatureCount)
		if missing > maxMissing {
			rejected++
			continue
		}
		outX = append(outX, matrix[i])
		outY = append(outY, labels[i])
		if weights != nil {
			outW = append(outW, weights[i])
		} else {
			outW = append(outW, 1.0)
		}
	}
	return outX, outY, outW, rejected
}

// finish moves the state machine to its terminal state and records metrics.
func (t *Trainer) finish(err *error, method string, start time.Time) {
	if *err != nil {
		t.setState(StateFailed)
	} else {
		t.setState(StateDone)
	}
	recordTrainingRun(method, time.Since(start), *err == nil)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
