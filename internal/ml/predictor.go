package ml

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/stock-insight/internal/features"
	"github.com/yourusername/stock-insight/internal/models"
)

// RuleEngineVersion is reported as the model version on fallback predictions.
const RuleEngineVersion = "rule_engine"

// expectedReturnBand scales probability edge into an expected move. A fully
// confident call maps to a five percent expected return over the horizon.
const expectedReturnBand = 0.05

// Predictor scores stocks with the current model version, falling back to the
// deterministic rule engine whenever the ML path cannot serve. The loaded
// ensemble is cached in memory and refreshed when the current version
// changes.
type Predictor struct {
	versions  *VersionStore
	extractor *features.Extractor
	rules     *RuleEngine
	cache     *PredictionCache
	logger    *logrus.Logger

	mu            sync.RWMutex
	loadedModel   *GBDT
	loadedScaler  *StandardScaler
	loadedVersion *models.ModelVersion
}

// NewPredictor creates a predictor. cache may be nil to disable memoization.
func NewPredictor(versions *VersionStore, extractor *features.Extractor, cache *PredictionCache, logger *logrus.Logger) *Predictor {
	if logger == nil {
		logger = logrus.New()
	}
	return &Predictor{
		versions:  versions,
		extractor: extractor,
		rules:     NewRuleEngine(),
		cache:     cache,
		logger:    logger,
	}
}

// Predict scores one stock. Either a prepared feature vector or a raw
// observation (plus optional lookback bars) must be provided; with both, the
// vector wins. The call is a pure read and never fails outright: any ML-path
// problem degrades to the rule engine.
func (p *Predictor) Predict(ctx context.Context, stockID string, vector *models.FeatureVector, obs *models.StockObservation, history []models.DailyBar) (*models.PredictionResult, error) {
	start := time.Now()

	if vector == nil && obs != nil {
		extracted, err := p.extractor.Extract(obs, history)
		if err == nil {
			vector = extracted
		} else {
			p.logger.WithError(err).WithField("stock_id", stockID).
				Warn("Feature extraction failed, scoring with rule engine")
		}
	}
	if vector == nil {
		return nil, fmt.Errorf("either a feature vector or an observation is required")
	}

	if result, ok := p.cachedResult(ctx, stockID, vector.AsOfDate); ok {
		recordPrediction("cache", result.Prediction, time.Since(start))
		return result, nil
	}

	result := p.scoreVector(ctx, stockID, vector)
	result.PredictedAt = time.Now().UTC()

	p.cache.Set(stockID, vector.AsOfDate, result.ModelVersion, result)
	path := "model"
	if result.ModelVersion == RuleEngineVersion {
		path = "rules"
	}
	recordPrediction(path, result.Prediction, time.Since(start))
	return result, nil
}

// PredictFromSignals scores from a raw signal map via the rule engine alone.
// Unknown keys are ignored and absent signals contribute nothing.
func (p *Predictor) PredictFromSignals(stockID string, signals map[string]float64) *models.PredictionResult {
	start := time.Now()
	probability := p.rules.Probability(signals)
	result := buildResult(stockID, probability, RuleEngineVersion, len(signals))
	result.PredictedAt = time.Now().UTC()
	recordPrediction("rules", result.Prediction, time.Since(start))
	return result
}

func (p *Predictor) cachedResult(ctx context.Context, stockID string, date time.Time) (*models.PredictionResult, bool) {
	if p.cache == nil {
		return nil, false
	}
	version := RuleEngineVersion
	if current, err := p.versions.Current(ctx); err == nil {
		version = current.VersionID
	}
	return p.cache.Get(stockID, date, version)
}

func (p *Predictor) scoreVector(ctx context.Context, stockID string, vector *models.FeatureVector) *models.PredictionResult {
	model, scaler, version, err := p.currentModel(ctx)
	if err != nil {
		p.logger.WithError(err).WithField("stock_id", stockID).
			Debug("ML path unavailable, scoring with rule engine")
		return p.ruleResult(stockID, vector)
	}

	row, err := scaler.TransformRow(vector.Slice(features.Names()))
	if err == nil {
		var probability float64
		probability, err = model.PredictProbability(row)
		if err == nil {
			return buildResult(stockID, clampFloat(probability, 0, 1),
				version.VersionID, vector.FeatureCount-vector.MissingCount)
		}
	}

	p.logger.WithError(err).WithFields(logrus.Fields{
		"stock_id": stockID,
		"version":  version.VersionID,
	}).Warn("ML prediction failed, scoring with rule engine")
	return p.ruleResult(stockID, vector)
}

func (p *Predictor) ruleResult(stockID string, vector *models.FeatureVector) *models.PredictionResult {
	probability := p.rules.Probability(vector.Values)
	return buildResult(stockID, probability, RuleEngineVersion,
		vector.FeatureCount-vector.MissingCount)
}

// currentModel returns the cached ensemble, reloading artifacts only when the
// catalog reports a different current version.
func (p *Predictor) currentModel(ctx context.Context) (*GBDT, *StandardScaler, *models.ModelVersion, error) {
	current, err := p.versions.Current(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	p.mu.RLock()
	if p.loadedVersion != nil && p.loadedVersion.VersionID == current.VersionID {
		model, scaler, version := p.loadedModel, p.loadedScaler, p.loadedVersion
		p.mu.RUnlock()
		return model, scaler, version, nil
	}
	p.mu.RUnlock()

	model, scaler, version, err := p.versions.Load(ctx, current.VersionID)
	if err != nil {
		return nil, nil, nil, err
	}

	p.mu.Lock()
	p.loadedModel = model
	p.loadedScaler = scaler
	p.loadedVersion = version
	p.mu.Unlock()

	p.logger.WithField("version", version.VersionID).Info("Loaded model version for serving")
	return model, scaler, version, nil
}

func buildResult(stockID string, probability float64, modelVersion string, featuresUsed int) *models.PredictionResult {
	prediction := models.PredictionNeutral
	if probability > 0.6 {
		prediction = models.PredictionUp
	} else if probability < 0.4 {
		prediction = models.PredictionDown
	}

	edge := probability - 0.5
	confidence := models.ConfidenceLow
	if edge > 0.2 || edge < -0.2 {
		confidence = models.ConfidenceHigh
	} else if edge > 0.1 || edge < -0.1 {
		confidence = models.ConfidenceMedium
	}

	return &models.PredictionResult{
		StockID:        stockID,
		Prediction:     prediction,
		Probability:    probability,
		Confidence:     confidence,
		ExpectedReturn: 2 * edge * expectedReturnBand,
		ModelVersion:   modelVersion,
		FeaturesUsed:   featuresUsed,
	}
}
