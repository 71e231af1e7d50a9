package ml

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/stock-insight/internal/features"
	"github.com/yourusername/stock-insight/internal/models"
	"github.com/yourusername/stock-insight/internal/repository"
)

// insertBatchSize bounds how many samples go into one insert transaction.
const insertBatchSize = 200

// SampleStore manages the append-only training sample corpus. It generates
// labeled samples from historical replay and tracked outcomes, and
// deduplicates on the (stock, date, source) natural key before persisting.
type SampleStore struct {
	repo      repository.SampleRepository
	extractor *features.Extractor
	logger    *logrus.Logger
}

// NewSampleStore creates a sample store.
func NewSampleStore(repo repository.SampleRepository, extractor *features.Extractor, logger *logrus.Logger) *SampleStore {
	if logger == nil {
		logger = logrus.New()
	}
	return &SampleStore{repo: repo, extractor: extractor, logger: logger}
}

// SaveResult reports the outcome of one Save call.
type SaveResult struct {
	Saved   int `json:"saved"`
	Skipped int `json:"skipped"`
}

// Save persists samples, skipping any whose natural key already exists. Input
// duplicates are collapsed before hitting the database; the unique constraint
// remains the backstop for concurrent writers.
func (s *SampleStore) Save(ctx context.Context, samples []*models.TrainingSample) (*SaveResult, error) {
	result := &SaveResult{}
	if len(samples) == 0 {
		return result, nil
	}

	seen := make(map[string]bool, len(samples))
	unique := make([]*models.TrainingSample, 0, len(samples))
	keys := make([]string, 0, len(samples))
	for _, sample := range samples {
		key := sample.Key()
		if seen[key] {
			result.Skipped++
			continue
		}
		seen[key] = true
		unique = append(unique, sample)
		keys = append(keys, key)
	}

	existing, err := s.repo.ExistingKeys(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing samples: %w", err)
	}

	pending := make([]*models.TrainingSample, 0, len(unique))
	for _, sample := range unique {
		if existing[sample.Key()] {
			result.Skipped++
			continue
		}
		pending = append(pending, sample)
	}

	for start := 0; start < len(pending); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(pending) {
			end = len(pending)
		}
		inserted, err := s.repo.InsertBatch(ctx, pending[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to insert sample batch: %w", err)
		}
		for _, sample := range pending[start:end][:inserted] {
			SamplesSavedTotal.WithLabelValues(string(sample.Source)).Inc()
		}
		result.Saved += inserted
		// Rows the unique index rejected under concurrency count as skipped.
		result.Skipped += (end - start) - inserted
	}

	s.logger.WithFields(logrus.Fields{
		"saved":   result.Saved,
		"skipped": result.Skipped,
	}).Info("Training samples saved")
	return result, nil
}

// GenerateFromHistory replays a stock's bar history and emits one historical
// sample per day that has both enough lookback and a bar predictDays later to
// label against. Bars must be ordered oldest to newest.
func (s *SampleStore) GenerateFromHistory(stockID string, bars []models.DailyBar, predictDays int) ([]*models.TrainingSample, error) {
	if predictDays <= 0 {
		return nil, fmt.Errorf("predict days must be positive, got %d", predictDays)
	}

	var samples []*models.TrainingSample
	for i := range bars {
		future := i + predictDays
		if future >= len(bars) {
			break
		}
		if bars[i].Close <= 0 || bars[future].Close <= 0 {
			continue
		}

		obs := &models.StockObservation{
			StockID: stockID,
			Date:    bars[i].Date,
			Bar:     bars[i],
		}
		vector, err := s.extractor.Extract(obs, bars[:i])
		if err != nil {
			return nil, fmt.Errorf("feature extraction failed for %s on %s: %w",
				stockID, bars[i].Date.Format("2006-01-02"), err)
		}

		actualReturn := (bars[future].Close - bars[i].Close) / bars[i].Close
		samples = append(samples, s.buildSample(stockID, bars[i].Date, models.SampleSourceHistorical, vector, actualReturn))
	}
	return samples, nil
}

// GenerateFromOutcomes converts tracked recommendation outcomes into
// performance-sourced samples.
func (s *SampleStore) GenerateFromOutcomes(outcomes []*models.TrackedOutcome) ([]*models.TrainingSample, error) {
	var samples []*models.TrainingSample
	for _, outcome := range outcomes {
		obs := outcome.Observation
		vector, err := s.extractor.Extract(&obs, outcome.History)
		if err != nil {
			return nil, fmt.Errorf("feature extraction failed for tracked outcome %s: %w", outcome.StockID, err)
		}
		samples = append(samples, s.buildSample(outcome.StockID, outcome.TrackedDate,
			models.SampleSourcePerformance, vector, outcome.ActualReturn))
	}
	return samples, nil
}

func (s *SampleStore) buildSample(stockID string, date time.Time, source models.SampleSource, vector *models.FeatureVector, actualReturn float64) *models.TrainingSample {
	label := 0
	if actualReturn > 0 {
		label = 1
	}
	return &models.TrainingSample{
		ID:            uuid.New(),
		StockID:       stockID,
		SampleDate:    date,
		Source:        source,
		Features:      *vector,
		Label:         label,
		ActualReturn:  actualReturn,
		QualityScore:  vector.QualityScore(),
		SchemaVersion: vector.SchemaVersion,
		CreatedAt:     time.Now().UTC(),
	}
}

// Load fetches samples matching the filter and materializes the positionally
// ordered training matrix alongside the raw samples.
func (s *SampleStore) Load(ctx context.Context, filter repository.SampleFilter) ([][]float64, []int, []*models.TrainingSample, error) {
	samples, err := s.repo.Query(ctx, filter)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load samples: %w", err)
	}

	names := features.Names()
	matrix := make([][]float64, len(samples))
	labels := make([]int, len(samples))
	for i, sample := range samples {
		matrix[i] = sample.Features.Slice(names)
		labels[i] = sample.Label
	}
	return matrix, labels, samples, nil
}

// Stats summarizes the stored sample population.
func (s *SampleStore) Stats(ctx context.Context) (*models.SampleStats, error) {
	return s.repo.Stats(ctx)
}

// Prune removes samples older than the cutoff date.
func (s *SampleStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	deleted, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.logger.WithFields(logrus.Fields{
			"deleted": deleted,
			"cutoff":  cutoff.Format("2006-01-02"),
		}).Info("Pruned old training samples")
	}
	return deleted, nil
}
