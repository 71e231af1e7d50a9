package ml

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/stock-insight/internal/features"
	"github.com/yourusername/stock-insight/internal/models"
	"github.com/yourusername/stock-insight/internal/repository"
)

// fakeSampleRepo is an in-memory SampleRepository. Queries are recorded so
// tests can assert on the filters callers build.
type fakeSampleRepo struct {
	samples []*models.TrainingSample
	keys    map[string]bool
	queries []repository.SampleFilter
}

func newFakeSampleRepo() *fakeSampleRepo {
	return &fakeSampleRepo{keys: make(map[string]bool)}
}

func (r *fakeSampleRepo) InsertBatch(ctx context.Context, samples []*models.TrainingSample) (int, error) {
	inserted := 0
	for _, sample := range samples {
		if r.keys[sample.Key()] {
			continue
		}
		r.keys[sample.Key()] = true
		r.samples = append(r.samples, sample)
		inserted++
	}
	return inserted, nil
}

func (r *fakeSampleRepo) ExistingKeys(ctx context.Context, keys []string) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, key := range keys {
		if r.keys[key] {
			out[key] = true
		}
	}
	return out, nil
}

func (r *fakeSampleRepo) Query(ctx context.Context, filter repository.SampleFilter) ([]*models.TrainingSample, error) {
	r.queries = append(r.queries, filter)
	var out []*models.TrainingSample
	for _, sample := range r.samples {
		if filter.SchemaVersion != "" && sample.SchemaVersion != filter.SchemaVersion {
			continue
		}
		if filter.MinQuality > 0 && sample.QualityScore < filter.MinQuality {
			continue
		}
		if filter.CreatedAfter != nil && !sample.CreatedAt.After(*filter.CreatedAfter) {
			continue
		}
		if filter.CreatedBefore != nil && sample.CreatedAt.After(*filter.CreatedBefore) {
			continue
		}
		if len(filter.Sources) > 0 {
			match := false
			for _, source := range filter.Sources {
				if sample.Source == source {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, sample)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (r *fakeSampleRepo) Stats(ctx context.Context) (*models.SampleStats, error) {
	stats := &models.SampleStats{
		Total:    len(r.samples),
		BySource: make(map[models.SampleSource]int),
		ByLabel:  make(map[int]int),
	}
	for _, sample := range r.samples {
		stats.BySource[sample.Source]++
		stats.ByLabel[sample.Label]++
	}
	return stats, nil
}

func (r *fakeSampleRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var kept []*models.TrainingSample
	var deleted int64
	for _, sample := range r.samples {
		if sample.SampleDate.Before(cutoff) {
			delete(r.keys, sample.Key())
			deleted++
			continue
		}
		kept = append(kept, sample)
	}
	r.samples = kept
	return deleted, nil
}

// trendingBars builds an upward-drifting daily series, oldest first.
func trendingBars(stockID string, days int, start float64) []models.DailyBar {
	bars := make([]models.DailyBar, days)
	base := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	price := start
	for i := range bars {
		price *= 1.01
		bars[i] = models.DailyBar{
			StockID: stockID,
			Date:    base.AddDate(0, 0, i),
			Open:    price * 0.99,
			High:    price * 1.02,
			Low:     price * 0.98,
			Close:   price,
			Volume:  1_000_000,
		}
	}
	return bars
}

func newTestSampleStore(repo repository.SampleRepository) *SampleStore {
	return NewSampleStore(repo, features.NewExtractor(nil), nil)
}

func TestGenerateFromHistory(t *testing.T) {
	store := newTestSampleStore(newFakeSampleRepo())
	bars := trendingBars("2330", 30, 100)

	samples, err := store.GenerateFromHistory("2330", bars, 5)
	require.NoError(t, err)

	// One sample per day that still has a bar five days ahead.
	assert.Len(t, samples, 25)
	for _, sample := range samples {
		assert.Equal(t, models.SampleSourceHistorical, sample.Source)
		assert.Equal(t, features.SchemaVersion, sample.SchemaVersion)
		// Monotonic uptrend labels every day positive.
		assert.Equal(t, 1, sample.Label)
		assert.Greater(t, sample.ActualReturn, 0.0)
	}
}

func TestGenerateFromHistoryRejectsBadHorizon(t *testing.T) {
	store := newTestSampleStore(newFakeSampleRepo())
	_, err := store.GenerateFromHistory("2330", trendingBars("2330", 10, 100), 0)
	assert.Error(t, err)
}

// TestSaveIsIdempotent tests that regenerating and saving the same window
// writes nothing new
func TestSaveIsIdempotent(t *testing.T) {
	repo := newFakeSampleRepo()
	store := newTestSampleStore(repo)
	bars := trendingBars("2330", 30, 100)

	samples, err := store.GenerateFromHistory("2330", bars, 5)
	require.NoError(t, err)

	first, err := store.Save(context.Background(), samples)
	require.NoError(t, err)
	assert.Equal(t, 25, first.Saved)
	assert.Equal(t, 0, first.Skipped)

	again, err := store.GenerateFromHistory("2330", bars, 5)
	require.NoError(t, err)
	second, err := store.Save(context.Background(), again)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Saved)
	assert.Equal(t, 25, second.Skipped)
	assert.Len(t, repo.samples, 25)
}

func TestSaveCollapsesInputDuplicates(t *testing.T) {
	repo := newFakeSampleRepo()
	store := newTestSampleStore(repo)

	samples, err := store.GenerateFromHistory("2330", trendingBars("2330", 20, 100), 5)
	require.NoError(t, err)
	doubled := append(append([]*models.TrainingSample{}, samples...), samples...)

	result, err := store.Save(context.Background(), doubled)
	require.NoError(t, err)
	assert.Equal(t, len(samples), result.Saved)
	assert.Equal(t, len(samples), result.Skipped)
}

func TestGenerateFromOutcomes(t *testing.T) {
	store := newTestSampleStore(newFakeSampleRepo())
	bars := trendingBars("2317", 40, 80)

	outcome := &models.TrackedOutcome{
		StockID:     "2317",
		TrackedDate: bars[len(bars)-1].Date,
		Observation: models.StockObservation{
			StockID: "2317",
			Date:    bars[len(bars)-1].Date,
			Bar:     bars[len(bars)-1],
		},
		History:      bars[:len(bars)-1],
		ActualReturn: -0.03,
		PredictDays:  5,
	}

	samples, err := store.GenerateFromOutcomes([]*models.TrackedOutcome{outcome})
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, models.SampleSourcePerformance, samples[0].Source)
	assert.Equal(t, 0, samples[0].Label)
	assert.Equal(t, -0.03, samples[0].ActualReturn)
}

func TestLoadBuildsAlignedMatrix(t *testing.T) {
	repo := newFakeSampleRepo()
	store := newTestSampleStore(repo)

	samples, err := store.GenerateFromHistory("2330", trendingBars("2330", 30, 100), 5)
	require.NoError(t, err)
	_, err = store.Save(context.Background(), samples)
	require.NoError(t, err)

	matrix, labels, loaded, err := store.Load(context.Background(), repository.SampleFilter{
		SchemaVersion: features.SchemaVersion,
	})
	require.NoError(t, err)
	require.Len(t, matrix, 25)
	require.Len(t, labels, 25)
	require.Len(t, loaded, 25)
	for _, row := range matrix {
		assert.Len(t, row, features.Count())
	}
}

// TestLoadFiltersMinQuality tests that low-quality rows never reach the
// training matrix
func TestLoadFiltersMinQuality(t *testing.T) {
	repo := newFakeSampleRepo()
	store := newTestSampleStore(repo)

	created := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 20; i++ {
		sample := syntheticSample("2330", i, i%2, created)
		if i < 8 {
			sample.QualityScore = 0.3
		}
		repo.samples = append(repo.samples, sample)
		repo.keys[sample.Key()] = true
	}

	matrix, labels, loaded, err := store.Load(context.Background(), repository.SampleFilter{
		MinQuality: 0.6,
	})
	require.NoError(t, err)
	require.Len(t, matrix, 12)
	require.Len(t, labels, 12)
	for _, sample := range loaded {
		assert.GreaterOrEqual(t, sample.QualityScore, 0.6)
	}
}
