package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/yourusername/stock-insight/internal/ml"
	"github.com/yourusername/stock-insight/internal/models"
)

// fakeRetrainer records which training entry points a run touched.
type fakeRetrainer struct {
	incrementalErr error
	fullErr        error

	incrementalCalls int
	fullCalls        int
}

func (f *fakeRetrainer) TrainIncremental(ctx context.Context, source models.SampleSource, replayRatio float64, baseVersion string, minNewSamples int) (*ml.TrainResult, error) {
	f.incrementalCalls++
	if f.incrementalErr != nil {
		return nil, f.incrementalErr
	}
	return &ml.TrainResult{Version: &models.ModelVersion{VersionID: "v-incremental"}}, nil
}

func (f *fakeRetrainer) TrainFull(ctx context.Context, minSamples int, sources []models.SampleSource) (*ml.TrainResult, error) {
	f.fullCalls++
	if f.fullErr != nil {
		return nil, f.fullErr
	}
	return &ml.TrainResult{Version: &models.ModelVersion{VersionID: "v-full"}}, nil
}

func newTestScheduler(retrainer Retrainer) *Scheduler {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewScheduler(retrainer, logger)
}

func TestRunRetrainingIncrementalSuccess(t *testing.T) {
	retrainer := &fakeRetrainer{}
	scheduler := newTestScheduler(retrainer)

	scheduler.runRetraining(context.Background(), models.SampleSourcePerformance)

	assert.Equal(t, 1, retrainer.incrementalCalls)
	assert.Equal(t, 0, retrainer.fullCalls)
}

// TestRunRetrainingFallsBackToFull tests that too few new samples for an
// incremental run triggers a full run over the whole corpus
func TestRunRetrainingFallsBackToFull(t *testing.T) {
	retrainer := &fakeRetrainer{
		incrementalErr: &ml.InsufficientDataError{Op: "incremental training", Required: 50, Available: 3},
	}
	scheduler := newTestScheduler(retrainer)

	scheduler.runRetraining(context.Background(), models.SampleSourcePerformance)

	assert.Equal(t, 1, retrainer.incrementalCalls)
	assert.Equal(t, 1, retrainer.fullCalls)
}

func TestRunRetrainingSkipsWhenCorpusTooSmall(t *testing.T) {
	retrainer := &fakeRetrainer{
		incrementalErr: &ml.InsufficientDataError{Op: "incremental training", Required: 50, Available: 3},
		fullErr:        &ml.InsufficientDataError{Op: "full training", Required: 1000, Available: 120},
	}
	scheduler := newTestScheduler(retrainer)

	// Both gates failing is a quiet skip, not a crash.
	scheduler.runRetraining(context.Background(), models.SampleSourcePerformance)

	assert.Equal(t, 1, retrainer.incrementalCalls)
	assert.Equal(t, 1, retrainer.fullCalls)
}

// TestRunRetrainingNoFallbackOnHardError tests that only the data gate
// triggers the fallback, not infrastructure failures
func TestRunRetrainingNoFallbackOnHardError(t *testing.T) {
	retrainer := &fakeRetrainer{incrementalErr: errors.New("database unavailable")}
	scheduler := newTestScheduler(retrainer)

	scheduler.runRetraining(context.Background(), models.SampleSourcePerformance)

	assert.Equal(t, 1, retrainer.incrementalCalls)
	assert.Equal(t, 0, retrainer.fullCalls)
}
