package ml

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/stock-insight/internal/models"
	"github.com/yourusername/stock-insight/internal/repository"
)

// Manager is the single entry point for model lifecycle operations. HTTP or
// CLI surfaces call it rather than the trainer and stores directly.
type Manager struct {
	trainer  *Trainer
	samples  *SampleStore
	versions *VersionStore
	history  repository.HistoryRepository
	outcomes repository.OutcomeRepository
	logger   *logrus.Logger
}

// NewManager creates a training manager.
func NewManager(trainer *Trainer, samples *SampleStore, versions *VersionStore, history repository.HistoryRepository, outcomes repository.OutcomeRepository, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	return &Manager{
		trainer:  trainer,
		samples:  samples,
		versions: versions,
		history:  history,
		outcomes: outcomes,
		logger:   logger,
	}
}

// IngestOutcomes converts tracked recommendation outcomes recorded after
// since into performance samples and saves them. Re-running over the same
// window is safe; previously saved samples are skipped.
func (m *Manager) IngestOutcomes(ctx context.Context, since time.Time, limit int) (*SaveResult, error) {
	outcomes, err := m.outcomes.ListSince(ctx, since, limit)
	if err != nil {
		return nil, err
	}
	if len(outcomes) == 0 {
		return &SaveResult{}, nil
	}

	samples, err := m.samples.GenerateFromOutcomes(outcomes)
	if err != nil {
		return nil, err
	}
	result, err := m.samples.Save(ctx, samples)
	if err != nil {
		return nil, err
	}
	m.logger.WithFields(logrus.Fields{
		"outcomes": len(outcomes),
		"saved":    result.Saved,
		"skipped":  result.Skipped,
	}).Info("Tracked outcomes ingested as performance samples")
	return result, nil
}

// TrainFull runs a full training pass over all qualifying samples.
func (m *Manager) TrainFull(ctx context.Context, minSamples int, sources []models.SampleSource) (*TrainResult, error) {
	return m.trainer.TrainFull(ctx, FullOptions{MinSamples: minSamples, Sources: sources})
}

// TrainIncremental continues the base (or current) model on new samples.
func (m *Manager) TrainIncremental(ctx context.Context, source models.SampleSource, replayRatio float64, baseVersion string, minNewSamples int) (*TrainResult, error) {
	return m.trainer.TrainIncremental(ctx, IncrementalOptions{
		Source:        source,
		BaseVersion:   baseVersion,
		MinNewSamples: minNewSamples,
		ReplayRatio:   replayRatio,
	})
}

// TrainHybrid trains fresh on the union of historical and performance samples.
func (m *Manager) TrainHybrid(ctx context.Context, minSamples int) (*TrainResult, error) {
	return m.trainer.TrainHybrid(ctx, minSamples)
}

// TrainerState reports the phase of any run in progress.
func (m *Manager) TrainerState() TrainerState {
	return m.trainer.State()
}

// ListVersions returns version summaries, newest first.
func (m *Manager) ListVersions(ctx context.Context, limit int) ([]*models.ModelVersion, error) {
	return m.versions.List(ctx, limit)
}

// GetVersion returns one version's catalog row.
func (m *Manager) GetVersion(ctx context.Context, versionID string) (*models.ModelVersion, error) {
	return m.versions.Get(ctx, versionID)
}

// ActivateVersion switches serving to the given version.
func (m *Manager) ActivateVersion(ctx context.Context, versionID string) error {
	return m.versions.SetCurrent(ctx, versionID)
}

// DeleteVersion removes a non-current version and its artifacts.
func (m *Manager) DeleteVersion(ctx context.Context, versionID string) error {
	return m.versions.Delete(ctx, versionID)
}

// CompareVersions returns metric deltas of b relative to a.
func (m *Manager) CompareVersions(ctx context.Context, versionA, versionB string) (*models.VersionComparison, error) {
	return m.versions.Compare(ctx, versionA, versionB)
}

// TrainingStats aggregates the sample population, the current version and
// recent training runs.
type TrainingStats struct {
	Samples        *models.SampleStats             `json:"samples"`
	CurrentVersion *models.ModelVersion            `json:"current_version,omitempty"`
	RecentRuns     []*models.TrainingHistoryRecord `json:"recent_runs"`
	TrainerState   TrainerState                    `json:"trainer_state"`
}

// Stats returns the aggregated training statistics view.
func (m *Manager) Stats(ctx context.Context) (*TrainingStats, error) {
	sampleStats, err := m.samples.Stats(ctx)
	if err != nil {
		return nil, err
	}
	stats := &TrainingStats{
		Samples:      sampleStats,
		TrainerState: m.trainer.State(),
	}

	current, err := m.versions.Current(ctx)
	if err == nil {
		stats.CurrentVersion = current
	}

	runs, err := m.history.List(ctx, 10)
	if err != nil {
		return nil, err
	}
	stats.RecentRuns = runs
	return stats, nil
}
