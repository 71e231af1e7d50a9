package repository

import (
	"context"
	"time"

	"github.com/yourusername/stock-insight/internal/models"
)

// SampleFilter narrows a training-sample query. Quality is filtered first,
// then sources, then the limit (deterministic first-N or uniform random
// without replacement when RandomSample is set).
type SampleFilter struct {
	Sources       []models.SampleSource
	MinQuality    float64
	Limit         int
	RandomSample  bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	SchemaVersion string
}

// SampleRepository defines the interface for training-sample data access
type SampleRepository interface {
	InsertBatch(ctx context.Context, samples []*models.TrainingSample) (int, error)
	ExistingKeys(ctx context.Context, keys []string) (map[string]bool, error)
	Query(ctx context.Context, filter SampleFilter) ([]*models.TrainingSample, error)
	Stats(ctx context.Context) (*models.SampleStats, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// VersionRepository defines the interface for model-version data access
type VersionRepository interface {
	Insert(ctx context.Context, version *models.ModelVersion) error
	GetByID(ctx context.Context, versionID string) (*models.ModelVersion, error)
	GetCurrent(ctx context.Context) (*models.ModelVersion, error)
	List(ctx context.Context, limit int) ([]*models.ModelVersion, error)
	SetCurrent(ctx context.Context, versionID string) error
	Delete(ctx context.Context, versionID string) error
}

// HistoryRepository defines the interface for training-run audit rows
type HistoryRepository interface {
	Insert(ctx context.Context, record *models.TrainingHistoryRecord) error
	List(ctx context.Context, limit int) ([]*models.TrainingHistoryRecord, error)
}

// OutcomeRepository defines the interface for tracked recommendation outcomes
type OutcomeRepository interface {
	Insert(ctx context.Context, outcome *models.TrackedOutcome) error
	ListSince(ctx context.Context, since time.Time, limit int) ([]*models.TrackedOutcome, error)
}
