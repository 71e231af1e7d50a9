package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/yourusername/stock-insight/internal/database"
	"github.com/yourusername/stock-insight/internal/models"
)

// PostgresHistoryRepository implements HistoryRepository for PostgreSQL
type PostgresHistoryRepository struct {
	db *database.DB
}

// NewPostgresHistoryRepository creates a new training-history repository
func NewPostgresHistoryRepository(db *database.DB) HistoryRepository {
	return &PostgresHistoryRepository{db: db}
}

// Insert appends one training-run audit row
func (r *PostgresHistoryRepository) Insert(ctx context.Context, record *models.TrainingHistoryRecord) error {
	query := `
		INSERT INTO training_history
			(id, version_id, training_method, data_sources, total_samples, added_samples,
			 rejected_samples, improvement, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	sources := make([]string, len(record.DataSources))
	for i, s := range record.DataSources {
		sources[i] = string(s)
	}

	_, err := r.db.GetPool().Exec(ctx, query,
		record.ID, record.VersionID, record.TrainingMethod, sources,
		record.TotalSamples, record.AddedSamples, record.RejectedSamples,
		record.Improvement, record.Duration.Milliseconds(), record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert training history: %w", err)
	}
	return nil
}

// List returns training-run audit rows, newest first
func (r *PostgresHistoryRepository) List(ctx context.Context, limit int) ([]*models.TrainingHistoryRecord, error) {
	query := `
		SELECT id, version_id, training_method, data_sources, total_samples, added_samples,
		       rejected_samples, improvement, duration_ms, created_at
		FROM training_history
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.GetPool().Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query training history: %w", err)
	}
	defer rows.Close()

	var records []*models.TrainingHistoryRecord
	for rows.Next() {
		record := &models.TrainingHistoryRecord{}
		var sources []string
		var durationMs int64
		err := rows.Scan(
			&record.ID, &record.VersionID, &record.TrainingMethod, &sources,
			&record.TotalSamples, &record.AddedSamples, &record.RejectedSamples,
			&record.Improvement, &durationMs, &record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan training history: %w", err)
		}
		record.Duration = time.Duration(durationMs) * time.Millisecond
		record.DataSources = make([]models.SampleSource, len(sources))
		for i, s := range sources {
			record.DataSources[i] = models.SampleSource(s)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
