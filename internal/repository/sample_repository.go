package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/yourusername/stock-insight/internal/database"
	"github.com/yourusername/stock-insight/internal/models"
)

// PostgresSampleRepository implements SampleRepository for PostgreSQL
type PostgresSampleRepository struct {
	db *database.DB
}

// NewPostgresSampleRepository creates a new training-sample repository
func NewPostgresSampleRepository(db *database.DB) SampleRepository {
	return &PostgresSampleRepository{db: db}
}

// InsertBatch inserts samples inside one transaction, skipping rows whose
// (stock_id, sample_date, source) already exists. Returns the number of rows
// actually inserted; a failure rolls back the whole batch.
func (r *PostgresSampleRepository) InsertBatch(ctx context.Context, samples []*models.TrainingSample) (int, error) {
	query := `
		INSERT INTO training_samples
			(id, stock_id, sample_date, source, feature_values, feature_count, missing_count,
			 label, actual_return, quality_score, schema_version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (stock_id, sample_date, source) DO NOTHING
	`

	inserted := 0
	err := r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		for _, sample := range samples {
			values, err := json.Marshal(sample.Features.Values)
			if err != nil {
				return fmt.Errorf("failed to marshal feature values: %w", err)
			}
			tag, err := tx.Exec(ctx, query,
				sample.ID, sample.StockID, sample.SampleDate, sample.Source,
				values, sample.Features.FeatureCount, sample.Features.MissingCount,
				sample.Label, sample.ActualReturn, sample.QualityScore,
				sample.SchemaVersion, sample.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to insert sample %s: %w", sample.Key(), err)
			}
			inserted += int(tag.RowsAffected())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// ExistingKeys reports which of the given natural keys are already stored
func (r *PostgresSampleRepository) ExistingKeys(ctx context.Context, keys []string) (map[string]bool, error) {
	if len(keys) == 0 {
		return map[string]bool{}, nil
	}

	query := `
		SELECT stock_id || '|' || to_char(sample_date, 'YYYY-MM-DD') || '|' || source
		FROM training_samples
		WHERE stock_id || '|' || to_char(sample_date, 'YYYY-MM-DD') || '|' || source = ANY($1)
	`

	rows, err := r.db.GetPool().Query(ctx, query, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing sample keys: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]bool, len(keys))
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan sample key: %w", err)
		}
		existing[key] = true
	}
	return existing, rows.Err()
}

// Query loads samples matching the filter
func (r *PostgresSampleRepository) Query(ctx context.Context, filter SampleFilter) ([]*models.TrainingSample, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT id, stock_id, sample_date, source, feature_values, feature_count, missing_count,
		       label, actual_return, quality_score, schema_version, created_at
		FROM training_samples
		WHERE quality_score >= $1
	`)
	args := []interface{}{filter.MinQuality}

	if len(filter.Sources) > 0 {
		sources := make([]string, len(filter.Sources))
		for i, s := range filter.Sources {
			sources[i] = string(s)
		}
		args = append(args, sources)
		sb.WriteString(fmt.Sprintf(" AND source = ANY($%d)", len(args)))
	}
	if filter.SchemaVersion != "" {
		args = append(args, filter.SchemaVersion)
		sb.WriteString(fmt.Sprintf(" AND schema_version = $%d", len(args)))
	}
	if filter.CreatedAfter != nil {
		args = append(args, *filter.CreatedAfter)
		sb.WriteString(fmt.Sprintf(" AND created_at > $%d", len(args)))
	}
	if filter.CreatedBefore != nil {
		args = append(args, *filter.CreatedBefore)
		sb.WriteString(fmt.Sprintf(" AND created_at <= $%d", len(args)))
	}

	if filter.RandomSample {
		sb.WriteString(" ORDER BY random()")
	} else {
		sb.WriteString(" ORDER BY sample_date ASC, stock_id ASC")
	}
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		sb.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}

	rows, err := r.db.GetPool().Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var samples []*models.TrainingSample
	for rows.Next() {
		sample := &models.TrainingSample{}
		var values []byte
		err := rows.Scan(
			&sample.ID, &sample.StockID, &sample.SampleDate, &sample.Source,
			&values, &sample.Features.FeatureCount, &sample.Features.MissingCount,
			&sample.Label, &sample.ActualReturn, &sample.QualityScore,
			&sample.SchemaVersion, &sample.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		if err := json.Unmarshal(values, &sample.Features.Values); err != nil {
			return nil, fmt.Errorf("failed to unmarshal feature values: %w", err)
		}
		sample.Features.StockID = sample.StockID
		sample.Features.AsOfDate = sample.SampleDate
		sample.Features.SchemaVersion = sample.SchemaVersion
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

// Stats summarizes the stored sample population
func (r *PostgresSampleRepository) Stats(ctx context.Context) (*models.SampleStats, error) {
	stats := &models.SampleStats{
		BySource:  make(map[models.SampleSource]int),
		ByLabel:   make(map[int]int),
		ByQuality: make(map[string]int),
	}

	query := `
		SELECT source, label,
		       CASE WHEN quality_score >= 0.8 THEN 'high'
		            WHEN quality_score >= 0.5 THEN 'medium'
		            ELSE 'low' END AS band,
		       COUNT(*)
		FROM training_samples
		GROUP BY source, label, band
	`
	rows, err := r.db.GetPool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sample stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var source models.SampleSource
		var label, count int
		var band string
		if err := rows.Scan(&source, &label, &band, &count); err != nil {
			return nil, fmt.Errorf("failed to scan sample stats: %w", err)
		}
		stats.Total += count
		stats.BySource[source] += count
		stats.ByLabel[label] += count
		stats.ByQuality[band] += count
	}
	return stats, rows.Err()
}

// DeleteOlderThan removes samples with a sample date before the cutoff.
// This is the only supported deletion path for training samples.
func (r *PostgresSampleRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.GetPool().Exec(ctx, "DELETE FROM training_samples WHERE sample_date < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old samples: %w", err)
	}
	return tag.RowsAffected(), nil
}
