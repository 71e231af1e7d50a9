package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/yourusername/stock-insight/internal/database"
	"github.com/yourusername/stock-insight/internal/models"
)

// PostgresVersionRepository implements VersionRepository for PostgreSQL
type PostgresVersionRepository struct {
	db *database.DB
}

// NewPostgresVersionRepository creates a new model-version repository
func NewPostgresVersionRepository(db *database.DB) VersionRepository {
	return &PostgresVersionRepository{db: db}
}

const versionColumns = `
	version_id, training_method, sample_count, feature_count, predict_days, schema_version,
	metrics, class_distribution, top_features, hyperparameters, artifact_path, is_current,
	base_version, trained_at, created_at
`

// Insert creates a new model version row
func (r *PostgresVersionRepository) Insert(ctx context.Context, version *models.ModelVersion) error {
	query := `
		INSERT INTO model_versions (` + versionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	metrics, err := json.Marshal(version.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}
	classDist, err := json.Marshal(version.ClassDistribution)
	if err != nil {
		return fmt.Errorf("failed to marshal class distribution: %w", err)
	}
	topFeatures, err := json.Marshal(version.TopFeatures)
	if err != nil {
		return fmt.Errorf("failed to marshal top features: %w", err)
	}

	_, err = r.db.GetPool().Exec(ctx, query,
		version.VersionID, version.TrainingMethod, version.SampleCount, version.FeatureCount,
		version.PredictDays, version.SchemaVersion, metrics, classDist, topFeatures,
		version.Hyperparameters, version.ArtifactPath, version.IsCurrent, version.BaseVersion,
		version.TrainedAt, version.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create model version: %w", err)
	}
	return nil
}

func scanVersion(row pgx.Row) (*models.ModelVersion, error) {
	version := &models.ModelVersion{}
	var metrics, classDist, topFeatures []byte
	err := row.Scan(
		&version.VersionID, &version.TrainingMethod, &version.SampleCount, &version.FeatureCount,
		&version.PredictDays, &version.SchemaVersion, &metrics, &classDist, &topFeatures,
		&version.Hyperparameters, &version.ArtifactPath, &version.IsCurrent, &version.BaseVersion,
		&version.TrainedAt, &version.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan model version: %w", err)
	}
	if err := json.Unmarshal(metrics, &version.Metrics); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
	}
	if len(classDist) > 0 {
		if err := json.Unmarshal(classDist, &version.ClassDistribution); err != nil {
			return nil, fmt.Errorf("failed to unmarshal class distribution: %w", err)
		}
	}
	if len(topFeatures) > 0 {
		if err := json.Unmarshal(topFeatures, &version.TopFeatures); err != nil {
			return nil, fmt.Errorf("failed to unmarshal top features: %w", err)
		}
	}
	return version, nil
}

// GetByID retrieves a model version by its version id
func (r *PostgresVersionRepository) GetByID(ctx context.Context, versionID string) (*models.ModelVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM model_versions WHERE version_id = $1`
	return scanVersion(r.db.GetPool().QueryRow(ctx, query, versionID))
}

// GetCurrent retrieves the version currently served for predictions
func (r *PostgresVersionRepository) GetCurrent(ctx context.Context) (*models.ModelVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM model_versions WHERE is_current = true`
	return scanVersion(r.db.GetPool().QueryRow(ctx, query))
}

// List returns version summaries, newest first
func (r *PostgresVersionRepository) List(ctx context.Context, limit int) ([]*models.ModelVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM model_versions ORDER BY created_at DESC, version_id DESC LIMIT $1`

	rows, err := r.db.GetPool().Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query model versions: %w", err)
	}
	defer rows.Close()

	var versions []*models.ModelVersion
	for rows.Next() {
		version, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, version)
	}
	return versions, rows.Err()
}

// SetCurrent switches the current pointer to the given version inside one
// transaction, so readers observe either the old or the new current version
func (r *PostgresVersionRepository) SetCurrent(ctx context.Context, versionID string) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, "UPDATE model_versions SET is_current = true WHERE version_id = $1", versionID)
		if err != nil {
			return fmt.Errorf("failed to activate version: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return models.ErrNotFound
		}
		_, err = tx.Exec(ctx, "UPDATE model_versions SET is_current = false WHERE version_id != $1 AND is_current = true", versionID)
		if err != nil {
			return fmt.Errorf("failed to deactivate previous version: %w", err)
		}
		return nil
	})
}

// Delete removes a version row. The service layer guards the current version.
func (r *PostgresVersionRepository) Delete(ctx context.Context, versionID string) error {
	tag, err := r.db.GetPool().Exec(ctx, "DELETE FROM model_versions WHERE version_id = $1", versionID)
	if err != nil {
		return fmt.Errorf("failed to delete model version: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
