package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yourusername/stock-insight/internal/database"
	"github.com/yourusername/stock-insight/internal/models"
)

// PostgresOutcomeRepository implements OutcomeRepository for PostgreSQL
type PostgresOutcomeRepository struct {
	db *database.DB
}

// NewPostgresOutcomeRepository creates a new tracked-outcome repository
func NewPostgresOutcomeRepository(db *database.DB) OutcomeRepository {
	return &PostgresOutcomeRepository{db: db}
}

// Insert stores one tracked recommendation outcome
func (r *PostgresOutcomeRepository) Insert(ctx context.Context, outcome *models.TrackedOutcome) error {
	query := `
		INSERT INTO tracked_outcomes
			(stock_id, tracked_date, observation, history, actual_return, predict_days, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (stock_id, tracked_date) DO NOTHING
	`

	obs, err := json.Marshal(outcome.Observation)
	if err != nil {
		return fmt.Errorf("failed to marshal observation: %w", err)
	}
	history, err := json.Marshal(outcome.History)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	_, err = r.db.GetPool().Exec(ctx, query,
		outcome.StockID, outcome.TrackedDate, obs, history,
		outcome.ActualReturn, outcome.PredictDays, outcome.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert tracked outcome: %w", err)
	}
	return nil
}

// ListSince returns outcomes tracked after the given time, oldest first
func (r *PostgresOutcomeRepository) ListSince(ctx context.Context, since time.Time, limit int) ([]*models.TrackedOutcome, error) {
	query := `
		SELECT stock_id, tracked_date, observation, history, actual_return, predict_days, created_at
		FROM tracked_outcomes
		WHERE created_at > $1
		ORDER BY tracked_date ASC
		LIMIT $2
	`

	rows, err := r.db.GetPool().Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracked outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []*models.TrackedOutcome
	for rows.Next() {
		outcome := &models.TrackedOutcome{}
		var obs, history []byte
		err := rows.Scan(
			&outcome.StockID, &outcome.TrackedDate, &obs, &history,
			&outcome.ActualReturn, &outcome.PredictDays, &outcome.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tracked outcome: %w", err)
		}
		if err := json.Unmarshal(obs, &outcome.Observation); err != nil {
			return nil, fmt.Errorf("failed to unmarshal observation: %w", err)
		}
		if len(history) > 0 {
			if err := json.Unmarshal(history, &outcome.History); err != nil {
				return nil, fmt.Errorf("failed to unmarshal history: %w", err)
			}
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, rows.Err()
}
