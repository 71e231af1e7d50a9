package models

import (
	"time"

	"github.com/google/uuid"
)

// TrainingHistoryRecord is an append-only audit row describing one training
// run. Exactly one record exists per persisted ModelVersion; both are written
// together.
type TrainingHistoryRecord struct {
	ID              uuid.UUID      `db:"id" json:"id"`
	VersionID       string         `db:"version_id" json:"version_id"`
	TrainingMethod  TrainingMethod `db:"training_method" json:"training_method"`
	DataSources     []SampleSource `db:"data_sources" json:"data_sources"`
	TotalSamples    int            `db:"total_samples" json:"total_samples"`
	AddedSamples    int            `db:"added_samples" json:"added_samples"`
	RejectedSamples int            `db:"rejected_samples" json:"rejected_samples"`
	Improvement     float64        `db:"improvement" json:"improvement"`
	Duration        time.Duration  `db:"duration" json:"duration"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
}
