package models

import (
	"time"

	"github.com/google/uuid"
)

// SampleSource identifies where a training sample came from.
type SampleSource string

const (
	// SampleSourceHistorical marks samples derived from historical price replay.
	SampleSourceHistorical SampleSource = "historical"
	// SampleSourcePerformance marks samples derived from tracked recommendation outcomes.
	SampleSourcePerformance SampleSource = "performance"
)

// TrainingSample is one labeled feature vector. Samples are written once and
// never mutated; at most one sample exists per (stock_id, sample_date, source).
type TrainingSample struct {
	ID            uuid.UUID     `db:"id" json:"id"`
	StockID       string        `db:"stock_id" json:"stock_id"`
	SampleDate    time.Time     `db:"sample_date" json:"sample_date"`
	Source        SampleSource  `db:"source" json:"source"`
	Features      FeatureVector `db:"features" json:"features"`
	Label         int           `db:"label" json:"label"`
	ActualReturn  float64       `db:"actual_return" json:"actual_return"`
	QualityScore  float64       `db:"quality_score" json:"quality_score"`
	SchemaVersion string        `db:"schema_version" json:"schema_version"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
}

// Key returns the natural uniqueness key of the sample.
func (s *TrainingSample) Key() string {
	return s.StockID + "|" + s.SampleDate.UTC().Format("2006-01-02") + "|" + string(s.Source)
}

// SampleStats summarizes the stored sample population.
type SampleStats struct {
	Total     int                  `json:"total"`
	BySource  map[SampleSource]int `json:"by_source"`
	ByLabel   map[int]int          `json:"by_label"`
	ByQuality map[string]int       `json:"by_quality"`
}
