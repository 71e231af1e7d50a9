package models

import "time"

// Prediction direction labels.
const (
	PredictionUp      = "up"
	PredictionDown    = "down"
	PredictionNeutral = "neutral"
)

// Confidence bands derived from distance of probability from 0.5.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// PredictionResult is the outcome of scoring one stock.
type PredictionResult struct {
	StockID        string    `json:"stock_id"`
	Prediction     string    `json:"prediction"`
	Probability    float64   `json:"probability"`
	Confidence     string    `json:"confidence"`
	ExpectedReturn float64   `json:"expected_return"`
	ModelVersion   string    `json:"model_version"`
	FeaturesUsed   int       `json:"features_used"`
	PredictedAt    time.Time `json:"predicted_at"`
}

// TrackedOutcome records how a past recommendation actually played out. These
// feed the performance-sourced training path.
type TrackedOutcome struct {
	StockID      string           `db:"stock_id" json:"stock_id"`
	TrackedDate  time.Time        `db:"tracked_date" json:"tracked_date"`
	Observation  StockObservation `db:"observation" json:"observation"`
	History      []DailyBar       `db:"history" json:"history"`
	ActualReturn float64          `db:"actual_return" json:"actual_return"`
	PredictDays  int              `db:"predict_days" json:"predict_days"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
}
