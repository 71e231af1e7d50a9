package models

import (
	"encoding/json"
	"time"
)

// TrainingMethod identifies how a model version was produced.
type TrainingMethod string

const (
	TrainingMethodFull        TrainingMethod = "full"
	TrainingMethodIncremental TrainingMethod = "incremental"
	TrainingMethodHybrid      TrainingMethod = "hybrid"
)

// ModelMetrics is the evaluation block persisted with every version.
type ModelMetrics struct {
	CVAccuracy    float64 `json:"cv_accuracy"`
	TestAccuracy  float64 `json:"test_accuracy"`
	TestF1        float64 `json:"test_f1"`
	TestPrecision float64 `json:"test_precision"`
	TestRecall    float64 `json:"test_recall"`
	Improvement   float64 `json:"improvement,omitempty"`
}

// FeatureImportance names one feature's share of the ensemble's splits.
type FeatureImportance struct {
	Name       string  `json:"name"`
	Importance float64 `json:"importance"`
}

// ModelVersion represents one immutable trained model artifact. Exactly one
// version is current at any time once at least one version exists.
type ModelVersion struct {
	VersionID         string              `db:"version_id" json:"version_id"`
	TrainingMethod    TrainingMethod      `db:"training_method" json:"training_method"`
	SampleCount       int                 `db:"sample_count" json:"sample_count"`
	FeatureCount      int                 `db:"feature_count" json:"feature_count"`
	PredictDays       int                 `db:"predict_days" json:"predict_days"`
	SchemaVersion     string              `db:"schema_version" json:"schema_version"`
	Metrics           ModelMetrics        `db:"metrics" json:"metrics"`
	ClassDistribution map[int]int         `db:"class_distribution" json:"class_distribution"`
	TopFeatures       []FeatureImportance `db:"top_features" json:"top_features,omitempty"`
	Hyperparameters   json.RawMessage     `db:"hyperparameters" json:"hyperparameters,omitempty"`
	ArtifactPath      string              `db:"artifact_path" json:"artifact_path"`
	IsCurrent         bool                `db:"is_current" json:"is_current"`
	BaseVersion       *string             `db:"base_version" json:"base_version,omitempty"`
	TrainedAt         time.Time           `db:"trained_at" json:"trained_at"`
	CreatedAt         time.Time           `db:"created_at" json:"created_at"`
}

// VersionComparison holds metric deltas between two versions (b minus a).
type VersionComparison struct {
	VersionA      string  `json:"version_a"`
	VersionB      string  `json:"version_b"`
	CVAccuracy    float64 `json:"cv_accuracy_delta"`
	TestAccuracy  float64 `json:"test_accuracy_delta"`
	TestF1        float64 `json:"test_f1_delta"`
	TestPrecision float64 `json:"test_precision_delta"`
	TestRecall    float64 `json:"test_recall_delta"`
	SampleCount   int     `json:"sample_count_delta"`
}
