package ml

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PredictionsTotal tracks predictions by serving path and outcome band.
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stock_insight",
			Name:      "ml_predictions_total",
			Help:      "Total number of predictions served",
		},
		[]string{"path", "prediction"}, // path: model, rules, cache
	)

	// PredictionLatency tracks prediction latency by serving path.
	PredictionLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stock_insight",
			Name:      "ml_prediction_latency_seconds",
			Help:      "Prediction latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	// TrainingRunsTotal tracks training runs by method and status.
	TrainingRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stock_insight",
			Name:      "ml_training_runs_total",
			Help:      "Total number of training runs",
		},
		[]string{"method", "status"},
	)

	// TrainingDuration tracks training run duration by method.
	TrainingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stock_insight",
			Name:      "ml_training_duration_seconds",
			Help:      "Training run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 300, 600, 1800},
		},
		[]string{"method"},
	)

	// TrainerStateGauge exposes the active trainer phase as a one-hot gauge.
	TrainerStateGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "stock_insight",
			Name:      "ml_trainer_state",
			Help:      "Current trainer state (1 for the active state)",
		},
		[]string{"state"},
	)

	// SamplesSavedTotal tracks persisted training samples by source.
	SamplesSavedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stock_insight",
			Name:      "ml_samples_saved_total",
			Help:      "Total number of training samples persisted",
		},
		[]string{"source"},
	)

	// CurrentModelAccuracy exposes the active model's test accuracy.
	CurrentModelAccuracy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "stock_insight",
			Name:      "ml_current_model_test_accuracy",
			Help:      "Held-out test accuracy of the current model version",
		},
	)
)

var trainerStates = []TrainerState{
	StateIdle, StatePreparingData, StateTraining,
	StateEvaluating, StatePersisting, StateDone, StateFailed,
}

func recordTrainerState(state TrainerState) {
	for _, s := range trainerStates {
		value := 0.0
		if s == state {
			value = 1.0
		}
		TrainerStateGauge.WithLabelValues(string(s)).Set(value)
	}
}

func recordTrainingRun(method string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	TrainingRunsTotal.WithLabelValues(method, status).Inc()
	TrainingDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func recordPrediction(path, prediction string, duration time.Duration) {
	PredictionsTotal.WithLabelValues(path, prediction).Inc()
	PredictionLatency.WithLabelValues(path).Observe(duration.Seconds())
}
