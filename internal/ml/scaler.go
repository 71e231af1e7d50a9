package ml

import (
	"encoding/json"
	"fmt"
	"math"
)

// StandardScaler normalizes feature columns to zero mean and unit variance.
// Columns are positional and aligned to the canonical feature-name order the
// scaler was fitted with.
type StandardScaler struct {
	Means  []float64 `json:"means"`
	Stds   []float64 `json:"stds"`
	Fitted bool      `json:"fitted"`
}

// NewStandardScaler returns an unfitted scaler.
func NewStandardScaler() *StandardScaler {
	return &StandardScaler{}
}

// Fit computes per-column mean and standard deviation from the given matrix.
func (s *StandardScaler) Fit(matrix [][]float64) error {
	if len(matrix) == 0 {
		return fmt.Errorf("cannot fit scaler on empty matrix")
	}
	cols := len(matrix[0])
	s.Means = make([]float64, cols)
	s.Stds = make([]float64, cols)

	for _, row := range matrix {
		if len(row) != cols {
			return fmt.Errorf("ragged matrix: expected %d columns, got %d", cols, len(row))
		}
		for j, v := range row {
			s.Means[j] += v
		}
	}
	n := float64(len(matrix))
	for j := range s.Means {
		s.Means[j] /= n
	}
	for _, row := range matrix {
		for j, v := range row {
			d := v - s.Means[j]
			s.Stds[j] += d * d
		}
	}
	for j := range s.Stds {
		s.Stds[j] = math.Sqrt(s.Stds[j] / n)
		// Constant columns pass through unscaled.
		if s.Stds[j] == 0 {
			s.Stds[j] = 1
		}
	}
	s.Fitted = true
	return nil
}

// Transform returns a scaled copy of the matrix.
func (s *StandardScaler) Transform(matrix [][]float64) ([][]float64, error) {
	if !s.Fitted {
		return nil, fmt.Errorf("scaler is not fitted")
	}
	out := make([][]float64, len(matrix))
	for i, row := range matrix {
		scaled, err := s.TransformRow(row)
		if err != nil {
			return nil, err
		}
		out[i] = scaled
	}
	return out, nil
}

// TransformRow scales a single feature vector.
func (s *StandardScaler) TransformRow(row []float64) ([]float64, error) {
	if !s.Fitted {
		return nil, fmt.Errorf("scaler is not fitted")
	}
	if len(row) != len(s.Means) {
		return nil, fmt.Errorf("expected %d features, got %d", len(s.Means), len(row))
	}
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - s.Means[j]) / s.Stds[j]
	}
	return out, nil
}

// FitTransform fits the scaler and returns the scaled matrix.
func (s *StandardScaler) FitTransform(matrix [][]float64) ([][]float64, error) {
	if err := s.Fit(matrix); err != nil {
		return nil, err
	}
	return s.Transform(matrix)
}

// MarshalBinary serializes the fitted scaler state to JSON.
func (s *StandardScaler) MarshalBinary() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// UnmarshalBinary restores scaler state from JSON.
func (s *StandardScaler) UnmarshalBinary(data []byte) error {
	if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("failed to decode scaler state: %w", err)
	}
	if s.Fitted && len(s.Means) != len(s.Stds) {
		return fmt.Errorf("corrupt scaler state: %d means, %d stds", len(s.Means), len(s.Stds))
	}
	return nil
}
