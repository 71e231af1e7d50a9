package ml

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScalerFitTransform(t *testing.T) {
	matrix := [][]float64{
		{1, 10},
		{2, 20},
		{3, 30},
		{4, 40},
	}

	scaler := NewStandardScaler()
	scaled, err := scaler.FitTransform(matrix)
	require.NoError(t, err)
	require.Len(t, scaled, 4)

	// Each column should come out with zero mean and unit variance.
	for col := 0; col < 2; col++ {
		sum, sumSq := 0.0, 0.0
		for _, row := range scaled {
			sum += row[col]
			sumSq += row[col] * row[col]
		}
		mean := sum / 4
		variance := sumSq/4 - mean*mean
		assert.InDelta(t, 0, mean, 1e-9)
		assert.InDelta(t, 1, variance, 1e-9)
	}
}

// TestScalerConstantColumn tests that a zero-variance column does not divide
// by zero and maps to zero
func TestScalerConstantColumn(t *testing.T) {
	matrix := [][]float64{{5, 1}, {5, 2}, {5, 3}}

	scaler := NewStandardScaler()
	scaled, err := scaler.FitTransform(matrix)
	require.NoError(t, err)

	for _, row := range scaled {
		assert.Equal(t, 0.0, row[0])
	}
	assert.Equal(t, 1.0, scaler.Stds[0])
}

func TestScalerTransformRowLengthMismatch(t *testing.T) {
	scaler := NewStandardScaler()
	require.NoError(t, scaler.Fit([][]float64{{1, 2}, {3, 4}}))

	_, err := scaler.TransformRow([]float64{1})
	assert.Error(t, err)
}

func TestScalerUnfitted(t *testing.T) {
	scaler := NewStandardScaler()
	_, err := scaler.Transform([][]float64{{1, 2}})
	assert.Error(t, err)
}

func TestScalerSerializationRoundTrip(t *testing.T) {
	scaler := NewStandardScaler()
	require.NoError(t, scaler.Fit([][]float64{{1, 10}, {2, 20}, {3, 30}}))

	data, err := scaler.MarshalBinary()
	require.NoError(t, err)

	restored := NewStandardScaler()
	require.NoError(t, restored.UnmarshalBinary(data))

	row, err := scaler.TransformRow([]float64{2.5, 25})
	require.NoError(t, err)
	restoredRow, err := restored.TransformRow([]float64{2.5, 25})
	require.NoError(t, err)

	for i := range row {
		assert.True(t, math.Abs(row[i]-restoredRow[i]) < 1e-12)
	}
}
