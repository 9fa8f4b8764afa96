package service

import (
	"testing"
	"time"

	"base44/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForecastLinearTrend(t *testing.T) {
	f := NewTrendForecaster()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// a clean upward line: 10, 12, 14, ...
	var series []model.KPIValue
	for i := 0; i < 10; i++ {
		series = append(series, model.KPIValue{
			Value:     10 + float64(i)*2,
			Timestamp: base.AddDate(0, 0, i),
		})
	}

	points, modelName := f.Forecast(series, 7)
	assert.Equal(t, "linear_trend", modelName)
	require.Len(t, points, 7)

	last := series[len(series)-1]
	assert.Equal(t, last.Timestamp.AddDate(0, 0, 1), points[0].Date)
	assert.Equal(t, last.Timestamp.AddDate(0, 0, 7), points[6].Date)

	// the projection continues the slope
	assert.InDelta(t, 30.0, points[0].Forecast, 0.01)
	assert.InDelta(t, 42.0, points[6].Forecast, 0.01)

	for _, p := range points {
		assert.LessOrEqual(t, p.LowerBound, p.Forecast)
		assert.GreaterOrEqual(t, p.UpperBound, p.Forecast)
		assert.Equal(t, forecastConfidence, p.Confidence)
	}
}

func TestForecastHandlesUnsortedSeries(t *testing.T) {
	f := NewTrendForecaster()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	series := []model.KPIValue{
		{Value: 14, Timestamp: base.AddDate(0, 0, 2)},
		{Value: 10, Timestamp: base},
		{Value: 12, Timestamp: base.AddDate(0, 0, 1)},
	}

	points, _ := f.Forecast(series, 3)
	require.Len(t, points, 3)
	assert.Equal(t, base.AddDate(0, 0, 3), points[0].Date)
	assert.InDelta(t, 16.0, points[0].Forecast, 0.01)
}

func TestForecastShortSeriesFallsBackToFlat(t *testing.T) {
	f := NewTrendForecaster()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	series := []model.KPIValue{{Value: 40, Timestamp: base}}
	points, modelName := f.Forecast(series, 5)

	assert.Equal(t, "flat_baseline", modelName)
	require.Len(t, points, 5)
	for _, p := range points {
		assert.Equal(t, 40.0, p.Forecast)
		assert.Equal(t, 36.0, p.LowerBound)
		assert.Equal(t, 44.0, p.UpperBound)
	}
}

func TestForecastEmptySeries(t *testing.T) {
	f := NewTrendForecaster()

	points, modelName := f.Forecast(nil, 3)
	assert.Equal(t, "flat_baseline", modelName)
	require.Len(t, points, 3)
	assert.Equal(t, defaultBaseline, points[0].Forecast)
}

func TestForecastDefaultHorizon(t *testing.T) {
	f := NewTrendForecaster()
	points, _ := f.Forecast(nil, 0)
	assert.Len(t, points, 30)
}
