package service

import (
	"math"
	"sort"
	"time"

	"base44/internal/model"
)

// ForecastPoint is one day of a point forecast with bounds
type ForecastPoint struct {
	Date       time.Time `json:"date"`
	Forecast   float64   `json:"forecast"`
	LowerBound float64   `json:"lower_bound"`
	UpperBound float64   `json:"upper_bound"`
	Confidence float64   `json:"confidence"`
}

// Forecaster produces a horizon-day forecast over a KPI value series and
// names the model that produced it. The trend implementation below is the
// in-tree strategy; a Prophet-style external service plugs in behind the same
// interface.
type Forecaster interface {
	Forecast(series []model.KPIValue, horizon int) ([]ForecastPoint, string)
}

// TrendForecaster fits a least-squares line through the series and projects
// it forward, with bounds from the residual spread. Short histories fall back
// to a flat baseline.
type TrendForecaster struct{}

func NewTrendForecaster() *TrendForecaster {
	return &TrendForecaster{}
}

const forecastConfidence = 0.95

func (f *TrendForecaster) Forecast(series []model.KPIValue, horizon int) ([]ForecastPoint, string) {
	if horizon <= 0 {
		horizon = 30
	}

	sorted := make([]model.KPIValue, len(series))
	copy(sorted, series)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	if len(sorted) < 2 {
		return flatForecast(sorted, horizon), "flat_baseline"
	}

	values := make([]float64, len(sorted))
	for i, kv := range sorted {
		values[i] = kv.Value
	}

	slope, intercept := linearFit(values)

	// residual spread around the fitted line sets the bounds
	var ss float64
	for i, v := range values {
		r := v - (intercept + slope*float64(i))
		ss += r * r
	}
	sigma := math.Sqrt(ss / float64(len(values)))
	margin := 1.96 * sigma
	if margin == 0 {
		margin = math.Abs(values[len(values)-1]) * 0.05
	}

	lastDate := sorted[len(sorted)-1].Timestamp
	n := float64(len(values))

	points := make([]ForecastPoint, 0, horizon)
	for i := 1; i <= horizon; i++ {
		predicted := intercept + slope*(n-1+float64(i))
		points = append(points, ForecastPoint{
			Date:       lastDate.AddDate(0, 0, i),
			Forecast:   round2(predicted),
			LowerBound: round2(predicted - margin),
			UpperBound: round2(predicted + margin),
			Confidence: forecastConfidence,
		})
	}
	return points, "linear_trend"
}

// flatForecast projects the last known value (or a neutral baseline when the
// series is empty) across the horizon
func flatForecast(sorted []model.KPIValue, horizon int) []ForecastPoint {
	value := defaultBaseline
	lastDate := time.Now().UTC()
	if len(sorted) > 0 {
		value = sorted[len(sorted)-1].Value
		lastDate = sorted[len(sorted)-1].Timestamp
	}

	margin := math.Abs(value) * 0.1

	points := make([]ForecastPoint, 0, horizon)
	for i := 1; i <= horizon; i++ {
		points = append(points, ForecastPoint{
			Date:       lastDate.AddDate(0, 0, i),
			Forecast:   round2(value),
			LowerBound: round2(value - margin),
			UpperBound: round2(value + margin),
			Confidence: forecastConfidence,
		})
	}
	return points
}

// linearFit returns slope and intercept of the least-squares line through
// (0..n-1, values)
func linearFit(values []float64) (float64, float64) {
	n := float64(len(values))
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / n
	}
	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n
	return slope, intercept
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
