package service

import (
	"math"
	"time"
)

// Anomaly is one flagged point of a value series: a score, the offending
// value, and the range the detector expected. The evaluator needs nothing
// else about how the verdict was produced.
type Anomaly struct {
	Index        int
	Score        float64
	Value        float64
	ExpectedLow  float64
	ExpectedHigh float64
	At           time.Time
	Method       string
}

// Detector scores a KPI value series for outliers. The z-score implementation
// below is the in-tree strategy; external detectors plug in behind the same
// interface.
type Detector interface {
	Detect(values []float64, times []time.Time) []Anomaly
}

// ZScoreDetector flags points whose distance from the series mean exceeds
// Threshold standard deviations
type ZScoreDetector struct {
	Threshold float64
}

func NewZScoreDetector() *ZScoreDetector {
	return &ZScoreDetector{Threshold: 2.0}
}

// minimum points before a z-score is meaningful
const minDetectPoints = 5

func (d *ZScoreDetector) Detect(values []float64, times []time.Time) []Anomaly {
	if len(values) < minDetectPoints {
		return nil
	}

	mean, std := meanStd(values)
	if std == 0 {
		return nil
	}

	var anomalies []Anomaly
	for i, v := range values {
		score := math.Abs(v-mean) / std
		if score > d.Threshold {
			a := Anomaly{
				Index:        i,
				Score:        score,
				Value:        v,
				ExpectedLow:  mean - 2*std,
				ExpectedHigh: mean + 2*std,
				Method:       "z_score",
			}
			if i < len(times) {
				a.At = times[i]
			}
			anomalies = append(anomalies, a)
		}
	}
	return anomalies
}

func meanStd(values []float64) (float64, float64) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))

	return mean, math.Sqrt(variance)
}
