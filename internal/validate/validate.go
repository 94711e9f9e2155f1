// Package validate performs structural validation of raw measurements,
// physical-range clamping, and z-score anomaly classification against
// predicted values.
package validate

import (
	"fmt"
	"math"

	"github.com/ripefield/quality-cli/internal/config"
	"github.com/ripefield/quality-cli/internal/model"
)

// Engine classifies measurements against physical bounds and statistical
// anomaly thresholds. Stateless and safe for concurrent use.
type Engine struct {
	cfg config.AnomalyConfig
}

// NewEngine creates a validation engine with the given anomaly config.
func NewEngine(cfg config.AnomalyConfig) *Engine {
	return &Engine{cfg: cfg}
}

// MeasurementCheck carries everything needed to validate one measurement.
type MeasurementCheck struct {
	Metric model.MetricType
	Value  float64

	// Physical bounds for the metric.
	Min float64
	Max float64

	// Cross-field plausibility inputs.
	AgeYears      float64
	HasAge        bool
	MinBearingAge float64
	HeatUnits     float64
	HasHeatUnits  bool
	PeakHeatUnits float64
}

// Check validates a supplied actual measurement. Values outside physical
// bounds are clamped rather than rejected, with the clamp surfaced as a
// warning. Structural problems (non-finite values) are errors.
func (e *Engine) Check(mc MeasurementCheck) model.ValidationResult {
	res := model.ValidationResult{ClampedValue: mc.Value}

	if math.IsNaN(mc.Value) || math.IsInf(mc.Value, 0) {
		res.Errors = append(res.Errors, fmt.Sprintf("%s measurement is not a finite number", mc.Metric))
		res.ClampedValue = 0
		return res
	}

	if mc.Value < mc.Min {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("%s measurement %.2f below physical minimum %.2f, clamped", mc.Metric, mc.Value, mc.Min))
		res.ClampedValue = mc.Min
		res.WasClamped = true
	} else if mc.Value > mc.Max {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("%s measurement %.2f above physical maximum %.2f, clamped", mc.Metric, mc.Value, mc.Max))
		res.ClampedValue = mc.Max
		res.WasClamped = true
	}

	// Cross-field plausibility: a planting younger than its bearing age
	// should not be reporting near-peak heat accumulation.
	if mc.HasAge && mc.HasHeatUnits && mc.MinBearingAge > 0 && mc.PeakHeatUnits > 0 {
		if mc.AgeYears < mc.MinBearingAge && mc.HeatUnits >= 0.9*mc.PeakHeatUnits {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("age %.1f below bearing age %.1f yet heat units near peak, timing suspect",
					mc.AgeYears, mc.MinBearingAge))
		}
	}

	return res
}

// Classify computes the anomaly z-score of (actual - predicted) against the
// metric's fixed expected standard deviation and classifies it using the
// three ascending thresholds. Both directions trigger (absolute value).
func (e *Engine) Classify(metric model.MetricType, actual, predicted float64) (model.AnomalyLevel, float64, string) {
	sd := e.ExpectedStdDev(metric)
	if sd <= 0 {
		return model.AnomalyNone, 0, ""
	}

	z := (actual - predicted) / sd
	abs := math.Abs(z)

	switch {
	case abs >= e.cfg.CriticalZ:
		return model.AnomalyCritical, z,
			fmt.Sprintf("measurement deviates %.1f standard deviations from prediction", abs)
	case abs >= e.cfg.EscalateZ:
		return model.AnomalyEscalate, z,
			fmt.Sprintf("measurement deviates %.1f standard deviations from prediction", abs)
	case abs >= e.cfg.WarningZ:
		return model.AnomalyWarning, z,
			fmt.Sprintf("measurement deviates %.1f standard deviations from prediction", abs)
	}
	return model.AnomalyNone, z, ""
}

// ExpectedStdDev returns the fixed per-metric expected standard deviation.
func (e *Engine) ExpectedStdDev(metric model.MetricType) float64 {
	switch metric {
	case model.MetricBrix:
		return e.cfg.StdDevBrix
	case model.MetricOmegaRatio:
		return e.cfg.StdDevOmega
	case model.MetricCupping:
		return e.cfg.StdDevCupping
	default:
		return 0
	}
}
