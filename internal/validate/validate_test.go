package validate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ripefield/quality-cli/internal/config"
	"github.com/ripefield/quality-cli/internal/model"
)

func testEngine() *Engine {
	return NewEngine(config.AnomalyConfig{
		WarningZ:  2.0,
		EscalateZ: 3.0,
		CriticalZ: 4.0,

		StdDevBrix:    1.5,
		StdDevOmega:   2.5,
		StdDevCupping: 2.0,
	})
}

func TestCheckClampsOutOfRange(t *testing.T) {
	e := testEngine()

	tests := []struct {
		name      string
		value     float64
		wantValue float64
		clamped   bool
	}{
		{"below minimum", -3.0, 0.0, true},
		{"above maximum", 42.0, 30.0, true},
		{"in range untouched", 12.5, 12.5, false},
		{"exactly at bound", 30.0, 30.0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Check(MeasurementCheck{Metric: model.MetricBrix, Value: tt.value, Min: 0, Max: 30})
			assert.True(t, res.Valid())
			assert.Equal(t, tt.wantValue, res.ClampedValue)
			assert.Equal(t, tt.clamped, res.WasClamped)
			if tt.clamped {
				assert.NotEmpty(t, res.Warnings)
			} else {
				assert.Empty(t, res.Warnings)
			}
		})
	}
}

func TestCheckNonFiniteIsError(t *testing.T) {
	e := testEngine()

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		res := e.Check(MeasurementCheck{Metric: model.MetricBrix, Value: v, Min: 0, Max: 30})
		assert.False(t, res.Valid())
	}
}

func TestCheckAgeTimingPlausibility(t *testing.T) {
	e := testEngine()

	// A two-year-old planting reporting near-peak heat accumulation.
	res := e.Check(MeasurementCheck{
		Metric: model.MetricBrix, Value: 12, Min: 0, Max: 30,
		AgeYears: 2, HasAge: true, MinBearingAge: 4,
		HeatUnits: 2300, HasHeatUnits: true, PeakHeatUnits: 2400,
	})
	assert.True(t, res.Valid())
	assert.NotEmpty(t, res.Warnings)

	// Same planting early in the season is plausible.
	res = e.Check(MeasurementCheck{
		Metric: model.MetricBrix, Value: 12, Min: 0, Max: 30,
		AgeYears: 2, HasAge: true, MinBearingAge: 4,
		HeatUnits: 800, HasHeatUnits: true, PeakHeatUnits: 2400,
	})
	assert.Empty(t, res.Warnings)
}

func TestClassifyThresholds(t *testing.T) {
	e := testEngine()

	tests := []struct {
		name      string
		actual    float64
		predicted float64
		want      model.AnomalyLevel
	}{
		{"no anomaly", 12.5, 12.0, model.AnomalyNone},
		{"warning at 2 sigma", 15.0, 12.0, model.AnomalyWarning},     // z = 2.0
		{"escalate at 3 sigma", 16.5, 12.0, model.AnomalyEscalate},   // z = 3.0
		{"critical at 4 sigma", 18.0, 12.0, model.AnomalyCritical},   // z = 4.0
		{"negative direction too", 6.0, 12.0, model.AnomalyCritical}, // z = -4.0
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, z, reason := e.Classify(model.MetricBrix, tt.actual, tt.predicted)
			assert.Equal(t, tt.want, level)
			if tt.want != model.AnomalyNone {
				assert.NotEmpty(t, reason)
			}
			assert.InDelta(t, (tt.actual-tt.predicted)/1.5, z, 1e-9)
		})
	}
}

func TestClassifyUsesPerMetricStdDev(t *testing.T) {
	e := testEngine()

	// A 5-point deviation: 3.3 sigma for brix (sd 1.5), 2 sigma for the
	// omega ratio (sd 2.5).
	level, _, _ := e.Classify(model.MetricBrix, 17.0, 12.0)
	assert.Equal(t, model.AnomalyEscalate, level)

	level, _, _ = e.Classify(model.MetricOmegaRatio, 17.0, 12.0)
	assert.Equal(t, model.AnomalyWarning, level)
}

func TestClassifyUnknownMetric(t *testing.T) {
	e := testEngine()

	level, z, reason := e.Classify(model.MetricType("unknown"), 100, 0)
	assert.Equal(t, model.AnomalyNone, level)
	assert.Zero(t, z)
	assert.Empty(t, reason)
}

func TestExpectedStdDev(t *testing.T) {
	e := testEngine()

	assert.Equal(t, 1.5, e.ExpectedStdDev(model.MetricBrix))
	assert.Equal(t, 2.5, e.ExpectedStdDev(model.MetricOmegaRatio))
	assert.Equal(t, 2.0, e.ExpectedStdDev(model.MetricCupping))
	assert.Zero(t, e.ExpectedStdDev(model.MetricAcidPct))
}
