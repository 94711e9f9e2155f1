package confidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripefield/quality-cli/internal/model"
)

func TestScoreFullEvidence(t *testing.T) {
	score, factors := Score(Evidence{
		IdentityKnown:   true,
		SubLineageKnown: true,
		TimingComplete:  true,
		AgeKnown:        true,
		DataQuality:     1.0,
		Source:          model.SourceLab,
	})

	// 0.8 + 0.1 + 0.05 + 0.1 + 0.05 + 0.1 + 0.05 = 1.25 clamps to 0.99.
	assert.Equal(t, 0.99, score)
	assert.Len(t, factors, 8)
}

func TestScoreMinimalEvidenceClampsLow(t *testing.T) {
	score, _ := Score(Evidence{
		ValidationErrors: 5,
		DataQuality:      0.0,
		Source:           model.SourceConsumer,
	})
	assert.Equal(t, 0.1, score)
}

func TestScoreFactorOrderStable(t *testing.T) {
	wantOrder := []string{"base", "identity", "sub_lineage", "timing", "age", "validation_errors", "data_quality", "source"}

	for _, ev := range []Evidence{
		{},
		{IdentityKnown: true, TimingComplete: true, DataQuality: 0.5},
		{ValidationErrors: 2, Source: model.SourceLab},
	} {
		_, factors := Score(ev)
		require.Len(t, factors, len(wantOrder))
		for i, f := range factors {
			assert.Equal(t, wantOrder[i], f.Name)
		}
	}
}

func TestScoreZeroImpactFactorsRetained(t *testing.T) {
	_, factors := Score(Evidence{DataQuality: 0.5, Source: model.SourceFarm})

	byName := map[string]model.ConfidenceFactor{}
	for _, f := range factors {
		byName[f.Name] = f
	}
	assert.Zero(t, byName["sub_lineage"].Impact)
	assert.Zero(t, byName["age"].Impact)
	assert.Zero(t, byName["validation_errors"].Impact)
	assert.Zero(t, byName["data_quality"].Impact)
	assert.Zero(t, byName["source"].Impact)
}

func TestScoreKnownCombination(t *testing.T) {
	score, _ := Score(Evidence{
		IdentityKnown:  true,
		TimingComplete: true,
		DataQuality:    0.5,
	})
	// 0.8 + 0.1 + 0.1 = 1.0 clamps to 0.99.
	assert.Equal(t, 0.99, score)

	score, _ = Score(Evidence{
		IdentityKnown:    true,
		TimingComplete:   true,
		ValidationErrors: 2,
		DataQuality:      0.5,
	})
	// 1.0 - 0.2 = 0.8.
	assert.InDelta(t, 0.8, score, 1e-9)
}

func TestDataQuality(t *testing.T) {
	tests := []struct {
		name string
		in   model.PredictionInput
		want float64
	}{
		{"empty input", model.PredictionInput{}, 0},
		{
			"identity only",
			model.PredictionInput{IdentityCode: "valencia"},
			1.0 / 6.0,
		},
		{
			"claims count as evidence",
			model.PredictionInput{Claims: []string{"organic"}},
			1.0 / 6.0,
		},
		{
			"everything present",
			model.PredictionInput{
				IdentityCode:     "valencia",
				SubLineageCode:   "carrizo",
				RegionID:         "central-valley",
				HeatUnits:        2400,
				HasHeatUnits:     true,
				AgeYears:         8,
				HasAge:           true,
				MeasuredValue:    12.1,
				HasMeasuredValue: true,
			},
			1.0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, DataQuality(tt.in), 1e-9)
		})
	}
}
