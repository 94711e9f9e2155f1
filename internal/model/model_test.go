package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverityRank(t *testing.T) {
	assert.Equal(t, 0, SeverityLow.Rank())
	assert.Equal(t, 1, SeverityMedium.Rank())
	assert.Equal(t, 2, SeverityHigh.Rank())
	assert.Equal(t, 3, SeverityCritical.Rank())
	assert.Equal(t, 0, Severity("bogus").Rank())
}

func TestMaxSeverity(t *testing.T) {
	tests := []struct {
		a, b, want Severity
	}{
		{SeverityLow, SeverityHigh, SeverityHigh},
		{SeverityCritical, SeverityMedium, SeverityCritical},
		{SeverityMedium, SeverityMedium, SeverityMedium},
		{Severity(""), SeverityLow, Severity("")},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MaxSeverity(tt.a, tt.b))
	}
}

func TestExceptionStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusInReview.Terminal())
	assert.True(t, StatusApproved.Terminal())
	assert.True(t, StatusRejected.Terminal())
	assert.True(t, StatusEscalated.Terminal())
	assert.True(t, StatusAutoResolved.Terminal())
}

func TestTierOrdinal(t *testing.T) {
	assert.Greater(t, TierTop.Ordinal(), TierHigh.Ordinal())
	assert.Greater(t, TierHigh.Ordinal(), TierMid.Ordinal())
	assert.Greater(t, TierMid.Ordinal(), TierBase.Ordinal())
	assert.Equal(t, 0, QualityTier("").Ordinal())
}

func TestPredictionPairError(t *testing.T) {
	p := PredictionPair{Predicted: 12.5, Actual: 11.0}
	assert.InDelta(t, 1.5, p.Error(), 1e-9)

	p = PredictionPair{Predicted: 10.0, Actual: 12.0}
	assert.InDelta(t, -2.0, p.Error(), 1e-9)
}
