package experiment

import (
	"fmt"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripefield/quality-cli/internal/config"
	"github.com/ripefield/quality-cli/internal/model"
)

func testExperimentConfig() config.ExperimentConfig {
	return config.ExperimentConfig{
		ID:           "scoring-v2",
		TrafficSplit: 0.5,
		ControlTag:   "baseline",
		TreatmentTag: "v2",
		Active:       true,
	}
}

func TestAssignGroupDeterministic(t *testing.T) {
	cfg := testExperimentConfig()

	first, err := AssignGroup("grove-17", cfg)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		again, err := AssignGroup("grove-17", cfg)
		require.NoError(t, err)
		assert.Equal(t, first.Group, again.Group)
		assert.Equal(t, first.Fraction, again.Fraction)
		assert.Equal(t, first.ModelTag, again.ModelTag)
	}
}

func TestAssignGroupSplitBand(t *testing.T) {
	cfg := testExperimentConfig()

	var treatment int
	for i := 0; i < 1000; i++ {
		asn, err := AssignGroup(fmt.Sprintf("subject-%d", i), cfg)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, asn.Fraction, 0.0)
		assert.Less(t, asn.Fraction, 1.0)
		if asn.Group == model.GroupTreatment {
			treatment++
		}
	}
	assert.GreaterOrEqual(t, treatment, 400)
	assert.LessOrEqual(t, treatment, 600)
}

func TestAssignGroupFractionSpread(t *testing.T) {
	cfg := testExperimentConfig()

	lo, hi := 1.0, 0.0
	for i := 0; i < 1000; i++ {
		asn, err := AssignGroup(fmt.Sprintf("subject-%d", i), cfg)
		require.NoError(t, err)
		if asn.Fraction < lo {
			lo = asn.Fraction
		}
		if asn.Fraction > hi {
			hi = asn.Fraction
		}
	}
	// Sequential short ids must still cover the unit interval; a narrow
	// band here means the hash normalization is discarding mixed bits.
	assert.Less(t, lo, 0.1)
	assert.Greater(t, hi, 0.9)
}

func TestAssignGroupExperimentIDChangesBuckets(t *testing.T) {
	a := testExperimentConfig()
	b := testExperimentConfig()
	b.ID = "scoring-v3"

	var moved int
	for i := 0; i < 200; i++ {
		subject := fmt.Sprintf("subject-%d", i)
		asnA, err := AssignGroup(subject, a)
		require.NoError(t, err)
		asnB, err := AssignGroup(subject, b)
		require.NoError(t, err)
		if asnA.Group != asnB.Group {
			moved++
		}
	}
	// Independent hashes: a meaningful share of subjects lands differently.
	assert.Greater(t, moved, 50)
}

func TestAssignGroupTagResolution(t *testing.T) {
	cfg := testExperimentConfig()
	cfg.TrafficSplit = 1.0

	asn, err := AssignGroup("any-subject", cfg)
	require.NoError(t, err)
	assert.Equal(t, model.GroupTreatment, asn.Group)
	assert.Equal(t, "v2", asn.ModelTag)

	cfg.TrafficSplit = 0.0
	asn, err = AssignGroup("any-subject", cfg)
	require.NoError(t, err)
	assert.Equal(t, model.GroupControl, asn.Group)
	assert.Equal(t, "baseline", asn.ModelTag)
}

func TestNewBucketerValidation(t *testing.T) {
	bad := testExperimentConfig()
	bad.TrafficSplit = 1.5
	_, err := NewBucketer(bad)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidExperimentConfig))

	noID := testExperimentConfig()
	noID.ID = ""
	_, err = NewBucketer(noID)
	require.Error(t, err)

	_, err = NewBucketer(testExperimentConfig())
	assert.NoError(t, err)
}

func TestShouldUseAlternate(t *testing.T) {
	cfg := testExperimentConfig()
	cfg.TrafficSplit = 1.0
	b, err := NewBucketer(cfg)
	require.NoError(t, err)
	assert.True(t, b.ShouldUseAlternate("grove-17"))

	inactive := testExperimentConfig()
	inactive.Active = false
	b, err = NewBucketer(inactive)
	require.NoError(t, err)
	assert.False(t, b.ShouldUseAlternate("grove-17"))
}
