package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 0.5, cfg.Triage.ConfidenceEscalate)
	assert.Equal(t, 0.3, cfg.Triage.ConfidenceCritical)
	assert.Equal(t, 4, cfg.Triage.SLACriticalHours)
	assert.Equal(t, 168, cfg.Triage.SLALowHours)
	assert.Equal(t, []float64{0.5, 1.0, 1.5, 2.0}, cfg.Accuracy.CoverageThresholds)
	assert.False(t, cfg.Experiment.Active)
	assert.Equal(t, 2.0, cfg.Anomaly.WarningZ)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("QUALITY_STORE_DRIVER", "postgres")
	t.Setenv("QUALITY_TRIAGE_SLA_CRITICAL_HOURS", "2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 2, cfg.Triage.SLACriticalHours)
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	t.Chdir(t.TempDir())
	cfg, err := Load()
	require.NoError(t, err)
	return cfg
}

func TestValidateThresholdOrdering(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			"confidence thresholds inverted",
			func(c *Config) { c.Triage.ConfidenceCritical = 0.6 },
			"critical < high < escalate",
		},
		{
			"SLA hours not monotonic",
			func(c *Config) { c.Triage.SLAHighHours = 200 },
			"strictly increasing",
		},
		{
			"anomaly thresholds not ascending",
			func(c *Config) { c.Anomaly.EscalateZ = 1.0 },
			"strictly increasing",
		},
		{
			"wrong coverage threshold count",
			func(c *Config) { c.Accuracy.CoverageThresholds = []float64{1.0} },
			"exactly four",
		},
		{
			"traffic split out of range",
			func(c *Config) { c.Experiment.TrafficSplit = 1.5 },
			"traffic_split",
		},
		{
			"active experiment without id",
			func(c *Config) { c.Experiment.Active = true; c.Experiment.ID = "" },
			"requires an id",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "json"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "console"}))

	err := InitLogger(LogConfig{Level: "not-a-level"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}
