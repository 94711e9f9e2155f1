package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Catalog    CatalogConfig    `yaml:"catalog" mapstructure:"catalog"`
	Triage     TriageConfig     `yaml:"triage" mapstructure:"triage"`
	Anomaly    AnomalyConfig    `yaml:"anomaly" mapstructure:"anomaly"`
	Accuracy   AccuracyConfig   `yaml:"accuracy" mapstructure:"accuracy"`
	Experiment ExperimentConfig `yaml:"experiment" mapstructure:"experiment"`
}

// StoreConfig configures the database backend for the review queue and
// accuracy history.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // sqlite | postgres
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int     `yaml:"port" mapstructure:"port"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	Burst          int     `yaml:"burst" mapstructure:"burst"`
}

// CatalogConfig points at an optional reference-catalog override file.
type CatalogConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// TriageConfig configures escalation triggers, SLA windows, and the
// auto-resolve sweep.
type TriageConfig struct {
	// Confidence thresholds (strict < comparisons).
	ConfidenceEscalate float64 `yaml:"confidence_escalate" mapstructure:"confidence_escalate"`
	ConfidenceHigh     float64 `yaml:"confidence_high" mapstructure:"confidence_high"`
	ConfidenceCritical float64 `yaml:"confidence_critical" mapstructure:"confidence_critical"`

	// Anomaly z-score thresholds for escalation. Independent from the
	// measurement-anomaly classification set in AnomalyConfig.
	AnomalyEscalateZ float64 `yaml:"anomaly_escalate_z" mapstructure:"anomaly_escalate_z"`
	AnomalyCriticalZ float64 `yaml:"anomaly_critical_z" mapstructure:"anomaly_critical_z"`

	// SLA hours per severity. Must be strictly monotonic: critical shortest.
	SLACriticalHours int `yaml:"sla_critical_hours" mapstructure:"sla_critical_hours"`
	SLAHighHours     int `yaml:"sla_high_hours" mapstructure:"sla_high_hours"`
	SLAMediumHours   int `yaml:"sla_medium_hours" mapstructure:"sla_medium_hours"`
	SLALowHours      int `yaml:"sla_low_hours" mapstructure:"sla_low_hours"`

	// Auto-resolve windows. Only medium/low records are ever eligible.
	AutoResolveMediumHours int `yaml:"auto_resolve_medium_hours" mapstructure:"auto_resolve_medium_hours"`
	AutoResolveLowHours    int `yaml:"auto_resolve_low_hours" mapstructure:"auto_resolve_low_hours"`

	// Advisory calibration floor: below this sample count a note is added
	// to escalation reasons, but it never escalates on its own.
	MinCalibrationSamples int `yaml:"min_calibration_samples" mapstructure:"min_calibration_samples"`

	SweepIntervalSecs int `yaml:"sweep_interval_secs" mapstructure:"sweep_interval_secs"`
}

// AnomalyConfig configures measurement anomaly classification.
type AnomalyConfig struct {
	WarningZ  float64 `yaml:"warning_z" mapstructure:"warning_z"`
	EscalateZ float64 `yaml:"escalate_z" mapstructure:"escalate_z"`
	CriticalZ float64 `yaml:"critical_z" mapstructure:"critical_z"`

	// Expected standard deviation per metric type. Fixed constants, not
	// learned from data.
	StdDevBrix    float64 `yaml:"std_dev_brix" mapstructure:"std_dev_brix"`
	StdDevOmega   float64 `yaml:"std_dev_omega" mapstructure:"std_dev_omega"`
	StdDevCupping float64 `yaml:"std_dev_cupping" mapstructure:"std_dev_cupping"`
}

// AccuracyConfig configures batch accuracy reporting and alerting.
type AccuracyConfig struct {
	// Absolute-error coverage thresholds, tightest first.
	CoverageThresholds []float64 `yaml:"coverage_thresholds" mapstructure:"coverage_thresholds"`

	MAEAlertThreshold   float64 `yaml:"mae_alert_threshold" mapstructure:"mae_alert_threshold"`
	MAERetrainThreshold float64 `yaml:"mae_retrain_threshold" mapstructure:"mae_retrain_threshold"`
	MinTightCoveragePct float64 `yaml:"min_tight_coverage_pct" mapstructure:"min_tight_coverage_pct"`
	MAEIncreaseAlertPct float64 `yaml:"mae_increase_alert_pct" mapstructure:"mae_increase_alert_pct"`

	ImprovingPct float64 `yaml:"improving_pct" mapstructure:"improving_pct"` // negative
	DegradingPct float64 `yaml:"degrading_pct" mapstructure:"degrading_pct"` // positive

	MinTierSamples int `yaml:"min_tier_samples" mapstructure:"min_tier_samples"`
}

// ExperimentConfig configures the active scoring-model rollout experiment.
type ExperimentConfig struct {
	ID           string  `yaml:"id" mapstructure:"id"`
	TrafficSplit float64 `yaml:"traffic_split" mapstructure:"traffic_split"`
	ControlTag   string  `yaml:"control_tag" mapstructure:"control_tag"`
	TreatmentTag string  `yaml:"treatment_tag" mapstructure:"treatment_tag"`
	Active       bool    `yaml:"active" mapstructure:"active"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("QUALITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "quality.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.requests_per_sec", 20.0)
	v.SetDefault("server.burst", 40)

	v.SetDefault("triage.confidence_escalate", 0.5)
	v.SetDefault("triage.confidence_high", 0.4)
	v.SetDefault("triage.confidence_critical", 0.3)
	v.SetDefault("triage.anomaly_escalate_z", 3.0)
	v.SetDefault("triage.anomaly_critical_z", 4.0)
	v.SetDefault("triage.sla_critical_hours", 4)
	v.SetDefault("triage.sla_high_hours", 24)
	v.SetDefault("triage.sla_medium_hours", 72)
	v.SetDefault("triage.sla_low_hours", 168)
	v.SetDefault("triage.auto_resolve_medium_hours", 48)
	v.SetDefault("triage.auto_resolve_low_hours", 24)
	v.SetDefault("triage.min_calibration_samples", 3)
	v.SetDefault("triage.sweep_interval_secs", 300)

	v.SetDefault("anomaly.warning_z", 2.0)
	v.SetDefault("anomaly.escalate_z", 3.0)
	v.SetDefault("anomaly.critical_z", 4.0)
	v.SetDefault("anomaly.std_dev_brix", 1.5)
	v.SetDefault("anomaly.std_dev_omega", 2.5)
	v.SetDefault("anomaly.std_dev_cupping", 2.0)

	v.SetDefault("accuracy.coverage_thresholds", []float64{0.5, 1.0, 1.5, 2.0})
	v.SetDefault("accuracy.mae_alert_threshold", 2.0)
	v.SetDefault("accuracy.mae_retrain_threshold", 3.0)
	v.SetDefault("accuracy.min_tight_coverage_pct", 30.0)
	v.SetDefault("accuracy.mae_increase_alert_pct", 20.0)
	v.SetDefault("accuracy.improving_pct", -5.0)
	v.SetDefault("accuracy.degrading_pct", 10.0)
	v.SetDefault("accuracy.min_tier_samples", 5)

	v.SetDefault("experiment.id", "alt-scoring-v1")
	v.SetDefault("experiment.traffic_split", 0.0)
	v.SetDefault("experiment.control_tag", "rules-v1")
	v.SetDefault("experiment.treatment_tag", "rules-v2")
	v.SetDefault("experiment.active", false)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field consistency. Configuration errors fail fast
// and are never silently defaulted.
func (c *Config) Validate() error {
	var errs []string

	t := c.Triage
	if !(t.ConfidenceCritical < t.ConfidenceHigh && t.ConfidenceHigh < t.ConfidenceEscalate) {
		errs = append(errs, "triage confidence thresholds must satisfy critical < high < escalate")
	}
	if !(t.SLACriticalHours < t.SLAHighHours && t.SLAHighHours < t.SLAMediumHours && t.SLAMediumHours < t.SLALowHours) {
		errs = append(errs, "triage SLA hours must be strictly increasing from critical to low")
	}
	if t.AnomalyEscalateZ <= 0 || t.AnomalyCriticalZ <= t.AnomalyEscalateZ {
		errs = append(errs, "triage anomaly thresholds must satisfy 0 < escalate < critical")
	}

	a := c.Anomaly
	if !(a.WarningZ < a.EscalateZ && a.EscalateZ < a.CriticalZ) {
		errs = append(errs, "anomaly z thresholds must be strictly increasing")
	}

	if len(c.Accuracy.CoverageThresholds) != 4 {
		errs = append(errs, "accuracy requires exactly four coverage thresholds")
	}

	e := c.Experiment
	if e.TrafficSplit < 0 || e.TrafficSplit > 1 {
		errs = append(errs, "experiment traffic_split must be within [0,1]")
	}
	if e.Active && e.ID == "" {
		errs = append(errs, "active experiment requires an id")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
