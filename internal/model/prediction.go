package model

import "time"

// Category identifies the product domain a prediction belongs to.
type Category string

const (
	CategoryProduce Category = "produce"
	CategoryEggs    Category = "eggs"
	CategoryCoffee  Category = "coffee"
)

// Source identifies where a measurement or input originated.
type Source string

const (
	SourceLab      Source = "lab"
	SourceFarm     Source = "farm"
	SourceConsumer Source = "consumer"
	SourceSystem   Source = "system"
)

// Layer identifies which execution path produced a prediction.
type Layer string

const (
	LayerDeterministic Layer = "deterministic"
	LayerProbabilistic Layer = "probabilistic"
	LayerException     Layer = "exception"
)

// MetricType identifies a predicted quality metric.
type MetricType string

const (
	MetricBrix       MetricType = "brix"
	MetricAcidPct    MetricType = "acid_pct"
	MetricOmegaRatio MetricType = "omega_ratio"
	MetricCupping    MetricType = "cupping_score"
)

// QualityTier is the ordinal classification derived from a predicted metric.
type QualityTier string

const (
	TierTop  QualityTier = "top"
	TierHigh QualityTier = "high"
	TierMid  QualityTier = "mid"
	TierBase QualityTier = "base"
)

// Ordinal returns the tier's rank; higher is better.
func (t QualityTier) Ordinal() int {
	switch t {
	case TierTop:
		return 3
	case TierHigh:
		return 2
	case TierMid:
		return 1
	default:
		return 0
	}
}

// PredictionInput carries the category tag plus category-specific optional
// fields for one prediction request. Constructed per request, never mutated.
type PredictionInput struct {
	Category Category `json:"category"`

	// Identity.
	IdentityCode   string `json:"identity_code,omitempty"`    // cultivar / breed / variety id
	SubLineageCode string `json:"sub_lineage_code,omitempty"` // rootstock / strain id
	RegionID       string `json:"region_id,omitempty"`

	// Timing: accumulated heat units toward maturity.
	HeatUnits    float64 `json:"heat_units,omitempty"`
	HasHeatUnits bool    `json:"has_heat_units,omitempty"`

	// Age in years (orchard age, flock age, planting age).
	AgeYears    float64 `json:"age_years,omitempty"`
	HasAge      bool    `json:"has_age,omitempty"`
	HousingFlag string  `json:"housing_flag,omitempty"` // explicit practice flag (e.g. "caged", "pastured")

	// Marketing / practice claims.
	Claims []string `json:"claims,omitempty"`

	// Optional directly measured value for the primary metric.
	MeasuredValue    float64 `json:"measured_value,omitempty"`
	HasMeasuredValue bool    `json:"has_measured_value,omitempty"`

	// Provenance of the input.
	Source Source `json:"source,omitempty"`

	// Subject identifier for experiment bucketing.
	SubjectID string `json:"subject_id,omitempty"`
}

// MetricPrediction is a single typed metric prediction.
type MetricPrediction struct {
	Type          MetricType `json:"type"`
	Value         float64    `json:"value"`
	Unit          string     `json:"unit"`
	LowerIsBetter bool       `json:"lower_is_better"`
}

// Pillar names one of the five fixed evidence pillars every prediction
// decomposes into.
type Pillar string

const (
	PillarOrigin   Pillar = "origin"
	PillarGenetic  Pillar = "genetic_identity"
	PillarPractice Pillar = "practice"
	PillarTiming   Pillar = "timing"
	PillarVerified Pillar = "verified_quality"
)

// Pillars lists the five pillars in canonical order.
func Pillars() []Pillar {
	return []Pillar{PillarOrigin, PillarGenetic, PillarPractice, PillarTiming, PillarVerified}
}

// PillarScore is one evidence pillar's contribution to a prediction.
type PillarScore struct {
	Pillar     Pillar         `json:"pillar"`
	Modifier   float64        `json:"modifier"`
	Confidence string         `json:"confidence"` // high / medium / low / unknown
	Details    map[string]any `json:"details,omitempty"`
	Insights   []string       `json:"insights,omitempty"`
}

// ConfidenceFactor records one contribution to the confidence score.
// The factor list is append-only during scoring and preserved for audit.
type ConfidenceFactor struct {
	Name   string  `json:"name"`
	Impact float64 `json:"impact"`
	Reason string  `json:"reason"`
}

// AnomalyLevel classifies how far a measurement sits from its prediction.
type AnomalyLevel string

const (
	AnomalyNone     AnomalyLevel = "none"
	AnomalyWarning  AnomalyLevel = "warning"
	AnomalyEscalate AnomalyLevel = "escalate"
	AnomalyCritical AnomalyLevel = "critical"
)

// ValidationResult holds the outcome of measurement validation.
// Errors are must-fix; warnings are should-review. Out-of-range values are
// clamped, never rejected, and the clamp is surfaced as a warning.
type ValidationResult struct {
	Errors       []string `json:"errors,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
	ClampedValue float64  `json:"clamped_value,omitempty"`
	WasClamped   bool     `json:"was_clamped,omitempty"`
}

// Valid reports whether the validation produced no errors.
func (v ValidationResult) Valid() bool { return len(v.Errors) == 0 }

// PredictionResult is the complete outcome of one predict call.
// Created once per request; never mutated after return.
type PredictionResult struct {
	Layer            Layer              `json:"layer"`
	RoutingRationale string             `json:"routing_rationale"`
	Category         Category           `json:"category"`
	Metrics          []MetricPrediction `json:"metrics"`
	Tier             QualityTier        `json:"tier"`
	Pillars          []PillarScore      `json:"pillars"`

	Confidence        float64            `json:"confidence"`
	ConfidenceFactors []ConfidenceFactor `json:"confidence_factors"`

	Validation       ValidationResult `json:"validation"`
	DataQualityScore float64          `json:"data_quality_score"`

	AnomalyLevel  AnomalyLevel `json:"anomaly_level"`
	AnomalyZScore float64      `json:"anomaly_z_score,omitempty"`
	AnomalyReason string       `json:"anomaly_reason,omitempty"`

	NeedsReview  bool   `json:"needs_review"`
	ReviewReason string `json:"review_reason,omitempty"`

	ExperimentVariant string `json:"experiment_variant,omitempty"`

	PredictedAt time.Time     `json:"predicted_at"`
	Elapsed     time.Duration `json:"elapsed"`
}

// Primary returns the primary (first) metric prediction, if any.
func (r *PredictionResult) Primary() (MetricPrediction, bool) {
	if len(r.Metrics) == 0 {
		return MetricPrediction{}, false
	}
	return r.Metrics[0], true
}
