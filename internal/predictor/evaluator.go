// Package predictor implements category-polymorphic prediction dispatch:
// a registry of rule evaluators keyed by category tag, execution-layer
// selection, and assembly of the full prediction result.
package predictor

import (
	"github.com/ripefield/quality-cli/internal/model"
)

// Envelope is the common contract every evaluator returns: exactly one
// primary metric, optional secondary metrics, a quality tier, and the five
// fixed evidence pillars.
type Envelope struct {
	Primary   model.MetricPrediction
	Secondary []model.MetricPrediction
	Tier      model.QualityTier
	Pillars   []model.PillarScore

	// Evaluator-level inconsistencies (e.g. claim vs practice flag).
	// Surfaced as validation warnings, never failures.
	Warnings []string

	// Evidence flags feeding the confidence scorer.
	IdentityKnown   bool
	SubLineageKnown bool

	// Reference parameters feeding cross-field validation.
	PhysicalMin   float64
	PhysicalMax   float64
	MinBearingAge float64
	PeakHeatUnits float64
}

// Metrics returns primary plus secondary metrics in order.
func (e *Envelope) Metrics() []model.MetricPrediction {
	out := make([]model.MetricPrediction, 0, 1+len(e.Secondary))
	out = append(out, e.Primary)
	out = append(out, e.Secondary...)
	return out
}

// Evaluator is the per-category rule evaluator contract.
type Evaluator interface {
	Evaluate(in model.PredictionInput) (*Envelope, error)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// pillar builds one PillarScore, keeping the five-pillar construction in a
// single place so every evaluator emits the same shape.
func pillar(p model.Pillar, modifier float64, conf string, details map[string]any, insights ...string) model.PillarScore {
	return model.PillarScore{
		Pillar:     p,
		Modifier:   modifier,
		Confidence: conf,
		Details:    details,
		Insights:   insights,
	}
}
