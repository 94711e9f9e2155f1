// Package confidence converts available-evidence flags and validation
// signals into a bounded confidence value with an auditable factor trail.
package confidence

import (
	"fmt"

	"github.com/ripefield/quality-cli/internal/model"
)

const (
	baseConfidence = 0.8
	minConfidence  = 0.1
	maxConfidence  = 0.99
)

// Evidence summarizes what was available when a prediction was made.
type Evidence struct {
	IdentityKnown    bool
	SubLineageKnown  bool
	TimingComplete   bool
	AgeKnown         bool
	ValidationErrors int
	DataQuality      float64 // [0,1]
	Source           model.Source
}

// Score computes the final confidence and the ordered factor trail.
// Factors are appended in evaluation order and never dropped, even when
// their impact is zero, so repeated runs produce identical audits.
func Score(ev Evidence) (float64, []model.ConfidenceFactor) {
	score := baseConfidence
	factors := make([]model.ConfidenceFactor, 0, 8)

	add := func(name string, impact float64, reason string) {
		score += impact
		factors = append(factors, model.ConfidenceFactor{Name: name, Impact: impact, Reason: reason})
	}

	add("base", 0, "starting confidence 0.80")

	if ev.IdentityKnown {
		add("identity", 0.1, "identity code matched a catalog entry")
	} else {
		add("identity", -0.2, "identity unknown, using category default")
	}

	if ev.SubLineageKnown {
		add("sub_lineage", 0.05, "sub-lineage modifier applied")
	} else {
		add("sub_lineage", 0, "no sub-lineage data")
	}

	if ev.TimingComplete {
		add("timing", 0.1, "heat-unit progress supplied")
	} else {
		add("timing", -0.15, "timing data incomplete")
	}

	if ev.AgeKnown {
		add("age", 0.05, "age supplied")
	} else {
		add("age", 0, "age unknown")
	}

	if ev.ValidationErrors > 0 {
		impact := -0.1 * float64(ev.ValidationErrors)
		add("validation_errors", impact, fmt.Sprintf("%d validation error(s)", ev.ValidationErrors))
	} else {
		add("validation_errors", 0, "no validation errors")
	}

	dqImpact := (ev.DataQuality - 0.5) * 0.2
	add("data_quality", dqImpact, fmt.Sprintf("data quality score %.2f", ev.DataQuality))

	switch ev.Source {
	case model.SourceLab:
		add("source", 0.05, "lab-verified input")
	case model.SourceConsumer:
		add("source", -0.05, "consumer-reported input")
	default:
		add("source", 0, "neutral source")
	}

	if score < minConfidence {
		score = minConfidence
	}
	if score > maxConfidence {
		score = maxConfidence
	}

	return score, factors
}

// DataQuality scores input completeness in [0,1] as the fraction of
// evidence fields present.
func DataQuality(in model.PredictionInput) float64 {
	var present, total float64

	total = 6
	if in.IdentityCode != "" {
		present++
	}
	if in.SubLineageCode != "" {
		present++
	}
	if in.RegionID != "" {
		present++
	}
	if in.HasHeatUnits {
		present++
	}
	if in.HasAge {
		present++
	}
	if in.HasMeasuredValue || len(in.Claims) > 0 {
		present++
	}

	return present / total
}
