package predictor

import (
	"fmt"
	"math"

	"github.com/ripefield/quality-cli/internal/catalog"
	"github.com/ripefield/quality-cli/internal/model"
)

// GradientEvaluator is the deterministic rule evaluator for identity+timing
// categories (produce brix, coffee cupping): a per-identity base value plus
// sub-lineage, age-tier, and heat-unit timing modifiers, clamped to the
// category's physical range.
type GradientEvaluator struct {
	spec   catalog.GradientSpec
	metric model.MetricType
	unit   string
}

// NewGradientEvaluator builds an evaluator over the given reference table.
func NewGradientEvaluator(spec catalog.GradientSpec, metric model.MetricType, unit string) *GradientEvaluator {
	return &GradientEvaluator{spec: spec, metric: metric, unit: unit}
}

// Evaluate computes the primary metric and the five evidence pillars.
func (g *GradientEvaluator) Evaluate(in model.PredictionInput) (*Envelope, error) {
	env := &Envelope{
		PhysicalMin: g.spec.PhysicalMin,
		PhysicalMax: g.spec.PhysicalMax,
	}

	// Genetic identity: base value plus optional sub-lineage modifier.
	base := g.spec.DefaultBase
	geneticConf := "low"
	geneticDetails := map[string]any{}
	var geneticInsights []string

	id, known := g.spec.Identity(in.IdentityCode)
	if known {
		base = id.BaseValue
		env.IdentityKnown = true
		env.MinBearingAge = id.MinBearingAge
		env.PeakHeatUnits = id.PeakHeatUnits
		geneticConf = "high"
		geneticDetails["identity"] = id.Name
		geneticDetails["base_value"] = id.BaseValue
		geneticInsights = append(geneticInsights, fmt.Sprintf("%s carries a base potential of %.1f %s", id.Name, id.BaseValue, g.unit))
	} else if in.IdentityCode != "" {
		geneticDetails["identity_code"] = in.IdentityCode
		geneticInsights = append(geneticInsights, "identity not in catalog, using category default")
	} else {
		geneticInsights = append(geneticInsights, "no identity supplied, using category default")
	}

	subMod := 0.0
	if in.SubLineageCode != "" {
		if m, ok := g.spec.SubLineages[in.SubLineageCode]; ok {
			subMod = m
			env.SubLineageKnown = true
			geneticDetails["sub_lineage"] = in.SubLineageCode
			geneticInsights = append(geneticInsights, fmt.Sprintf("sub-lineage %s adds %+.1f", in.SubLineageCode, m))
		}
	}

	// Age tier: fixed signed offset per life-stage bucket, prime = 0.
	ageMod := 0.0
	practiceDetails := map[string]any{}
	var practiceInsights []string
	if in.HasAge {
		tierName, offset := catalog.AgeOffset(g.spec.AgeTiers, in.AgeYears)
		ageMod = offset
		practiceDetails["age_tier"] = tierName
		practiceDetails["age_years"] = in.AgeYears
		if offset != 0 {
			practiceInsights = append(practiceInsights, fmt.Sprintf("%s plantings adjust by %+.1f", tierName, offset))
		} else {
			practiceInsights = append(practiceInsights, "planting is in its prime bearing years")
		}
	} else {
		practiceInsights = append(practiceInsights, "age unknown, no life-stage adjustment")
	}

	// Timing: normalized distance between accumulated heat units and the
	// identity's known peak. At peak the bonus is maximal; beyond one
	// half-width the modifier saturates at its minimum.
	timingMod := 0.0
	timingConf := "low"
	timingDetails := map[string]any{}
	var timingInsights []string
	if in.HasHeatUnits && known {
		d := math.Abs(in.HeatUnits-id.PeakHeatUnits) / id.HalfWidthHeatUnits
		if d >= 1 {
			timingMod = g.spec.TimingMinPenalty
		} else {
			timingMod = g.spec.TimingMaxBonus - d*(g.spec.TimingMaxBonus-g.spec.TimingMinPenalty)
		}
		timingConf = "high"
		timingDetails["heat_units"] = in.HeatUnits
		timingDetails["peak_heat_units"] = id.PeakHeatUnits
		timingDetails["distance"] = d
		switch {
		case d < 0.15:
			timingInsights = append(timingInsights, "harvest timing is at peak maturity")
		case in.HeatUnits < id.PeakHeatUnits:
			timingInsights = append(timingInsights, fmt.Sprintf("%.0f heat units short of peak", id.PeakHeatUnits-in.HeatUnits))
		default:
			timingInsights = append(timingInsights, fmt.Sprintf("%.0f heat units past peak", in.HeatUnits-id.PeakHeatUnits))
		}
	} else if in.HasHeatUnits {
		timingConf = "medium"
		timingDetails["heat_units"] = in.HeatUnits
		timingInsights = append(timingInsights, "heat units supplied but peak unknown for this identity")
	} else {
		timingInsights = append(timingInsights, "no heat-unit progress supplied")
	}

	// Tier classification uses the same rounded value the result reports,
	// so a displayed 14.0 never tiers below the 14.0 threshold.
	value := round1(clamp(base+subMod+ageMod+timingMod, g.spec.PhysicalMin, g.spec.PhysicalMax))

	env.Primary = model.MetricPrediction{
		Type:  g.metric,
		Value: value,
		Unit:  g.unit,
	}
	env.Tier = g.classifyTier(value)

	// Secondary metric: acid percentage as a monotonic decay over heat units.
	if g.spec.AcidCurve != nil && in.HasHeatUnits {
		acid := g.spec.AcidCurve.BasePct * math.Exp(-g.spec.AcidCurve.DecayRate*in.HeatUnits)
		env.Secondary = append(env.Secondary, model.MetricPrediction{
			Type:  model.MetricAcidPct,
			Value: round2(acid),
			Unit:  "%",
		})
	}

	// Origin pillar.
	originConf := "low"
	originDetails := map[string]any{}
	var originInsights []string
	if in.RegionID != "" {
		originConf = "medium"
		originDetails["region"] = in.RegionID
		originInsights = append(originInsights, fmt.Sprintf("grown in region %s", in.RegionID))
	} else {
		originInsights = append(originInsights, "growing region unknown")
	}

	// Verified-quality pillar.
	verifiedConf := "unknown"
	verifiedDetails := map[string]any{}
	var verifiedInsights []string
	if in.HasMeasuredValue {
		verifiedConf = sourceConfidence(in.Source)
		verifiedDetails["measured_value"] = in.MeasuredValue
		verifiedDetails["source"] = string(in.Source)
		verifiedInsights = append(verifiedInsights, fmt.Sprintf("direct measurement %.1f reported by %s", in.MeasuredValue, in.Source))
	} else {
		verifiedInsights = append(verifiedInsights, "no direct measurement available")
	}

	env.Pillars = []model.PillarScore{
		pillar(model.PillarOrigin, 0, originConf, originDetails, originInsights...),
		pillar(model.PillarGenetic, subMod, geneticConf, geneticDetails, geneticInsights...),
		pillar(model.PillarPractice, ageMod, practiceConfidence(in.HasAge), practiceDetails, practiceInsights...),
		pillar(model.PillarTiming, timingMod, timingConf, timingDetails, timingInsights...),
		pillar(model.PillarVerified, 0, verifiedConf, verifiedDetails, verifiedInsights...),
	}

	return env, nil
}

func (g *GradientEvaluator) classifyTier(v float64) model.QualityTier {
	switch {
	case v >= g.spec.TierTop:
		return model.TierTop
	case v >= g.spec.TierHigh:
		return model.TierHigh
	case v >= g.spec.TierMid:
		return model.TierMid
	default:
		return model.TierBase
	}
}

func practiceConfidence(hasAge bool) string {
	if hasAge {
		return "medium"
	}
	return "low"
}

func sourceConfidence(s model.Source) string {
	switch s {
	case model.SourceLab:
		return "high"
	case model.SourceConsumer:
		return "low"
	default:
		return "medium"
	}
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
