package predictor

import (
	"fmt"

	"github.com/ripefield/quality-cli/internal/catalog"
	"github.com/ripefield/quality-cli/internal/model"
)

// ClaimsEvaluator is the deterministic rule evaluator for claim-driven
// categories (eggs): an ordered marketing-claim rule table resolves to a
// practice profile whose midpoint is the predicted omega-6:3 ratio.
// Lower values are better.
type ClaimsEvaluator struct {
	spec catalog.ClaimSpec
}

// NewClaimsEvaluator builds an evaluator over the given claim rule table.
func NewClaimsEvaluator(spec catalog.ClaimSpec) *ClaimsEvaluator {
	return &ClaimsEvaluator{spec: spec}
}

// Evaluate resolves the first matching claim rule and derives the metric,
// tier, and five evidence pillars from the matched profile.
func (c *ClaimsEvaluator) Evaluate(in model.PredictionInput) (*Envelope, error) {
	env := &Envelope{
		PhysicalMin: c.spec.PhysicalMin,
		PhysicalMax: c.spec.PhysicalMax,
	}

	rule, matched := c.spec.Resolve(in.Claims)

	value := clamp(rule.Midpoint, c.spec.PhysicalMin, c.spec.PhysicalMax)
	env.Primary = model.MetricPrediction{
		Type:          model.MetricOmegaRatio,
		Value:         value,
		Unit:          "ratio",
		LowerIsBetter: true,
	}
	env.Tier = c.classifyTier(value)

	// The claim table stands in for genetic identity in this category:
	// a matched profile is the strongest identity signal available.
	env.IdentityKnown = matched

	// Practice pillar carries the resolved profile and any claim vs
	// housing-flag conflict.
	practiceConf := "low"
	practiceDetails := map[string]any{
		"profile":        rule.Profile,
		"expected_range": fmt.Sprintf("%.1f-%.1f", rule.Min, rule.Max),
	}
	var practiceInsights []string
	if matched {
		practiceConf = "high"
		practiceInsights = append(practiceInsights, fmt.Sprintf("claims resolve to the %s profile", rule.Profile))
	} else {
		practiceInsights = append(practiceInsights, fmt.Sprintf("no recognized claims, defaulting to %s", rule.Profile))
	}

	if rule.ImpliesOutdoor && indoorHousing(in.HousingFlag) {
		env.Warnings = append(env.Warnings,
			fmt.Sprintf("claims imply outdoor access but housing is recorded as indoor (%s profile)", rule.Profile))
		practiceConf = "medium"
		practiceDetails["housing_conflict"] = true
		practiceInsights = append(practiceInsights, "recorded housing contradicts the claimed practice")
	}

	// Flock age shifts the expected range without moving the midpoint.
	if in.HasAge {
		tierName, _ := catalog.AgeOffset(c.spec.AgeTiers, in.AgeYears)
		if tierName != "" {
			practiceDetails["flock_stage"] = tierName
		}
	}

	geneticConf := "low"
	geneticInsights := []string{"ratio is practice-driven, breed contributes little"}
	if matched {
		geneticConf = "medium"
	}

	originDetails := map[string]any{}
	originConf := "low"
	originInsights := []string{"producing region unknown"}
	if in.RegionID != "" {
		originConf = "medium"
		originDetails["region"] = in.RegionID
		originInsights = []string{fmt.Sprintf("produced in region %s", in.RegionID)}
	}

	verifiedConf := "unknown"
	verifiedDetails := map[string]any{}
	verifiedInsights := []string{"no direct fatty-acid panel available"}
	if in.HasMeasuredValue {
		verifiedConf = sourceConfidence(in.Source)
		verifiedDetails["measured_value"] = in.MeasuredValue
		verifiedDetails["source"] = string(in.Source)
		verifiedInsights = []string{fmt.Sprintf("fatty-acid panel %.1f reported by %s", in.MeasuredValue, in.Source)}
	}

	env.Pillars = []model.PillarScore{
		pillar(model.PillarOrigin, 0, originConf, originDetails, originInsights...),
		pillar(model.PillarGenetic, 0, geneticConf, map[string]any{}, geneticInsights...),
		pillar(model.PillarPractice, 0, practiceConf, practiceDetails, practiceInsights...),
		pillar(model.PillarTiming, 0, "low", map[string]any{}, "laying timing does not shift the ratio materially"),
		pillar(model.PillarVerified, 0, verifiedConf, verifiedDetails, verifiedInsights...),
	}

	return env, nil
}

func indoorHousing(flag string) bool {
	switch flag {
	case "caged", "indoor", "barn":
		return true
	}
	return false
}

// classifyTier applies the ascending thresholds: lower ratios are better.
func (c *ClaimsEvaluator) classifyTier(v float64) model.QualityTier {
	switch {
	case v <= c.spec.TierTop:
		return model.TierTop
	case v <= c.spec.TierHigh:
		return model.TierHigh
	case v <= c.spec.TierMid:
		return model.TierMid
	default:
		return model.TierBase
	}
}
