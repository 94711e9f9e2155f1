package predictor

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ripefield/quality-cli/internal/confidence"
	"github.com/ripefield/quality-cli/internal/experiment"
	"github.com/ripefield/quality-cli/internal/model"
	"github.com/ripefield/quality-cli/internal/validate"
)

// ErrCategoryNotRegistered marks a predict call for a category tag with no
// registered evaluator. Unknown categories are hard errors, never fallbacks.
var ErrCategoryNotRegistered = eris.New("predictor: category not registered")

// Router dispatches prediction requests to per-category evaluators and
// assembles the complete result: layer selection, rule evaluation,
// measurement validation, anomaly classification, and confidence scoring.
// Safe for concurrent use; registration happens at startup.
type Router struct {
	mu         sync.RWMutex
	evaluators map[model.Category]Evaluator

	validator *validate.Engine
	bucketer  *experiment.Bucketer
}

// NewRouter creates a router with no registered categories. The bucketer
// may be nil when no experiment is configured.
func NewRouter(validator *validate.Engine, bucketer *experiment.Bucketer) *Router {
	return &Router{
		evaluators: make(map[model.Category]Evaluator),
		validator:  validator,
		bucketer:   bucketer,
	}
}

// RegisterCategory installs the evaluator for a category tag, replacing any
// previous registration.
func (r *Router) RegisterCategory(tag model.Category, ev Evaluator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evaluators[tag] = ev
}

// ListCategories returns the registered category tags in sorted order.
func (r *Router) ListCategories() []model.Category {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Category, 0, len(r.evaluators))
	for tag := range r.evaluators {
		out = append(out, tag)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Predict runs the full pipeline for one input. The call is synchronous
// and side-effect-free; a complete result is returned even under degraded
// confidence, and only configuration errors abort entirely.
func (r *Router) Predict(ctx context.Context, in model.PredictionInput) (*model.PredictionResult, error) {
	start := time.Now()

	r.mu.RLock()
	ev, ok := r.evaluators[in.Category]
	r.mu.RUnlock()
	if !ok {
		return nil, eris.Wrapf(ErrCategoryNotRegistered, "category %q", in.Category)
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "predictor: predict")
	}

	layer, rationale, variant := r.selectLayer(in)

	env, err := ev.Evaluate(in)
	if err != nil {
		return nil, eris.Wrapf(err, "predictor: evaluate category %q", in.Category)
	}

	res := &model.PredictionResult{
		Layer:             layer,
		RoutingRationale:  rationale,
		Category:          in.Category,
		Metrics:           env.Metrics(),
		Tier:              env.Tier,
		Pillars:           env.Pillars,
		AnomalyLevel:      model.AnomalyNone,
		ExperimentVariant: variant,
		PredictedAt:       start.UTC(),
	}

	// Evaluator-level inconsistencies surface as validation warnings.
	res.Validation.Warnings = append(res.Validation.Warnings, env.Warnings...)

	// Validate and anomaly-classify a supplied measurement against the
	// freshly predicted value.
	if in.HasMeasuredValue {
		vr := r.validator.Check(validate.MeasurementCheck{
			Metric:        env.Primary.Type,
			Value:         in.MeasuredValue,
			Min:           env.PhysicalMin,
			Max:           env.PhysicalMax,
			AgeYears:      in.AgeYears,
			HasAge:        in.HasAge,
			MinBearingAge: env.MinBearingAge,
			HeatUnits:     in.HeatUnits,
			HasHeatUnits:  in.HasHeatUnits,
			PeakHeatUnits: env.PeakHeatUnits,
		})
		res.Validation.Errors = append(res.Validation.Errors, vr.Errors...)
		res.Validation.Warnings = append(res.Validation.Warnings, vr.Warnings...)
		res.Validation.ClampedValue = vr.ClampedValue
		res.Validation.WasClamped = vr.WasClamped

		if vr.Valid() {
			level, z, reason := r.validator.Classify(env.Primary.Type, vr.ClampedValue, env.Primary.Value)
			res.AnomalyLevel = level
			res.AnomalyZScore = z
			res.AnomalyReason = reason
		}
	}

	res.DataQualityScore = confidence.DataQuality(in)

	score, factors := confidence.Score(confidence.Evidence{
		IdentityKnown:    env.IdentityKnown,
		SubLineageKnown:  env.SubLineageKnown,
		TimingComplete:   in.HasHeatUnits,
		AgeKnown:         in.HasAge,
		ValidationErrors: len(res.Validation.Errors),
		DataQuality:      res.DataQualityScore,
		Source:           in.Source,
	})
	res.Confidence = score
	res.ConfidenceFactors = factors

	if layer == model.LayerException {
		res.NeedsReview = true
		res.ReviewReason = rationale
	}

	res.Elapsed = time.Since(start)

	zap.L().Debug("prediction complete",
		zap.String("category", string(in.Category)),
		zap.String("layer", string(layer)),
		zap.String("tier", string(res.Tier)),
		zap.Float64("confidence", res.Confidence),
		zap.Duration("elapsed", res.Elapsed))

	return res, nil
}

// selectLayer applies the fixed-priority routing sequence and records the
// winning rule in the rationale. Claim-driven inputs never go probabilistic;
// the probabilistic layer is an extension point that today runs the same
// deterministic baseline tagged with the experiment variant.
func (r *Router) selectLayer(in model.PredictionInput) (model.Layer, string, string) {
	hasIdentity := in.IdentityCode != ""
	timingComplete := hasIdentity && in.HasHeatUnits

	if len(in.Claims) > 0 {
		return model.LayerDeterministic, "claims present, rule-table evaluation", ""
	}
	if !timingComplete && hasIdentity {
		return model.LayerDeterministic, "partial identity code, partial-inference path", ""
	}
	if !timingComplete {
		return model.LayerException, "insufficient data: identity and timing both absent", ""
	}
	if r.bucketer != nil && r.bucketer.Active() && in.RegionID != "" {
		asn, err := r.bucketer.Assign(in.SubjectID)
		if err == nil && asn.Group == model.GroupTreatment {
			return model.LayerProbabilistic,
				"experiment treatment group, deterministic baseline tagged with variant " + asn.ModelTag,
				asn.ModelTag
		}
		if err == nil {
			return model.LayerDeterministic, "experiment control group", asn.ModelTag
		}
	}
	return model.LayerDeterministic, "identity and timing complete", ""
}
