package accuracy

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ripefield/quality-cli/internal/model"
	"github.com/ripefield/quality-cli/internal/store"
)

// Reporter computes a reporting-period snapshot, compares it against the
// most recent prior snapshot for the category, and appends the result to
// the accuracy history.
type Reporter struct {
	calc  *Calculator
	store store.Store
}

// NewReporter creates a reporter over the given store.
func NewReporter(calc *Calculator, st store.Store) *Reporter {
	return &Reporter{calc: calc, store: st}
}

// Report computes metrics for the period's pairs, determines the trend
// against the stored prior snapshot, evaluates alerts, and appends the new
// snapshot. The computed snapshot is returned even when persistence fails;
// the error tells the caller the append was lost.
func (r *Reporter) Report(ctx context.Context, category model.Category, period string, pairs []model.PredictionPair) (*model.AccuracySnapshot, error) {
	metrics := r.calc.CalculateMetrics(pairs)

	prior, err := r.store.LatestSnapshot(ctx, category)
	if err != nil {
		return nil, eris.Wrap(err, "accuracy: load prior snapshot")
	}

	var priorMAE *float64
	if prior != nil {
		priorMAE = &prior.Metrics.MAE
	}
	trend := r.calc.DetermineTrend(metrics.MAE, priorMAE)
	alerts := r.calc.CheckAlerts(metrics, trend.ChangePct)

	snap := &model.AccuracySnapshot{
		ID:         uuid.NewString(),
		Period:     period,
		Category:   category,
		Metrics:    metrics,
		Trend:      trend,
		Alerts:     alerts,
		ComputedAt: time.Now().UTC(),
	}

	if err := r.store.InsertSnapshot(ctx, *snap); err != nil {
		return snap, eris.Wrapf(err, "accuracy: append snapshot %s", period)
	}

	zap.L().Info("accuracy snapshot recorded",
		zap.String("category", string(category)),
		zap.String("period", period),
		zap.Int("samples", metrics.SampleCount),
		zap.Float64("mae", metrics.MAE),
		zap.String("trend", string(trend.Trend)),
		zap.Bool("alert", alerts.Alert))

	return snap, nil
}
