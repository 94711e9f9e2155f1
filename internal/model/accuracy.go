package model

import "time"

// PredictionPair is one matched prediction/actual observation.
type PredictionPair struct {
	Subject    string      `json:"subject"`
	Category   Category    `json:"category"`
	Tier       QualityTier `json:"tier,omitempty"`
	Predicted  float64     `json:"predicted"`
	Actual     float64     `json:"actual"`
	Confidence float64     `json:"confidence"`
	ObservedAt time.Time   `json:"observed_at,omitempty"`
}

// Error returns the signed prediction error (predicted - actual).
func (p PredictionPair) Error() float64 { return p.Predicted - p.Actual }

// AccuracyMetrics is a batch accuracy computation over matched pairs.
// Computed fresh per batch; persisted only as an appended snapshot.
type AccuracyMetrics struct {
	SampleCount  int `json:"sample_count"`
	MatchedCount int `json:"matched_count"`

	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
	MAPE float64 `json:"mape"`

	MeanError   float64 `json:"mean_error"`
	MedianError float64 `json:"median_error"`
	ErrorStdDev float64 `json:"error_std_dev"`

	// CoveragePct[i] is the percentage of pairs whose absolute error is
	// within the i-th configured threshold, tightest first.
	CoveragePct []float64 `json:"coverage_pct"`

	AvgConfidence         float64 `json:"avg_confidence"`
	ConfidenceCorrelation float64 `json:"confidence_correlation"`
}

// Trend classifies accuracy movement between reporting periods.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDegrading Trend = "degrading"
)

// TrendResult is a trend classification plus the signed percent change.
type TrendResult struct {
	Trend      Trend   `json:"trend"`
	ChangePct  float64 `json:"change_pct"`
	CurrentMAE float64 `json:"current_mae"`
	PriorMAE   float64 `json:"prior_mae,omitempty"`
}

// AlertResult aggregates all fired accuracy alerts for a period.
type AlertResult struct {
	Alert        bool     `json:"alert"`
	NeedsRetrain bool     `json:"needs_retrain"`
	Reasons      []string `json:"reasons,omitempty"`
	Message      string   `json:"message,omitempty"`
}

// AccuracySnapshot is one appended reporting-period record.
type AccuracySnapshot struct {
	ID         string          `json:"id"`
	Period     string          `json:"period"` // e.g. "2026-08"
	Category   Category        `json:"category"`
	Metrics    AccuracyMetrics `json:"metrics"`
	Trend      TrendResult     `json:"trend"`
	Alerts     AlertResult     `json:"alerts"`
	ComputedAt time.Time       `json:"computed_at"`
}
