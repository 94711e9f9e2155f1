// Package accuracy computes batch prediction-accuracy metrics, classifies
// period-over-period trends, and evaluates alert thresholds. All
// computation is stateless; only finished snapshots are persisted.
package accuracy

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ripefield/quality-cli/internal/config"
	"github.com/ripefield/quality-cli/internal/model"
)

// nearZeroActual guards the MAPE division: pairs with an actual this close
// to zero are excluded from the percentage term.
const nearZeroActual = 1e-6

// Calculator computes accuracy metrics under a fixed threshold config.
type Calculator struct {
	cfg config.AccuracyConfig
}

// NewCalculator creates a calculator with the given thresholds.
func NewCalculator(cfg config.AccuracyConfig) *Calculator {
	return &Calculator{cfg: cfg}
}

// CalculateMetrics computes the full metric set over matched pairs.
// Empty input yields a zero-valued result with SampleCount 0.
func (c *Calculator) CalculateMetrics(pairs []model.PredictionPair) model.AccuracyMetrics {
	m := model.AccuracyMetrics{
		SampleCount:  len(pairs),
		MatchedCount: len(pairs),
		CoveragePct:  make([]float64, len(c.cfg.CoverageThresholds)),
	}
	if len(pairs) == 0 {
		return m
	}

	n := float64(len(pairs))
	errors := make([]float64, len(pairs))
	var sumAbs, sumSq, sumErr, sumPct, sumConf float64
	var pctCount int
	within := make([]int, len(c.cfg.CoverageThresholds))

	for i, p := range pairs {
		e := p.Error()
		errors[i] = e
		abs := math.Abs(e)

		sumAbs += abs
		sumSq += e * e
		sumErr += e
		sumConf += p.Confidence

		if math.Abs(p.Actual) > nearZeroActual {
			sumPct += abs / math.Abs(p.Actual) * 100
			pctCount++
		}
		for j, th := range c.cfg.CoverageThresholds {
			if abs <= th {
				within[j]++
			}
		}
	}

	m.MAE = sumAbs / n
	m.RMSE = math.Sqrt(sumSq / n)
	if pctCount > 0 {
		m.MAPE = sumPct / float64(pctCount)
	}
	m.MeanError = sumErr / n
	m.MedianError = median(errors)
	m.ErrorStdDev = stdDev(errors, m.MeanError)
	for j, w := range within {
		m.CoveragePct[j] = float64(w) / n * 100
	}
	m.AvgConfidence = sumConf / n
	m.ConfidenceCorrelation = confidenceCorrelation(pairs)

	return m
}

// CalculateTierAccuracy partitions pairs by quality tier and computes the
// metric set per tier, omitting tiers below the minimum sample count.
func (c *Calculator) CalculateTierAccuracy(pairs []model.PredictionPair) map[model.QualityTier]model.AccuracyMetrics {
	byTier := make(map[model.QualityTier][]model.PredictionPair)
	for _, p := range pairs {
		byTier[p.Tier] = append(byTier[p.Tier], p)
	}

	out := make(map[model.QualityTier]model.AccuracyMetrics)
	for tier, tp := range byTier {
		if len(tp) < c.cfg.MinTierSamples {
			continue
		}
		out[tier] = c.CalculateMetrics(tp)
	}
	return out
}

// DetermineTrend classifies MAE movement between periods using a signed
// percent change. A nil or zero prior is stable with zero change.
func (c *Calculator) DetermineTrend(currentMAE float64, priorMAE *float64) model.TrendResult {
	res := model.TrendResult{
		Trend:      model.TrendStable,
		CurrentMAE: currentMAE,
	}
	if priorMAE == nil || *priorMAE == 0 {
		return res
	}

	res.PriorMAE = *priorMAE
	res.ChangePct = (currentMAE - *priorMAE) / *priorMAE * 100

	switch {
	case res.ChangePct <= c.cfg.ImprovingPct:
		res.Trend = model.TrendImproving
	case res.ChangePct >= c.cfg.DegradingPct:
		res.Trend = model.TrendDegrading
	}
	return res
}

// CheckAlerts evaluates every alert condition independently; all firing
// reasons are concatenated into one message.
func (c *Calculator) CheckAlerts(m model.AccuracyMetrics, maeIncreasePct float64) model.AlertResult {
	var res model.AlertResult

	if m.MAE > c.cfg.MAEAlertThreshold {
		res.Reasons = append(res.Reasons,
			fmt.Sprintf("MAE %.2f above alert threshold %.2f", m.MAE, c.cfg.MAEAlertThreshold))
	}
	if m.MAE > c.cfg.MAERetrainThreshold {
		res.NeedsRetrain = true
		res.Reasons = append(res.Reasons,
			fmt.Sprintf("MAE %.2f above retrain threshold %.2f", m.MAE, c.cfg.MAERetrainThreshold))
	}
	if len(m.CoveragePct) > 0 && m.CoveragePct[0] < c.cfg.MinTightCoveragePct {
		res.Reasons = append(res.Reasons,
			fmt.Sprintf("coverage within tightest threshold %.1f%% below required %.1f%%",
				m.CoveragePct[0], c.cfg.MinTightCoveragePct))
	}
	if maeIncreasePct > c.cfg.MAEIncreaseAlertPct {
		res.Reasons = append(res.Reasons,
			fmt.Sprintf("MAE increased %.1f%% versus prior period (limit %.1f%%)",
				maeIncreasePct, c.cfg.MAEIncreaseAlertPct))
	}

	if len(res.Reasons) > 0 {
		res.Alert = true
		res.Message = strings.Join(res.Reasons, "; ")
	}
	return res
}

func median(values []float64) float64 {
	s := make([]float64, len(values))
	copy(s, values)
	sort.Float64s(s)

	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// stdDev is the population standard deviation; zero for n <= 1.
func stdDev(values []float64, mean float64) float64 {
	if len(values) <= 1 {
		return 0
	}
	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

// confidenceCorrelation is the Pearson correlation between confidence and
// absolute error. Zero when either series has no variance. A well-behaved
// confidence score correlates negatively with error.
func confidenceCorrelation(pairs []model.PredictionPair) float64 {
	n := float64(len(pairs))
	if n < 2 {
		return 0
	}

	var sumC, sumE float64
	for _, p := range pairs {
		sumC += p.Confidence
		sumE += math.Abs(p.Error())
	}
	meanC := sumC / n
	meanE := sumE / n

	var cov, varC, varE float64
	for _, p := range pairs {
		dc := p.Confidence - meanC
		de := math.Abs(p.Error()) - meanE
		cov += dc * de
		varC += dc * dc
		varE += de * de
	}
	if varC == 0 || varE == 0 {
		return 0
	}
	return cov / math.Sqrt(varC*varE)
}
