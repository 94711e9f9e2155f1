package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ripefield/quality-cli/internal/accuracy"
	"github.com/ripefield/quality-cli/internal/model"
)

var accuracyCmd = &cobra.Command{
	Use:   "accuracy",
	Short: "Accuracy reporting over matched prediction/actual pairs",
}

var accuracyReportFlags struct {
	category string
	period   string
	pairsCSV string
	xlsxOut  string
}

var accuracyReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Compute a period accuracy snapshot and append it to the history",
	RunE: func(cmd *cobra.Command, args []string) error {
		category := model.Category(accuracyReportFlags.category)

		pairs, err := readPairsCSV(accuracyReportFlags.pairsCSV, category)
		if err != nil {
			return err
		}

		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		calc := accuracy.NewCalculator(cfg.Accuracy)
		reporter := accuracy.NewReporter(calc, st)

		// Overall snapshot and per-tier breakdown in parallel; the tier
		// partition is independent of the stored history.
		var snap *model.AccuracySnapshot
		byTier := make(map[model.QualityTier]model.AccuracyMetrics)
		var mu sync.Mutex

		g, ctx := errgroup.WithContext(cmd.Context())
		g.Go(func() error {
			s, err := reporter.Report(ctx, category, accuracyReportFlags.period, pairs)
			snap = s
			return err
		})
		g.Go(func() error {
			m := calc.CalculateTierAccuracy(pairs)
			mu.Lock()
			for tier, metrics := range m {
				byTier[tier] = metrics
			}
			mu.Unlock()
			return nil
		})
		if err := g.Wait(); err != nil {
			return err
		}

		if accuracyReportFlags.xlsxOut != "" {
			if err := writeReportXLSX(accuracyReportFlags.xlsxOut, snap, byTier); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "report written to %s\n", accuracyReportFlags.xlsxOut)
		}

		out := map[string]any{
			"snapshot": snap,
			"by_tier":  byTier,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

// readPairsCSV parses "subject,tier,predicted,actual,confidence" rows.
// A header row is skipped when the numeric columns fail to parse.
func readPairsCSV(path string, category model.Category) ([]model.PredictionPair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "accuracy: open %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 5

	var pairs []model.PredictionPair
	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "accuracy: read %s", path)
		}
		line++

		predicted, err1 := strconv.ParseFloat(rec[2], 64)
		actual, err2 := strconv.ParseFloat(rec[3], 64)
		confidence, err3 := strconv.ParseFloat(rec[4], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			if line == 1 {
				continue // header
			}
			return nil, eris.Errorf("accuracy: %s line %d: non-numeric pair values", path, line)
		}

		pairs = append(pairs, model.PredictionPair{
			Subject:    rec[0],
			Category:   category,
			Tier:       model.QualityTier(rec[1]),
			Predicted:  predicted,
			Actual:     actual,
			Confidence: confidence,
		})
	}
	if len(pairs) == 0 {
		return nil, eris.Errorf("accuracy: no pairs in %s", path)
	}
	return pairs, nil
}

func writeReportXLSX(path string, snap *model.AccuracySnapshot, byTier map[model.QualityTier]model.AccuracyMetrics) error {
	f := xlsx.NewFile()

	sheet, err := f.AddSheet("summary")
	if err != nil {
		return eris.Wrap(err, "accuracy: add summary sheet")
	}
	addKV := func(key string, value any) {
		row := sheet.AddRow()
		row.AddCell().Value = key
		row.AddCell().Value = fmt.Sprintf("%v", value)
	}
	addKV("period", snap.Period)
	addKV("category", string(snap.Category))
	addKV("samples", snap.Metrics.SampleCount)
	addKV("mae", snap.Metrics.MAE)
	addKV("rmse", snap.Metrics.RMSE)
	addKV("mape", snap.Metrics.MAPE)
	addKV("mean_error", snap.Metrics.MeanError)
	addKV("median_error", snap.Metrics.MedianError)
	addKV("error_std_dev", snap.Metrics.ErrorStdDev)
	addKV("avg_confidence", snap.Metrics.AvgConfidence)
	addKV("confidence_correlation", snap.Metrics.ConfidenceCorrelation)
	for i, pct := range snap.Metrics.CoveragePct {
		addKV(fmt.Sprintf("coverage_%d_pct", i+1), pct)
	}
	addKV("trend", string(snap.Trend.Trend))
	addKV("trend_change_pct", snap.Trend.ChangePct)
	addKV("alert", snap.Alerts.Alert)
	if snap.Alerts.Message != "" {
		addKV("alert_message", snap.Alerts.Message)
	}

	tierSheet, err := f.AddSheet("by_tier")
	if err != nil {
		return eris.Wrap(err, "accuracy: add tier sheet")
	}
	header := tierSheet.AddRow()
	for _, h := range []string{"tier", "samples", "mae", "rmse", "mean_error"} {
		header.AddCell().Value = h
	}
	for _, tier := range []model.QualityTier{model.TierTop, model.TierHigh, model.TierMid, model.TierBase} {
		m, ok := byTier[tier]
		if !ok {
			continue
		}
		row := tierSheet.AddRow()
		row.AddCell().Value = string(tier)
		row.AddCell().SetInt(m.SampleCount)
		row.AddCell().SetFloat(m.MAE)
		row.AddCell().SetFloat(m.RMSE)
		row.AddCell().SetFloat(m.MeanError)
	}

	return eris.Wrapf(f.Save(path), "accuracy: save %s", path)
}

func init() {
	f := accuracyReportCmd.Flags()
	f.StringVar(&accuracyReportFlags.category, "category", "", "product category (required)")
	f.StringVar(&accuracyReportFlags.period, "period", "", "reporting period label, e.g. 2026-08 (required)")
	f.StringVar(&accuracyReportFlags.pairsCSV, "pairs", "", "CSV of subject,tier,predicted,actual,confidence (required)")
	f.StringVar(&accuracyReportFlags.xlsxOut, "xlsx", "", "also write an xlsx report to this path")
	accuracyReportCmd.MarkFlagRequired("category") //nolint:errcheck
	accuracyReportCmd.MarkFlagRequired("period")   //nolint:errcheck
	accuracyReportCmd.MarkFlagRequired("pairs")    //nolint:errcheck

	accuracyCmd.AddCommand(accuracyReportCmd)
	rootCmd.AddCommand(accuracyCmd)
}
