package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ripefield/quality-cli/internal/model"
	"github.com/ripefield/quality-cli/internal/triage"
)

var predictFlags struct {
	category   string
	identity   string
	subLineage string
	region     string
	heatUnits  float64
	age        float64
	housing    string
	claims     []string
	measured   float64
	source     string
	subject    string
	enqueue    bool
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Run one quality prediction and print the result as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		in := model.PredictionInput{
			Category:       model.Category(predictFlags.category),
			IdentityCode:   predictFlags.identity,
			SubLineageCode: predictFlags.subLineage,
			RegionID:       predictFlags.region,
			HousingFlag:    predictFlags.housing,
			Claims:         predictFlags.claims,
			Source:         model.Source(predictFlags.source),
			SubjectID:      predictFlags.subject,
		}
		if cmd.Flags().Changed("heat-units") {
			in.HeatUnits = predictFlags.heatUnits
			in.HasHeatUnits = true
		}
		if cmd.Flags().Changed("age") {
			in.AgeYears = predictFlags.age
			in.HasAge = true
		}
		if cmd.Flags().Changed("measured") {
			in.MeasuredValue = predictFlags.measured
			in.HasMeasuredValue = true
		}

		router, err := initRouter()
		if err != nil {
			return err
		}

		res, err := router.Predict(cmd.Context(), in)
		if err != nil {
			return err
		}

		if predictFlags.enqueue {
			if err := enqueueIfEscalated(cmd, in, res); err != nil {
				return err
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

// enqueueIfEscalated runs triage over the prediction and writes an exception
// record when a trigger fires.
func enqueueIfEscalated(cmd *cobra.Command, in model.PredictionInput, res *model.PredictionResult) error {
	engine := triage.NewEngine(cfg.Triage)

	sig := triage.Signals{
		Confidence:          res.Confidence,
		ValidationErrors:    len(res.Validation.Errors),
		ValidationWarnings:  len(res.Validation.Warnings),
		MissingCriticalData: res.Layer == model.LayerException,
	}
	if res.AnomalyLevel != model.AnomalyNone {
		sig.AnomalyZ = res.AnomalyZScore
		sig.HasAnomalyZ = true
	}

	d := engine.ShouldEscalate(sig)
	if !d.ShouldEscalate {
		zap.L().Info("no escalation triggered", zap.Float64("confidence", res.Confidence))
		return nil
	}

	st, err := initStore(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	rin := triage.RecordInput{
		Subject:    subjectLabel(in),
		Category:   in.Category,
		TriggerSrc: string(res.Layer),
		Context: map[string]any{
			"tier":       string(res.Tier),
			"confidence": res.Confidence,
		},
	}
	if primary, ok := res.Primary(); ok {
		rin.Expected = &primary.Value
	}
	if in.HasMeasuredValue {
		v := in.MeasuredValue
		rin.Actual = &v
		if primary, ok := res.Primary(); ok {
			dev := v - primary.Value
			rin.Deviation = &dev
		}
	}

	rec := triage.NewRecord(cfg.Triage, d, rin, res.PredictedAt)
	queue := triage.NewQueue(st, cfg.Triage)
	if err := queue.Add(cmd.Context(), rec); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "escalated: %s (%s, %s)\n", rec.ID, rec.Type, rec.Severity)
	return nil
}

func subjectLabel(in model.PredictionInput) string {
	if in.SubjectID != "" {
		return in.SubjectID
	}
	if in.IdentityCode != "" && in.RegionID != "" {
		return in.IdentityCode + ":" + in.RegionID
	}
	if in.IdentityCode != "" {
		return in.IdentityCode
	}
	return string(in.Category)
}

func init() {
	f := predictCmd.Flags()
	f.StringVar(&predictFlags.category, "category", "", "product category: produce, eggs, coffee (required)")
	f.StringVar(&predictFlags.identity, "identity", "", "cultivar / breed / variety code")
	f.StringVar(&predictFlags.subLineage, "sub-lineage", "", "rootstock or strain code")
	f.StringVar(&predictFlags.region, "region", "", "growing region id")
	f.Float64Var(&predictFlags.heatUnits, "heat-units", 0, "accumulated heat units toward maturity")
	f.Float64Var(&predictFlags.age, "age", 0, "planting or flock age in years")
	f.StringVar(&predictFlags.housing, "housing", "", "explicit practice flag (e.g. pastured, caged)")
	f.StringSliceVar(&predictFlags.claims, "claim", nil, "marketing/practice claim (repeatable)")
	f.Float64Var(&predictFlags.measured, "measured", 0, "directly measured value for the primary metric")
	f.StringVar(&predictFlags.source, "source", "farm", "input provenance: lab, farm, consumer, system")
	f.StringVar(&predictFlags.subject, "subject", "", "subject id for experiment bucketing")
	f.BoolVar(&predictFlags.enqueue, "enqueue", false, "run triage and queue an exception if triggered")
	predictCmd.MarkFlagRequired("category") //nolint:errcheck

	rootCmd.AddCommand(predictCmd)
}
