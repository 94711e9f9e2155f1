package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ripefield/quality-cli/internal/model"
	"github.com/ripefield/quality-cli/internal/store"
	"github.com/ripefield/quality-cli/internal/triage"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and work the exception review queue",
}

var queueListFlags struct {
	status   string
	severity string
	excType  string
	subject  string
	limit    int
	asJSON   bool
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued exceptions",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		queue := triage.NewQueue(st, cfg.Triage)
		recs, err := queue.List(cmd.Context(), store.ExceptionFilter{
			Status:   model.ExceptionStatus(queueListFlags.status),
			Severity: model.Severity(queueListFlags.severity),
			Type:     model.ExceptionType(queueListFlags.excType),
			Subject:  queueListFlags.subject,
			Limit:    queueListFlags.limit,
		})
		if err != nil {
			return err
		}

		if queueListFlags.asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(recs)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSUBJECT\tTYPE\tSEVERITY\tSTATUS\tSLA DEADLINE")
		for _, r := range recs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.ID, r.Subject, r.Type, r.Severity, r.Status,
				r.SLADeadline.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var queueAssignCmd = &cobra.Command{
	Use:   "assign <exception-id> <reviewer>",
	Short: "Assign a pending exception to a reviewer",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		queue := triage.NewQueue(st, cfg.Triage)
		if err := queue.Assign(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("assigned %s to %s\n", args[0], args[1])
		return nil
	},
}

var queueResolveFlags struct {
	status string
	notes  string
}

var queueResolveCmd = &cobra.Command{
	Use:   "resolve <exception-id> <reviewer>",
	Short: "Resolve an in-review exception",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		queue := triage.NewQueue(st, cfg.Triage)
		status := model.ExceptionStatus(queueResolveFlags.status)
		if err := queue.Resolve(cmd.Context(), args[0], status, args[1], queueResolveFlags.notes); err != nil {
			return err
		}
		fmt.Printf("resolved %s as %s\n", args[0], status)
		return nil
	},
}

var queueFlagFlags struct {
	category string
	severity string
	reason   string
}

var queueFlagCmd = &cobra.Command{
	Use:   "flag <subject>",
	Short: "Manually queue an exception for a subject",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		queue := triage.NewQueue(st, cfg.Triage)
		rec, err := queue.ManualFlag(cmd.Context(), args[0],
			model.Category(queueFlagFlags.category),
			model.Severity(queueFlagFlags.severity),
			queueFlagFlags.reason)
		if err != nil {
			return err
		}
		fmt.Printf("flagged %s: %s\n", args[0], rec.ID)
		return nil
	},
}

func init() {
	lf := queueListCmd.Flags()
	lf.StringVar(&queueListFlags.status, "status", "", "filter by status")
	lf.StringVar(&queueListFlags.severity, "severity", "", "filter by severity")
	lf.StringVar(&queueListFlags.excType, "type", "", "filter by exception type")
	lf.StringVar(&queueListFlags.subject, "subject", "", "filter by subject")
	lf.IntVar(&queueListFlags.limit, "limit", 50, "maximum records")
	lf.BoolVar(&queueListFlags.asJSON, "json", false, "print as JSON")

	rf := queueResolveCmd.Flags()
	rf.StringVar(&queueResolveFlags.status, "as", "approved", "terminal status: approved, rejected, escalated")
	rf.StringVar(&queueResolveFlags.notes, "notes", "", "resolution notes")

	ff := queueFlagCmd.Flags()
	ff.StringVar(&queueFlagFlags.category, "category", "", "product category")
	ff.StringVar(&queueFlagFlags.severity, "severity", "", "severity (default medium)")
	ff.StringVar(&queueFlagFlags.reason, "reason", "", "why this subject needs review")

	queueCmd.AddCommand(queueListCmd, queueAssignCmd, queueResolveCmd, queueFlagCmd)
	rootCmd.AddCommand(queueCmd)
}
