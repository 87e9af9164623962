package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/convsearch/convdex/internal/history"
	"github.com/convsearch/convdex/internal/ui"
)

func newHistoryCmd() *cobra.Command {
	var (
		dataset    string
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent build attempts",
		Long:  "List recorded build attempts, newest first, optionally filtered by dataset.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			recs, err := app.history.List(cmd.Context(), dataset, limit)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(historyRows(recs))
			}

			styles := ui.GetStyles(!ui.UseColor(cmd.OutOrStdout()))
			if len(recs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no builds recorded")
				return nil
			}
			for _, rec := range recs {
				status := rec.Status
				switch status {
				case "ready":
					status = styles.Success(status)
				case "failed":
					status = styles.Error(status)
				case "cancelled":
					status = styles.Warning(status)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-20s %s  %d docs  %s\n",
					rec.StartedAt.Local().Format("2006-01-02 15:04:05"),
					rec.Dataset, status, rec.DocCount, rec.Duration.Round(time.Millisecond))
				if rec.Error != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "    %s\n", styles.Dim(rec.Error))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dataset, "dataset", "", "Filter by dataset name")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum records to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

type historyRow struct {
	Dataset    string    `json:"dataset"`
	ParamsHash string    `json:"params_hash"`
	Status     string    `json:"status"`
	DocCount   int       `json:"doc_count"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
}

func historyRows(recs []history.Record) []historyRow {
	rows := make([]historyRow, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, historyRow{
			Dataset:    rec.Dataset,
			ParamsHash: rec.ParamsHash,
			Status:     rec.Status,
			DocCount:   rec.DocCount,
			DurationMS: rec.Duration.Milliseconds(),
			Error:      rec.Error,
			StartedAt:  rec.StartedAt,
		})
	}
	return rows
}
