package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent sync runs from the audit trail",
	Long: `Runs lists the sync_runs audit table, newest first. With --json the
stored per-section summaries are printed in full.`,
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().Int("limit", 10, "number of runs to show (0 = all)")
	runsCmd.Flags().Bool("json", false, "print the stored run summaries as JSON")

	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := st.ListRuns(context.Background(), limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No sync runs recorded.")
		return nil
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		type runView struct {
			ID         string          `json:"id"`
			StartedAt  time.Time       `json:"started_at"`
			FinishedAt time.Time       `json:"finished_at"`
			Status     string          `json:"status"`
			Summary    json.RawMessage `json:"summary"`
		}
		views := make([]runView, 0, len(runs))
		for _, r := range runs {
			views = append(views, runView{
				ID:         r.ID,
				StartedAt:  r.StartedAt,
				FinishedAt: r.FinishedAt,
				Status:     r.Status,
				Summary:    json.RawMessage(r.Summary),
			})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	}

	fmt.Printf("%-36s  %-20s  %-10s  %s\n", "Run", "Started", "Status", "Duration")
	for _, r := range runs {
		fmt.Printf("%-36s  %-20s  %-10s  %s\n",
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Status,
			r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
	return nil
}
