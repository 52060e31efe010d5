package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect jobs known to the daemon",
	}
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, optionally filtered by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			jobs, err := client.listJobs(status)
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
				return nil
			}

			rows := buildQueueListRows(jobs)
			fmt.Fprint(cmd.OutOrStdout(), renderTable(
				[]string{"Job ID", "Source ID", "Status", "Progress", "Message"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (queued, running, completed, error)")
	return cmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show a count of jobs per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			jobs, err := client.listJobs("")
			if err != nil {
				return err
			}
			counts := map[string]int{}
			for _, j := range jobs {
				counts[j.Status]++
			}
			if len(counts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
				return nil
			}

			keys := make([]string, 0, len(counts))
			for k := range counts {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			rows := make([][]string, 0, len(keys))
			for _, k := range keys {
				rows = append(rows, []string{k, fmt.Sprintf("%d", counts[k])})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
}

func buildQueueListRows(jobs []jobSummary) [][]string {
	sorted := make([]jobSummary, len(jobs))
	copy(sorted, jobs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].JobID < sorted[j].JobID
	})

	rows := make([][]string, 0, len(sorted))
	for _, j := range sorted {
		rows = append(rows, []string{
			j.JobID,
			j.SourceID,
			j.Status,
			fmt.Sprintf("%.0f%%", j.Progress),
			j.Message,
		})
	}
	return rows
}
