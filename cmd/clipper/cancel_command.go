package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job_id>",
		Short: "Cancel a queued or running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if err := client.cancel(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cancel requested")
			return nil
		},
	}
}
