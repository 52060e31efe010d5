package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup <job_id>",
		Short: "Remove a finished job's output directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if err := client.cleanup(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cleaned up")
			return nil
		},
	}
}
