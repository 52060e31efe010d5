package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFetchCommand(ctx *commandContext) *cobra.Command {
	var quality string

	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Fetch a remote video by URL as a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			result, err := client.fetch(args[0], quality)
			if err != nil {
				return err
			}
			if result.Title != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "source_id: %s (%q, duration %.1fs)\n", result.SourceID, result.Title, result.Duration)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "source_id: %s (duration %.1fs)\n", result.SourceID, result.Duration)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&quality, "quality", "", "desired maximum quality label")
	return cmd
}
