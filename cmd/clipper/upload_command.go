package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a local video file as a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			result, err := client.upload(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "source_id: %s %q (duration %.1fs, %d bytes)\n", result.SourceID, result.Title, result.Duration, result.Size)
			return nil
		},
	}
}
