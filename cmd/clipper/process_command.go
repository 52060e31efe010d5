package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var req processArgs
	req.UseHook = true
	req.AutoCaption = true

	cmd := &cobra.Command{
		Use:   "process <source_id>",
		Short: "Enqueue an admitted source for clip production",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.SourceID = args[0]
			client, err := ctx.client()
			if err != nil {
				return err
			}
			jobID, err := client.process(req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "job_id: %s\n", jobID)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Language, "language", "", "source language, or \"auto\" to detect")
	cmd.Flags().StringVar(&req.TargetDuration, "target-duration", "", "desired clip duration class (short, medium, long, extended, any)")
	cmd.Flags().StringVar(&req.Style, "style", "", "scoring style bias (funny, educational, dramatic, controversial, balanced)")
	cmd.Flags().BoolVar(&req.UseHook, "use-hook", true, "prepend a hook excerpt to each clip")
	cmd.Flags().BoolVar(&req.AutoCaption, "auto-caption", true, "emit a caption sidecar per clip")
	cmd.Flags().StringVar(&req.AspectRatio, "aspect-ratio", "", "output aspect ratio, e.g. \"9:16\"")
	return cmd
}
