package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var apiFlag string
	var tokenFlag string
	var configFlag string

	ctx := newCommandContext(&apiFlag, &tokenFlag, &configFlag)

	rootCmd := &cobra.Command{
		Use:           "clipper",
		Short:         "clipforge CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&apiFlag, "api", "", "clipperd API base URL (default: from config api_bind)")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "clipperd API bearer token")
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newUploadCommand(ctx))
	rootCmd.AddCommand(newFetchCommand(ctx))
	rootCmd.AddCommand(newProcessCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newCancelCommand(ctx))
	rootCmd.AddCommand(newCleanupCommand(ctx))
	rootCmd.AddCommand(newQueueCommand(ctx))

	return rootCmd
}
