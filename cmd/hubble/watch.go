package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bft-labs/hubble/internal/watch"
)

func newWatchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Post every batch file written to a directory",
		Long: `Watch a directory and post each *.json file created in it, once.
Failures are logged and never retried; files are left in place.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.WatchDir == "" {
				return fmt.Errorf("dir is required")
			}
			w := watch.New(a.cfg.WatchDir, a.cfg.WriteKey, a.client, a.logger, a.cfg.PostOptions()...)
			return w.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&a.cfg.WatchDir, "dir", a.cfg.WatchDir, "directory to watch for batch files")
	return cmd
}
