package main

import (
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List known project databases (local and global)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printDatabases(cmd, path)
		},
	}

	cmd.Flags().StringVar(&path, "path", ".", "starting path for the search")

	return cmd
}
