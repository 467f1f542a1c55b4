package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flupkede/codesearch/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	var createIndex bool

	cmd := &cobra.Command{
		Use:   "mcp [path]",
		Short: "Run the MCP stdio server for AI coding agents",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}

			ctx, cancel := signalContext()
			defer cancel()

			srv, err := mcp.NewServer(path, createIndex)
			if err != nil {
				return err
			}

			if err := srv.Serve(ctx); err != nil {
				if ctx.Err() != nil {
					return errInterrupted
				}
				return fmt.Errorf("mcp: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&createIndex, "create-index", true, "build the index in the background if none exists")

	return cmd
}
