package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flupkede/codesearch/internal/httpapi"
	"github.com/flupkede/codesearch/internal/indexer"
)

func newServeCmd() *cobra.Command {
	var (
		port        int
		createIndex bool
	)

	cmd := &cobra.Command{
		Use:   "serve [path]",
		Short: "Run the HTTP surface (GET /health, GET /status, POST /search)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}

			ctx, cancel := signalContext()
			defer cancel()

			sess, err := openSession(path, createIndex, indexer.Config{})
			if err != nil {
				return err
			}

			srv := httpapi.NewServer(sess)
			addr := fmt.Sprintf(":%d", port)
			if err := srv.Serve(ctx, addr); err != nil {
				if ctx.Err() != nil {
					return errInterrupted
				}
				return fmt.Errorf("serve: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", httpapi.DefaultPort, "listen port")
	cmd.Flags().BoolVar(&createIndex, "create-index", true, "build the index in the background if none exists")

	return cmd
}
