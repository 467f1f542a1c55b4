package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flupkede/codesearch/internal/embedder"
)

func newSetupCmd() *cobra.Command {
	var (
		path  string
		model string
	)

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Select an embedding provider and build the initial index",
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := embedder.DetectProvider()
			fmt.Fprintf(cmd.OutOrStdout(), "using embedding provider: %s\n", provider)

			if _, err := embedder.NewFromEnv(); err != nil {
				return newUsageError("setup: %v (set GOCONTEXT_EMBEDDING_PROVIDER, JINA_API_KEY, or OPENAI_API_KEY)", err)
			}

			return runIndexBuild(cmd, path, false, false, model, false)
		},
	}

	cmd.Flags().StringVar(&path, "path", ".", "project path")
	cmd.Flags().StringVar(&model, "model", "", "override the embedding model identifier recorded for this index")

	return cmd
}
