package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flupkede/codesearch/internal/embedder"
	"github.com/flupkede/codesearch/internal/indexer"
	"github.com/flupkede/codesearch/internal/project"
)

// errInterrupted signals the root command that a SIGINT/SIGTERM was the
// reason a subcommand returned, so run() can map it to exit code 130
// instead of the generic 1 (spec §6).
var errInterrupted = errors.New("interrupted")

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "codesearch",
		Short:         "Local, privacy-preserving semantic code search for AI coding agents",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newIndexCmd(),
		newSearchCmd(),
		newServeCmd(),
		newMCPCmd(),
		newStatsCmd(),
		newClearCmd(),
		newListCmd(),
		newDoctorCmd(),
		newSetupCmd(),
		newCacheCmd(),
	)
	return root
}

// signalContext returns a context cancelled on SIGINT/SIGTERM, plus a
// stop func to release the signal.Notify registration early.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

// openSession resolves startPath's database and opens a project.Session
// against it, using the environment-selected embedder (spec §4.F's
// NewFromEnv) in every case; idxCfg does not select the embedder.
func openSession(startPath string, createIndex bool, idxCfg indexer.Config) (*project.Session, error) {
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, err
	}
	return project.Open(startPath, createIndex, emb, idxCfg)
}
