package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flupkede/codesearch/internal/indexer"
	"github.com/flupkede/codesearch/internal/locator"
	"github.com/flupkede/codesearch/internal/walker"
)

func newIndexCmd() *cobra.Command {
	var (
		force   bool
		dryRun  bool
		add     bool
		global  bool
		rm      bool
		list    bool
		modelID string
	)

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Build or rebuild a project's index",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}

			switch {
			case list:
				return runIndexList(cmd, path)
			case rm:
				return runIndexRemove(cmd, path)
			case add, global:
				return runIndexBuild(cmd, path, force, dryRun, modelID, true)
			default:
				return runIndexBuild(cmd, path, force, dryRun, modelID, false)
			}
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "clear every sub-database and rebuild from scratch")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be indexed without writing anything")
	cmd.Flags().BoolVar(&add, "add", false, "register this project in the global database registry")
	cmd.Flags().BoolVar(&global, "global", false, "use the global database location instead of the local .codesearch.db")
	cmd.Flags().BoolVar(&rm, "rm", false, "remove this project's database from the global registry")
	cmd.Flags().BoolVar(&list, "list", false, "list known databases (alias for the list command)")
	cmd.Flags().StringVar(&modelID, "model", "", "override the embedding model identifier recorded for this index")

	return cmd
}

func runIndexBuild(cmd *cobra.Command, path string, force, dryRun bool, modelID string, global bool) error {
	if dryRun {
		return runIndexDryRun(cmd, path)
	}

	ctx, cancel := signalContext()
	defer cancel()

	var dbPath string
	if global {
		root, err := locator.FindGitRoot(path)
		if err != nil {
			root = path
		}
		gp, err := locator.GlobalDBPath(root)
		if err != nil {
			return err
		}
		dbPath = gp
	}

	sess, err := openSessionAt(path, dbPath, indexer.Config{Force: force, ModelID: modelID})
	if err != nil {
		return err
	}
	defer sess.Close()

	stats, err := sess.Indexer().Build(ctx, indexer.Config{Force: force})
	if err != nil {
		if ctx.Err() != nil {
			return errInterrupted
		}
		return fmt.Errorf("index: %w", err)
	}
	sess.SetStatus(statusFromStats(stats), "")

	fmt.Fprintf(cmd.OutOrStdout(), "indexed %d files (%d skipped, %d failed, %d deleted) in %s\n",
		stats.FilesIndexed, stats.FilesSkipped, stats.FilesFailed, stats.FilesDeleted, stats.Duration)
	return nil
}

func runIndexDryRun(cmd *cobra.Command, path string) error {
	root, err := locator.FindGitRoot(path)
	if err != nil {
		root = path
	}
	files, err := walker.Walk(root, walker.Options{})
	if err != nil {
		return fmt.Errorf("index --dry-run: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "would index %d files under %s (no changes made)\n", len(files), root)
	return nil
}

func runIndexRemove(cmd *cobra.Command, path string) error {
	root, err := locator.FindGitRoot(path)
	if err != nil {
		root = path
	}
	dbPath, err := locator.GlobalDBPath(root)
	if err != nil {
		return err
	}
	if err := removeDBDir(dbPath); err != nil {
		return fmt.Errorf("index --rm: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed global database for %s\n", root)
	return nil
}

func runIndexList(cmd *cobra.Command, path string) error {
	return printDatabases(cmd, path)
}
