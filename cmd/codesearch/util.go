package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/flupkede/codesearch/internal/embedder"
	"github.com/flupkede/codesearch/internal/indexer"
	"github.com/flupkede/codesearch/internal/locator"
	"github.com/flupkede/codesearch/internal/project"
)

// openSessionAt mirrors openSession, but when dbPathOverride is set
// (the `index --global` / `--add` path) it bypasses
// internal/locator.Resolve's discovery precedence and opens that exact
// database directory instead, creating it if necessary.
func openSessionAt(path, dbPathOverride string, idxCfg indexer.Config) (*project.Session, error) {
	if dbPathOverride == "" {
		return openSession(path, true, idxCfg)
	}

	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, err
	}
	root, err := locator.FindGitRoot(path)
	if err != nil {
		root = path
	}
	return project.OpenAt(root, dbPathOverride, emb, idxCfg)
}

func removeDBDir(dbPath string) error {
	if dbPath == "" {
		return fmt.Errorf("no database path resolved")
	}
	return os.RemoveAll(dbPath)
}

func printDatabases(cmd *cobra.Command, path string) error {
	dbs, err := locator.FindDatabases(path)
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}
	if len(dbs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no databases found")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "SCOPE\tPROJECT\tPATH")
	for _, db := range dbs {
		fmt.Fprintf(w, "%s\t%s\t%s\n", db.Scope, db.ProjectRoot, db.Path)
	}
	return w.Flush()
}

func statusFromStats(stats *indexer.Statistics) project.Status {
	if stats.FilesFailed > 0 && stats.FilesIndexed == 0 {
		return project.StatusError
	}
	return project.StatusReady
}
