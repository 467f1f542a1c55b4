package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/flupkede/codesearch/internal/indexer"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the persistent embedding cache",
	}
	cmd.AddCommand(newCacheStatsCmd(), newCacheClearCmd())
	return cmd
}

func newCacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "List per-model embedding cache directories and their size",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := indexer.DefaultCacheRoot()
			if err != nil {
				return fmt.Errorf("cache stats: %w", err)
			}

			entries, err := os.ReadDir(root)
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Fprintln(cmd.OutOrStdout(), "no embedding cache yet")
					return nil
				}
				return fmt.Errorf("cache stats: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			fmt.Fprintln(w, "MODEL\tENTRIES\tBYTES")
			for _, e := range entries {
				if !e.IsDir() {
					continue
				}
				count, size := cacheDirStats(filepath.Join(root, e.Name()))
				fmt.Fprintf(w, "%s\t%d\t%d\n", e.Name(), count, size)
			}
			return w.Flush()
		},
	}
}

func newCacheClearCmd() *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "clear [model]",
		Short: "Remove cached embeddings for one model, or every model",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := indexer.DefaultCacheRoot()
			if err != nil {
				return fmt.Errorf("cache clear: %w", err)
			}

			target := root
			label := "every model"
			if len(args) == 1 {
				target = filepath.Join(root, args[0])
				label = args[0]
			}

			if !confirm {
				ok, err := promptYesNo(cmd, fmt.Sprintf("clear the embedding cache for %s? [y/N] ", label))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "aborted")
					return nil
				}
			}

			if err := os.RemoveAll(target); err != nil {
				return fmt.Errorf("cache clear: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared embedding cache for %s\n", label)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&confirm, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func cacheDirStats(dir string) (count int, totalBytes int64) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0
	}
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		count++
		totalBytes += info.Size()
	}
	return count, totalBytes
}
