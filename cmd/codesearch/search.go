package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flupkede/codesearch/internal/indexer"
	"github.com/flupkede/codesearch/internal/searcher"
	"github.com/flupkede/codesearch/pkg/types"
)

func newSearchCmd() *cobra.Command {
	var (
		path        string
		limit       int
		perFile     int
		showContent bool
		showScores  bool
		compact     bool
		sync        bool
		asJSON      bool
		filterPath  string
		vectorOnly  bool
		rerank      bool
		rrfK        float64
		createIndex bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a hybrid semantic + lexical search over the project's index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			sess, err := openSession(path, createIndex, indexer.Config{})
			if err != nil {
				return err
			}
			defer sess.Close()

			if sync {
				stats, err := sess.Indexer().Build(ctx, indexer.Config{})
				if err != nil {
					if ctx.Err() != nil {
						return errInterrupted
					}
					return fmt.Errorf("search --sync: %w", err)
				}
				sess.SetStatus(statusFromStats(stats), "")
			}

			mode := searcher.ModeHybrid
			switch {
			case vectorOnly:
				mode = searcher.ModeVector
			case rerank:
				mode = searcher.ModeRerank
			}

			resp, err := sess.Searcher().Search(ctx, searcher.SearchRequest{
				Query:      args[0],
				Limit:      limit,
				FilterPath: filterPath,
				Mode:       mode,
				UseCache:   true,
				RRFK:       rrfK,
			})
			if err != nil {
				if ctx.Err() != nil {
					return errInterrupted
				}
				return fmt.Errorf("search: %w", err)
			}

			results := resp.Results
			if perFile > 0 {
				results = capPerFile(results, perFile)
			}

			if asJSON {
				return printSearchJSON(cmd, results, showContent && !compact)
			}
			printSearchText(cmd, results, showContent, showScores)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", ".", "project path")
	cmd.Flags().IntVarP(&limit, "limit", "m", searcher.DefaultLimit, "maximum number of results")
	cmd.Flags().IntVar(&perFile, "per-file", 0, "cap results per file (0 = unlimited)")
	cmd.Flags().BoolVar(&showContent, "content", false, "include full chunk content")
	cmd.Flags().BoolVar(&showScores, "scores", false, "include relevance scores")
	cmd.Flags().BoolVar(&compact, "compact", false, "omit chunk content even when --json is set")
	cmd.Flags().BoolVar(&sync, "sync", false, "rebuild the index synchronously before searching")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit results as JSON")
	cmd.Flags().StringVar(&filterPath, "filter-path", "", "only return chunks whose path contains this substring")
	cmd.Flags().BoolVar(&vectorOnly, "vector-only", false, "use vector similarity only, skipping lexical fusion")
	cmd.Flags().BoolVar(&rerank, "rerank", false, "apply the cross-encoder reranker pass")
	cmd.Flags().Float64Var(&rrfK, "rrf-k", 0, "override the RRF constant k (0 = fuser default)")
	cmd.Flags().BoolVar(&createIndex, "create-index", true, "build the index first if none exists")

	return cmd
}

// capPerFile keeps at most n results per source path, preserving
// relative rank order.
func capPerFile(results []types.SearchResult, n int) []types.SearchResult {
	seen := make(map[string]int, len(results))
	out := make([]types.SearchResult, 0, len(results))
	for _, r := range results {
		path := ""
		if r.File != nil {
			path = r.File.Path
		}
		if seen[path] >= n {
			continue
		}
		seen[path]++
		out = append(out, r)
	}
	return out
}

func printSearchJSON(cmd *cobra.Command, results []types.SearchResult, includeContent bool) error {
	out := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		entry := map[string]interface{}{
			"kind":  string(r.Kind),
			"score": r.RelevanceScore,
		}
		if r.File != nil {
			entry["path"] = r.File.Path
			entry["start"] = r.File.StartLine
			entry["end"] = r.File.EndLine
		}
		if r.Signature != "" {
			entry["signature"] = r.Signature
		}
		if includeContent {
			entry["content"] = r.Content
		}
		out = append(out, entry)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]interface{}{"results": out})
}

func printSearchText(cmd *cobra.Command, results []types.SearchResult, showContent, showScores bool) {
	w := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(w, "no results")
		return
	}
	for _, r := range results {
		loc := "?"
		if r.File != nil {
			loc = fmt.Sprintf("%s:%d-%d", r.File.Path, r.File.StartLine, r.File.EndLine)
		}
		line := fmt.Sprintf("%s  [%s]", loc, r.Kind)
		if r.Signature != "" {
			line += "  " + r.Signature
		}
		if showScores {
			line += fmt.Sprintf("  score=%.4f", r.RelevanceScore)
		}
		fmt.Fprintln(w, line)
		if showContent && r.Content != "" {
			fmt.Fprintln(w, r.Content)
			fmt.Fprintln(w)
		}
	}
}
