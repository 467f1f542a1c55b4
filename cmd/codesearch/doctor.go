package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flupkede/codesearch/internal/embedder"
	"github.com/flupkede/codesearch/internal/indexer"
)

func newDoctorCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that the embedder, cache, and database directories are usable",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, path)
		},
	}

	cmd.Flags().StringVar(&path, "path", ".", "project path")

	return cmd
}

func runDoctor(cmd *cobra.Command, path string) error {
	w := cmd.OutOrStdout()
	ok := true

	provider := embedder.DetectProvider()
	fmt.Fprintf(w, "embedding provider: %s", provider)
	switch provider {
	case "jina":
		if os.Getenv("JINA_API_KEY") == "" {
			fmt.Fprint(w, "  [FAIL] JINA_API_KEY not set")
			ok = false
		} else {
			fmt.Fprint(w, "  [OK]")
		}
	case "openai":
		if os.Getenv("OPENAI_API_KEY") == "" {
			fmt.Fprint(w, "  [FAIL] OPENAI_API_KEY not set")
			ok = false
		} else {
			fmt.Fprint(w, "  [OK]")
		}
	default:
		fmt.Fprint(w, "  [OK] local provider needs no API key")
	}
	fmt.Fprintln(w)

	if emb, err := embedder.NewFromEnv(); err != nil {
		fmt.Fprintf(w, "embedder init:      [FAIL] %v\n", err)
		ok = false
	} else {
		fmt.Fprintln(w, "embedder init:      [OK]")
		_ = emb.Close()
	}

	cacheRoot, err := indexer.DefaultCacheRoot()
	if err != nil {
		fmt.Fprintf(w, "cache root:         [FAIL] %v\n", err)
		ok = false
	} else if err := os.MkdirAll(cacheRoot, 0o755); err != nil {
		fmt.Fprintf(w, "cache root (%s): [FAIL] %v\n", cacheRoot, err)
		ok = false
	} else {
		fmt.Fprintf(w, "cache root (%s): [OK]\n", cacheRoot)
	}

	sess, err := openSession(path, true, indexer.Config{})
	if err != nil {
		fmt.Fprintf(w, "database open:      [FAIL] %v\n", err)
		ok = false
	} else {
		fmt.Fprintf(w, "database (%s): [OK]\n", sess.DBPath())
		_ = sess.Close()
	}

	if !ok {
		return fmt.Errorf("doctor found one or more problems")
	}
	fmt.Fprintln(w, "all checks passed")
	return nil
}
