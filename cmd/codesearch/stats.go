package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flupkede/codesearch/internal/indexer"
)

func newStatsCmd() *cobra.Command {
	var (
		path   string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Report index size and status for a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(path, false, indexer.Config{})
			if err != nil {
				return err
			}
			defer sess.Close()

			snapshot, err := sess.StatusSnapshot()
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(snapshot)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "project:    %v\n", snapshot["project_path"])
			fmt.Fprintf(w, "database:   %v\n", snapshot["db_path"])
			fmt.Fprintf(w, "status:     %v\n", snapshot["status"])
			fmt.Fprintf(w, "model:      %v (%v dims)\n", snapshot["model"], snapshot["dimensions"])
			fmt.Fprintf(w, "files:      %v\n", snapshot["total_files"])
			fmt.Fprintf(w, "chunks:     %v\n", snapshot["total_chunks"])
			if msg, ok := snapshot["status_message"]; ok && msg != "" {
				fmt.Fprintf(w, "message:    %v\n", msg)
			}
			if errMsg, ok := snapshot["error_message"]; ok {
				fmt.Fprintf(w, "error:      %v\n", errMsg)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", ".", "project path")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit stats as JSON")

	return cmd
}
