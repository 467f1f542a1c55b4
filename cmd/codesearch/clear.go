package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flupkede/codesearch/internal/indexer"
)

func newClearCmd() *cobra.Command {
	var (
		path    string
		confirm bool
	)

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every indexed chunk, vector, and lexical entry for a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				ok, err := promptYesNo(cmd, fmt.Sprintf("clear the index at %s? [y/N] ", path))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "aborted")
					return nil
				}
			}

			sess, err := openSession(path, false, indexer.Config{})
			if err != nil {
				return err
			}
			defer sess.Close()

			if err := sess.Indexer().Clear(); err != nil {
				return fmt.Errorf("clear: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "index cleared")
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", ".", "project path")
	cmd.Flags().BoolVarP(&confirm, "yes", "y", false, "skip the confirmation prompt")

	return cmd
}

func promptYesNo(cmd *cobra.Command, prompt string) (bool, error) {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	scanner := bufio.NewScanner(cmd.InOrStdin())
	if !scanner.Scan() {
		return false, nil
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes", nil
}
