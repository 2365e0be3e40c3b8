package main

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gritvcs/grit/pkg/remote"
	"github.com/spf13/cobra"
)

func newCloneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clone <url> [directory]",
		Short: "Clone a repository over smart HTTP",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := args[0]

			dest := ""
			if len(args) == 2 {
				dest = args[1]
			} else {
				dest = path.Base(strings.TrimSuffix(strings.TrimRight(url, "/"), ".git"))
			}
			if strings.TrimSpace(dest) == "" || dest == "." || dest == "/" {
				return fmt.Errorf("cannot derive a destination directory from %q", url)
			}
			absDest, err := filepath.Abs(dest)
			if err != nil {
				return fmt.Errorf("resolve destination: %w", err)
			}
			if err := ensureEmptyDir(absDest); err != nil {
				return err
			}

			fmt.Fprintf(os.Stderr, "cloning into %q...\n", dest)
			_, err = remote.Clone(cmd.Context(), url, absDest, remote.CloneOptions{
				OnProgress: func(msg string) {
					fmt.Fprint(os.Stderr, msg)
				},
			})
			return err
		},
	}
}

// ensureEmptyDir creates dir if needed and verifies it contains nothing.
func ensureEmptyDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create destination %q: %w", dir, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read destination %q: %w", dir, err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("destination %q is not empty", dir)
	}
	return nil
}
