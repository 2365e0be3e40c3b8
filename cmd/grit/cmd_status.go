package main

import (
	"fmt"
	"strings"

	"github.com/gritvcs/grit/pkg/repo"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show working tree status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			entries, err := r.Status()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			branch := "main"
			noCommits := true
			head, err := r.Head()
			if err == nil {
				if strings.HasPrefix(head, "refs/heads/") {
					branch = strings.TrimPrefix(head, "refs/heads/")
				}
				if _, resolveErr := r.ResolveRef("HEAD"); resolveErr == nil {
					noCommits = false
				}
			}

			if noCommits {
				fmt.Fprintf(out, "on %s (no commits yet)\n", branch)
			} else {
				fmt.Fprintf(out, "on %s\n", branch)
			}

			var staged, unstaged, untracked []string
			for _, e := range entries {
				if e.IndexStatus == repo.StatusUntracked && e.WorkStatus == repo.StatusUntracked {
					untracked = append(untracked, "  ? "+e.Path)
					continue
				}

				switch e.IndexStatus {
				case repo.StatusAdded:
					staged = append(staged, "  + "+e.Path)
				case repo.StatusModified:
					staged = append(staged, "  ~ "+e.Path)
				case repo.StatusDeleted:
					staged = append(staged, "  - "+e.Path)
				}

				switch e.WorkStatus {
				case repo.StatusModified:
					unstaged = append(unstaged, "  ~ "+e.Path)
				case repo.StatusDeleted:
					unstaged = append(unstaged, "  - "+e.Path)
				}
			}

			if len(staged) > 0 {
				fmt.Fprintln(out, "staged:")
				for _, l := range staged {
					fmt.Fprintln(out, l)
				}
			}
			if len(unstaged) > 0 {
				fmt.Fprintln(out, "unstaged:")
				for _, l := range unstaged {
					fmt.Fprintln(out, l)
				}
			}
			if len(untracked) > 0 {
				fmt.Fprintln(out, "untracked:")
				for _, l := range untracked {
					fmt.Fprintln(out, l)
				}
			}
			if len(staged) == 0 && len(unstaged) == 0 && len(untracked) == 0 {
				fmt.Fprintln(out, "nothing to commit, working tree clean")
			}
			return nil
		},
	}
}
