package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/gritvcs/grit/pkg/repo"
	"github.com/spf13/cobra"
)

func newLogCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show commit history from HEAD",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			head, err := r.ResolveRef("HEAD")
			if err != nil {
				if errors.Is(err, repo.ErrUnknownRef) {
					return fmt.Errorf("no commits yet")
				}
				return err
			}

			entries, err := r.Log(head, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, e := range entries {
				when := time.Unix(e.Commit.Author.When, 0).UTC().Format(time.RFC1123)
				fmt.Fprintf(out, "commit %s\n", e.Hash)
				fmt.Fprintf(out, "Author: %s <%s>\n", e.Commit.Author.Name, e.Commit.Author.Email)
				fmt.Fprintf(out, "Date:   %s\n\n", when)
				fmt.Fprintf(out, "    %s\n\n", firstLine(e.Commit.Message))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "max-count", "n", 0, "limit the number of commits shown")
	return cmd
}
