package main

import (
	"fmt"

	"github.com/gritvcs/grit/pkg/repo"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or set repository configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "user <name> <email>",
		Short: "Set the identity used in commit signatures",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			return r.SetUser(args[0], args[1])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remote <name> <url>",
		Short: "Set a named remote URL",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			return r.SetRemote(args[0], args[1])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print the current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			cfg, err := r.ReadConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if cfg.User.Name != "" || cfg.User.Email != "" {
				fmt.Fprintf(out, "user.name=%s\nuser.email=%s\n", cfg.User.Name, cfg.User.Email)
			}
			for name, url := range cfg.Remotes {
				fmt.Fprintf(out, "remote.%s=%s\n", name, url)
			}
			return nil
		},
	})

	return cmd
}
