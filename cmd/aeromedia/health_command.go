package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"aeromedia/internal/config"
	"aeromedia/internal/store"
)

func newHealthCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check catalog database health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withStore(func(cfg *config.Config, st *store.Store) error {
				if err := st.Ping(cmd.Context()); err != nil {
					return fmt.Errorf("database ping failed: %w", err)
				}
				stats, err := st.Stats(cmd.Context())
				if err != nil {
					return fmt.Errorf("read catalog stats: %w", err)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Database:  %s\n", st.Path())
				fmt.Fprintf(out, "Packages:  %d\n", stats.Packages)
				fmt.Fprintf(out, "Items:     %d\n", stats.Items)
				fmt.Fprintf(out, "Purchases: %d\n", stats.Purchases)
				fmt.Fprintf(out, "Events:    %d\n", stats.Events)
				fmt.Fprintln(out, "Healthy")
				return nil
			})
		},
	}
}
