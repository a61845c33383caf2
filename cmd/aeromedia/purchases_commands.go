package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"aeromedia/internal/config"
	"aeromedia/internal/store"
)

func newPurchasesCommand(cmdCtx *commandContext) *cobra.Command {
	purchasesCmd := &cobra.Command{
		Use:   "purchases",
		Short: "Inspect recorded purchases",
	}

	purchasesCmd.AddCommand(newPurchasesListCommand(cmdCtx))

	return purchasesCmd
}

func newPurchasesListCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List purchases, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withStore(func(cfg *config.Config, st *store.Store) error {
				purchases, err := st.ListPurchases(cmd.Context())
				if err != nil {
					return err
				}
				if len(purchases) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No purchases recorded")
					return nil
				}

				rows := make([][]string, 0, len(purchases))
				for _, p := range purchases {
					rows = append(rows, []string{
						p.CreatedAt.Local().Format(time.DateTime),
						p.Email,
						p.PackageID,
						formatAmount(p.AmountCents, p.Currency),
						string(p.Status),
					})
				}
				table := renderTable(
					[]string{"When", "Email", "Package", "Amount", "Status"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}
