package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"aeromedia/internal/config"
	"aeromedia/internal/store"
	"aeromedia/internal/textutil"
)

func newPackagesCommand(cmdCtx *commandContext) *cobra.Command {
	packagesCmd := &cobra.Command{
		Use:   "packages",
		Short: "Manage media packages",
	}

	packagesCmd.AddCommand(newPackagesListCommand(cmdCtx))
	packagesCmd.AddCommand(newPackagesAddCommand(cmdCtx))
	packagesCmd.AddCommand(newPackagesShowCommand(cmdCtx))
	packagesCmd.AddCommand(newPackagesExpireCommand(cmdCtx))

	return packagesCmd
}

func newPackagesListCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all packages",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withStore(func(cfg *config.Config, st *store.Store) error {
				packages, err := st.ListPackages(cmd.Context())
				if err != nil {
					return err
				}
				if len(packages) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No packages found")
					return nil
				}

				now := time.Now()
				rows := make([][]string, 0, len(packages))
				for _, pkg := range packages {
					price := "free"
					if pkg.PriceCents != nil {
						price = formatAmount(*pkg.PriceCents, "")
					}
					status := "active"
					switch {
					case pkg.Expired(now):
						status = "expired"
					case pkg.IsComp:
						status = "comp"
					}
					rows = append(rows, []string{
						pkg.AccessCode,
						pkg.Title,
						pkg.FlightDate,
						price,
						status,
					})
				}
				table := renderTable(
					[]string{"Code", "Title", "Flight", "Price", "Status"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func newPackagesAddCommand(cmdCtx *commandContext) *cobra.Command {
	var (
		accessCode string
		title      string
		flightDate string
		passengers []string
		priceCents int64
		comp       bool
		expiresIn  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a new package",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withStore(func(cfg *config.Config, st *store.Store) error {
				params := store.NewPackageParams{
					AccessCode:       strings.TrimSpace(accessCode),
					Title:            textutil.DisplayTitle(title),
					FlightDate:       strings.TrimSpace(flightDate),
					Passengers:       passengers,
					RequiresPurchase: priceCents > 0 && !comp,
					IsComp:           comp,
				}
				if priceCents > 0 {
					params.PriceCents = &priceCents
				}
				if expiresIn > 0 {
					params.ExpiresAt = time.Now().Add(expiresIn)
				}

				pkg, err := st.CreatePackage(cmd.Context(), params)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Created package %s\n", pkg.ID)
				fmt.Fprintf(out, "Access code: %s\n", pkg.AccessCode)
				if !pkg.ExpiresAt.IsZero() {
					fmt.Fprintf(out, "Expires: %s\n", pkg.ExpiresAt.Format(time.RFC3339))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&accessCode, "code", "", "Access code shared with the passengers")
	cmd.Flags().StringVar(&title, "title", "", "Package title")
	cmd.Flags().StringVar(&flightDate, "flight-date", "", "Flight date (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&passengers, "passenger", nil, "Passenger name (repeatable)")
	cmd.Flags().Int64Var(&priceCents, "price-cents", 0, "Price in cents; zero means free access")
	cmd.Flags().BoolVar(&comp, "comp", false, "Mark the package complimentary")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", 0, "Lifetime before the package expires (for example 2160h)")
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("expires-in")
	return cmd
}

func newPackagesShowCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <access-code>",
		Short: "Show a package and its media items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withStore(func(cfg *config.Config, st *store.Store) error {
				code := strings.TrimSpace(args[0])
				pkg, err := st.GetPackageByAccessCode(cmd.Context(), code)
				if err != nil {
					return err
				}
				if pkg == nil {
					return fmt.Errorf("no package with access code %q", code)
				}
				items, err := st.ItemsByPackage(cmd.Context(), pkg.ID)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Package:     %s\n", pkg.Title)
				fmt.Fprintf(out, "Access code: %s\n", pkg.AccessCode)
				fmt.Fprintf(out, "Flight date: %s\n", pkg.FlightDate)
				if len(pkg.Passengers) > 0 {
					fmt.Fprintf(out, "Passengers:  %s\n", pkg.DisplayPassengers())
				}
				if pkg.PriceCents != nil {
					fmt.Fprintf(out, "Price:       %s\n", formatAmount(*pkg.PriceCents, ""))
				}
				fmt.Fprintf(out, "Comp:        %s\n", yesNo(pkg.IsComp))
				fmt.Fprintf(out, "Expired:     %s\n", yesNo(pkg.Expired(time.Now())))

				if len(items) == 0 {
					fmt.Fprintln(out, "No media items")
					return nil
				}
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						item.FileName,
						string(item.FileType),
						humanize.IBytes(uint64(item.FileSize)),
						fmt.Sprintf("%d", item.DownloadCount),
					})
				}
				table := renderTable(
					[]string{"File", "Type", "Size", "Downloads"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
				)
				fmt.Fprintln(out, table)
				return nil
			})
		},
	}
}

func newPackagesExpireCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "expire <access-code>",
		Short: "Expire a package immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withStore(func(cfg *config.Config, st *store.Store) error {
				code := strings.TrimSpace(args[0])
				pkg, err := st.GetPackageByAccessCode(cmd.Context(), code)
				if err != nil {
					return err
				}
				if pkg == nil {
					return fmt.Errorf("no package with access code %q", code)
				}
				changed, err := st.ExpirePackage(cmd.Context(), pkg.ID)
				if err != nil {
					return err
				}
				if !changed {
					fmt.Fprintf(cmd.OutOrStdout(), "Package %s was already expired\n", pkg.AccessCode)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Expired package %s\n", pkg.AccessCode)
				return nil
			})
		},
	}
}

// formatAmount renders a cent amount as a decimal string, optionally suffixed
// with an ISO currency code.
func formatAmount(cents int64, currency string) string {
	value := fmt.Sprintf("%d.%02d", cents/100, cents%100)
	if currency != "" {
		return value + " " + strings.ToUpper(currency)
	}
	return value
}
