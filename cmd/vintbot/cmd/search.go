package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ncoulthurst/VintBot/internal/config"
	"github.com/ncoulthurst/VintBot/internal/vinted"
)

func searchCommand() *cobra.Command {
	var (
		perPage  int
		priceMax float64
		currency string
	)

	searchCmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Run a one-off catalog search",
		Long:  "Searches the Vinted catalog directly and prints the newest matching listings.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, args[0], perPage, priceMax, currency)
		},
	}
	searchCmd.Flags().IntVar(&perPage, "limit", 20, "maximum number of results")
	searchCmd.Flags().Float64Var(&priceMax, "price-max", 0, "price ceiling (0 = no ceiling)")
	searchCmd.Flags().StringVar(&currency, "currency", "", "price currency code")

	return searchCmd
}

func runSearch(cmd *cobra.Command, query string, perPage int, priceMax float64, currency string) error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	session := vinted.NewCookieSessionProvider(
		cfg.Vinted.BaseURL,
		cfg.Vinted.UserAgent,
		vinted.WithSessionTTL(cfg.Vinted.SessionTTL),
	)
	client := vinted.NewAPIClient(session,
		vinted.WithBaseURL(cfg.Vinted.BaseURL),
		vinted.WithUserAgent(cfg.Vinted.UserAgent),
	)

	if currency == "" && len(cfg.Searches) > 0 {
		currency = cfg.Searches[0].Currency
	}

	page, err := client.Search(cmd.Context(), vinted.SearchRequest{
		Query:    query,
		PerPage:  perPage,
		PriceMax: priceMax,
		Currency: currency,
	})
	if err != nil {
		return fmt.Errorf("searching catalog: %w", err)
	}

	items := vinted.ToItems(page.Items)
	if jsonOutput() {
		return outputJSON(items)
	}

	if len(items) == 0 {
		fmt.Println("no results")
		return nil
	}

	if err := printItemsTable(items); err != nil {
		return err
	}
	if page.HasMore {
		fmt.Println("(more results available)")
	}
	return nil
}
