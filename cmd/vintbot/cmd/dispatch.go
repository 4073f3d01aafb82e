package cmd

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ncoulthurst/VintBot/internal/config"
	"github.com/ncoulthurst/VintBot/internal/notify"
	"github.com/ncoulthurst/VintBot/internal/route"
	domain "github.com/ncoulthurst/VintBot/pkg/types"
)

func dispatchCommand() *cobra.Command {
	var title string

	dispatchCmd := &cobra.Command{
		Use:   "dispatch [channel]",
		Short: "Send a test embed to a configured channel",
		Long:  "Posts a sample listing embed to the named channel's webhook to verify wiring end to end.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDispatch(cmd, args[0], title)
		},
	}
	dispatchCmd.Flags().StringVar(&title, "title", "VintBot test listing", "title for the test embed")

	return dispatchCmd
}

func runDispatch(cmd *cobra.Command, channelName, title string) error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if !cfg.Discord.Enabled {
		return fmt.Errorf("discord is disabled in config")
	}

	table, err := route.Load(cfg.Channels.Path)
	if err != nil {
		return fmt.Errorf("loading channel table: %w", err)
	}

	ch, ok := table.Channel(channelName)
	if !ok {
		names := make([]string, 0, table.Len())
		for _, e := range table.Entries() {
			names = append(names, e.Name)
		}
		return fmt.Errorf("unknown channel %q, configured: %s", channelName, strings.Join(names, ", "))
	}

	notifier := notify.NewDiscordNotifier(
		notify.WithUsername(cfg.Discord.Username),
		notify.WithHTTPClient(&http.Client{Timeout: cfg.Discord.Timeout}),
	)

	payload := notify.ItemPayload{
		SearchName: "test-dispatch",
		Item: domain.Item{
			ID:       1,
			Title:    title,
			Brand:    ch.Name,
			Size:     "M",
			Status:   "Very good",
			Price:    19.99,
			Currency: "GBP",
			ItemURL:  "https://www.vinted.co.uk/items/1",
			ListedAt: time.Now().UTC(),
			Seller: domain.Seller{
				Login:         "vintbot",
				Rating:        5,
				FeedbackCount: 1,
			},
			Description: "Test dispatch. If you can read this, the webhook works.",
		},
	}

	ref, err := notifier.Dispatch(cmd.Context(), ch, payload)
	if err != nil {
		return fmt.Errorf("dispatching test embed: %w", err)
	}

	if ref != nil && ref.MessageID != "" {
		fmt.Printf("dispatched to %s (message %s)\n", ch.Name, ref.MessageID)
	} else {
		fmt.Printf("dispatched to %s\n", ch.Name)
	}
	return nil
}
