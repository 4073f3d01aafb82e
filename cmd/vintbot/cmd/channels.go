package cmd

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ncoulthurst/VintBot/internal/config"
	"github.com/ncoulthurst/VintBot/internal/route"
)

func channelsCommand() *cobra.Command {
	var check bool

	channelsCmd := &cobra.Command{
		Use:   "channels",
		Short: "Show the brand-to-channel routing table",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runChannels(check)
		},
	}
	channelsCmd.Flags().BoolVar(&check, "check", false, "validate webhook URLs")

	return channelsCmd
}

func runChannels(check bool) error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	table, err := route.Load(cfg.Channels.Path)
	if err != nil {
		return fmt.Errorf("loading channel table: %w", err)
	}

	if check {
		return checkWebhooks(table.Entries())
	}

	if jsonOutput() {
		return outputJSON(table.Entries())
	}
	return printChannelsTable(table.Entries())
}

func checkWebhooks(entries []route.Entry) error {
	var bad int
	for i := range entries {
		e := &entries[i]
		if problem := webhookProblem(e.WebhookURL); problem != "" {
			fmt.Printf("FAIL  %s: %s\n", e.Name, problem)
			bad++
			continue
		}
		fmt.Printf("ok    %s\n", e.Name)
	}
	if bad > 0 {
		return fmt.Errorf("%d of %d webhooks failed validation", bad, len(entries))
	}
	fmt.Printf("all %d webhooks look valid\n", len(entries))
	return nil
}

func webhookProblem(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Sprintf("unparseable url: %v", err)
	}
	if u.Scheme != "https" {
		return fmt.Sprintf("scheme %q, want https", u.Scheme)
	}
	if u.Host == "" {
		return "missing host"
	}
	if strings.Contains(raw, "${") {
		return "unexpanded environment variable"
	}
	return ""
}
