// Package cmd implements the vintbot CLI commands.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "vintbot",
	Short: "Watch Vinted and post new listings to Discord",
	Long: "vintbot polls the Vinted catalog for newly listed items,\n" +
		"deduplicates what it has already handled, routes each listing\n" +
		"to a Discord channel by brand, and posts a rich embed there.",
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "config.yaml", "config file path")
	rootCmd.PersistentFlags().String("output", "table", "output format (table, json)")

	viper.SetEnvPrefix("VINTBOT")
	viper.AutomaticEnv()

	cobra.CheckErr(viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")))
	cobra.CheckErr(viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output")))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(searchCommand())
	rootCmd.AddCommand(channelsCommand())
	rootCmd.AddCommand(dispatchCommand())
	rootCmd.AddCommand(versionCommand())
}

// configPath resolves the config file path from the flag or the
// VINTBOT_CONFIG environment variable.
func configPath() string {
	return viper.GetString("config")
}

func jsonOutput() bool {
	return viper.GetString("output") == "json"
}
