// Package main is the entry point for vintbot.
package main

import (
	"os"

	"github.com/ncoulthurst/VintBot/cmd/vintbot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
