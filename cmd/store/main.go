package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "store",
	Short: "Telegram Mini App storefront backend",
	Long: `store runs the HTTP API behind the Telegram Mini App storefront,
the companion bot that opens it, and the database migrations.
Configuration is read from the environment and an optional .env file.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
