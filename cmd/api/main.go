package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "coin-ledger",
	Short: "Coin ledger service for the tutoring marketplace",
	Long: `Coin ledger keeps every account's coin balance as an append-only ledger,
sells coin packages through the payment gateway and debits coins once per
unlocked tutor contact, requirement or message thread.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
