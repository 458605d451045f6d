package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "signalbot",
	Short: "NSE equity signal pipeline",
	Long: `signalbot syncs NSE candle history from the market-data vendor,
scores symbols through the weighted multi-indicator strategy, enriches
BUY signals with news sentiment, and broadcasts them to Telegram
subscribers.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
