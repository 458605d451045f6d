package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"nse-signal-bot/config"
	"nse-signal-bot/internal/market"
	"nse-signal-bot/internal/pipeline"
)

var (
	signalsTimeframe     string
	signalsSymbols       []string
	signalsMinConfidence float64
	signalsSentiment     bool
	signalsBroadcast     bool
)

var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "Run the signal pipeline over the tracked universe",
	RunE:  runSignals,
}

func init() {
	rootCmd.AddCommand(signalsCmd)
	signalsCmd.Flags().StringVar(&signalsTimeframe, "timeframe", "1d", "Scoring timeframe")
	signalsCmd.Flags().StringSliceVar(&signalsSymbols, "symbols", nil, "Symbols to analyze (default: active universe)")
	signalsCmd.Flags().Float64Var(&signalsMinConfidence, "min-confidence", 0, "Minimum BUY confidence (overrides config)")
	signalsCmd.Flags().BoolVar(&signalsSentiment, "sentiment", false, "Enrich signals with news sentiment")
	signalsCmd.Flags().BoolVar(&signalsBroadcast, "broadcast", false, "Broadcast signals to subscribers")
}

func runSignals(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tf, err := market.ParseTimeframe(signalsTimeframe)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, func(cfg *config.Config) {
		if signalsMinConfidence > 0 {
			cfg.Strategy.MinConfidence = signalsMinConfidence
		}
	})
	if err != nil {
		return err
	}
	defer a.close()

	symbols, err := a.universe(ctx, signalsSymbols)
	if err != nil {
		return err
	}

	summary, err := a.pipeline.Run(ctx, symbols, pipeline.Options{
		Timeframe: tf,
		Sentiment: signalsSentiment,
		Broadcast: signalsBroadcast,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Batch %s: %d analyzed, %d signals, %d sent, %d delivery failures\n",
		summary.BatchID, summary.SymbolsAnalyzed, summary.SignalsGenerated,
		summary.SignalsSent, summary.DeliveryFailures)
	for _, out := range summary.Outcomes {
		if out.Signal == nil {
			continue
		}
		sig := out.Signal
		fmt.Printf("  %s  confidence=%.1f entry=%.2f stop=%.2f target=%.2f\n",
			sig.Symbol, sig.Confidence, sig.EntryPrice, sig.StopLoss, sig.Target1)
	}
	for kind, count := range summary.ErrorCounts {
		fmt.Printf("  errors (%s): %d\n", kind, count)
	}
	return nil
}
