package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"nse-signal-bot/internal/market"
	"nse-signal-bot/internal/pipeline"
)

var (
	analyzeTimeframe string
	analyzeSentiment bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze SYMBOL",
	Short: "Analyze a single symbol and print the outcome",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&analyzeTimeframe, "timeframe", "1d", "Scoring timeframe")
	analyzeCmd.Flags().BoolVar(&analyzeSentiment, "sentiment", false, "Enrich with news sentiment")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	symbol := strings.ToUpper(args[0])
	if !strings.Contains(symbol, ".") {
		symbol += ".NS"
	}

	tf, err := market.ParseTimeframe(analyzeTimeframe)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, nil)
	if err != nil {
		return err
	}
	defer a.close()

	out, err := a.pipeline.Analyze(ctx, symbol, pipeline.Options{
		Timeframe: tf,
		Sentiment: analyzeSentiment,
	})
	if err != nil {
		return err
	}

	switch out.Status {
	case pipeline.StatusDone:
		printSignal(out)
	case pipeline.StatusNoSignal:
		fmt.Printf("%s: no BUY signal on %s\n", symbol, tf)
	case pipeline.StatusInsufficientData:
		fmt.Printf("%s: not enough %s history; run 'signalbot sync' first\n", symbol, tf)
	default:
		return fmt.Errorf("analysis failed (%s): %w", out.ErrKind, out.Err)
	}
	return nil
}

func printSignal(out *pipeline.Outcome) {
	sig := out.Signal
	fmt.Printf("%s %s signal\n", sig.Symbol, sig.Type)
	fmt.Printf("  Confidence: %.1f%%\n", sig.Confidence)
	if sig.OriginalConfidence != nil {
		fmt.Printf("  Strategy confidence: %.1f%%\n", *sig.OriginalConfidence)
	}
	fmt.Printf("  Entry: %.2f  Stop: %.2f (risk %.2f)\n", sig.EntryPrice, sig.StopLoss, sig.Risk)
	fmt.Printf("  Target 1: %.2f (reward %.2f)\n", sig.Target1, sig.Reward)
	if sig.Target2 != nil {
		fmt.Printf("  Target 2: %.2f\n", *sig.Target2)
	}
	if sig.Target3 != nil {
		fmt.Printf("  Target 3: %.2f\n", *sig.Target3)
	}
	fmt.Printf("  Risk:Reward: 1:%.1f\n", sig.RiskRewardRatio)
	if sig.Sentiment != nil {
		fmt.Printf("  News sentiment: %s (%.0f%%, impact %+.0f)\n",
			sig.Sentiment.Label, sig.Sentiment.Confidence, sig.Sentiment.Impact)
	}
	if sig.Consensus != "" {
		fmt.Printf("  Consensus: %s\n", sig.Consensus)
	}
}
