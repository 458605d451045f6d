package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"nse-signal-bot/internal/market"
	candlesync "nse-signal-bot/internal/sync"
)

var (
	syncMode         string
	syncTimeframes   []string
	syncSymbols      []string
	syncFundamentals bool
	syncDeriveDays   int
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile local candle history with the vendor",
	Long: `Syncs OHLCV history for the tracked universe. Incremental mode skips
series whose latest candle is fresh relative to the last market session;
full mode refetches the maximum vendor window; force refetches the
incremental window regardless of staleness.

After an intraday (5m/15m) sync the session-aligned 75m series is derived
from the stored candles.`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().StringVar(&syncMode, "mode", "incremental", "Sync mode: full, incremental, force")
	syncCmd.Flags().StringSliceVar(&syncTimeframes, "timeframes", []string{"1d"}, "Timeframes to sync")
	syncCmd.Flags().StringSliceVar(&syncSymbols, "symbols", nil, "Symbols to sync (default: active universe)")
	syncCmd.Flags().BoolVar(&syncFundamentals, "fundamentals", false, "Also refresh fundamentals")
	syncCmd.Flags().IntVar(&syncDeriveDays, "derive-days", 60, "Trailing window for 75m derivation")
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mode, err := candlesync.ParseMode(syncMode)
	if err != nil {
		return err
	}

	timeframes := make([]market.Timeframe, 0, len(syncTimeframes))
	for _, name := range syncTimeframes {
		tf, err := market.ParseTimeframe(name)
		if err != nil {
			return err
		}
		timeframes = append(timeframes, tf)
	}

	a, err := newApp(ctx, nil)
	if err != nil {
		return err
	}
	defer a.close()

	symbols, err := a.universe(ctx, syncSymbols)
	if err != nil {
		return err
	}

	tasks := make([]candlesync.Task, 0, len(symbols)*len(timeframes))
	for _, tf := range timeframes {
		for _, symbol := range symbols {
			tasks = append(tasks, candlesync.Task{Symbol: symbol, Timeframe: tf})
		}
	}

	summary := a.scheduler.Run(ctx, tasks, mode, func(result candlesync.TaskResult, completed, total int) {
		a.log.Info().Str("symbol", result.Symbol).Str("timeframe", string(result.Timeframe)).
			Str("status", result.Status).Int("rows", result.Rows).
			Msgf("sync progress %d/%d", completed, total)
	})

	fmt.Printf("Sync complete: %d tasks, %d succeeded (%d up to date), %d failed, %d rows inserted\n",
		summary.Total, summary.Succeeded, summary.UpToDate, summary.Failed, summary.RowsInserted)
	for kind, count := range summary.ErrorCounts {
		fmt.Printf("  errors (%s): %d\n", kind, count)
	}

	for _, tf := range timeframes {
		if tf != market.Timeframe5m && tf != market.Timeframe15m {
			continue
		}
		derived, err := a.deriver.Derive75m(ctx, symbols, tf, syncDeriveDays)
		if err != nil {
			return err
		}
		fmt.Printf("Derived %d 75m candles from %s history\n", derived, tf)
	}

	if syncFundamentals {
		updated, err := a.scheduler.SyncFundamentals(ctx, symbols)
		if err != nil {
			return err
		}
		fmt.Printf("Fundamentals refreshed for %d symbols\n", updated)
	}
	return nil
}
