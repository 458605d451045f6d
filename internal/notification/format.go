package notification

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"nse-signal-bot/internal/pipeline"
	"nse-signal-bot/internal/strategy"
)

// PriorityThreshold marks signals worth pushing ahead of the queue.
const PriorityThreshold = 90.0

// escapeMarkdown escapes the characters that break Telegram's Markdown
// parser inside free-form model text.
func escapeMarkdown(text string) string {
	r := strings.NewReplacer("*", "\\*", "_", "\\_", "[", "\\[", "`", "\\`")
	return r.Replace(text)
}

func confidenceEmoji(confidence float64) string {
	switch {
	case confidence > 90:
		return "\U0001f7e2" // green circle
	case confidence >= 75:
		return "\U0001f7e1" // yellow circle
	}
	return "⚪" // white circle
}

// FormatSignal renders the full Telegram message for a planned signal:
// header, sentiment block, strategy levels, AI commentary and the
// consensus line.
func FormatSignal(sig *strategy.Signal) string {
	var lines []string

	lines = append(lines, fmt.Sprintf("%s *%s - %s SIGNAL*", confidenceEmoji(sig.Confidence), sig.Symbol, sig.Type))
	if sig.Confidence > PriorityThreshold {
		lines = append(lines, "#priority")
	}
	lines = append(lines, "")

	if sig.Sentiment != nil {
		sent := sig.Sentiment
		original := sig.Confidence
		if sig.OriginalConfidence != nil {
			original = *sig.OriginalConfidence
		}
		lines = append(lines,
			fmt.Sprintf("%s *News Sentiment:* %s (%.0f%%)", sentimentEmoji(sent.Label), strings.ToUpper(sent.Label), sent.Confidence),
			fmt.Sprintf("*Strategy Confidence:* %.1f%%", original),
			fmt.Sprintf("*Final Confidence:* %.1f%% (%+.0f from news)", sig.Confidence, sent.Impact),
		)
	} else {
		lines = append(lines, fmt.Sprintf("*Confidence:* %.1f%%", sig.Confidence))
	}

	lines = append(lines,
		"",
		"*STRATEGY SIGNAL:*",
		fmt.Sprintf("Entry: ₹%.2f", sig.EntryPrice),
		fmt.Sprintf("Stop Loss: ₹%.2f (Risk: ₹%.2f)", sig.StopLoss, sig.Risk),
		fmt.Sprintf("Target 1: ₹%.2f (Reward: ₹%.2f)", sig.Target1, sig.Reward),
	)
	if sig.Target2 != nil {
		lines = append(lines, fmt.Sprintf("Target 2: ₹%.2f", *sig.Target2))
	}
	if sig.Target3 != nil {
		lines = append(lines, fmt.Sprintf("Target 3: ₹%.2f", *sig.Target3))
	}
	lines = append(lines, fmt.Sprintf("Risk:Reward: 1:%.1f", sig.RiskRewardRatio))

	if ta := sig.TechnicalAnalysis; ta != nil {
		lines = append(lines,
			"",
			"*AI ANALYSIS:*",
			fmt.Sprintf("Prediction: %s (%.0f%%)", strings.ToUpper(ta.Prediction), ta.Confidence),
			fmt.Sprintf("Recommendation: %s", strings.ToUpper(ta.Recommendation)),
			fmt.Sprintf("Timeframe: %s", ta.Timeframe),
			fmt.Sprintf("Strength: %s", strings.ToUpper(ta.Strength)),
		)
		if len(ta.KeyFactors) > 0 {
			lines = append(lines, fmt.Sprintf("Key Factors: %s", strings.Join(ta.KeyFactors, ", ")))
		}
		if ta.AIEntry != nil && ta.AIStop != nil && ta.AITarget1 != nil {
			lines = append(lines,
				"",
				"*AI SUGGESTED LEVELS:*",
				fmt.Sprintf("Entry: ₹%.2f", *ta.AIEntry),
				fmt.Sprintf("Stop: ₹%.2f", *ta.AIStop),
				fmt.Sprintf("Target 1: ₹%.2f", *ta.AITarget1),
			)
			if ta.AITarget2 != nil {
				lines = append(lines, fmt.Sprintf("Target 2: ₹%.2f", *ta.AITarget2))
			}
			if risk := *ta.AIEntry - *ta.AIStop; risk > 0 {
				lines = append(lines, fmt.Sprintf("R:R: 1:%.1f", (*ta.AITarget1-*ta.AIEntry)/risk))
			}
		}
		if ta.Reasoning != "" {
			lines = append(lines, "", "*AI REASONING:*", escapeMarkdown(ta.Reasoning))
		}
	}

	if consensus := consensusLine(sig); consensus != "" {
		lines = append(lines, "", consensus)
	}

	lines = append(lines, "", sig.GeneratedAt.Format("2006-01-02 15:04:05"))
	return strings.Join(lines, "\n")
}

func sentimentEmoji(label string) string {
	switch label {
	case "bullish":
		return "\U0001f7e2"
	case "bearish":
		return "\U0001f534"
	}
	return "⚪"
}

func consensusLine(sig *strategy.Signal) string {
	if sig.TechnicalAnalysis == nil {
		return ""
	}
	ta := sig.TechnicalAnalysis
	switch sig.Consensus {
	case "STRONG_CONSENSUS":
		return "✅ *STRONG CONSENSUS:* Both Strategy & AI agree - BUY"
	case "MODERATE":
		return fmt.Sprintf("⚠️ *MODERATE:* Both bullish, AI suggests %s", strings.ToUpper(ta.Recommendation))
	case "CONFLICT":
		return fmt.Sprintf("⚠️ *CONFLICT:* Strategy BUY, AI %s", strings.ToUpper(ta.Prediction))
	}
	return ""
}

// FormatSummary renders the end-of-batch digest.
func FormatSummary(batch *pipeline.BatchSummary) string {
	date := time.Now().Format("2006-01-02")

	var signals []*strategy.Signal
	for _, out := range batch.Outcomes {
		if out.Signal != nil {
			signals = append(signals, out.Signal)
		}
	}

	if len(signals) == 0 {
		return fmt.Sprintf("*Signal Summary (%s)*\nDate: %s\n\nNo signals generated.", batch.Timeframe, date)
	}

	var high, med, low int
	var symbols []string
	for _, sig := range signals {
		switch {
		case sig.Confidence > 90:
			high++
		case sig.Confidence >= 75:
			med++
		default:
			low++
		}
		if len(symbols) < 5 {
			symbols = append(symbols, sig.Symbol)
		}
	}
	symbolList := strings.Join(symbols, ", ")
	if len(signals) > 5 {
		symbolList += fmt.Sprintf(" +%d more", len(signals)-5)
	}

	lines := []string{
		fmt.Sprintf("*Signal Summary (%s)*", batch.Timeframe),
		fmt.Sprintf("Date: %s", date),
		"",
		fmt.Sprintf("Symbols Analyzed: %d", batch.SymbolsAnalyzed),
		fmt.Sprintf("Total Signals: *%d*", len(signals)),
		fmt.Sprintf("High Confidence (>90%%): %d", high),
		fmt.Sprintf("Medium Confidence (75-90%%): %d", med),
		fmt.Sprintf("Low Confidence (<75%%): %d", low),
		"",
		fmt.Sprintf("Symbols: %s", symbolList),
	}

	if len(batch.ErrorCounts) > 0 {
		kinds := make([]string, 0, len(batch.ErrorCounts))
		for kind := range batch.ErrorCounts {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)
		lines = append(lines, "")
		for _, kind := range kinds {
			lines = append(lines, fmt.Sprintf("Errors (%s): %d", kind, batch.ErrorCounts[kind]))
		}
	}
	return strings.Join(lines, "\n")
}
