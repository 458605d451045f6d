package sentiment

import (
	"fmt"
	"strings"

	"nse-signal-bot/internal/market"
	"nse-signal-bot/internal/strategy"
)

// sentimentPrompt asks for a strict four-field verdict over the top
// headlines.
func sentimentPrompt(symbol string, headlines []Headline) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the following recent news headlines for %s stock and determine the overall sentiment:\n\n", symbol)

	limit := len(headlines)
	if limit > 5 {
		limit = 5
	}
	for _, h := range headlines[:limit] {
		fmt.Fprintf(&b, "- %s (%s)\n", h.Title, h.Publisher)
	}

	b.WriteString(`
Provide your analysis in this exact format:
SENTIMENT: [bullish/bearish/neutral]
CONFIDENCE: [0-100]
IMPACT: [-20 to +20] (negative for bearish, positive for bullish)
SUMMARY: [2-3 sentence explanation]

Focus on:
1. Overall market sentiment (bullish/bearish/neutral)
2. Confidence level (0-100)
3. Expected price impact (-20 to +20 points to adjust signal confidence)
4. Brief summary of key factors
`)
	return b.String()
}

// technicalPrompt embeds the candle tail, fundamentals and sentiment block
// along with a strict response schema.
func technicalPrompt(sig *strategy.Signal, candles []market.Candle) string {
	var b strings.Builder

	numCandles := len(candles)
	dateRange := ""
	if numCandles > 0 {
		dateRange = fmt.Sprintf(" from %s to %s",
			candles[0].Time.Format("2006-01-02"),
			candles[numCandles-1].Time.Format("2006-01-02"))
	}

	fmt.Fprintf(&b, "You are a professional technical analyst. Analyze %s and provide independent trade recommendations.\n\n", sig.Symbol)
	fmt.Fprintf(&b, "**DATA SCOPE:**\nYou have EXACTLY %d candles%s.\n", numCandles, dateRange)
	b.WriteString("When referencing specific events, USE THE EXACT DATES from the data (format: YYYY-MM-DD).\n\n")
	fmt.Fprintf(&b, "**CURRENT PRICE:** ₹%.2f\n\n", sig.EntryPrice)

	if numCandles > 0 {
		fmt.Fprintf(&b, "**HISTORICAL PRICE DATA (%d candles, tab-separated: Date|Open|High|Low|Close|Volume):**\n", numCandles)
		for _, c := range candles {
			fmt.Fprintf(&b, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%d\n",
				c.Time.Format("2006-01-02"), c.Open, c.High, c.Low, c.Close, c.Volume)
		}
		b.WriteString("\n")
	}

	if sig.Analysis != nil && sig.Analysis.FundamentalNotes != nil {
		b.WriteString("**FUNDAMENTAL FACTORS:**\n")
		for _, note := range sig.Analysis.FundamentalNotes {
			fmt.Fprintf(&b, "- %s\n", note)
		}
		b.WriteString("\n")
	}

	if sig.Sentiment != nil {
		fmt.Fprintf(&b, "**NEWS SENTIMENT:**\n- Sentiment: %s (%.0f%% confidence)\n- Summary: %s\n\n",
			strings.ToUpper(sig.Sentiment.Label), sig.Sentiment.Confidence, sig.Sentiment.Summary)
	}

	b.WriteString(`**Analysis Guidelines:**
1. Identify support/resistance from swing highs/lows (reference exact dates)
2. Set stop-loss below recent support and targets at resistance levels
3. Consider risk:reward ratio (minimum 1:1.5)
4. Keep REASONING concise (1200-1500 characters) and cite exact dates

Provide analysis in this EXACT format:
STRENGTH: [weak/moderate/strong]
PREDICTION: [bullish/bearish/neutral]
TIMEFRAME: [1-3 days/1 week/2 weeks]
KEY_FACTORS: [2-3 key technical factors]
RECOMMENDATION: [buy/hold/avoid]
AI_ENTRY: [price OR 'N/A']
AI_STOP: [price OR 'N/A']
AI_TARGET1: [price OR 'N/A']
AI_TARGET2: [price OR 'None' OR 'N/A']
REASONING: [trend, support/resistance, volume, level rationale and risk factors with YYYY-MM-DD dates]
`)
	return b.String()
}
