package sentiment

import (
	"strconv"
	"strings"

	"nse-signal-bot/internal/strategy"
)

// parseSentiment reads the four-field sentiment reply. Unparseable fields
// keep their defaults; confidence and impact are clamped to their ranges.
func parseSentiment(text string) *strategy.Sentiment {
	result := &strategy.Sentiment{Label: "neutral"}

	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "SENTIMENT:"):
			result.Label = strings.ToLower(fieldValue(line))
		case strings.HasPrefix(line, "CONFIDENCE:"):
			if v, ok := parseNumber(fieldValue(line)); ok {
				result.Confidence = clampFloat(v, 0, 100)
			}
		case strings.HasPrefix(line, "IMPACT:"):
			if v, ok := parseNumber(fieldValue(line)); ok {
				result.Impact = clampFloat(v, -20, 20)
			}
		case strings.HasPrefix(line, "SUMMARY:"):
			result.Summary = fieldValue(line)
		}
	}
	return result
}

// technicalFieldPrefixes are the schema fields that terminate a running
// REASONING capture.
var technicalFieldPrefixes = []string{
	"STRENGTH:", "PREDICTION:", "TIMEFRAME:", "CONFIDENCE:",
	"KEY_FACTORS:", "RECOMMENDATION:",
	"AI_ENTRY:", "AI_STOP:", "AI_TARGET1:", "AI_TARGET2:",
}

// parseTechnicalAnalysis reads the structured commentary reply. The parser
// tolerates field reordering and REASONING occurring before or after the
// level fields; missing fields keep documented defaults.
func parseTechnicalAnalysis(text string) *strategy.TechnicalAnalysis {
	result := &strategy.TechnicalAnalysis{
		Strength:       "moderate",
		Prediction:     "neutral",
		Timeframe:      "1 week",
		Confidence:     50,
		Recommendation: "hold",
	}

	inReasoning := false
	var reasoningLines []string

	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			if inReasoning {
				reasoningLines = append(reasoningLines, "")
			}
			continue
		}

		if inReasoning && startsNewField(line) {
			inReasoning = false
		}

		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(line, "STRENGTH:"):
			result.Strength = strings.ToLower(fieldValue(line))
		case strings.HasPrefix(line, "PREDICTION:"):
			result.Prediction = strings.ToLower(fieldValue(line))
		case strings.HasPrefix(line, "TIMEFRAME:"):
			result.Timeframe = fieldValue(line)
		case strings.HasPrefix(line, "CONFIDENCE:"):
			if v, ok := parseNumber(fieldValue(line)); ok {
				result.Confidence = clampFloat(v, 0, 100)
			}
		case strings.HasPrefix(line, "KEY_FACTORS:"):
			result.KeyFactors = splitFactors(fieldValue(line))
		case strings.HasPrefix(line, "RECOMMENDATION:"):
			result.Recommendation = strings.ToLower(fieldValue(line))
		case strings.HasPrefix(line, "REASONING:"):
			inReasoning = true
			if first := fieldValue(line); first != "" {
				reasoningLines = append(reasoningLines, first)
			}
			continue
		case inReasoning:
			reasoningLines = append(reasoningLines, line)
			continue
		}

		switch {
		case strings.HasPrefix(upper, "AI_ENTRY:"):
			result.AIEntry = parsePrice(fieldValue(line))
		case strings.HasPrefix(upper, "AI_STOP:"):
			result.AIStop = parsePrice(fieldValue(line))
		case strings.HasPrefix(upper, "AI_TARGET1:"):
			result.AITarget1 = parsePrice(fieldValue(line))
		case strings.HasPrefix(upper, "AI_TARGET2:"):
			result.AITarget2 = parsePrice(fieldValue(line))
		}
	}

	result.Reasoning = strings.TrimSpace(strings.Join(reasoningLines, "\n"))
	return result
}

func startsNewField(line string) bool {
	upper := strings.ToUpper(line)
	for _, prefix := range technicalFieldPrefixes {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return false
}

// fieldValue returns the trimmed text after the first colon.
func fieldValue(line string) string {
	_, after, found := strings.Cut(line, ":")
	if !found {
		return ""
	}
	return strings.TrimSpace(after)
}

// parsePrice reads a rupee price, stripping currency symbols and
// thousands separators. "N/A" and "None" yield nil.
func parsePrice(s string) *float64 {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "₹", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.Trim(s, "[]")
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "n/a", "none", "null":
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// parseNumber reads a possibly percent-suffixed number.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "[]")
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	// Some models answer "+12" or "12 points".
	if idx := strings.IndexByte(s, ' '); idx > 0 {
		s = s[:idx]
	}
	s = strings.TrimPrefix(s, "+")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func splitFactors(s string) []string {
	parts := strings.Split(s, ",")
	factors := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			factors = append(factors, p)
		}
	}
	return factors
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
