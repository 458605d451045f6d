package strategy

import (
	"time"

	"github.com/shopspring/decimal"
)

// SignalType identifies the kind of signal. The scored strategy only emits
// BUY; the enum leaves room for future types.
type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalNone SignalType = "NONE"
)

// CategoryScore is the per-category report of the scored strategy.
type CategoryScore struct {
	Score           float64  `json:"score"`
	ConditionsMet   int      `json:"conditions_met"`
	TotalConditions int      `json:"total_conditions"`
	Details         []string `json:"details"`
}

// Analysis aggregates the category reports and the composite numbers.
type Analysis struct {
	Trend            CategoryScore `json:"trend"`
	Momentum         CategoryScore `json:"momentum"`
	Volatility       CategoryScore `json:"volatility"`
	TechnicalScore   float64       `json:"technical_score"`
	FundamentalAdj   float64       `json:"fundamental_adjustment"`
	FundamentalNotes []string      `json:"fundamental_notes,omitempty"`
	StrongCategories int           `json:"strong_categories"`
}

// Sentiment is the news-derived enrichment block.
type Sentiment struct {
	Label      string  `json:"label"` // bullish, bearish, neutral
	Confidence float64 `json:"confidence"`
	Impact     float64 `json:"impact"`
	Summary    string  `json:"summary"`
}

// TechnicalAnalysis is the LLM commentary block. Level fields are nil when
// the model declined to provide them.
type TechnicalAnalysis struct {
	Strength       string   `json:"strength"`
	Prediction     string   `json:"prediction"`
	Confidence     float64  `json:"confidence"`
	Timeframe      string   `json:"timeframe"`
	KeyFactors     []string `json:"key_factors"`
	Recommendation string   `json:"recommendation"`
	AIEntry        *float64 `json:"ai_entry,omitempty"`
	AIStop         *float64 `json:"ai_stop,omitempty"`
	AITarget1      *float64 `json:"ai_target1,omitempty"`
	AITarget2      *float64 `json:"ai_target2,omitempty"`
	Reasoning      string   `json:"reasoning"`
}

// Signal is a fully-planned BUY recommendation. Targets beyond the first
// are optional. A signal is never persisted by the pipeline; sinks may.
type Signal struct {
	Symbol      string     `json:"symbol"`
	Type        SignalType `json:"signal_type"`
	GeneratedAt time.Time  `json:"timestamp"`

	Confidence         float64  `json:"confidence"`
	OriginalConfidence *float64 `json:"original_confidence,omitempty"`

	EntryPrice float64  `json:"entry_price"`
	StopLoss   float64  `json:"stop_loss"`
	Target1    float64  `json:"target1"`
	Target2    *float64 `json:"target2,omitempty"`
	Target3    *float64 `json:"target3,omitempty"`

	Risk            float64 `json:"risk"`
	Reward          float64 `json:"reward"`
	RiskRewardRatio float64 `json:"risk_reward_ratio"`

	Analysis          *Analysis          `json:"analysis,omitempty"`
	Sentiment         *Sentiment         `json:"sentiment,omitempty"`
	TechnicalAnalysis *TechnicalAnalysis `json:"technical_analysis,omitempty"`
	Consensus         string             `json:"consensus,omitempty"`
}

// Clone returns a deep copy so enrichment stages never mutate their input.
func (s *Signal) Clone() *Signal {
	out := *s
	out.OriginalConfidence = cloneFloat(s.OriginalConfidence)
	out.Target2 = cloneFloat(s.Target2)
	out.Target3 = cloneFloat(s.Target3)
	if s.Analysis != nil {
		a := *s.Analysis
		out.Analysis = &a
	}
	if s.Sentiment != nil {
		v := *s.Sentiment
		out.Sentiment = &v
	}
	if s.TechnicalAnalysis != nil {
		ta := *s.TechnicalAnalysis
		ta.AIEntry = cloneFloat(s.TechnicalAnalysis.AIEntry)
		ta.AIStop = cloneFloat(s.TechnicalAnalysis.AIStop)
		ta.AITarget1 = cloneFloat(s.TechnicalAnalysis.AITarget1)
		ta.AITarget2 = cloneFloat(s.TechnicalAnalysis.AITarget2)
		out.TechnicalAnalysis = &ta
	}
	return &out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Round2 rounds a price to two decimals, half away from zero.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
