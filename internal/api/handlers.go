package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"nse-signal-bot/internal/market"
	"nse-signal-bot/internal/pipeline"
	"nse-signal-bot/internal/strategy"
	candlesync "nse-signal-bot/internal/sync"
)

// SyncRequest triggers a candle sync batch. An empty symbol list syncs the
// whole active universe.
type SyncRequest struct {
	Symbols    []string `json:"symbols"`
	Timeframes []string `json:"timeframes"`
	Mode       string   `json:"mode"`
}

// SignalsRequest triggers a signal batch.
type SignalsRequest struct {
	Symbols   []string `json:"symbols"`
	Timeframe string   `json:"timeframe"`
	Sentiment bool     `json:"sentiment"`
	Broadcast bool     `json:"broadcast"`
}

func (s *Server) handleSync(c *gin.Context) {
	var req SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if req.Mode == "" {
		req.Mode = string(candlesync.ModeIncremental)
	}
	mode, err := candlesync.ParseMode(req.Mode)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	timeframes, err := parseTimeframes(req.Timeframes)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	symbols, err := s.symbols(c.Request.Context(), req.Symbols)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	tasks := make([]candlesync.Task, 0, len(symbols)*len(timeframes))
	for _, tf := range timeframes {
		for _, symbol := range symbols {
			tasks = append(tasks, candlesync.Task{Symbol: symbol, Timeframe: tf})
		}
	}

	summary := s.syncer.Run(c.Request.Context(), tasks, mode, nil)
	c.JSON(http.StatusOK, syncSummaryJSON(summary))
}

func (s *Server) handleSignals(c *gin.Context) {
	var req SignalsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	opts, ok := s.pipelineOptions(c, req.Timeframe, req.Sentiment, req.Broadcast)
	if !ok {
		return
	}

	symbols, err := s.symbols(c.Request.Context(), req.Symbols)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	summary, err := s.analyzer.Run(c.Request.Context(), symbols, opts)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, batchSummaryJSON(summary))
}

func (s *Server) handleAnalyze(c *gin.Context) {
	symbol := c.Param("symbol")

	sentiment := c.Query("sentiment") == "true"
	opts, ok := s.pipelineOptions(c, c.Query("timeframe"), sentiment, false)
	if !ok {
		return
	}

	out, err := s.analyzer.Analyze(c.Request.Context(), symbol, opts)
	if err == pipeline.ErrBusy {
		errorResponse(c, http.StatusConflict, "analysis already in progress for "+symbol)
		return
	}
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	if out.Status == pipeline.StatusFailed {
		status := http.StatusBadGateway
		switch out.ErrKind {
		case string(market.KindNotFound):
			status = http.StatusNotFound
		case string(market.KindRateLimited):
			status = http.StatusTooManyRequests
		}
		c.JSON(status, gin.H{
			"symbol":   out.Symbol,
			"status":   out.Status,
			"err_kind": out.ErrKind,
			"message":  out.Err.Error(),
		})
		return
	}

	resp := gin.H{
		"symbol": out.Symbol,
		"status": out.Status,
	}
	if out.Signal != nil {
		resp["signal"] = signalJSON(out.Signal)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) pipelineOptions(c *gin.Context, timeframe string, sentiment, broadcast bool) (pipeline.Options, bool) {
	opts := pipeline.Options{Sentiment: sentiment, Broadcast: broadcast}
	if timeframe != "" {
		tf, err := market.ParseTimeframe(timeframe)
		if err != nil {
			errorResponse(c, http.StatusBadRequest, err.Error())
			return opts, false
		}
		opts.Timeframe = tf
	}
	return opts, true
}

func syncSummaryJSON(summary *candlesync.Summary) gin.H {
	results := make([]gin.H, 0, len(summary.Results))
	for _, r := range summary.Results {
		item := gin.H{
			"symbol":    r.Symbol,
			"timeframe": r.Timeframe,
			"status":    r.Status,
			"rows":      r.Rows,
		}
		if r.Outcome != "" {
			item["outcome"] = r.Outcome
		}
		if r.ErrKind != "" {
			item["err_kind"] = r.ErrKind
		}
		results = append(results, item)
	}

	return gin.H{
		"total":         summary.Total,
		"succeeded":     summary.Succeeded,
		"failed":        summary.Failed,
		"up_to_date":    summary.UpToDate,
		"rows_inserted": summary.RowsInserted,
		"error_counts":  summary.ErrorCounts,
		"results":       results,
	}
}

func batchSummaryJSON(summary *pipeline.BatchSummary) gin.H {
	signals := make([]gin.H, 0, summary.SignalsGenerated)
	for _, out := range summary.Outcomes {
		if out.Signal != nil {
			signals = append(signals, signalJSON(out.Signal))
		}
	}

	return gin.H{
		"batch_id":          summary.BatchID,
		"timeframe":         summary.Timeframe,
		"symbols_analyzed":  summary.SymbolsAnalyzed,
		"signals_generated": summary.SignalsGenerated,
		"signals_sent":      summary.SignalsSent,
		"delivery_failures": summary.DeliveryFailures,
		"error_counts":      summary.ErrorCounts,
		"signals":           signals,
	}
}

func signalJSON(sig *strategy.Signal) gin.H {
	out := gin.H{
		"symbol":            sig.Symbol,
		"type":              sig.Type,
		"confidence":        sig.Confidence,
		"entry_price":       sig.EntryPrice,
		"stop_loss":         sig.StopLoss,
		"target1":           sig.Target1,
		"risk":              sig.Risk,
		"reward":            sig.Reward,
		"risk_reward_ratio": sig.RiskRewardRatio,
		"generated_at":      sig.GeneratedAt,
	}
	if sig.OriginalConfidence != nil {
		out["original_confidence"] = *sig.OriginalConfidence
	}
	if sig.Target2 != nil {
		out["target2"] = *sig.Target2
	}
	if sig.Target3 != nil {
		out["target3"] = *sig.Target3
	}
	if sig.Sentiment != nil {
		out["sentiment"] = gin.H{
			"label":      sig.Sentiment.Label,
			"confidence": sig.Sentiment.Confidence,
			"impact":     sig.Sentiment.Impact,
			"summary":    sig.Sentiment.Summary,
		}
	}
	if sig.Consensus != "" {
		out["consensus"] = sig.Consensus
	}
	return out
}
