package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// Client fetches OHLCV candles and fundamentals from the vendor chart API.
// A polite minimum delay between requests is enforced per client instance,
// and a circuit breaker trips after repeated transport failures.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker

	politeDelay time.Duration
	mu          sync.Mutex
	lastRequest time.Time

	log zerolog.Logger
}

// ClientConfig carries the tunables for a Client.
type ClientConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	PoliteDelay    time.Duration
}

// NewClient creates a vendor client. Zero-valued config fields fall back
// to sensible defaults.
func NewClient(cfg ClientConfig, log zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://query1.finance.yahoo.com"
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	if cfg.PoliteDelay == 0 {
		cfg.PoliteDelay = 1500 * time.Millisecond
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "market-vendor",
		MaxRequests: 1,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		baseURL:     cfg.BaseURL,
		httpClient:  &http.Client{Timeout: cfg.RequestTimeout},
		breaker:     breaker,
		politeDelay: cfg.PoliteDelay,
		log:         log,
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// vendorInterval maps a timeframe to the chart API interval token.
func vendorInterval(tf Timeframe) (string, error) {
	switch tf {
	case Timeframe1m:
		return "1m", nil
	case Timeframe5m:
		return "5m", nil
	case Timeframe15m:
		return "15m", nil
	case Timeframe30m:
		return "30m", nil
	case Timeframe1h:
		return "60m", nil
	case Timeframe1d:
		return "1d", nil
	case Timeframe1w:
		return "1wk", nil
	}
	return "", fmt.Errorf("timeframe %s is not served by the vendor", tf)
}

// clampPeriod caps the requested window at the timeframe's vendor limit.
func clampPeriod(tf Timeframe, period Period) Period {
	limit := tf.MaxPeriod()
	order := map[Period]int{Period7d: 0, Period60d: 1, Period2y: 2, Period5y: 3, PeriodMax: 4}
	if order[period] > order[limit] {
		return limit
	}
	return period
}

// FetchCandles returns a contiguous candle block ending at now, ascending
// in time. Empty payloads are treated as vendor throttling.
func (c *Client) FetchCandles(ctx context.Context, symbol string, tf Timeframe, period Period) ([]Candle, error) {
	interval, err := vendorInterval(tf)
	if err != nil {
		return nil, newError(KindOther, symbol, err)
	}
	period = clampPeriod(tf, period)

	url := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s", c.baseURL, symbol, interval, period)
	body, err := c.get(ctx, symbol, url)
	if err != nil {
		return nil, err
	}

	var resp chartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, newError(KindMalformed, symbol, fmt.Errorf("error decoding chart payload: %w", err))
	}
	if resp.Chart.Error != nil {
		if resp.Chart.Error.Code == "Not Found" {
			return nil, newError(KindNotFound, symbol, fmt.Errorf("%s", resp.Chart.Error.Description))
		}
		return nil, newError(KindOther, symbol, fmt.Errorf("vendor error %s", resp.Chart.Error.Code))
	}
	if len(resp.Chart.Result) == 0 {
		return nil, newError(KindNotFound, symbol, fmt.Errorf("no chart result"))
	}

	result := resp.Chart.Result[0]
	// A well-formed but empty series is the vendor's soft-ban signature.
	if len(result.Timestamp) == 0 {
		return nil, newError(KindRateLimited, symbol, fmt.Errorf("empty candle payload"))
	}
	if len(result.Indicators.Quote) == 0 {
		return nil, newError(KindMalformed, symbol, fmt.Errorf("missing quote block"))
	}

	quote := result.Indicators.Quote[0]
	candles := make([]Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Open) || quote.Open[i] == nil || quote.High[i] == nil ||
			quote.Low[i] == nil || quote.Close[i] == nil {
			continue
		}
		var vol int64
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			vol = *quote.Volume[i]
		}
		candle := Candle{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   *quote.Open[i],
			High:   *quote.High[i],
			Low:    *quote.Low[i],
			Close:  *quote.Close[i],
			Volume: vol,
		}
		if !candle.Valid() {
			continue
		}
		candles = append(candles, candle)
	}
	if len(candles) == 0 {
		return nil, newError(KindRateLimited, symbol, fmt.Errorf("all candle rows null"))
	}
	return candles, nil
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []map[string]json.RawMessage `json:"result"`
		Error  *struct {
			Code string `json:"code"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

// FetchFundamentals returns the current fundamentals snapshot for a symbol.
func (c *Client) FetchFundamentals(ctx context.Context, symbol string) (*Fundamentals, error) {
	url := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=summaryDetail,financialData,defaultKeyStatistics,assetProfile,price", c.baseURL, symbol)
	body, err := c.get(ctx, symbol, url)
	if err != nil {
		return nil, err
	}

	var resp quoteSummaryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, newError(KindMalformed, symbol, fmt.Errorf("error decoding fundamentals payload: %w", err))
	}
	if resp.QuoteSummary.Error != nil {
		return nil, newError(KindNotFound, symbol, fmt.Errorf("vendor error %s", resp.QuoteSummary.Error.Code))
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return nil, newError(KindRateLimited, symbol, fmt.Errorf("empty fundamentals payload"))
	}

	modules := resp.QuoteSummary.Result[0]
	fund := &Fundamentals{Symbol: symbol, Raw: body, UpdatedAt: time.Now().UTC()}
	fund.TrailingPE = rawNumber(modules, "summaryDetail", "trailingPE")
	fund.ForwardPE = rawNumber(modules, "summaryDetail", "forwardPE")
	fund.DividendYield = rawNumber(modules, "summaryDetail", "dividendYield")
	fund.MarketCap = rawNumber(modules, "summaryDetail", "marketCap")
	fund.Beta = rawNumber(modules, "summaryDetail", "beta")
	fund.PriceToBook = rawNumber(modules, "defaultKeyStatistics", "priceToBook")
	fund.BookValue = rawNumber(modules, "defaultKeyStatistics", "bookValue")
	fund.ReturnOnEquity = rawNumber(modules, "financialData", "returnOnEquity")
	fund.DebtToEquity = rawNumber(modules, "financialData", "debtToEquity")
	fund.ProfitMargins = rawNumber(modules, "financialData", "profitMargins")
	fund.RevenueGrowth = rawNumber(modules, "financialData", "revenueGrowth")
	fund.CurrentPrice = rawNumber(modules, "financialData", "currentPrice")
	fund.Sector = rawString(modules, "assetProfile", "sector")
	fund.Industry = rawString(modules, "assetProfile", "industry")
	fund.Name = rawString(modules, "price", "longName")
	return fund, nil
}

// Validate is a cheap liveness probe for a symbol.
func (c *Client) Validate(ctx context.Context, symbol string) bool {
	candles, err := c.FetchCandles(ctx, symbol, Timeframe1d, Period7d)
	return err == nil && len(candles) > 0
}

// get performs a single vendor request with the polite delay, circuit
// breaker, and status-code classification applied.
func (c *Client) get(ctx context.Context, symbol, url string) ([]byte, error) {
	c.waitPolite(ctx)

	raw, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; nse-signal-bot/1.0)")
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, newError(KindRateLimited, symbol, fmt.Errorf("vendor returned 429"))
		case resp.StatusCode == http.StatusNotFound:
			// The chart API reports unknown symbols as a 404 with an error body.
			var chart chartResponse
			if json.Unmarshal(body, &chart) == nil && chart.Chart.Error != nil {
				return nil, newError(KindNotFound, symbol, fmt.Errorf("%s", chart.Chart.Error.Description))
			}
			return nil, newError(KindNotFound, symbol, fmt.Errorf("vendor returned 404"))
		case resp.StatusCode >= 500:
			return nil, newError(KindNetwork, symbol, fmt.Errorf("vendor returned %d", resp.StatusCode))
		case resp.StatusCode != http.StatusOK:
			return nil, newError(KindOther, symbol, fmt.Errorf("vendor returned %d", resp.StatusCode))
		}
		return body, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, newError(KindRateLimited, symbol, err)
		}
		if me, ok := err.(*Error); ok {
			return nil, me
		}
		return nil, classify(symbol, err)
	}
	return raw.([]byte), nil
}

// waitPolite sleeps until the minimum inter-request spacing has elapsed.
func (c *Client) waitPolite(ctx context.Context) {
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	wait := c.politeDelay - elapsed
	c.lastRequest = time.Now().Add(max(wait, 0))
	c.mu.Unlock()

	if wait <= 0 {
		return
	}
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}

func rawNumber(modules map[string]json.RawMessage, module, field string) *float64 {
	blob, ok := modules[module]
	if !ok {
		return nil
	}
	var m map[string]struct {
		Raw *float64 `json:"raw"`
	}
	if err := json.Unmarshal(blob, &m); err != nil {
		return nil
	}
	if v, ok := m[field]; ok && v.Raw != nil {
		return v.Raw
	}
	return nil
}

func rawString(modules map[string]json.RawMessage, module, field string) *string {
	blob, ok := modules[module]
	if !ok {
		return nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(blob, &m); err != nil {
		return nil
	}
	var s string
	if err := json.Unmarshal(m[field], &s); err != nil || s == "" {
		return nil
	}
	return &s
}
