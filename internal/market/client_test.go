package market

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{
		BaseURL:     srv.URL,
		PoliteDelay: time.Millisecond,
	}, zerolog.Nop())
}

func chartBody(timestamps []int64, closes []float64) string {
	ts := ""
	open, high, low, cl, vol := "", "", "", "", ""
	for i, t := range timestamps {
		if i > 0 {
			ts += ","
			open += ","
			high += ","
			low += ","
			cl += ","
			vol += ","
		}
		ts += fmt.Sprintf("%d", t)
		c := closes[i]
		open += fmt.Sprintf("%g", c-1)
		high += fmt.Sprintf("%g", c+2)
		low += fmt.Sprintf("%g", c-2)
		cl += fmt.Sprintf("%g", c)
		vol += "1000"
	}
	return fmt.Sprintf(`{"chart":{"result":[{"timestamp":[%s],
		"indicators":{"quote":[{"open":[%s],"high":[%s],"low":[%s],"close":[%s],"volume":[%s]}]}}],"error":null}}`,
		ts, open, high, low, cl, vol)
}

func TestFetchCandlesParsesSeries(t *testing.T) {
	base := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/v8/finance/chart/RELIANCE.NS")
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		fmt.Fprint(w, chartBody(
			[]int64{base.Unix(), base.Add(24 * time.Hour).Unix()},
			[]float64{100, 102},
		))
	})

	candles, err := client.FetchCandles(context.Background(), "RELIANCE.NS", Timeframe1d, Period5y)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, base, candles[0].Time)
	assert.Equal(t, 100.0, candles[0].Close)
	assert.Equal(t, int64(1000), candles[0].Volume)
	assert.True(t, candles[1].Time.After(candles[0].Time))
}

func TestFetchCandlesEmptyPayloadIsRateLimited(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":[{"timestamp":[],"indicators":{"quote":[{}]}}],"error":null}}`)
	})

	_, err := client.FetchCandles(context.Background(), "ACME.NS", Timeframe1d, PeriodMax)
	require.Error(t, err)
	assert.Equal(t, KindRateLimited, KindOf(err))
}

func TestFetchCandles429IsRateLimited(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.FetchCandles(context.Background(), "ACME.NS", Timeframe1d, PeriodMax)
	require.Error(t, err)
	assert.Equal(t, KindRateLimited, KindOf(err))
}

func TestFetchCandlesUnknownSymbolIsNotFound(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`)
	})

	_, err := client.FetchCandles(context.Background(), "NOPE.NS", Timeframe1d, PeriodMax)
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestFetchCandlesGarbageIsMalformed(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>maintenance</html>`)
	})

	_, err := client.FetchCandles(context.Background(), "ACME.NS", Timeframe1d, PeriodMax)
	require.Error(t, err)
	assert.Equal(t, KindMalformed, KindOf(err))
}

func TestFetchCandlesSkipsNullRows(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":[{"timestamp":[1700000000,1700086400],
			"indicators":{"quote":[{"open":[null,100],"high":[null,103],"low":[null,99],"close":[null,101],"volume":[null,500]}]}}],"error":null}}`)
	})

	candles, err := client.FetchCandles(context.Background(), "ACME.NS", Timeframe1d, PeriodMax)
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, 101.0, candles[0].Close)
}

func TestClampPeriodCapsIntraday(t *testing.T) {
	assert.Equal(t, Period60d, clampPeriod(Timeframe15m, PeriodMax))
	assert.Equal(t, Period7d, clampPeriod(Timeframe1m, Period60d))
	assert.Equal(t, Period2y, clampPeriod(Timeframe1h, Period5y))
	assert.Equal(t, Period5y, clampPeriod(Timeframe1d, Period5y))
	assert.Equal(t, Period7d, clampPeriod(Timeframe1d, Period7d))
}

func TestPoliteDelaySpacesRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chartBody([]int64{1700000000}, []float64{100}))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL, PoliteDelay: 50 * time.Millisecond}, zerolog.Nop())

	start := time.Now()
	_, err := client.FetchCandles(context.Background(), "A.NS", Timeframe1d, Period7d)
	require.NoError(t, err)
	_, err = client.FetchCandles(context.Background(), "A.NS", Timeframe1d, Period7d)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestFetchFundamentals(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/v10/finance/quoteSummary/RELIANCE.NS")
		fmt.Fprint(w, `{"quoteSummary":{"result":[{
			"summaryDetail":{"trailingPE":{"raw":18.0},"marketCap":{"raw":800000000000}},
			"financialData":{"returnOnEquity":{"raw":0.22},"debtToEquity":{"raw":40.0}},
			"defaultKeyStatistics":{"priceToBook":{"raw":2.5}},
			"assetProfile":{"sector":"Energy","industry":"Oil & Gas"},
			"price":{"longName":"Reliance Industries Limited"}
		}],"error":null}}`)
	})

	fund, err := client.FetchFundamentals(context.Background(), "RELIANCE.NS")
	require.NoError(t, err)
	require.NotNil(t, fund.TrailingPE)
	assert.Equal(t, 18.0, *fund.TrailingPE)
	require.NotNil(t, fund.ReturnOnEquity)
	assert.Equal(t, 0.22, *fund.ReturnOnEquity)
	require.NotNil(t, fund.Sector)
	assert.Equal(t, "Energy", *fund.Sector)
	assert.Nil(t, fund.ForwardPE)
	assert.NotEmpty(t, fund.Raw)
}

func TestParseTimeframe(t *testing.T) {
	tf, err := ParseTimeframe("75m")
	require.NoError(t, err)
	assert.Equal(t, Timeframe75m, tf)
	assert.Equal(t, 75, tf.Minutes())

	_, err = ParseTimeframe("4h")
	assert.Error(t, err)
}

func TestCandleValid(t *testing.T) {
	good := Candle{Open: 100, High: 105, Low: 98, Close: 103, Volume: 10}
	assert.True(t, good.Valid())

	bad := Candle{Open: 110, High: 105, Low: 98, Close: 103}
	assert.False(t, bad.Valid())

	inverted := Candle{Open: 100, High: 95, Low: 98, Close: 96}
	assert.False(t, inverted.Valid())
}
