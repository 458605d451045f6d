package sentiment

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Headline is one news item for a company.
type Headline struct {
	Title       string
	Publisher   string
	Link        string
	PublishedAt time.Time
}

// NewsFeed fetches recent headlines for a company name.
type NewsFeed interface {
	RecentHeadlines(ctx context.Context, company string, lookback time.Duration, limit int) ([]Headline, error)
}

// companyNames maps NSE tickers to the search names that actually surface
// news. Unknown tickers fall back to the bare symbol.
var companyNames = map[string]string{
	"RELIANCE":   "Reliance Industries",
	"TCS":        "Tata Consultancy Services",
	"INFY":       "Infosys",
	"HDFCBANK":   "HDFC Bank",
	"ICICIBANK":  "ICICI Bank",
	"SBIN":       "State Bank of India",
	"BHARTIARTL": "Bharti Airtel",
	"ITC":        "ITC Limited",
	"WIPRO":      "Wipro",
	"AXISBANK":   "Axis Bank",
	"LT":         "Larsen Toubro",
	"MARUTI":     "Maruti Suzuki",
	"TATAMOTORS": "Tata Motors",
	"TATASTEEL":  "Tata Steel",
	"HCLTECH":    "HCL Technologies",
	"TECHM":      "Tech Mahindra",
	"SUNPHARMA":  "Sun Pharma",
	"ASIANPAINT": "Asian Paints",
	"ULTRACEMCO": "UltraTech Cement",
	"NESTLEIND":  "Nestle India",
	"TITAN":      "Titan Company",
	"BAJFINANCE": "Bajaj Finance",
	"KOTAKBANK":  "Kotak Mahindra Bank",
	"HINDUNILVR": "Hindustan Unilever",
	"ONGC":       "ONGC",
	"NTPC":       "NTPC",
	"POWERGRID":  "Power Grid",
	"COALINDIA":  "Coal India",
	"BPCL":       "Bharat Petroleum",
	"IOC":        "Indian Oil",
	"VEDL":       "Vedanta",
	"HINDALCO":   "Hindalco",
	"JSWSTEEL":   "JSW Steel",
	"GRASIM":     "Grasim Industries",
}

// CompanyName resolves a vendor symbol to its news search term.
func CompanyName(symbol string) string {
	ticker := strings.TrimSuffix(strings.TrimSuffix(symbol, ".NS"), ".BO")
	if name, ok := companyNames[ticker]; ok {
		return name
	}
	return ticker
}

const googleNewsURL = "https://news.google.com/rss/search"

// GoogleNewsFeed reads the Google News RSS search feed for the Indian
// edition.
type GoogleNewsFeed struct {
	httpClient *http.Client
	baseURL    string
	now        func() time.Time
}

func NewGoogleNewsFeed(timeout time.Duration) *GoogleNewsFeed {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &GoogleNewsFeed{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    googleNewsURL,
		now:        time.Now,
	}
}

type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title   string    `xml:"title"`
	Link    string    `xml:"link"`
	PubDate string    `xml:"pubDate"`
	Source  rssSource `xml:"source"`
}

type rssSource struct {
	Name string `xml:",chardata"`
}

func (f *GoogleNewsFeed) RecentHeadlines(ctx context.Context, company string, lookback time.Duration, limit int) ([]Headline, error) {
	query := url.Values{}
	query.Set("q", company)
	query.Set("hl", "en-IN")
	query.Set("gl", "IN")
	query.Set("ceid", "IN:en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("error building news request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching news feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("error reading news feed: %w", err)
	}

	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("error parsing news feed: %w", err)
	}

	cutoff := f.now().Add(-lookback)
	headlines := make([]Headline, 0, limit)
	for _, item := range feed.Channel.Items {
		if len(headlines) >= limit {
			break
		}
		published, err := parsePubDate(item.PubDate)
		if err != nil || published.Before(cutoff) {
			continue
		}
		publisher := item.Source.Name
		if publisher == "" {
			publisher = "Google News"
		}
		headlines = append(headlines, Headline{
			Title:       item.Title,
			Publisher:   publisher,
			Link:        item.Link,
			PublishedAt: published,
		})
	}
	return headlines, nil
}

// pubDateLayouts covers the formats Google News has been seen emitting.
var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 MST",
}

func parsePubDate(s string) (time.Time, error) {
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized pubDate %q", s)
}
