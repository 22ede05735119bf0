// Package eodhd downloads daily prices from the EOD Historical Data API into
// backtest datasets.
package eodhd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/etnz/backtest"
	"github.com/etnz/backtest/date"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the root of the EODHD api.
const DefaultBaseURL = "https://eodhd.com/api"

// DefaultExchange is appended to tickers without an exchange.
const DefaultExchange = "US"

// Client fetches EODHD endpoints.
//
// Calls are rate limited and go through a circuit breaker that opens after
// consecutive failures, so that a bad key or an outage fails a whole fetch
// fast instead of once per ticker.
type Client struct {
	APIKey  string
	BaseURL string
	HTTP    *http.Client
	Limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// New returns a client with a daily disk cache in cacheDir. An empty cacheDir
// disables the cache.
func New(apiKey, cacheDir string) *Client {
	transport := http.DefaultTransport
	if cacheDir != "" {
		transport = &diskCache{base: transport, dir: cacheDir}
	}
	return &Client{
		APIKey:  apiKey,
		BaseURL: DefaultBaseURL,
		HTTP:    &http.Client{Timeout: 30 * time.Second, Transport: transport},
		Limiter: rate.NewLimiter(rate.Limit(10), 10),
		breaker: newBreaker(),
	}
}

func newBreaker() *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "eodhd",
		Timeout: time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
}

// Symbol returns the EODHD symbol of a ticker, "AAPL" becomes "AAPL.US".
func Symbol(ticker string) string {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if strings.Contains(ticker, ".") {
		return ticker
	}
	return ticker + "." + DefaultExchange
}

// StatusError is returned for non 200 responses.
type StatusError struct {
	Path   string
	Status string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("cannot http GET %s: %s", e.Path, e.Status)
}

// ErrNotFound is returned when the symbol is unknown.
var ErrNotFound = errors.New("symbol not found")

// jget performs a GET request on path and decodes the json response into data.
func (c *Client) jget(ctx context.Context, path string, query url.Values, data any) error {
	if c.breaker == nil {
		c.breaker = newBreaker()
	}
	if query == nil {
		query = url.Values{}
	}
	query.Set("fmt", "json")
	query.Set("api_token", c.APIKey)
	addr := strings.TrimRight(c.BaseURL, "/") + path + "?" + query.Encode()

	_, err := c.breaker.Execute(func() (any, error) {
		if c.Limiter != nil {
			if err := c.Limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
		if err != nil {
			return nil, err
		}
		client := c.HTTP
		if client == nil {
			client = http.DefaultClient
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		log.Debug().Str("path", path).Int("status", resp.StatusCode).Msg("eodhd")
		if resp.StatusCode == http.StatusNotFound {
			// an unknown symbol is not a failure of the service.
			return nil, nil
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &StatusError{Path: path, Status: resp.Status, Code: resp.StatusCode}
		}
		return nil, json.NewDecoder(resp.Body).Decode(data)
	})
	return err
}

// Prices returns the daily bars of ticker within r.
func (c *Client) Prices(ctx context.Context, ticker string, r date.Range) (*backtest.Prices, error) {
	// [{"date":"2024-02-13","open":675.066,"high":684.219,"low":648.659,
	//   "close":668.445,"adjusted_close":67.705,"volume":0}, ...]
	type bar struct {
		Date   date.Date       `json:"date"`
		Open   decimal.Decimal `json:"open"`
		High   decimal.Decimal `json:"high"`
		Low    decimal.Decimal `json:"low"`
		Close  decimal.Decimal `json:"close"`
		Volume decimal.Decimal `json:"volume"`
	}
	query := url.Values{}
	if !r.From.IsZero() {
		query.Set("from", r.From.String())
	}
	if !r.To.IsZero() {
		query.Set("to", r.To.String())
	}
	var content []bar
	if err := c.jget(ctx, "/eod/"+url.PathEscape(Symbol(ticker)), query, &content); err != nil {
		return nil, fmt.Errorf("%s: %w", ticker, err)
	}
	if content == nil {
		return nil, fmt.Errorf("%s: %w", ticker, ErrNotFound)
	}

	prices := new(backtest.Prices)
	for _, b := range content {
		if b.Close.IsZero() {
			continue
		}
		prices.Append(b.Date, backtest.Bar{
			Open:   b.Open.InexactFloat64(),
			High:   b.High.InexactFloat64(),
			Low:    b.Low.InexactFloat64(),
			Close:  b.Close.InexactFloat64(),
			Volume: b.Volume.InexactFloat64(),
		})
	}
	return prices, nil
}

// SearchResult is one security found by Search.
type SearchResult struct {
	Code     string `json:"Code"`
	Exchange string `json:"Exchange"`
	Name     string `json:"Name"`
	Type     string `json:"Type"`
	Country  string `json:"Country"`
	Currency string `json:"Currency"`
	ISIN     string `json:"ISIN"`
}

// Search searches securities by name, ticker or isin.
func (c *Client) Search(ctx context.Context, term string) ([]SearchResult, error) {
	var results []SearchResult
	if err := c.jget(ctx, "/search/"+url.PathEscape(term), nil, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// Lookup returns the name of the security traded as ticker, if it can be found.
func (c *Client) Lookup(ctx context.Context, ticker string) (SearchResult, bool, error) {
	symbol := Symbol(ticker)
	code, exchange, _ := strings.Cut(symbol, ".")
	results, err := c.Search(ctx, code)
	if err != nil {
		return SearchResult{}, false, err
	}
	for _, r := range results {
		if strings.EqualFold(r.Code, code) && strings.EqualFold(r.Exchange, exchange) {
			return r, true, nil
		}
	}
	return SearchResult{}, false, nil
}
