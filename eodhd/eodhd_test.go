package eodhd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/etnz/backtest/date"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// server serves canned EODHD responses and counts requests.
func server(t *testing.T, calls *atomic.Int32) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/eod/AAPL.US", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "test-key", r.URL.Query().Get("api_token"))
		assert.Equal(t, "json", r.URL.Query().Get("fmt"))
		assert.Equal(t, "2024-01-02", r.URL.Query().Get("from"))
		w.Write([]byte(`[
			{"date":"2024-01-02","open":187.15,"high":188.44,"low":183.89,"close":185.64,"adjusted_close":184.9,"volume":82488700},
			{"date":"2024-01-03","open":184.22,"high":185.88,"low":183.43,"close":184.25,"adjusted_close":183.5,"volume":58414500},
			{"date":"2024-01-04","open":0,"high":0,"low":0,"close":0,"volume":0}
		]`))
	})
	mux.HandleFunc("/eod/BROKEN.US", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	mux.HandleFunc("/search/AAPL", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`[
			{"Code":"AAPL","Exchange":"MX","Name":"Apple Inc","Type":"Common Stock"},
			{"Code":"AAPL","Exchange":"US","Name":"Apple Inc","Type":"Common Stock","ISIN":"US0378331005"}
		]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func client(srv *httptest.Server, cacheDir string) *Client {
	c := New("test-key", cacheDir)
	c.BaseURL = srv.URL
	return c
}

func TestSymbol(t *testing.T) {
	assert.Equal(t, "AAPL.US", Symbol(" aapl "))
	assert.Equal(t, "MC.PA", Symbol("mc.pa"))
}

func TestPrices(t *testing.T) {
	var calls atomic.Int32
	c := client(server(t, &calls), "")

	prices, err := c.Prices(context.Background(), "aapl", date.Range{From: date.New(2024, 1, 2)})
	require.NoError(t, err)
	require.Equal(t, 2, prices.Len(), "zero closes are skipped")
	day, bar := prices.At(1)
	assert.Equal(t, date.New(2024, 1, 3), day)
	assert.Equal(t, 184.25, bar.Close)
	assert.Equal(t, 58414500.0, bar.Volume)
}

func TestPricesNotFound(t *testing.T) {
	var calls atomic.Int32
	c := client(server(t, &calls), "")
	_, err := c.Prices(context.Background(), "NOPE", date.Range{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPricesBreaker(t *testing.T) {
	var calls atomic.Int32
	c := client(server(t, &calls), "")

	for i := 0; i < 3; i++ {
		_, err := c.Prices(context.Background(), "BROKEN", date.Range{})
		var status *StatusError
		require.ErrorAs(t, err, &status)
		assert.Equal(t, http.StatusInternalServerError, status.Code)
	}
	_, err := c.Prices(context.Background(), "BROKEN", date.Range{})
	assert.Error(t, err)
	assert.Equal(t, int32(3), calls.Load(), "the open breaker does not call the server")
}

func TestLookup(t *testing.T) {
	var calls atomic.Int32
	c := client(server(t, &calls), "")

	r, ok, err := c.Lookup(context.Background(), "AAPL")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "US0378331005", r.ISIN)
	assert.Equal(t, "Apple Inc", r.Name)

	_, ok, err = c.Lookup(context.Background(), "AAPL.PA")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDiskCache(t *testing.T) {
	var calls atomic.Int32
	dir := t.TempDir()
	c := client(server(t, &calls), dir)
	r := date.Range{From: date.New(2024, 1, 2)}

	first, err := c.Prices(context.Background(), "AAPL", r)
	require.NoError(t, err)
	second, err := c.Prices(context.Background(), "AAPL", r)
	require.NoError(t, err)
	assert.Equal(t, first.Days(), second.Days())
	assert.Equal(t, int32(1), calls.Load(), "second call is served from the cache")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// errors are not cached.
	_, err = c.Prices(context.Background(), "BROKEN", date.Range{})
	assert.Error(t, err)
	entries, err = os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDiskCacheExpires(t *testing.T) {
	cache := &diskCache{dir: t.TempDir(), today: func() date.Date { return date.New(2024, 1, 1) }}
	req := httptest.NewRequest(http.MethodGet, "https://eodhd.com/api/eod/AAPL.US", nil)
	monday := cache.key(req)
	cache.today = func() date.Date { return date.New(2024, 1, 2) }
	assert.NotEqual(t, monday, cache.key(req))
}
