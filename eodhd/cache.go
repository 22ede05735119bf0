package eodhd

import (
	"bufio"
	"bytes"
	"crypto/sha1"
	"fmt"
	"net/http"
	"net/http/httputil"
	"os"
	"path/filepath"

	"github.com/etnz/backtest/date"
	"github.com/rs/zerolog/log"
)

// diskCache is an http.RoundTripper caching successful responses on disk.
// Entries expire every day.
type diskCache struct {
	base  http.RoundTripper
	dir   string
	today func() date.Date // nil is date.Today
}

// key identifies a request for the current day.
func (c *diskCache) key(req *http.Request) string {
	today := date.Today
	if c.today != nil {
		today = c.today
	}
	return fmt.Sprintf("eodhd-%x", sha1.Sum([]byte(today().String()+" "+req.Method+" "+req.URL.String())))
}

// RoundTrip returns the cached response of the day, or performs the request
// and caches successful responses.
func (c *diskCache) RoundTrip(req *http.Request) (*http.Response, error) {
	file := filepath.Join(c.dir, c.key(req))
	if resp, err := c.get(file, req); err == nil {
		return resp, nil
	}

	resp, err := c.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return resp, nil
	}
	if err := c.put(file, resp); err != nil {
		log.Warn().Err(err).Msg("cache write ignored")
	}
	return resp, nil
}

func (c *diskCache) get(file string, req *http.Request) (*http.Response, error) {
	content, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return http.ReadResponse(bufio.NewReader(bytes.NewReader(content)), req)
}

func (c *diskCache) put(file string, resp *http.Response) error {
	// DumpResponse reads and restores the body.
	content, err := httputil.DumpResponse(resp, true)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(file, content, 0o644)
}
