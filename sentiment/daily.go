package sentiment

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/etnz/backtest"
	"github.com/etnz/backtest/date"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Item is a dated text, like a headline or a post.
type Item struct {
	Date date.Date
	Text string
}

// Daily scores items concurrently and returns the average score of each day.
//
// Items that no scorer can handle are skipped; Daily only fails if the
// context is cancelled. When into is not nil the daily scores are appended
// to it, overwriting the days it already has.
func Daily(ctx context.Context, s Scorer, items []Item, into *backtest.Sentiment) (*backtest.Sentiment, error) {
	if into == nil {
		into = new(backtest.Sentiment)
	}
	results := make([]*Result, len(items))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, it := range items {
		g.Go(func() error {
			r, err := s.Score(ctx, it.Text)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Warn().Err(err).Stringer("date", it.Date).Msg("cannot score text")
				return nil
			}
			results[i] = &r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byDay := make(map[date.Date][]Result)
	var days []date.Date
	for i, r := range results {
		if r == nil {
			continue
		}
		d := items[i].Date
		if _, ok := byDay[d]; !ok {
			days = append(days, d)
		}
		byDay[d] = append(byDay[d], *r)
	}
	for _, d := range days {
		into.Append(d, Aggregate(byDay[d]).Score)
	}
	return into, nil
}

// ReadItems reads a csv with a header holding at least "date" and "text"
// columns ("headline" is accepted for "text").
func ReadItems(r io.Reader) ([]Item, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	dateCol, textCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "date":
			dateCol = i
		case "text", "headline":
			textCol = i
		}
	}
	if dateCol < 0 || textCol < 0 {
		return nil, fmt.Errorf("missing date or text column in %v", header)
	}
	var items []Item
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return items, nil
		}
		if err != nil {
			return nil, err
		}
		if max(dateCol, textCol) >= len(rec) {
			return nil, fmt.Errorf("line %d: missing cells", line)
		}
		s := strings.TrimSpace(rec[dateCol])
		if len(s) > 10 {
			s = s[:10]
		}
		d, err := date.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		items = append(items, Item{Date: d, Text: rec[textCol]})
	}
}

// WriteSeries writes s in the sentiment csv layout read by backtest.CSVLoader.
func WriteSeries(w io.Writer, s *backtest.Sentiment) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Date", "sentiment_score"}); err != nil {
		return err
	}
	for d, v := range s.Values() {
		if err := cw.Write([]string{d.String(), strconv.FormatFloat(v, 'f', 4, 64)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
