package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/etnz/backtest/sentiment"
	"github.com/google/subcommands"
	"github.com/rs/zerolog/log"
)

type scoreCmd struct {
	model   string
	offline bool
	news    string
	ticker  string
	source  string
}

func (*scoreCmd) Name() string     { return "score" }
func (*scoreCmd) Synopsis() string { return "score the sentiment of texts or of a news file" }
func (*scoreCmd) Usage() string {
	return `btx score [-offline] <text>...
btx score -news <news.csv> -ticker <ticker> [-source <name>]

  Scores texts with the sentiment chain: one Gemini tier per key listed in
  GEMINI_API_KEYS (or GEMINI_API_KEY), then the offline lexicon.

  With -news, the dated headlines of the csv file (columns date and text) are
  scored and averaged by day into <data-dir>/sentiment/<ticker>.<source>.csv,
  ready for 'btx run'.

`
}

func (c *scoreCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.model, "model", sentiment.DefaultModel, "Gemini model")
	f.BoolVar(&c.offline, "offline", false, "Only use the offline lexicon")
	f.StringVar(&c.news, "news", "", "News csv file to score")
	f.StringVar(&c.ticker, "ticker", "", "Ticker of the news file")
	f.StringVar(&c.source, "source", "news", "Name of the sentiment source written")
}

// chain builds the scorer tiers.
func (c *scoreCmd) chain(ctx context.Context) sentiment.Chain {
	var chain sentiment.Chain
	if !c.offline {
		keys := os.Getenv("GEMINI_API_KEYS")
		if keys == "" {
			keys = os.Getenv("GEMINI_API_KEY")
		}
		for _, key := range strings.Split(keys, ",") {
			if key = strings.TrimSpace(key); key == "" {
				continue
			}
			g, err := sentiment.NewGemini(ctx, key, c.model)
			if err != nil {
				log.Warn().Err(err).Msg("Gemini tier disabled")
				continue
			}
			chain = append(chain, g)
		}
	}
	return append(chain, sentiment.Lexicon{})
}

func (c *scoreCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	chain := c.chain(ctx)
	names := make([]string, len(chain))
	for i, s := range chain {
		names[i] = s.Name()
	}
	log.Info().Strs("tiers", names).Msg("sentiment pipeline")

	if c.news != "" {
		return c.scoreNews(ctx, chain)
	}
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "score requires texts or -news")
		return subcommands.ExitUsageError
	}

	var results []sentiment.Result
	var b strings.Builder
	b.WriteString("# Sentiment\n\n| Text | Sentiment | Score | Method |\n|:---|:---|---:|:---|\n")
	for _, text := range f.Args() {
		r, err := chain.Score(ctx, text)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error scoring %q: %v\n", text, err)
			return subcommands.ExitFailure
		}
		results = append(results, r)
		fmt.Fprintf(&b, "| %s | %s | %+.4f | %s |\n", strings.ReplaceAll(text, "|", `\|`), r.Label, r.Score, r.Method)
	}
	if len(results) > 1 {
		s := sentiment.Aggregate(results)
		fmt.Fprintf(&b, "\nOverall **%s** (%+.4f): %d bullish, %d bearish, %d neutral.\n", s.Label, s.Score, s.Bullish, s.Bearish, s.Neutral)
	}
	printMarkdown(b.String())
	return subcommands.ExitSuccess
}

func (c *scoreCmd) scoreNews(ctx context.Context, chain sentiment.Chain) subcommands.ExitStatus {
	if c.ticker == "" {
		fmt.Fprintln(os.Stderr, "-news requires -ticker")
		return subcommands.ExitUsageError
	}
	in, err := os.Open(c.news)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer in.Close()
	items, err := sentiment.ReadItems(in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %q: %v\n", c.news, err)
		return subcommands.ExitFailure
	}

	series, err := sentiment.Daily(ctx, chain, items, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error scoring news: %v\n", err)
		return subcommands.ExitFailure
	}

	path := filepath.Join(*dataDir, "sentiment", strings.ToUpper(c.ticker)+"."+c.source+".csv")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	out, err := os.Create(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if err := sentiment.WriteSeries(out, series); err != nil {
		out.Close()
		fmt.Fprintf(os.Stderr, "Error writing %q: %v\n", path, err)
		return subcommands.ExitFailure
	}
	if err := out.Close(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Printf("%d headlines scored into %d days in %s\n", len(items), series.Len(), path)
	return subcommands.ExitSuccess
}
