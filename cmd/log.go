package cmd

import (
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	logLevel = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logJSON  = flag.Bool("log-json", false, "Log json lines instead of the human readable console format")
)

// SetupLogging configures the global logger from the command line flags.
func SetupLogging() {
	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if *logJSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
}
