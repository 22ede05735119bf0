package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// Kinds lists the store backends accepted by Open.
var Kinds = []string{"dir", "sqlite", "postgres", "redis"}

// Open returns the store of the given kind. dsn is a directory for "dir", a
// file path for "sqlite", a connection string for "postgres" and a url for
// "redis".
func Open(kind, dsn string) (Store, error) {
	switch kind {
	case "", "dir":
		if dsn == "" {
			dsn = "results"
		}
		return NewDir(dsn)
	case "sqlite":
		if dsn == "" {
			dsn = "results.db"
		}
		if dsn != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, err
			}
		}
		return OpenSQL("sqlite", dsn)
	case "postgres":
		return OpenSQL("postgres", dsn)
	case "redis":
		if dsn == "" {
			dsn = "redis://localhost:6379/0"
		}
		return OpenRedis(dsn)
	}
	return nil, fmt.Errorf("unknown store %q, want one of %v", kind, Kinds)
}
