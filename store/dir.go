package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/etnz/backtest"
)

// Dir stores each run as <run_id>.json in a directory.
type Dir struct {
	Path string
	// Now returns the save time; time.Now when nil.
	Now func() time.Time
}

// NewDir returns a Dir store rooted at path, creating it if needed.
func NewDir(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create results directory: %w", err)
	}
	return &Dir{Path: path}, nil
}

func (d *Dir) file(id string) string { return filepath.Join(d.Path, id+".json") }

// Save writes the record atomically: to a temp file first, then renamed.
func (d *Dir) Save(ctx context.Context, runID string, p backtest.Payload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r, err := record(runID, p, d.Now)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("cannot encode run %q: %w", r.RunID, err)
	}

	tmp, err := os.CreateTemp(d.Path, "."+r.RunID+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("cannot save run %q: %w", r.RunID, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return "", fmt.Errorf("cannot save run %q: %w", r.RunID, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("cannot save run %q: %w", r.RunID, err)
	}
	if err := os.Rename(tmp.Name(), d.file(r.RunID)); err != nil {
		return "", fmt.Errorf("cannot save run %q: %w", r.RunID, err)
	}
	return r.RunID, nil
}

func (d *Dir) Load(ctx context.Context, runID string) (*backtest.Record, error) {
	if err := checkRunID(runID); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(d.file(runID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	r := new(backtest.Record)
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("cannot decode run %q: %w", runID, err)
	}
	if r.RunID == "" {
		r.RunID = runID
	}
	return r, nil
}

// List skips files that cannot be decoded.
func (d *Dir) List(ctx context.Context) ([]Summary, error) {
	entries, err := os.ReadDir(d.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var list []Summary
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := d.Load(ctx, strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		list = append(list, summarize(r))
	}
	slices.SortFunc(list, newestFirst)
	return list, nil
}

func (d *Dir) Delete(ctx context.Context, runID string) (bool, error) {
	if err := checkRunID(runID); err != nil {
		return false, err
	}
	err := os.Remove(d.file(runID))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
