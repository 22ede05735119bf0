package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/etnz/backtest"
	"github.com/etnz/backtest/date"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// savedAtLayout is fixed width so that text ordering matches time ordering.
const savedAtLayout = "2006-01-02T15:04:05.000000000Z"

// SQL stores runs in a backtest_runs table of a sqlite or postgres database.
type SQL struct {
	db      *sqlx.DB
	timeout time.Duration
	// Now returns the save time; time.Now when nil.
	Now func() time.Time
}

func init() { sqlx.BindDriver("sqlite", sqlx.QUESTION) }

// OpenSQL connects to a database. driver is "sqlite" or "postgres".
func OpenSQL(driver, dsn string) (*SQL, error) {
	if driver == "sqlite" && dsn != ":memory:" {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if dsn == ":memory:" {
		// every connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	s, err := NewSQL(db, 10*time.Second)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQL wraps an open database and applies pending migrations.
func NewSQL(db *sqlx.DB, timeout time.Duration) (*SQL, error) {
	s := &SQL{db: db, timeout: timeout}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *SQL) Close() error { return s.db.Close() }

var migrations = [][]string{
	1: {
		`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)`,
		`CREATE TABLE IF NOT EXISTS backtest_runs (
			run_id     TEXT PRIMARY KEY,
			strategy   TEXT NOT NULL,
			start_date TEXT NOT NULL,
			end_date   TEXT NOT NULL,
			n_tickers  INTEGER NOT NULL,
			cum_return DOUBLE PRECISION,
			sharpe     DOUBLE PRECISION,
			max_dd     DOUBLE PRECISION,
			saved_at   TEXT NOT NULL,
			payload    TEXT NOT NULL
		)`,
	},
	2: {
		`CREATE INDEX IF NOT EXISTS idx_backtest_runs_saved_at ON backtest_runs (saved_at)`,
	},
}

func (s *SQL) migrate() error {
	version := 0
	// the table does not exist on a fresh database.
	s.db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	for v := version + 1; v < len(migrations); v++ {
		for _, stmt := range migrations[v] {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("migration v%d: %w", v, err)
			}
		}
		if _, err := s.db.Exec(s.db.Rebind("INSERT INTO schema_version (version) VALUES (?) ON CONFLICT DO NOTHING"), v); err != nil {
			return fmt.Errorf("migration v%d: %w", v, err)
		}
		log.Debug().Int("version", v).Msg("applied store migration")
	}
	return nil
}

// row is the backtest_runs layout.
type row struct {
	RunID     string   `db:"run_id"`
	Strategy  string   `db:"strategy"`
	Start     string   `db:"start_date"`
	End       string   `db:"end_date"`
	Tickers   int      `db:"n_tickers"`
	CumReturn *float64 `db:"cum_return"`
	Sharpe    *float64 `db:"sharpe"`
	MaxDD     *float64 `db:"max_dd"`
	SavedAt   string   `db:"saved_at"`
	Payload   string   `db:"payload"`
}

func (r row) summary() (Summary, error) {
	s := Summary{
		RunID:     r.RunID,
		Strategy:  r.Strategy,
		Tickers:   r.Tickers,
		CumReturn: r.CumReturn,
		Sharpe:    r.Sharpe,
		MaxDD:     r.MaxDD,
	}
	var err error
	if s.Start, err = date.Parse(r.Start); err != nil {
		return s, err
	}
	if s.End, err = date.Parse(r.End); err != nil {
		return s, err
	}
	if s.SavedAt, err = time.Parse(time.RFC3339Nano, r.SavedAt); err != nil {
		return s, err
	}
	return s, nil
}

func (s *SQL) Save(ctx context.Context, runID string, p backtest.Payload) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	r, err := record(runID, p, s.Now)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to marshal run %q: %w", r.RunID, err)
	}
	sum := summarize(&r)
	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO backtest_runs (run_id, strategy, start_date, end_date, n_tickers, cum_return, sharpe, max_dd, saved_at, payload)
		VALUES (:run_id, :strategy, :start_date, :end_date, :n_tickers, :cum_return, :sharpe, :max_dd, :saved_at, :payload)
		ON CONFLICT (run_id) DO UPDATE SET
			strategy = excluded.strategy,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			n_tickers = excluded.n_tickers,
			cum_return = excluded.cum_return,
			sharpe = excluded.sharpe,
			max_dd = excluded.max_dd,
			saved_at = excluded.saved_at,
			payload = excluded.payload`,
		row{
			RunID:     r.RunID,
			Strategy:  sum.Strategy,
			Start:     sum.Start.String(),
			End:       sum.End.String(),
			Tickers:   sum.Tickers,
			CumReturn: sum.CumReturn,
			Sharpe:    sum.Sharpe,
			MaxDD:     sum.MaxDD,
			SavedAt:   r.SavedAt.UTC().Format(savedAtLayout),
			Payload:   string(payload),
		})
	if err != nil {
		return "", fmt.Errorf("failed to save run %q: %w", r.RunID, err)
	}
	return r.RunID, nil
}

func (s *SQL) Load(ctx context.Context, runID string) (*backtest.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var payload string
	err := s.db.GetContext(ctx, &payload, s.db.Rebind("SELECT payload FROM backtest_runs WHERE run_id = ?"), runID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %q: %w", runID, err)
	}
	r := new(backtest.Record)
	if err := json.Unmarshal([]byte(payload), r); err != nil {
		return nil, fmt.Errorf("cannot decode run %q: %w", runID, err)
	}
	return r, nil
}

func (s *SQL) List(ctx context.Context) ([]Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var rows []row
	err := s.db.SelectContext(ctx, &rows, `
		SELECT run_id, strategy, start_date, end_date, n_tickers, cum_return, sharpe, max_dd, saved_at
		FROM backtest_runs
		ORDER BY saved_at DESC, run_id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	list := make([]Summary, 0, len(rows))
	for _, r := range rows {
		sum, err := r.summary()
		if err != nil {
			return nil, fmt.Errorf("corrupted run %q: %w", r.RunID, err)
		}
		list = append(list, sum)
	}
	return list, nil
}

func (s *SQL) Delete(ctx context.Context, runID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM backtest_runs WHERE run_id = ?"), runID)
	if err != nil {
		return false, fmt.Errorf("failed to delete run %q: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
