package run

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/newthinker/crossbt/internal/core"
	"github.com/newthinker/crossbt/internal/stats"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

var _ Store = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id               TEXT PRIMARY KEY,
	strategy         TEXT NOT NULL,
	description      TEXT NOT NULL,
	symbol           TEXT NOT NULL,
	interval         TEXT NOT NULL,
	bars             INTEGER NOT NULL,
	start_ms         INTEGER NOT NULL,
	end_ms           INTEGER NOT NULL,
	total_return     REAL,
	sharpe_ratio     REAL,
	max_drawdown     REAL,
	winrate          REAL,
	expectancy       REAL,
	exposure_time    REAL,
	aggregate_return REAL NOT NULL,
	trades           INTEGER NOT NULL,
	location         TEXT NOT NULL,
	created_ms       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_symbol_strategy ON runs (symbol, strategy);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs (created_ms);
`

const columns = `id, strategy, description, symbol, interval, bars, start_ms, end_ms,
	total_return, sharpe_ratio, max_drawdown, winrate, expectancy, exposure_time,
	aggregate_return, trades, location, created_ms`

// SQLiteStore persists runs in a SQLite database. Undefined metrics are
// stored as NULL.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dsn and ensures the
// runs table exists.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	// Single writer avoids SQLITE_BUSY across pooled connections.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("creating schema: %w", err))
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Save(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	m := rec.Metrics
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Strategy, rec.Description, rec.Symbol, rec.Interval, rec.Bars,
		rec.Start.UnixMilli(), rec.End.UnixMilli(),
		nullable(m.TotalReturn), nullable(m.SharpeRatio), nullable(m.MaxDrawdown),
		nullable(m.WinRate), nullable(m.Expectancy), nullable(m.ExposureTime),
		rec.AggregateReturn, rec.Trades, rec.Location, rec.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("inserting run %s: %w", rec.ID, err))
	}
	return nil
}

func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM runs WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.WrapError(core.ErrRunNotFound, fmt.Errorf("id %s", id))
	}
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	return rec, nil
}

func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]Record, error) {
	where, args := filterClause(filter)

	limit := -1
	if filter.Limit > 0 {
		limit = filter.Limit
	}
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+columns+` FROM runs`+where+` ORDER BY created_ms DESC, rowid DESC LIMIT ? OFFSET ?`,
		args...)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	defer rows.Close()

	result := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, core.WrapError(core.ErrStorageFailed, err)
		}
		result = append(result, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	return result, nil
}

func (s *SQLiteStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	where, args := filterClause(filter)

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`+where, args...).Scan(&n); err != nil {
		return 0, core.WrapError(core.ErrStorageFailed, err)
	}
	return n, nil
}

func filterClause(filter ListFilter) (string, []any) {
	var conds []string
	var args []any
	if filter.Symbol != "" {
		conds = append(conds, "symbol = ?")
		args = append(args, filter.Symbol)
	}
	if filter.Strategy != "" {
		conds = append(conds, "strategy = ?")
		args = append(args, filter.Strategy)
	}
	if !filter.From.IsZero() {
		conds = append(conds, "created_ms >= ?")
		args = append(args, filter.From.UnixMilli())
	}
	if !filter.To.IsZero() {
		conds = append(conds, "created_ms <= ?")
		args = append(args, filter.To.UnixMilli())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		rec                     Record
		startMs, endMs, created int64
		values                  [6]sql.NullFloat64
	)
	err := row.Scan(
		&rec.ID, &rec.Strategy, &rec.Description, &rec.Symbol, &rec.Interval, &rec.Bars,
		&startMs, &endMs,
		&values[0], &values[1], &values[2], &values[3], &values[4], &values[5],
		&rec.AggregateReturn, &rec.Trades, &rec.Location, &created,
	)
	if err != nil {
		return nil, err
	}

	rec.Start = time.UnixMilli(startMs).UTC()
	rec.End = time.UnixMilli(endMs).UTC()
	rec.CreatedAt = time.UnixMilli(created).UTC()
	ptrs := make(map[string]*float64, len(stats.Names))
	for i, name := range stats.Names {
		if values[i].Valid {
			v := values[i].Float64
			ptrs[name] = &v
		}
	}
	rec.Metrics = stats.FromPointers(ptrs)
	return &rec, nil
}

func nullable(v optional.Option[float64]) sql.NullFloat64 {
	if v.IsNone() {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v.Unwrap(), Valid: true}
}
