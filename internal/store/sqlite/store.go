// Package sqlite provides the durable state store: the resumable position
// manager snapshot, the append-only trade log, and historical base candles
// for indicator warmup and backtesting.
package sqlite

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"spotenginev1/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Config configures the SQLite store.
type Config struct {
	DBPath string // path to the database file, e.g. "data/spotengine.db"
}

// Store is a single-writer SQLite store in WAL mode.
// Snapshot writes happen inside one transaction, so a crash mid-write can
// never leave a partially updated snapshot behind.
type Store struct {
	mu sync.Mutex
	db *sql.DB

	// OnCommit is invoked with the duration of every committed snapshot
	// write. Optional; assign before the store is shared.
	OnCommit func(time.Duration)
}

var _ model.StateStore = (*Store)(nil)

// New opens (or creates) the database, enables WAL, and applies the schema.
// Fails when the on-disk schema version is newer than this build supports.
func New(cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single-writer discipline
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	if err := checkVersion(db); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[sqlite] opened state store at %s", cfg.DBPath)
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS positions (
			id             TEXT PRIMARY KEY,
			entry_ts       INTEGER NOT NULL,
			entry_price    REAL    NOT NULL,
			size_base      REAL    NOT NULL,
			size_quote_raw INTEGER NOT NULL,
			quote_decimals INTEGER NOT NULL,
			status         TEXT    NOT NULL,
			open_reason    TEXT,
			open_score     REAL,
			high_water     REAL,
			entry_tx_sig   TEXT
		);

		CREATE TABLE IF NOT EXISTS ledger (
			id               INTEGER PRIMARY KEY CHECK (id = 1),
			starting_capital REAL    NOT NULL,
			current_capital  REAL    NOT NULL,
			updated_at       INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS trades (
			id            TEXT PRIMARY KEY,
			position_id   TEXT    NOT NULL,
			entry_ts      INTEGER NOT NULL,
			exit_ts       INTEGER NOT NULL,
			hold_ms       INTEGER NOT NULL,
			entry_price   REAL    NOT NULL,
			exit_price    REAL    NOT NULL,
			size_base     REAL    NOT NULL,
			pnl_percent   REAL    NOT NULL,
			exit_reason   TEXT    NOT NULL,
			exit_tx_sig   TEXT,
			created_at    INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);
		CREATE INDEX IF NOT EXISTS idx_trades_exit_ts ON trades(exit_ts);

		CREATE TABLE IF NOT EXISTS candles (
			ts     INTEGER PRIMARY KEY,
			open   REAL NOT NULL,
			high   REAL NOT NULL,
			low    REAL NOT NULL,
			close  REAL NOT NULL,
			volume REAL NOT NULL
		);
	`)
	return err
}

// checkVersion seeds the schema version on first run and rejects databases
// written by a newer build.
func checkVersion(db *sql.DB) error {
	var version sql.NullInt64
	err := db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if err == sql.ErrNoRows || (err == nil && !version.Valid) {
		_, err = db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, model.StateSchemaVersion)
		return err
	}
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version.Int64 > model.StateSchemaVersion {
		return fmt.Errorf("state schema version %d newer than supported %d", version.Int64, model.StateSchemaVersion)
	}
	return nil
}

// SaveState atomically replaces the persisted snapshot.
func (s *Store) SaveState(snap model.StateSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM positions`); err != nil {
		tx.Rollback()
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO positions (id, entry_ts, entry_price, size_base, size_quote_raw,
			quote_decimals, status, open_reason, open_score, high_water, entry_tx_sig)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	for _, p := range snap.Positions {
		_, err := stmt.Exec(p.ID, p.EntryTime.Unix(), p.EntryPrice, p.SizeBase, p.SizeQuoteRaw,
			p.QuoteDecimals, string(p.Status), p.OpenReason, p.OpenScore, p.HighWater, p.EntryTxSig)
		if err != nil {
			stmt.Close()
			tx.Rollback()
			return err
		}
	}
	stmt.Close()

	_, err = tx.Exec(`
		INSERT INTO ledger (id, starting_capital, current_capital, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			starting_capital = excluded.starting_capital,
			current_capital  = excluded.current_capital,
			updated_at       = excluded.updated_at
	`, snap.StartingCapital, snap.CurrentCapital, snap.UpdatedAt.Unix())
	if err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	if s.OnCommit != nil {
		s.OnCommit(time.Since(start))
	}
	return nil
}

// LoadState reads the persisted snapshot. Returns nil, nil when no ledger
// row exists yet (fresh database).
func (s *Store) LoadState() (*model.StateSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &model.StateSnapshot{Version: model.StateSchemaVersion}

	var updatedAt int64
	err := s.db.QueryRow(`SELECT starting_capital, current_capital, updated_at FROM ledger WHERE id = 1`).
		Scan(&snap.StartingCapital, &snap.CurrentCapital, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	snap.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	rows, err := s.db.Query(`
		SELECT id, entry_ts, entry_price, size_base, size_quote_raw, quote_decimals,
			status, open_reason, open_score, high_water, entry_tx_sig
		FROM positions
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p model.Position
		var entryTS int64
		var status string
		if err := rows.Scan(&p.ID, &entryTS, &p.EntryPrice, &p.SizeBase, &p.SizeQuoteRaw,
			&p.QuoteDecimals, &status, &p.OpenReason, &p.OpenScore, &p.HighWater, &p.EntryTxSig); err != nil {
			return nil, err
		}
		p.EntryTime = time.Unix(entryTS, 0).UTC()
		p.Status = model.PositionStatus(status)
		snap.Positions = append(snap.Positions, p)
	}
	return snap, rows.Err()
}

// AppendTrade persists one closed-trade record. Append-only: existing rows
// are never updated or deleted.
func (s *Store) AppendTrade(t model.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO trades (id, position_id, entry_ts, exit_ts, hold_ms, entry_price,
			exit_price, size_base, pnl_percent, exit_reason, exit_tx_sig)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.PositionID, t.EntryTime.Unix(), t.ExitTime.Unix(), t.HoldDuration.Milliseconds(),
		t.EntryPrice, t.ExitPrice, t.SizeBase, t.PnlPercent, string(t.ExitReason), t.ExitTxSig)
	return err
}

// LoadTrades returns the last limit trades, newest first. A non-positive
// limit returns all trades.
func (s *Store) LoadTrades(limit int) ([]model.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT id, position_id, entry_ts, exit_ts, hold_ms, entry_price,
			exit_price, size_base, pnl_percent, exit_reason, exit_tx_sig
		FROM trades ORDER BY exit_ts DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []model.Trade
	for rows.Next() {
		var t model.Trade
		var entryTS, exitTS, holdMS int64
		var reason string
		if err := rows.Scan(&t.ID, &t.PositionID, &entryTS, &exitTS, &holdMS,
			&t.EntryPrice, &t.ExitPrice, &t.SizeBase, &t.PnlPercent, &reason, &t.ExitTxSig); err != nil {
			return nil, err
		}
		t.EntryTime = time.Unix(entryTS, 0).UTC()
		t.ExitTime = time.Unix(exitTS, 0).UTC()
		t.HoldDuration = time.Duration(holdMS) * time.Millisecond
		t.ExitReason = model.ExitReason(reason)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// SaveCandles upserts base-timeframe candles for warmup and backtesting.
func (s *Store) SaveCandles(candles []model.Candle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO candles (ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.Exec(c.OpenTime.Unix(), c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// LoadCandles reads candles after the given Unix timestamp, oldest first.
// limit <= 0 means no limit.
func (s *Store) LoadCandles(afterTS int64, limit int) ([]model.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := `SELECT ts, open, high, low, close, volume FROM candles WHERE ts > ? ORDER BY ts ASC`
	args := []any{afterTS}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candles []model.Candle
	for rows.Next() {
		var c model.Candle
		var ts int64
		if err := rows.Scan(&ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, err
		}
		c.OpenTime = time.Unix(ts, 0).UTC()
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
