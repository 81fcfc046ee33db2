package venue

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"breakout-botv1/internal/model"
)

// CandleStore persists candle windows to SQLite so the backtester can
// replay them offline. One table keyed by (symbol, timeframe, ts).
type CandleStore struct {
	db *sql.DB
}

// NewCandleStore opens (or creates) the candle database with WAL mode.
func NewCandleStore(dbPath string) (*CandleStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("candlestore open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS candles (
			symbol    TEXT    NOT NULL,
			tf        TEXT    NOT NULL,
			ts        INTEGER NOT NULL,
			open      REAL    NOT NULL,
			high      REAL    NOT NULL,
			low       REAL    NOT NULL,
			close     REAL    NOT NULL,
			volume    INTEGER,
			PRIMARY KEY (symbol, tf, ts)
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("candlestore schema: %w", err)
	}

	log.Printf("[candlestore] opened %s", dbPath)
	return &CandleStore{db: db}, nil
}

// SaveCandles upserts a batch of candles in a single transaction.
func (s *CandleStore) SaveCandles(tf string, candles []model.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO candles (symbol, tf, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.Exec(c.Symbol, tf, c.TS.Unix(), c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// ReadCandles returns up to limit candles for symbol/tf after afterTS,
// ordered by timestamp ascending for correct replay order. limit <= 0
// means no limit.
func (s *CandleStore) ReadCandles(symbol, tf string, afterTS int64, limit int) ([]model.Candle, error) {
	q := `
		SELECT symbol, ts, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND tf = ? AND ts > ?
		ORDER BY ts ASC`
	args := []interface{}{symbol, tf, afterTS}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("candlestore query: %w", err)
	}
	defer rows.Close()

	var candles []model.Candle
	for rows.Next() {
		var c model.Candle
		var tsUnix int64
		if err := rows.Scan(&c.Symbol, &tsUnix, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("candlestore scan: %w", err)
		}
		c.TS = time.Unix(tsUnix, 0).UTC()
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

// LastTimestamp returns the newest stored candle timestamp for
// symbol/tf, or 0 when none exist.
func (s *CandleStore) LastTimestamp(symbol, tf string) (int64, error) {
	var ts sql.NullInt64
	err := s.db.QueryRow(
		`SELECT MAX(ts) FROM candles WHERE symbol = ? AND tf = ?`,
		symbol, tf,
	).Scan(&ts)
	if err != nil {
		return 0, err
	}
	if !ts.Valid {
		return 0, nil
	}
	return ts.Int64, nil
}

// Close closes the database.
func (s *CandleStore) Close() error {
	return s.db.Close()
}
