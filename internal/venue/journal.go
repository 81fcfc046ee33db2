package venue

import (
	"database/sql"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"breakout-botv1/internal/model"
)

// Journal persists dispatched orders and stop moves to SQLite for
// analysis and audit. It implements the scheduler's Recorder interface.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// NewJournal opens (or creates) a SQLite journal database.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS orders (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id     TEXT NOT NULL,
		symbol       TEXT NOT NULL,
		direction    TEXT NOT NULL,
		volume       REAL NOT NULL,
		entry_price  REAL NOT NULL,
		stop_price   REAL NOT NULL,
		target_price REAL NOT NULL,
		rationale    TEXT,
		magic        INTEGER,
		accepted     INTEGER NOT NULL,
		reason       TEXT,
		created_at   DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_orders_symbol ON orders(symbol);
	CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at);

	CREATE TABLE IF NOT EXISTS stop_moves (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id   TEXT NOT NULL DEFAULT '',
		symbol     TEXT NOT NULL,
		direction  TEXT NOT NULL,
		new_stop   REAL NOT NULL,
		reason     TEXT,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_stop_moves_symbol ON stop_moves(symbol);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[journal] opened trade journal at %s", dbPath)
	return &Journal{db: db}, nil
}

// RecordOrder persists a dispatched order and its venue outcome.
func (j *Journal) RecordOrder(spec model.OrderSpec, res model.OrderResult) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	accepted := 0
	if res.Accepted {
		accepted = 1
	}
	_, err := j.db.Exec(
		`INSERT INTO orders (order_id, symbol, direction, volume, entry_price, stop_price, target_price, rationale, magic, accepted, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.OrderID,
		spec.Symbol,
		string(spec.Direction),
		spec.Volume,
		spec.EntryPrice,
		spec.StopPrice,
		spec.TargetPrice,
		spec.Rationale,
		spec.Magic,
		accepted,
		res.Reason,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// RecordStopMove persists a break-even stop adjustment.
func (j *Journal) RecordStopMove(adj model.StopAdjustment) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(
		`INSERT INTO stop_moves (order_id, symbol, direction, new_stop, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		adj.OrderID,
		adj.Symbol,
		string(adj.Direction),
		adj.NewStop,
		adj.Reason,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// OrderRecord represents a row from the orders table.
type OrderRecord struct {
	ID          int64   `json:"id"`
	OrderID     string  `json:"order_id"`
	Symbol      string  `json:"symbol"`
	Direction   string  `json:"direction"`
	Volume      float64 `json:"volume"`
	EntryPrice  float64 `json:"entry_price"`
	StopPrice   float64 `json:"stop_price"`
	TargetPrice float64 `json:"target_price"`
	Rationale   string  `json:"rationale"`
	Accepted    bool    `json:"accepted"`
	Reason      string  `json:"reason,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

// RecentOrders returns the last N journaled orders, newest first.
func (j *Journal) RecentOrders(limit int) ([]OrderRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		`SELECT id, order_id, symbol, direction, volume, entry_price, stop_price, target_price, rationale, accepted, reason, created_at
		 FROM orders ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []OrderRecord
	for rows.Next() {
		var r OrderRecord
		var accepted int
		if err := rows.Scan(&r.ID, &r.OrderID, &r.Symbol, &r.Direction, &r.Volume,
			&r.EntryPrice, &r.StopPrice, &r.TargetPrice, &r.Rationale, &accepted, &r.Reason, &r.CreatedAt); err != nil {
			continue
		}
		r.Accepted = accepted != 0
		records = append(records, r)
	}
	return records, rows.Err()
}

// Ping reports whether the underlying database is reachable.
func (j *Journal) Ping() error {
	return j.db.Ping()
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
