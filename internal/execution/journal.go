package execution

import (
	"database/sql"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"futures-botv1/internal/model"
)

// Journal persists order fills to SQLite for analysis and audit.
// Write-only during a run: nothing is read back at startup.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// NewJournal opens (or creates) a SQLite journal database.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_sync=NORMAL")
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS fills (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id    TEXT NOT NULL,
		symbol      TEXT NOT NULL,
		exchange    TEXT NOT NULL,
		action      TEXT NOT NULL,
		qty         INTEGER NOT NULL,
		avg_price   INTEGER NOT NULL,
		position    INTEGER NOT NULL,
		filled_at   DATETIME NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_fills_symbol ON fills(symbol, exchange);
	CREATE INDEX IF NOT EXISTS idx_fills_filled_at ON fills(filled_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[journal] opened trade journal at %s", dbPath)
	return &Journal{db: db}, nil
}

// RecordFill persists a fill and the confirmed position after it.
func (j *Journal) RecordFill(spec model.ContractSpec, handle model.OrderHandle, res model.OrderResult, position int64) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(
		`INSERT INTO fills (order_id, symbol, exchange, action, qty, avg_price, position, filled_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		res.OrderID,
		spec.Symbol,
		spec.Exchange,
		string(handle.Action),
		res.FilledQty,
		res.AvgPrice,
		position,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// FillRecord represents a row from the fills table.
type FillRecord struct {
	ID       int64  `json:"id"`
	OrderID  string `json:"order_id"`
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
	Action   string `json:"action"`
	Qty      int64  `json:"qty"`
	AvgPrice int64  `json:"avg_price"`
	Position int64  `json:"position"`
	FilledAt string `json:"filled_at"`
}

// Fills returns the last N fills, newest first.
func (j *Journal) Fills(limit int) ([]FillRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		`SELECT id, order_id, symbol, exchange, action, qty, avg_price, position, filled_at
		 FROM fills ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fills []FillRecord
	for rows.Next() {
		var f FillRecord
		if err := rows.Scan(&f.ID, &f.OrderID, &f.Symbol, &f.Exchange, &f.Action,
			&f.Qty, &f.AvgPrice, &f.Position, &f.FilledAt); err != nil {
			continue
		}
		fills = append(fills, f)
	}
	return fills, nil
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
