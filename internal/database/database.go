// Package database implements the persistence layer on SQLite.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"quadra/internal/models"
)

// DB wraps sql.DB for the booking core.
type DB struct {
	*sql.DB
}

// NewDB opens the database at path and runs migrations. busyTimeoutMS bounds
// how long a connection waits on the database lock; zero means 5 seconds.
// The DSN requests immediate transactions so that a write transaction takes
// the database lock up front; the conflict-check-then-insert in reservations
// relies on that to stay atomic.
func NewDB(path string, busyTimeoutMS int) (*DB, error) {
	if busyTimeoutMS <= 0 {
		busyTimeoutMS = 5000
	}
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=%d&_txlock=immediate", path, busyTimeoutMS)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := createTables(db); err != nil {
		return nil, err
	}
	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS courts (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT UNIQUE NOT NULL,
            description TEXT,
            category TEXT NOT NULL,
            price_per_hour REAL NOT NULL,
            status TEXT NOT NULL DEFAULT 'available',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE TABLE IF NOT EXISTS court_schedules (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            court_id INTEGER NOT NULL,
            day_of_week INTEGER NOT NULL,
            start_time TEXT NOT NULL,
            end_time TEXT NOT NULL,
            is_available BOOLEAN NOT NULL DEFAULT 1,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            FOREIGN KEY (court_id) REFERENCES courts(id)
        )`,

		`CREATE TABLE IF NOT EXISTS schedule_blocks (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            court_id INTEGER NOT NULL,
            date TEXT NOT NULL,
            start_time TEXT,
            end_time TEXT,
            reason TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            FOREIGN KEY (court_id) REFERENCES courts(id)
        )`,

		`CREATE TABLE IF NOT EXISTS reservations (
            id TEXT PRIMARY KEY,
            court_id INTEGER NOT NULL,
            date TEXT NOT NULL,
            start_time TEXT NOT NULL,
            end_time TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            total_price REAL NOT NULL,
            client_name TEXT NOT NULL,
            client_phone TEXT NOT NULL,
            notes TEXT,
            applied_promotion_id INTEGER,
            idempotency_key TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            FOREIGN KEY (court_id) REFERENCES courts(id)
        )`,

		`CREATE TABLE IF NOT EXISTS promotions (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            court_id INTEGER,
            title TEXT NOT NULL,
            description TEXT,
            discount_percentage REAL,
            fixed_price REAL,
            start_date TEXT,
            end_date TEXT,
            start_time TEXT,
            end_time TEXT,
            days_of_week TEXT,
            is_active BOOLEAN NOT NULL DEFAULT 1,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            FOREIGN KEY (court_id) REFERENCES courts(id)
        )`,

		`CREATE TABLE IF NOT EXISTS battles (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            modality TEXT NOT NULL,
            format TEXT NOT NULL,
            rules TEXT,
            court_id INTEGER,
            scheduled_time DATETIME,
            status TEXT NOT NULL DEFAULT 'waiting',
            max_participants INTEGER NOT NULL,
            current_participants INTEGER NOT NULL DEFAULT 0,
            team1_score INTEGER NOT NULL DEFAULT 0,
            team2_score INTEGER NOT NULL DEFAULT 0,
            current_set INTEGER NOT NULL DEFAULT 1,
            best_of INTEGER NOT NULL DEFAULT 1,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            FOREIGN KEY (court_id) REFERENCES courts(id)
        )`,

		`CREATE TABLE IF NOT EXISTS battle_participants (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            battle_id TEXT NOT NULL,
            user_id TEXT NOT NULL,
            team INTEGER NOT NULL,
            player_name TEXT NOT NULL,
            joined_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            UNIQUE (battle_id, user_id),
            FOREIGN KEY (battle_id) REFERENCES battles(id)
        )`,

		// One pending score claim per team per battle. Both rows must agree
		// before a set commits; on mismatch both are deleted.
		`CREATE TABLE IF NOT EXISTS battle_score_claims (
            battle_id TEXT NOT NULL,
            team INTEGER NOT NULL,
            set_number INTEGER NOT NULL,
            team1_score INTEGER NOT NULL,
            team2_score INTEGER NOT NULL,
            submitted_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            PRIMARY KEY (battle_id, team),
            FOREIGN KEY (battle_id) REFERENCES battles(id)
        )`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_courts_status ON courts(status)`,
		`CREATE INDEX IF NOT EXISTS idx_schedules_court_day ON court_schedules(court_id, day_of_week)`,
		`CREATE INDEX IF NOT EXISTS idx_blocks_court_date ON schedule_blocks(court_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_slot ON reservations(court_id, date, start_time, end_time)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_status ON reservations(status)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_reservations_idem
            ON reservations(idempotency_key) WHERE idempotency_key IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_promotions_active ON promotions(is_active)`,
		`CREATE INDEX IF NOT EXISTS idx_battles_status ON battles(status)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

// wrapErr maps context deadline failures to the typed timeout error and
// everything else to a StoreError. sql.ErrNoRows passes through for callers
// that translate it to their own not-found error.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.ErrTimeout
	}
	return &models.StoreError{Op: op, Err: err}
}
