package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// Pool sizing: ticks for many games can run concurrently, each issuing a
// handful of short statements.
const (
	maxOpenConns = 25
	maxIdleConns = 5
)

// Connect opens and verifies a PostgreSQL connection pool.
func Connect(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}
