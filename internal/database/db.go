package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// InitSchema creates the tickets table when it does not exist yet, so a
// fresh database is usable without a separate migration step.  The
// indexes match the List filter columns and the issued_at ordering.
func InitSchema(ctx context.Context, db *sql.DB) error {
	const ddl = `CREATE TABLE IF NOT EXISTS tickets (
		id           CHAR(36)     NOT NULL PRIMARY KEY,
		theater_name VARCHAR(100) NOT NULL,
		user_id      VARCHAR(100) NOT NULL,
		movie_title  VARCHAR(200) NOT NULL,
		price_krw    INT          NOT NULL,
		status       VARCHAR(20)  NOT NULL DEFAULT 'issued',
		memo         TEXT         NULL,
		issued_at    DATETIME(6)  NOT NULL,
		canceled_at  DATETIME(6)  NULL,
		INDEX idx_tickets_issued_at (issued_at),
		INDEX idx_tickets_theater (theater_name),
		INDEX idx_tickets_user (user_id),
		INDEX idx_tickets_status (status)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`
	_, err := db.ExecContext(ctx, ddl)
	return err
}
