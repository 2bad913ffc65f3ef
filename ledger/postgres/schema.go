package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// InitSchema creates the ledger tables when they do not exist. Uniqueness of
// pan and iin is enforced here; the adapters rely on those constraints for
// conflict detection.
func InitSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS card_users (
			name    VARCHAR(100) NOT NULL,
			surname VARCHAR(100) NOT NULL,
			iin     VARCHAR(20) PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS cards (
			card_id        SERIAL PRIMARY KEY,
			pan            VARCHAR(16) UNIQUE NOT NULL,
			cvv            VARCHAR(3) NOT NULL,
			date_of_expire VARCHAR(5) NOT NULL,
			name           VARCHAR(100) NOT NULL,
			surname        VARCHAR(100) NOT NULL,
			currency       VARCHAR(10),
			balance        DECIMAL(15, 2) NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}
