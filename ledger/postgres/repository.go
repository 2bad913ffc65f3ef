// Package postgres implements the ledger store contracts on PostgreSQL.
// Money movement relies on row-level locking and multi-statement
// transactions; a transfer is never observable half-applied.
package postgres

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/lib/pq"
)

// UserRepository is the PostgreSQL-backed UserStore.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// CardRepository is the PostgreSQL-backed CardStore.
type CardRepository struct {
	db *sql.DB
}

func NewCardRepository(db *sql.DB) *CardRepository {
	return &CardRepository{db: db}
}

func isUniqueViolation(err error) bool {
	var pe *pq.Error
	if errors.As(err, &pe) && pe.Code == "23505" {
		return true
	}
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && pgerr.Code == "23505" {
		return true
	}
	return false
}
