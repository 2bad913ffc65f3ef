package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alovak/cardledger/ledger/models"
)

func (r *UserRepository) Create(ctx context.Context, user *models.CardUser) (*models.CardUser, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO card_users (name, surname, iin) VALUES ($1, $2, $3)
	`, user.Name, user.Surname, user.IIN)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("iin %s: %w", user.IIN, models.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("creating card user: %w", err)
	}
	u := *user
	return &u, nil
}

func (r *UserRepository) FindByIIN(ctx context.Context, iin string) (*models.CardUser, error) {
	row := r.db.QueryRowContext(ctx, `SELECT name, surname, iin FROM card_users WHERE iin = $1`, iin)
	return scanUser(row)
}

func (r *UserRepository) FindByName(ctx context.Context, name, surname string) (*models.CardUser, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT name, surname, iin FROM card_users WHERE name = $1 AND surname = $2 ORDER BY iin LIMIT 1
	`, name, surname)
	return scanUser(row)
}

func (r *UserRepository) FindAll(ctx context.Context) ([]*models.CardUser, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name, surname, iin FROM card_users ORDER BY iin`)
	if err != nil {
		return nil, fmt.Errorf("listing card users: %w", err)
	}
	defer rows.Close()

	var users []*models.CardUser
	for rows.Next() {
		var u models.CardUser
		if err := rows.Scan(&u.Name, &u.Surname, &u.IIN); err != nil {
			return nil, err
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

func (r *UserRepository) Update(ctx context.Context, user *models.CardUser) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE card_users SET name = $1, surname = $2 WHERE iin = $3
	`, user.Name, user.Surname, user.IIN)
	if err != nil {
		return false, fmt.Errorf("updating card user: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *UserRepository) DeleteByIIN(ctx context.Context, iin string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM card_users WHERE iin = $1`, iin)
	if err != nil {
		return false, fmt.Errorf("deleting card user: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *UserRepository) ExistsByIIN(ctx context.Context, iin string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM card_users WHERE iin = $1`, iin).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking card user existence: %w", err)
	}
	return true, nil
}

func scanUser(row *sql.Row) (*models.CardUser, error) {
	var u models.CardUser
	if err := row.Scan(&u.Name, &u.Surname, &u.IIN); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("finding card user: %w", err)
	}
	return &u, nil
}
