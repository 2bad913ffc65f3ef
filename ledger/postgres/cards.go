package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alovak/cardledger/ledger/models"
	"github.com/shopspring/decimal"
)

const cardColumns = `card_id, pan, cvv, date_of_expire, name, surname, currency, balance`

func (r *CardRepository) Create(ctx context.Context, card *models.Card) (*models.Card, error) {
	c := *card
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO cards (pan, cvv, date_of_expire, name, surname, currency, balance)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING card_id
	`, c.PAN, c.CVV, c.DateOfExpire, c.Name, c.Surname, c.Currency, c.Balance).Scan(&c.ID)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("pan exists: %w", models.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("creating card: %w", err)
	}
	return &c, nil
}

func (r *CardRepository) FindByID(ctx context.Context, id int64) (*models.Card, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE card_id = $1`, id)
	return scanCard(row)
}

func (r *CardRepository) FindByPAN(ctx context.Context, pan string) (*models.Card, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE pan = $1`, pan)
	return scanCard(row)
}

func (r *CardRepository) FindByName(ctx context.Context, name, surname string) ([]*models.Card, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+cardColumns+` FROM cards WHERE name = $1 AND surname = $2 ORDER BY card_id
	`, name, surname)
	if err != nil {
		return nil, fmt.Errorf("finding cards by name: %w", err)
	}
	return scanCards(rows)
}

func (r *CardRepository) FindAll(ctx context.Context) ([]*models.Card, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+cardColumns+` FROM cards ORDER BY card_id`)
	if err != nil {
		return nil, fmt.Errorf("listing cards: %w", err)
	}
	return scanCards(rows)
}

// Update overwrites the full record keyed by card_id.
func (r *CardRepository) Update(ctx context.Context, card *models.Card) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE cards SET pan = $1, cvv = $2, date_of_expire = $3, name = $4,
		       surname = $5, currency = $6, balance = $7
		 WHERE card_id = $8
	`, card.PAN, card.CVV, card.DateOfExpire, card.Name, card.Surname, card.Currency, card.Balance, card.ID)
	if err != nil {
		return false, fmt.Errorf("updating card: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *CardRepository) DeleteByID(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cards WHERE card_id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("deleting card: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *CardRepository) DeleteByPAN(ctx context.Context, pan string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cards WHERE pan = $1`, pan)
	if err != nil {
		return false, fmt.Errorf("deleting card: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *CardRepository) ExistsByPAN(ctx context.Context, pan string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM cards WHERE pan = $1`, pan).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking card existence: %w", err)
	}
	return true, nil
}

// Withdraw applies the debit as one conditional UPDATE: the CVV match and
// the balance predicate are evaluated by the engine atomically with the
// mutation, so a concurrent withdrawal cannot drive the balance negative.
func (r *CardRepository) Withdraw(ctx context.Context, pan, cvv string, amount decimal.Decimal) error {
	if err := models.CheckAmount(amount); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE cards SET balance = balance - $1
		 WHERE pan = $2 AND cvv = $3 AND balance >= $1
	`, amount, pan, cvv)
	if err != nil {
		return fmt.Errorf("withdrawing money: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		exists, err := r.ExistsByPAN(ctx, pan)
		if err != nil {
			return err
		}
		if !exists {
			return models.ErrNotFound
		}
		return models.ErrInsufficientFunds
	}
	return nil
}

func (r *CardRepository) Deposit(ctx context.Context, pan string, amount decimal.Decimal) error {
	if err := models.CheckAmount(amount); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE cards SET balance = balance + $1 WHERE pan = $2`, amount, pan)
	if err != nil {
		return fmt.Errorf("depositing money: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *CardRepository) DepositByName(ctx context.Context, name, surname string, amount decimal.Decimal) error {
	if err := models.CheckAmount(amount); err != nil {
		return err
	}
	pan, err := r.resolveOnePAN(ctx, name, surname)
	if err != nil {
		return err
	}
	return r.Deposit(ctx, pan, amount)
}

// Transfer runs the debit and the credit inside one transaction. The debit
// is conditioned on balance >= amount at write time; the advisory read
// before it only classifies the failure. Any error rolls the whole
// transfer back, so this backend never reports TransferPartiallyApplied.
func (r *CardRepository) Transfer(ctx context.Context, fromPAN, toPAN string, amount decimal.Decimal) (models.TransferStatus, error) {
	if err := models.CheckAmount(amount); err != nil {
		return models.TransferFailed, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return models.TransferFailed, fmt.Errorf("begin transfer: %w", err)
	}
	defer tx.Rollback()

	var balance decimal.Decimal
	err = tx.QueryRowContext(ctx, `SELECT balance FROM cards WHERE pan = $1`, fromPAN).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return models.TransferFailed, fmt.Errorf("source card: %w", models.ErrNotFound)
	}
	if err != nil {
		return models.TransferFailed, fmt.Errorf("finding source card: %w", err)
	}
	if balance.LessThan(amount) {
		return models.TransferFailed, models.ErrInsufficientFunds
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE cards SET balance = balance - $1 WHERE pan = $2 AND balance >= $1
	`, amount, fromPAN)
	if err != nil {
		return models.TransferFailed, fmt.Errorf("debiting source: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// A concurrent operation dropped the balance after the read above.
		return models.TransferFailed, models.ErrInsufficientFunds
	}

	res, err = tx.ExecContext(ctx, `UPDATE cards SET balance = balance + $1 WHERE pan = $2`, amount, toPAN)
	if err != nil {
		return models.TransferFailed, fmt.Errorf("crediting destination: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.TransferFailed, fmt.Errorf("destination card: %w", models.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return models.TransferFailed, fmt.Errorf("commit transfer: %w", err)
	}
	return models.TransferCompleted, nil
}

func (r *CardRepository) TransferByName(ctx context.Context, fromName, fromSurname, toName, toSurname string, amount decimal.Decimal) (models.TransferStatus, error) {
	if err := models.CheckAmount(amount); err != nil {
		return models.TransferFailed, err
	}
	fromPAN, err := r.resolveOnePAN(ctx, fromName, fromSurname)
	if err != nil {
		return models.TransferFailed, err
	}
	toPAN, err := r.resolveOnePAN(ctx, toName, toSurname)
	if err != nil {
		return models.TransferFailed, err
	}
	return r.Transfer(ctx, fromPAN, toPAN, amount)
}

// resolveOnePAN maps a holder name to its single card. Money movement by
// name refuses to guess between same-named holders.
func (r *CardRepository) resolveOnePAN(ctx context.Context, name, surname string) (string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT pan FROM cards WHERE name = $1 AND surname = $2 ORDER BY card_id LIMIT 2
	`, name, surname)
	if err != nil {
		return "", fmt.Errorf("resolving card by name: %w", err)
	}
	defer rows.Close()

	var pans []string
	for rows.Next() {
		var pan string
		if err := rows.Scan(&pan); err != nil {
			return "", err
		}
		pans = append(pans, pan)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	switch len(pans) {
	case 0:
		return "", models.ErrNotFound
	case 1:
		return pans[0], nil
	}
	return "", models.ErrAmbiguousName
}

func scanCard(row *sql.Row) (*models.Card, error) {
	var c models.Card
	err := row.Scan(&c.ID, &c.PAN, &c.CVV, &c.DateOfExpire, &c.Name, &c.Surname, &c.Currency, &c.Balance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding card: %w", err)
	}
	return &c, nil
}

func scanCards(rows *sql.Rows) ([]*models.Card, error) {
	defer rows.Close()
	var cards []*models.Card
	for rows.Next() {
		var c models.Card
		if err := rows.Scan(&c.ID, &c.PAN, &c.CVV, &c.DateOfExpire, &c.Name, &c.Surname, &c.Currency, &c.Balance); err != nil {
			return nil, err
		}
		cards = append(cards, &c)
	}
	return cards, rows.Err()
}
