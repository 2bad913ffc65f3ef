package ledger

import (
	"context"

	"github.com/alovak/cardledger/ledger/models"
	"github.com/shopspring/decimal"
)

// UserStore is the capability contract for account-holder persistence. Every
// backend implements the same surface; callers never see which one they got.
type UserStore interface {
	// Create persists a new holder and returns the persisted form. A
	// duplicate IIN is reported as models.ErrConflict.
	Create(ctx context.Context, user *models.CardUser) (*models.CardUser, error)
	FindByIIN(ctx context.Context, iin string) (*models.CardUser, error)
	// FindByName returns the best match for the given name pair.
	FindByName(ctx context.Context, name, surname string) (*models.CardUser, error)
	FindAll(ctx context.Context) ([]*models.CardUser, error)
	// Update overwrites the record keyed by IIN and reports whether any
	// record changed.
	Update(ctx context.Context, user *models.CardUser) (bool, error)
	DeleteByIIN(ctx context.Context, iin string) (bool, error)
	ExistsByIIN(ctx context.Context, iin string) (bool, error)
}

// CardStore is the capability contract for cards and money movement.
//
// All monetary amounts must be strictly positive; implementations reject
// anything else with models.ErrInvalidAmount before touching storage.
// Overdraft prevention is pushed to the storage engine: the debit predicate
// (balance >= amount) is evaluated atomically with the mutation, never by
// the caller.
type CardStore interface {
	// Create persists a new card and returns it with the backend-assigned
	// ID. A duplicate PAN is reported as models.ErrConflict.
	Create(ctx context.Context, card *models.Card) (*models.Card, error)
	FindByID(ctx context.Context, id int64) (*models.Card, error)
	FindByPAN(ctx context.Context, pan string) (*models.Card, error)
	// FindByName returns every card whose holder name matches, in
	// backend-defined order.
	FindByName(ctx context.Context, name, surname string) ([]*models.Card, error)
	FindAll(ctx context.Context) ([]*models.Card, error)
	Update(ctx context.Context, card *models.Card) (bool, error)
	DeleteByID(ctx context.Context, id int64) (bool, error)
	DeleteByPAN(ctx context.Context, pan string) (bool, error)
	ExistsByPAN(ctx context.Context, pan string) (bool, error)

	// Withdraw decrements the balance if the security code matches and the
	// balance covers the amount, as a single conditional write. It fails
	// closed with models.ErrInsufficientFunds otherwise.
	Withdraw(ctx context.Context, pan, cvv string, amount decimal.Decimal) error
	// Deposit increments the balance of an existing card.
	Deposit(ctx context.Context, pan string, amount decimal.Decimal) error
	// DepositByName resolves the holder name to exactly one card, then
	// deposits. More than one match is models.ErrAmbiguousName.
	DepositByName(ctx context.Context, name, surname string, amount decimal.Decimal) error

	// Transfer moves amount between two cards. The returned status is
	// TransferCompleted only when both the conditional debit and the credit
	// modified exactly one record. Backends without cross-record
	// transactions may report TransferPartiallyApplied together with a
	// *models.PartialTransferError.
	Transfer(ctx context.Context, fromPAN, toPAN string, amount decimal.Decimal) (models.TransferStatus, error)
	// TransferByName resolves both parties to exactly one card each, then
	// delegates to Transfer.
	TransferByName(ctx context.Context, fromName, fromSurname, toName, toSurname string, amount decimal.Decimal) (models.TransferStatus, error)
}
