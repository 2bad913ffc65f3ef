package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a referenced PAN or IIN does not exist.
	ErrNotFound = fmt.Errorf("not found")
	// ErrConflict is returned on a duplicate unique key (PAN or IIN).
	ErrConflict = fmt.Errorf("conflict")
	// ErrInsufficientFunds is returned when the balance is below the
	// requested amount, or the security code does not match, at write time.
	ErrInsufficientFunds = fmt.Errorf("insufficient funds")
	// ErrInvalidAmount is returned for non-positive monetary amounts.
	ErrInvalidAmount = fmt.Errorf("amount must be positive")
	// ErrAmbiguousName is returned when a name-based money operation matches
	// more than one card, so there is no safe card to pick.
	ErrAmbiguousName = fmt.Errorf("name matches more than one card")
)

// CheckAmount rejects amounts that are not strictly positive. Every money
// operation validates its amount before touching storage.
func CheckAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	return nil
}

// PartialTransferError reports a transfer where the debit succeeded but the
// paired credit did not. Possible only on backends without cross-record
// transactions; the funds have left the source card and must be reconciled.
type PartialTransferError struct {
	FromPAN string
	ToPAN   string
	Amount  decimal.Decimal
}

func (e *PartialTransferError) Error() string {
	return fmt.Sprintf("transfer partially applied: %s debited from %s, credit to %s failed",
		e.Amount, e.FromPAN, e.ToPAN)
}
