package models

import "github.com/shopspring/decimal"

// IssueCard is the request to issue a new card for an existing holder.
// PAN, CVV and expiry are generated server-side.
type IssueCard struct {
	IIN      string          `json:"iin"`
	Currency string          `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
}

// MoneyRequest is a PAN-keyed deposit or withdrawal.
type MoneyRequest struct {
	PAN    string          `json:"pan"`
	CVV    string          `json:"cvv,omitempty"`
	Amount decimal.Decimal `json:"amount"`
}

// TransferRequest moves funds between two cards, keyed by PAN.
type TransferRequest struct {
	FromPAN string          `json:"from_pan"`
	ToPAN   string          `json:"to_pan"`
	Amount  decimal.Decimal `json:"amount"`
}
