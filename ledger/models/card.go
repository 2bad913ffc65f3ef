package models

import "github.com/shopspring/decimal"

// Card is a payment instrument. The holder name is denormalized onto the
// card; there is no enforced link back to a CardUser record.
type Card struct {
	// ID is the backend-assigned surrogate key; zero before creation.
	ID           int64           `json:"card_id"`
	PAN          string          `json:"pan"`
	CVV          string          `json:"cvv"`
	DateOfExpire string          `json:"date_of_expire"`
	Name         string          `json:"name"`
	Surname      string          `json:"surname"`
	Currency     string          `json:"currency"`
	Balance      decimal.Decimal `json:"balance"`
}

func (c *Card) FullName() string {
	return c.Name + " " + c.Surname
}
