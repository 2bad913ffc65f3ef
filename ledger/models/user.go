package models

// CardUser is an account holder identified by IIN. The IIN is unique and
// immutable once created.
type CardUser struct {
	Name    string `json:"name"`
	Surname string `json:"surname"`
	IIN     string `json:"iin"`
}

func (u *CardUser) FullName() string {
	return u.Name + " " + u.Surname
}
