package domain

import "time"

// CrmAgent is a back-office operator tickets can be assigned to.
type CrmAgent struct {
	ID        string
	VendorID  string
	Name      string
	Phone     *string
	Email     *string
	Skills    []string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
