package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// PersonKind tags the variant stored in the shared persons table.
type PersonKind string

const (
	PersonStaff     PersonKind = "staff"
	PersonCustomer  PersonKind = "customer"
	PersonCorporate PersonKind = "corporate"
)

// Role is what the session layer hands to the services.
type Role string

const (
	RoleStaff    Role = "staff"
	RoleCustomer Role = "customer"
)

// Person is the common record for staff and customers. Exactly one of Staff
// or Customer is set, depending on Kind.
type Person struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	PasswordHash string     `json:"-"`
	Kind         PersonKind `json:"kind"`
	Staff        *StaffInfo `json:"staff,omitempty"`
	Customer     *Customer  `json:"customer,omitempty"`
}

// Role maps the stored kind onto the session role.
func (p *Person) Role() Role {
	if p.Kind == PersonStaff {
		return RoleStaff
	}
	return RoleCustomer
}

func (p *Person) FullName() string {
	return p.FirstName + " " + p.LastName
}

// StaffInfo holds the staff-only columns.
type StaffInfo struct {
	StaffCode  string    `json:"staff_code"`
	Department string    `json:"department"`
	DateJoined time.Time `json:"date_joined"`
}

// Customer is the view of a person the pricing engine and the payment flow
// work with. Corporate is nil for private customers.
type Customer struct {
	ID                int64           `json:"id"`
	Username          string          `json:"username"`
	FirstName         string          `json:"first_name"`
	LastName          string          `json:"last_name"`
	Address           string          `json:"address"`
	CustomerCode      string          `json:"customer_code"`
	Balance           decimal.Decimal `json:"balance"`
	Owing             decimal.Decimal `json:"owing"`
	DistanceFromStore float64         `json:"distance_from_store"`
	Corporate         *CorporateInfo  `json:"corporate,omitempty"`
}

// CorporateInfo holds the corporate-only columns. DiscountRate is the
// negotiated rate kept on file for staff records; pricing applies the flat
// pricing.CorporateMultiplier and never reads it.
type CorporateInfo struct {
	CreditCeiling decimal.Decimal `json:"credit_ceiling"`
	DiscountRate  decimal.Decimal `json:"discount_rate"`
	MaxCredit     decimal.Decimal `json:"max_credit"`
}

func (c *Customer) IsCorporate() bool {
	return c.Corporate != nil
}

// Type is the label used in staff listings and exports.
func (c *Customer) Type() string {
	if c.IsCorporate() {
		return "Corporate"
	}
	return "Private"
}

func (c *Customer) FullName() string {
	return c.FirstName + " " + c.LastName
}
