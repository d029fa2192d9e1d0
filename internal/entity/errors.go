package entity

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Rejections the caller re-presents to the user.
var (
	ErrCreditBlocked        = errors.New("corporate customers cannot place orders while their balance is below their credit limit")
	ErrOwingExceeded        = errors.New("private customers cannot place orders while owing more than $100")
	ErrUnknownBoxSize       = errors.New("the selected box size is not available")
	ErrPaymentMethodInvalid = errors.New("invalid payment method")
	ErrInsufficientBalance  = errors.New("insufficient account balance")
	ErrModeMismatch         = errors.New("pricing mode does not match the item")
	ErrInvalidQuantity      = errors.New("quantity must not be negative")
	ErrInvalidAmount        = errors.New("payment amount must be positive")
	ErrEmptyOrder           = errors.New("order has no items")
	ErrCustomerRequired     = errors.New("staff must select a customer to order for")
	ErrOrderNotPending      = errors.New("order is no longer pending")
	ErrInvalidStatus        = errors.New("order status must not be empty")
	ErrOrderHasPayments     = errors.New("order has payments recorded and cannot be cancelled")
)

// Lookup and access errors.
var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("access denied")
	ErrUnauthenticated    = errors.New("please log in")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicate          = errors.New("already exists")
	ErrInvalidInput       = errors.New("invalid input")
	// ErrStockConflict means a conditional stock update matched no row.
	ErrStockConflict = errors.New("stock changed concurrently")
	// ErrVersionConflict means an event stream moved past the expected version.
	ErrVersionConflict = errors.New("event stream version conflict")
)

// InsufficientStockError rejects a whole order because one line asks for more
// than is on hand.
type InsufficientStockError struct {
	ItemID    int64
	ItemName  string
	Available decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("item %s does not have enough stock. Available: %s", e.ItemName, e.Available.String())
}

// IsRejection reports whether err is a user-facing business rejection rather
// than an operational failure.
func IsRejection(err error) bool {
	var stock *InsufficientStockError
	if errors.As(err, &stock) {
		return true
	}
	for _, target := range []error{
		ErrCreditBlocked, ErrOwingExceeded, ErrUnknownBoxSize, ErrPaymentMethodInvalid,
		ErrInsufficientBalance, ErrModeMismatch, ErrInvalidQuantity, ErrInvalidAmount,
		ErrEmptyOrder, ErrCustomerRequired, ErrOrderNotPending, ErrInvalidStatus,
		ErrOrderHasPayments,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
