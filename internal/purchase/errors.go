package purchase

import (
	"errors"
	"fmt"

	"fsanano/storefront/internal/model"
)

// ErrInvalidQuantity is returned before any request when the quantity is
// not between 1 and the available inventory.
var ErrInvalidQuantity = errors.New("please enter a valid quantity")

// ErrInvalidPrice is returned before any request when the unit price is
// negative.
var ErrInvalidPrice = errors.New("unit price cannot be negative")

// InventoryUpdateFailedError means the inventory decrement was not
// acknowledged. Nothing was charged.
type InventoryUpdateFailedError struct {
	PurchaseID string
	ProductID  model.ID
	Err        error
}

func (e *InventoryUpdateFailedError) Error() string {
	return fmt.Sprintf("purchase %s: inventory update failed for product %s: %v", e.PurchaseID, e.ProductID, e.Err)
}

func (e *InventoryUpdateFailedError) Unwrap() error {
	return e.Err
}

// PartialCommitError means the inventory was decremented but the balance
// debit failed. Unless compensation was enabled and succeeded, the stock
// stays removed and the user was not charged.
type PartialCommitError struct {
	PurchaseID string
	ProductID  model.ID
	Quantity   int
	TotalCost  model.Money
	Err        error

	Compensated     bool
	CompensationErr error
}

func (e *PartialCommitError) Error() string {
	msg := fmt.Sprintf("purchase %s: inventory updated but charging %s failed: %v", e.PurchaseID, e.TotalCost, e.Err)
	switch {
	case e.Compensated:
		msg += " (inventory restored)"
	case e.CompensationErr != nil:
		msg += fmt.Sprintf(" (inventory restore failed: %v)", e.CompensationErr)
	}
	return msg
}

func (e *PartialCommitError) Unwrap() error {
	return e.Err
}
