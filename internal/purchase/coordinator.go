package purchase

import (
	"context"
	"log/slog"

	"fsanano/storefront/internal/client"
	"fsanano/storefront/internal/model"

	"github.com/google/uuid"
)

// Inventory changes a product's stock on the server.
type Inventory interface {
	ChangeInventory(ctx context.Context, productID model.ID, delta int) (int, error)
}

// Balance debits the caller's deposit on the server.
type Balance interface {
	MinusDeposit(ctx context.Context, amount model.Money) (model.Money, error)
}

// View is the local state a purchase reconciles once both steps succeed.
type View interface {
	SetInventory(productID model.ID, inventory int) error
	RefreshBalance(ctx context.Context) error
}

type State string

const (
	StateIdle                  State = "idle"
	StateInventoryPending      State = "inventory_pending"
	StateBalancePending        State = "balance_pending"
	StateCommitted             State = "committed"
	StateInventoryUpdateFailed State = "inventory_update_failed"
	StatePartiallyCommitted    State = "partially_committed"
)

type Request struct {
	ProductID          model.ID
	Quantity           int
	UnitPrice          model.Money
	AvailableInventory int
}

type Receipt struct {
	PurchaseID string
	ProductID  model.ID
	Quantity   int
	TotalCost  model.Money
	// Inventory is the cached value after the purchase: the available
	// inventory the request was made against, less the quantity bought.
	Inventory int
	// ServerInventory is the inventory the server acknowledged.
	ServerInventory int
	State           State
	// BalanceRefreshErr is set when the purchase committed but reloading
	// the balance afterwards failed.
	BalanceRefreshErr error
	// ViewErr is set when the purchase committed but the cached inventory
	// could not be updated.
	ViewErr error
}

type Option func(*Coordinator)

// WithCompensation restores the inventory when the balance debit fails.
func WithCompensation() Option {
	return func(c *Coordinator) { c.compensate = true }
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Coordinator) { c.log = log }
}

// Coordinator runs a purchase as two sequential, non-transactional calls:
// decrement inventory, then debit the balance.
type Coordinator struct {
	inventory  Inventory
	balance    Balance
	view       View
	log        *slog.Logger
	compensate bool
	newID      func() string
}

func NewCoordinator(inventory Inventory, balance Balance, view View, opts ...Option) *Coordinator {
	c := &Coordinator{
		inventory: inventory,
		balance:   balance,
		view:      view,
		log:       slog.Default(),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) Purchase(ctx context.Context, req Request) (Receipt, error) {
	receipt := Receipt{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		State:     StateIdle,
	}
	if req.Quantity <= 0 || req.Quantity > req.AvailableInventory {
		return receipt, ErrInvalidQuantity
	}
	if req.UnitPrice.IsNegative() {
		return receipt, ErrInvalidPrice
	}

	receipt.PurchaseID = c.newID()
	receipt.TotalCost = req.UnitPrice.Times(req.Quantity)
	log := c.log.With("purchase_id", receipt.PurchaseID, "product_id", req.ProductID, "quantity", req.Quantity)

	receipt.State = StateInventoryPending
	serverInventory, err := c.inventory.ChangeInventory(
		client.WithIdempotencyKey(ctx, receipt.PurchaseID+":inventory"), req.ProductID, -req.Quantity)
	if err != nil {
		receipt.State = StateInventoryUpdateFailed
		log.WarnContext(ctx, "inventory update failed", "error", err)
		return receipt, &InventoryUpdateFailedError{PurchaseID: receipt.PurchaseID, ProductID: req.ProductID, Err: err}
	}
	receipt.ServerInventory = serverInventory

	receipt.State = StateBalancePending
	if receipt.TotalCost.IsZero() {
		log.DebugContext(ctx, "nothing to charge")
	} else if _, err := c.balance.MinusDeposit(
		client.WithIdempotencyKey(ctx, receipt.PurchaseID+":balance"), receipt.TotalCost); err != nil {
		receipt.State = StatePartiallyCommitted
		partial := &PartialCommitError{
			PurchaseID: receipt.PurchaseID,
			ProductID:  req.ProductID,
			Quantity:   req.Quantity,
			TotalCost:  receipt.TotalCost,
			Err:        err,
		}
		if c.compensate {
			c.restoreInventory(ctx, log, partial)
		}
		log.ErrorContext(ctx, "balance debit failed after inventory update",
			"total", receipt.TotalCost.String(), "compensated", partial.Compensated, "error", err)
		return receipt, partial
	}

	receipt.State = StateCommitted
	receipt.Inventory = req.AvailableInventory - req.Quantity
	if c.view != nil {
		if err := c.view.SetInventory(req.ProductID, receipt.Inventory); err != nil {
			receipt.ViewErr = err
			log.WarnContext(ctx, "cached inventory not updated", "error", err)
		}
		if err := c.view.RefreshBalance(ctx); err != nil {
			receipt.BalanceRefreshErr = err
			log.WarnContext(ctx, "balance refresh failed", "error", err)
		}
	}

	log.InfoContext(ctx, "purchase committed", "total", receipt.TotalCost.String())
	return receipt, nil
}

func (c *Coordinator) restoreInventory(ctx context.Context, log *slog.Logger, partial *PartialCommitError) {
	_, err := c.inventory.ChangeInventory(
		client.WithIdempotencyKey(ctx, partial.PurchaseID+":compensate"), partial.ProductID, partial.Quantity)
	if err != nil {
		partial.CompensationErr = err
		log.ErrorContext(ctx, "inventory restore failed", "error", err)
		return
	}
	partial.Compensated = true
}
