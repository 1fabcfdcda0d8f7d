package purchase

import (
	"context"
	"errors"
	"testing"

	"fsanano/storefront/internal/client"
	"fsanano/storefront/internal/logging"
	"fsanano/storefront/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inventoryCall struct {
	productID model.ID
	delta     int
	key       string
}

type fakeInventory struct {
	calls     []inventoryCall
	inventory int
	err       error
	// errOnRestore fails only positive changes.
	errOnRestore error
}

func (f *fakeInventory) ChangeInventory(ctx context.Context, productID model.ID, delta int) (int, error) {
	f.calls = append(f.calls, inventoryCall{productID, delta, client.IdempotencyKey(ctx)})
	if delta > 0 && f.errOnRestore != nil {
		return 0, f.errOnRestore
	}
	if f.err != nil {
		return 0, f.err
	}
	f.inventory += delta
	return f.inventory, nil
}

type fakeBalance struct {
	amounts []model.Money
	keys    []string
	err     error
}

func (f *fakeBalance) MinusDeposit(ctx context.Context, amount model.Money) (model.Money, error) {
	f.amounts = append(f.amounts, amount)
	f.keys = append(f.keys, client.IdempotencyKey(ctx))
	if f.err != nil {
		return model.Money{}, f.err
	}
	return model.MustMoney("70.03"), nil
}

type fakeView struct {
	inventory  map[model.ID]int
	refreshes  int
	refreshErr error
	setErr     error
}

func (f *fakeView) SetInventory(productID model.ID, inventory int) error {
	if f.setErr != nil {
		return f.setErr
	}
	if f.inventory == nil {
		f.inventory = make(map[model.ID]int)
	}
	f.inventory[productID] = inventory
	return nil
}

func (f *fakeView) RefreshBalance(context.Context) error {
	f.refreshes++
	return f.refreshErr
}

func newTestCoordinator(inv *fakeInventory, bal *fakeBalance, view View, opts ...Option) *Coordinator {
	opts = append([]Option{WithLogger(logging.Discard())}, opts...)
	c := NewCoordinator(inv, bal, view, opts...)
	c.newID = func() string { return "p-1" }
	return c
}

func TestPurchase_Success(t *testing.T) {
	inv := &fakeInventory{inventory: 5}
	bal := &fakeBalance{}
	view := &fakeView{}
	c := newTestCoordinator(inv, bal, view)

	receipt, err := c.Purchase(context.Background(), Request{
		ProductID: 7, Quantity: 3, UnitPrice: model.MustMoney("9.99"), AvailableInventory: 5,
	})
	require.NoError(t, err)

	require.Len(t, inv.calls, 1)
	assert.Equal(t, inventoryCall{7, -3, "p-1:inventory"}, inv.calls[0])
	require.Len(t, bal.amounts, 1)
	assert.Equal(t, "29.97", bal.amounts[0].String())
	assert.Equal(t, []string{"p-1:balance"}, bal.keys)

	assert.Equal(t, StateCommitted, receipt.State)
	assert.Equal(t, "29.97", receipt.TotalCost.String())
	assert.Equal(t, 2, receipt.Inventory)
	assert.Equal(t, 2, receipt.ServerInventory)
	assert.Equal(t, 2, view.inventory[7])
	assert.Equal(t, 1, view.refreshes)
	assert.NoError(t, receipt.BalanceRefreshErr)
}

func TestPurchase_TotalCostIsExact(t *testing.T) {
	tests := []struct {
		price string
		qty   int
		total string
	}{
		{"9.99", 3, "29.97"},
		{"0.10", 3, "0.30"},
		{"0.01", 100, "1.00"},
		{"19.95", 7, "139.65"},
	}

	for _, tt := range tests {
		bal := &fakeBalance{}
		c := newTestCoordinator(&fakeInventory{inventory: 1000}, bal, nil)

		receipt, err := c.Purchase(context.Background(), Request{
			ProductID: 1, Quantity: tt.qty, UnitPrice: model.MustMoney(tt.price), AvailableInventory: 1000,
		})
		require.NoError(t, err)
		assert.Equal(t, tt.total, receipt.TotalCost.String())
		assert.Equal(t, tt.total, bal.amounts[0].String())
	}
}

func TestPurchase_InvalidQuantitySendsNothing(t *testing.T) {
	tests := []struct {
		name      string
		qty       int
		available int
	}{
		{"more than available", 5, 2},
		{"zero", 0, 2},
		{"negative", -1, 2},
		{"sold out", 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &fakeInventory{inventory: tt.available}
			bal := &fakeBalance{}
			view := &fakeView{}
			c := newTestCoordinator(inv, bal, view)

			receipt, err := c.Purchase(context.Background(), Request{
				ProductID: 1, Quantity: tt.qty, UnitPrice: model.MustMoney("1"), AvailableInventory: tt.available,
			})
			assert.ErrorIs(t, err, ErrInvalidQuantity)
			assert.Equal(t, StateIdle, receipt.State)
			assert.Empty(t, inv.calls)
			assert.Empty(t, bal.amounts)
			assert.Zero(t, view.refreshes)
		})
	}
}

func TestPurchase_InventoryFailureSkipsBalance(t *testing.T) {
	cause := errors.New("inventory cannot be negative")
	inv := &fakeInventory{err: cause}
	bal := &fakeBalance{}
	view := &fakeView{}
	c := newTestCoordinator(inv, bal, view)

	receipt, err := c.Purchase(context.Background(), Request{
		ProductID: 1, Quantity: 1, UnitPrice: model.MustMoney("1"), AvailableInventory: 1,
	})

	var invErr *InventoryUpdateFailedError
	require.ErrorAs(t, err, &invErr)
	assert.ErrorIs(t, err, cause)
	var partial *PartialCommitError
	assert.False(t, errors.As(err, &partial))

	assert.Equal(t, StateInventoryUpdateFailed, receipt.State)
	assert.Len(t, inv.calls, 1)
	assert.Empty(t, bal.amounts)
	assert.Nil(t, view.inventory)
}

func TestPurchase_BalanceFailureIsPartialCommit(t *testing.T) {
	cause := errors.New("insufficient deposit")
	inv := &fakeInventory{inventory: 5}
	bal := &fakeBalance{err: cause}
	view := &fakeView{}
	c := newTestCoordinator(inv, bal, view)

	receipt, err := c.Purchase(context.Background(), Request{
		ProductID: 7, Quantity: 3, UnitPrice: model.MustMoney("9.99"), AvailableInventory: 5,
	})

	var partial *PartialCommitError
	require.ErrorAs(t, err, &partial)
	assert.ErrorIs(t, err, cause)
	var invErr *InventoryUpdateFailedError
	assert.False(t, errors.As(err, &invErr))

	assert.Equal(t, "p-1", partial.PurchaseID)
	assert.Equal(t, "29.97", partial.TotalCost.String())
	assert.False(t, partial.Compensated)
	assert.NoError(t, partial.CompensationErr)

	assert.Equal(t, StatePartiallyCommitted, receipt.State)
	assert.Len(t, inv.calls, 1)
	assert.Equal(t, 2, inv.inventory)
	assert.Nil(t, view.inventory)
	assert.Zero(t, view.refreshes)
}

func TestPurchase_Compensation(t *testing.T) {
	inv := &fakeInventory{inventory: 5}
	bal := &fakeBalance{err: errors.New("insufficient deposit")}
	c := newTestCoordinator(inv, bal, nil, WithCompensation())

	_, err := c.Purchase(context.Background(), Request{
		ProductID: 7, Quantity: 3, UnitPrice: model.MustMoney("9.99"), AvailableInventory: 5,
	})

	var partial *PartialCommitError
	require.ErrorAs(t, err, &partial)
	assert.True(t, partial.Compensated)
	require.Len(t, inv.calls, 2)
	assert.Equal(t, inventoryCall{7, 3, "p-1:compensate"}, inv.calls[1])
	assert.Equal(t, 5, inv.inventory)
	assert.Contains(t, err.Error(), "inventory restored")
}

func TestPurchase_CompensationFailure(t *testing.T) {
	restoreErr := errors.New("connection reset")
	inv := &fakeInventory{inventory: 5, errOnRestore: restoreErr}
	bal := &fakeBalance{err: errors.New("insufficient deposit")}
	c := newTestCoordinator(inv, bal, nil, WithCompensation())

	_, err := c.Purchase(context.Background(), Request{
		ProductID: 7, Quantity: 3, UnitPrice: model.MustMoney("9.99"), AvailableInventory: 5,
	})

	var partial *PartialCommitError
	require.ErrorAs(t, err, &partial)
	assert.False(t, partial.Compensated)
	assert.ErrorIs(t, partial.CompensationErr, restoreErr)
	assert.Equal(t, 2, inv.inventory)
}

func TestPurchase_BalanceRefreshFailureStillCommits(t *testing.T) {
	refreshErr := errors.New("timeout")
	view := &fakeView{refreshErr: refreshErr}
	c := newTestCoordinator(&fakeInventory{inventory: 5}, &fakeBalance{}, view)

	receipt, err := c.Purchase(context.Background(), Request{
		ProductID: 7, Quantity: 1, UnitPrice: model.MustMoney("9.99"), AvailableInventory: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, receipt.State)
	assert.ErrorIs(t, receipt.BalanceRefreshErr, refreshErr)
	assert.Equal(t, 4, view.inventory[7])
}

func TestPurchase_ViewFailureStillCommits(t *testing.T) {
	setErr := errors.New("page closed")
	view := &fakeView{setErr: setErr}
	c := newTestCoordinator(&fakeInventory{inventory: 5}, &fakeBalance{}, view)

	receipt, err := c.Purchase(context.Background(), Request{
		ProductID: 7, Quantity: 1, UnitPrice: model.MustMoney("9.99"), AvailableInventory: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, receipt.State)
	assert.ErrorIs(t, receipt.ViewErr, setErr)
	assert.Equal(t, 1, view.refreshes)
}

func TestPurchase_Price(t *testing.T) {
	tests := []struct {
		name       string
		price      string
		wantErr    error
		state      State
		invCalls   int
		debitCalls int
	}{
		{name: "free item commits without a debit", price: "0", state: StateCommitted, invCalls: 1},
		{name: "zero after rounding", price: "0.001", state: StateCommitted, invCalls: 1},
		{name: "negative price", price: "-1.50", wantErr: ErrInvalidPrice, state: StateIdle},
		{name: "paid item", price: "2.50", state: StateCommitted, invCalls: 1, debitCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &fakeInventory{inventory: 5}
			bal := &fakeBalance{}
			view := &fakeView{}
			c := newTestCoordinator(inv, bal, view)

			receipt, err := c.Purchase(context.Background(), Request{
				ProductID: 7, Quantity: 2, UnitPrice: model.MustMoney(tt.price), AvailableInventory: 5,
			})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, receipt.PurchaseID)
			} else {
				require.NoError(t, err)
				assert.Equal(t, 3, view.inventory[7])
			}
			assert.Equal(t, tt.state, receipt.State)
			assert.Len(t, inv.calls, tt.invCalls)
			assert.Len(t, bal.amounts, tt.debitCalls)
		})
	}
}

func TestPurchase_CachedInventoryRoundTrip(t *testing.T) {
	view := &fakeView{}
	// The server holds more stock than the cached value the request was made against.
	inv := &fakeInventory{inventory: 10}
	c := newTestCoordinator(inv, &fakeBalance{}, view)

	receipt, err := c.Purchase(context.Background(), Request{
		ProductID: 7, Quantity: 2, UnitPrice: model.MustMoney("1"), AvailableInventory: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, view.inventory[7])
	assert.Equal(t, 2, receipt.Inventory)
	assert.Equal(t, 8, receipt.ServerInventory)
}

func TestPurchase_UniqueIDs(t *testing.T) {
	inv := &fakeInventory{inventory: 10}
	bal := &fakeBalance{}
	c := NewCoordinator(inv, bal, nil, WithLogger(logging.Discard()))

	req := Request{ProductID: 1, Quantity: 1, UnitPrice: model.MustMoney("1"), AvailableInventory: 10}
	first, err := c.Purchase(context.Background(), req)
	require.NoError(t, err)
	second, err := c.Purchase(context.Background(), req)
	require.NoError(t, err)

	assert.NotEqual(t, first.PurchaseID, second.PurchaseID)
	assert.Equal(t, first.PurchaseID+":inventory", inv.calls[0].key)
	assert.Equal(t, second.PurchaseID+":balance", bal.keys[1])
}
