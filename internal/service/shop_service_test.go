package service_test

import (
	"context"
	"sync"
	"testing"

	"fsanano/storefront/internal/logging"
	"fsanano/storefront/internal/model"
	"fsanano/storefront/internal/repository"
	"fsanano/storefront/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	repo    *repository.MemoryRepository
	svc     *service.ShopService
	userID  model.ID
	itemID  model.ID
	initial model.Money
}

func setup(t *testing.T, deposit string, price string, inventory int) fixture {
	t.Helper()
	ctx := context.Background()
	repo := repository.NewMemoryRepository()

	userID, err := repo.CreateUser(ctx, model.User{Username: "buyer", Deposit: model.MustMoney(deposit)})
	require.NoError(t, err)
	itemID, err := repo.CreateProduct(ctx, model.Product{Name: "Lamp", Price: model.MustMoney(price), Inventory: inventory})
	require.NoError(t, err)

	return fixture{
		repo:    repo,
		svc:     service.NewShopService(repo, logging.Discard()),
		userID:  userID,
		itemID:  itemID,
		initial: model.MustMoney(deposit),
	}
}

func TestChangeInventory(t *testing.T) {
	f := setup(t, "0", "9.99", 5)
	ctx := context.Background()

	inv, err := f.svc.ChangeInventory(ctx, f.itemID, -3)
	require.NoError(t, err)
	assert.Equal(t, 2, inv)

	_, err = f.svc.ChangeInventory(ctx, f.itemID, -3)
	assert.ErrorIs(t, err, service.ErrNegativeInventory)

	inv, err = f.svc.ChangeInventory(ctx, f.itemID, 10)
	require.NoError(t, err)
	assert.Equal(t, 12, inv)

	_, err = f.svc.ChangeInventory(ctx, 404, 1)
	assert.ErrorIs(t, err, repository.ErrProductNotFound)
}

func TestChangeInventory_ConcurrentDecrementsNeverGoNegative(t *testing.T) {
	f := setup(t, "0", "1", 10)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(chan error, 40)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ChangeInventory(ctx, f.itemID, -1)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	ok := 0
	for err := range results {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, service.ErrNegativeInventory)
		}
	}
	assert.Equal(t, 10, ok)
}

func TestDeposit(t *testing.T) {
	f := setup(t, "20.00", "1", 1)
	ctx := context.Background()

	bal, err := f.svc.AddDeposit(ctx, f.userID, model.MustMoney("9.97"))
	require.NoError(t, err)
	assert.Equal(t, "29.97", bal.String())

	bal, err = f.svc.MinusDeposit(ctx, f.userID, model.MustMoney("29.97"))
	require.NoError(t, err)
	assert.True(t, bal.IsZero())

	_, err = f.svc.MinusDeposit(ctx, f.userID, model.MustMoney("0.01"))
	assert.ErrorIs(t, err, service.ErrInsufficientDeposit)

	_, err = f.svc.AddDeposit(ctx, f.userID, model.MustMoney("-5"))
	assert.ErrorIs(t, err, service.ErrInvalidAmount)

	_, err = f.svc.AddDeposit(ctx, 404, model.MustMoney("5"))
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestPlaceOrder(t *testing.T) {
	f := setup(t, "100.00", "10.00", 5)
	ctx := context.Background()

	orderID, err := f.svc.PlaceOrder(ctx, f.userID, f.itemID, 2)
	require.NoError(t, err)
	assert.NotZero(t, orderID)

	u, _ := f.svc.User(ctx, f.userID)
	assert.Equal(t, "80.00", u.Deposit.String())

	orders, err := f.svc.ListUserOrders(ctx, f.userID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "Lamp", orders[0].ProductName)
	assert.Equal(t, 2, orders[0].Quantity)
}

func TestPlaceOrder_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		deposit  string
		quantity int
		want     error
	}{
		{"insufficient funds", "5.00", 1, service.ErrInsufficientDeposit},
		{"insufficient stock", "1000.00", 6, service.ErrInsufficientInventory},
		{"zero quantity", "1000.00", 0, service.ErrInvalidQuantity},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := setup(t, tc.deposit, "10.00", 5)
			ctx := context.Background()

			_, err := f.svc.PlaceOrder(ctx, f.userID, f.itemID, tc.quantity)
			assert.ErrorIs(t, err, tc.want)

			products, _ := f.svc.ListProducts(ctx)
			assert.Equal(t, 5, products[0].Inventory)
			u, _ := f.svc.User(ctx, f.userID)
			assert.True(t, u.Deposit.Equal(f.initial))
			orders, _ := f.svc.ListOrders(ctx)
			assert.Empty(t, orders)
		})
	}
}

func TestProductAdministration(t *testing.T) {
	f := setup(t, "0", "1.00", 1)
	ctx := context.Background()

	_, err := f.svc.AddProduct(ctx, model.Product{Name: "  ", Price: model.MustMoney("1")})
	assert.ErrorIs(t, err, service.ErrInvalidProduct)
	_, err = f.svc.AddProduct(ctx, model.Product{Name: "Rug", Price: model.MustMoney("-1")})
	assert.ErrorIs(t, err, service.ErrInvalidPrice)

	id, err := f.svc.AddProduct(ctx, model.Product{Name: " Rug ", Price: model.MustMoney("45.5"), Inventory: 2})
	require.NoError(t, err)

	require.NoError(t, f.svc.UpdatePrice(ctx, id, model.MustMoney("40")))
	assert.ErrorIs(t, f.svc.UpdatePrice(ctx, id, model.MustMoney("-0.01")), service.ErrInvalidPrice)
	assert.ErrorIs(t, f.svc.UpdatePrice(ctx, 404, model.MustMoney("1")), repository.ErrProductNotFound)

	products, _ := f.svc.ListProducts(ctx)
	require.Len(t, products, 2)
	assert.Equal(t, "Rug", products[1].Name)
	assert.Equal(t, "40.00", products[1].Price.String())

	require.NoError(t, f.svc.DeleteProduct(ctx, id))
	assert.ErrorIs(t, f.svc.DeleteProduct(ctx, id), repository.ErrProductNotFound)
}

func TestUserAdministration(t *testing.T) {
	f := setup(t, "0", "1.00", 1)
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.UpdateRole(ctx, f.userID, "owner"), service.ErrInvalidRole)
	require.NoError(t, f.svc.UpdateRole(ctx, f.userID, model.RoleAdmin))

	users, err := f.svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, model.RoleAdmin, users[0].Role)

	require.NoError(t, f.svc.DeleteUser(ctx, f.userID))
	_, err = f.svc.ListUserOrders(ctx, f.userID)
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}
