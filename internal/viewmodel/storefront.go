package viewmodel

import (
	"context"
	"errors"
	"slices"

	"fsanano/storefront/internal/model"
	"fsanano/storefront/internal/purchase"

	"golang.org/x/sync/errgroup"
)

var ErrUnknownProduct = errors.New("product is not listed")

type StorefrontAPI interface {
	ListProducts(ctx context.Context) ([]model.Product, error)
	Username(ctx context.Context) (string, error)
	Deposit(ctx context.Context) (model.Money, error)
	AddDeposit(ctx context.Context, amount model.Money) (model.Money, error)
	MinusDeposit(ctx context.Context, amount model.Money) (model.Money, error)
	ChangeInventory(ctx context.Context, productID model.ID, delta int) (int, error)
	PlaceOrder(ctx context.Context, productID model.ID, quantity int) (model.ID, error)
}

type StorefrontState struct {
	Username string
	Balance  model.Money
	Products []model.Product
}

// Storefront is the shopper's page: the catalogue, the caller's balance and
// the purchase flow.
type Storefront struct {
	base[StorefrontState]
	api         StorefrontAPI
	coordinator *purchase.Coordinator
	state       StorefrontState
}

// NewStorefront builds the page. opts configure the purchase coordinator.
func NewStorefront(api StorefrontAPI, render func(StorefrontState), opts ...purchase.Option) *Storefront {
	s := &Storefront{api: api}
	s.render = render
	s.coordinator = purchase.NewCoordinator(api, api, s, opts...)
	return s
}

func (s *Storefront) snapshot() StorefrontState {
	st := s.state
	st.Products = slices.Clone(s.state.Products)
	return st
}

func (s *Storefront) State() StorefrontState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Load fetches the catalogue, the username and the balance in parallel.
func (s *Storefront) Load(ctx context.Context) error {
	if err := s.open(); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	var (
		products []model.Product
		username string
		balance  model.Money
	)

	g.Go(func() error {
		var err error
		products, err = s.api.ListProducts(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		username, err = s.api.Username(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		balance, err = s.api.Deposit(ctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}

	return s.update(func() StorefrontState {
		s.state = StorefrontState{Username: username, Balance: balance, Products: slices.Clone(products)}
		return s.snapshot()
	})
}

// Buy runs the two-step purchase against the cached price and inventory.
func (s *Storefront) Buy(ctx context.Context, productID model.ID, quantity int) (purchase.Receipt, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return purchase.Receipt{}, ErrClosed
	}
	p, ok := findProduct(s.state.Products, productID)
	s.mu.Unlock()
	if !ok {
		return purchase.Receipt{}, ErrUnknownProduct
	}

	return s.coordinator.Purchase(ctx, purchase.Request{
		ProductID:          productID,
		Quantity:           quantity,
		UnitPrice:          p.Price,
		AvailableInventory: p.Inventory,
	})
}

// BuyAtomic places the order in one server-side transaction and reloads the
// page.
func (s *Storefront) BuyAtomic(ctx context.Context, productID model.ID, quantity int) (model.ID, error) {
	if err := s.open(); err != nil {
		return 0, err
	}
	orderID, err := s.api.PlaceOrder(ctx, productID, quantity)
	if err != nil {
		return 0, err
	}
	return orderID, s.Load(ctx)
}

func (s *Storefront) AddDeposit(ctx context.Context, amount model.Money) (model.Money, error) {
	return s.adjustBalance(ctx, amount, s.api.AddDeposit)
}

func (s *Storefront) Withdraw(ctx context.Context, amount model.Money) (model.Money, error) {
	return s.adjustBalance(ctx, amount, s.api.MinusDeposit)
}

func (s *Storefront) adjustBalance(ctx context.Context, amount model.Money, apply func(context.Context, model.Money) (model.Money, error)) (model.Money, error) {
	if err := s.open(); err != nil {
		return model.Money{}, err
	}
	balance, err := apply(ctx, amount)
	if err != nil {
		return model.Money{}, err
	}
	return balance, s.setBalance(balance)
}

func (s *Storefront) setBalance(balance model.Money) error {
	return s.update(func() StorefrontState {
		s.state.Balance = balance
		return s.snapshot()
	})
}

// SetInventory corrects the cached inventory of one product.
func (s *Storefront) SetInventory(productID model.ID, inventory int) error {
	return s.update(func() StorefrontState {
		setProductInventory(s.state.Products, productID, inventory)
		return s.snapshot()
	})
}

// RefreshBalance reloads the caller's balance from the server.
func (s *Storefront) RefreshBalance(ctx context.Context) error {
	balance, err := s.api.Deposit(ctx)
	if err != nil {
		return err
	}
	return s.setBalance(balance)
}
