package viewmodel

import (
	"context"
	"slices"

	"fsanano/storefront/internal/model"

	"golang.org/x/sync/errgroup"
)

type DashboardAPI interface {
	AdminAccess(ctx context.Context) (bool, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	ListProducts(ctx context.Context) ([]model.Product, error)
	ListOrders(ctx context.Context) ([]model.Order, error)
	DeleteUser(ctx context.Context, userID model.ID) error
	UpdateRole(ctx context.Context, userID model.ID, role model.Role) error
	ChangeInventory(ctx context.Context, productID model.ID, delta int) (int, error)
	UpdatePrice(ctx context.Context, productID model.ID, price model.Money) error
	DeleteProduct(ctx context.Context, productID model.ID) error
	AddProduct(ctx context.Context, p model.Product) (model.ID, error)
}

type DashboardState struct {
	Users    []model.User
	Products []model.Product
	Orders   []model.Order
}

// Dashboard is the admin page over users, products and orders.
type Dashboard struct {
	base[DashboardState]
	api   DashboardAPI
	state DashboardState
}

func NewDashboard(api DashboardAPI, render func(DashboardState)) *Dashboard {
	d := &Dashboard{api: api}
	d.render = render
	return d
}

func (d *Dashboard) snapshot() DashboardState {
	return DashboardState{
		Users:    slices.Clone(d.state.Users),
		Products: slices.Clone(d.state.Products),
		Orders:   slices.Clone(d.state.Orders),
	}
}

func (d *Dashboard) State() DashboardState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshot()
}

// Load fetches the three tables in parallel.
func (d *Dashboard) Load(ctx context.Context) error {
	if err := d.open(); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	var next DashboardState

	g.Go(func() error {
		var err error
		next.Users, err = d.api.ListUsers(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		next.Products, err = d.api.ListProducts(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		next.Orders, err = d.api.ListOrders(ctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}

	return d.update(func() DashboardState {
		d.state = DashboardState{
			Users:    slices.Clone(next.Users),
			Products: slices.Clone(next.Products),
			Orders:   slices.Clone(next.Orders),
		}
		return d.snapshot()
	})
}

// SetInventory sets a product's stock to inventory. The change is sent as
// the difference from the cached value; an unchanged value sends nothing.
func (d *Dashboard) SetInventory(ctx context.Context, productID model.ID, inventory int) (int, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return 0, ErrClosed
	}
	p, ok := findProduct(d.state.Products, productID)
	d.mu.Unlock()
	if !ok {
		return 0, ErrUnknownProduct
	}

	delta := inventory - p.Inventory
	if delta == 0 {
		return p.Inventory, nil
	}

	acked, err := d.api.ChangeInventory(ctx, productID, delta)
	if err != nil {
		return 0, err
	}
	return acked, d.update(func() DashboardState {
		setProductInventory(d.state.Products, productID, acked)
		return d.snapshot()
	})
}

func (d *Dashboard) UpdatePrice(ctx context.Context, productID model.ID, price model.Money) error {
	if err := d.open(); err != nil {
		return err
	}
	if err := d.api.UpdatePrice(ctx, productID, price); err != nil {
		return err
	}
	return d.update(func() DashboardState {
		if i := slices.IndexFunc(d.state.Products, func(p model.Product) bool { return p.ID == productID }); i >= 0 {
			d.state.Products[i].Price = price
		}
		return d.snapshot()
	})
}

// DeleteProduct removes the product row and the orders the server cascades
// with it.
func (d *Dashboard) DeleteProduct(ctx context.Context, productID model.ID) error {
	if err := d.open(); err != nil {
		return err
	}
	if err := d.api.DeleteProduct(ctx, productID); err != nil {
		return err
	}
	return d.update(func() DashboardState {
		d.state.Products = slices.DeleteFunc(d.state.Products, func(p model.Product) bool { return p.ID == productID })
		d.state.Orders = slices.DeleteFunc(d.state.Orders, func(o model.Order) bool { return o.ProductID == productID })
		return d.snapshot()
	})
}

// AddProduct creates the product and reloads the catalogue to show it.
func (d *Dashboard) AddProduct(ctx context.Context, p model.Product) (model.ID, error) {
	if err := d.open(); err != nil {
		return 0, err
	}
	id, err := d.api.AddProduct(ctx, p)
	if err != nil {
		return 0, err
	}
	products, err := d.api.ListProducts(ctx)
	if err != nil {
		return id, err
	}
	return id, d.update(func() DashboardState {
		d.state.Products = slices.Clone(products)
		return d.snapshot()
	})
}

// DeleteUser removes the user row along with the user's orders.
func (d *Dashboard) DeleteUser(ctx context.Context, userID model.ID) error {
	if err := d.open(); err != nil {
		return err
	}
	if err := d.api.DeleteUser(ctx, userID); err != nil {
		return err
	}
	return d.update(func() DashboardState {
		d.state.Users = slices.DeleteFunc(d.state.Users, func(u model.User) bool { return u.ID == userID })
		d.state.Orders = slices.DeleteFunc(d.state.Orders, func(o model.Order) bool { return o.UserID == userID })
		return d.snapshot()
	})
}

func (d *Dashboard) UpdateRole(ctx context.Context, userID model.ID, role model.Role) error {
	if err := d.open(); err != nil {
		return err
	}
	if err := d.api.UpdateRole(ctx, userID, role); err != nil {
		return err
	}
	return d.update(func() DashboardState {
		if i := slices.IndexFunc(d.state.Users, func(u model.User) bool { return u.ID == userID }); i >= 0 {
			d.state.Users[i].Role = role
		}
		return d.snapshot()
	})
}

// CanAccess reports whether the caller may open the dashboard.
func (d *Dashboard) CanAccess(ctx context.Context) (bool, error) {
	if err := d.open(); err != nil {
		return false, err
	}
	return d.api.AdminAccess(ctx)
}
