package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"fsanano/storefront/internal/model"
)

// MemoryRepository keeps the shop in process memory. It serves local runs
// without Postgres and the service and handler tests. RunAtomic serialises
// callers and restores the previous state when fn fails.
type MemoryRepository struct {
	mu sync.Mutex

	products map[model.ID]model.Product
	users    map[model.ID]model.User
	orders   []model.Order

	nextProductID model.ID
	nextUserID    model.ID
	nextOrderID   model.ID

	now func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		products: make(map[model.ID]model.Product),
		users:    make(map[model.ID]model.User),
		now:      time.Now,
	}
}

type memTxKey struct{}

// lock acquires the mutex unless ctx already belongs to a RunAtomic call.
func (r *MemoryRepository) lock(ctx context.Context) func() {
	if ctx.Value(memTxKey{}) == r {
		return func() {}
	}
	r.mu.Lock()
	return r.mu.Unlock
}

type memSnapshot struct {
	products    map[model.ID]model.Product
	users       map[model.ID]model.User
	orders      []model.Order
	nextProduct model.ID
	nextUser    model.ID
	nextOrder   model.ID
}

func (r *MemoryRepository) snapshot() memSnapshot {
	s := memSnapshot{
		products:    make(map[model.ID]model.Product, len(r.products)),
		users:       make(map[model.ID]model.User, len(r.users)),
		orders:      append([]model.Order(nil), r.orders...),
		nextProduct: r.nextProductID,
		nextUser:    r.nextUserID,
		nextOrder:   r.nextOrderID,
	}
	for k, v := range r.products {
		s.products[k] = v
	}
	for k, v := range r.users {
		s.users[k] = v
	}
	return s
}

func (r *MemoryRepository) restore(s memSnapshot) {
	r.products = s.products
	r.users = s.users
	r.orders = s.orders
	r.nextProductID = s.nextProduct
	r.nextUserID = s.nextUser
	r.nextOrderID = s.nextOrder
}

func (r *MemoryRepository) RunAtomic(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) == r {
		return fn(ctx)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, r)); err != nil {
		r.restore(snap)
		return err
	}
	return nil
}

func (r *MemoryRepository) ListProducts(ctx context.Context) ([]model.Product, error) {
	defer r.lock(ctx)()

	products := make([]model.Product, 0, len(r.products))
	for _, p := range r.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func (r *MemoryRepository) GetProductForUpdate(ctx context.Context, productID model.ID) (model.Product, error) {
	defer r.lock(ctx)()

	p, ok := r.products[productID]
	if !ok {
		return model.Product{}, ErrProductNotFound
	}
	return p, nil
}

func (r *MemoryRepository) CreateProduct(ctx context.Context, p model.Product) (model.ID, error) {
	defer r.lock(ctx)()

	r.nextProductID++
	p.ID = r.nextProductID
	r.products[p.ID] = p
	return p.ID, nil
}

func (r *MemoryRepository) SetProductInventory(ctx context.Context, productID model.ID, inventory int) error {
	defer r.lock(ctx)()

	p, ok := r.products[productID]
	if !ok {
		return ErrProductNotFound
	}
	p.Inventory = inventory
	r.products[productID] = p
	return nil
}

func (r *MemoryRepository) SetProductPrice(ctx context.Context, productID model.ID, price model.Money) error {
	defer r.lock(ctx)()

	p, ok := r.products[productID]
	if !ok {
		return ErrProductNotFound
	}
	p.Price = price
	r.products[productID] = p
	return nil
}

func (r *MemoryRepository) DeleteProduct(ctx context.Context, productID model.ID) error {
	defer r.lock(ctx)()

	if _, ok := r.products[productID]; !ok {
		return ErrProductNotFound
	}
	delete(r.products, productID)
	r.dropOrders(func(o model.Order) bool { return o.ProductID == productID })
	return nil
}

func (r *MemoryRepository) CreateUser(ctx context.Context, u model.User) (model.ID, error) {
	defer r.lock(ctx)()

	for _, existing := range r.users {
		if existing.Username == u.Username {
			return 0, ErrUsernameTaken
		}
	}
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	r.nextUserID++
	u.ID = r.nextUserID
	r.users[u.ID] = u
	return u.ID, nil
}

func (r *MemoryRepository) ListUsers(ctx context.Context) ([]model.User, error) {
	defer r.lock(ctx)()

	users := make([]model.User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (r *MemoryRepository) GetUser(ctx context.Context, userID model.ID) (model.User, error) {
	defer r.lock(ctx)()

	u, ok := r.users[userID]
	if !ok {
		return model.User{}, ErrUserNotFound
	}
	return u, nil
}

func (r *MemoryRepository) GetUserForUpdate(ctx context.Context, userID model.ID) (model.User, error) {
	return r.GetUser(ctx, userID)
}

func (r *MemoryRepository) SetUserDeposit(ctx context.Context, userID model.ID, deposit model.Money) error {
	defer r.lock(ctx)()

	u, ok := r.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.Deposit = deposit
	r.users[userID] = u
	return nil
}

func (r *MemoryRepository) SetUserRole(ctx context.Context, userID model.ID, role model.Role) error {
	defer r.lock(ctx)()

	u, ok := r.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.Role = role
	r.users[userID] = u
	return nil
}

func (r *MemoryRepository) DeleteUser(ctx context.Context, userID model.ID) error {
	defer r.lock(ctx)()

	if _, ok := r.users[userID]; !ok {
		return ErrUserNotFound
	}
	delete(r.users, userID)
	r.dropOrders(func(o model.Order) bool { return o.UserID == userID })
	return nil
}

func (r *MemoryRepository) CreateOrder(ctx context.Context, userID, productID model.ID, quantity int) (model.ID, error) {
	defer r.lock(ctx)()

	if _, ok := r.users[userID]; !ok {
		return 0, ErrUserNotFound
	}
	if _, ok := r.products[productID]; !ok {
		return 0, ErrProductNotFound
	}
	r.nextOrderID++
	r.orders = append(r.orders, model.Order{
		ID:        r.nextOrderID,
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
		OrderDate: r.now().UTC(),
	})
	return r.nextOrderID, nil
}

func (r *MemoryRepository) ListOrders(ctx context.Context) ([]model.Order, error) {
	defer r.lock(ctx)()
	return r.collectOrders(func(model.Order) bool { return true }), nil
}

func (r *MemoryRepository) ListOrdersByUser(ctx context.Context, userID model.ID) ([]model.Order, error) {
	defer r.lock(ctx)()
	return r.collectOrders(func(o model.Order) bool { return o.UserID == userID }), nil
}

func (r *MemoryRepository) collectOrders(keep func(model.Order) bool) []model.Order {
	orders := []model.Order{}
	for _, o := range r.orders {
		if !keep(o) {
			continue
		}
		o.ProductName = model.UnknownProductName
		if p, ok := r.products[o.ProductID]; ok {
			o.ProductName = p.Name
		}
		orders = append(orders, o)
	}
	return orders
}

func (r *MemoryRepository) dropOrders(match func(model.Order) bool) {
	kept := r.orders[:0]
	for _, o := range r.orders {
		if !match(o) {
			kept = append(kept, o)
		}
	}
	r.orders = kept
}
