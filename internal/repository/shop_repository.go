package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"fsanano/storefront/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

type ShopRepository struct {
	db *pgxpool.Pool
}

func NewShopRepository(db *pgxpool.Pool) *ShopRepository {
	return &ShopRepository{db: db}
}

// EnsureSchema creates the tables if they do not exist yet.
func (r *ShopRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// RunAtomic executes fn within a transaction. Repository calls made with the
// context passed to fn run on that transaction.
func (r *ShopRepository) RunAtomic(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// no-op once committed
	defer tx.Rollback(ctx)

	ctx = context.WithValue(ctx, txKey{}, tx)

	if err := fn(ctx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

type txKey struct{}

func (r *ShopRepository) getExecutor(ctx context.Context) PgxExecutor {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return r.db
}

// PgxExecutor is an interface that matches both *pgx.Conn/Pool and pgx.Tx
type PgxExecutor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (commandTag pgconn.CommandTag, err error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const productColumns = "id, name, price, inventory, COALESCE(category, ''), COALESCE(description, '')"

func scanProduct(row pgx.Row) (model.Product, error) {
	var p model.Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Inventory, &p.Category, &p.Description)
	return p, err
}

func (r *ShopRepository) ListProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := r.getExecutor(ctx).Query(ctx, "SELECT "+productColumns+" FROM products ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []model.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// GetProductForUpdate locks the product row and returns it
func (r *ShopRepository) GetProductForUpdate(ctx context.Context, productID model.ID) (model.Product, error) {
	p, err := scanProduct(r.getExecutor(ctx).QueryRow(ctx, "SELECT "+productColumns+" FROM products WHERE id = $1 FOR UPDATE", productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Product{}, ErrProductNotFound
		}
		return model.Product{}, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

func (r *ShopRepository) CreateProduct(ctx context.Context, p model.Product) (model.ID, error) {
	var id model.ID
	err := r.getExecutor(ctx).QueryRow(ctx,
		"INSERT INTO products (name, price, inventory, category, description) VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, '')) RETURNING id",
		p.Name, p.Price, p.Inventory, p.Category, p.Description,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create product: %w", err)
	}
	return id, nil
}

// SetProductInventory overwrites the stock of a product
func (r *ShopRepository) SetProductInventory(ctx context.Context, productID model.ID, inventory int) error {
	tag, err := r.getExecutor(ctx).Exec(ctx, "UPDATE products SET inventory = $1, updated_at = NOW() WHERE id = $2", inventory, productID)
	if err != nil {
		return fmt.Errorf("failed to update product inventory: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *ShopRepository) SetProductPrice(ctx context.Context, productID model.ID, price model.Money) error {
	tag, err := r.getExecutor(ctx).Exec(ctx, "UPDATE products SET price = $1, updated_at = NOW() WHERE id = $2", price, productID)
	if err != nil {
		return fmt.Errorf("failed to update product price: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *ShopRepository) DeleteProduct(ctx context.Context, productID model.ID) error {
	tag, err := r.getExecutor(ctx).Exec(ctx, "DELETE FROM products WHERE id = $1", productID)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

const userColumns = "id, username, role, deposit"

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.Role, &u.Deposit)
	return u, err
}

func (r *ShopRepository) CreateUser(ctx context.Context, u model.User) (model.ID, error) {
	var id model.ID
	err := r.getExecutor(ctx).QueryRow(ctx,
		"INSERT INTO users (username, role, deposit) VALUES ($1, $2, $3) RETURNING id",
		u.Username, u.Role, u.Deposit,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, ErrUsernameTaken
		}
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	return id, nil
}

func (r *ShopRepository) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := r.getExecutor(ctx).Query(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *ShopRepository) GetUser(ctx context.Context, userID model.ID) (model.User, error) {
	return r.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", userID)
}

// GetUserForUpdate locks the user row and returns it
func (r *ShopRepository) GetUserForUpdate(ctx context.Context, userID model.ID) (model.User, error) {
	return r.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1 FOR UPDATE", userID)
}

func (r *ShopRepository) getUser(ctx context.Context, query string, userID model.ID) (model.User, error) {
	u, err := scanUser(r.getExecutor(ctx).QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (r *ShopRepository) SetUserDeposit(ctx context.Context, userID model.ID, deposit model.Money) error {
	tag, err := r.getExecutor(ctx).Exec(ctx, "UPDATE users SET deposit = $1 WHERE id = $2", deposit, userID)
	if err != nil {
		return fmt.Errorf("failed to update user deposit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *ShopRepository) SetUserRole(ctx context.Context, userID model.ID, role model.Role) error {
	tag, err := r.getExecutor(ctx).Exec(ctx, "UPDATE users SET role = $1 WHERE id = $2", string(role), userID)
	if err != nil {
		return fmt.Errorf("failed to update user role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *ShopRepository) DeleteUser(ctx context.Context, userID model.ID) error {
	tag, err := r.getExecutor(ctx).Exec(ctx, "DELETE FROM users WHERE id = $1", userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CreateOrder inserts a new order
func (r *ShopRepository) CreateOrder(ctx context.Context, userID, productID model.ID, quantity int) (model.ID, error) {
	var id model.ID
	err := r.getExecutor(ctx).QueryRow(ctx,
		"INSERT INTO orders (user_id, product_id, quantity) VALUES ($1, $2, $3) RETURNING id",
		userID, productID, quantity,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create order: %w", err)
	}
	return id, nil
}

const orderSelect = `SELECT o.id, o.user_id, o.product_id, COALESCE(p.name, '` + model.UnknownProductName + `'), o.quantity, o.order_date
FROM orders o LEFT JOIN products p ON p.id = o.product_id`

func (r *ShopRepository) ListOrders(ctx context.Context) ([]model.Order, error) {
	return r.queryOrders(ctx, orderSelect+" ORDER BY o.id")
}

func (r *ShopRepository) ListOrdersByUser(ctx context.Context, userID model.ID) ([]model.Order, error) {
	return r.queryOrders(ctx, orderSelect+" WHERE o.user_id = $1 ORDER BY o.id", userID)
}

func (r *ShopRepository) queryOrders(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	rows, err := r.getExecutor(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		var o model.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.ProductID, &o.ProductName, &o.Quantity, &o.OrderDate); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}
