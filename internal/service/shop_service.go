package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"fsanano/storefront/internal/model"
)

var (
	ErrInvalidQuantity       = errors.New("quantity must be at least 1")
	ErrInvalidAmount         = errors.New("amount must be greater than 0")
	ErrInvalidPrice          = errors.New("price cannot be negative")
	ErrInvalidProduct        = errors.New("product name is required and inventory cannot be negative")
	ErrInvalidRole           = errors.New("role must be user or admin")
	ErrNegativeInventory     = errors.New("inventory cannot be negative")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrInsufficientDeposit   = errors.New("insufficient deposit")
)

// Repository is the persistence the shop needs. Calls made with the context
// handed to RunAtomic's callback share one transaction.
type Repository interface {
	RunAtomic(ctx context.Context, fn func(ctx context.Context) error) error

	ListProducts(ctx context.Context) ([]model.Product, error)
	GetProductForUpdate(ctx context.Context, productID model.ID) (model.Product, error)
	CreateProduct(ctx context.Context, p model.Product) (model.ID, error)
	SetProductInventory(ctx context.Context, productID model.ID, inventory int) error
	SetProductPrice(ctx context.Context, productID model.ID, price model.Money) error
	DeleteProduct(ctx context.Context, productID model.ID) error

	ListUsers(ctx context.Context) ([]model.User, error)
	GetUser(ctx context.Context, userID model.ID) (model.User, error)
	GetUserForUpdate(ctx context.Context, userID model.ID) (model.User, error)
	SetUserDeposit(ctx context.Context, userID model.ID, deposit model.Money) error
	SetUserRole(ctx context.Context, userID model.ID, role model.Role) error
	DeleteUser(ctx context.Context, userID model.ID) error

	CreateOrder(ctx context.Context, userID, productID model.ID, quantity int) (model.ID, error)
	ListOrders(ctx context.Context) ([]model.Order, error)
	ListOrdersByUser(ctx context.Context, userID model.ID) ([]model.Order, error)
}

type ShopService struct {
	repo Repository
	log  *slog.Logger
}

func NewShopService(repo Repository, log *slog.Logger) *ShopService {
	return &ShopService{repo: repo, log: log}
}

func (s *ShopService) ListProducts(ctx context.Context) ([]model.Product, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	s.log.DebugContext(ctx, "fetched products", "count", len(products))
	return products, nil
}

func (s *ShopService) AddProduct(ctx context.Context, p model.Product) (model.ID, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" || p.Inventory < 0 {
		return 0, ErrInvalidProduct
	}
	if p.Price.IsNegative() {
		return 0, ErrInvalidPrice
	}

	id, err := s.repo.CreateProduct(ctx, p)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to add product", "name", p.Name, "error", err)
		return 0, err
	}
	s.log.InfoContext(ctx, "product added", "product_id", id, "name", p.Name)
	return id, nil
}

// ChangeInventory applies delta to the product's stock under a row lock and
// returns the new inventory. A change that would leave it negative is refused.
func (s *ShopService) ChangeInventory(ctx context.Context, productID model.ID, delta int) (int, error) {
	var inventory int
	err := s.repo.RunAtomic(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetProductForUpdate(ctx, productID)
		if err != nil {
			return err
		}

		inventory = p.Inventory + delta
		if inventory < 0 {
			s.log.WarnContext(ctx, "refused negative inventory",
				"product_id", productID, "current", p.Inventory, "change", delta)
			return ErrNegativeInventory
		}
		return s.repo.SetProductInventory(ctx, productID, inventory)
	})
	if err != nil {
		return 0, err
	}

	s.log.InfoContext(ctx, "inventory updated", "product_id", productID, "change", delta, "inventory", inventory)
	return inventory, nil
}

func (s *ShopService) UpdatePrice(ctx context.Context, productID model.ID, price model.Money) error {
	if price.IsNegative() {
		return ErrInvalidPrice
	}
	if err := s.repo.SetProductPrice(ctx, productID, price); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "price updated", "product_id", productID, "price", price.String())
	return nil
}

func (s *ShopService) DeleteProduct(ctx context.Context, productID model.ID) error {
	if err := s.repo.DeleteProduct(ctx, productID); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "product deleted", "product_id", productID)
	return nil
}

func (s *ShopService) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.repo.ListUsers(ctx)
}

func (s *ShopService) User(ctx context.Context, userID model.ID) (model.User, error) {
	return s.repo.GetUser(ctx, userID)
}

func (s *ShopService) DeleteUser(ctx context.Context, userID model.ID) error {
	if err := s.repo.DeleteUser(ctx, userID); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "user deleted", "user_id", userID)
	return nil
}

func (s *ShopService) UpdateRole(ctx context.Context, userID model.ID, role model.Role) error {
	if !role.Valid() {
		return ErrInvalidRole
	}
	if err := s.repo.SetUserRole(ctx, userID, role); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "user role updated", "user_id", userID, "role", role)
	return nil
}

// AddDeposit credits the user's balance and returns the new balance.
func (s *ShopService) AddDeposit(ctx context.Context, userID model.ID, amount model.Money) (model.Money, error) {
	return s.adjustDeposit(ctx, userID, amount, false)
}

// MinusDeposit debits the user's balance and returns the new balance. The
// balance never goes below zero.
func (s *ShopService) MinusDeposit(ctx context.Context, userID model.ID, amount model.Money) (model.Money, error) {
	return s.adjustDeposit(ctx, userID, amount, true)
}

func (s *ShopService) adjustDeposit(ctx context.Context, userID model.ID, amount model.Money, debit bool) (model.Money, error) {
	if !amount.IsPositive() {
		return model.Money{}, ErrInvalidAmount
	}

	var deposit model.Money
	err := s.repo.RunAtomic(ctx, func(ctx context.Context) error {
		u, err := s.repo.GetUserForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		if debit {
			if u.Deposit.LessThan(amount) {
				return ErrInsufficientDeposit
			}
			deposit = u.Deposit.Sub(amount)
		} else {
			deposit = u.Deposit.Add(amount)
		}
		return s.repo.SetUserDeposit(ctx, userID, deposit)
	})
	if err != nil {
		return model.Money{}, err
	}

	s.log.InfoContext(ctx, "deposit updated", "user_id", userID, "debit", debit, "amount", amount.String(), "deposit", deposit.String())
	return deposit, nil
}

func (s *ShopService) ListOrders(ctx context.Context) ([]model.Order, error) {
	return s.repo.ListOrders(ctx)
}

func (s *ShopService) ListUserOrders(ctx context.Context, userID model.ID) ([]model.Order, error) {
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.ListOrdersByUser(ctx, userID)
}

// PlaceOrder buys quantity units in one transaction: stock, deposit and the
// order row change together or not at all.
func (s *ShopService) PlaceOrder(ctx context.Context, userID, productID model.ID, quantity int) (model.ID, error) {
	if quantity < 1 {
		return 0, ErrInvalidQuantity
	}

	var orderID model.ID
	err := s.repo.RunAtomic(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetProductForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if p.Inventory < quantity {
			return ErrInsufficientInventory
		}

		u, err := s.repo.GetUserForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		total := p.Price.Times(quantity)
		if u.Deposit.LessThan(total) {
			return ErrInsufficientDeposit
		}

		if err := s.repo.SetUserDeposit(ctx, userID, u.Deposit.Sub(total)); err != nil {
			return err
		}
		if err := s.repo.SetProductInventory(ctx, productID, p.Inventory-quantity); err != nil {
			return err
		}

		orderID, err = s.repo.CreateOrder(ctx, userID, productID, quantity)
		return err
	})
	if err != nil {
		s.log.WarnContext(ctx, "order rejected", "user_id", userID, "product_id", productID, "quantity", quantity, "error", err)
		return 0, err
	}

	s.log.InfoContext(ctx, "order placed", "order_id", orderID, "user_id", userID, "product_id", productID, "quantity", quantity)
	return orderID, nil
}
