package client

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"fsanano/storefront/internal/model"
)

// ListProducts returns the catalogue, served from cache while it is fresh.
func (c *Client) ListProducts(ctx context.Context) ([]model.Product, error) {
	c.cacheMu.RLock()
	data := c.products
	if data != nil && c.now().Before(data.expiry) {
		c.cacheMu.RUnlock()
		return data.items, nil
	}
	c.cacheMu.RUnlock()

	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	// Double check logic
	data = c.products
	if data != nil && c.now().Before(data.expiry) {
		return data.items, nil
	}

	var resp struct {
		Products []model.Product `json:"products"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/products", nil, &resp); err != nil {
		return nil, err
	}

	if c.config.CacheTTL > 0 {
		c.products = &cachedProducts{
			items:  resp.Products,
			expiry: c.now().Add(c.config.CacheTTL),
		}
	}
	return resp.Products, nil
}

// InvalidateProducts drops the cached catalogue.
func (c *Client) InvalidateProducts() {
	c.cacheMu.Lock()
	c.products = nil
	c.cacheMu.Unlock()
}

// ChangeInventory applies delta to a product's stock and returns the
// inventory the server acknowledged.
func (c *Client) ChangeInventory(ctx context.Context, productID model.ID, delta int) (int, error) {
	if delta == 0 {
		return 0, validationError("inventory change must not be zero")
	}

	var resp struct {
		Inventory int `json:"inventory"`
	}
	body := map[string]any{"product_id": productID, "change_amount": delta}
	err := c.doJSON(ctx, http.MethodPut, "/product/inventory", body, &resp)
	c.InvalidateProducts()
	if err != nil {
		return 0, err
	}
	return resp.Inventory, nil
}

func (c *Client) UpdatePrice(ctx context.Context, productID model.ID, price model.Money) error {
	if price.IsNegative() {
		return validationError("price cannot be negative")
	}

	body := map[string]any{"product_id": productID, "new_price": price}
	err := c.doJSON(ctx, http.MethodPut, "/product/price", body, nil)
	c.InvalidateProducts()
	return err
}

func (c *Client) DeleteProduct(ctx context.Context, productID model.ID) error {
	err := c.doJSON(ctx, http.MethodDelete, "/product", map[string]any{"product_id": productID}, nil)
	c.InvalidateProducts()
	return err
}

// AddProduct uploads a new product as a multipart form and returns its id.
func (c *Client) AddProduct(ctx context.Context, p model.Product) (model.ID, error) {
	if strings.TrimSpace(p.Name) == "" {
		return 0, validationError("product name is required")
	}
	if p.Price.IsNegative() || p.Inventory < 0 {
		return 0, validationError("price and inventory cannot be negative")
	}

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	fields := [][2]string{
		{"name", p.Name},
		{"price", p.Price.String()},
		{"inventory", strconv.Itoa(p.Inventory)},
		{"category", p.Category},
		{"description", p.Description},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return 0, err
		}
	}
	if err := mw.Close(); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.config.BaseURL+"/product", &form)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp struct {
		ProductID model.ID `json:"product_id"`
	}
	err = c.do(req, &resp)
	c.InvalidateProducts()
	if err != nil {
		return 0, err
	}
	return resp.ProductID, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	var resp struct {
		Users []model.User `json:"users"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/users", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

func (c *Client) DeleteUser(ctx context.Context, userID model.ID) error {
	return c.doJSON(ctx, http.MethodDelete, "/user", map[string]any{"user_id": userID}, nil)
}

func (c *Client) UpdateRole(ctx context.Context, userID model.ID, role model.Role) error {
	if !role.Valid() {
		return validationError("role must be user or admin")
	}
	return c.doJSON(ctx, http.MethodPut, "/user/role", map[string]any{"user_id": userID, "role": role}, nil)
}

// ListOrders returns every order. Admin only.
func (c *Client) ListOrders(ctx context.Context) ([]model.Order, error) {
	return c.orders(ctx, "/orders")
}

// UserOrders returns the caller's orders.
func (c *Client) UserOrders(ctx context.Context) ([]model.Order, error) {
	return c.orders(ctx, "/user/orders")
}

func (c *Client) orders(ctx context.Context, path string) ([]model.Order, error) {
	var resp struct {
		Orders []model.Order `json:"orders"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Orders, nil
}

// PlaceOrder buys quantity units in a single server-side transaction.
func (c *Client) PlaceOrder(ctx context.Context, productID model.ID, quantity int) (model.ID, error) {
	if quantity < 1 {
		return 0, validationError("quantity must be at least 1")
	}

	var resp struct {
		OrderID model.ID `json:"order_id"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/orders", map[string]any{"product_id": productID, "quantity": quantity}, &resp)
	c.InvalidateProducts()
	if err != nil {
		return 0, err
	}
	return resp.OrderID, nil
}

func (c *Client) Username(ctx context.Context) (string, error) {
	var resp struct {
		Username string `json:"username"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/user/username", nil, &resp); err != nil {
		return "", err
	}
	return resp.Username, nil
}

func (c *Client) Deposit(ctx context.Context) (model.Money, error) {
	var resp struct {
		Deposit model.Money `json:"deposit"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/user/deposit", nil, &resp); err != nil {
		return model.Money{}, err
	}
	return resp.Deposit, nil
}

// AddDeposit credits the caller's balance and returns the new balance.
func (c *Client) AddDeposit(ctx context.Context, amount model.Money) (model.Money, error) {
	return c.adjustDeposit(ctx, "/user/adddeposite", amount)
}

// MinusDeposit debits the caller's balance and returns the new balance.
func (c *Client) MinusDeposit(ctx context.Context, amount model.Money) (model.Money, error) {
	return c.adjustDeposit(ctx, "/user/minusdeposite", amount)
}

func (c *Client) adjustDeposit(ctx context.Context, path string, amount model.Money) (model.Money, error) {
	if !amount.IsPositive() {
		return model.Money{}, validationError("amount must be greater than 0")
	}

	var resp struct {
		Deposit model.Money `json:"deposit"`
	}
	if err := c.doJSON(ctx, http.MethodPut, path, map[string]any{"amount": amount}, &resp); err != nil {
		return model.Money{}, err
	}
	return resp.Deposit, nil
}

// Logout returns the server's farewell message.
func (c *Client) Logout(ctx context.Context) (string, error) {
	var resp envelope
	if err := c.doJSON(ctx, http.MethodGet, "/logout", nil, &resp); err != nil {
		return "", err
	}
	c.InvalidateProducts()
	return resp.Message, nil
}

// AdminAccess reports whether the caller may use the admin dashboard.
func (c *Client) AdminAccess(ctx context.Context) (bool, error) {
	err := c.doJSON(ctx, http.MethodGet, "/admin", nil, nil)
	switch {
	case err == nil:
		return true, nil
	case IsStatus(err, http.StatusForbidden), IsStatus(err, http.StatusUnauthorized):
		return false, nil
	default:
		return false, err
	}
}
