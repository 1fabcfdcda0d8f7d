package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"fsanano/storefront/internal/idempotency"
	"fsanano/storefront/internal/model"
	"fsanano/storefront/internal/service"
)

const maxProductFormSize = 10 << 20

type ShopHandler struct {
	svc *service.ShopService
	log *slog.Logger
}

func NewShopHandler(svc *service.ShopService, log *slog.Logger) *ShopHandler {
	return &ShopHandler{svc: svc, log: log}
}

type InventoryRequest struct {
	ProductID    model.ID `json:"product_id"`
	ChangeAmount int      `json:"change_amount"`
}

type PriceRequest struct {
	ProductID model.ID    `json:"product_id"`
	NewPrice  model.Money `json:"new_price"`
}

type ProductRequest struct {
	ProductID model.ID `json:"product_id"`
}

type UserRequest struct {
	UserID model.ID `json:"user_id"`
}

type RoleRequest struct {
	UserID model.ID   `json:"user_id"`
	Role   model.Role `json:"role"`
}

type AmountRequest struct {
	Amount model.Money `json:"amount"`
}

type OrderRequest struct {
	ProductID model.ID `json:"product_id"`
	Quantity  int      `json:"quantity"`
}

func (h *ShopHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.ListProducts(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, "", envelope{"products": products})
}

func (h *ShopHandler) AddProduct(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxProductFormSize); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid product form")
		return
	}

	price, err := model.ParseMoney(strings.TrimSpace(r.FormValue("price")))
	if err != nil {
		writeFail(w, http.StatusBadRequest, "invalid price")
		return
	}
	inventory, err := strconv.Atoi(strings.TrimSpace(r.FormValue("inventory")))
	if err != nil {
		writeFail(w, http.StatusBadRequest, "invalid inventory")
		return
	}

	id, err := h.svc.AddProduct(r.Context(), model.Product{
		Name:        r.FormValue("name"),
		Price:       price,
		Inventory:   inventory,
		Category:    strings.TrimSpace(r.FormValue("category")),
		Description: strings.TrimSpace(r.FormValue("description")),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, "Product added successfully.", envelope{"product_id": id})
}

func (h *ShopHandler) ChangeInventory(w http.ResponseWriter, r *http.Request) {
	var req InventoryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.ChangeAmount > 0 && !mayRestock(r) {
		writeFail(w, http.StatusForbidden, "only admins can add stock")
		return
	}

	inventory, err := h.svc.ChangeInventory(r.Context(), req.ProductID, req.ChangeAmount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, "Inventory updated successfully.", envelope{"product_id": req.ProductID, "inventory": inventory})
}

// mayRestock reports whether the caller can raise a product's stock. Shoppers
// may only return stock a failed purchase took, under its compensation key.
func mayRestock(r *http.Request) bool {
	if u, ok := userFrom(r.Context()); ok && u.IsAdmin() {
		return true
	}
	return strings.HasSuffix(r.Header.Get(idempotency.HeaderKey), ":compensate")
}

func (h *ShopHandler) UpdatePrice(w http.ResponseWriter, r *http.Request) {
	var req PriceRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.svc.UpdatePrice(r.Context(), req.ProductID, req.NewPrice); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, "Price updated successfully.", envelope{"product_id": req.ProductID, "price": req.NewPrice})
}

func (h *ShopHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.svc.DeleteProduct(r.Context(), req.ProductID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, "Product deleted successfully.", nil)
}

func (h *ShopHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, "", envelope{"users": users})
}

func (h *ShopHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	var req UserRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.svc.DeleteUser(r.Context(), req.UserID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, "User deleted successfully.", nil)
}

func (h *ShopHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req RoleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.svc.UpdateRole(r.Context(), req.UserID, req.Role); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, "User role updated.", envelope{"user_id": req.UserID, "role": req.Role})
}

func (h *ShopHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.ListOrders(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, "", envelope{"orders": orders})
}

func (h *ShopHandler) UserOrders(w http.ResponseWriter, r *http.Request) {
	u, _ := userFrom(r.Context())
	orders, err := h.svc.ListUserOrders(r.Context(), u.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, "", envelope{"orders": orders})
}

func (h *ShopHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	u, _ := userFrom(r.Context())
	orderID, err := h.svc.PlaceOrder(r.Context(), u.ID, req.ProductID, req.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, "Purchase successful.", envelope{"order_id": orderID})
}

func (h *ShopHandler) Username(w http.ResponseWriter, r *http.Request) {
	u, _ := userFrom(r.Context())
	writeOK(w, "", envelope{"username": u.Username})
}

func (h *ShopHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	u, _ := userFrom(r.Context())
	writeOK(w, "", envelope{"deposit": u.Deposit})
}

func (h *ShopHandler) AddDeposit(w http.ResponseWriter, r *http.Request) {
	h.adjustDeposit(w, r, h.svc.AddDeposit)
}

func (h *ShopHandler) MinusDeposit(w http.ResponseWriter, r *http.Request) {
	h.adjustDeposit(w, r, h.svc.MinusDeposit)
}

func (h *ShopHandler) adjustDeposit(w http.ResponseWriter, r *http.Request, apply func(context.Context, model.ID, model.Money) (model.Money, error)) {
	var req AmountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	u, _ := userFrom(r.Context())
	deposit, err := apply(r.Context(), u.ID, req.Amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, "Deposit updated.", envelope{"deposit": deposit})
}

func (h *ShopHandler) Admin(w http.ResponseWriter, r *http.Request) {
	writeOK(w, "Welcome, admin.", nil)
}

// Logout has no server-side session to drop; the gateway clears its cookie.
func (h *ShopHandler) Logout(w http.ResponseWriter, r *http.Request) {
	writeOK(w, "Logged out.", nil)
}
