package viewmodel

import (
	"context"
	"slices"

	"fsanano/storefront/internal/model"
)

type OrderHistoryAPI interface {
	UserOrders(ctx context.Context) ([]model.Order, error)
}

// OrderHistory is the caller's list of past orders, newest first.
type OrderHistory struct {
	base[[]model.Order]
	api    OrderHistoryAPI
	orders []model.Order
}

func NewOrderHistory(api OrderHistoryAPI, render func([]model.Order)) *OrderHistory {
	h := &OrderHistory{api: api}
	h.render = render
	return h
}

func (h *OrderHistory) Orders() []model.Order {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.orders)
}

func (h *OrderHistory) Load(ctx context.Context) error {
	if err := h.open(); err != nil {
		return err
	}
	orders, err := h.api.UserOrders(ctx)
	if err != nil {
		return err
	}

	orders = slices.Clone(orders)
	slices.SortStableFunc(orders, func(a, b model.Order) int {
		return b.OrderDate.Compare(a.OrderDate)
	})

	return h.update(func() []model.Order {
		h.orders = orders
		return slices.Clone(h.orders)
	})
}
