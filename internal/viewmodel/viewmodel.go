// Package viewmodel holds the per-page state of the shop front ends. A view
// model is built when a page opens, owns the rows it shows and re-renders
// through its callback after every acknowledged change. Close detaches it.
package viewmodel

import (
	"errors"
	"slices"
	"sync"

	"fsanano/storefront/internal/model"
)

var ErrClosed = errors.New("view closed")

// base guards a view model's state and its render callback.
type base[S any] struct {
	mu     sync.Mutex
	closed bool
	render func(S)
}

// update runs fn under the lock and renders the state it returns.
func (b *base[S]) update(fn func() S) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	s := fn()
	render := b.render
	b.mu.Unlock()

	if render != nil {
		render(s)
	}
	return nil
}

func (b *base[S]) open() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

func (b *base[S]) Close() {
	b.mu.Lock()
	b.closed = true
	b.render = nil
	b.mu.Unlock()
}

func setProductInventory(products []model.Product, productID model.ID, inventory int) bool {
	i := slices.IndexFunc(products, func(p model.Product) bool { return p.ID == productID })
	if i < 0 {
		return false
	}
	products[i].Inventory = inventory
	return true
}

func findProduct(products []model.Product, productID model.ID) (model.Product, bool) {
	i := slices.IndexFunc(products, func(p model.Product) bool { return p.ID == productID })
	if i < 0 {
		return model.Product{}, false
	}
	return products[i], true
}
