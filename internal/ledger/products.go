package ledger

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/storage"
)

func productName(p core.Product) string { return p.Name }

// ListProducts returns the products in insertion order.
func (s *Store) ListProducts() []core.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.snap.Products)
}

// UpsertProduct creates product when oldName is empty. Otherwise the product
// named oldName is replaced in place, which may rename it. Jobs and payments
// that reference the old name keep it.
func (s *Store) UpsertProduct(ctx context.Context, product core.Product, oldName string) (saved core.Product, err error) {
	op := log.OpCreate
	if oldName != "" {
		op = log.OpUpdate
	}
	defer func() { s.observe(ctx, EntityProduct, op, cmp.Or(saved.Name, oldName, product.Name), err) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return core.Product{}, core.ErrClosed
	}

	product.Name = strings.TrimSpace(product.Name)
	if err := product.Validate(); err != nil {
		return core.Product{}, err
	}

	products := s.snap.Products
	existing := indexOf(products, productName, product.Name)

	if oldName == "" {
		if existing >= 0 {
			return core.Product{}, fmt.Errorf("%w: %q", core.ErrDuplicateProduct, product.Name)
		}
		products = append(slices.Clone(products), product)
	} else {
		i := indexOf(products, productName, oldName)
		if i < 0 {
			return core.Product{}, fmt.Errorf("product %q: %w", oldName, core.ErrNotFound)
		}
		if existing >= 0 && existing != i {
			return core.Product{}, fmt.Errorf("%w: %q", core.ErrDuplicateProduct, product.Name)
		}
		products = slices.Clone(products)
		products[i] = product
	}

	next := s.snap
	next.Products = products
	if err := s.commit(ctx, next, storage.KeyProducts); err != nil {
		return core.Product{}, err
	}
	return product, nil
}

// DeleteProduct removes the product called name. References from jobs and
// payments are left dangling. Deleting an unknown name is a no-op.
func (s *Store) DeleteProduct(ctx context.Context, name string) (err error) {
	defer func() { s.observe(ctx, EntityProduct, log.OpDelete, name, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return core.ErrClosed
	}

	products, removed := deleteByKey(s.snap.Products, productName, name)
	if !removed {
		return nil
	}
	next := s.snap
	next.Products = products
	return s.commit(ctx, next, storage.KeyProducts)
}
