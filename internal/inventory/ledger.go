package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-storefront/internal/orders"
)

// CheckCapacity decides whether requested more units of p fit next to the
// held units already in the same cart. It never touches stock: stock only
// moves at finalize time.
func CheckCapacity(p orders.Product, requested, held int) (bool, string) {
	if p.Stock <= 0 {
		return false, fmt.Sprintf("Sorry, %s is out of stock.", p.Name)
	}
	if held+requested > p.Stock {
		remaining := p.Stock - held
		if remaining < 0 {
			remaining = 0
		}
		return false, fmt.Sprintf("Cannot add %d x %s: only %d more available.", requested, p.Name, remaining)
	}
	return true, fmt.Sprintf("%d x %s added to cart.", requested, p.Name)
}

type InsufficientStockError struct {
	ProductID string
	Name      string
	Requested int
}

func (e *InsufficientStockError) Error() string {
	name := e.Name
	if name == "" {
		name = e.ProductID
	}
	return fmt.Sprintf("stock for %s became insufficient (requested %d)", name, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return orders.ErrInsufficientStock }

type decrementer interface {
	DecrementStock(ctx context.Context, productID string, qty int) error
}

// CommitDecrement removes qty units of productID inside the caller's
// transaction. An *InsufficientStockError means concurrent consumption won
// the race; the caller must abort the whole transaction.
func CommitDecrement(ctx context.Context, tx decrementer, productID, name string, qty int) error {
	err := tx.DecrementStock(ctx, productID, qty)
	if errors.Is(err, orders.ErrInsufficientStock) {
		return &InsufficientStockError{ProductID: productID, Name: name, Requested: qty}
	}
	return err
}
