package orders

import (
	"context"
	"errors"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrAccountNotFound   = errors.New("account not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Store is the persistent side of the checkout core. Every mutation runs
// inside InTx: fn's writes are committed together when it returns nil and
// discarded when it returns an error.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

type Tx interface {
	// catalog
	GetProduct(ctx context.Context, id string) (Product, error)
	// LockProduct reads the product and holds its row until the transaction ends.
	LockProduct(ctx context.Context, id string) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	// DecrementStock fails with ErrInsufficientStock when stock < qty.
	DecrementStock(ctx context.Context, productID string, qty int) error
	// Recommend returns products most often bought alongside productIDs,
	// excluding productIDs themselves.
	Recommend(ctx context.Context, productIDs []string, limit int) ([]Product, error)

	// account carts
	CartLines(ctx context.Context, accountID string) ([]CartLine, error)
	UpsertCartLine(ctx context.Context, line CartLine) error
	DeleteCartLine(ctx context.Context, accountID, productID string) error
	ClearCart(ctx context.Context, accountID string) error

	// orders
	InsertOrder(ctx context.Context, o Order) error
	InsertOrderItem(ctx context.Context, it OrderItem) error
	GetOrder(ctx context.Context, id string) (Order, error)
	// LockOrder reads the order with its items and holds its row until the
	// transaction ends.
	LockOrder(ctx context.Context, id string) (Order, error)
	UpdateOrder(ctx context.Context, o Order) error
	// DeleteAwaitingOrders removes accountID's AWAITING_PAYMENT orders and
	// their items, returning how many orders were removed.
	DeleteAwaitingOrders(ctx context.Context, accountID string) (int, error)
	CountOrders(ctx context.Context, statuses []Status) (int, error)

	// reference data
	Milestones(ctx context.Context) ([]int, error)
	AccountEmail(ctx context.Context, accountID string) (string, error)
}
