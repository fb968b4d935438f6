package cart

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	ErrInvalidAction   = errors.New("invalid cart action")
	ErrLineNotFound    = errors.New("product is not in the cart")
)

// CapacityError is returned by Add when the requested quantity does not fit
// the product's stock. Message is meant for the shopper.
type CapacityError struct {
	ProductID string
	Message   string
}

func (e *CapacityError) Error() string { return e.Message }

// ExpiredError lists the products whose reservation lapsed and were removed
// from the cart.
type ExpiredError struct {
	Products []string
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("reservation expired for: %s; please review your cart", strings.Join(e.Products, ", "))
}
