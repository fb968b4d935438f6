package checkout

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/orders"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrUnknownMethod      = errors.New("unknown payment method")
	ErrMethodUnavailable  = errors.New("payment method is currently unavailable")
	ErrMethodNotSupported = errors.New("payment method is not supported yet")
	ErrCheckoutFailed     = errors.New("checkout failed, please try again")
	ErrInvalidTransition  = errors.New("invalid status transition")
)

type Shortage struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// ShortageError lists every cart line that no longer fits live stock.
type ShortageError struct {
	Items []Shortage
}

func (e *ShortageError) Error() string {
	parts := make([]string, 0, len(e.Items))
	for _, s := range e.Items {
		parts = append(parts, fmt.Sprintf("%s: requested %d, only %d available", s.Name, s.Requested, s.Available))
	}
	return "insufficient stock for " + strings.Join(parts, "; ")
}

type BelowMinimumError struct {
	Min      int64
	Currency string
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("card payments require a minimum order of %d %s", e.Min, e.Currency)
}

// PaymentError wraps a processor failure while opening a card payment.
type PaymentError struct {
	Err error
}

func (e *PaymentError) Error() string { return "payment processor error: " + e.Err.Error() }
func (e *PaymentError) Unwrap() error { return e.Err }

type TransitionError struct {
	From, To orders.Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
