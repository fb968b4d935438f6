package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-storefront/internal/orders"
)

// Sweep deletes accountID's lines whose reservation deadline lies before now
// and returns the names of the affected products. Running it twice is
// harmless; the second run finds nothing.
func Sweep(ctx context.Context, tx orders.Tx, accountID string, now time.Time) ([]string, error) {
	lines, err := tx.CartLines(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	var expired []string
	for _, l := range lines {
		if !l.Expired(now) {
			continue
		}
		if err := tx.DeleteCartLine(ctx, accountID, l.ProductID); err != nil {
			return nil, fmt.Errorf("drop expired line %s: %w", l.ProductID, err)
		}
		name := l.ProductID
		p, err := tx.GetProduct(ctx, l.ProductID)
		switch {
		case err == nil:
			name = p.Name
		case !errors.Is(err, orders.ErrProductNotFound):
			return nil, err
		}
		expired = append(expired, name)
	}
	return expired, nil
}

// SweepExpired runs Sweep in its own transaction so removals stick even when
// the caller aborts afterwards. A non-empty result comes back as *ExpiredError.
func (s *Service) SweepExpired(ctx context.Context, accountID string) error {
	var expired []string
	err := s.store.InTx(ctx, func(tx orders.Tx) error {
		var err error
		expired, err = Sweep(ctx, tx, accountID, s.now())
		return err
	})
	if err != nil {
		return err
	}
	if len(expired) > 0 {
		s.log.Info("reservations expired", "account_id", accountID, "products", expired)
		return &ExpiredError{Products: expired}
	}
	return nil
}
