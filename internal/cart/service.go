package cart

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ariefcatur/go-storefront/internal/inventory"
	"github.com/ariefcatur/go-storefront/internal/orders"
)

// ReservationWindow is how long an account cart line stays valid after its
// last add.
const ReservationWindow = 15 * time.Minute

const recommendationLimit = 4

type Action string

const (
	ActionSet    Action = "set"
	ActionRemove Action = "remove"
)

type Service struct {
	store orders.Store
	log   *slog.Logger
	now   func() time.Time
}

func NewService(store orders.Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, log: log, now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// withCart runs fn against owner's cart inside one store transaction. An
// anonymous session only sees fn's writes once the transaction committed.
func (s *Service) withCart(ctx context.Context, owner Owner, fn func(tx orders.Tx, repo Repository) error) error {
	var staged *sessionRepo
	err := s.store.InTx(ctx, func(tx orders.Tx) error {
		repo := repositoryFor(tx, owner)
		staged, _ = repo.(*sessionRepo)
		return fn(tx, repo)
	})
	if err != nil {
		return err
	}
	if staged != nil {
		staged.commit()
	}
	return nil
}

// Add puts qty more units of productID into owner's cart. On success the
// returned message is the ledger's confirmation; a refused add comes back as
// *CapacityError and leaves the cart untouched.
func (s *Service) Add(ctx context.Context, owner Owner, productID string, qty int) (string, error) {
	if err := owner.validate(); err != nil {
		return "", err
	}
	if qty <= 0 {
		return "", ErrInvalidQuantity
	}

	var msg string
	err := s.withCart(ctx, owner, func(tx orders.Tx, repo Repository) error {
		p, err := tx.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		line, _, err := repo.Get(ctx, productID)
		if err != nil {
			return err
		}

		ok, m := inventory.CheckCapacity(p, qty, line.Qty)
		if !ok {
			return &CapacityError{ProductID: productID, Message: m}
		}

		line.ProductID = productID
		line.Qty += qty
		if repo.Reserves() {
			until := s.now().Add(ReservationWindow)
			line.ReservedUntil = &until
		}
		msg = m
		return repo.Put(ctx, line)
	})
	if err != nil {
		return "", err
	}
	return msg, nil
}

// Update applies set or remove to an existing line. set with qty 0 removes
// the line. set with a positive qty overwrites the quantity without asking
// the ledger again and leaves the reservation deadline as it was; the
// finalize-time re-check still guards stock.
func (s *Service) Update(ctx context.Context, owner Owner, productID string, action Action, qty *int) (string, error) {
	if err := owner.validate(); err != nil {
		return "", err
	}
	switch action {
	case ActionRemove:
	case ActionSet:
		if qty == nil || *qty < 0 {
			return "", ErrInvalidAction
		}
		if *qty == 0 {
			action = ActionRemove
		}
	default:
		return "", ErrInvalidAction
	}

	var msg string
	err := s.withCart(ctx, owner, func(_ orders.Tx, repo Repository) error {
		line, found, err := repo.Get(ctx, productID)
		if err != nil {
			return err
		}
		if !found {
			return ErrLineNotFound
		}
		if action == ActionRemove {
			msg = "Product removed from cart."
			return repo.Remove(ctx, productID)
		}
		line.Qty = *qty
		msg = "Quantity updated."
		return repo.Put(ctx, line)
	})
	if err != nil {
		return "", err
	}
	return msg, nil
}

type SnapshotLine struct {
	Product       orders.Product `json:"product"`
	Qty           int            `json:"qty"`
	LineTotal     int64          `json:"line_total_cents"`
	ReservedUntil *time.Time     `json:"reserved_until,omitempty"`
}

type Snapshot struct {
	Lines           []SnapshotLine   `json:"lines"`
	TotalCents      int64            `json:"total_cents"`
	Recommendations []orders.Product `json:"recommendations"`
}

// Snapshot prices owner's cart at current catalog prices. Lines whose
// product has disappeared from the catalog are left out.
func (s *Service) Snapshot(ctx context.Context, owner Owner) (Snapshot, error) {
	if err := owner.validate(); err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Lines: []SnapshotLine{}, Recommendations: []orders.Product{}}
	err := s.withCart(ctx, owner, func(tx orders.Tx, repo Repository) error {
		lines, err := repo.Lines(ctx)
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(lines))
		for _, l := range lines {
			p, err := tx.GetProduct(ctx, l.ProductID)
			if errors.Is(err, orders.ErrProductNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			total := p.PriceCents * int64(l.Qty)
			snap.Lines = append(snap.Lines, SnapshotLine{Product: p, Qty: l.Qty, LineTotal: total, ReservedUntil: l.ReservedUntil})
			snap.TotalCents += total
			ids = append(ids, p.ID)
		}
		if len(ids) == 0 {
			return nil
		}
		recs, err := tx.Recommend(ctx, ids, recommendationLimit)
		if err != nil {
			return err
		}
		snap.Recommendations = append(snap.Recommendations, recs...)
		return nil
	})
	return snap, err
}

// MergeOnLogin replaces accountID's cart with the contents of session and
// empties the session. Every merged line starts a fresh reservation window.
// Entries for products no longer in the catalog are dropped.
func (s *Service) MergeOnLogin(ctx context.Context, session *Session, accountID string) error {
	if session == nil || accountID == "" {
		return ErrInvalidOwner
	}
	if session.Empty() {
		return nil
	}
	err := s.store.InTx(ctx, func(tx orders.Tx) error {
		if err := tx.ClearCart(ctx, accountID); err != nil {
			return err
		}
		src, _ := newSessionRepo(session).Lines(ctx)
		dst := &accountRepo{tx: tx, accountID: accountID}
		until := s.now().Add(ReservationWindow)
		for _, l := range src {
			if l.Qty <= 0 {
				continue
			}
			if _, err := tx.GetProduct(ctx, l.ProductID); err != nil {
				if errors.Is(err, orders.ErrProductNotFound) {
					continue
				}
				return err
			}
			l.ReservedUntil = &until
			if err := dst.Put(ctx, l); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	session.Items = map[string]int{}
	s.log.Info("session cart merged", "account_id", accountID)
	return nil
}
