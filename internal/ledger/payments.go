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

func paymentID(p core.Payment) string         { return p.ID }
func setPaymentID(p *core.Payment, id string) { p.ID = id }

// ListPayments returns the payments in insertion order.
func (s *Store) ListPayments() []core.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.snap.Payments)
}

// UpsertPayment mirrors UpsertJob for payments.
func (s *Store) UpsertPayment(ctx context.Context, payment core.Payment) (saved core.Payment, err error) {
	op := log.OpCreate
	if payment.ID != "" {
		op = log.OpUpdate
	}
	defer func() { s.observe(ctx, EntityPayment, op, cmp.Or(saved.ID, payment.ID), err) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return core.Payment{}, core.ErrClosed
	}

	payment.Vendor = strings.TrimSpace(payment.Vendor)
	if err := payment.Validate(); err != nil {
		return core.Payment{}, err
	}

	payments, saved, err := upsertByID(s.snap.Payments, payment, paymentID, setPaymentID, s.newID)
	if err != nil {
		return core.Payment{}, fmt.Errorf("payment %q: %w", payment.ID, err)
	}
	next := s.snap
	next.Payments = payments
	if err := s.commit(ctx, next, storage.KeyPayments); err != nil {
		return core.Payment{}, err
	}
	return saved, nil
}

// DeletePayment removes the payment with id. Deleting an unknown id is a no-op.
func (s *Store) DeletePayment(ctx context.Context, id string) (err error) {
	defer func() { s.observe(ctx, EntityPayment, log.OpDelete, id, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return core.ErrClosed
	}

	payments, removed := deleteByKey(s.snap.Payments, paymentID, id)
	if !removed {
		return nil
	}
	next := s.snap
	next.Payments = payments
	return s.commit(ctx, next, storage.KeyPayments)
}
