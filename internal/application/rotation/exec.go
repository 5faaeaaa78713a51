// Package rotation holds the transaction-level round engine shared by the Sol services: the per-Sol
// critical section, round opening, transfer readiness and round advancement.
package rotation

import (
	"context"
	"errors"

	"sol-backend/internal/domain"
	"sol-backend/internal/infrastructure/locking"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Mutate runs fn inside the Sol's exclusive section and a single DB transaction.
// Nothing fn writes is visible unless it returns nil and the section is still held at commit.
func Mutate(ctx context.Context, db *gorm.DB, locks locking.Locker, solID uuid.UUID, fn func(tx *gorm.DB) error) error {
	lease, err := locks.Lock(ctx, solID)
	if err != nil {
		return err
	}
	defer lease.Release()
	return db.WithContext(ctx).Transaction(guarded(ctx, lease, fn))
}

// Read runs fn inside the Sol's shared section and a single DB transaction, so it never observes
// a half-applied mutation.
func Read(ctx context.Context, db *gorm.DB, locks locking.Locker, solID uuid.UUID, fn func(tx *gorm.DB) error) error {
	lease, err := locks.RLock(ctx, solID)
	if err != nil {
		return err
	}
	defer lease.Release()
	return db.WithContext(ctx).Transaction(guarded(ctx, lease, fn))
}

func guarded(ctx context.Context, lease locking.Lease, fn func(tx *gorm.DB) error) func(tx *gorm.DB) error {
	return func(tx *gorm.DB) error {
		if err := fn(tx); err != nil {
			return err
		}
		return lease.Check(ctx)
	}
}

// LoadSol fetches a Sol or returns ErrNotFound.
func LoadSol(tx *gorm.DB, solID uuid.UUID) (*domain.Sol, error) {
	var sol domain.Sol
	if err := tx.Where("sol_id = ?", solID).First(&sol).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewError(domain.ErrNotFound, solID.String(), "sol not found")
		}
		return nil, err
	}
	return &sol, nil
}

// Participants returns the Sol's live participants ordered by ordre.
func Participants(tx *gorm.DB, solID uuid.UUID) ([]domain.Participant, error) {
	var ps []domain.Participant
	if err := tx.Where("sol_id = ?", solID).Order("ordre ASC").Find(&ps).Error; err != nil {
		return nil, err
	}
	return ps, nil
}

// SolIDOfPayment resolves the owning Sol of a payment without locking; callers re-read under the lock.
func SolIDOfPayment(ctx context.Context, db *gorm.DB, paymentID uuid.UUID) (uuid.UUID, error) {
	var p domain.Payment
	if err := db.WithContext(ctx).Select("sol_id").Where("payment_id = ?", paymentID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, domain.NewError(domain.ErrNotFound, paymentID.String(), "payment not found")
		}
		return uuid.Nil, err
	}
	return p.SolID, nil
}

// SolIDOfTransfer resolves the owning Sol of a transfer without locking.
func SolIDOfTransfer(ctx context.Context, db *gorm.DB, transferID uuid.UUID) (uuid.UUID, error) {
	var t domain.Transfer
	if err := db.WithContext(ctx).Select("sol_id").Where("transfer_id = ?", transferID).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, domain.NewError(domain.ErrNotFound, transferID.String(), "transfer not found")
		}
		return uuid.Nil, err
	}
	return t.SolID, nil
}

// LoadPayment fetches a payment inside tx.
func LoadPayment(tx *gorm.DB, paymentID uuid.UUID) (*domain.Payment, error) {
	var p domain.Payment
	if err := tx.Where("payment_id = ?", paymentID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewError(domain.ErrNotFound, paymentID.String(), "payment not found")
		}
		return nil, err
	}
	return &p, nil
}

// LoadTransfer fetches a transfer inside tx.
func LoadTransfer(tx *gorm.DB, transferID uuid.UUID) (*domain.Transfer, error) {
	var t domain.Transfer
	if err := tx.Where("transfer_id = ?", transferID).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewError(domain.ErrNotFound, transferID.String(), "transfer not found")
		}
		return nil, err
	}
	return &t, nil
}

// RoundTransfer fetches the transfer of (sol, round).
func RoundTransfer(tx *gorm.DB, solID uuid.UUID, round int) (*domain.Transfer, error) {
	var t domain.Transfer
	if err := tx.Where("sol_id = ? AND round = ?", solID, round).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewError(domain.ErrNotFound, solID.String(), "round %d has no transfer", round)
		}
		return nil, err
	}
	return &t, nil
}

// RoundPayments returns every payment of (sol, round).
func RoundPayments(tx *gorm.DB, solID uuid.UUID, round int) ([]domain.Payment, error) {
	var ps []domain.Payment
	if err := tx.Where("sol_id = ? AND round = ?", solID, round).Order("created_at ASC").Find(&ps).Error; err != nil {
		return nil, err
	}
	return ps, nil
}

// Record appends an audit event in tx.
func Record(tx *gorm.DB, ev *domain.SolEvent) error {
	return tx.Create(ev).Error
}
