// Package transfers coordinates the payout of each round to its beneficiary, including disputes.
package transfers

import (
	"context"
	"strings"
	"time"

	"sol-backend/internal/application/rotation"
	"sol-backend/internal/domain"
	"sol-backend/internal/infrastructure/locking"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type Service struct {
	DB    *gorm.DB
	Locks locking.Locker
}

// ListPending returns every ready or transferring transfer of live Sols, oldest first.
func (s *Service) ListPending(ctx context.Context, actor domain.Actor) ([]domain.Transfer, error) {
	if err := actor.RequireAdmin("list pending transfers"); err != nil {
		return nil, err
	}
	var out []domain.Transfer
	err := s.DB.WithContext(ctx).
		Where("status IN ?", []string{domain.TransferStatusReady, domain.TransferStatusTransferring}).
		Where("sol_id IN (?)", s.DB.Model(&domain.Sol{}).Select("sol_id")).
		Order("ready_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns one transfer.
func (s *Service) Get(ctx context.Context, transferID uuid.UUID) (*domain.Transfer, error) {
	solID, err := rotation.SolIDOfTransfer(ctx, s.DB, transferID)
	if err != nil {
		return nil, err
	}
	var out *domain.Transfer
	err = rotation.Read(ctx, s.DB, s.Locks, solID, func(tx *gorm.DB) error {
		out, err = rotation.LoadTransfer(tx, transferID)
		return err
	})
	return out, err
}

// MarkTransferred records that the administrator sent the round's funds: ready -> transferring.
func (s *Service) MarkTransferred(ctx context.Context, actor domain.Actor, transferID uuid.UUID, reference, notes string) (*domain.Transfer, error) {
	if err := actor.RequireAdmin("mark transfer"); err != nil {
		return nil, err
	}
	solID, err := rotation.SolIDOfTransfer(ctx, s.DB, transferID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, solID, func(tx *gorm.DB, sol *domain.Sol) (*domain.Transfer, error) {
		t, err := rotation.LoadTransfer(tx, transferID)
		if err != nil {
			return nil, err
		}
		return t, mark(tx, sol, t, actor, reference, notes)
	})
}

// MarkPaymentTransferred is the per-payment entry point of MarkTransferred; it always applies to the
// whole round the payment belongs to.
func (s *Service) MarkPaymentTransferred(ctx context.Context, actor domain.Actor, paymentID uuid.UUID, reference, notes string) (*domain.Transfer, error) {
	if err := actor.RequireAdmin("mark transfer"); err != nil {
		return nil, err
	}
	solID, err := rotation.SolIDOfPayment(ctx, s.DB, paymentID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, solID, func(tx *gorm.DB, sol *domain.Sol) (*domain.Transfer, error) {
		p, err := rotation.LoadPayment(tx, paymentID)
		if err != nil {
			return nil, err
		}
		t, err := rotation.RoundTransfer(tx, sol.SolID, p.Round)
		if err != nil {
			return nil, err
		}
		return t, mark(tx, sol, t, actor, reference, notes)
	})
}

// ConfirmReceipt is the beneficiary acknowledging the funds: transferring -> completed. Every payment of
// the round becomes transferred and the Sol advances in the same transaction.
func (s *Service) ConfirmReceipt(ctx context.Context, actor domain.Actor, transferID uuid.UUID, notes string) (*domain.Transfer, error) {
	solID, err := rotation.SolIDOfTransfer(ctx, s.DB, transferID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, solID, func(tx *gorm.DB, sol *domain.Sol) (*domain.Transfer, error) {
		t, err := loadForBeneficiary(tx, actor, transferID)
		if err != nil {
			return nil, err
		}
		next, err := domain.NextTransferStatus(t.Status, domain.TransferConfirm)
		if err != nil {
			return nil, domain.NewError(err, transferID.String(), "cannot confirm a %s transfer", t.Status)
		}
		now := time.Now().UTC()
		updates := map[string]interface{}{"status": next, "confirmed_at": now}
		if notes = strings.TrimSpace(notes); notes != "" {
			updates["beneficiary_notes"] = notes
			t.BeneficiaryNotes = &notes
		}
		if err := tx.Model(t).Updates(updates).Error; err != nil {
			return nil, err
		}
		t.Status = next
		t.ConfirmedAt = &now

		payments, err := rotation.RoundPayments(tx, sol.SolID, t.Round)
		if err != nil {
			return nil, err
		}
		for i := range payments {
			p := &payments[i]
			status, err := domain.NextPaymentStatus(p.Status, domain.PaymentTransfer)
			if err != nil {
				return nil, domain.NewError(err, p.PaymentID.String(), "payment is %s, expected validated", p.Status)
			}
			if err := tx.Model(p).Updates(map[string]interface{}{"status": status, "transferred_at": now}).Error; err != nil {
				return nil, err
			}
		}
		if err := rotation.Record(tx, domain.NewSolEvent(sol.SolID, t.Round, domain.EventTransferConfirmed, &actor, map[string]interface{}{
			"transfer_id": t.TransferID,
			"payments":    len(payments),
		})); err != nil {
			return nil, err
		}
		if _, err := rotation.AdvanceRound(tx, sol, t.Round, &actor); err != nil {
			return nil, err
		}
		return t, nil
	})
}

// Dispute is the beneficiary contesting receipt: transferring -> disputed. The round stays put and its
// payments remain validated until an administrator reopens the transfer.
func (s *Service) Dispute(ctx context.Context, actor domain.Actor, transferID uuid.UUID, reason string) (*domain.Transfer, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.NewError(domain.ErrInvalidInput, transferID.String(), "a dispute reason is required")
	}
	solID, err := rotation.SolIDOfTransfer(ctx, s.DB, transferID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, solID, func(tx *gorm.DB, sol *domain.Sol) (*domain.Transfer, error) {
		t, err := loadForBeneficiary(tx, actor, transferID)
		if err != nil {
			return nil, err
		}
		next, err := domain.NextTransferStatus(t.Status, domain.TransferDispute)
		if err != nil {
			return nil, domain.NewError(err, transferID.String(), "cannot dispute a %s transfer", t.Status)
		}
		now := time.Now().UTC()
		if err := tx.Model(t).Updates(map[string]interface{}{
			"status":         next,
			"dispute_reason": reason,
			"disputed_at":    now,
		}).Error; err != nil {
			return nil, err
		}
		t.Status = next
		t.DisputeReason = &reason
		t.DisputedAt = &now
		log.Warn().Str("sol_id", sol.SolID.String()).Int("round", t.Round).Str("transfer_id", t.TransferID.String()).
			Str("reason", reason).Msg("transfer disputed")
		return t, rotation.Record(tx, domain.NewSolEvent(sol.SolID, t.Round, domain.EventTransferDisputed, &actor, map[string]interface{}{
			"transfer_id": t.TransferID,
			"reason":      reason,
		}))
	})
}

// Reopen lets an administrator resend a disputed transfer under a new reference: disputed -> transferring.
func (s *Service) Reopen(ctx context.Context, actor domain.Actor, transferID uuid.UUID, reference, notes string) (*domain.Transfer, error) {
	if err := actor.RequireAdmin("reopen transfer"); err != nil {
		return nil, err
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, domain.NewError(domain.ErrInvalidInput, transferID.String(), "a transfer reference is required")
	}
	solID, err := rotation.SolIDOfTransfer(ctx, s.DB, transferID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, solID, func(tx *gorm.DB, sol *domain.Sol) (*domain.Transfer, error) {
		t, err := rotation.LoadTransfer(tx, transferID)
		if err != nil {
			return nil, err
		}
		next, err := domain.NextTransferStatus(t.Status, domain.TransferReopen)
		if err != nil {
			return nil, domain.NewError(err, transferID.String(), "cannot reopen a %s transfer", t.Status)
		}
		if err := applyMark(tx, t, actor, next, reference, notes); err != nil {
			return nil, err
		}
		return t, rotation.Record(tx, domain.NewSolEvent(sol.SolID, t.Round, domain.EventTransferReopened, &actor, map[string]interface{}{
			"transfer_id": t.TransferID,
			"reference":   reference,
		}))
	})
}

func (s *Service) transition(ctx context.Context, solID uuid.UUID, fn func(tx *gorm.DB, sol *domain.Sol) (*domain.Transfer, error)) (*domain.Transfer, error) {
	var out *domain.Transfer
	err := rotation.Mutate(ctx, s.DB, s.Locks, solID, func(tx *gorm.DB) error {
		sol, err := rotation.LoadSol(tx, solID)
		if err != nil {
			return err
		}
		out, err = fn(tx, sol)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("sol_id", solID.String()).Str("transfer_id", out.TransferID.String()).Str("status", out.Status).Msg("transfer updated")
	return out, nil
}

func loadForBeneficiary(tx *gorm.DB, actor domain.Actor, transferID uuid.UUID) (*domain.Transfer, error) {
	t, err := rotation.LoadTransfer(tx, transferID)
	if err != nil {
		return nil, err
	}
	if !actor.Authenticated() || actor.UserID != t.BeneficiaryUser {
		return nil, domain.NewError(domain.ErrForbidden, actor.UserID.String(), "only the beneficiary may answer this transfer")
	}
	return t, nil
}

func mark(tx *gorm.DB, sol *domain.Sol, t *domain.Transfer, actor domain.Actor, reference, notes string) error {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return domain.NewError(domain.ErrInvalidInput, t.TransferID.String(), "a transfer reference is required")
	}
	next, err := domain.NextTransferStatus(t.Status, domain.TransferMark)
	if err != nil {
		return domain.NewError(err, t.TransferID.String(), "round %d transfer is %s", t.Round, t.Status)
	}
	if err := applyMark(tx, t, actor, next, reference, notes); err != nil {
		return err
	}
	return rotation.Record(tx, domain.NewSolEvent(sol.SolID, t.Round, domain.EventTransferMarked, &actor, map[string]interface{}{
		"transfer_id": t.TransferID,
		"reference":   reference,
		"amount":      t.Amount.StringFixed(2),
	}))
}

func applyMark(tx *gorm.DB, t *domain.Transfer, actor domain.Actor, next, reference, notes string) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":    next,
		"reference": reference,
		"marked_by": actor.UserID,
		"marked_at": now,
	}
	if notes = strings.TrimSpace(notes); notes != "" {
		updates["admin_notes"] = notes
		t.AdminNotes = &notes
	}
	if err := tx.Model(t).Updates(updates).Error; err != nil {
		return err
	}
	marker := actor.UserID
	t.Status = next
	t.Reference = &reference
	t.MarkedBy = &marker
	t.MarkedAt = &now
	return nil
}
