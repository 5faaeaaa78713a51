// Package payments is the payment ledger: one contribution obligation per participant and round,
// moved through submission, review and processor settlement.
package payments

import (
	"context"
	"errors"
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

	Intents PaymentIntentCreator // nil disables card checkout
}

// List returns the payments of one round; round 0 means the Sol's current round.
func (s *Service) List(ctx context.Context, solID uuid.UUID, round int) ([]domain.Payment, error) {
	var out []domain.Payment
	err := rotation.Read(ctx, s.DB, s.Locks, solID, func(tx *gorm.DB) error {
		sol, err := rotation.LoadSol(tx, solID)
		if err != nil {
			return err
		}
		if round == 0 {
			round = sol.CurrentRound
		}
		out, err = rotation.RoundPayments(tx, solID, round)
		return err
	})
	return out, err
}

// Get returns one payment.
func (s *Service) Get(ctx context.Context, paymentID uuid.UUID) (*domain.Payment, error) {
	solID, err := rotation.SolIDOfPayment(ctx, s.DB, paymentID)
	if err != nil {
		return nil, err
	}
	var out *domain.Payment
	err = rotation.Read(ctx, s.DB, s.Locks, solID, func(tx *gorm.DB) error {
		out, err = rotation.LoadPayment(tx, paymentID)
		return err
	})
	return out, err
}

// Submit attaches a receipt reference to a manual payment: pending or rejected -> uploaded.
func (s *Service) Submit(ctx context.Context, actor domain.Actor, paymentID uuid.UUID, proofReference string) (*domain.Payment, error) {
	proofReference = strings.TrimSpace(proofReference)
	if proofReference == "" {
		return nil, domain.NewError(domain.ErrInvalidInput, paymentID.String(), "proof reference is required")
	}
	return s.transition(ctx, paymentID, func(tx *gorm.DB, sol *domain.Sol, p *domain.Payment) error {
		if p.PayerID != actor.UserID && !actor.IsAdmin() {
			return domain.NewError(domain.ErrForbidden, actor.UserID.String(), "only the payer may submit this payment")
		}
		next, err := domain.NextPaymentStatus(p.Status, domain.PaymentSubmit)
		if err != nil {
			return domain.NewError(err, paymentID.String(), "cannot submit a %s payment", p.Status)
		}
		now := time.Now().UTC()
		if err := tx.Model(p).Updates(map[string]interface{}{
			"status":          next,
			"proof_reference": proofReference,
			"submitted_at":    now,
		}).Error; err != nil {
			return err
		}
		p.Status = next
		p.ProofReference = &proofReference
		p.SubmittedAt = &now
		return rotation.Record(tx, domain.NewSolEvent(sol.SolID, p.Round, domain.EventPaymentSubmitted, &actor, map[string]interface{}{
			"payment_id":      p.PaymentID,
			"proof_reference": proofReference,
		}))
	})
}

// Validate accepts an uploaded receipt. When it completes the round, the round's transfer becomes ready
// in the same transaction.
func (s *Service) Validate(ctx context.Context, actor domain.Actor, paymentID uuid.UUID, notes string) (*domain.Payment, error) {
	if err := actor.RequireAdmin("validate payment"); err != nil {
		return nil, err
	}
	return s.transition(ctx, paymentID, func(tx *gorm.DB, sol *domain.Sol, p *domain.Payment) error {
		next, err := domain.NextPaymentStatus(p.Status, domain.PaymentValidate)
		if err != nil {
			return domain.NewError(err, paymentID.String(), "cannot validate a %s payment", p.Status)
		}
		updates := map[string]interface{}{"reviewed_by": actor.UserID}
		if notes = strings.TrimSpace(notes); notes != "" {
			updates["admin_notes"] = notes
			p.AdminNotes = &notes
		}
		reviewer := actor.UserID
		p.ReviewedBy = &reviewer
		return markValidated(tx, sol, p, next, updates, domain.EventPaymentValidated, &actor)
	})
}

// Reject refuses an uploaded receipt; the payer may submit again.
func (s *Service) Reject(ctx context.Context, actor domain.Actor, paymentID uuid.UUID, reason string) (*domain.Payment, error) {
	if err := actor.RequireAdmin("reject payment"); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.NewError(domain.ErrInvalidInput, paymentID.String(), "a rejection reason is required")
	}
	return s.transition(ctx, paymentID, func(tx *gorm.DB, sol *domain.Sol, p *domain.Payment) error {
		next, err := domain.NextPaymentStatus(p.Status, domain.PaymentReject)
		if err != nil {
			return domain.NewError(err, paymentID.String(), "cannot reject a %s payment", p.Status)
		}
		if err := tx.Model(p).Updates(map[string]interface{}{
			"status":           next,
			"rejection_reason": reason,
			"reviewed_by":      actor.UserID,
		}).Error; err != nil {
			return err
		}
		reviewer := actor.UserID
		p.Status = next
		p.RejectionReason = &reason
		p.ReviewedBy = &reviewer
		return rotation.Record(tx, domain.NewSolEvent(sol.SolID, p.Round, domain.EventPaymentRejected, &actor, map[string]interface{}{
			"payment_id": p.PaymentID,
			"reason":     reason,
		}))
	})
}

// RecordProcessorSettlement validates a payment the card processor has settled, skipping the receipt
// review. The settlement wins over a receipt still waiting for review. Replaying the same processor
// reference returns the payment unchanged with settled=false.
func (s *Service) RecordProcessorSettlement(ctx context.Context, paymentID uuid.UUID, reference string, amountMinor int64, currency string) (p *domain.Payment, settled bool, err error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, false, domain.NewError(domain.ErrInvalidInput, paymentID.String(), "processor reference is required")
	}
	p, err = s.transition(ctx, paymentID, func(tx *gorm.DB, sol *domain.Sol, p *domain.Payment) error {
		var seen domain.Payment
		err := tx.Where("processor_reference = ?", reference).First(&seen).Error
		switch {
		case err == nil && seen.PaymentID == p.PaymentID:
			return nil
		case err == nil:
			return domain.NewError(domain.ErrConflict, reference, "processor reference already settled payment %s", seen.PaymentID)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		if !domain.SameCurrency(currency, sol.Currency) {
			return domain.NewError(domain.ErrInvalidInput, paymentID.String(), "settled in %q, sol is in %s", currency, sol.Currency)
		}
		if want := domain.MinorUnits(p.Amount, sol.Currency); want != amountMinor {
			return domain.NewError(domain.ErrInvalidInput, paymentID.String(), "settled amount %d does not match %d", amountMinor, want)
		}
		next, err := domain.NextPaymentStatus(p.Status, domain.PaymentSettle)
		if err != nil {
			return domain.NewError(err, paymentID.String(), "cannot settle a %s payment", p.Status)
		}
		p.Method = domain.PaymentMethodProcessor
		p.ProcessorReference = &reference
		settled = true
		return markValidated(tx, sol, p, next, map[string]interface{}{
			"method":              domain.PaymentMethodProcessor,
			"processor_reference": reference,
		}, domain.EventPaymentSettled, nil)
	})
	if err != nil {
		return nil, false, err
	}
	return p, settled, nil
}

// transition loads the payment and its Sol inside the Sol's exclusive section and runs fn.
func (s *Service) transition(ctx context.Context, paymentID uuid.UUID, fn func(tx *gorm.DB, sol *domain.Sol, p *domain.Payment) error) (*domain.Payment, error) {
	solID, err := rotation.SolIDOfPayment(ctx, s.DB, paymentID)
	if err != nil {
		return nil, err
	}
	var out *domain.Payment
	err = rotation.Mutate(ctx, s.DB, s.Locks, solID, func(tx *gorm.DB) error {
		sol, err := rotation.LoadSol(tx, solID)
		if err != nil {
			return err
		}
		p, err := rotation.LoadPayment(tx, paymentID)
		if err != nil {
			return err
		}
		if err := fn(tx, sol, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("sol_id", solID.String()).Str("payment_id", paymentID.String()).Str("status", out.Status).Msg("payment updated")
	return out, nil
}

// markValidated applies the validated status plus extra columns, bumps the participant's counter and
// refreshes the round's transfer.
func markValidated(tx *gorm.DB, sol *domain.Sol, p *domain.Payment, next string, updates map[string]interface{}, eventType string, actor *domain.Actor) error {
	now := time.Now().UTC()
	updates["status"] = next
	updates["validated_at"] = now
	if err := tx.Model(p).Updates(updates).Error; err != nil {
		return err
	}
	p.Status = next
	p.ValidatedAt = &now
	if err := tx.Model(&domain.Participant{}).Where("participant_id = ?", p.ParticipantID).
		UpdateColumn("validated_payments", gorm.Expr("validated_payments + ?", 1)).Error; err != nil {
		return err
	}
	if err := rotation.Record(tx, domain.NewSolEvent(sol.SolID, p.Round, eventType, actor, map[string]interface{}{
		"payment_id": p.PaymentID,
		"method":     p.Method,
		"amount":     p.Amount.StringFixed(2),
	})); err != nil {
		return err
	}
	_, err := rotation.RefreshTransfer(tx, sol, p.Round, actor)
	return err
}
