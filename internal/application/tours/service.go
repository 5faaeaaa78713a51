// Package tours derives round progress from the payment ledger. It never writes.
package tours

import (
	"context"
	"time"

	"sol-backend/internal/application/rotation"
	"sol-backend/internal/domain"
	"sol-backend/internal/infrastructure/locking"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Service struct {
	DB    *gorm.DB
	Locks locking.Locker
}

// Status is the progress of a Sol's current round. RoundNumber is 0 before activation; once the Sol
// is completed it stays on the last round with IsComplete and Completed set.
type Status struct {
	SolID                    uuid.UUID        `json:"sol_id"`
	SolStatus                string           `json:"sol_status"`
	RoundNumber              int              `json:"round_number"`
	BeneficiaryParticipantID *uuid.UUID       `json:"beneficiary_participant_id"`
	BeneficiaryUserID        *uuid.UUID       `json:"beneficiary_user_id"`
	ValidatedCount           int              `json:"validated_count"`
	TotalParticipants        int              `json:"total_participants"`
	PendingPayments          []domain.Payment `json:"pending_payments"`
	IsComplete               bool             `json:"is_complete"`
	Completed                bool             `json:"completed"`
	TransferID               *uuid.UUID       `json:"transfer_id"`
	TransferStatus           string           `json:"transfer_status,omitempty"`
	DueDate                  *time.Time       `json:"due_date"`
}

// RoundSummary is one opened round as shown in the Sol's history.
type RoundSummary struct {
	Round             int             `json:"round"`
	BeneficiaryID     uuid.UUID       `json:"beneficiary_participant_id"`
	BeneficiaryUserID uuid.UUID       `json:"beneficiary_user_id"`
	TransferID        uuid.UUID       `json:"transfer_id"`
	TransferStatus    string          `json:"transfer_status"`
	Amount            decimal.Decimal `json:"amount"`
	DueDate           *time.Time      `json:"due_date"`
	ReadyAt           *time.Time      `json:"ready_at"`
	MarkedAt          *time.Time      `json:"marked_at"`
	ConfirmedAt       *time.Time      `json:"confirmed_at"`
}

// Status reports the current round of solID under a shared lock, so a concurrent validation is either
// fully visible or not at all.
func (s *Service) Status(ctx context.Context, solID uuid.UUID) (*Status, error) {
	var out *Status
	err := rotation.Read(ctx, s.DB, s.Locks, solID, func(tx *gorm.DB) error {
		sol, err := rotation.LoadSol(tx, solID)
		if err != nil {
			return err
		}
		participants, err := rotation.Participants(tx, solID)
		if err != nil {
			return err
		}
		out = &Status{
			SolID:             solID,
			SolStatus:         sol.Status,
			TotalParticipants: len(participants),
			PendingPayments:   []domain.Payment{},
			Completed:         sol.Status == domain.SolStatusCompleted,
		}
		if sol.CurrentRound == 0 {
			return nil
		}
		round := sol.CurrentRound
		out.RoundNumber = round
		out.DueDate = sol.RoundDueDate(round)
		for _, p := range participants {
			if p.Ordre == round {
				id, user := p.ParticipantID, p.UserID
				out.BeneficiaryParticipantID = &id
				out.BeneficiaryUserID = &user
			}
		}
		payments, err := rotation.RoundPayments(tx, solID, round)
		if err != nil {
			return err
		}
		for _, p := range payments {
			if domain.IsPaidStatus(p.Status) {
				out.ValidatedCount++
			} else {
				out.PendingPayments = append(out.PendingPayments, p)
			}
		}
		out.IsComplete = len(payments) > 0 && out.ValidatedCount == len(participants)
		transfer, err := rotation.RoundTransfer(tx, solID, round)
		if err != nil {
			return err
		}
		out.TransferID = &transfer.TransferID
		out.TransferStatus = transfer.Status
		return nil
	})
	return out, err
}

// History lists every opened round in order.
func (s *Service) History(ctx context.Context, solID uuid.UUID) ([]RoundSummary, error) {
	var out []RoundSummary
	err := rotation.Read(ctx, s.DB, s.Locks, solID, func(tx *gorm.DB) error {
		sol, err := rotation.LoadSol(tx, solID)
		if err != nil {
			return err
		}
		var transfers []domain.Transfer
		if err := tx.Where("sol_id = ?", solID).Order("round ASC").Find(&transfers).Error; err != nil {
			return err
		}
		out = make([]RoundSummary, 0, len(transfers))
		for _, t := range transfers {
			out = append(out, RoundSummary{
				Round:             t.Round,
				BeneficiaryID:     t.BeneficiaryID,
				BeneficiaryUserID: t.BeneficiaryUser,
				TransferID:        t.TransferID,
				TransferStatus:    t.Status,
				Amount:            t.Amount,
				DueDate:           sol.RoundDueDate(t.Round),
				ReadyAt:           t.ReadyAt,
				MarkedAt:          t.MarkedAt,
				ConfirmedAt:       t.ConfirmedAt,
			})
		}
		return nil
	})
	return out, err
}
