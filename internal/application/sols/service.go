// Package sols is the Sol lifecycle controller: creation, membership, activation, round advancement
// and cancellation. It gates order mutation by activation state.
package sols

import (
	"context"
	"strings"
	"time"

	"sol-backend/internal/application/order"
	policies "sol-backend/internal/application/policies/governance"
	"sol-backend/internal/application/rotation"
	"sol-backend/internal/domain"
	"sol-backend/internal/infrastructure/locking"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	MinParticipants = 2
	MaxParticipants = 100
)

type Service struct {
	DB    *gorm.DB
	Locks locking.Locker
	// DefaultCurrency is used when a Sol is created without one; empty means USD.
	DefaultCurrency string
}

type CreateSolInput struct {
	Name               string
	ContributionAmount decimal.Decimal
	Currency           string
	Periodicity        string
	MaxParticipants    int
}

// Create stores a draft Sol; the founder joins as participant #1 in the same transaction.
func (s *Service) Create(ctx context.Context, actor domain.Actor, in CreateSolInput) (*domain.Sol, error) {
	if !actor.Authenticated() {
		return nil, domain.NewError(domain.ErrForbidden, "", "authentication required")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.NewError(domain.ErrInvalidInput, "", "name is required")
	}
	if !in.ContributionAmount.IsPositive() {
		return nil, domain.NewError(domain.ErrInvalidInput, "", "contribution amount must be positive")
	}
	if !domain.IsValidPeriodicity(in.Periodicity) {
		return nil, domain.NewError(domain.ErrInvalidInput, "", "unknown periodicity %q", in.Periodicity)
	}
	if in.MaxParticipants < MinParticipants || in.MaxParticipants > MaxParticipants {
		return nil, domain.NewError(domain.ErrInvalidInput, "", "max participants must be between %d and %d", MinParticipants, MaxParticipants)
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = strings.ToUpper(strings.TrimSpace(s.DefaultCurrency))
	}
	if currency == "" {
		currency = "USD"
	}
	if domain.CurrencyExponent(currency) == 0 && !in.ContributionAmount.IsInteger() {
		return nil, domain.NewError(domain.ErrInvalidInput, "", "%s amounts must be whole", currency)
	}
	sol := &domain.Sol{
		Name:               name,
		ContributionAmount: in.ContributionAmount.Round(2),
		Currency:           currency,
		Periodicity:        in.Periodicity,
		MaxParticipants:    in.MaxParticipants,
		Status:             domain.SolStatusDraft,
		FounderID:          actor.UserID,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(sol).Error; err != nil {
			return err
		}
		founder := &domain.Participant{SolID: sol.SolID, UserID: actor.UserID, Ordre: 1}
		if err := tx.Create(founder).Error; err != nil {
			return err
		}
		return rotation.Record(tx, domain.NewSolEvent(sol.SolID, 0, domain.EventSolCreated, &actor, map[string]interface{}{
			"contribution_amount": sol.ContributionAmount.StringFixed(2),
			"periodicity":         sol.Periodicity,
			"max_participants":    sol.MaxParticipants,
		}))
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("sol_id", sol.SolID.String()).Str("founder_id", actor.UserID.String()).Msg("sol created")
	return sol, nil
}

// Get returns a Sol by id.
func (s *Service) Get(ctx context.Context, solID uuid.UUID) (*domain.Sol, error) {
	var sol *domain.Sol
	err := rotation.Read(ctx, s.DB, s.Locks, solID, func(tx *gorm.DB) error {
		var err error
		sol, err = rotation.LoadSol(tx, solID)
		return err
	})
	return sol, err
}

// ListParticipants returns the participants ordered by ordre, with their validated payment counts.
func (s *Service) ListParticipants(ctx context.Context, solID uuid.UUID) ([]domain.Participant, error) {
	var out []domain.Participant
	err := rotation.Read(ctx, s.DB, s.Locks, solID, func(tx *gorm.DB) error {
		if _, err := rotation.LoadSol(tx, solID); err != nil {
			return err
		}
		var err error
		out, err = rotation.Participants(tx, solID)
		return err
	})
	return out, err
}

// Join appends the actor to a draft Sol with ordre N+1.
func (s *Service) Join(ctx context.Context, actor domain.Actor, solID uuid.UUID) (*domain.Participant, error) {
	if !actor.Authenticated() {
		return nil, domain.NewError(domain.ErrForbidden, "", "authentication required")
	}
	var joined *domain.Participant
	err := rotation.Mutate(ctx, s.DB, s.Locks, solID, func(tx *gorm.DB) error {
		sol, err := rotation.LoadSol(tx, solID)
		if err != nil {
			return err
		}
		if sol.Status != domain.SolStatusDraft {
			return domain.NewError(domain.ErrAlreadyActive, solID.String(), "cannot join a %s sol", sol.Status)
		}
		participants, err := rotation.Participants(tx, solID)
		if err != nil {
			return err
		}
		for _, p := range participants {
			if p.UserID == actor.UserID {
				return domain.NewError(domain.ErrConflict, p.ParticipantID.String(), "user already participates")
			}
		}
		if len(participants) >= sol.MaxParticipants {
			return domain.NewError(domain.ErrConflict, solID.String(), "sol is full (%d participants)", sol.MaxParticipants)
		}
		joined = &domain.Participant{SolID: solID, UserID: actor.UserID, Ordre: len(participants) + 1}
		if err := tx.Create(joined).Error; err != nil {
			return err
		}
		// The stored seed no longer describes the participant set.
		if err := tx.Model(sol).Update("order_seed", gorm.Expr("NULL")).Error; err != nil {
			return err
		}
		return rotation.Record(tx, domain.NewSolEvent(solID, 0, domain.EventParticipantJoined, &actor, map[string]interface{}{
			"participant_id": joined.ParticipantID,
			"ordre":          joined.Ordre,
		}))
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("sol_id", solID.String()).Str("participant_id", joined.ParticipantID.String()).Int("ordre", joined.Ordre).Msg("participant joined")
	return joined, nil
}

// RemoveParticipant soft-removes a participant before activation and compacts the remaining ordre
// values back to {1..N}. The founder cannot be removed.
func (s *Service) RemoveParticipant(ctx context.Context, actor domain.Actor, solID, participantID uuid.UUID) error {
	err := rotation.Mutate(ctx, s.DB, s.Locks, solID, func(tx *gorm.DB) error {
		sol, err := rotation.LoadSol(tx, solID)
		if err != nil {
			return err
		}
		if sol.Status != domain.SolStatusDraft {
			return domain.NewError(domain.ErrAlreadyActive, solID.String(), "participants are fixed once the sol is %s", sol.Status)
		}
		participants, err := rotation.Participants(tx, solID)
		if err != nil {
			return err
		}
		var target *domain.Participant
		for i := range participants {
			if participants[i].ParticipantID == participantID {
				target = &participants[i]
			}
		}
		if target == nil {
			return domain.NewError(domain.ErrNotFound, participantID.String(), "participant not found")
		}
		if err := policies.ValidateRemoval(actor, sol, target); err != nil {
			return err
		}
		if err := tx.Delete(target).Error; err != nil {
			return err
		}
		ordre := 1
		for _, p := range participants {
			if p.ParticipantID == participantID {
				continue
			}
			if p.Ordre != ordre {
				if err := tx.Model(&domain.Participant{}).Where("participant_id = ?", p.ParticipantID).Update("ordre", ordre).Error; err != nil {
					return err
				}
			}
			ordre++
		}
		if err := tx.Model(sol).Update("order_seed", gorm.Expr("NULL")).Error; err != nil {
			return err
		}
		return rotation.Record(tx, domain.NewSolEvent(solID, 0, domain.EventParticipantRemoved, &actor, map[string]interface{}{
			"participant_id": participantID,
		}))
	})
	if err != nil {
		return err
	}
	log.Info().Str("sol_id", solID.String()).Str("participant_id", participantID.String()).Msg("participant removed")
	return nil
}

// Activate freezes the order, flips the Sol to active and opens round 1.
func (s *Service) Activate(ctx context.Context, actor domain.Actor, solID uuid.UUID, startDate time.Time) (*domain.Sol, error) {
	var sol *domain.Sol
	err := rotation.Mutate(ctx, s.DB, s.Locks, solID, func(tx *gorm.DB) error {
		var err error
		sol, err = rotation.LoadSol(tx, solID)
		if err != nil {
			return err
		}
		if err := policies.RequireSteward(actor, sol, "activate"); err != nil {
			return err
		}
		if sol.Status != domain.SolStatusDraft {
			return domain.NewError(domain.ErrAlreadyActive, solID.String(), "sol is %s", sol.Status)
		}
		participants, err := rotation.Participants(tx, solID)
		if err != nil {
			return err
		}
		if len(participants) < MinParticipants {
			return domain.NewError(domain.ErrOrderIncomplete, solID.String(), "at least %d participants are required", MinParticipants)
		}
		if !order.IsGapless(participants) {
			return domain.NewError(domain.ErrOrderIncomplete, solID.String(), "ordre values are not a gapless permutation of 1..%d", len(participants))
		}
		start := startDate.UTC()
		if startDate.IsZero() {
			start = time.Now().UTC()
		}
		if err := tx.Model(sol).Updates(map[string]interface{}{
			"status":     domain.SolStatusActive,
			"start_date": start,
		}).Error; err != nil {
			return err
		}
		sol.Status = domain.SolStatusActive
		sol.StartDate = &start
		if err := rotation.Record(tx, domain.NewSolEvent(solID, 0, domain.EventSolActivated, &actor, map[string]interface{}{
			"start_date":   start,
			"participants": len(participants),
		})); err != nil {
			return err
		}
		return rotation.OpenRound(tx, sol, 1, &actor)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("sol_id", solID.String()).Msg("sol activated")
	return sol, nil
}

// AdvanceRound moves past completedRound once its transfer is completed. Repeating the call for a round
// already left behind is a no-op and returns advanced=false.
func (s *Service) AdvanceRound(ctx context.Context, actor domain.Actor, solID uuid.UUID, completedRound int) (sol *domain.Sol, advanced bool, err error) {
	err = rotation.Mutate(ctx, s.DB, s.Locks, solID, func(tx *gorm.DB) error {
		sol, err = rotation.LoadSol(tx, solID)
		if err != nil {
			return err
		}
		advanced, err = rotation.AdvanceRound(tx, sol, completedRound, &actor)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return sol, advanced, nil
}

// Cancel marks a draft or active Sol cancelled and soft-deletes it; later lookups report NotFound.
func (s *Service) Cancel(ctx context.Context, actor domain.Actor, solID uuid.UUID) error {
	err := rotation.Mutate(ctx, s.DB, s.Locks, solID, func(tx *gorm.DB) error {
		sol, err := rotation.LoadSol(tx, solID)
		if err != nil {
			return err
		}
		if err := policies.RequireSteward(actor, sol, "cancel"); err != nil {
			return err
		}
		if sol.Status == domain.SolStatusCompleted || sol.Status == domain.SolStatusCancelled {
			return domain.NewError(domain.ErrInvalidTransition, solID.String(), "sol is already %s", sol.Status)
		}
		if err := tx.Model(sol).Update("status", domain.SolStatusCancelled).Error; err != nil {
			return err
		}
		if err := rotation.Record(tx, domain.NewSolEvent(solID, sol.CurrentRound, domain.EventSolCancelled, &actor, nil)); err != nil {
			return err
		}
		return tx.Delete(sol).Error
	})
	if err != nil {
		return err
	}
	log.Info().Str("sol_id", solID.String()).Msg("sol cancelled")
	return nil
}
