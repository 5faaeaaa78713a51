// Package order owns the rotation order of a Sol: who is beneficiary of which round.
package order

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	policies "sol-backend/internal/application/policies/governance"
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

// Verification is the outcome of re-deriving a randomized order from its stored seed.
type Verification struct {
	Seed     string      `json:"seed"`
	Base     []uuid.UUID `json:"base"`
	Expected []uuid.UUID `json:"expected"`
	Current  []uuid.UUID `json:"current"`
	Matches  bool        `json:"matches"`
}

// CurrentOrder returns the Sol's participants ordered by ordre.
func (s *Service) CurrentOrder(ctx context.Context, solID uuid.UUID) ([]domain.Participant, error) {
	var out []domain.Participant
	err := rotation.Read(ctx, s.DB, s.Locks, solID, func(tx *gorm.DB) error {
		if _, err := rotation.LoadSol(tx, solID); err != nil {
			return err
		}
		ps, err := rotation.Participants(tx, solID)
		out = ps
		return err
	})
	return out, err
}

// SetOrder commits a full permutation of the participant ids; position i gets ordre i+1.
func (s *Service) SetOrder(ctx context.Context, actor domain.Actor, solID uuid.UUID, ids []uuid.UUID) ([]domain.Participant, error) {
	var out []domain.Participant
	err := rotation.Mutate(ctx, s.DB, s.Locks, solID, func(tx *gorm.DB) error {
		sol, participants, err := loadMutable(tx, actor, solID)
		if err != nil {
			return err
		}
		if err := ValidatePermutation(solID, participants, ids); err != nil {
			return err
		}
		if err := apply(tx, solID, ids); err != nil {
			return err
		}
		if err := tx.Model(sol).Update("order_seed", gorm.Expr("NULL")).Error; err != nil {
			return err
		}
		if err := rotation.Record(tx, domain.NewSolEvent(solID, 0, domain.EventOrderSet, &actor, map[string]interface{}{
			"order": ids,
		})); err != nil {
			return err
		}
		out, err = rotation.Participants(tx, solID)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("sol_id", solID.String()).Int("participants", len(out)).Msg("order set")
	return out, nil
}

// Randomize draws a fresh seed, shuffles the participants with it and stores both the order and the
// hex seed so the result can be verified later.
func (s *Service) Randomize(ctx context.Context, actor domain.Actor, solID uuid.UUID) ([]domain.Participant, string, error) {
	seed := make([]byte, SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, "", fmt.Errorf("read random seed: %w", err)
	}
	return s.randomizeWithSeed(ctx, actor, solID, seed)
}

func (s *Service) randomizeWithSeed(ctx context.Context, actor domain.Actor, solID uuid.UUID, seed []byte) ([]domain.Participant, string, error) {
	seedHex := hex.EncodeToString(seed)
	var out []domain.Participant
	err := rotation.Mutate(ctx, s.DB, s.Locks, solID, func(tx *gorm.DB) error {
		sol, participants, err := loadMutable(tx, actor, solID)
		if err != nil {
			return err
		}
		ids, err := Shuffle(ShuffleBase(participants), seed)
		if err != nil {
			return err
		}
		if err := apply(tx, solID, ids); err != nil {
			return err
		}
		if err := tx.Model(sol).Update("order_seed", seedHex).Error; err != nil {
			return err
		}
		if err := rotation.Record(tx, domain.NewSolEvent(solID, 0, domain.EventOrderRandomized, &actor, map[string]interface{}{
			"seed":  seedHex,
			"order": ids,
		})); err != nil {
			return err
		}
		out, err = rotation.Participants(tx, solID)
		return err
	})
	if err != nil {
		return nil, "", err
	}
	log.Info().Str("sol_id", solID.String()).Str("seed", seedHex).Msg("order randomized")
	return out, seedHex, nil
}

// Verify re-derives the randomized order from the stored seed and compares it with the current one.
func (s *Service) Verify(ctx context.Context, solID uuid.UUID) (*Verification, error) {
	var out *Verification
	err := rotation.Read(ctx, s.DB, s.Locks, solID, func(tx *gorm.DB) error {
		sol, err := rotation.LoadSol(tx, solID)
		if err != nil {
			return err
		}
		if sol.OrderSeed == nil || *sol.OrderSeed == "" {
			return domain.NewError(domain.ErrNotFound, solID.String(), "order was not randomized")
		}
		seed, err := hex.DecodeString(*sol.OrderSeed)
		if err != nil {
			return fmt.Errorf("decode order seed: %w", err)
		}
		participants, err := rotation.Participants(tx, solID)
		if err != nil {
			return err
		}
		base := ShuffleBase(participants)
		expected, err := Shuffle(base, seed)
		if err != nil {
			return err
		}
		current := make([]uuid.UUID, len(participants))
		matches := true
		for i, p := range participants {
			current[i] = p.ParticipantID
			if p.ParticipantID != expected[i] {
				matches = false
			}
		}
		out = &Verification{Seed: *sol.OrderSeed, Base: base, Expected: expected, Current: current, Matches: matches}
		return nil
	})
	return out, err
}

// loadMutable loads the Sol and its participants, enforcing the draft-only and founder/admin guards.
func loadMutable(tx *gorm.DB, actor domain.Actor, solID uuid.UUID) (*domain.Sol, []domain.Participant, error) {
	sol, err := rotation.LoadSol(tx, solID)
	if err != nil {
		return nil, nil, err
	}
	if !sol.OrderMutable() {
		return nil, nil, domain.NewError(domain.ErrInvalidOrder, solID.String(), "order is immutable once the sol is %s", sol.Status)
	}
	if err := policies.RequireSteward(actor, sol, "reorder"); err != nil {
		return nil, nil, err
	}
	participants, err := rotation.Participants(tx, solID)
	if err != nil {
		return nil, nil, err
	}
	return sol, participants, nil
}

// apply rewrites every ordre inside tx; callers commit or roll back the whole set together.
func apply(tx *gorm.DB, solID uuid.UUID, ids []uuid.UUID) error {
	for i, id := range ids {
		if err := tx.Model(&domain.Participant{}).
			Where("sol_id = ? AND participant_id = ?", solID, id).
			Update("ordre", i+1).Error; err != nil {
			return err
		}
	}
	return nil
}
