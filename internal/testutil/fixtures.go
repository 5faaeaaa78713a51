package testutil

import (
	"testing"
	"time"

	"sol-backend/internal/domain"
	"sol-backend/internal/pkg/constants"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Fixture is a seeded draft Sol and its participants in ordre order; Users[i] owns Participants[i].
type Fixture struct {
	Sol          domain.Sol
	Participants []domain.Participant
	Founder      domain.Actor
	Users        []domain.Actor
}

// Admin returns a fresh administrator actor.
func Admin() domain.Actor {
	return domain.Actor{UserID: uuid.New(), Role: constants.Admin}
}

// Member returns a fresh member actor.
func Member() domain.Actor {
	return domain.Actor{UserID: uuid.New(), Role: constants.Member}
}

// SeedSol writes a draft USD Sol with n participants holding ordre 1..n, the first being the founder.
// Join times are spaced one second apart in ordre order.
func SeedSol(t *testing.T, db *gorm.DB, n int, amount string) *Fixture {
	t.Helper()
	return SeedSolIn(t, db, n, amount, "USD")
}

// SeedSolIn is SeedSol with an explicit currency.
func SeedSolIn(t *testing.T, db *gorm.DB, n int, amount, currency string) *Fixture {
	t.Helper()
	founder := Member()
	sol := domain.Sol{
		Name:               "Test Sol",
		ContributionAmount: decimal.RequireFromString(amount),
		Currency:           currency,
		Periodicity:        domain.PeriodicityMonthly,
		MaxParticipants:    n + 2,
		Status:             domain.SolStatusDraft,
		FounderID:          founder.UserID,
	}
	require.NoError(t, db.Create(&sol).Error)

	f := &Fixture{Sol: sol, Founder: founder}
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		user := founder
		if i > 0 {
			user = Member()
		}
		p := domain.Participant{SolID: sol.SolID, UserID: user.UserID, Ordre: i + 1, JoinedAt: base.Add(time.Duration(i) * time.Second)}
		require.NoError(t, db.Create(&p).Error)
		f.Participants = append(f.Participants, p)
		f.Users = append(f.Users, user)
	}
	return f
}

// IDs returns the participant ids in fixture order.
func (f *Fixture) IDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(f.Participants))
	for i, p := range f.Participants {
		ids[i] = p.ParticipantID
	}
	return ids
}

// UserOf returns the actor owning participantID.
func (f *Fixture) UserOf(participantID uuid.UUID) domain.Actor {
	for i, p := range f.Participants {
		if p.ParticipantID == participantID {
			return f.Users[i]
		}
	}
	return domain.Actor{}
}
