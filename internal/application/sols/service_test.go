package sols

import (
	"context"
	"testing"
	"time"

	"sol-backend/internal/domain"
	"sol-backend/internal/infrastructure/locking"
	"sol-backend/internal/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSolsTest(t *testing.T) *Service {
	return &Service{DB: testutil.OpenDB(t), Locks: locking.NewLocal(time.Second)}
}

func validInput() CreateSolInput {
	return CreateSolInput{
		Name:               "Family Sol",
		ContributionAmount: decimal.RequireFromString("100"),
		Currency:           "usd",
		Periodicity:        domain.PeriodicityMonthly,
		MaxParticipants:    3,
	}
}

func TestCreate_FounderIsFirstParticipant(t *testing.T) {
	svc := setupSolsTest(t)
	founder := testutil.Member()

	sol, err := svc.Create(context.Background(), founder, validInput())
	require.NoError(t, err)
	assert.Equal(t, domain.SolStatusDraft, sol.Status)
	assert.Equal(t, "USD", sol.Currency)
	assert.Equal(t, 0, sol.CurrentRound)

	ps, err := svc.ListParticipants(context.Background(), sol.SolID)
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, founder.UserID, ps[0].UserID)
	assert.Equal(t, 1, ps[0].Ordre)
}

func TestCreate_Validation(t *testing.T) {
	svc := setupSolsTest(t)
	founder := testutil.Member()

	in := validInput()
	in.ContributionAmount = decimal.Zero
	_, err := svc.Create(context.Background(), founder, in)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	in = validInput()
	in.Periodicity = "daily"
	_, err = svc.Create(context.Background(), founder, in)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	in = validInput()
	in.MaxParticipants = 1
	_, err = svc.Create(context.Background(), founder, in)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	in = validInput()
	in.Currency = "jpy"
	in.ContributionAmount = decimal.RequireFromString("1000.50")
	_, err = svc.Create(context.Background(), founder, in)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Create(context.Background(), domain.Actor{}, validInput())
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestCreate_CurrencyDefault(t *testing.T) {
	svc := setupSolsTest(t)
	svc.DefaultCurrency = "eur"
	in := validInput()
	in.Currency = ""

	sol, err := svc.Create(context.Background(), testutil.Member(), in)
	require.NoError(t, err)
	assert.Equal(t, "EUR", sol.Currency)

	in.Currency = "jpy"
	in.ContributionAmount = decimal.RequireFromString("5000")
	sol, err = svc.Create(context.Background(), testutil.Member(), in)
	require.NoError(t, err)
	assert.Equal(t, "JPY", sol.Currency)
}

func TestJoin_AppendsAndEnforcesLimits(t *testing.T) {
	svc := setupSolsTest(t)
	founder := testutil.Member()
	sol, err := svc.Create(context.Background(), founder, validInput())
	require.NoError(t, err)

	_, err = svc.Join(context.Background(), founder, sol.SolID)
	assert.ErrorIs(t, err, domain.ErrConflict)

	p2, err := svc.Join(context.Background(), testutil.Member(), sol.SolID)
	require.NoError(t, err)
	assert.Equal(t, 2, p2.Ordre)
	p3, err := svc.Join(context.Background(), testutil.Member(), sol.SolID)
	require.NoError(t, err)
	assert.Equal(t, 3, p3.Ordre)

	_, err = svc.Join(context.Background(), testutil.Member(), sol.SolID)
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = svc.Join(context.Background(), testutil.Member(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRemoveParticipant_CompactsOrdre(t *testing.T) {
	svc := setupSolsTest(t)
	f := testutil.SeedSol(t, svc.DB, 4, "50")

	require.NoError(t, svc.RemoveParticipant(context.Background(), f.Founder, f.Sol.SolID, f.Participants[1].ParticipantID))

	ps, err := svc.ListParticipants(context.Background(), f.Sol.SolID)
	require.NoError(t, err)
	require.Len(t, ps, 3)
	for i, p := range ps {
		assert.Equal(t, i+1, p.Ordre)
		assert.NotEqual(t, f.Participants[1].ParticipantID, p.ParticipantID)
	}

	err = svc.RemoveParticipant(context.Background(), f.Founder, f.Sol.SolID, f.Participants[0].ParticipantID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	err = svc.RemoveParticipant(context.Background(), f.Users[2], f.Sol.SolID, f.Participants[3].ParticipantID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	// Members may leave on their own.
	require.NoError(t, svc.RemoveParticipant(context.Background(), f.Users[3], f.Sol.SolID, f.Participants[3].ParticipantID))
}

func TestActivate_OpensFirstRound(t *testing.T) {
	svc := setupSolsTest(t)
	f := testutil.SeedSol(t, svc.DB, 3, "100")
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	sol, err := svc.Activate(context.Background(), f.Founder, f.Sol.SolID, start)
	require.NoError(t, err)
	assert.Equal(t, domain.SolStatusActive, sol.Status)
	assert.Equal(t, 1, sol.CurrentRound)

	var payments []domain.Payment
	require.NoError(t, svc.DB.Where("sol_id = ? AND round = 1", f.Sol.SolID).Find(&payments).Error)
	assert.Len(t, payments, 3)
	for _, p := range payments {
		assert.Equal(t, domain.PaymentStatusPending, p.Status)
		assert.True(t, decimal.RequireFromString("100").Equal(p.Amount))
	}

	var transfer domain.Transfer
	require.NoError(t, svc.DB.Where("sol_id = ? AND round = 1", f.Sol.SolID).First(&transfer).Error)
	assert.Equal(t, f.Participants[0].ParticipantID, transfer.BeneficiaryID)
	assert.Equal(t, domain.TransferStatusPending, transfer.Status)

	_, err = svc.Activate(context.Background(), f.Founder, f.Sol.SolID, start)
	assert.ErrorIs(t, err, domain.ErrAlreadyActive)

	_, err = svc.Join(context.Background(), testutil.Member(), f.Sol.SolID)
	assert.ErrorIs(t, err, domain.ErrAlreadyActive)
}

func TestActivate_Guards(t *testing.T) {
	svc := setupSolsTest(t)

	solo := testutil.SeedSol(t, svc.DB, 1, "10")
	_, err := svc.Activate(context.Background(), solo.Founder, solo.Sol.SolID, time.Time{})
	assert.ErrorIs(t, err, domain.ErrOrderIncomplete)

	gap := testutil.SeedSol(t, svc.DB, 3, "10")
	require.NoError(t, svc.DB.Model(&domain.Participant{}).Where("participant_id = ?", gap.Participants[2].ParticipantID).Update("ordre", 5).Error)
	_, err = svc.Activate(context.Background(), gap.Founder, gap.Sol.SolID, time.Time{})
	assert.ErrorIs(t, err, domain.ErrOrderIncomplete)

	f := testutil.SeedSol(t, svc.DB, 2, "10")
	_, err = svc.Activate(context.Background(), f.Users[1], f.Sol.SolID, time.Time{})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = svc.Activate(context.Background(), testutil.Admin(), f.Sol.SolID, time.Time{})
	assert.NoError(t, err)
}

func TestAdvanceRound_RequiresCompletedTransfer(t *testing.T) {
	svc := setupSolsTest(t)
	f := testutil.SeedSol(t, svc.DB, 2, "10")
	_, err := svc.Activate(context.Background(), f.Founder, f.Sol.SolID, time.Time{})
	require.NoError(t, err)

	_, _, err = svc.AdvanceRound(context.Background(), testutil.Admin(), f.Sol.SolID, 1)
	assert.ErrorIs(t, err, domain.ErrNotReady)

	require.NoError(t, svc.DB.Model(&domain.Transfer{}).Where("sol_id = ? AND round = 1", f.Sol.SolID).Update("status", domain.TransferStatusDisputed).Error)
	_, _, err = svc.AdvanceRound(context.Background(), testutil.Admin(), f.Sol.SolID, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	require.NoError(t, svc.DB.Model(&domain.Transfer{}).Where("sol_id = ? AND round = 1", f.Sol.SolID).Update("status", domain.TransferStatusCompleted).Error)
	sol, advanced, err := svc.AdvanceRound(context.Background(), testutil.Admin(), f.Sol.SolID, 1)
	require.NoError(t, err)
	assert.True(t, advanced)
	assert.Equal(t, 2, sol.CurrentRound)

	// A duplicate completion signal for round 1 changes nothing.
	sol, advanced, err = svc.AdvanceRound(context.Background(), testutil.Admin(), f.Sol.SolID, 1)
	require.NoError(t, err)
	assert.False(t, advanced)
	assert.Equal(t, 2, sol.CurrentRound)

	var n int64
	require.NoError(t, svc.DB.Model(&domain.Transfer{}).Where("sol_id = ?", f.Sol.SolID).Count(&n).Error)
	assert.Equal(t, int64(2), n)

	_, _, err = svc.AdvanceRound(context.Background(), testutil.Admin(), f.Sol.SolID, 3)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestAdvanceRound_LastRoundCompletesSol(t *testing.T) {
	svc := setupSolsTest(t)
	f := testutil.SeedSol(t, svc.DB, 2, "10")
	_, err := svc.Activate(context.Background(), f.Founder, f.Sol.SolID, time.Time{})
	require.NoError(t, err)

	for round := 1; round <= 2; round++ {
		require.NoError(t, svc.DB.Model(&domain.Transfer{}).Where("sol_id = ? AND round = ?", f.Sol.SolID, round).Update("status", domain.TransferStatusCompleted).Error)
		_, advanced, err := svc.AdvanceRound(context.Background(), testutil.Admin(), f.Sol.SolID, round)
		require.NoError(t, err)
		assert.True(t, advanced)
	}

	sol, err := svc.Get(context.Background(), f.Sol.SolID)
	require.NoError(t, err)
	assert.Equal(t, domain.SolStatusCompleted, sol.Status)
	assert.Equal(t, 2, sol.CurrentRound)

	_, advanced, err := svc.AdvanceRound(context.Background(), testutil.Admin(), f.Sol.SolID, 2)
	require.NoError(t, err)
	assert.False(t, advanced)
}

func TestCancel(t *testing.T) {
	svc := setupSolsTest(t)
	f := testutil.SeedSol(t, svc.DB, 2, "10")

	assert.ErrorIs(t, svc.Cancel(context.Background(), f.Users[1], f.Sol.SolID), domain.ErrForbidden)
	require.NoError(t, svc.Cancel(context.Background(), f.Founder, f.Sol.SolID))

	_, err := svc.Get(context.Background(), f.Sol.SolID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	var sol domain.Sol
	require.NoError(t, svc.DB.Unscoped().Where("sol_id = ?", f.Sol.SolID).First(&sol).Error)
	assert.Equal(t, domain.SolStatusCancelled, sol.Status)

	assert.ErrorIs(t, svc.Cancel(context.Background(), f.Founder, f.Sol.SolID), domain.ErrNotFound)
	_, err = svc.Activate(context.Background(), f.Founder, f.Sol.SolID, time.Time{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreatedSolRecordsEvents(t *testing.T) {
	svc := setupSolsTest(t)
	sol, err := svc.Create(context.Background(), testutil.Member(), validInput())
	require.NoError(t, err)
	_, err = svc.Join(context.Background(), testutil.Member(), sol.SolID)
	require.NoError(t, err)

	var events []domain.SolEvent
	require.NoError(t, svc.DB.Where("sol_id = ?", sol.SolID).Find(&events).Error)
	types := make([]string, len(events))
	for i, ev := range events {
		types[i] = ev.EventType
	}
	assert.ElementsMatch(t, []string{domain.EventSolCreated, domain.EventParticipantJoined}, types)
}
