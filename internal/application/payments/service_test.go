package payments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sol-backend/internal/application/sols"
	"sol-backend/internal/domain"
	"sol-backend/internal/infrastructure/locking"
	"sol-backend/internal/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStripe struct {
	amount   int64
	currency string
	metadata map[string]string
}

func (f *fakeStripe) Create(amountMinor int64, currency string, metadata map[string]string) (*PaymentIntentResult, error) {
	f.amount, f.currency, f.metadata = amountMinor, currency, metadata
	return &PaymentIntentResult{ID: "pi_test_123", ClientSecret: "pi_test_123_secret_abc"}, nil
}

// setupActiveSol seeds and activates an n-participant USD Sol; payments[i] belongs to f.Participants[i].
func setupActiveSol(t *testing.T, n int) (*Service, *testutil.Fixture, []domain.Payment) {
	return setupActiveSolIn(t, n, "100", "USD")
}

func setupActiveSolIn(t *testing.T, n int, amount, currency string) (*Service, *testutil.Fixture, []domain.Payment) {
	db := testutil.OpenDB(t)
	locks := locking.NewLocal(5 * time.Second)
	f := testutil.SeedSolIn(t, db, n, amount, currency)
	_, err := (&sols.Service{DB: db, Locks: locks}).Activate(context.Background(), f.Founder, f.Sol.SolID, time.Time{})
	require.NoError(t, err)

	svc := &Service{DB: db, Locks: locks}
	list, err := svc.List(context.Background(), f.Sol.SolID, 0)
	require.NoError(t, err)
	require.Len(t, list, n)
	byParticipant := map[uuid.UUID]domain.Payment{}
	for _, p := range list {
		byParticipant[p.ParticipantID] = p
	}
	payments := make([]domain.Payment, n)
	for i, p := range f.Participants {
		payments[i] = byParticipant[p.ParticipantID]
	}
	return svc, f, payments
}

func TestPayment_RoundTrip(t *testing.T) {
	svc, f, payments := setupActiveSol(t, 3)
	admin := testutil.Admin()
	id := payments[1].PaymentID
	payer := f.Users[1]

	p, err := svc.Submit(context.Background(), payer, id, "receipt-1.jpg")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusUploaded, p.Status)

	p, err = svc.Reject(context.Background(), admin, id, "blurry")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusRejected, p.Status)
	require.NotNil(t, p.RejectionReason)
	assert.Equal(t, "blurry", *p.RejectionReason)

	p, err = svc.Submit(context.Background(), payer, id, "receipt-2.jpg")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusUploaded, p.Status)

	p, err = svc.Validate(context.Background(), admin, id, "ok")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusValidated, p.Status)
	assert.NotNil(t, p.ValidatedAt)

	stored, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusValidated, stored.Status)
	assert.Equal(t, "receipt-2.jpg", *stored.ProofReference)

	var participant domain.Participant
	require.NoError(t, svc.DB.Where("participant_id = ?", f.Participants[1].ParticipantID).First(&participant).Error)
	assert.Equal(t, 1, participant.ValidatedPayments)
}

func TestPayment_Guards(t *testing.T) {
	svc, f, payments := setupActiveSol(t, 2)
	admin := testutil.Admin()
	id := payments[0].PaymentID

	_, err := svc.Submit(context.Background(), f.Users[1], id, "r.jpg")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = svc.Submit(context.Background(), f.Users[0], id, "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Validate(context.Background(), admin, id, "")
	assert.ErrorIs(t, err, domain.ErrNotUploaded)
	_, err = svc.Reject(context.Background(), admin, id, "no proof")
	assert.ErrorIs(t, err, domain.ErrNotUploaded)

	_, err = svc.Submit(context.Background(), f.Users[0], id, "r.jpg")
	require.NoError(t, err)
	_, err = svc.Validate(context.Background(), f.Users[0], id, "")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = svc.Reject(context.Background(), admin, id, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Validate(context.Background(), admin, id, "")
	require.NoError(t, err)
	_, err = svc.Validate(context.Background(), admin, id, "")
	assert.ErrorIs(t, err, domain.ErrAlreadyFinal)
	_, err = svc.Submit(context.Background(), f.Users[0], id, "again.jpg")
	assert.ErrorIs(t, err, domain.ErrAlreadyFinal)

	_, err = svc.Submit(context.Background(), f.Users[0], uuid.New(), "r.jpg")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestValidate_LastPaymentMakesTransferReady(t *testing.T) {
	svc, f, payments := setupActiveSol(t, 3)
	admin := testutil.Admin()

	for i, p := range payments {
		_, err := svc.Submit(context.Background(), f.Users[i], p.PaymentID, "r.jpg")
		require.NoError(t, err)
		_, err = svc.Validate(context.Background(), admin, p.PaymentID, "")
		require.NoError(t, err)

		var transfer domain.Transfer
		require.NoError(t, svc.DB.Where("sol_id = ? AND round = 1", f.Sol.SolID).First(&transfer).Error)
		if i < len(payments)-1 {
			assert.Equal(t, domain.TransferStatusPending, transfer.Status)
			continue
		}
		assert.Equal(t, domain.TransferStatusReady, transfer.Status)
		assert.True(t, decimal.RequireFromString("300").Equal(transfer.Amount))
		assert.NotNil(t, transfer.ReadyAt)
	}
}

func TestValidate_ConcurrentCallsOnlyOneWins(t *testing.T) {
	svc, f, payments := setupActiveSol(t, 2)
	id := payments[0].PaymentID
	_, err := svc.Submit(context.Background(), f.Users[0], id, "r.jpg")
	require.NoError(t, err)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Validate(context.Background(), testutil.Admin(), id, "")
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, domain.ErrAlreadyFinal), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, ok)

	var participant domain.Participant
	require.NoError(t, svc.DB.Where("participant_id = ?", f.Participants[0].ParticipantID).First(&participant).Error)
	assert.Equal(t, 1, participant.ValidatedPayments)
}

func TestRecordProcessorSettlement(t *testing.T) {
	svc, _, payments := setupActiveSol(t, 2)
	id := payments[0].PaymentID

	_, _, err := svc.RecordProcessorSettlement(context.Background(), id, "pi_1", 9999, "usd")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	p, settled, err := svc.RecordProcessorSettlement(context.Background(), id, "pi_1", 10000, "usd")
	require.NoError(t, err)
	assert.True(t, settled)
	assert.Equal(t, domain.PaymentStatusValidated, p.Status)
	assert.Equal(t, domain.PaymentMethodProcessor, p.Method)

	p, settled, err = svc.RecordProcessorSettlement(context.Background(), id, "pi_1", 10000, "usd")
	require.NoError(t, err)
	assert.False(t, settled)
	assert.Equal(t, domain.PaymentStatusValidated, p.Status)

	_, _, err = svc.RecordProcessorSettlement(context.Background(), payments[1].PaymentID, "pi_1", 10000, "usd")
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, _, err = svc.RecordProcessorSettlement(context.Background(), id, "pi_2", 10000, "usd")
	assert.ErrorIs(t, err, domain.ErrAlreadyFinal)

	var events []domain.SolEvent
	require.NoError(t, svc.DB.Where("event_type = ?", domain.EventPaymentSettled).Find(&events).Error)
	assert.Len(t, events, 1)
}

func TestRecordProcessorSettlement_AfterRejection(t *testing.T) {
	svc, f, payments := setupActiveSol(t, 2)
	id := payments[1].PaymentID
	_, err := svc.Submit(context.Background(), f.Users[1], id, "r.jpg")
	require.NoError(t, err)
	_, err = svc.Reject(context.Background(), testutil.Admin(), id, "wrong amount")
	require.NoError(t, err)

	p, settled, err := svc.RecordProcessorSettlement(context.Background(), id, "pi_9", 10000, "usd")
	require.NoError(t, err)
	assert.True(t, settled)
	assert.Equal(t, domain.PaymentStatusValidated, p.Status)
}

func TestCheckout(t *testing.T) {
	svc, f, payments := setupActiveSol(t, 2)
	id := payments[1].PaymentID

	_, err := svc.Checkout(context.Background(), f.Users[1], id)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	fake := &fakeStripe{}
	svc.Intents = fake
	_, err = svc.Checkout(context.Background(), f.Users[0], id)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	pi, err := svc.Checkout(context.Background(), f.Users[1], id)
	require.NoError(t, err)
	assert.Equal(t, "pi_test_123", pi.ID)
	assert.Equal(t, int64(10000), fake.amount)
	assert.Equal(t, "usd", fake.currency)
	assert.Equal(t, id.String(), fake.metadata["payment_id"])
	assert.Equal(t, f.Sol.SolID.String(), fake.metadata["sol_id"])
	assert.Equal(t, "1", fake.metadata["round"])
}

func TestRecordProcessorSettlement_CurrencyMustMatch(t *testing.T) {
	svc, _, payments := setupActiveSolIn(t, 2, "100", "EUR")
	id := payments[0].PaymentID

	_, _, err := svc.RecordProcessorSettlement(context.Background(), id, "pi_usd", 10000, "usd")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, _, err = svc.RecordProcessorSettlement(context.Background(), id, "pi_blank", 10000, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	p, settled, err := svc.RecordProcessorSettlement(context.Background(), id, "pi_eur", 10000, "eur")
	require.NoError(t, err)
	assert.True(t, settled)
	assert.Equal(t, domain.PaymentStatusValidated, p.Status)
}

func TestRecordProcessorSettlement_WinsOverUploadedReceipt(t *testing.T) {
	svc, f, payments := setupActiveSol(t, 2)
	svc.Intents = &fakeStripe{}
	id := payments[1].PaymentID
	payer := f.Users[1]

	pi, err := svc.Checkout(context.Background(), payer, id)
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), payer, id, "receipt.png")
	require.NoError(t, err)

	p, settled, err := svc.RecordProcessorSettlement(context.Background(), id, pi.ID, 10000, "usd")
	require.NoError(t, err)
	assert.True(t, settled)
	assert.Equal(t, domain.PaymentStatusValidated, p.Status)
	assert.Equal(t, domain.PaymentMethodProcessor, p.Method)
	require.NotNil(t, p.ProcessorReference)
	assert.Equal(t, pi.ID, *p.ProcessorReference)

	_, err = svc.Reject(context.Background(), testutil.Admin(), id, "duplicate")
	assert.ErrorIs(t, err, domain.ErrAlreadyFinal)

	var participant domain.Participant
	require.NoError(t, svc.DB.Where("participant_id = ?", f.Participants[1].ParticipantID).First(&participant).Error)
	assert.Equal(t, 1, participant.ValidatedPayments)
}

func TestCheckout_UsesSolCurrency(t *testing.T) {
	cases := []struct {
		currency     string
		amount       string
		wantCurrency string
		wantMinor    int64
	}{
		{"EUR", "100", "eur", 10000},
		{"JPY", "5000", "jpy", 5000},
		{"XOF", "2500", "xof", 2500},
	}
	for _, tc := range cases {
		t.Run(tc.currency, func(t *testing.T) {
			svc, f, payments := setupActiveSolIn(t, 2, tc.amount, tc.currency)
			fake := &fakeStripe{}
			svc.Intents = fake
			id := payments[0].PaymentID

			_, err := svc.Checkout(context.Background(), f.Users[0], id)
			require.NoError(t, err)
			assert.Equal(t, tc.wantCurrency, fake.currency)
			assert.Equal(t, tc.wantMinor, fake.amount)

			p, settled, err := svc.RecordProcessorSettlement(context.Background(), id, "pi_"+tc.wantCurrency, fake.amount, fake.currency)
			require.NoError(t, err)
			assert.True(t, settled)
			assert.Equal(t, domain.PaymentStatusValidated, p.Status)
		})
	}
}
