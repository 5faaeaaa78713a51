package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextPaymentStatus(t *testing.T) {
	cases := []struct {
		from    string
		ev      PaymentEvent
		want    string
		wantErr error
	}{
		{PaymentStatusPending, PaymentSubmit, PaymentStatusUploaded, nil},
		{PaymentStatusPending, PaymentSettle, PaymentStatusValidated, nil},
		{PaymentStatusPending, PaymentValidate, "", ErrNotUploaded},
		{PaymentStatusPending, PaymentReject, "", ErrNotUploaded},
		{PaymentStatusUploaded, PaymentValidate, PaymentStatusValidated, nil},
		{PaymentStatusUploaded, PaymentReject, PaymentStatusRejected, nil},
		{PaymentStatusUploaded, PaymentSettle, PaymentStatusValidated, nil},
		{PaymentStatusRejected, PaymentSubmit, PaymentStatusUploaded, nil},
		{PaymentStatusRejected, PaymentValidate, "", ErrNotUploaded},
		{PaymentStatusValidated, PaymentSubmit, "", ErrAlreadyFinal},
		{PaymentStatusValidated, PaymentValidate, "", ErrAlreadyFinal},
		{PaymentStatusValidated, PaymentTransfer, PaymentStatusTransferred, nil},
		{PaymentStatusTransferred, PaymentSubmit, "", ErrAlreadyFinal},
		{PaymentStatusTransferred, PaymentSettle, "", ErrAlreadyFinal},
		{PaymentStatusTransferred, PaymentTransfer, "", ErrInvalidTransition},
		{PaymentStatusPending, PaymentTransfer, "", ErrInvalidTransition},
		{"bogus", PaymentSubmit, "", ErrInvalidTransition},
	}
	for _, tc := range cases {
		t.Run(tc.from+"/"+string(tc.ev), func(t *testing.T) {
			got, err := NextPaymentStatus(tc.from, tc.ev)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPaymentRoundTripPath(t *testing.T) {
	status := PaymentStatusPending
	path := []string{status}
	for _, ev := range []PaymentEvent{PaymentSubmit, PaymentReject, PaymentSubmit, PaymentValidate} {
		next, err := NextPaymentStatus(status, ev)
		require.NoError(t, err)
		status = next
		path = append(path, status)
	}
	assert.Equal(t, []string{
		PaymentStatusPending, PaymentStatusUploaded, PaymentStatusRejected,
		PaymentStatusUploaded, PaymentStatusValidated,
	}, path)
}

func TestIsPaidStatus(t *testing.T) {
	assert.True(t, IsPaidStatus(PaymentStatusValidated))
	assert.True(t, IsPaidStatus(PaymentStatusTransferred))
	assert.False(t, IsPaidStatus(PaymentStatusUploaded))
	assert.False(t, IsPaidStatus(PaymentStatusPending))
}
