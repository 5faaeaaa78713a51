package payments

import (
	"context"
	"strconv"
	"strings"

	"sol-backend/internal/application/rotation"
	"sol-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"gorm.io/gorm"
)

// PaymentIntentCreator abstracts Stripe PaymentIntent creation for testability.
type PaymentIntentCreator interface {
	Create(amountMinor int64, currency string, metadata map[string]string) (*PaymentIntentResult, error)
}

type PaymentIntentResult struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
}

// ErrProcessorDisabled is returned by checkout when no Stripe key is configured.
var ErrProcessorDisabled = domain.NewError(domain.ErrInvalidInput, "", "card payments are not configured")

// RealStripeCreator uses the Stripe Go SDK to create PaymentIntents.
type RealStripeCreator struct {
	SecretKey string
}

func (r *RealStripeCreator) Create(amountMinor int64, currency string, metadata map[string]string) (*PaymentIntentResult, error) {
	if r.SecretKey == "" {
		return nil, ErrProcessorDisabled
	}
	stripe.Key = r.SecretKey
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountMinor),
		Currency: stripe.String(currency),
		Metadata: metadata,
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, err
	}
	return &PaymentIntentResult{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// Checkout opens a processor payment for the payer's obligation. Settlement arrives later through
// the webhook and RecordProcessorSettlement.
func (s *Service) Checkout(ctx context.Context, actor domain.Actor, paymentID uuid.UUID) (*PaymentIntentResult, error) {
	if s.Intents == nil {
		return nil, ErrProcessorDisabled
	}
	solID, err := rotation.SolIDOfPayment(ctx, s.DB, paymentID)
	if err != nil {
		return nil, err
	}
	var (
		sol *domain.Sol
		p   *domain.Payment
	)
	err = rotation.Read(ctx, s.DB, s.Locks, solID, func(tx *gorm.DB) error {
		sol, err = rotation.LoadSol(tx, solID)
		if err != nil {
			return err
		}
		p, err = rotation.LoadPayment(tx, paymentID)
		if err != nil {
			return err
		}
		if p.PayerID != actor.UserID {
			return domain.NewError(domain.ErrForbidden, actor.UserID.String(), "only the payer may pay this obligation")
		}
		if _, err := domain.NextPaymentStatus(p.Status, domain.PaymentSettle); err != nil {
			return domain.NewError(err, paymentID.String(), "cannot pay a %s payment by card", p.Status)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	pi, err := s.Intents.Create(domain.MinorUnits(p.Amount, sol.Currency), strings.ToLower(sol.Currency), map[string]string{
		"payment_id": p.PaymentID.String(),
		"sol_id":     p.SolID.String(),
		"round":      strconv.Itoa(p.Round),
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("payment_id", paymentID.String()).Str("payment_intent_id", pi.ID).Msg("checkout opened")
	return pi, nil
}
