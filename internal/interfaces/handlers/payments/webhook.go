package payments

import (
	"encoding/json"
	"fmt"

	paysvc "sol-backend/internal/application/payments"
	"sol-backend/internal/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

type WebhookHandler struct {
	Service       *paysvc.Service
	WebhookSecret string
}

// HandleWebhook POST /api/v1/stripe/webhook. Verifies the signature on the raw body, then settles.
// Domain failures still answer 200 so Stripe does not retry a payment we refuse on purpose.
func (wh *WebhookHandler) HandleWebhook(c *fiber.Ctx) error {
	rawBody := c.BodyRaw()
	sig := c.Get("Stripe-Signature")

	if len(rawBody) == 0 {
		log.Warn().Msg("Stripe webhook received empty body")
		return c.Status(400).SendString("Webhook Error: empty body")
	}
	if sig == "" || wh.WebhookSecret == "" {
		log.Warn().Bool("has_sig", sig != "").Bool("has_secret", wh.WebhookSecret != "").Msg("Stripe webhook signature missing")
		return c.Status(400).SendString("Webhook Error: missing signature or secret")
	}

	event, err := webhook.ConstructEventWithOptions(rawBody, sig, wh.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Stripe webhook signature verification failed")
		return c.Status(400).SendString(fmt.Sprintf("Webhook Error: %s", err.Error()))
	}

	if string(event.Type) == "payment_intent.succeeded" {
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			log.Warn().Err(err).Str("event_id", event.ID).Msg("Stripe webhook payment intent parse failed")
			return c.Status(200).SendString("ok")
		}
		wh.settle(c, &pi)
	}
	return c.Status(200).SendString("ok")
}

func (wh *WebhookHandler) settle(c *fiber.Ctx, pi *stripe.PaymentIntent) {
	if wh.Service == nil {
		log.Warn().Str("payment_intent_id", pi.ID).Msg("payments service not configured, settlement dropped")
		return
	}
	paymentID, err := uuid.Parse(pi.Metadata["payment_id"])
	if err != nil {
		log.Info().Str("payment_intent_id", pi.ID).Msg("payment intent without payment_id, skipping")
		return
	}
	amount := pi.AmountReceived
	if amount == 0 {
		amount = pi.Amount
	}
	p, settled, err := wh.Service.RecordProcessorSettlement(c.UserContext(), paymentID, pi.ID, amount, string(pi.Currency))
	if err != nil {
		ev := log.Warn()
		if domain.KindName(err) == "" {
			ev = log.Error()
		}
		ev.Err(err).Str("payment_id", paymentID.String()).Str("payment_intent_id", pi.ID).Msg("processor settlement refused")
		return
	}
	log.Info().Str("payment_id", p.PaymentID.String()).Str("payment_intent_id", pi.ID).Bool("settled", settled).Msg("processor settlement recorded")
}
