package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	PaymentStatusPending     = "pending"
	PaymentStatusUploaded    = "uploaded"
	PaymentStatusValidated   = "validated"
	PaymentStatusRejected    = "rejected"
	PaymentStatusTransferred = "transferred"
)

const (
	PaymentMethodManualReceipt = "manual_receipt"
	PaymentMethodProcessor     = "processor"
)

// PaymentEvent is an input to the payment state machine.
type PaymentEvent string

const (
	PaymentSubmit   PaymentEvent = "submit"   // payer uploads proof (manual receipt)
	PaymentValidate PaymentEvent = "validate" // administrator accepts proof
	PaymentReject   PaymentEvent = "reject"   // administrator refuses proof
	PaymentSettle   PaymentEvent = "settle"   // processor confirmed settlement out-of-band
	PaymentTransfer PaymentEvent = "transfer" // round payout confirmed by the beneficiary
)

// paymentTransitions is the single transition table for both payment methods.
var paymentTransitions = map[string]map[PaymentEvent]string{
	PaymentStatusPending: {
		PaymentSubmit: PaymentStatusUploaded,
		PaymentSettle: PaymentStatusValidated,
	},
	PaymentStatusUploaded: {
		PaymentValidate: PaymentStatusValidated,
		PaymentReject:   PaymentStatusRejected,
		PaymentSettle:   PaymentStatusValidated,
	},
	PaymentStatusRejected: {
		PaymentSubmit: PaymentStatusUploaded,
		PaymentSettle: PaymentStatusValidated,
	},
	PaymentStatusValidated: {
		PaymentTransfer: PaymentStatusTransferred,
	},
	PaymentStatusTransferred: {},
}

// NextPaymentStatus applies ev to current and returns the resulting status or the kind of violation.
func NextPaymentStatus(current string, ev PaymentEvent) (string, error) {
	events, ok := paymentTransitions[current]
	if !ok {
		return "", ErrInvalidTransition
	}
	if next, ok := events[ev]; ok {
		return next, nil
	}
	switch ev {
	case PaymentSubmit, PaymentSettle:
		if current == PaymentStatusValidated || current == PaymentStatusTransferred {
			return "", ErrAlreadyFinal
		}
	case PaymentValidate, PaymentReject:
		if current == PaymentStatusPending || current == PaymentStatusRejected {
			return "", ErrNotUploaded
		}
		if current == PaymentStatusValidated || current == PaymentStatusTransferred {
			return "", ErrAlreadyFinal
		}
	}
	return "", ErrInvalidTransition
}

// IsPaidStatus reports whether a payment in status counts toward round completion.
func IsPaidStatus(status string) bool {
	return status == PaymentStatusValidated || status == PaymentStatusTransferred
}

// Payment is one participant's contribution obligation for one round.
type Payment struct {
	PaymentID          uuid.UUID       `gorm:"column:payment_id;type:uuid;primaryKey" json:"payment_id"`
	SolID              uuid.UUID       `gorm:"column:sol_id;type:uuid;not null;index:idx_payments_sol_round" json:"sol_id"`
	Round              int             `gorm:"column:round;not null;index:idx_payments_sol_round" json:"round"`
	ParticipantID      uuid.UUID       `gorm:"column:participant_id;type:uuid;not null" json:"participant_id"`
	PayerID            uuid.UUID       `gorm:"column:payer_id;type:uuid;not null" json:"payer_id"`
	Amount             decimal.Decimal `gorm:"column:amount;type:decimal(18,2);not null" json:"amount"`
	Method             string          `gorm:"column:method;type:varchar(20);not null" json:"method"`
	Status             string          `gorm:"column:status;type:varchar(20);not null;default:'pending'" json:"status"`
	ProofReference     *string         `gorm:"column:proof_reference" json:"proof_reference"`
	ProcessorReference *string         `gorm:"column:processor_reference;uniqueIndex" json:"processor_reference"`
	AdminNotes         *string         `gorm:"column:admin_notes" json:"admin_notes"`
	RejectionReason    *string         `gorm:"column:rejection_reason" json:"rejection_reason"`
	ReviewedBy         *uuid.UUID      `gorm:"column:reviewed_by;type:uuid" json:"reviewed_by"`
	SubmittedAt        *time.Time      `gorm:"column:submitted_at" json:"submitted_at"`
	ValidatedAt        *time.Time      `gorm:"column:validated_at" json:"validated_at"`
	TransferredAt      *time.Time      `gorm:"column:transferred_at" json:"transferred_at"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

func (Payment) TableName() string {
	return "Payments"
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.PaymentID == uuid.Nil {
		p.PaymentID = uuid.New()
	}
	if p.Method == "" {
		p.Method = PaymentMethodManualReceipt
	}
	return nil
}
