package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	TransferStatusPending      = "pending"
	TransferStatusReady        = "ready"
	TransferStatusTransferring = "transferring"
	TransferStatusCompleted    = "completed"
	TransferStatusDisputed     = "disputed"
)

// TransferEvent is an input to the transfer state machine.
type TransferEvent string

const (
	TransferCollect TransferEvent = "collect" // round became complete
	TransferMark    TransferEvent = "mark"    // administrator sent the funds
	TransferConfirm TransferEvent = "confirm" // beneficiary acknowledged receipt
	TransferDispute TransferEvent = "dispute" // beneficiary contests receipt
	TransferReopen  TransferEvent = "reopen"  // administrator re-sends after a dispute
)

var transferTransitions = map[string]map[TransferEvent]string{
	TransferStatusPending: {
		TransferCollect: TransferStatusReady,
	},
	TransferStatusReady: {
		TransferMark: TransferStatusTransferring,
	},
	TransferStatusTransferring: {
		TransferConfirm: TransferStatusCompleted,
		TransferDispute: TransferStatusDisputed,
	},
	TransferStatusDisputed: {
		TransferReopen: TransferStatusTransferring,
	},
	TransferStatusCompleted: {},
}

// NextTransferStatus applies ev to current. Marking anything but a ready transfer is ErrNotReady.
func NextTransferStatus(current string, ev TransferEvent) (string, error) {
	if next, ok := transferTransitions[current][ev]; ok {
		return next, nil
	}
	if ev == TransferMark {
		return "", ErrNotReady
	}
	return "", ErrInvalidTransition
}

// Transfer is the payout record of one round, unique per (sol, round).
type Transfer struct {
	TransferID       uuid.UUID       `gorm:"column:transfer_id;type:uuid;primaryKey" json:"transfer_id"`
	SolID            uuid.UUID       `gorm:"column:sol_id;type:uuid;not null;uniqueIndex:idx_transfers_sol_round" json:"sol_id"`
	Round            int             `gorm:"column:round;not null;uniqueIndex:idx_transfers_sol_round" json:"round"`
	BeneficiaryID    uuid.UUID       `gorm:"column:beneficiary_id;type:uuid;not null" json:"beneficiary_id"`
	BeneficiaryUser  uuid.UUID       `gorm:"column:beneficiary_user_id;type:uuid;not null" json:"beneficiary_user_id"`
	Amount           decimal.Decimal `gorm:"column:amount;type:decimal(18,2);not null;default:0" json:"amount"`
	Status           string          `gorm:"column:status;type:varchar(20);not null;default:'pending'" json:"status"`
	Reference        *string         `gorm:"column:reference" json:"reference"`
	AdminNotes       *string         `gorm:"column:admin_notes" json:"admin_notes"`
	BeneficiaryNotes *string         `gorm:"column:beneficiary_notes" json:"beneficiary_notes"`
	DisputeReason    *string         `gorm:"column:dispute_reason" json:"dispute_reason"`
	MarkedBy         *uuid.UUID      `gorm:"column:marked_by;type:uuid" json:"marked_by"`
	ReadyAt          *time.Time      `gorm:"column:ready_at" json:"ready_at"`
	MarkedAt         *time.Time      `gorm:"column:marked_at" json:"marked_at"`
	ConfirmedAt      *time.Time      `gorm:"column:confirmed_at" json:"confirmed_at"`
	DisputedAt       *time.Time      `gorm:"column:disputed_at" json:"disputed_at"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

func (Transfer) TableName() string {
	return "Transfers"
}

func (t *Transfer) BeforeCreate(tx *gorm.DB) error {
	if t.TransferID == uuid.Nil {
		t.TransferID = uuid.New()
	}
	return nil
}
