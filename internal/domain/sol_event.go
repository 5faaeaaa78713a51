package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	EventSolCreated         = "SOL_CREATED"
	EventParticipantJoined  = "PARTICIPANT_JOINED"
	EventParticipantRemoved = "PARTICIPANT_REMOVED"
	EventOrderSet           = "ORDER_SET"
	EventOrderRandomized    = "ORDER_RANDOMIZED"
	EventSolActivated       = "SOL_ACTIVATED"
	EventSolCancelled       = "SOL_CANCELLED"
	EventSolCompleted       = "SOL_COMPLETED"
	EventRoundOpened        = "ROUND_OPENED"
	EventPaymentSubmitted   = "PAYMENT_SUBMITTED"
	EventPaymentValidated   = "PAYMENT_VALIDATED"
	EventPaymentRejected    = "PAYMENT_REJECTED"
	EventPaymentSettled     = "PAYMENT_SETTLED"
	EventTransferReady      = "TRANSFER_READY"
	EventTransferMarked     = "TRANSFER_MARKED"
	EventTransferConfirmed  = "TRANSFER_CONFIRMED"
	EventTransferDisputed   = "TRANSFER_DISPUTED"
	EventTransferReopened   = "TRANSFER_REOPENED"
)

// SolEvent is an append-only audit line written in the same transaction as the change it records.
type SolEvent struct {
	EventID   uuid.UUID      `gorm:"column:event_id;type:uuid;primaryKey" json:"event_id"`
	SolID     uuid.UUID      `gorm:"column:sol_id;type:uuid;not null;index" json:"sol_id"`
	Round     int            `gorm:"column:round;not null;default:0" json:"round"`
	EventType string         `gorm:"column:event_type;type:varchar(30);not null" json:"event_type"`
	ActorID   *uuid.UUID     `gorm:"column:actor_id;type:uuid" json:"actor_id"`
	EventData datatypes.JSON `gorm:"column:event_data;type:jsonb;not null" json:"event_data"`
	CreatedAt time.Time      `json:"createdAt"`
}

func (SolEvent) TableName() string {
	return "SolEvents"
}

func (e *SolEvent) BeforeCreate(tx *gorm.DB) error {
	if e.EventID == uuid.Nil {
		e.EventID = uuid.New()
	}
	return nil
}

// NewSolEvent builds an event; data is marshalled to JSON ("{}" when nil).
func NewSolEvent(solID uuid.UUID, round int, eventType string, actor *Actor, data map[string]interface{}) *SolEvent {
	if data == nil {
		data = map[string]interface{}{}
	}
	b, _ := json.Marshal(data)
	ev := &SolEvent{
		SolID:     solID,
		Round:     round,
		EventType: eventType,
		EventData: datatypes.JSON(b),
	}
	if actor != nil && actor.UserID != uuid.Nil {
		id := actor.UserID
		ev.ActorID = &id
	}
	return ev
}

// Models lists every table owned by this service, in migration order.
func Models() []interface{} {
	return []interface{}{&Sol{}, &Participant{}, &Payment{}, &Transfer{}, &SolEvent{}}
}
