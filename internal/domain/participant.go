package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Participant is one user's membership in one Sol. Ordre is the 1-based rotation rank.
type Participant struct {
	ParticipantID     uuid.UUID      `gorm:"column:participant_id;type:uuid;primaryKey" json:"participant_id"`
	SolID             uuid.UUID      `gorm:"column:sol_id;type:uuid;not null;index" json:"sol_id"`
	UserID            uuid.UUID      `gorm:"column:user_id;type:uuid;not null" json:"user_id"`
	Ordre             int            `gorm:"column:ordre;not null" json:"ordre"`
	ValidatedPayments int            `gorm:"column:validated_payments;not null;default:0" json:"validated_payments"`
	JoinedAt          time.Time      `gorm:"column:joined_at;not null" json:"joined_at"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Participant) TableName() string {
	return "Participants"
}

func (p *Participant) BeforeCreate(tx *gorm.DB) error {
	if p.ParticipantID == uuid.Nil {
		p.ParticipantID = uuid.New()
	}
	if p.JoinedAt.IsZero() {
		p.JoinedAt = time.Now().UTC()
	}
	return nil
}
