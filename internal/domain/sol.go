package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	SolStatusDraft     = "draft"
	SolStatusActive    = "active"
	SolStatusCompleted = "completed"
	SolStatusCancelled = "cancelled"
)

const (
	PeriodicityWeekly   = "weekly"
	PeriodicityBiweekly = "biweekly"
	PeriodicityMonthly  = "monthly"
)

// Sol is a rotating savings pool. CurrentRound is 0 while draft and N once the last round has been paid out.
type Sol struct {
	SolID              uuid.UUID       `gorm:"column:sol_id;type:uuid;primaryKey" json:"sol_id"`
	Name               string          `gorm:"column:name;not null" json:"name"`
	ContributionAmount decimal.Decimal `gorm:"column:contribution_amount;type:decimal(18,2);not null" json:"contribution_amount"`
	Currency           string          `gorm:"column:currency;type:varchar(3);not null" json:"currency"`
	Periodicity        string          `gorm:"column:periodicity;type:varchar(20);not null" json:"periodicity"`
	MaxParticipants    int             `gorm:"column:max_participants;not null" json:"max_participants"`
	Status             string          `gorm:"column:status;type:varchar(20);not null;default:'draft'" json:"status"`
	FounderID          uuid.UUID       `gorm:"column:founder_id;type:uuid;not null" json:"founder_id"`
	CurrentRound       int             `gorm:"column:current_round;not null;default:0" json:"current_round"`
	StartDate          *time.Time      `gorm:"column:start_date" json:"start_date"`
	OrderSeed          *string         `gorm:"column:order_seed" json:"order_seed"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
	DeletedAt          gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (Sol) TableName() string {
	return "Sols"
}

func (s *Sol) BeforeCreate(tx *gorm.DB) error {
	if s.SolID == uuid.Nil {
		s.SolID = uuid.New()
	}
	return nil
}

// OrderMutable reports whether the rotation order may still change.
func (s *Sol) OrderMutable() bool {
	return s.Status == SolStatusDraft
}

// IsValidPeriodicity returns true if p is one of the supported periodicities.
func IsValidPeriodicity(p string) bool {
	switch p {
	case PeriodicityWeekly, PeriodicityBiweekly, PeriodicityMonthly:
		return true
	}
	return false
}

// RoundDueDate returns the due date of round r (1-based) from the start date.
func (s *Sol) RoundDueDate(r int) *time.Time {
	if s.StartDate == nil || r < 1 {
		return nil
	}
	n := r - 1
	var due time.Time
	switch s.Periodicity {
	case PeriodicityWeekly:
		due = s.StartDate.AddDate(0, 0, 7*n)
	case PeriodicityBiweekly:
		due = s.StartDate.AddDate(0, 0, 14*n)
	default:
		due = s.StartDate.AddDate(0, n, 0)
	}
	return &due
}
