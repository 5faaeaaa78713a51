package rotation

import (
	"time"

	"sol-backend/internal/domain"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OpenRound creates one pending payment per participant and the round's pending transfer, then makes
// round the Sol's current round. The beneficiary is the participant whose ordre equals round.
func OpenRound(tx *gorm.DB, sol *domain.Sol, round int, actor *domain.Actor) error {
	participants, err := Participants(tx, sol.SolID)
	if err != nil {
		return err
	}
	if round < 1 || round > len(participants) {
		return domain.NewError(domain.ErrInvalidTransition, sol.SolID.String(), "round %d is outside 1..%d", round, len(participants))
	}
	var beneficiary *domain.Participant
	payments := make([]domain.Payment, 0, len(participants))
	for i := range participants {
		p := &participants[i]
		if p.Ordre == round {
			beneficiary = p
		}
		payments = append(payments, domain.Payment{
			SolID:         sol.SolID,
			Round:         round,
			ParticipantID: p.ParticipantID,
			PayerID:       p.UserID,
			Amount:        sol.ContributionAmount,
			Method:        domain.PaymentMethodManualReceipt,
			Status:        domain.PaymentStatusPending,
		})
	}
	if beneficiary == nil {
		return domain.NewError(domain.ErrOrderIncomplete, sol.SolID.String(), "no participant holds ordre %d", round)
	}
	if err := tx.Create(&payments).Error; err != nil {
		return err
	}
	transfer := domain.Transfer{
		SolID:           sol.SolID,
		Round:           round,
		BeneficiaryID:   beneficiary.ParticipantID,
		BeneficiaryUser: beneficiary.UserID,
		Amount:          decimal.Zero,
		Status:          domain.TransferStatusPending,
	}
	if err := tx.Create(&transfer).Error; err != nil {
		return err
	}
	sol.CurrentRound = round
	if err := tx.Model(sol).Update("current_round", round).Error; err != nil {
		return err
	}
	log.Info().Str("sol_id", sol.SolID.String()).Int("round", round).
		Str("beneficiary_id", beneficiary.ParticipantID.String()).Msg("round opened")
	return Record(tx, domain.NewSolEvent(sol.SolID, round, domain.EventRoundOpened, actor, map[string]interface{}{
		"beneficiary_id": beneficiary.ParticipantID,
		"payments":       len(payments),
		"due_date":       sol.RoundDueDate(round),
	}))
}

// RefreshTransfer moves a pending transfer to ready once every payment of its round is validated,
// fixing the aggregated amount. It is a no-op for any other state.
func RefreshTransfer(tx *gorm.DB, sol *domain.Sol, round int, actor *domain.Actor) (*domain.Transfer, error) {
	transfer, err := RoundTransfer(tx, sol.SolID, round)
	if err != nil {
		return nil, err
	}
	if transfer.Status != domain.TransferStatusPending {
		return transfer, nil
	}
	payments, err := RoundPayments(tx, sol.SolID, round)
	if err != nil {
		return nil, err
	}
	participants, err := Participants(tx, sol.SolID)
	if err != nil {
		return nil, err
	}
	total := decimal.Zero
	paid := 0
	for _, p := range payments {
		if domain.IsPaidStatus(p.Status) {
			paid++
			total = total.Add(p.Amount)
		}
	}
	if paid < len(participants) || len(payments) == 0 {
		return transfer, nil
	}
	next, err := domain.NextTransferStatus(transfer.Status, domain.TransferCollect)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if err := tx.Model(transfer).Updates(map[string]interface{}{
		"status":   next,
		"amount":   total,
		"ready_at": now,
	}).Error; err != nil {
		return nil, err
	}
	transfer.Status = next
	transfer.Amount = total
	transfer.ReadyAt = &now
	log.Info().Str("sol_id", sol.SolID.String()).Int("round", round).
		Str("transfer_id", transfer.TransferID.String()).Str("amount", total.StringFixed(2)).Msg("transfer ready")
	if err := Record(tx, domain.NewSolEvent(sol.SolID, round, domain.EventTransferReady, actor, map[string]interface{}{
		"transfer_id": transfer.TransferID,
		"amount":      total.StringFixed(2),
	})); err != nil {
		return nil, err
	}
	return transfer, nil
}

// AdvanceRound moves the Sol past completedRound once that round's transfer is completed: it opens the
// next round, or marks the Sol completed after the last one. A round already left behind is a no-op
// (reported by advanced=false), so duplicate completion signals are harmless.
func AdvanceRound(tx *gorm.DB, sol *domain.Sol, completedRound int, actor *domain.Actor) (advanced bool, err error) {
	if sol.Status == domain.SolStatusCompleted || sol.CurrentRound > completedRound {
		return false, nil
	}
	if sol.Status != domain.SolStatusActive {
		return false, domain.NewError(domain.ErrInvalidTransition, sol.SolID.String(), "sol is %s", sol.Status)
	}
	if completedRound != sol.CurrentRound {
		return false, domain.NewError(domain.ErrInvalidTransition, sol.SolID.String(),
			"round %d is not the current round (%d)", completedRound, sol.CurrentRound)
	}
	transfer, err := RoundTransfer(tx, sol.SolID, completedRound)
	if err != nil {
		return false, err
	}
	switch transfer.Status {
	case domain.TransferStatusCompleted:
	case domain.TransferStatusDisputed:
		return false, domain.NewError(domain.ErrInvalidTransition, transfer.TransferID.String(), "round %d transfer is disputed", completedRound)
	default:
		return false, domain.NewError(domain.ErrNotReady, transfer.TransferID.String(), "round %d transfer is %s", completedRound, transfer.Status)
	}

	var n int64
	if err := tx.Model(&domain.Participant{}).Where("sol_id = ?", sol.SolID).Count(&n).Error; err != nil {
		return false, err
	}
	if completedRound >= int(n) {
		if err := tx.Model(sol).Update("status", domain.SolStatusCompleted).Error; err != nil {
			return false, err
		}
		sol.Status = domain.SolStatusCompleted
		log.Info().Str("sol_id", sol.SolID.String()).Int("rounds", completedRound).Msg("sol completed")
		return true, Record(tx, domain.NewSolEvent(sol.SolID, completedRound, domain.EventSolCompleted, actor, nil))
	}
	return true, OpenRound(tx, sol, completedRound+1, actor)
}
