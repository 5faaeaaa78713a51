package constants

const (
	ViewData         = "view_data"
	CreateSol        = "create_sol"
	ValidatePayments = "validate_payments"
	ManageTransfers  = "manage_transfers"
	ViewAllTransfers = "view_all_transfers"
	ResolveDisputes  = "resolve_disputes"
	AdvanceRounds    = "advance_rounds"
)
