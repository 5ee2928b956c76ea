package machine

// Phase is the discrete transactional state of the machine.
//
// Idle is both the initial state and the per-transaction terminal state:
// the machine returns to it after every completed or cancelled transaction
// with zero change outstanding.
type Phase string

const (
	// PhaseIdle is the baseline: no balance, no selection.
	PhaseIdle Phase = "idle"

	// PhaseAwaitingPayment holds while a balance or selection is open.
	PhaseAwaitingPayment Phase = "awaiting_payment"

	// PhaseProcessing is the commit validation step.
	PhaseProcessing Phase = "processing"

	// PhaseDispensing covers the per-item dispense walk during commit.
	PhaseDispensing Phase = "dispensing"

	// PhaseOutOfStock holds while every catalog item's counter is 0.
	// Only an administrative restock leaves this phase.
	PhaseOutOfStock Phase = "out_of_stock"
)

// String representation (for logging and display).
func (p Phase) String() string {
	return string(p)
}
