package machine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/vendo/internal/history"
	"github.com/roach88/vendo/internal/inventory"
)

// Machine is the transaction engine for one vending session.
//
// All mutable transactional state lives here and moves only through the
// exported operations. A Machine serves a single logical transaction at a
// time and is not safe for concurrent callers; the inventory ledger it
// holds may be shared across machines and serializes itself.
type Machine struct {
	cfg    Config
	denoms map[int]struct{}
	ledger *inventory.Ledger
	log    *history.Log
	clock  *Clock
	tokens TokenGenerator
	logger *slog.Logger

	phase     Phase
	balance   int
	selection []string
	token     string // current transaction token, "" at baseline

	unitsDispensed int
}

// Snapshot is a read-only view of the transactional state.
type Snapshot struct {
	Phase     Phase    `json:"phase"`
	Balance   int      `json:"balance"`
	Selection []string `json:"selection"`
	Token     string   `json:"token,omitempty"`
}

// CommitResult is the outcome of a successful CommitPurchase.
type CommitResult struct {
	Dispensed []string `json:"dispensed"`
	Change    int      `json:"change"`
	Phase     Phase    `json:"phase"`
}

// Report summarizes sales since machine start, for the admin surface.
type Report struct {
	UnitsDispensed int            `json:"units_dispensed"`
	Revenue        int            `json:"revenue"`
	Stock          map[string]int `json:"stock"`
}

// Option configures a Machine at construction.
type Option func(*Machine)

// WithTokenGenerator overrides the transaction token generator.
// Defaults to UUIDv7Generator; tests and scenario runs use deterministic
// generators for golden trace comparison.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(m *Machine) {
		m.tokens = g
	}
}

// WithLogger overrides the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = l
	}
}

// New creates a Machine over a ledger and history log.
//
// The config is validated; the ledger is expected to carry the same catalog
// (use NewFromConfig to build both together). A machine whose ledger is
// entirely empty starts in PhaseOutOfStock, otherwise PhaseIdle.
func New(cfg Config, ledger *inventory.Ledger, log *history.Log, opts ...Option) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("machine config: %w", err)
	}

	denoms := make(map[int]struct{}, len(cfg.Denominations))
	for _, d := range cfg.Denominations {
		denoms[d] = struct{}{}
	}

	m := &Machine{
		cfg:    cfg,
		denoms: denoms,
		ledger: ledger,
		log:    log,
		clock:  NewClock(),
		tokens: UUIDv7Generator{},
		logger: slog.Default(),
		phase:  PhaseIdle,
	}

	for _, opt := range opts {
		opt(m)
	}

	if ledger.TotalStock() == 0 {
		m.phase = PhaseOutOfStock
	}

	return m, nil
}

// NewFromConfig builds the ledger from the config's catalog and wraps it in
// a Machine. The common construction path for the CLI and harness.
func NewFromConfig(cfg Config, log *history.Log, opts ...Option) (*Machine, *inventory.Ledger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("machine config: %w", err)
	}

	ledger := inventory.New(cfg.Catalog, cfg.InitialStock, cfg.Capacity)
	m, err := New(cfg, ledger, log, opts...)
	if err != nil {
		return nil, nil, err
	}
	return m, ledger, nil
}

// InsertCoin accepts one coin of the given denomination.
//
// Fails with INVALID_DENOMINATION for coins outside the accepted set and
// DISPENSE_IN_PROGRESS while dispensing. On success the balance grows by
// the denomination, the phase moves Idle to AwaitingPayment (OutOfStock is
// sticky - coins are accepted but the phase waits for a restock), and an
// insert record is appended. Returns the new balance.
func (m *Machine) InsertCoin(ctx context.Context, denomination int) (int, error) {
	if m.phase == PhaseDispensing {
		return m.balance, errDispenseInProgress()
	}
	if _, ok := m.denoms[denomination]; !ok {
		return m.balance, errInvalidDenomination(denomination)
	}

	if m.token == "" {
		m.token = m.tokens.Generate()
	}
	m.balance += denomination
	if m.phase == PhaseIdle {
		m.phase = PhaseAwaitingPayment
	}

	m.logger.Debug("coin inserted",
		"denomination", denomination,
		"balance", m.balance,
		"phase", m.phase,
		"token", m.token,
	)
	m.append(ctx, history.Record{
		Token:  m.token,
		Kind:   history.KindInsert,
		Amount: denomination,
	})

	return m.balance, nil
}

// SelectItem appends an item to the selection.
//
// POLICY: selection does not require funds - the balance is checked only at
// commit, which is what allows multi-item batching. Stock is checked here
// counting units already pending in the selection, and re-checked at commit
// because an admin can change counters in between.
func (m *Machine) SelectItem(itemID string) error {
	switch m.phase {
	case PhaseDispensing:
		return errDispenseInProgress()
	case PhaseOutOfStock:
		return errOutOfStock(itemID)
	}

	stock, err := m.ledger.Stock(itemID)
	if err != nil {
		var unknown *inventory.ErrUnknownItem
		if errors.As(err, &unknown) {
			return errUnknownItem(itemID)
		}
		return fmt.Errorf("check stock for %s: %w", itemID, err)
	}
	if stock-m.pendingCount(itemID) <= 0 {
		return errOutOfStock(itemID)
	}

	if m.token == "" {
		m.token = m.tokens.Generate()
	}
	m.selection = append(m.selection, itemID)
	if m.phase == PhaseIdle {
		m.phase = PhaseAwaitingPayment
	}

	m.logger.Debug("item selected",
		"item", itemID,
		"selection_size", len(m.selection),
		"token", m.token,
	)
	return nil
}

// CommitPurchase validates funds and stock, dispenses the whole selection,
// and computes change.
//
// POLICY: all-or-nothing. If any unit of the batch lacks stock the commit
// fails OUT_OF_STOCK naming the first unavailable item, nothing is
// dispensed, and balance and selection are untouched. The same holds for
// the funds and empty-selection guards: a failed commit changes nothing.
//
// On success the ledger is decremented per item in selection order, the
// change (balance minus total cost) becomes the new balance, the selection
// clears, and the phase lands on Idle (change 0), AwaitingPayment
// (change held), or OutOfStock (ledger fully depleted - overrides both).
func (m *Machine) CommitPurchase(ctx context.Context) (CommitResult, error) {
	if m.phase == PhaseDispensing {
		return CommitResult{}, errDispenseInProgress()
	}
	if len(m.selection) == 0 {
		return CommitResult{}, errEmptySelection()
	}

	total := len(m.selection) * m.cfg.UnitPrice
	if m.balance < total {
		return CommitResult{}, errInsufficientFunds(total - m.balance)
	}

	m.phase = PhaseProcessing

	// Stock may have been externally zeroed by an admin between selection
	// and commit. DecrementBatch re-checks and decrements under one ledger
	// lock, so the batch either dispenses whole or not at all.
	m.phase = PhaseDispensing
	if err := m.ledger.DecrementBatch(m.selection); err != nil {
		m.phase = PhaseAwaitingPayment
		var depleted *inventory.ErrDepleted
		if errors.As(err, &depleted) {
			return CommitResult{}, errOutOfStock(depleted.ItemID)
		}
		var unknown *inventory.ErrUnknownItem
		if errors.As(err, &unknown) {
			return CommitResult{}, errUnknownItem(unknown.ItemID)
		}
		return CommitResult{}, fmt.Errorf("dispense batch: %w", err)
	}

	dispensed := m.selection
	change := m.balance - total
	token := m.token

	m.selection = nil
	m.balance = change
	m.unitsDispensed += len(dispensed)

	if change == 0 {
		m.phase = PhaseIdle
		m.token = ""
	} else {
		m.phase = PhaseAwaitingPayment
	}
	// Total depletion overrides the change-based phase.
	if m.ledger.TotalStock() == 0 {
		m.phase = PhaseOutOfStock
	}

	m.logger.Info("purchase committed",
		"dispensed", len(dispensed),
		"total", total,
		"change", change,
		"phase", m.phase,
		"token", token,
	)
	m.append(ctx, history.Record{
		Token:  token,
		Kind:   history.KindDispense,
		Amount: total,
		Items:  dispensed,
	})
	if change > 0 {
		m.append(ctx, history.Record{
			Token:  token,
			Kind:   history.KindChangeReturned,
			Amount: change,
		})
	}

	return CommitResult{Dispensed: dispensed, Change: change, Phase: m.phase}, nil
}

// Cancel aborts the open transaction and refunds the full balance.
//
// Fails with DISPENSE_IN_PROGRESS while dispensing and NOTHING_TO_CANCEL at
// baseline. Otherwise clears balance and selection, appends a cancel
// record, and returns the refund. The phase lands on Idle, or OutOfStock
// when the ledger is fully depleted.
func (m *Machine) Cancel(ctx context.Context) (int, error) {
	if m.phase == PhaseDispensing {
		return 0, errDispenseInProgress()
	}
	if m.balance == 0 && len(m.selection) == 0 {
		return 0, errNothingToCancel()
	}

	refund := m.balance
	token := m.token

	m.balance = 0
	m.selection = nil
	m.token = ""
	if m.ledger.TotalStock() == 0 {
		m.phase = PhaseOutOfStock
	} else {
		m.phase = PhaseIdle
	}

	m.logger.Info("transaction cancelled",
		"refund", refund,
		"phase", m.phase,
		"token", token,
	)
	m.append(ctx, history.Record{
		Token:  token,
		Kind:   history.KindCancel,
		Amount: refund,
	})

	return refund, nil
}

// Snapshot returns the current transactional state with no side effects.
// The selection slice is a copy.
func (m *Machine) Snapshot() Snapshot {
	sel := make([]string, len(m.selection))
	copy(sel, m.selection)
	return Snapshot{
		Phase:     m.phase,
		Balance:   m.balance,
		Selection: sel,
		Token:     m.token,
	}
}

// Restock is the hook the administrative surface calls after
// authenticating: it sets an item's counter (clamped by the ledger) and
// re-evaluates the phase, clearing OutOfStock once any stock exists.
// Appends an admin record.
func (m *Machine) Restock(ctx context.Context, itemID string, n int) error {
	if err := m.ledger.SetStock(itemID, n); err != nil {
		var unknown *inventory.ErrUnknownItem
		if errors.As(err, &unknown) {
			return errUnknownItem(itemID)
		}
		return fmt.Errorf("restock %s: %w", itemID, err)
	}

	m.reevaluateStockPhase()

	m.logger.Info("stock set", "item", itemID, "count", n, "phase", m.phase)
	m.append(ctx, history.Record{
		Kind:   history.KindAdmin,
		Amount: n,
		Items:  []string{itemID},
		Note:   "restock",
	})
	return nil
}

// RefillAll restores every counter to capacity. Appends an admin record.
func (m *Machine) RefillAll(ctx context.Context) {
	m.ledger.RefillAll()
	m.reevaluateStockPhase()

	m.logger.Info("all stock refilled", "capacity", m.ledger.Capacity(), "phase", m.phase)
	m.append(ctx, history.Record{
		Kind: history.KindAdmin,
		Note: "refill_all",
	})
}

// ResetCounter zeroes the sales counter. Appends an admin record carrying
// the value the counter held. Revenue derives from the counter, so the
// report starts over too; the history log is untouched.
func (m *Machine) ResetCounter(ctx context.Context) {
	previous := m.unitsDispensed
	m.unitsDispensed = 0

	m.logger.Info("sales counter reset", "previous", previous)
	m.append(ctx, history.Record{
		Kind:   history.KindAdmin,
		Amount: previous,
		Note:   "reset_counter",
	})
}

// NoteAdminAction appends an admin record for a maintenance action that
// does not pass through one of the engine's own hooks.
func (m *Machine) NoteAdminAction(ctx context.Context, note string) {
	m.append(ctx, history.Record{
		Kind: history.KindAdmin,
		Note: note,
	})
}

// SalesReport returns units dispensed, revenue, and the stock snapshot.
func (m *Machine) SalesReport() Report {
	return Report{
		UnitsDispensed: m.unitsDispensed,
		Revenue:        m.unitsDispensed * m.cfg.UnitPrice,
		Stock:          m.ledger.Snapshot(),
	}
}

// Config returns the machine's configuration.
func (m *Machine) Config() Config {
	return m.cfg
}

// Ledger returns the machine's inventory ledger.
func (m *Machine) Ledger() *inventory.Ledger {
	return m.ledger
}

// History returns the machine's history log.
func (m *Machine) History() *history.Log {
	return m.log
}

// reevaluateStockPhase clears or enters OutOfStock based on total stock.
// Called after any stock mutation outside a commit.
func (m *Machine) reevaluateStockPhase() {
	if m.ledger.TotalStock() == 0 {
		m.phase = PhaseOutOfStock
		return
	}
	if m.phase == PhaseOutOfStock {
		if m.balance == 0 && len(m.selection) == 0 {
			m.phase = PhaseIdle
		} else {
			m.phase = PhaseAwaitingPayment
		}
	}
}

// pendingCount returns how many units of itemID sit in the selection.
func (m *Machine) pendingCount(itemID string) int {
	n := 0
	for _, id := range m.selection {
		if id == itemID {
			n++
		}
	}
	return n
}

// append writes a history record stamped with the next clock seq.
//
// Append failures are logged with full record context and do not fail the
// operation: the transactional outcome is already decided, and the engine's
// own state never depends on the log.
func (m *Machine) append(ctx context.Context, rec history.Record) {
	rec.Seq = m.clock.Next()
	if err := m.log.Append(ctx, rec); err != nil {
		m.logger.Error("history append failed",
			"error", err,
			"kind", rec.Kind,
			"seq", rec.Seq,
			"token", rec.Token,
		)
	}
}
