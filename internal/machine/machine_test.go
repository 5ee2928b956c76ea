package machine

import (
	"context"
	"testing"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vendo/internal/history"
	"github.com/roach88/vendo/internal/inventory"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Catalog = []string{"Cola", "Sprite", "Fanta"}
	return cfg
}

func newTestMachine(t *testing.T, cfg Config) (*Machine, *inventory.Ledger, *history.Log) {
	t.Helper()

	log, err := history.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	m, ledger, err := NewFromConfig(cfg, log,
		WithLogger(slogt.New(t)),
		WithTokenGenerator(NewCounterGenerator("txn")),
	)
	require.NoError(t, err)
	return m, ledger, log
}

func TestNew_StartsIdle(t *testing.T) {
	m, _, _ := newTestMachine(t, testConfig())

	snap := m.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Equal(t, 0, snap.Balance)
	assert.Empty(t, snap.Selection)
	assert.Empty(t, snap.Token)
}

func TestNew_EmptyLedgerStartsOutOfStock(t *testing.T) {
	cfg := testConfig()
	cfg.InitialStock = 0
	m, _, _ := newTestMachine(t, cfg)

	assert.Equal(t, PhaseOutOfStock, m.Snapshot().Phase)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	log, err := history.Open(":memory:")
	require.NoError(t, err)
	defer log.Close()

	cfg := testConfig()
	cfg.UnitPrice = 0
	_, _, err = NewFromConfig(cfg, log)
	require.Error(t, err)
}

func TestInsertCoin(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestMachine(t, testConfig())

	balance, err := m.InsertCoin(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, 50, balance)

	snap := m.Snapshot()
	assert.Equal(t, PhaseAwaitingPayment, snap.Phase)
	assert.Equal(t, "txn-1", snap.Token)

	balance, err = m.InsertCoin(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 150, balance)
	assert.Equal(t, PhaseAwaitingPayment, m.Snapshot().Phase)
}

func TestInsertCoin_InvalidDenomination(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestMachine(t, testConfig())

	_, err := m.InsertCoin(ctx, 30)
	require.Error(t, err)
	assert.Equal(t, ErrCodeInvalidDenomination, CodeOf(err))

	// State untouched.
	snap := m.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Equal(t, 0, snap.Balance)
}

func TestSelectItem_NoFundsRequired(t *testing.T) {
	// Selection is allowed before funds cover it; only commit checks funds.
	m, _, _ := newTestMachine(t, testConfig())

	require.NoError(t, m.SelectItem("Cola"))
	require.NoError(t, m.SelectItem("Cola"))

	snap := m.Snapshot()
	assert.Equal(t, []string{"Cola", "Cola"}, snap.Selection)
	assert.Equal(t, PhaseAwaitingPayment, snap.Phase)
}

func TestSelectItem_UnknownItem(t *testing.T) {
	m, _, _ := newTestMachine(t, testConfig())

	err := m.SelectItem("Beer")
	assert.Equal(t, ErrCodeUnknownItem, CodeOf(err))
}

func TestSelectItem_OutOfStock(t *testing.T) {
	ctx := context.Background()
	m, ledger, _ := newTestMachine(t, testConfig())
	require.NoError(t, ledger.SetStock("Cola", 0))

	_, err := m.InsertCoin(ctx, 50)
	require.NoError(t, err)

	err = m.SelectItem("Cola")
	assert.True(t, IsOutOfStock(err))
	assert.Empty(t, m.Snapshot().Selection)
}

func TestSelectItem_PendingUnitsCountAgainstStock(t *testing.T) {
	m, ledger, _ := newTestMachine(t, testConfig())
	require.NoError(t, ledger.SetStock("Cola", 1))

	require.NoError(t, m.SelectItem("Cola"))

	// Only one unit exists; a second pending unit cannot be covered.
	err := m.SelectItem("Cola")
	assert.True(t, IsOutOfStock(err))
	assert.Equal(t, []string{"Cola"}, m.Snapshot().Selection)
}

func TestCommit_SingleItemExactFunds(t *testing.T) {
	// insert 50 -> select Cola -> commit: stock 5->4, balance 0, Idle.
	ctx := context.Background()
	m, ledger, _ := newTestMachine(t, testConfig())

	_, err := m.InsertCoin(ctx, 50)
	require.NoError(t, err)
	require.NoError(t, m.SelectItem("Cola"))

	// Stock untouched until commit.
	n, err := ledger.Stock("Cola")
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	res, err := m.CommitPurchase(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Cola"}, res.Dispensed)
	assert.Equal(t, 0, res.Change)
	assert.Equal(t, PhaseIdle, res.Phase)

	n, err = ledger.Stock("Cola")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	snap := m.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Equal(t, 0, snap.Balance)
	assert.Empty(t, snap.Selection)
	assert.Empty(t, snap.Token, "token resets at baseline")
}

func TestCommit_BatchOfTwo(t *testing.T) {
	// insert 100 -> select Cola twice -> commit: both dispensed, change 0.
	ctx := context.Background()
	m, _, _ := newTestMachine(t, testConfig())

	_, err := m.InsertCoin(ctx, 100)
	require.NoError(t, err)
	require.NoError(t, m.SelectItem("Cola"))
	require.NoError(t, m.SelectItem("Cola"))

	res, err := m.CommitPurchase(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Cola", "Cola"}, res.Dispensed)
	assert.Equal(t, 0, res.Change)
	assert.Equal(t, PhaseIdle, res.Phase)
}

func TestCommit_ChangeKeepsTransactionOpen(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestMachine(t, testConfig())

	_, err := m.InsertCoin(ctx, 200)
	require.NoError(t, err)
	require.NoError(t, m.SelectItem("Sprite"))

	res, err := m.CommitPurchase(ctx)
	require.NoError(t, err)
	assert.Equal(t, 150, res.Change)
	assert.Equal(t, PhaseAwaitingPayment, res.Phase)

	// The change becomes the next balance.
	snap := m.Snapshot()
	assert.Equal(t, 150, snap.Balance)
	assert.NotEmpty(t, snap.Token, "transaction stays open while change is held")
}

func TestCommit_Conservation(t *testing.T) {
	// For inserts summing to S and k items at price P: change == S - k*P.
	tests := []struct {
		name    string
		inserts []int
		items   int
	}{
		{"exact single", []int{50}, 1},
		{"exact pair", []int{100}, 2},
		{"change left", []int{500, 20}, 3},
		{"many coins", []int{10, 20, 40, 50, 100}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			m, _, _ := newTestMachine(t, testConfig())

			sum := 0
			for _, d := range tt.inserts {
				_, err := m.InsertCoin(ctx, d)
				require.NoError(t, err)
				sum += d
			}
			for i := 0; i < tt.items; i++ {
				require.NoError(t, m.SelectItem("Cola"))
			}

			res, err := m.CommitPurchase(ctx)
			require.NoError(t, err)

			want := sum - tt.items*50
			assert.Equal(t, want, res.Change)
			assert.Equal(t, want, m.Snapshot().Balance)
		})
	}
}

func TestCommit_InsufficientFunds_NoPhantomDispensing(t *testing.T) {
	// insert 40 -> select Cola -> commit fails; balance 40, selection kept.
	ctx := context.Background()
	m, ledger, _ := newTestMachine(t, testConfig())

	_, err := m.InsertCoin(ctx, 40)
	require.NoError(t, err)
	require.NoError(t, m.SelectItem("Cola"))

	before := m.Snapshot()

	_, err = m.CommitPurchase(ctx)
	require.Error(t, err)
	assert.True(t, IsInsufficientFunds(err))

	var ve *VendError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 10, ve.Amount, "shortfall is reported")

	assert.Equal(t, before, m.Snapshot(), "failed commit changes nothing")

	n, err := ledger.Stock("Cola")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestCommit_EmptySelection(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestMachine(t, testConfig())

	_, err := m.InsertCoin(ctx, 50)
	require.NoError(t, err)

	_, err = m.CommitPurchase(ctx)
	assert.Equal(t, ErrCodeEmptySelection, CodeOf(err))
	assert.Equal(t, 50, m.Snapshot().Balance)
}

func TestCommit_AdminZeroedStock_RollsBackWholeBatch(t *testing.T) {
	// Stock is re-validated at commit: an admin zeroing a counter between
	// selection and commit fails the whole batch, nothing dispensed.
	ctx := context.Background()
	m, ledger, _ := newTestMachine(t, testConfig())

	_, err := m.InsertCoin(ctx, 100)
	require.NoError(t, err)
	require.NoError(t, m.SelectItem("Cola"))
	require.NoError(t, m.SelectItem("Sprite"))

	require.NoError(t, ledger.SetStock("Sprite", 0))

	before := m.Snapshot()

	_, err = m.CommitPurchase(ctx)
	require.Error(t, err)
	assert.True(t, IsOutOfStock(err))

	var ve *VendError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "Sprite", ve.ItemID, "first unavailable item is named")

	assert.Equal(t, before, m.Snapshot())

	// Cola was not decremented either: all-or-nothing.
	n, err := ledger.Stock("Cola")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestCommit_DepletesLedger_ForcesOutOfStock(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Catalog = []string{"Cola"}
	cfg.InitialStock = 1
	cfg.Capacity = 5
	m, _, _ := newTestMachine(t, cfg)

	_, err := m.InsertCoin(ctx, 100)
	require.NoError(t, err)
	require.NoError(t, m.SelectItem("Cola"))

	res, err := m.CommitPurchase(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50, res.Change)

	// Change is held, but total depletion overrides AwaitingPayment.
	assert.Equal(t, PhaseOutOfStock, res.Phase)
	assert.Equal(t, 50, m.Snapshot().Balance)
}

func TestCancel_RefundsFullBalance(t *testing.T) {
	// insert 1000 -> cancel: refund 1000, balance 0, Idle.
	ctx := context.Background()
	m, _, _ := newTestMachine(t, testConfig())

	_, err := m.InsertCoin(ctx, 1000)
	require.NoError(t, err)

	refund, err := m.Cancel(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1000, refund)

	snap := m.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Equal(t, 0, snap.Balance)
	assert.Empty(t, snap.Selection)
}

func TestCancel_ClearsSelection(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestMachine(t, testConfig())

	require.NoError(t, m.SelectItem("Cola"))

	refund, err := m.Cancel(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, refund, "no coins were inserted")
	assert.Empty(t, m.Snapshot().Selection)
}

func TestCancel_Idempotent(t *testing.T) {
	// cancel after cancel with no intervening insert fails NothingToCancel.
	ctx := context.Background()
	m, _, _ := newTestMachine(t, testConfig())

	_, err := m.InsertCoin(ctx, 50)
	require.NoError(t, err)

	_, err = m.Cancel(ctx)
	require.NoError(t, err)

	_, err = m.Cancel(ctx)
	assert.Equal(t, ErrCodeNothingToCancel, CodeOf(err))
}

func TestCancel_AtBaseline(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestMachine(t, testConfig())

	_, err := m.Cancel(ctx)
	assert.Equal(t, ErrCodeNothingToCancel, CodeOf(err))
}

func TestOutOfStock_Convergence(t *testing.T) {
	// Once every counter is 0 the phase is OutOfStock regardless of
	// balance, and no selection succeeds until a restock.
	ctx := context.Background()
	m, ledger, _ := newTestMachine(t, testConfig())

	_, err := m.InsertCoin(ctx, 200)
	require.NoError(t, err)

	for _, id := range ledger.Items() {
		require.NoError(t, m.Restock(ctx, id, 0))
	}

	assert.Equal(t, PhaseOutOfStock, m.Snapshot().Phase)
	assert.Equal(t, 200, m.Snapshot().Balance)

	err = m.SelectItem("Cola")
	assert.True(t, IsOutOfStock(err))

	// Restock clears the phase; balance is open, so AwaitingPayment.
	require.NoError(t, m.Restock(ctx, "Cola", 3))
	assert.Equal(t, PhaseAwaitingPayment, m.Snapshot().Phase)
	require.NoError(t, m.SelectItem("Cola"))
}

func TestRestock_OutOfStockToIdle(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.InitialStock = 0
	m, _, _ := newTestMachine(t, cfg)

	require.Equal(t, PhaseOutOfStock, m.Snapshot().Phase)

	require.NoError(t, m.Restock(ctx, "Cola", 5))
	assert.Equal(t, PhaseIdle, m.Snapshot().Phase)
}

func TestRestock_UnknownItem(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestMachine(t, testConfig())

	err := m.Restock(ctx, "Beer", 5)
	assert.Equal(t, ErrCodeUnknownItem, CodeOf(err))
}

func TestRefillAll(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.InitialStock = 0
	m, ledger, _ := newTestMachine(t, cfg)

	m.RefillAll(ctx)

	assert.Equal(t, PhaseIdle, m.Snapshot().Phase)
	assert.Equal(t, len(cfg.Catalog)*cfg.Capacity, ledger.TotalStock())
}

func TestInsert_WhileOutOfStock_Accepted(t *testing.T) {
	// Coins are accepted while OutOfStock (a cancel refunds them), but the
	// phase stays put until a restock.
	ctx := context.Background()
	cfg := testConfig()
	cfg.InitialStock = 0
	m, _, _ := newTestMachine(t, cfg)

	balance, err := m.InsertCoin(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 100, balance)
	assert.Equal(t, PhaseOutOfStock, m.Snapshot().Phase)

	refund, err := m.Cancel(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100, refund)
	assert.Equal(t, PhaseOutOfStock, m.Snapshot().Phase)
}

func TestSalesReport(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestMachine(t, testConfig())

	rep := m.SalesReport()
	assert.Equal(t, 0, rep.UnitsDispensed)
	assert.Equal(t, 0, rep.Revenue)

	_, err := m.InsertCoin(ctx, 100)
	require.NoError(t, err)
	require.NoError(t, m.SelectItem("Cola"))
	require.NoError(t, m.SelectItem("Fanta"))
	_, err = m.CommitPurchase(ctx)
	require.NoError(t, err)

	rep = m.SalesReport()
	assert.Equal(t, 2, rep.UnitsDispensed)
	assert.Equal(t, 100, rep.Revenue)
	assert.Equal(t, 4, rep.Stock["Cola"])
	assert.Equal(t, 4, rep.Stock["Fanta"])
	assert.Equal(t, 5, rep.Stock["Sprite"])
}

func TestResetCounter(t *testing.T) {
	ctx := context.Background()
	m, _, log := newTestMachine(t, testConfig())

	_, err := m.InsertCoin(ctx, 100)
	require.NoError(t, err)
	require.NoError(t, m.SelectItem("Cola"))
	require.NoError(t, m.SelectItem("Sprite"))
	_, err = m.CommitPurchase(ctx)
	require.NoError(t, err)

	m.ResetCounter(ctx)

	rep := m.SalesReport()
	assert.Equal(t, 0, rep.UnitsDispensed)
	assert.Equal(t, 0, rep.Revenue)
	assert.Equal(t, 4, rep.Stock["Cola"], "stock counters are not sales counters")

	recent, err := log.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, history.KindAdmin, recent[0].Kind)
	assert.Equal(t, "reset_counter", recent[0].Note)
	assert.Equal(t, 2, recent[0].Amount)

	// The counter starts over from zero.
	_, err = m.InsertCoin(ctx, 50)
	require.NoError(t, err)
	require.NoError(t, m.SelectItem("Fanta"))
	_, err = m.CommitPurchase(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, m.SalesReport().UnitsDispensed)
}

func TestHistory_RecordsPerOperation(t *testing.T) {
	ctx := context.Background()
	m, _, log := newTestMachine(t, testConfig())

	_, err := m.InsertCoin(ctx, 100)
	require.NoError(t, err)
	require.NoError(t, m.SelectItem("Cola"))
	_, err = m.CommitPurchase(ctx)
	require.NoError(t, err)

	// insert, dispense, change_returned - most recent first.
	recent, err := log.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, history.KindChangeReturned, recent[0].Kind)
	assert.Equal(t, 50, recent[0].Amount)
	assert.Equal(t, history.KindDispense, recent[1].Kind)
	assert.Equal(t, []string{"Cola"}, recent[1].Items)
	assert.Equal(t, history.KindInsert, recent[2].Kind)

	// All three carry the same transaction token.
	assert.Equal(t, "txn-1", recent[0].Token)
	assert.Equal(t, recent[0].Token, recent[1].Token)
	assert.Equal(t, recent[1].Token, recent[2].Token)

	// Seqs strictly increase.
	assert.Greater(t, recent[0].Seq, recent[1].Seq)
	assert.Greater(t, recent[1].Seq, recent[2].Seq)
}

func TestTokens_NewTransactionPerCycle(t *testing.T) {
	ctx := context.Background()
	m, _, log := newTestMachine(t, testConfig())

	_, err := m.InsertCoin(ctx, 50)
	require.NoError(t, err)
	require.NoError(t, m.SelectItem("Cola"))
	_, err = m.CommitPurchase(ctx)
	require.NoError(t, err)

	_, err = m.InsertCoin(ctx, 1000)
	require.NoError(t, err)
	_, err = m.Cancel(ctx)
	require.NoError(t, err)

	recent, err := log.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "txn-2", recent[0].Token, "second cycle gets a fresh token")
}

func TestSnapshot_SelectionIsCopy(t *testing.T) {
	m, _, _ := newTestMachine(t, testConfig())

	require.NoError(t, m.SelectItem("Cola"))

	snap := m.Snapshot()
	snap.Selection[0] = "Sprite"

	assert.Equal(t, []string{"Cola"}, m.Snapshot().Selection)
}
