package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/vendo/internal/history"
	"github.com/roach88/vendo/internal/machine"
)

// Run executes a scenario against a fresh machine and returns the result.
//
// Isolation per run: in-memory history log, sequential "txn-N" transaction
// tokens, and a machine built from the scenario's config. Two runs of the
// same scenario produce identical traces.
func Run(sc *Scenario) (*Result, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	cfg := sc.buildConfig()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scenario config: %w", err)
	}

	log, err := history.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("open scenario history: %w", err)
	}
	defer log.Close()

	// Scenario runs are about traces, not logs; discard engine logging.
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	m, _, err := machine.NewFromConfig(cfg, log,
		machine.WithTokenGenerator(machine.NewCounterGenerator("txn")),
		machine.WithLogger(quiet),
	)
	if err != nil {
		return nil, fmt.Errorf("build scenario machine: %w", err)
	}

	ctx := context.Background()
	result := NewResult()

	for i, step := range sc.Steps {
		ev := executeStep(ctx, m, i+1, step)
		result.Trace = append(result.Trace, ev)
		checkExpect(i+1, step, ev, result)
	}

	for _, a := range sc.Assertions {
		a.check(ctx, m, result)
	}

	return result, nil
}

// executeStep runs one operation and captures the trace event.
func executeStep(ctx context.Context, m *machine.Machine, seq int, step Step) TraceEvent {
	ev := TraceEvent{
		Seq:          seq,
		Op:           step.Op,
		Denomination: step.Denomination,
		Item:         step.Item,
		Outcome:      "ok",
	}

	var err error
	switch step.Op {
	case OpInsert:
		_, err = m.InsertCoin(ctx, step.Denomination)

	case OpSelect:
		err = m.SelectItem(step.Item)

	case OpCommit:
		var res machine.CommitResult
		res, err = m.CommitPurchase(ctx)
		if err == nil {
			ev.Dispensed = res.Dispensed
			ev.Change = res.Change
		}

	case OpCancel:
		var refund int
		refund, err = m.Cancel(ctx)
		if err == nil {
			ev.Refund = refund
		}

	case OpRestock:
		ev.Count = step.Count
		err = m.Restock(ctx, step.Item, step.Count)

	case OpRefill:
		m.RefillAll(ctx)

	case OpClearHistory:
		err = m.History().Clear(ctx)
	}

	if err != nil {
		if code := machine.CodeOf(err); code != "" {
			ev.Outcome = string(code)
		} else {
			ev.Outcome = err.Error()
		}
	}

	snap := m.Snapshot()
	ev.Balance = snap.Balance
	ev.Phase = string(snap.Phase)
	return ev
}

// checkExpect validates a step's expect clause against its trace event.
func checkExpect(seq int, step Step, ev TraceEvent, result *Result) {
	exp := step.Expect
	if exp == nil {
		// Steps without an expect clause are assumed to succeed.
		if ev.Outcome != "ok" {
			result.AddError("step %d (%s): unexpected failure %s", seq, step.Op, ev.Outcome)
		}
		return
	}

	wantOutcome := "ok"
	if exp.Error != "" {
		wantOutcome = exp.Error
	}
	if ev.Outcome != wantOutcome {
		result.AddError("step %d (%s): outcome %s, want %s", seq, step.Op, ev.Outcome, wantOutcome)
	}

	if exp.Balance != nil && ev.Balance != *exp.Balance {
		result.AddError("step %d (%s): balance %d, want %d", seq, step.Op, ev.Balance, *exp.Balance)
	}
	if exp.Phase != "" && ev.Phase != exp.Phase {
		result.AddError("step %d (%s): phase %s, want %s", seq, step.Op, ev.Phase, exp.Phase)
	}
	if exp.Change != nil && ev.Change != *exp.Change {
		result.AddError("step %d (%s): change %d, want %d", seq, step.Op, ev.Change, *exp.Change)
	}
	if exp.Refund != nil && ev.Refund != *exp.Refund {
		result.AddError("step %d (%s): refund %d, want %d", seq, step.Op, ev.Refund, *exp.Refund)
	}
	if len(exp.Dispensed) > 0 && !slices.Equal(ev.Dispensed, exp.Dispensed) {
		result.AddError("step %d (%s): dispensed %v, want %v", seq, step.Op, ev.Dispensed, exp.Dispensed)
	}
}
