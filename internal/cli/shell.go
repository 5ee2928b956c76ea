package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/roach88/vendo/internal/admin"
	"github.com/roach88/vendo/internal/history"
	"github.com/roach88/vendo/internal/machine"
)

// shell is the interactive session driver for the run command.
//
// It translates text commands into engine calls and renders the results.
// All transactional decisions stay inside the machine.
type shell struct {
	machine *machine.Machine
	panel   *admin.Panel
	in      io.Reader
	out     io.Writer
	fmt     *OutputFormatter
	cfg     machine.Config
}

func newShell(m *machine.Machine, panel *admin.Panel, in io.Reader, out io.Writer, opts *RootOptions) *shell {
	return &shell{
		machine: m,
		panel:   panel,
		in:      in,
		out:     out,
		fmt:     &OutputFormatter{Format: opts.Format, Writer: out},
		cfg:     m.Config(),
	}
}

// loop reads commands until EOF, "exit", or context cancellation.
func (s *shell) loop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.banner()

	scanner := bufio.NewScanner(s.in)
	for {
		fmt.Fprint(s.out, "> ")
		if !scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			fmt.Fprintln(s.out, "Goodbye.")
			return nil
		}

		s.dispatch(ctx, strings.Fields(line))
	}

	return scanner.Err()
}

func (s *shell) banner() {
	fmt.Fprintf(s.out, "Vending machine ready. All items cost %s.\n", s.fmt.Amount(s.cfg.UnitPrice, s.cfg.Currency))
	fmt.Fprintf(s.out, "Accepted denominations: %s\n", joinInts(s.cfg.Denominations))
	fmt.Fprintln(s.out, `Type "help" for commands.`)
}

func (s *shell) dispatch(ctx context.Context, fields []string) {
	switch fields[0] {
	case "help":
		s.help()
	case "insert":
		s.insert(ctx, fields[1:])
	case "select":
		s.selectItem(fields[1:])
	case "commit":
		s.commit(ctx)
	case "cancel":
		s.cancel(ctx)
	case "state":
		s.state()
	case "stock":
		s.stock()
	case "history":
		s.history(ctx, fields[1:])
	case "admin":
		s.admin(ctx, fields[1:])
	default:
		s.fail(fmt.Sprintf("unknown command %q - type \"help\"", fields[0]))
	}
}

func (s *shell) help() {
	fmt.Fprint(s.out, `Commands:
  insert <amount>              insert a coin
  select <item>                add an item to the selection
  commit                       dispense the selection and return change
  cancel                       cancel the transaction and refund the balance
  state                        show phase, balance, and selection
  stock                        show per-item stock
  history [n]                  show the n most recent records (default 5)
  admin <secret> restock <item> <n>
  admin <secret> refill
  admin <secret> report
  admin <secret> clear-history
  admin <secret> reset-counter
  admin <secret> rotate <new-secret>
  exit                         leave the shell
`)
}

func (s *shell) insert(ctx context.Context, args []string) {
	if len(args) != 1 {
		s.fail("usage: insert <amount>")
		return
	}
	denom, err := strconv.Atoi(args[0])
	if err != nil {
		s.fail(fmt.Sprintf("invalid amount %q", args[0]))
		return
	}

	balance, err := s.machine.InsertCoin(ctx, denom)
	if err != nil {
		s.fail(err.Error())
		return
	}
	s.ok(fmt.Sprintf("Inserted %s. Balance: %s",
		s.fmt.Amount(denom, s.cfg.Currency), s.fmt.Amount(balance, s.cfg.Currency)))
}

func (s *shell) selectItem(args []string) {
	if len(args) != 1 {
		s.fail("usage: select <item>")
		return
	}

	if err := s.machine.SelectItem(args[0]); err != nil {
		s.fail(err.Error())
		return
	}
	snap := s.machine.Snapshot()
	s.ok(fmt.Sprintf("Selected %s. Selection: %s", args[0], strings.Join(snap.Selection, ", ")))
}

func (s *shell) commit(ctx context.Context) {
	res, err := s.machine.CommitPurchase(ctx)
	if err != nil {
		s.fail(err.Error())
		return
	}

	msg := fmt.Sprintf("Dispensed: %s.", strings.Join(res.Dispensed, ", "))
	if res.Change > 0 {
		msg += fmt.Sprintf(" Change: %s.", s.fmt.Amount(res.Change, s.cfg.Currency))
	} else {
		msg += " No change."
	}
	s.ok(msg)
}

func (s *shell) cancel(ctx context.Context) {
	refund, err := s.machine.Cancel(ctx)
	if err != nil {
		s.fail(err.Error())
		return
	}
	s.ok(fmt.Sprintf("Transaction cancelled. Refunded %s.", s.fmt.Amount(refund, s.cfg.Currency)))
}

func (s *shell) state() {
	snap := s.machine.Snapshot()
	if s.fmt.Format == "json" {
		_ = s.fmt.Success(snap)
		return
	}
	fmt.Fprintf(s.out, "Phase: %s\n", snap.Phase)
	fmt.Fprintf(s.out, "Balance: %s\n", s.fmt.Amount(snap.Balance, s.cfg.Currency))
	if len(snap.Selection) > 0 {
		fmt.Fprintf(s.out, "Selection: %s\n", strings.Join(snap.Selection, ", "))
	} else {
		fmt.Fprintln(s.out, "Selection: none")
	}
}

func (s *shell) stock() {
	ledger := s.machine.Ledger()
	if s.fmt.Format == "json" {
		_ = s.fmt.Success(ledger.Snapshot())
		return
	}
	for _, id := range ledger.Items() {
		n, err := ledger.Stock(id)
		if err != nil {
			continue
		}
		fmt.Fprintf(s.out, "%-10s %d\n", id, n)
	}
}

func (s *shell) history(ctx context.Context, args []string) {
	n := 5
	if len(args) == 1 {
		parsed, err := strconv.Atoi(args[0])
		if err != nil || parsed <= 0 {
			s.fail(fmt.Sprintf("invalid count %q", args[0]))
			return
		}
		n = parsed
	}

	records, err := s.machine.History().Recent(ctx, n)
	if err != nil {
		s.fail(err.Error())
		return
	}
	if s.fmt.Format == "json" {
		_ = s.fmt.Success(records)
		return
	}
	if len(records) == 0 {
		fmt.Fprintln(s.out, "No transactions yet.")
		return
	}
	for _, rec := range records {
		s.printRecord(rec)
	}
}

func (s *shell) admin(ctx context.Context, args []string) {
	if len(args) < 2 {
		s.fail("usage: admin <secret> <restock|refill|report|clear-history|reset-counter|rotate> ...")
		return
	}
	secret, action := args[0], args[1]
	rest := args[2:]

	var err error
	switch action {
	case "restock":
		if len(rest) != 2 {
			s.fail("usage: admin <secret> restock <item> <n>")
			return
		}
		var n int
		n, err = strconv.Atoi(rest[1])
		if err != nil {
			s.fail(fmt.Sprintf("invalid count %q", rest[1]))
			return
		}
		if err = s.panel.Restock(ctx, secret, rest[0], n); err == nil {
			s.ok(fmt.Sprintf("Stock for %s set to %d.", rest[0], n))
		}

	case "refill":
		if err = s.panel.RefillAll(ctx, secret); err == nil {
			s.ok("All stock refilled to capacity.")
		}

	case "report":
		var rep machine.Report
		if rep, err = s.panel.Report(secret); err == nil {
			if s.fmt.Format == "json" {
				_ = s.fmt.Success(rep)
			} else {
				fmt.Fprintf(s.out, "Units dispensed: %d\n", rep.UnitsDispensed)
				fmt.Fprintf(s.out, "Revenue: %s\n", s.fmt.Amount(rep.Revenue, s.cfg.Currency))
			}
		}

	case "clear-history":
		if err = s.panel.ClearHistory(ctx, secret); err == nil {
			s.ok("History cleared.")
		}

	case "rotate":
		if len(rest) != 1 {
			s.fail("usage: admin <secret> rotate <new-secret>")
			return
		}
		if err = s.panel.RotateSecret(ctx, secret, rest[0]); err == nil {
			s.ok("Admin secret rotated.")
		}

	case "reset-counter":
		if err = s.panel.ResetCounter(ctx, secret); err == nil {
			s.ok("Sales counter reset.")
		}

	default:
		s.fail(fmt.Sprintf("unknown admin action %q", action))
		return
	}

	if err != nil {
		if errors.Is(err, admin.ErrAccessDenied) {
			s.fail("access denied")
			return
		}
		s.fail(err.Error())
	}
}

func (s *shell) printRecord(rec history.Record) {
	line := fmt.Sprintf("#%d  %-15s %s", rec.Seq, rec.Kind, rec.Token)
	if rec.Amount != 0 {
		line += "  " + s.fmt.Amount(rec.Amount, s.cfg.Currency)
	}
	if len(rec.Items) > 0 {
		line += "  " + strings.Join(rec.Items, ", ")
	}
	if rec.Note != "" {
		line += "  " + rec.Note
	}
	fmt.Fprintln(s.out, line)
}

func (s *shell) ok(msg string) {
	if s.fmt.Format == "json" {
		_ = s.fmt.Success(msg)
		return
	}
	fmt.Fprintln(s.out, msg)
}

func (s *shell) fail(msg string) {
	_ = s.fmt.Error(msg)
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}
