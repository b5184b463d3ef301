package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/parkyard/parkyard/internal/cashsession"
	"github.com/parkyard/parkyard/internal/ledger"
	"github.com/parkyard/parkyard/internal/money"
	"github.com/parkyard/parkyard/internal/shared"
)

// SessionAPI is the part of gateway.Register the session command drives.
type SessionAPI interface {
	Refresh(ctx context.Context) error
	Status() cashsession.Status
	Open(ctx context.Context, initial money.Amount) (cashsession.Session, error)
	Close(ctx context.Context, confirmDestroy bool) (cashsession.CloseResult, error)
	Reopen(ctx context.Context) (cashsession.Session, error)
	UpdateInitialValue(ctx context.Context, v money.Amount) (cashsession.Session, error)
	Ledger(ctx context.Context) (ledger.SessionTotals, error)
}

// ExitNeedsConfirmation is returned by RunSession when close stopped at the
// parked-vehicles gate.
const ExitNeedsConfirmation = 2

// RunSession executes `parkyard session <status|open|close|reopen|set-initial|ledger>`
// against a running API and returns the exit code.
func RunSession(ctx context.Context, api SessionAPI, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "session: expected subcommand status, open, close, reopen, set-initial or ledger")
		return 1
	}
	if err := api.Refresh(ctx); err != nil {
		return report(stderr, "session", err)
	}

	switch args[0] {
	case "status":
		printStatus(stdout, api.Status())
		return 0
	case "open", "set-initial":
		if len(args) != 2 {
			fmt.Fprintf(stderr, "session %s: expected an amount, e.g. 100,00\n", args[0])
			return 1
		}
		amount, err := money.ParseDisplay(args[1])
		if err != nil {
			return report(stderr, "session "+args[0], err)
		}
		var s cashsession.Session
		if args[0] == "open" {
			s, err = api.Open(ctx, amount)
		} else {
			s, err = api.UpdateInitialValue(ctx, amount)
		}
		if err != nil {
			return report(stderr, "session "+args[0], err)
		}
		printSession(stdout, s)
		return 0
	case "close":
		fs := flag.NewFlagSet("session close", flag.ContinueOnError)
		fs.SetOutput(stderr)
		confirm := fs.Bool("confirm", false, "discard vehicles still parked and close anyway")
		if err := fs.Parse(args[1:]); err != nil {
			return 1
		}
		res, err := api.Close(ctx, *confirm)
		if err != nil {
			return report(stderr, "session close", err)
		}
		if res.RequiresConfirmation != nil {
			fmt.Fprintf(stdout, "close needs confirmation: %s %v\n", res.RequiresConfirmation.Reason, res.RequiresConfirmation.Details["count"])
			fmt.Fprintln(stdout, "rerun with --confirm to discard those vehicles permanently")
			return ExitNeedsConfirmation
		}
		if res.Session != nil {
			printSession(stdout, *res.Session)
		}
		if res.DiscardedVehicles > 0 {
			fmt.Fprintf(stdout, "discarded %d vehicles\n", res.DiscardedVehicles)
		}
		return 0
	case "reopen":
		s, err := api.Reopen(ctx)
		if err != nil {
			return report(stderr, "session reopen", err)
		}
		printSession(stdout, s)
		return 0
	case "ledger":
		totals, err := api.Ledger(ctx)
		if err != nil {
			return report(stderr, "session ledger", err)
		}
		printTotals(stdout, totals)
		return 0
	default:
		fmt.Fprintf(stderr, "session: unknown subcommand %q\n", args[0])
		return 1
	}
}

func report(w io.Writer, op string, err error) int {
	var e *shared.Error
	if errors.As(err, &e) {
		fmt.Fprintf(w, "%s: %s (%s)\n", op, e.Message, e.Code)
		return 1
	}
	fmt.Fprintf(w, "%s: %v\n", op, err)
	return 1
}

func printStatus(w io.Writer, st cashsession.Status) {
	if st.Session == nil {
		fmt.Fprintf(w, "state=%s\n", st.State)
		return
	}
	printSession(w, *st.Session)
}

func printSession(w io.Writer, s cashsession.Session) {
	fmt.Fprintf(w, "session=%d state=%s initial=%s", s.ID, s.State, money.Format(s.InitialValue))
	if s.OpeningDate != nil {
		fmt.Fprintf(w, " opened=%s", s.OpeningDate.Format("2006-01-02 15:04"))
	}
	if s.ClosingDate != nil {
		fmt.Fprintf(w, " closed=%s", s.ClosingDate.Format("2006-01-02 15:04"))
	}
	fmt.Fprintln(w)
}

func printTotals(w io.Writer, t ledger.SessionTotals) {
	fmt.Fprintf(w, "session=%d initial=%s\n", t.SessionID, money.Format(t.InitialValue))
	for _, pm := range ledger.PaymentMethods {
		in, out := t.ByMethod[pm], t.ExpensesByMethod[pm]
		if in.IsZero() && out.IsZero() {
			continue
		}
		fmt.Fprintf(w, "  %-6s in=%s out=%s\n", pm, money.Format(in), money.Format(out))
	}
	fmt.Fprintf(w, "vehicles=%s products=%s expenses=%s final=%s\n",
		money.Format(t.VehicleTotal), money.Format(t.ProductTotal), money.Format(t.ExpenseTotal), money.Format(t.FinalValue))
	for _, warn := range t.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn.Code)
	}
}
