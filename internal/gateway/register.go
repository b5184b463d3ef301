package gateway

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/parkyard/parkyard/internal/billing"
	"github.com/parkyard/parkyard/internal/cashsession"
	"github.com/parkyard/parkyard/internal/ledger"
	"github.com/parkyard/parkyard/internal/money"
	"github.com/parkyard/parkyard/internal/shared"
)

// ErrTransitionInFlight is returned when a transition is requested while
// another one has not come back yet.
var ErrTransitionInFlight = shared.NewError(shared.KindStateConflict, "TRANSITION_IN_FLIGHT", "a cash session request is already in progress")

// Remote is the part of the API the register drives.
type Remote interface {
	SessionStatus(ctx context.Context) Result[cashsession.Status]
	OpenSession(ctx context.Context, initial money.Amount) Result[cashsession.Session]
	CloseSession(ctx context.Context, id int64, confirmDestroy bool) Result[cashsession.CloseResult]
	ReopenSession(ctx context.Context, id int64) Result[cashsession.Session]
	UpdateInitialValue(ctx context.Context, id int64, v money.Amount) Result[cashsession.Session]
	SessionLedger(ctx context.Context, id int64) Result[ledger.SessionTotals]
}

// Register keeps the device's view of the cash session. The cached session
// is only ever replaced by a server answer. One transition runs at a time.
type Register struct {
	remote Remote
	logger *slog.Logger

	mu       sync.Mutex
	inFlight bool
	status   cashsession.Status
	synced   time.Time
}

// NewRegister constructs a Register in the NOT_CREATED state. Call Refresh
// before relying on Status.
func NewRegister(remote Remote, logger *slog.Logger) *Register {
	if logger == nil {
		logger = slog.Default()
	}
	return &Register{remote: remote, logger: logger, status: cashsession.Status{State: cashsession.StateNotCreated}}
}

// Status returns the last server-confirmed status.
func (r *Register) Status() cashsession.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Busy reports whether a transition is in flight. UIs disable their controls
// while it is true.
func (r *Register) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inFlight
}

// Refresh re-reads the authoritative status, e.g. when a screen regains focus.
func (r *Register) Refresh(ctx context.Context) error {
	status, err := r.remote.SessionStatus(ctx).Unwrap()
	if err != nil {
		return err
	}
	r.store(status)
	return nil
}

// Open opens a new session with the given initial value.
func (r *Register) Open(ctx context.Context, initial money.Amount) (cashsession.Session, error) {
	if err := cashsession.ValidateInitialValue(initial); err != nil {
		return cashsession.Session{}, err
	}
	return r.sessionTransition(ctx, "open", cashsession.CanOpen, func(ctx context.Context, _ int64) Result[cashsession.Session] {
		return r.remote.OpenSession(ctx, initial)
	})
}

// Reopen resumes the closed session.
func (r *Register) Reopen(ctx context.Context) (cashsession.Session, error) {
	return r.sessionTransition(ctx, "reopen", cashsession.CanReopen, func(ctx context.Context, id int64) Result[cashsession.Session] {
		return r.remote.ReopenSession(ctx, id)
	})
}

// UpdateInitialValue edits the initial value of the current session.
func (r *Register) UpdateInitialValue(ctx context.Context, v money.Amount) (cashsession.Session, error) {
	if err := cashsession.ValidateInitialValue(v); err != nil {
		return cashsession.Session{}, err
	}
	return r.sessionTransition(ctx, "update_initial_value", cashsession.CanUpdateInitialValue, func(ctx context.Context, id int64) Result[cashsession.Session] {
		return r.remote.UpdateInitialValue(ctx, id, v)
	})
}

// Close closes the current session. When vehicles are still parked and
// confirmDestroy is false the result carries RequiresConfirmation and the
// session is left untouched; the caller asks the operator and calls Close
// again with confirmDestroy set.
func (r *Register) Close(ctx context.Context, confirmDestroy bool) (cashsession.CloseResult, error) {
	id, err := r.begin(ctx, cashsession.CanClose)
	if err != nil {
		return cashsession.CloseResult{}, err
	}
	defer r.end()

	res, err := r.remote.CloseSession(ctx, id, confirmDestroy).Unwrap()
	if err != nil {
		r.resync(ctx, "close", err)
		return cashsession.CloseResult{}, err
	}
	if res.RequiresConfirmation != nil {
		return res, nil
	}
	if res.Session != nil {
		r.store(cashsession.StatusOf(res.Session))
	}
	return res, nil
}

// Ledger fetches the server totals of the current session.
func (r *Register) Ledger(ctx context.Context) (ledger.SessionTotals, error) {
	status := r.Status()
	if status.Session == nil {
		return ledger.SessionTotals{}, cashsession.ErrSessionNotFound
	}
	return r.remote.SessionLedger(ctx, status.Session.ID).Unwrap()
}

// PreviewExit quotes a stay locally with the same calculator the server uses,
// for live display before the exit is committed.
func PreviewExit(method billing.Method, entry, exit time.Time, vt billing.VehicleType) (billing.Quote, error) {
	return billing.Compute(&method, entry, exit, vt)
}

// PreviewSettlement computes final amount and change for the payment form.
func PreviewSettlement(original, discount, received money.Amount) (ledger.Settlement, error) {
	return ledger.Settle(original, discount, received)
}

func (r *Register) sessionTransition(ctx context.Context, name string, rule func(cashsession.State) error, send func(context.Context, int64) Result[cashsession.Session]) (cashsession.Session, error) {
	id, err := r.begin(ctx, rule)
	if err != nil {
		return cashsession.Session{}, err
	}
	defer r.end()

	session, err := send(ctx, id).Unwrap()
	if err != nil {
		r.resync(ctx, name, err)
		return cashsession.Session{}, err
	}
	r.store(cashsession.StatusOf(&session))
	return session, nil
}

// begin claims the in-flight slot and checks rule against the cached state.
// A cached state that forbids the transition may be stale, so it is refreshed
// once before refusing.
func (r *Register) begin(ctx context.Context, rule func(cashsession.State) error) (int64, error) {
	r.mu.Lock()
	if r.inFlight {
		r.mu.Unlock()
		return 0, ErrTransitionInFlight
	}
	r.inFlight = true
	status := r.status
	r.mu.Unlock()

	if rule(status.State) != nil {
		if err := r.Refresh(ctx); err != nil {
			r.end()
			return 0, err
		}
		status = r.Status()
		if err := rule(status.State); err != nil {
			r.end()
			return 0, err
		}
	}
	var id int64
	if status.Session != nil {
		id = status.Session.ID
	}
	return id, nil
}

func (r *Register) end() {
	r.mu.Lock()
	r.inFlight = false
	r.mu.Unlock()
}

// resync re-reads the server state after a failed transition. The original
// error is what the caller sees.
func (r *Register) resync(ctx context.Context, name string, cause error) {
	if err := r.Refresh(ctx); err != nil {
		r.logger.Warn("resync after failed transition",
			slog.String("transition", name),
			slog.Any("cause", cause),
			slog.Any("error", err))
	}
}

func (r *Register) store(status cashsession.Status) {
	r.mu.Lock()
	r.status = status
	r.synced = time.Now()
	r.mu.Unlock()
}

// SyncedAt returns when the status was last confirmed by the server.
func (r *Register) SyncedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.synced
}
