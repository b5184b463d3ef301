package cashsession

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/parkyard/parkyard/internal/money"
	"github.com/parkyard/parkyard/internal/platform/db"
	"github.com/parkyard/parkyard/internal/shared"
)

// RepositoryPort is the persistence surface the service needs.
type RepositoryPort interface {
	Current(ctx context.Context, lock bool) (*Session, error)
	Get(ctx context.Context, id int64, lock bool) (*Session, error)
	Insert(ctx context.Context, s Session) (*Session, error)
	Save(ctx context.Context, s Session) (*Session, error)
	OpenSince(ctx context.Context, before time.Time) ([]Session, error)
}

// Locker serialises transitions across processes.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(context.Context) error) error
}

// ParkedVehicles is the close gate's view of the lot.
type ParkedVehicles interface {
	CountInside(ctx context.Context) (int, error)
	// DiscardInside marks every INSIDE stay DELETED and non-returnable.
	DiscardInside(ctx context.Context, reason string) (int, error)
}

// LedgerInvalidator drops cached totals for a session.
type LedgerInvalidator interface {
	Invalidate(ctx context.Context, sessionID int64) error
}

// AuditRecorder records transitions.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// TransitionObserver counts transitions.
type TransitionObserver interface {
	ObserveTransition(transition string, err error)
}

// Deps groups the collaborators of Service.
type Deps struct {
	Repo    RepositoryPort
	Tx      db.Runner
	Locker  Locker
	Parked  ParkedVehicles
	Ledger  LedgerInvalidator
	Audit   AuditRecorder
	Metrics TransitionObserver
	Logger  *slog.Logger
}

// Service is the sole authority over the OPEN flag.
type Service struct {
	repo    RepositoryPort
	tx      db.Runner
	locker  Locker
	parked  ParkedVehicles
	ledger  LedgerInvalidator
	audit   AuditRecorder
	metrics TransitionObserver
	logger  *slog.Logger
	now     func() time.Time
	onClose []func(context.Context, Session)
}

// NewService constructs a Service.
func NewService(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tx := deps.Tx
	if tx == nil {
		tx = db.NoTx{}
	}
	return &Service{
		repo:    deps.Repo,
		tx:      tx,
		locker:  deps.Locker,
		parked:  deps.Parked,
		ledger:  deps.Ledger,
		audit:   deps.Audit,
		metrics: deps.Metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// WithNow overrides the clock.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Attach sets the collaborators that themselves depend on Service.
// It must be called before the service handles requests.
func (s *Service) Attach(parked ParkedVehicles, ledger LedgerInvalidator) {
	if parked != nil {
		s.parked = parked
	}
	if ledger != nil {
		s.ledger = ledger
	}
}

// OnClose registers a hook called after a close commits.
func (s *Service) OnClose(fn func(context.Context, Session)) {
	if fn != nil {
		s.onClose = append(s.onClose, fn)
	}
}

// Status returns the current state of the register.
func (s *Service) Status(ctx context.Context) (Status, error) {
	current, err := s.repo.Current(ctx, false)
	if err != nil {
		return Status{}, err
	}
	return StatusOf(current), nil
}

// Get returns a session by id.
func (s *Service) Get(ctx context.Context, id int64) (*Session, error) {
	return s.repo.Get(ctx, id, false)
}

// RequireOpen returns the OPEN session or ErrNoOpenSession.
func (s *Service) RequireOpen(ctx context.Context) (*Session, error) {
	current, err := s.repo.Current(ctx, false)
	if err != nil {
		return nil, err
	}
	if current == nil || current.State != StateOpen {
		return nil, ErrNoOpenSession
	}
	return current, nil
}

// OpenSince lists sessions that have been OPEN since before the cutoff.
func (s *Service) OpenSince(ctx context.Context, before time.Time) ([]Session, error) {
	return s.repo.OpenSince(ctx, before)
}

// Open starts a new session from NOT_CREATED or CLOSED.
func (s *Service) Open(ctx context.Context, initialValue money.Amount) (*Session, error) {
	if err := ValidateInitialValue(initialValue); err != nil {
		s.observe("open", err)
		return nil, err
	}
	op, _ := shared.OperatorFromContext(ctx)
	var opened *Session
	err := s.transition(ctx, "open", func(ctx context.Context) error {
		current, err := s.repo.Current(ctx, true)
		if err != nil {
			return err
		}
		if err := CanOpen(StatusOf(current).State); err != nil {
			return err
		}
		now := s.now()
		opened, err = s.repo.Insert(ctx, Session{
			OperatorID:   op.ID,
			Operator:     op.Username,
			State:        StateOpen,
			InitialValue: initialValue,
			OpeningDate:  &now,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if err != nil {
			return err
		}
		return s.record(ctx, op, "cash_session.open", opened.ID, map[string]any{"initial_value": initialValue.String()})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("cash session opened", slog.Int64("session_id", opened.ID), slog.String("initial_value", initialValue.String()))
	return opened, nil
}

// Close closes an OPEN session. When stays are still INSIDE and confirm is
// false it returns a CloseResult asking for confirmation together with
// ErrVehiclesStillParked, and nothing changes.
func (s *Service) Close(ctx context.Context, id int64, confirmDestroy bool) (CloseResult, error) {
	op, _ := shared.OperatorFromContext(ctx)
	var result CloseResult
	err := s.transition(ctx, "close", func(ctx context.Context) error {
		result = CloseResult{}
		current, err := s.load(ctx, id, CanClose)
		if err != nil {
			return err
		}
		if err := CanClose(current.State); err != nil {
			return err
		}
		count, err := s.countInside(ctx)
		if err != nil {
			return err
		}
		if count > 0 && !confirmDestroy {
			confirmation, err := ParkedConfirmation(count)
			result.RequiresConfirmation = confirmation
			return err
		}
		if count > 0 {
			discarded, err := s.parked.DiscardInside(ctx, "cash session closed")
			if err != nil {
				return err
			}
			result.DiscardedVehicles = discarded
		}
		now := s.now()
		current.State = StateClosed
		current.ClosingDate = &now
		current.UpdatedAt = now
		closed, err := s.repo.Save(ctx, *current)
		if err != nil {
			return err
		}
		result.Session = closed
		return s.record(ctx, op, "cash_session.close", closed.ID, map[string]any{"discarded_vehicles": result.DiscardedVehicles})
	})
	if err != nil {
		return result, err
	}
	s.invalidate(ctx, id)
	s.logger.Info("cash session closed", slog.Int64("session_id", id), slog.Int("discarded_vehicles", result.DiscardedVehicles))
	for _, fn := range s.onClose {
		fn(ctx, *result.Session)
	}
	return result, nil
}

// Reopen resumes a CLOSED session with its identity, opening date, initial
// value and transactions intact.
func (s *Service) Reopen(ctx context.Context, id int64) (*Session, error) {
	op, _ := shared.OperatorFromContext(ctx)
	var reopened *Session
	err := s.transition(ctx, "reopen", func(ctx context.Context) error {
		current, err := s.repo.Current(ctx, true)
		if err != nil {
			return err
		}
		if current != nil && current.State == StateOpen && current.ID != id {
			return ErrInvalidTransition.Wrapf("session %d is already open", current.ID)
		}
		target, err := s.load(ctx, id, CanReopen)
		if err != nil {
			return err
		}
		if err := CanReopen(target.State); err != nil {
			return err
		}
		target.State = StateOpen
		target.ClosingDate = nil
		target.UpdatedAt = s.now()
		reopened, err = s.repo.Save(ctx, *target)
		if err != nil {
			return err
		}
		return s.record(ctx, op, "cash_session.reopen", reopened.ID, nil)
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	s.logger.Info("cash session reopened", slog.Int64("session_id", id))
	return reopened, nil
}

// UpdateInitialValue edits the opening float of an OPEN or CLOSED session.
func (s *Service) UpdateInitialValue(ctx context.Context, id int64, value money.Amount) (*Session, error) {
	if err := ValidateInitialValue(value); err != nil {
		s.observe("update_initial_value", err)
		return nil, err
	}
	op, _ := shared.OperatorFromContext(ctx)
	var updated *Session
	err := s.transition(ctx, "update_initial_value", func(ctx context.Context) error {
		current, err := s.load(ctx, id, CanUpdateInitialValue)
		if err != nil {
			return err
		}
		if err := CanUpdateInitialValue(current.State); err != nil {
			return err
		}
		previous := current.InitialValue
		current.InitialValue = value
		current.UpdatedAt = s.now()
		updated, err = s.repo.Save(ctx, *current)
		if err != nil {
			return err
		}
		return s.record(ctx, op, "cash_session.update_initial_value", id, map[string]any{
			"from": previous.String(),
			"to":   value.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return updated, nil
}

func (s *Service) transition(ctx context.Context, name string, fn func(context.Context) error) error {
	run := func(ctx context.Context) error {
		return s.tx.InTx(ctx, fn)
	}
	var err error
	if s.locker != nil {
		err = s.locker.WithLock(ctx, shared.CashSessionLockKey, run)
	} else {
		err = run(ctx)
	}
	s.observe(name, err)
	if err != nil && shared.KindOf(err) == shared.KindInternal {
		s.logger.Error("cash session transition failed", slog.String("transition", name), slog.Any("error", err))
	}
	return err
}

// load locks the session for a transition. When no session was ever created
// the rule is evaluated against NOT_CREATED instead of reporting not found.
func (s *Service) load(ctx context.Context, id int64, rule func(State) error) (*Session, error) {
	sess, err := s.repo.Get(ctx, id, true)
	if err == nil || !errors.Is(err, ErrSessionNotFound) {
		return sess, err
	}
	latest, lerr := s.repo.Current(ctx, false)
	if lerr != nil {
		return nil, lerr
	}
	if latest == nil {
		if rerr := rule(StateNotCreated); rerr != nil {
			return nil, rerr
		}
	}
	return nil, err
}

func (s *Service) countInside(ctx context.Context) (int, error) {
	if s.parked == nil {
		return 0, nil
	}
	return s.parked.CountInside(ctx)
}

func (s *Service) invalidate(ctx context.Context, id int64) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.Invalidate(ctx, id); err != nil {
		s.logger.Warn("invalidate ledger cache", slog.Int64("session_id", id), slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, op shared.Operator, action string, id int64, meta map[string]any) error {
	if s.audit == nil {
		return nil
	}
	return s.audit.Record(ctx, shared.AuditLog{
		ActorID:  op.ID,
		Action:   action,
		Entity:   "cash_session",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       s.now(),
	})
}

func (s *Service) observe(name string, err error) {
	if s.metrics != nil {
		s.metrics.ObserveTransition(name, err)
	}
}
