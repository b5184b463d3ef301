package vehicles

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/parkyard/parkyard/internal/billing"
	"github.com/parkyard/parkyard/internal/cashsession"
	"github.com/parkyard/parkyard/internal/ledger"
	"github.com/parkyard/parkyard/internal/money"
	"github.com/parkyard/parkyard/internal/platform/db"
	"github.com/parkyard/parkyard/internal/shared"
)

// IdempotencyModule scopes exit idempotency keys.
const IdempotencyModule = "vehicle_exit"

// RepositoryPort is the stay store.
type RepositoryPort interface {
	Insert(ctx context.Context, s Stay) (Stay, error)
	Get(ctx context.Context, id int64, lock bool) (Stay, error)
	PlateInside(ctx context.Context, plate string) (bool, error)
	ListInside(ctx context.Context) ([]Stay, error)
	CountInside(ctx context.Context) (int, error)
	MarkExited(ctx context.Context, id int64, exit time.Time, transactionID int64) (Stay, error)
	MarkDeleted(ctx context.Context, id int64, permanent bool, reason string, at time.Time) (Stay, error)
	DeleteAllInside(ctx context.Context, reason string, at time.Time) (int, error)
	Restore(ctx context.Context, id int64) (Stay, error)
}

// Methods resolves billing methods assignable to new entries.
type Methods interface {
	Assignable(ctx context.Context, id int64) (billing.Method, error)
}

// OpenSession answers whether the lot is operating.
type OpenSession interface {
	RequireOpen(ctx context.Context) (*cashsession.Session, error)
}

// Ledger books exit transactions.
type Ledger interface {
	Append(ctx context.Context, d ledger.Draft) (ledger.Transaction, error)
	Invalidate(ctx context.Context, sessionID int64) error
}

// Idempotency rejects replayed exit requests.
type Idempotency interface {
	CheckAndInsert(ctx context.Context, key, module string) error
}

// ExitObserver counts committed exits.
type ExitObserver interface {
	ObserveVehicleExit(paymentMethod string)
}

// Deps groups the collaborators of Service.
type Deps struct {
	Repo        RepositoryPort
	Methods     Methods
	Sessions    OpenSession
	Ledger      Ledger
	Idempotency Idempotency
	Tx          db.Runner
	Metrics     ExitObserver
	Logger      *slog.Logger
}

// Service runs the vehicle lifecycle.
type Service struct {
	repo        RepositoryPort
	methods     Methods
	sessions    OpenSession
	ledger      Ledger
	idempotency Idempotency
	tx          db.Runner
	metrics     ExitObserver
	logger      *slog.Logger
	now         func() time.Time
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
		repo:        deps.Repo,
		methods:     deps.Methods,
		sessions:    deps.Sessions,
		ledger:      deps.Ledger,
		idempotency: deps.Idempotency,
		tx:          tx,
		metrics:     deps.Metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// WithNow overrides the clock.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Enter registers a vehicle. The lot must be operating and the plate must not
// already be inside.
func (s *Service) Enter(ctx context.Context, in EntryInput) (Stay, error) {
	plate, err := NormalizePlate(in.Plate)
	if err != nil {
		return Stay{}, err
	}
	if !in.VehicleType.Valid() {
		return Stay{}, billing.ErrUnknownVehicleType.Wrapf("%q", in.VehicleType)
	}
	op, _ := shared.OperatorFromContext(ctx)
	var created Stay
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.sessions.RequireOpen(ctx); err != nil {
			return err
		}
		method, err := s.methods.Assignable(ctx, in.BillingMethodID)
		if err != nil {
			return err
		}
		inside, err := s.repo.PlateInside(ctx, plate)
		if err != nil {
			return err
		}
		if inside {
			return ErrAlreadyInside.Wrapf("%s", plate)
		}
		created, err = s.repo.Insert(ctx, Stay{
			Plate:           plate,
			VehicleType:     in.VehicleType,
			BillingMethodID: method.ID,
			Method:          method,
			EntryTime:       s.now(),
			Status:          StatusInside,
			OperatorID:      op.ID,
			Operator:        op.Username,
			Observation:     strings.TrimSpace(in.Observation),
		})
		return err
	})
	if err != nil {
		return Stay{}, err
	}
	s.logger.Info("vehicle entered", slog.Int64("stay_id", created.ID), slog.String("plate", created.Plate))
	return created, nil
}

// Get returns a stay.
func (s *Service) Get(ctx context.Context, id int64) (Stay, error) {
	return s.repo.Get(ctx, id, false)
}

// ListInside returns the vehicles currently on the lot.
func (s *Service) ListInside(ctx context.Context) ([]Stay, error) {
	return s.repo.ListInside(ctx)
}

// CountInside counts the vehicles currently on the lot.
func (s *Service) CountInside(ctx context.Context) (int, error) {
	return s.repo.CountInside(ctx)
}

// DiscardInside permanently removes every INSIDE stay. Cash session close
// calls it inside its own transaction.
func (s *Service) DiscardInside(ctx context.Context, reason string) (int, error) {
	n, err := s.repo.DeleteAllInside(ctx, reason, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Warn("discarded parked vehicles", slog.Int("count", n), slog.String("reason", reason))
	}
	return n, nil
}

// Calculate quotes a stay as if it exited at at (now when zero). It writes nothing.
func (s *Service) Calculate(ctx context.Context, id int64, at time.Time) (Calculation, error) {
	stay, err := s.repo.Get(ctx, id, false)
	if err != nil {
		return Calculation{}, err
	}
	if stay.Status != StatusInside {
		return Calculation{}, ErrNotInside
	}
	if at.IsZero() {
		at = s.now()
	}
	q, err := billing.Compute(&stay.Method, stay.EntryTime, at, stay.VehicleType)
	if err != nil {
		return Calculation{}, err
	}
	return Calculation{
		StayID:         stay.ID,
		At:             at,
		Quote:          q,
		Amount:         q.Amount,
		ElapsedMinutes: q.ElapsedMinutes,
		Display:        money.Format(q.Amount),
	}, nil
}

// CommitExit prices the stay server-side, books the VEHICLE_EXIT transaction
// against the OPEN session and marks the stay EXITED, all in one database
// transaction.
func (s *Service) CommitExit(ctx context.Context, id int64, in ExitInput) (ExitResult, error) {
	op, _ := shared.OperatorFromContext(ctx)
	var res ExitResult
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if s.idempotency != nil && in.IdempotencyKey != "" {
			if err := s.idempotency.CheckAndInsert(ctx, in.IdempotencyKey, IdempotencyModule); err != nil {
				return err
			}
		}
		session, err := s.sessions.RequireOpen(ctx)
		if err != nil {
			return err
		}
		stay, err := s.repo.Get(ctx, id, true)
		if err != nil {
			return err
		}
		if stay.Status != StatusInside {
			return ErrNotInside
		}
		exit := s.now()
		q, err := billing.Compute(&stay.Method, stay.EntryTime, exit, stay.VehicleType)
		if err != nil {
			return err
		}
		ref := stay.ID
		t, err := s.ledger.Append(ctx, ledger.Draft{
			Type:           ledger.TypeVehicleExit,
			SessionID:      session.ID,
			Operator:       op,
			PaymentMethod:  in.PaymentMethod,
			OriginalAmount: q.Amount,
			DiscountAmount: in.Discount,
			AmountReceived: in.AmountReceived,
			Reference:      &ref,
			At:             exit,
		})
		if err != nil {
			return err
		}
		exited, err := s.repo.MarkExited(ctx, stay.ID, exit, t.ID)
		if err != nil {
			return err
		}
		res = ExitResult{Stay: exited, Transaction: t, Quote: q}
		return nil
	})
	if err != nil {
		return ExitResult{}, err
	}
	if err := s.ledger.Invalidate(ctx, res.Transaction.SessionID); err != nil {
		s.logger.Warn("invalidate ledger cache", slog.Int64("session_id", res.Transaction.SessionID), slog.Any("error", err))
	}
	if s.metrics != nil {
		s.metrics.ObserveVehicleExit(string(in.PaymentMethod))
	}
	s.logger.Info("vehicle exited",
		slog.Int64("stay_id", id),
		slog.String("amount", res.Transaction.FinalAmount.String()),
		slog.String("payment_method", string(in.PaymentMethod)))
	return res, nil
}

// Delete removes an INSIDE stay from the lot. A non-permanent delete can be
// undone with Restore.
func (s *Service) Delete(ctx context.Context, id int64, permanent bool, reason string) (Stay, error) {
	var deleted Stay
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		stay, err := s.repo.Get(ctx, id, true)
		if err != nil {
			return err
		}
		if stay.Status != StatusInside {
			return ErrNotInside
		}
		deleted, err = s.repo.MarkDeleted(ctx, id, permanent, strings.TrimSpace(reason), s.now())
		return err
	})
	if err != nil {
		return Stay{}, err
	}
	s.logger.Info("vehicle removed", slog.Int64("stay_id", id), slog.Bool("permanent", permanent))
	return deleted, nil
}

// Restore returns a non-permanently deleted stay to INSIDE, keeping its entry time.
func (s *Service) Restore(ctx context.Context, id int64) (Stay, error) {
	var restored Stay
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		stay, err := s.repo.Get(ctx, id, true)
		if err != nil {
			return err
		}
		if stay.Status != StatusDeleted || stay.Permanent {
			return ErrNotRestorable
		}
		inside, err := s.repo.PlateInside(ctx, stay.Plate)
		if err != nil {
			return err
		}
		if inside {
			return ErrAlreadyInside.Wrapf("%s", stay.Plate)
		}
		restored, err = s.repo.Restore(ctx, id)
		return err
	})
	if err != nil {
		return Stay{}, err
	}
	return restored, nil
}
