package ledger

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/parkyard/parkyard/internal/cashsession"
	"github.com/parkyard/parkyard/internal/money"
	"github.com/parkyard/parkyard/internal/platform/db"
	"github.com/parkyard/parkyard/internal/shared"
)

// RepositoryPort is the transaction store.
type RepositoryPort interface {
	Insert(ctx context.Context, t Transaction) (Transaction, error)
	Get(ctx context.Context, id int64) (Transaction, error)
	ListBySession(ctx context.Context, sessionID int64, includeDeleted bool) ([]Transaction, error)
	SoftDelete(ctx context.Context, id int64, permanent bool, at time.Time) (Transaction, error)
}

// Sessions resolves cash sessions.
type Sessions interface {
	Get(ctx context.Context, id int64) (*cashsession.Session, error)
	RequireOpen(ctx context.Context) (*cashsession.Session, error)
}

// WarningObserver counts integrity warnings.
type WarningObserver interface {
	ObserveLedgerWarnings(txType string, count int)
}

// Service serves session totals and records expenses.
type Service struct {
	repo     RepositoryPort
	sessions Sessions
	tx       db.Runner
	cache    *Cache
	metrics  WarningObserver
	logger   *slog.Logger
	group    singleflight.Group
	now      func() time.Time
}

// NewService constructs a Service. cache may be nil.
func NewService(repo RepositoryPort, sessions Sessions, tx db.Runner, cache *Cache, metrics WarningObserver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if tx == nil {
		tx = db.NoTx{}
	}
	return &Service{repo: repo, sessions: sessions, tx: tx, cache: cache, metrics: metrics, logger: logger, now: time.Now}
}

// WithNow overrides the clock.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// SessionLedger returns the session's totals, served from cache when the
// session has not changed since they were computed.
func (s *Service) SessionLedger(ctx context.Context, sessionID int64) (SessionTotals, error) {
	key, err := s.cache.BuildKey(ctx, sessionID)
	if err != nil {
		s.logger.Warn("ledger cache version", slog.Int64("session_id", sessionID), slog.Any("error", err))
		return s.compute(ctx, sessionID)
	}
	ch := s.group.DoChan(key, func() (any, error) {
		var totals SessionTotals
		err := s.cache.FetchJSON(ctx, key, &totals, func(ctx context.Context) (any, error) {
			return s.compute(ctx, sessionID)
		})
		return totals, err
	})
	select {
	case <-ctx.Done():
		return SessionTotals{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return SessionTotals{}, res.Err
		}
		return res.Val.(SessionTotals), nil
	}
}

func (s *Service) compute(ctx context.Context, sessionID int64) (SessionTotals, error) {
	var (
		session *cashsession.Session
		txs     []Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		session, err = s.sessions.Get(gctx, sessionID)
		return err
	})
	g.Go(func() error {
		var err error
		txs, err = s.repo.ListBySession(gctx, sessionID, false)
		return err
	})
	if err := g.Wait(); err != nil {
		return SessionTotals{}, err
	}
	totals, err := Aggregate(*session, txs)
	if len(totals.Warnings) > 0 {
		counts := map[Type]int{}
		for _, w := range totals.Warnings {
			counts[w.Type]++
		}
		for t, n := range counts {
			if s.metrics != nil {
				s.metrics.ObserveLedgerWarnings(string(t), n)
			}
		}
		s.logger.Warn("ledger integrity warnings", slog.Int64("session_id", sessionID), slog.Int("count", len(totals.Warnings)))
	}
	if err != nil {
		s.logger.Error("ledger does not reconcile", slog.Int64("session_id", sessionID), slog.Any("error", err))
		return SessionTotals{}, err
	}
	return totals, nil
}

// Invalidate drops cached totals for a session.
func (s *Service) Invalidate(ctx context.Context, sessionID int64) error {
	return s.cache.Bump(ctx, sessionID)
}

// Append validates and stores a transaction inside the database transaction
// carried by ctx. Callers invalidate the session after their commit.
func (s *Service) Append(ctx context.Context, d Draft) (Transaction, error) {
	if d.At.IsZero() {
		d.At = s.now()
	}
	t, err := NewTransaction(d)
	if err != nil {
		return Transaction{}, err
	}
	return s.repo.Insert(ctx, t)
}

// ExpenseInput is the payload of RecordExpense.
type ExpenseInput struct {
	Description   string        `json:"description" validate:"required,max=200"`
	Amount        money.Amount  `json:"amount"`
	PaymentMethod PaymentMethod `json:"paymentMethod" validate:"required"`
}

// RecordExpense books an outflow against the OPEN session.
func (s *Service) RecordExpense(ctx context.Context, in ExpenseInput) (Transaction, error) {
	op, _ := shared.OperatorFromContext(ctx)
	var created Transaction
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		session, err := s.sessions.RequireOpen(ctx)
		if err != nil {
			return err
		}
		created, err = s.Append(ctx, Draft{
			Type:           TypeExpense,
			SessionID:      session.ID,
			Operator:       op,
			PaymentMethod:  in.PaymentMethod,
			OriginalAmount: in.Amount,
			Description:    in.Description,
		})
		return err
	})
	if err != nil {
		return Transaction{}, err
	}
	s.invalidate(ctx, created.SessionID)
	s.logger.Info("expense recorded", slog.Int64("transaction_id", created.ID), slog.String("amount", created.FinalAmount.String()))
	return created, nil
}

// ListTransactions returns a session's live transactions.
func (s *Service) ListTransactions(ctx context.Context, sessionID int64, includeDeleted bool) ([]Transaction, error) {
	if _, err := s.sessions.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.repo.ListBySession(ctx, sessionID, includeDeleted)
}

// DeleteTransaction soft-deletes a transaction so it drops out of the totals.
func (s *Service) DeleteTransaction(ctx context.Context, id int64, permanent bool) (Transaction, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	if current.Deleted() {
		return Transaction{}, ErrAlreadyDeleted
	}
	deleted, err := s.repo.SoftDelete(ctx, id, permanent, s.now())
	if err != nil {
		if shared.KindOf(err) == shared.KindNotFound {
			return Transaction{}, ErrAlreadyDeleted
		}
		return Transaction{}, err
	}
	s.invalidate(ctx, deleted.SessionID)
	s.logger.Info("transaction deleted", slog.Int64("transaction_id", id), slog.Bool("permanent", permanent),
		slog.Int64("session_id", deleted.SessionID))
	return deleted, nil
}

func (s *Service) invalidate(ctx context.Context, sessionID int64) {
	if err := s.Invalidate(ctx, sessionID); err != nil {
		s.logger.Warn("invalidate ledger cache", slog.Int64("session_id", sessionID), slog.Any("error", err))
	}
}
