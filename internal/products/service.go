package products

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/parkyard/parkyard/internal/cashsession"
	"github.com/parkyard/parkyard/internal/ledger"
	"github.com/parkyard/parkyard/internal/platform/db"
	"github.com/parkyard/parkyard/internal/shared"
)

// RepositoryPort is the storage the service needs.
type RepositoryPort interface {
	Insert(ctx context.Context, in ProductInput, now time.Time) (Product, error)
	Get(ctx context.Context, id int64) (Product, error)
	List(ctx context.Context, activeOnly bool) ([]Product, error)
	DecrementStock(ctx context.Context, id int64, quantity int, now time.Time) (Product, error)
}

// OpenSession resolves the session sales are booked against.
type OpenSession interface {
	RequireOpen(ctx context.Context) (*cashsession.Session, error)
}

// Ledger books transactions.
type Ledger interface {
	Append(ctx context.Context, d ledger.Draft) (ledger.Transaction, error)
	Invalidate(ctx context.Context, sessionID int64) error
}

// Deps groups collaborators.
type Deps struct {
	Repo         RepositoryPort
	Sessions     OpenSession
	Ledger       Ledger
	Reservations *ReservationCache
	Tx           db.Runner
	Logger       *slog.Logger
}

// Service manages the catalog and product sales.
type Service struct {
	repo         RepositoryPort
	sessions     OpenSession
	ledger       Ledger
	reservations *ReservationCache
	tx           db.Runner
	logger       *slog.Logger
	now          func() time.Time
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
	reservations := deps.Reservations
	if reservations == nil {
		reservations = NewReservationCache(0, 0)
	}
	return &Service{
		repo:         deps.Repo,
		sessions:     deps.Sessions,
		ledger:       deps.Ledger,
		reservations: reservations,
		tx:           tx,
		logger:       logger,
		now:          time.Now,
	}
}

// WithNow overrides the clock.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create adds a product to the catalog.
func (s *Service) Create(ctx context.Context, in ProductInput) (Product, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return Product{}, err
	}
	p, err := s.repo.Insert(ctx, in, s.now())
	if err != nil {
		return Product{}, err
	}
	s.logger.Info("product created", slog.Int64("product_id", p.ID), slog.String("name", p.Name))
	return p, nil
}

// Get returns a product with its quantity net of live reservations.
func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	p.Quantity = s.reservations.Available(p.ID, p.Quantity)
	return p, nil
}

// List returns the catalog.
func (s *Service) List(ctx context.Context, activeOnly bool) ([]Product, error) {
	items, err := s.repo.List(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Quantity = s.reservations.Available(items[i].ID, items[i].Quantity)
	}
	return items, nil
}

// Sell books a PRODUCT_SALE against the open session. The units are held in
// the reservation cache while the sale is composed so concurrent sales cannot
// oversell, and the stock decrement and transaction commit together.
func (s *Service) Sell(ctx context.Context, productID int64, in SaleInput) (SaleResult, error) {
	if in.Quantity <= 0 {
		return SaleResult{}, ErrInvalidQuantity
	}
	p, err := s.repo.Get(ctx, productID)
	if err != nil {
		return SaleResult{}, err
	}
	if !p.IsActive {
		return SaleResult{}, ErrProductInactive
	}
	key := uuid.NewString()
	if err := s.reservations.Reserve(key, p.ID, in.Quantity, p.Quantity); err != nil {
		return SaleResult{}, err
	}
	defer s.reservations.Release(key)

	op, _ := shared.OperatorFromContext(ctx)
	var res SaleResult
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		session, err := s.sessions.RequireOpen(ctx)
		if err != nil {
			return err
		}
		at := s.now()
		ref := p.ID
		t, err := s.ledger.Append(ctx, ledger.Draft{
			Type:           ledger.TypeProductSale,
			SessionID:      session.ID,
			Operator:       op,
			PaymentMethod:  in.PaymentMethod,
			OriginalAmount: p.UnitPrice.Mul(int64(in.Quantity)),
			DiscountAmount: in.Discount,
			AmountReceived: in.AmountReceived,
			Description:    p.Name,
			Reference:      &ref,
			Quantity:       in.Quantity,
			At:             at,
		})
		if err != nil {
			return err
		}
		updated, err := s.repo.DecrementStock(ctx, p.ID, in.Quantity, at)
		if err != nil {
			return err
		}
		res = SaleResult{Product: updated, Transaction: t}
		return nil
	})
	if err != nil {
		return SaleResult{}, err
	}
	if err := s.ledger.Invalidate(ctx, res.Transaction.SessionID); err != nil {
		s.logger.Warn("invalidate ledger cache", slog.Int64("session_id", res.Transaction.SessionID), slog.Any("error", err))
	}
	s.logger.Info("product sold",
		slog.Int64("product_id", p.ID),
		slog.Int("quantity", in.Quantity),
		slog.String("amount", res.Transaction.FinalAmount.String()))
	return res, nil
}
