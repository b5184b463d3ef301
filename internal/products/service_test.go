package products_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/parkyard/parkyard/internal/cashsession"
	"github.com/parkyard/parkyard/internal/ledger"
	"github.com/parkyard/parkyard/internal/money"
	"github.com/parkyard/parkyard/internal/products"
	"github.com/parkyard/parkyard/internal/shared"
)

type memoryRepo struct {
	mu    sync.Mutex
	items map[int64]products.Product
	next  int64
}

func (r *memoryRepo) Insert(ctx context.Context, in products.ProductInput, now time.Time) (products.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	p := products.Product{ID: r.next, Name: in.Name, UnitPrice: in.UnitPrice, Quantity: in.Quantity, IsActive: true, CreatedAt: now, UpdatedAt: now}
	r.items[p.ID] = p
	return p, nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (products.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return products.Product{}, products.ErrProductNotFound
	}
	return p, nil
}

func (r *memoryRepo) List(ctx context.Context, activeOnly bool) ([]products.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []products.Product
	for id := int64(1); id <= r.next; id++ {
		if p, ok := r.items[id]; ok && (!activeOnly || p.IsActive) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryRepo) DecrementStock(ctx context.Context, id int64, quantity int, now time.Time) (products.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return products.Product{}, products.ErrProductNotFound
	}
	if p.Quantity < quantity {
		return products.Product{}, products.ErrInsufficientStock
	}
	p.Quantity -= quantity
	p.UpdatedAt = now
	r.items[id] = p
	return p, nil
}

type openSession struct {
	session *cashsession.Session
}

func (o *openSession) RequireOpen(ctx context.Context) (*cashsession.Session, error) {
	if o.session == nil {
		return nil, cashsession.ErrNoOpenSession
	}
	return o.session, nil
}

type fakeLedger struct {
	txs         []ledger.Transaction
	invalidated []int64
}

func (f *fakeLedger) Append(ctx context.Context, d ledger.Draft) (ledger.Transaction, error) {
	t, err := ledger.NewTransaction(d)
	if err != nil {
		return ledger.Transaction{}, err
	}
	t.ID = int64(len(f.txs) + 1)
	f.txs = append(f.txs, t)
	return t, nil
}

func (f *fakeLedger) Invalidate(ctx context.Context, sessionID int64) error {
	f.invalidated = append(f.invalidated, sessionID)
	return nil
}

type fixture struct {
	svc          *products.Service
	repo         *memoryRepo
	session      *openSession
	ledger       *fakeLedger
	reservations *products.ReservationCache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:         &memoryRepo{items: map[int64]products.Product{}},
		session:      &openSession{session: &cashsession.Session{ID: 4, State: cashsession.StateOpen}},
		ledger:       &fakeLedger{},
		reservations: products.NewReservationCache(16, time.Minute),
	}
	f.svc = products.NewService(products.Deps{
		Repo:         f.repo,
		Sessions:     f.session,
		Ledger:       f.ledger,
		Reservations: f.reservations,
	})
	return f
}

func sellerCtx() context.Context {
	return shared.ContextWithOperator(context.Background(), shared.Operator{ID: 2, Username: "maria", Role: shared.RoleNormal})
}

func TestCreateValidates(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(sellerCtx(), products.ProductInput{Name: "  "})
	require.ErrorIs(t, err, products.ErrInvalidProduct)
	_, err = f.svc.Create(sellerCtx(), products.ProductInput{Name: "Agua", UnitPrice: money.MustParse("-1.00")})
	require.ErrorIs(t, err, products.ErrInvalidProduct)

	p, err := f.svc.Create(sellerCtx(), products.ProductInput{Name: " Agua ", UnitPrice: money.MustParse("3.50"), Quantity: 12})
	require.NoError(t, err)
	require.Equal(t, "Agua", p.Name)
	require.True(t, p.IsActive)
}

func TestSellBooksProductSale(t *testing.T) {
	f := newFixture(t)
	p, err := f.svc.Create(sellerCtx(), products.ProductInput{Name: "Agua", UnitPrice: money.MustParse("3.50"), Quantity: 12})
	require.NoError(t, err)

	res, err := f.svc.Sell(sellerCtx(), p.ID, products.SaleInput{
		Quantity:       3,
		PaymentMethod:  ledger.PaymentCash,
		Discount:       money.MustParse("0.50"),
		AmountReceived: money.MustParse("20.00"),
	})
	require.NoError(t, err)
	require.Equal(t, 9, res.Product.Quantity)
	require.Equal(t, ledger.TypeProductSale, res.Transaction.Type)
	require.Equal(t, money.MustParse("10.50"), res.Transaction.OriginalAmount)
	require.Equal(t, money.MustParse("10.00"), res.Transaction.FinalAmount)
	require.Equal(t, money.MustParse("10.00"), res.Transaction.ChangeGiven)
	require.Equal(t, 3, res.Transaction.Quantity)
	require.Equal(t, int64(4), res.Transaction.SessionID)
	require.Equal(t, []int64{4}, f.ledger.invalidated)
	require.Zero(t, f.reservations.Len(), "reservation released after the sale")
}

func TestSellFailuresLeaveStockUntouched(t *testing.T) {
	f := newFixture(t)
	p, err := f.svc.Create(sellerCtx(), products.ProductInput{Name: "Cafe", UnitPrice: money.MustParse("5.00"), Quantity: 2})
	require.NoError(t, err)

	_, err = f.svc.Sell(sellerCtx(), p.ID, products.SaleInput{Quantity: 3, PaymentMethod: ledger.PaymentPix, AmountReceived: money.MustParse("15.00")})
	require.ErrorIs(t, err, products.ErrInsufficientStock)

	_, err = f.svc.Sell(sellerCtx(), p.ID, products.SaleInput{Quantity: 2, PaymentMethod: ledger.PaymentPix, AmountReceived: money.MustParse("5.00")})
	require.ErrorIs(t, err, ledger.ErrInsufficientPayment)

	f.session.session = nil
	_, err = f.svc.Sell(sellerCtx(), p.ID, products.SaleInput{Quantity: 1, PaymentMethod: ledger.PaymentPix, AmountReceived: money.MustParse("5.00")})
	require.ErrorIs(t, err, cashsession.ErrNoOpenSession)

	got, err := f.svc.Get(sellerCtx(), p.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.Quantity)
	require.Empty(t, f.ledger.txs)
	require.Zero(t, f.reservations.Len())
}

func TestGetReportsStockNetOfReservations(t *testing.T) {
	f := newFixture(t)
	p, err := f.svc.Create(sellerCtx(), products.ProductInput{Name: "Chiclete", UnitPrice: money.MustParse("1.00"), Quantity: 5})
	require.NoError(t, err)
	require.NoError(t, f.reservations.Reserve("pending", p.ID, 4, 5))

	got, err := f.svc.Get(sellerCtx(), p.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.Quantity)

	_, err = f.svc.Sell(sellerCtx(), p.ID, products.SaleInput{Quantity: 2, PaymentMethod: ledger.PaymentDebit, AmountReceived: money.MustParse("2.00")})
	require.ErrorIs(t, err, products.ErrInsufficientStock)

	list, err := f.svc.List(sellerCtx(), true)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 1, list[0].Quantity)
}
