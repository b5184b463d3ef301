package billing_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/parkyard/parkyard/internal/billing"
	"github.com/parkyard/parkyard/internal/money"
	"github.com/parkyard/parkyard/internal/platform/db"
)

type memoryRepo struct {
	mu      sync.Mutex
	nextID  int64
	methods map[int64]billing.Method
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{methods: map[int64]billing.Method{}}
}

func (r *memoryRepo) Insert(ctx context.Context, in billing.MethodInput, now time.Time) (billing.Method, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	m := billing.Method{
		ID: r.nextID, Title: in.Title, Category: in.Category,
		ToleranceMinutes: in.ToleranceMinutes, BlockMinutes: in.BlockMinutes,
		CarPrice: in.CarPrice, MotoPrice: in.MotoPrice, LargePrice: in.LargePrice,
		IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	r.methods[m.ID] = m
	return m, nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (billing.Method, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.methods[id]
	if !ok {
		return billing.Method{}, billing.ErrMethodNotFound
	}
	return m, nil
}

func (r *memoryRepo) List(ctx context.Context, activeOnly bool) ([]billing.Method, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []billing.Method
	for _, m := range r.methods {
		if activeOnly && !m.IsActive {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepo) ActiveTitleTaken(ctx context.Context, title string, exceptID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.methods {
		if m.IsActive && m.ID != exceptID && strings.EqualFold(m.Title, title) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepo) Update(ctx context.Context, id int64, in billing.MethodInput, now time.Time) (billing.Method, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.methods[id]
	if !ok {
		return billing.Method{}, billing.ErrMethodNotFound
	}
	m.Title, m.Category = in.Title, in.Category
	m.ToleranceMinutes, m.BlockMinutes = in.ToleranceMinutes, in.BlockMinutes
	m.CarPrice, m.MotoPrice, m.LargePrice = in.CarPrice, in.MotoPrice, in.LargePrice
	m.UpdatedAt = now
	r.methods[id] = m
	return m, nil
}

func (r *memoryRepo) SetActive(ctx context.Context, id int64, active bool, now time.Time) (billing.Method, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.methods[id]
	if !ok {
		return billing.Method{}, billing.ErrMethodNotFound
	}
	m.IsActive = active
	m.UpdatedAt = now
	r.methods[id] = m
	return m, nil
}

func hourlyInput(title string) billing.MethodInput {
	return billing.MethodInput{
		Title:            title,
		Category:         billing.CategoryPerHour,
		ToleranceMinutes: 15,
		BlockMinutes:     60,
		CarPrice:         money.MustParse("10.00"),
		MotoPrice:        money.MustParse("5.00"),
	}
}

func TestCreateRejectsDuplicateActiveTitle(t *testing.T) {
	svc := billing.NewService(newMemoryRepo(), db.NoTx{}, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, hourlyInput("Hora"))
	require.NoError(t, err)
	_, err = svc.Create(ctx, hourlyInput("  hora "))
	require.ErrorIs(t, err, billing.ErrDuplicateTitle)
}

func TestCreateValidatesInput(t *testing.T) {
	svc := billing.NewService(newMemoryRepo(), db.NoTx{}, nil)

	in := hourlyInput("Quebrado")
	in.BlockMinutes = 0
	_, err := svc.Create(context.Background(), in)
	require.ErrorIs(t, err, billing.ErrInvalidMethod)

	in = hourlyInput("Negativo")
	in.CarPrice = money.FromCents(-1)
	_, err = svc.Create(context.Background(), in)
	require.ErrorIs(t, err, billing.ErrInvalidMethod)
}

func TestCreateFixedDropsBlockFields(t *testing.T) {
	svc := billing.NewService(newMemoryRepo(), db.NoTx{}, nil)
	m, err := svc.Create(context.Background(), billing.MethodInput{
		Title: "Diária", Category: billing.CategoryFixed, ToleranceMinutes: 20, BlockMinutes: 30,
		CarPrice: money.MustParse("40.00"),
	})
	require.NoError(t, err)
	require.Zero(t, m.ToleranceMinutes)
	require.Zero(t, m.BlockMinutes)
}

func TestDeactivateHidesFromActiveListing(t *testing.T) {
	svc := billing.NewService(newMemoryRepo(), db.NoTx{}, nil)
	ctx := context.Background()

	m, err := svc.Create(ctx, hourlyInput("Hora"))
	require.NoError(t, err)
	_, err = svc.Deactivate(ctx, m.ID)
	require.NoError(t, err)

	active, err := svc.List(ctx, true)
	require.NoError(t, err)
	require.Empty(t, active)

	all, err := svc.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 1)

	_, err = svc.Assignable(ctx, m.ID)
	require.ErrorIs(t, err, billing.ErrMethodInactive)

	historical, err := svc.Get(ctx, m.ID)
	require.NoError(t, err)
	require.False(t, historical.IsActive)
}

func TestReactivate(t *testing.T) {
	svc := billing.NewService(newMemoryRepo(), db.NoTx{}, nil)
	ctx := context.Background()

	m, err := svc.Create(ctx, hourlyInput("Hora"))
	require.NoError(t, err)
	_, err = svc.Reactivate(ctx, m.ID)
	require.ErrorIs(t, err, billing.ErrMethodAlreadyActive)

	_, err = svc.Deactivate(ctx, m.ID)
	require.NoError(t, err)
	_, err = svc.Create(ctx, hourlyInput("Hora"))
	require.NoError(t, err)
	_, err = svc.Reactivate(ctx, m.ID)
	require.ErrorIs(t, err, billing.ErrDuplicateTitle)
}

func TestUpdateKeepsIdentity(t *testing.T) {
	svc := billing.NewService(newMemoryRepo(), db.NoTx{}, nil)
	ctx := context.Background()

	m, err := svc.Create(ctx, hourlyInput("Hora"))
	require.NoError(t, err)
	in := hourlyInput("Hora cheia")
	in.CarPrice = money.MustParse("12.00")
	updated, err := svc.Update(ctx, m.ID, in)
	require.NoError(t, err)
	require.Equal(t, m.ID, updated.ID)
	require.Equal(t, money.MustParse("12.00"), updated.CarPrice)

	_, err = svc.Update(ctx, 999, in)
	require.ErrorIs(t, err, billing.ErrMethodNotFound)
}
