package billing

import (
	"context"
	"log/slog"
	"time"

	"github.com/parkyard/parkyard/internal/platform/db"
)

// RepositoryPort defines data access for billing methods.
type RepositoryPort interface {
	Insert(ctx context.Context, in MethodInput, now time.Time) (Method, error)
	Get(ctx context.Context, id int64) (Method, error)
	List(ctx context.Context, activeOnly bool) ([]Method, error)
	ActiveTitleTaken(ctx context.Context, title string, exceptID int64) (bool, error)
	Update(ctx context.Context, id int64, in MethodInput, now time.Time) (Method, error)
	SetActive(ctx context.Context, id int64, active bool, now time.Time) (Method, error)
}

// Service manages billing methods.
type Service struct {
	repo   RepositoryPort
	tx     db.Runner
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, tx db.Runner, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, tx: tx, logger: logger, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create validates and stores a new method.
func (s *Service) Create(ctx context.Context, in MethodInput) (Method, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return Method{}, err
	}
	var created Method
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		taken, err := s.repo.ActiveTitleTaken(ctx, in.Title, 0)
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicateTitle
		}
		created, err = s.repo.Insert(ctx, in, s.now())
		return err
	})
	if err != nil {
		return Method{}, err
	}
	s.logger.Info("billing method created", slog.Int64("method_id", created.ID), slog.String("category", string(created.Category)))
	return created, nil
}

// Get returns a method, active or not, for historical lookups.
func (s *Service) Get(ctx context.Context, id int64) (Method, error) {
	return s.repo.Get(ctx, id)
}

// List returns methods; activeOnly hides deactivated ones.
func (s *Service) List(ctx context.Context, activeOnly bool) ([]Method, error) {
	return s.repo.List(ctx, activeOnly)
}

// Assignable returns the method if it can be attached to a new entry.
func (s *Service) Assignable(ctx context.Context, id int64) (Method, error) {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return Method{}, err
	}
	if !m.IsActive {
		return Method{}, ErrMethodInactive
	}
	return m, nil
}

// Update edits a method. Stays already parked keep their entry snapshot.
func (s *Service) Update(ctx context.Context, id int64, in MethodInput) (Method, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return Method{}, err
	}
	var updated Method
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if current.IsActive {
			taken, err := s.repo.ActiveTitleTaken(ctx, in.Title, id)
			if err != nil {
				return err
			}
			if taken {
				return ErrDuplicateTitle
			}
		}
		updated, err = s.repo.Update(ctx, id, in, s.now())
		return err
	})
	if err != nil {
		return Method{}, err
	}
	return updated, nil
}

// Deactivate hides a method from new entries. It is idempotent.
func (s *Service) Deactivate(ctx context.Context, id int64) (Method, error) {
	var m Method
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if !current.IsActive {
			m = current
			return nil
		}
		m, err = s.repo.SetActive(ctx, id, false, s.now())
		return err
	})
	if err != nil {
		return Method{}, err
	}
	s.logger.Info("billing method deactivated", slog.Int64("method_id", id))
	return m, nil
}

// Reactivate makes a deactivated method assignable again.
func (s *Service) Reactivate(ctx context.Context, id int64) (Method, error) {
	var m Method
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if current.IsActive {
			return ErrMethodAlreadyActive
		}
		taken, err := s.repo.ActiveTitleTaken(ctx, current.Title, id)
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicateTitle
		}
		m, err = s.repo.SetActive(ctx, id, true, s.now())
		return err
	})
	if err != nil {
		return Method{}, err
	}
	s.logger.Info("billing method reactivated", slog.Int64("method_id", id))
	return m, nil
}
