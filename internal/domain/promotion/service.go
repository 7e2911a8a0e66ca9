package promotion

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Service exposes the administration surface over promotions: thin
// validation and lifecycle logic over the repository.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a promotion Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithNow overrides the clock; intended for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create validates and persists a new promotion in DRAFT status.
func (s *Service) Create(ctx context.Context, p *Promotion) error {
	now := s.now()
	p.Status = StatusDraft
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if err := p.ValidateNew(now); err != nil {
		return err
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	if err := s.repo.Create(ctx, p); err != nil {
		return errors.Wrap(err, "create promotion")
	}
	return nil
}

// Update validates and persists changes to an existing promotion. The status
// field is not updatable here; use Transition.
func (s *Service) Update(ctx context.Context, p *Promotion) error {
	current, err := s.repo.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	p.Status = current.Status
	if err := p.Validate(); err != nil {
		return err
	}
	p.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, p); err != nil {
		return errors.Wrap(err, "update promotion")
	}
	return nil
}

// Get loads one promotion.
func (s *Service) Get(ctx context.Context, id string) (*Promotion, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns promotions matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Promotion, error) {
	return s.repo.List(ctx, filter)
}

// Delete removes a promotion that has never been used. Used promotions are
// immutable for deletion; the repository reports ErrInUse.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// Transition applies an administrator-requested status change after
// validating it against the state machine table.
func (s *Service) Transition(ctx context.Context, id string, to Status) (*Promotion, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := p.Transition(to); err != nil {
		return nil, err
	}
	p.UpdatedAt = s.now()
	if err := s.repo.UpdateStatus(ctx, id, to); err != nil {
		return nil, errors.Wrap(err, "persist status change")
	}
	return p, nil
}

// RecordView bumps the promotion's view counter.
func (s *Service) RecordView(ctx context.Context, id string) error {
	return s.repo.IncrementViews(ctx, id)
}
