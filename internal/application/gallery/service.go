package gallery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	domain "github.com/bryanwahyu/leafdoctor/internal/domain/gallery"
)

// Recorder receives the collection size after every change.
type Recorder interface {
	SetGallerySize(n int)
}

// Service owns the in-memory gallery and keeps it in sync with the repository.
// It is safe for concurrent use; writes are serialized.
type Service struct {
	repo     domain.Repository
	log      *zap.Logger
	location *time.Location
	metrics  Recorder

	mu    sync.RWMutex
	items []*domain.Item
}

type Option func(*Service)

// WithLocation sets the timezone used for date filters when a query has none.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.location = loc }
}

func WithMetrics(r Recorder) Option {
	return func(s *Service) { s.metrics = r }
}

func NewService(repo domain.Repository, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		log:      log,
		location: time.Local,
		items:    []*domain.Item{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Load hydrates the collection from the repository. A corrupt stored value is
// logged and returned, and the service continues with an empty collection.
func (s *Service) Load(ctx context.Context) error {
	items, err := s.repo.Load(ctx)
	if err != nil && !errors.Is(err, domain.ErrCorrupt) {
		return fmt.Errorf("load gallery: %w", err)
	}
	if err != nil {
		s.log.Error("stored gallery could not be decoded, starting empty", zap.Error(err))
		items = []*domain.Item{}
	}

	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
	s.record(len(items))
	return err
}

// Add prepends item and persists the whole collection.
func (s *Service) Add(ctx context.Context, item *domain.Item) ([]*domain.Item, error) {
	if item == nil || item.ID == "" {
		return nil, fmt.Errorf("%w: missing id", domain.ErrInvalidItem)
	}
	if item.Image == "" {
		return nil, fmt.Errorf("%w: missing image", domain.ErrInvalidItem)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if indexOf(s.items, item.ID) >= 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateID, item.ID)
	}

	next := make([]*domain.Item, 0, len(s.items)+1)
	next = append(next, item.Clone())
	next = append(next, s.items...)
	if err := s.commit(ctx, next); err != nil {
		return nil, err
	}
	s.log.Info("gallery item added", zap.String("id", item.ID), zap.Int("count", len(next)))
	return cloneAll(next), nil
}

// Remove deletes the item with id. An unknown id leaves the collection
// unchanged, which is still written back.
func (s *Service) Remove(ctx context.Context, id domain.ItemID) ([]*domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]*domain.Item, 0, len(s.items))
	for _, it := range s.items {
		if it.ID != id {
			next = append(next, it)
		}
	}
	removed := len(next) < len(s.items)
	if err := s.commit(ctx, next); err != nil {
		return nil, err
	}
	s.log.Info("gallery item removed",
		zap.String("id", id),
		zap.Bool("found", removed),
		zap.Int("count", len(next)),
	)
	return cloneAll(next), nil
}

// commit writes next and only then swaps it in. Caller holds mu.
func (s *Service) commit(ctx context.Context, next []*domain.Item) error {
	if err := s.repo.Save(ctx, next); err != nil {
		s.log.Error("gallery write failed", zap.Error(err))
		return fmt.Errorf("save gallery: %w", err)
	}
	s.items = next
	s.record(len(next))
	return nil
}

func (s *Service) record(n int) {
	if s.metrics != nil {
		s.metrics.SetGallerySize(n)
	}
}

// Items returns a copy of the collection, newest first.
func (s *Service) Items() []*domain.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.items)
}

func (s *Service) Get(id domain.ItemID) (*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.items, id); i >= 0 {
		return s.items[i].Clone(), nil
	}
	return nil, domain.ErrNotFound
}

func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Find filters the collection. Queries without a location use the service default.
func (s *Service) Find(q domain.Query) ([]*domain.Item, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if q.Location == nil {
		q.Location = s.location
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(domain.Filter(s.items, q)), nil
}

// Stats are computed over the full collection, never a filtered view.
func (s *Service) Stats() domain.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.ComputeStats(s.items)
}

func indexOf(items []*domain.Item, id domain.ItemID) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func cloneAll(items []*domain.Item) []*domain.Item {
	out := make([]*domain.Item, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}
