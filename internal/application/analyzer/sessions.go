package analyzer

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Factory builds the workflow for a new session id.
type Factory func(id string) *Workflow

// Sessions holds live workflows keyed by session id. Idle sessions expire
// after ttl; expiry and deletion close the workflow.
type Sessions struct {
	cache   *cache.Cache
	factory Factory
	log     *zap.Logger
}

// NewSessions creates the registry. cleanupInterval <= 0 disables the
// background janitor; call Sweep to expire sessions manually.
func NewSessions(ttl, cleanupInterval time.Duration, factory Factory, log *zap.Logger) *Sessions {
	if log == nil {
		log = zap.NewNop()
	}
	c := cache.New(ttl, cleanupInterval)
	c.OnEvicted(func(id string, v interface{}) {
		if wf, ok := v.(*Workflow); ok {
			wf.Close()
		}
		log.Debug("session closed", zap.String("session", id))
	})
	return &Sessions{cache: c, factory: factory, log: log}
}

func (s *Sessions) Create() *Workflow {
	id := uuid.NewString()
	wf := s.factory(id)
	s.cache.Set(id, wf, cache.DefaultExpiration)
	s.log.Info("session created", zap.String("session", id))
	return wf
}

// Get returns the workflow and extends its lifetime. Replace only succeeds
// while the entry still exists, so a session evicted in between stays gone.
func (s *Sessions) Get(id string) (*Workflow, error) {
	v, ok := s.cache.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	wf := v.(*Workflow)
	if wf.Closed() {
		return nil, ErrSessionNotFound
	}
	if err := s.cache.Replace(id, wf, cache.DefaultExpiration); err != nil {
		return nil, ErrSessionNotFound
	}
	return wf, nil
}

// Delete closes and removes a session.
func (s *Sessions) Delete(id string) error {
	if _, ok := s.cache.Get(id); !ok {
		return ErrSessionNotFound
	}
	s.cache.Delete(id)
	return nil
}

func (s *Sessions) Count() int {
	return s.cache.ItemCount()
}

// Sweep closes every expired session.
func (s *Sessions) Sweep() {
	s.cache.DeleteExpired()
}

// Close closes every session.
func (s *Sessions) Close() {
	s.cache.DeleteExpired()
	for id := range s.cache.Items() {
		s.cache.Delete(id)
	}
}
