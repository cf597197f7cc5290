// Package intake buffers partially-collected ticket data between the
// intake form submission and the staff-role choice.
package intake

import (
	"context"
	"sync"

	"github.com/spec-kit/support-bot/internal/domain"
)

// Store keeps at most one pending intake per requester. Put overwrites
// any previous entry (last write wins); Take removes and returns the
// entry, reporting false when none exists.
type Store interface {
	Put(ctx context.Context, requesterID string, data domain.PendingIntake) error
	Take(ctx context.Context, requesterID string) (domain.PendingIntake, bool, error)
}

type memoryStore struct {
	mu      sync.Mutex
	pending map[string]domain.PendingIntake
}

// NewMemoryStore is the default process-local buffer. Entries have no
// expiry; an abandoned intake lingers until the requester starts over.
func NewMemoryStore() Store {
	return &memoryStore{pending: make(map[string]domain.PendingIntake)}
}

func (s *memoryStore) Put(_ context.Context, requesterID string, data domain.PendingIntake) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[requesterID] = data
	return nil
}

func (s *memoryStore) Take(_ context.Context, requesterID string) (domain.PendingIntake, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.pending[requesterID]
	if ok {
		delete(s.pending, requesterID)
	}
	return data, ok, nil
}
