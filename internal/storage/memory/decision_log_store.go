package memory

import (
	"context"
	"sync"

	"trade-intent-lab/internal/domain"
	"trade-intent-lab/internal/storage"
)

// DecisionLogStore is an in-memory implementation of storage.DecisionLogStore.
type DecisionLogStore struct {
	mu     sync.RWMutex
	data   []*domain.DecisionEvent
	nextID int64
}

// NewDecisionLogStore creates a new in-memory decision log store.
func NewDecisionLogStore() *DecisionLogStore {
	return &DecisionLogStore{nextID: 1}
}

// Compile-time interface check.
var _ storage.DecisionLogStore = (*DecisionLogStore)(nil)

// Append adds a decision event and fills in its assigned id.
func (s *DecisionLogStore) Append(_ context.Context, ev *domain.DecisionEvent) error {
	if ev == nil || ev.SourceModule == "" || ev.EventType == "" || ev.Timestamp.IsZero() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ev.ID = s.nextID
	s.nextID++

	evCopy := *ev
	s.data = append(s.data, &evCopy)
	return nil
}

// GetByIntentID retrieves all events recorded for an intent, oldest first.
func (s *DecisionLogStore) GetByIntentID(_ context.Context, intentID int64) ([]*domain.DecisionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.DecisionEvent
	for _, ev := range s.data {
		if ev.IntentID == intentID {
			evCopy := *ev
			result = append(result, &evCopy)
		}
	}
	return result, nil
}

// LastByType retrieves the newest event with the given type and action.
func (s *DecisionLogStore) LastByType(_ context.Context, eventType domain.EventType, action domain.Action) (*domain.DecisionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.data) - 1; i >= 0; i-- {
		if s.data[i].EventType == eventType && s.data[i].Action == action {
			evCopy := *s.data[i]
			return &evCopy, nil
		}
	}
	return nil, storage.ErrNotFound
}

// CountByType returns the number of events with the given type.
func (s *DecisionLogStore) CountByType(_ context.Context, eventType domain.EventType) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, ev := range s.data {
		if ev.EventType == eventType {
			count++
		}
	}
	return count, nil
}

// All returns a snapshot of every appended event in append order.
// Test helper; the Postgres store intentionally has no full-scan method.
func (s *DecisionLogStore) All() []*domain.DecisionEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.DecisionEvent, 0, len(s.data))
	for _, ev := range s.data {
		evCopy := *ev
		result = append(result, &evCopy)
	}
	return result
}
