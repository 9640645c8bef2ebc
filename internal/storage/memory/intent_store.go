package memory

import (
	"context"
	"sort"
	"sync"

	"trade-intent-lab/internal/domain"
	"trade-intent-lab/internal/storage"
)

// IntentStore is an in-memory implementation of storage.IntentStore.
// It shares a DecisionLogStore so Decide can keep the status transition and
// the event append atomic under one lock, mirroring the Postgres transaction.
type IntentStore struct {
	mu     sync.RWMutex
	data   map[int64]*domain.OrderIntent
	nextID int64
	events *DecisionLogStore
}

// NewIntentStore creates a new in-memory intent store. The event log may be
// nil when tests exercise intents alone.
func NewIntentStore(events *DecisionLogStore) *IntentStore {
	return &IntentStore{
		data:   make(map[int64]*domain.OrderIntent),
		nextID: 1,
		events: events,
	}
}

// Compile-time interface check.
var _ storage.IntentStore = (*IntentStore)(nil)

// Insert adds a new intent with status NEW and returns the assigned id.
func (s *IntentStore) Insert(_ context.Context, intent *domain.OrderIntent) (int64, error) {
	if err := validateIntent(intent); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++

	intentCopy := *intent
	intentCopy.ID = id
	intentCopy.Status = domain.StatusNew
	s.data[id] = &intentCopy

	intent.ID = id
	intent.Status = domain.StatusNew
	return id, nil
}

// GetByID retrieves an intent by its id. Returns ErrNotFound if not exists.
func (s *IntentStore) GetByID(_ context.Context, id int64) (*domain.OrderIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	intent, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	intentCopy := *intent
	return &intentCopy, nil
}

// NextBatch retrieves up to limit NEW intents in creation order (id ASC).
func (s *IntentStore) NextBatch(_ context.Context, limit int) ([]*domain.OrderIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.OrderIntent
	for _, intent := range s.data {
		if intent.Status == domain.StatusNew {
			intentCopy := *intent
			result = append(result, &intentCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Decide transitions a NEW intent to a terminal status and appends the
// matching decision event under the same lock.
func (s *IntentStore) Decide(ctx context.Context, id int64, status domain.Status, ev *domain.DecisionEvent) error {
	if status != domain.StatusSent && status != domain.StatusRejected {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	intent, exists := s.data[id]
	if !exists {
		return storage.ErrNotFound
	}
	if intent.Status != domain.StatusNew {
		return storage.ErrAlreadyDecided
	}

	if ev != nil && s.events != nil {
		if err := s.events.Append(ctx, ev); err != nil {
			return err
		}
	}
	intent.Status = status
	return nil
}

// CountSentBuys returns the number of SENT BUY intents for a trading day.
func (s *IntentStore) CountSentBuys(_ context.Context, tradeDay string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, intent := range s.data {
		if intent.Status == domain.StatusSent &&
			intent.Action == domain.ActionBuy &&
			intent.TradeDay == tradeDay {
			count++
		}
	}
	return count, nil
}

// LastSentBuy retrieves the newest SENT BUY intent for a trading day.
func (s *IntentStore) LastSentBuy(_ context.Context, tradeDay string) (*domain.OrderIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last *domain.OrderIntent
	for _, intent := range s.data {
		if intent.Status == domain.StatusSent &&
			intent.Action == domain.ActionBuy &&
			intent.TradeDay == tradeDay {
			if last == nil || intent.ID > last.ID {
				last = intent
			}
		}
	}
	if last == nil {
		return nil, storage.ErrNotFound
	}

	intentCopy := *last
	return &intentCopy, nil
}

// MarkProcessed transitions every SENT BUY intent for a trading day to
// PROCESSED and returns the number of rows affected.
func (s *IntentStore) MarkProcessed(_ context.Context, tradeDay string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var affected int64
	for _, intent := range s.data {
		if intent.Status == domain.StatusSent &&
			intent.Action == domain.ActionBuy &&
			intent.TradeDay == tradeDay {
			intent.Status = domain.StatusProcessed
			affected++
		}
	}
	return affected, nil
}

// validateIntent rejects partial rows, matching the Postgres implementation.
func validateIntent(intent *domain.OrderIntent) error {
	if intent == nil ||
		intent.Symbol == "" ||
		intent.TradeDay == "" ||
		intent.RulesetVersion == "" ||
		intent.CreatedAt.IsZero() ||
		intent.ObservedAt.IsZero() ||
		(intent.Action != domain.ActionBuy && intent.Action != domain.ActionSell) ||
		intent.Confidence < 0 || intent.Confidence > 1 {
		return storage.ErrInvalidInput
	}
	return nil
}
