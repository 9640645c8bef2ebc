package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"trade-intent-lab/internal/domain"
	"trade-intent-lab/internal/storage"
)

func TestAppend_AssignsSequentialIDs(t *testing.T) {
	store := NewDecisionLogStore()

	for i := 1; i <= 3; i++ {
		ev := decisionEvent(int64(i), domain.EventAdmitted)
		if err := store.Append(context.Background(), ev); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		if ev.ID != int64(i) {
			t.Errorf("Expected id %d, got %d", i, ev.ID)
		}
	}
	if got := len(store.All()); got != 3 {
		t.Errorf("Expected 3 stored events, got %d", got)
	}
}

func TestAppend_RejectsPartialEvents(t *testing.T) {
	store := NewDecisionLogStore()

	cases := []struct {
		name   string
		mutate func(*domain.DecisionEvent)
	}{
		{"no module", func(ev *domain.DecisionEvent) { ev.SourceModule = "" }},
		{"no type", func(ev *domain.DecisionEvent) { ev.EventType = "" }},
		{"no timestamp", func(ev *domain.DecisionEvent) { ev.Timestamp = time.Time{} }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev := decisionEvent(1, domain.EventAdmitted)
			tc.mutate(ev)
			if err := store.Append(context.Background(), ev); !errors.Is(err, storage.ErrInvalidInput) {
				t.Errorf("Expected ErrInvalidInput, got %v", err)
			}
		})
	}

	if err := store.Append(context.Background(), nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil event, got %v", err)
	}
}

func TestAppend_StoresCopy(t *testing.T) {
	store := NewDecisionLogStore()

	ev := decisionEvent(7, domain.EventRejected)
	ev.RejectionReason = domain.ReasonCooldown
	if err := store.Append(context.Background(), ev); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	// Mutating the caller's event must not reach the store.
	ev.RejectionReason = domain.ReasonTTLExpired

	got, err := store.GetByIntentID(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetByIntentID failed: %v", err)
	}
	if len(got) != 1 || got[0].RejectionReason != domain.ReasonCooldown {
		t.Errorf("Expected stored COOLDOWN reason, got %+v", got)
	}
}

func TestGetByIntentID_FiltersAndOrders(t *testing.T) {
	store := NewDecisionLogStore()

	for _, intentID := range []int64{5, 9, 5} {
		eventType := domain.EventIntentCreated
		if intentID == 9 {
			eventType = domain.EventAdmitted
		}
		if err := store.Append(context.Background(), decisionEvent(intentID, eventType)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	got, err := store.GetByIntentID(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetByIntentID failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 events for intent 5, got %d", len(got))
	}
	if got[0].ID >= got[1].ID {
		t.Errorf("Expected oldest-first ordering, got ids %d, %d", got[0].ID, got[1].ID)
	}

	none, err := store.GetByIntentID(context.Background(), 99)
	if err != nil || len(none) != 0 {
		t.Errorf("Expected empty result for unknown intent, got %v / %v", none, err)
	}
}

func TestLastByType(t *testing.T) {
	store := NewDecisionLogStore()

	first := decisionEvent(1, domain.EventAdmitted)
	second := decisionEvent(2, domain.EventAdmitted)
	second.Timestamp = storeNow.Add(time.Minute)
	sell := decisionEvent(3, domain.EventAdmitted)
	sell.Action = domain.ActionSell

	for _, ev := range []*domain.DecisionEvent{first, second, sell} {
		if err := store.Append(context.Background(), ev); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	got, err := store.LastByType(context.Background(), domain.EventAdmitted, domain.ActionBuy)
	if err != nil {
		t.Fatalf("LastByType failed: %v", err)
	}
	if got.IntentID != 2 {
		t.Errorf("Expected newest BUY admission (intent 2), got intent %d", got.IntentID)
	}

	if _, err := store.LastByType(context.Background(), domain.EventRejected, domain.ActionBuy); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestCountByType(t *testing.T) {
	store := NewDecisionLogStore()

	for _, eventType := range []domain.EventType{
		domain.EventAdmitted,
		domain.EventAdmitted,
		domain.EventRejected,
	} {
		if err := store.Append(context.Background(), decisionEvent(1, eventType)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	count, err := store.CountByType(context.Background(), domain.EventAdmitted)
	if err != nil {
		t.Fatalf("CountByType failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 admissions, got %d", count)
	}

	count, _ = store.CountByType(context.Background(), domain.EventCounterReset)
	if count != 0 {
		t.Errorf("Expected 0 resets, got %d", count)
	}
}
