package workflow

import (
	"context"
	"testing"

	"github.com/vulnwatch/api/pkg/domain/shared"
	"github.com/vulnwatch/api/pkg/domain/vulnerability"
	"github.com/vulnwatch/api/pkg/pagination"
)

// mockFindingStore implements FindingStore for testing.
type mockFindingStore struct {
	statuses map[shared.ID]vulnerability.Status
	history  map[shared.ID][]*HistoryEntry
	applyErr error
}

func newMockFindingStore() *mockFindingStore {
	return &mockFindingStore{
		statuses: make(map[shared.ID]vulnerability.Status),
		history:  make(map[shared.ID][]*HistoryEntry),
	}
}

func (m *mockFindingStore) GetStatus(_ context.Context, findingID shared.ID) (vulnerability.Status, error) {
	status, ok := m.statuses[findingID]
	if !ok {
		return "", vulnerability.FindingNotFoundError(findingID)
	}
	return status, nil
}

func (m *mockFindingStore) ApplyTransition(_ context.Context, findingID shared.ID, from, to vulnerability.Status, entry *HistoryEntry) error {
	if m.applyErr != nil {
		return m.applyErr
	}
	if m.statuses[findingID] != from {
		return vulnerability.StatusConflictError(findingID, from)
	}
	m.statuses[findingID] = to
	m.history[findingID] = append(m.history[findingID], entry)
	return nil
}

func (m *mockFindingStore) ListHistory(_ context.Context, findingID shared.ID, page pagination.Pagination) (pagination.Result[*HistoryEntry], error) {
	entries := m.history[findingID]
	return pagination.NewResult(entries, int64(len(entries)), page), nil
}

func TestService_Transition(t *testing.T) {
	ctx := context.Background()
	actorID := shared.NewID()
	actor := Actor{ID: &actorID, Name: "dana"}

	t.Run("legal transition updates status and appends history", func(t *testing.T) {
		store := newMockFindingStore()
		svc := NewService(NewEngine(nil), store, nil)

		findingID := shared.NewID()
		store.statuses[findingID] = vulnerability.StatusOpen

		entry, err := svc.Transition(ctx, findingID, actor, TransitionInput{
			To:      vulnerability.StatusAssigned,
			Comment: "taking this one",
		}, RoleDeveloper)
		if err != nil {
			t.Fatalf("Transition() error = %v", err)
		}

		if store.statuses[findingID] != vulnerability.StatusAssigned {
			t.Errorf("status = %s, want assigned", store.statuses[findingID])
		}
		if entry.FromStatus != vulnerability.StatusOpen || entry.ToStatus != vulnerability.StatusAssigned {
			t.Errorf("history entry %s -> %s, want open -> assigned", entry.FromStatus, entry.ToStatus)
		}
		if len(store.history[findingID]) != 1 {
			t.Errorf("history entries = %d, want 1", len(store.history[findingID]))
		}
	})

	t.Run("missing edge rejected before mutation", func(t *testing.T) {
		store := newMockFindingStore()
		svc := NewService(NewEngine(nil), store, nil)

		findingID := shared.NewID()
		store.statuses[findingID] = vulnerability.StatusFixed

		_, err := svc.Transition(ctx, findingID, actor, TransitionInput{To: vulnerability.StatusVerifying}, "")
		if !shared.IsValidation(err) {
			t.Errorf("error = %v, want validation error", err)
		}
		if store.statuses[findingID] != vulnerability.StatusFixed {
			t.Error("status must not change on rejected transition")
		}
		if len(store.history[findingID]) != 0 {
			t.Error("no history must be written on rejected transition")
		}
	})

	t.Run("insufficient role rejected with forbidden", func(t *testing.T) {
		store := newMockFindingStore()
		cfg := &Config{Edges: []Edge{
			{From: vulnerability.StatusOpen, To: vulnerability.StatusIgnored, RequiredRole: RoleSecurityEngineer},
		}}
		svc := NewService(NewEngine(cfg), store, nil)

		findingID := shared.NewID()
		store.statuses[findingID] = vulnerability.StatusOpen

		_, err := svc.Transition(ctx, findingID, actor, TransitionInput{To: vulnerability.StatusIgnored}, RoleDeveloper)
		if !shared.IsForbidden(err) {
			t.Errorf("error = %v, want forbidden error", err)
		}
	})

	t.Run("system actor bypasses role gate", func(t *testing.T) {
		store := newMockFindingStore()
		cfg := &Config{Edges: []Edge{
			{From: vulnerability.StatusOpen, To: vulnerability.StatusFixed, RequiredRole: RoleProjectAdmin},
		}}
		svc := NewService(NewEngine(cfg), store, nil)

		findingID := shared.NewID()
		store.statuses[findingID] = vulnerability.StatusOpen

		entry, err := svc.Transition(ctx, findingID, SystemActor(), TransitionInput{
			To:       vulnerability.StatusFixed,
			Evidence: map[string]any{"auto_resolved": true},
		}, "")
		if err != nil {
			t.Fatalf("Transition() error = %v", err)
		}
		if entry.ActorName != SystemActorName {
			t.Errorf("actor = %s, want system", entry.ActorName)
		}
	})

	t.Run("unknown finding", func(t *testing.T) {
		store := newMockFindingStore()
		svc := NewService(NewEngine(nil), store, nil)

		_, err := svc.Transition(ctx, shared.NewID(), actor, TransitionInput{To: vulnerability.StatusFixed}, "")
		if !shared.IsNotFound(err) {
			t.Errorf("error = %v, want not found", err)
		}
	})
}

func TestService_BulkTransition(t *testing.T) {
	ctx := context.Background()
	store := newMockFindingStore()
	svc := NewService(NewEngine(nil), store, nil)

	open1 := shared.NewID()
	open2 := shared.NewID()
	alreadyClosed := shared.NewID()
	store.statuses[open1] = vulnerability.StatusOpen
	store.statuses[open2] = vulnerability.StatusOpen
	store.statuses[alreadyClosed] = vulnerability.StatusClosed

	result := svc.BulkTransition(ctx, []shared.ID{open1, alreadyClosed, open2}, SystemActor(), TransitionInput{
		To:      vulnerability.StatusIgnored,
		Comment: "accepted baseline noise",
	}, "")

	if len(result.Succeeded) != 2 {
		t.Errorf("succeeded = %d, want 2", len(result.Succeeded))
	}
	if len(result.Failed) != 1 {
		t.Fatalf("failed = %d, want 1", len(result.Failed))
	}
	if !result.Failed[0].FindingID.Equals(alreadyClosed) {
		t.Error("wrong finding reported as failed")
	}
	if result.Failed[0].Reason == "" {
		t.Error("failure must carry a reason")
	}

	// The batch keeps going after a failure.
	if store.statuses[open2] != vulnerability.StatusIgnored {
		t.Error("finding after the failed one was not processed")
	}
}

func TestService_AvailableTransitions(t *testing.T) {
	ctx := context.Background()
	store := newMockFindingStore()
	svc := NewService(NewEngine(nil), store, nil)

	findingID := shared.NewID()
	store.statuses[findingID] = vulnerability.StatusClosed

	current, targets, err := svc.AvailableTransitions(ctx, findingID, "")
	if err != nil {
		t.Fatalf("AvailableTransitions() error = %v", err)
	}
	if current != vulnerability.StatusClosed {
		t.Errorf("current = %s, want closed", current)
	}
	if len(targets) != 1 || targets[0] != vulnerability.StatusOpen {
		t.Errorf("targets = %v, want [open]", targets)
	}
}
