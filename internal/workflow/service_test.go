package workflow

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(store Store, collab Collaborators, singleFlight bool) *Service {
	clock := instantClock{}
	logger := zap.NewNop()
	pipeline := NewPipeline(store, collab, clock, nil, logger, nil, time.Millisecond)
	mission := NewMission(store, clock, nil, logger, nil, testMissionConfig())
	gate := NewGate(store, mission, clock, nil, logger, EscalationConfig{})
	return NewService(store, pipeline, gate, clock, nil, logger, nil, singleFlight)
}

func submitRequest() SubmitRequest {
	return SubmitRequest{
		PartNumber:  "HYDRAULIC-PUMP-HP450",
		Quantity:    15,
		Destination: "Production Line A",
		Priority:    "HIGH",
	}
}

func awaitStatus(t *testing.T, svc *Service, id string, want Status) State {
	t.Helper()
	require.Eventually(t, func() bool {
		snap, err := svc.Status(context.Background(), id)
		return err == nil && snap.Status == want
	}, 2*time.Second, 10*time.Millisecond)
	snap, err := svc.Status(context.Background(), id)
	require.NoError(t, err)
	return snap
}

func TestServiceSubmitGeneratesRequestID(t *testing.T) {
	svc := newTestService(NewMemoryStore(), happyCollaborators(), false)

	id, err := svc.Submit(context.Background(), submitRequest())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "REQ-HYDRAULIC-PUMP-HP450-"), id)

	awaitStatus(t, svc, id, StatusAwaitingApproval)
}

func TestServiceSubmitValidation(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store, happyCollaborators(), false)

	cases := []SubmitRequest{
		{Quantity: 15, Destination: "Line A", Priority: "HIGH"},
		{PartNumber: "P", Destination: "Line A", Priority: "HIGH"},
		{PartNumber: "P", Quantity: -3, Destination: "Line A", Priority: "HIGH"},
		{PartNumber: "P", Quantity: 15, Priority: "HIGH"},
		{PartNumber: "P", Quantity: 15, Destination: "Line A", Priority: "ASAP"},
	}
	for _, in := range cases {
		_, err := svc.Submit(context.Background(), in)
		assert.ErrorIs(t, err, ErrValidation)
	}

	// Validation failures leave no trace behind.
	assert.False(t, store.HasActive())
}

func TestServiceSubmitDuplicateID(t *testing.T) {
	svc := newTestService(NewMemoryStore(), happyCollaborators(), false)

	in := submitRequest()
	in.RequestID = "REQ-FIXED"
	_, err := svc.Submit(context.Background(), in)
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), in)
	assert.ErrorIs(t, err, ErrDuplicateRequest)
}

func TestServiceSingleFlight(t *testing.T) {
	svc := newTestService(NewMemoryStore(), happyCollaborators(), true)

	_, err := svc.Submit(context.Background(), submitRequest())
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), submitRequest())
	assert.ErrorIs(t, err, ErrDuplicateRequest)
}

func TestServiceConcurrentSubmitsSameIDSingleWinner(t *testing.T) {
	svc := newTestService(NewMemoryStore(), happyCollaborators(), false)

	in := submitRequest()
	in.RequestID = "REQ-RACE"

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Submit(context.Background(), in)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, ErrDuplicateRequest)
		}
	}
	assert.Equal(t, 1, wins)
}

func TestServiceStatusReadsAreIdempotent(t *testing.T) {
	svc := newTestService(NewMemoryStore(), happyCollaborators(), false)

	id, err := svc.Submit(context.Background(), submitRequest())
	require.NoError(t, err)
	awaitStatus(t, svc, id, StatusAwaitingApproval)

	first, err := svc.Status(context.Background(), id)
	require.NoError(t, err)
	second, err := svc.Status(context.Background(), id)
	require.NoError(t, err)

	// No writes happened in between, so both reads serialize identically.
	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestServiceStatusUnknown(t *testing.T) {
	svc := newTestService(NewMemoryStore(), happyCollaborators(), false)
	_, err := svc.Status(context.Background(), "REQ-missing")
	assert.ErrorIs(t, err, ErrUnknownRequest)
}

func TestServiceFullApprovalFlow(t *testing.T) {
	svc := newTestService(NewMemoryStore(), happyCollaborators(), false)

	id, err := svc.Submit(context.Background(), submitRequest())
	require.NoError(t, err)

	snap := awaitStatus(t, svc, id, StatusAwaitingApproval)
	require.NotNil(t, snap.PhaseResults.Cost)
	assert.InDelta(t, 3675.00, snap.PhaseResults.Cost.TotalCost, 0.001)
	assert.True(t, snap.PhaseResults.Cost.ApprovalRequired)

	require.NoError(t, svc.Decide(context.Background(), id, true, "approved for production"))
	snap = awaitStatus(t, svc, id, StatusCompleted)

	require.NotNil(t, snap.Mission)
	assert.Equal(t, MissionCompleted, snap.Mission.Phase)
	assert.Equal(t, 0, snap.Mission.CargoQty)

	// The full narrative is visible and strictly ordered.
	assert.GreaterOrEqual(t, len(snap.AgentLog), 9)
	for i := 1; i < len(snap.AgentLog); i++ {
		assert.Greater(t, snap.AgentLog[i].Sequence, snap.AgentLog[i-1].Sequence)
	}
}

func TestServiceRejectionFlow(t *testing.T) {
	svc := newTestService(NewMemoryStore(), happyCollaborators(), false)

	id, err := svc.Submit(context.Background(), submitRequest())
	require.NoError(t, err)
	awaitStatus(t, svc, id, StatusAwaitingApproval)

	require.NoError(t, svc.Decide(context.Background(), id, false, "over budget"))
	snap, err := svc.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, snap.Status)
	assert.Nil(t, snap.Mission)

	// Second decision is refused.
	assert.ErrorIs(t, svc.Decide(context.Background(), id, true, ""), ErrInvalidState)
}

func TestServiceResetFreesRequestID(t *testing.T) {
	svc := newTestService(NewMemoryStore(), happyCollaborators(), false)

	in := submitRequest()
	in.RequestID = "REQ-REUSE"
	_, err := svc.Submit(context.Background(), in)
	require.NoError(t, err)
	awaitStatus(t, svc, "REQ-REUSE", StatusAwaitingApproval)

	// Reset is refused while the request is live.
	assert.ErrorIs(t, svc.Reset(context.Background(), "REQ-REUSE"), ErrInvalidState)

	require.NoError(t, svc.Decide(context.Background(), "REQ-REUSE", false, ""))
	require.NoError(t, svc.Reset(context.Background(), "REQ-REUSE"))

	_, err = svc.Status(context.Background(), "REQ-REUSE")
	assert.ErrorIs(t, err, ErrUnknownRequest)

	_, err = svc.Submit(context.Background(), in)
	assert.NoError(t, err)
}

func TestServiceDecideBeforeApprovalPoint(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store, happyCollaborators(), false)

	_, err := store.Create(testRequest("REQ-EARLY"))
	require.NoError(t, err)

	err = svc.Decide(context.Background(), "REQ-EARLY", true, "")
	assert.ErrorIs(t, err, ErrInvalidState)
}
