package workflow

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testMissionConfig() MissionConfig {
	return MissionConfig{
		LoadDuration:    time.Millisecond,
		UnloadDuration:  time.Millisecond,
		TravelPerMinute: time.Millisecond,
		BatteryFloorPct: 20,
		BatteryDrainPct: 3,
	}
}

func newTestGate(store Store, esc EscalationConfig) *Gate {
	mission := NewMission(store, instantClock{}, nil, zap.NewNop(), nil, testMissionConfig())
	return NewGate(store, mission, instantClock{}, nil, zap.NewNop(), esc)
}

// runToApproval drives a fresh request through analysis so it sits at the
// gate.
func runToApproval(t *testing.T, store Store, id string) {
	t.Helper()
	_, err := store.Create(testRequest(id))
	require.NoError(t, err)
	newTestPipeline(store, happyCollaborators()).Run(context.Background(), id)
	snap, err := store.Snapshot(id)
	require.NoError(t, err)
	require.Equal(t, StatusAwaitingApproval, snap.Status)
}

func TestGateDecideRequiresAwaitingApproval(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Create(testRequest("REQ-1"))
	require.NoError(t, err)

	err = newTestGate(store, EscalationConfig{}).Decide(context.Background(), "REQ-1", true, "")
	assert.ErrorIs(t, err, ErrInvalidState)

	err = newTestGate(store, EscalationConfig{}).Decide(context.Background(), "REQ-missing", true, "")
	assert.ErrorIs(t, err, ErrUnknownRequest)
}

func TestGateApproveRunsMissionToCompletion(t *testing.T) {
	store := NewMemoryStore()
	runToApproval(t, store, "REQ-1")

	gate := newTestGate(store, EscalationConfig{})
	require.NoError(t, gate.Decide(context.Background(), "REQ-1", true, "looks good"))

	assert.Eventually(t, func() bool {
		snap, err := store.Snapshot("REQ-1")
		return err == nil && snap.Status == StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	snap, err := store.Snapshot("REQ-1")
	require.NoError(t, err)
	require.NotNil(t, snap.Mission)
	assert.Equal(t, MissionCompleted, snap.Mission.Phase)
	assert.Equal(t, 0, snap.Mission.CargoQty)
	assert.Equal(t, StepDelivery, snap.Step)
	assert.Equal(t, snap.Request.Destination, snap.Mission.Location)
}

func TestGateRejectTerminatesRequest(t *testing.T) {
	store := NewMemoryStore()
	runToApproval(t, store, "REQ-1")

	gate := newTestGate(store, EscalationConfig{})
	require.NoError(t, gate.Decide(context.Background(), "REQ-1", false, "budget freeze"))

	snap, err := store.Snapshot("REQ-1")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, snap.Status)
	assert.Nil(t, snap.Mission)

	last := snap.AgentLog[len(snap.AgentLog)-1]
	assert.Contains(t, last.Message, "rejected by supervisor")
	assert.Contains(t, last.Message, "budget freeze")
}

func TestGateDecideIsSingleShot(t *testing.T) {
	store := NewMemoryStore()
	runToApproval(t, store, "REQ-1")

	gate := newTestGate(store, EscalationConfig{})
	require.NoError(t, gate.Decide(context.Background(), "REQ-1", false, ""))

	err := gate.Decide(context.Background(), "REQ-1", true, "")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestGateConcurrentDecidersLeaveOneAuditEntry(t *testing.T) {
	store := NewMemoryStore()
	runToApproval(t, store, "REQ-1")

	before, err := store.Snapshot("REQ-1")
	require.NoError(t, err)
	gate := newTestGate(store, EscalationConfig{})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() { defer wg.Done(); errs[0] = gate.Decide(context.Background(), "REQ-1", true, "") }()
	go func() { defer wg.Done(); errs[1] = gate.Decide(context.Background(), "REQ-1", false, "") }()
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, ErrInvalidState)
		}
	}
	assert.Equal(t, 1, wins)

	assert.Eventually(t, func() bool {
		snap, err := store.Snapshot("REQ-1")
		return err == nil && snap.Status.Terminal()
	}, 2*time.Second, 10*time.Millisecond)

	// Exactly one decision entry was committed; the loser left no trace.
	snap, err := store.Snapshot("REQ-1")
	require.NoError(t, err)
	decisions := 0
	for _, e := range snap.AgentLog[len(before.AgentLog):] {
		if strings.Contains(e.Message, "by supervisor") {
			decisions++
		}
	}
	assert.Equal(t, 1, decisions)
}

func TestGateEscalationAutoReject(t *testing.T) {
	store := NewMemoryStore()
	runToApproval(t, store, "REQ-1")

	gate := newTestGate(store, EscalationConfig{
		Enabled: true,
		Window:  time.Millisecond,
		Policy:  EscalateReject,
	})
	gate.ArmEscalation("REQ-1")

	assert.Eventually(t, func() bool {
		snap, err := store.Snapshot("REQ-1")
		return err == nil && snap.Status == StatusRejected
	}, 2*time.Second, 10*time.Millisecond)

	snap, err := store.Snapshot("REQ-1")
	require.NoError(t, err)
	last := snap.AgentLog[len(snap.AgentLog)-1]
	assert.Contains(t, last.Message, "escalation window")
}

func TestGateEscalationDisabledByDefault(t *testing.T) {
	store := NewMemoryStore()
	runToApproval(t, store, "REQ-1")

	gate := newTestGate(store, EscalationConfig{})
	gate.ArmEscalation("REQ-1")

	time.Sleep(50 * time.Millisecond)
	snap, err := store.Snapshot("REQ-1")
	require.NoError(t, err)
	assert.Equal(t, StatusAwaitingApproval, snap.Status)
}
