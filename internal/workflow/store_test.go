package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequest(id string) Request {
	return Request{
		RequestID:   id,
		PartNumber:  "HYDRAULIC-PUMP-HP450",
		Quantity:    15,
		Destination: "Production Line A",
		Priority:    PriorityHigh,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestMemoryStoreCreate(t *testing.T) {
	s := NewMemoryStore()

	st, err := s.Create(testRequest("REQ-1"))
	require.NoError(t, err)
	assert.Equal(t, "REQ-1", st.RequestID)
	assert.Equal(t, StatusAnalyzing, st.Status)
	assert.Equal(t, 0, st.Step)
	assert.Empty(t, st.AgentLog)

	_, err = s.Create(testRequest("REQ-1"))
	assert.ErrorIs(t, err, ErrDuplicateRequest)
}

func TestMemoryStoreCreateBlockedUntilReset(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Create(testRequest("REQ-1"))
	require.NoError(t, err)

	require.NoError(t, s.SetStatus("REQ-1", StatusFailed))

	// Terminal state still occupies the id.
	_, err = s.Create(testRequest("REQ-1"))
	assert.ErrorIs(t, err, ErrDuplicateRequest)

	require.NoError(t, s.Reset("REQ-1"))
	_, err = s.Create(testRequest("REQ-1"))
	assert.NoError(t, err)
}

func TestMemoryStoreUnknownRequest(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Snapshot("missing")
	assert.ErrorIs(t, err, ErrUnknownRequest)
	assert.ErrorIs(t, s.AppendLog("missing", StepIntake, "a", "m"), ErrUnknownRequest)
	assert.ErrorIs(t, s.AdvanceStep("missing", StepIntake), ErrUnknownRequest)
	assert.ErrorIs(t, s.SetStatus("missing", StatusFailed), ErrUnknownRequest)
	assert.ErrorIs(t, s.Reset("missing"), ErrUnknownRequest)
}

func TestMemoryStoreStepIsMonotonic(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Create(testRequest("REQ-1"))
	require.NoError(t, err)

	require.NoError(t, s.AdvanceStep("REQ-1", StepInventory))
	assert.ErrorIs(t, s.AdvanceStep("REQ-1", StepIntake), ErrInvalidTransition)

	// Re-committing the current step is a no-op, not a violation.
	assert.NoError(t, s.AdvanceStep("REQ-1", StepInventory))
}

func TestMemoryStoreSnapshotHidesFutureEntries(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Create(testRequest("REQ-1"))
	require.NoError(t, err)

	require.NoError(t, s.AppendLog("REQ-1", StepIntake, "LogisticsOrchestrator", "accepted"))
	require.NoError(t, s.AdvanceStep("REQ-1", StepIntake))
	require.NoError(t, s.AppendLog("REQ-1", StepInventory, "InventoryAgent", "checking"))

	snap, err := s.Snapshot("REQ-1")
	require.NoError(t, err)
	require.Len(t, snap.AgentLog, 1)
	assert.Equal(t, "accepted", snap.AgentLog[0].Message)

	require.NoError(t, s.AdvanceStep("REQ-1", StepInventory))
	snap, err = s.Snapshot("REQ-1")
	require.NoError(t, err)
	require.Len(t, snap.AgentLog, 2)
	assert.Equal(t, "checking", snap.AgentLog[1].Message)
}

func TestMemoryStoreSnapshotIsIsolatedCopy(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Create(testRequest("REQ-1"))
	require.NoError(t, err)
	require.NoError(t, s.AppendLog("REQ-1", StepIntake, "a", "first"))
	require.NoError(t, s.AdvanceStep("REQ-1", StepIntake))
	require.NoError(t, s.SetMission("REQ-1", MissionState{MissionID: "MSN-1", Phase: MissionAccepted}))

	snap, err := s.Snapshot("REQ-1")
	require.NoError(t, err)
	snap.AgentLog[0].Message = "tampered"
	snap.Mission.Phase = MissionFailed

	again, err := s.Snapshot("REQ-1")
	require.NoError(t, err)
	assert.Equal(t, "first", again.AgentLog[0].Message)
	assert.Equal(t, MissionAccepted, again.Mission.Phase)
}

func TestMemoryStoreSequencesAreGloballyIncreasing(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Create(testRequest("REQ-1"))
	require.NoError(t, err)
	_, err = s.Create(testRequest("REQ-2"))
	require.NoError(t, err)

	require.NoError(t, s.AppendLog("REQ-1", StepIntake, "a", "one"))
	require.NoError(t, s.AppendLog("REQ-2", StepIntake, "a", "two"))
	require.NoError(t, s.AppendLog("REQ-1", StepIntake, "a", "three"))
	require.NoError(t, s.AdvanceStep("REQ-1", StepIntake))
	require.NoError(t, s.AdvanceStep("REQ-2", StepIntake))

	one, err := s.Snapshot("REQ-1")
	require.NoError(t, err)
	two, err := s.Snapshot("REQ-2")
	require.NoError(t, err)

	require.Len(t, one.AgentLog, 2)
	require.Len(t, two.AgentLog, 1)
	assert.Less(t, one.AgentLog[0].Sequence, two.AgentLog[0].Sequence)
	assert.Less(t, two.AgentLog[0].Sequence, one.AgentLog[1].Sequence)
}

func TestMemoryStoreStatusTransitions(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Create(testRequest("REQ-1"))
	require.NoError(t, err)

	// Cannot skip ahead from ANALYZING.
	assert.ErrorIs(t, s.SetStatus("REQ-1", StatusCompleted), ErrInvalidTransition)
	assert.ErrorIs(t, s.SetStatus("REQ-1", StatusDispatching), ErrInvalidTransition)

	require.NoError(t, s.SetStatus("REQ-1", StatusAwaitingApproval))
	require.NoError(t, s.SetStatus("REQ-1", StatusDispatching))
	require.NoError(t, s.SetStatus("REQ-1", StatusMissionInProgress))
	require.NoError(t, s.SetStatus("REQ-1", StatusCompleted))

	// Terminal states accept no further transitions.
	assert.ErrorIs(t, s.SetStatus("REQ-1", StatusFailed), ErrInvalidTransition)
}

func TestMemoryStoreTerminalBlocksWrites(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Create(testRequest("REQ-1"))
	require.NoError(t, err)
	require.NoError(t, s.SetStatus("REQ-1", StatusFailed))

	assert.Error(t, s.AppendLog("REQ-1", StepInventory, "a", "late"))
	assert.ErrorIs(t, s.AdvanceStep("REQ-1", StepInventory), ErrInvalidState)
	assert.ErrorIs(t, s.SetInventoryResult("REQ-1", InventoryResult{AvailableQty: 1}), ErrInvalidState)

	// Reads still work after the terminal transition.
	snap, err := s.Snapshot("REQ-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, snap.Status)
}

func TestMemoryStoreResetRequiresTerminal(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Create(testRequest("REQ-1"))
	require.NoError(t, err)

	assert.ErrorIs(t, s.Reset("REQ-1"), ErrInvalidState)

	require.NoError(t, s.SetStatus("REQ-1", StatusAwaitingApproval))
	require.NoError(t, s.SetStatus("REQ-1", StatusRejected))
	require.NoError(t, s.Reset("REQ-1"))

	_, err = s.Snapshot("REQ-1")
	assert.ErrorIs(t, err, ErrUnknownRequest)
}

func TestMemoryStoreTransitionIsAtomic(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Create(testRequest("REQ-1"))
	require.NoError(t, err)
	require.NoError(t, s.SetStatus("REQ-1", StatusAwaitingApproval))

	require.NoError(t, s.Transition("REQ-1", StatusDispatching, StepCost, "ApproverAgent", "approved"))

	// A refused transition must leave no log entry behind.
	err = s.Transition("REQ-1", StatusRejected, StepCost, "ApproverAgent", "rejected")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	snap, err := s.Snapshot("REQ-1")
	require.NoError(t, err)
	assert.Equal(t, StatusDispatching, snap.Status)
	require.Len(t, snap.AgentLog, 1)
	assert.Equal(t, "approved", snap.AgentLog[0].Message)
}

func TestMemoryStoreTransitionUnknownRequest(t *testing.T) {
	s := NewMemoryStore()
	err := s.Transition("missing", StatusRejected, StepCost, "a", "m")
	assert.ErrorIs(t, err, ErrUnknownRequest)
}

func TestMemoryStoreHasActive(t *testing.T) {
	s := NewMemoryStore()
	assert.False(t, s.HasActive())

	_, err := s.Create(testRequest("REQ-1"))
	require.NoError(t, err)
	assert.True(t, s.HasActive())

	require.NoError(t, s.SetStatus("REQ-1", StatusFailed))
	assert.False(t, s.HasActive())
}

func TestMemoryStoreSweep(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Create(testRequest("REQ-old"))
	require.NoError(t, err)
	_, err = s.Create(testRequest("REQ-live"))
	require.NoError(t, err)
	require.NoError(t, s.SetStatus("REQ-old", StatusFailed))

	// Nothing is old enough yet.
	assert.Equal(t, 0, s.Sweep(time.Now().UTC().Add(-time.Minute)))

	removed := s.Sweep(time.Now().UTC().Add(time.Minute))
	assert.Equal(t, 1, removed)

	_, err = s.Snapshot("REQ-old")
	assert.ErrorIs(t, err, ErrUnknownRequest)
	_, err = s.Snapshot("REQ-live")
	assert.NoError(t, err)
}

func TestParsePriority(t *testing.T) {
	p, err := ParsePriority(" high ")
	require.NoError(t, err)
	assert.Equal(t, PriorityHigh, p)

	_, err = ParsePriority("ASAP")
	assert.ErrorIs(t, err, ErrValidation)
}
