package workflow

import (
	"fmt"
	"sync"
	"time"
)

// Store is the single authoritative record of workflow state. Mutations are
// serialized; reads only ever observe fully committed states.
type Store interface {
	Create(req Request) (State, error)
	AppendLog(requestID string, step int, agent, message string) error
	AdvanceStep(requestID string, newStep int) error
	SetStatus(requestID string, status Status) error
	Transition(requestID string, status Status, step int, agent, message string) error
	SetInventoryResult(requestID string, r InventoryResult) error
	SetFleetResult(requestID string, r FleetResult) error
	SetCostResult(requestID string, r CostResult) error
	SetMission(requestID string, m MissionState) error
	Snapshot(requestID string) (State, error)
	HasActive() bool
	Reset(requestID string) error
	Sweep(olderThan time.Time) int
}

type memState struct {
	state      State
	terminalAt time.Time
}

// MemoryStore keeps all state in process memory for the process lifetime.
type MemoryStore struct {
	mu     sync.RWMutex
	seq    uint64
	states map[string]*memState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: map[string]*memState{}}
}

func (s *MemoryStore) Create(req Request) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.states[req.RequestID]; ok {
		return State{}, fmt.Errorf("%w: %s", ErrDuplicateRequest, req.RequestID)
	}
	st := State{
		RequestID: req.RequestID,
		Request:   req,
		Step:      0,
		Status:    StatusAnalyzing,
		AgentLog:  []LogEntry{},
		UpdatedAt: time.Now().UTC(),
	}
	s.states[req.RequestID] = &memState{state: st}
	return copyState(st), nil
}

func (s *MemoryStore) AppendLog(requestID string, step int, agent, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.states[requestID]
	if !ok || rec.state.Status.Terminal() {
		return fmt.Errorf("%w: %s", ErrUnknownRequest, requestID)
	}
	s.seq++
	rec.state.AgentLog = append(rec.state.AgentLog, LogEntry{
		Sequence:  s.seq,
		Step:      step,
		Agent:     agent,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
	rec.state.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) AdvanceStep(requestID string, newStep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.states[requestID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRequest, requestID)
	}
	if rec.state.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrInvalidState, requestID, rec.state.Status)
	}
	if newStep < rec.state.Step {
		return fmt.Errorf("%w: step %d -> %d", ErrInvalidTransition, rec.state.Step, newStep)
	}
	rec.state.Step = newStep
	rec.state.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) SetStatus(requestID string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.states[requestID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRequest, requestID)
	}
	if !canTransition(rec.state.Status, status) {
		return fmt.Errorf("%w: status %s -> %s", ErrInvalidTransition, rec.state.Status, status)
	}
	rec.state.Status = status
	rec.state.UpdatedAt = time.Now().UTC()
	if status.Terminal() {
		rec.terminalAt = time.Now().UTC()
	}
	return nil
}

// Transition appends a log entry and changes status as one atomic operation.
// When two callers race, exactly one commits; the loser leaves no log entry
// behind.
func (s *MemoryStore) Transition(requestID string, status Status, step int, agent, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.states[requestID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRequest, requestID)
	}
	if !canTransition(rec.state.Status, status) {
		return fmt.Errorf("%w: status %s -> %s", ErrInvalidTransition, rec.state.Status, status)
	}
	s.seq++
	rec.state.AgentLog = append(rec.state.AgentLog, LogEntry{
		Sequence:  s.seq,
		Step:      step,
		Agent:     agent,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
	rec.state.Status = status
	rec.state.UpdatedAt = time.Now().UTC()
	if status.Terminal() {
		rec.terminalAt = time.Now().UTC()
	}
	return nil
}

func (s *MemoryStore) SetInventoryResult(requestID string, r InventoryResult) error {
	return s.mutate(requestID, func(st *State) {
		cp := r
		st.PhaseResults.Inventory = &cp
	})
}

func (s *MemoryStore) SetFleetResult(requestID string, r FleetResult) error {
	return s.mutate(requestID, func(st *State) {
		cp := r
		st.PhaseResults.Fleet = &cp
	})
}

func (s *MemoryStore) SetCostResult(requestID string, r CostResult) error {
	return s.mutate(requestID, func(st *State) {
		cp := r
		st.PhaseResults.Cost = &cp
	})
}

func (s *MemoryStore) SetMission(requestID string, m MissionState) error {
	return s.mutate(requestID, func(st *State) {
		cp := m
		st.Mission = &cp
	})
}

func (s *MemoryStore) mutate(requestID string, fn func(*State)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.states[requestID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRequest, requestID)
	}
	if rec.state.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrInvalidState, requestID, rec.state.Status)
	}
	fn(&rec.state)
	rec.state.UpdatedAt = time.Now().UTC()
	return nil
}

// Snapshot returns a deep copy filtered so no log entry is ahead of the
// current step. The append-then-advance discipline makes the filter
// redundant in the happy path; it stays as a defensive read-time guarantee.
func (s *MemoryStore) Snapshot(requestID string) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.states[requestID]
	if !ok {
		return State{}, fmt.Errorf("%w: %s", ErrUnknownRequest, requestID)
	}
	return copyState(rec.state), nil
}

func (s *MemoryStore) HasActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.states {
		if !rec.state.Status.Terminal() {
			return true
		}
	}
	return false
}

func (s *MemoryStore) Reset(requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.states[requestID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRequest, requestID)
	}
	if !rec.state.Status.Terminal() {
		return fmt.Errorf("%w: %s is still %s", ErrInvalidState, requestID, rec.state.Status)
	}
	delete(s.states, requestID)
	return nil
}

// Sweep discards terminal states older than the cutoff and reports how many
// were removed.
func (s *MemoryStore) Sweep(olderThan time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, rec := range s.states {
		if rec.state.Status.Terminal() && rec.terminalAt.Before(olderThan) {
			delete(s.states, id)
			removed++
		}
	}
	return removed
}

func copyState(st State) State {
	out := st
	if st.Mission != nil {
		m := *st.Mission
		out.Mission = &m
	}
	if st.PhaseResults.Inventory != nil {
		r := *st.PhaseResults.Inventory
		out.PhaseResults.Inventory = &r
	}
	if st.PhaseResults.Fleet != nil {
		r := *st.PhaseResults.Fleet
		out.PhaseResults.Fleet = &r
	}
	if st.PhaseResults.Cost != nil {
		r := *st.PhaseResults.Cost
		out.PhaseResults.Cost = &r
	}
	out.AgentLog = visibleLog(st.AgentLog, st.Step)
	return out
}

func visibleLog(entries []LogEntry, step int) []LogEntry {
	out := make([]LogEntry, 0, len(entries))
	for _, e := range entries {
		if e.Step <= step {
			out = append(out, e)
		}
	}
	return out
}
