package workflow

import (
	"fmt"
	"strings"
	"time"
)

// Priority of a logistics request, highest last.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

func ParsePriority(raw string) (Priority, error) {
	switch Priority(strings.ToUpper(strings.TrimSpace(raw))) {
	case PriorityLow:
		return PriorityLow, nil
	case PriorityMedium:
		return PriorityMedium, nil
	case PriorityHigh:
		return PriorityHigh, nil
	case PriorityCritical:
		return PriorityCritical, nil
	default:
		return "", fmt.Errorf("%w: unknown priority %q", ErrValidation, raw)
	}
}

// Status of a workflow request.
type Status string

const (
	StatusAnalyzing         Status = "ANALYZING"
	StatusAwaitingApproval  Status = "AWAITING_APPROVAL"
	StatusRejected          Status = "REJECTED"
	StatusDispatching       Status = "DISPATCHING"
	StatusMissionInProgress Status = "MISSION_IN_PROGRESS"
	StatusCompleted         Status = "COMPLETED"
	StatusFailed            Status = "FAILED"
)

func (s Status) Terminal() bool {
	switch s {
	case StatusRejected, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

var statusTransitions = map[Status][]Status{
	StatusAnalyzing:         {StatusAwaitingApproval, StatusFailed},
	StatusAwaitingApproval:  {StatusDispatching, StatusRejected, StatusFailed},
	StatusDispatching:       {StatusMissionInProgress, StatusFailed},
	StatusMissionInProgress: {StatusCompleted, StatusFailed},
}

func canTransition(from, to Status) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// MissionPhase of the AGV delivery lifecycle.
type MissionPhase string

const (
	MissionAccepted         MissionPhase = "ACCEPTED"
	MissionMovingToPickup   MissionPhase = "MOVING_TO_PICKUP"
	MissionAtPickup         MissionPhase = "AT_PICKUP"
	MissionLoading          MissionPhase = "LOADING"
	MissionMovingToDelivery MissionPhase = "MOVING_TO_DELIVERY"
	MissionAtDelivery       MissionPhase = "AT_DELIVERY"
	MissionUnloading        MissionPhase = "UNLOADING"
	MissionCompleted        MissionPhase = "COMPLETED"
	MissionFailed           MissionPhase = "FAILED"
)

// Step markers gate log visibility: an entry tagged with a step is only
// returned to readers once the request has advanced at least that far.
const (
	StepIntake    = 1
	StepInventory = 2
	StepFleet     = 3
	StepCost      = 4
	StepDispatch  = 5
	StepPickup    = 6
	StepDelivery  = 7
)

// Request is immutable once created.
type Request struct {
	RequestID   string    `json:"request_id"`
	PartNumber  string    `json:"part_number"`
	Quantity    int       `json:"quantity"`
	Destination string    `json:"destination"`
	Priority    Priority  `json:"priority"`
	CreatedAt   time.Time `json:"created_at"`
}

// LogEntry is immutable once appended. Sequence numbers come from a single
// counter shared by all requests.
type LogEntry struct {
	Sequence  uint64    `json:"sequence"`
	Step      int       `json:"step"`
	Agent     string    `json:"agent"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// MissionState tracks one AGV delivery. Frozen once the phase is COMPLETED
// or FAILED.
type MissionState struct {
	MissionID  string       `json:"mission_id"`
	VehicleID  string       `json:"vehicle_id"`
	Phase      MissionPhase `json:"phase"`
	Location   string       `json:"location"`
	BatteryPct int          `json:"battery_pct"`
	CargoQty   int          `json:"cargo_qty"`
}

// PhaseResults holds collaborator output in fixed pipeline order. A later
// field is never set while an earlier one is nil.
type PhaseResults struct {
	Inventory *InventoryResult `json:"inventory,omitempty"`
	Fleet     *FleetResult     `json:"fleet,omitempty"`
	Cost      *CostResult      `json:"cost,omitempty"`
}

// State is the authoritative record for one request. It is owned by the
// store and mutated only through store operations.
type State struct {
	RequestID    string        `json:"request_id"`
	Request      Request       `json:"request"`
	Step         int           `json:"step"`
	Status       Status        `json:"status"`
	PhaseResults PhaseResults  `json:"phase_results"`
	Mission      *MissionState `json:"mission,omitempty"`
	AgentLog     []LogEntry    `json:"agent_log"`
	UpdatedAt    time.Time     `json:"updated_at"`
}
