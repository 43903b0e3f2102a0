package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Escalation policies for an approval that sits unanswered past the window.
const (
	EscalateExtend = "extend"
	EscalateReject = "reject"
)

// EscalationConfig is an explicit policy choice: the gate never times out
// unless enabled here.
type EscalationConfig struct {
	Enabled bool
	Window  time.Duration
	Policy  string
}

// Gate holds a request at AWAITING_APPROVAL until an external decision
// arrives. It holds no goroutine while waiting; Decide runs on the caller's
// execution context and is what spawns the mission worker.
type Gate struct {
	store      Store
	mission    *Mission
	clock      Clock
	notify     *Notifier
	logger     *zap.Logger
	escalation EscalationConfig
}

func NewGate(store Store, mission *Mission, clock Clock, notify *Notifier, logger *zap.Logger, escalation EscalationConfig) *Gate {
	if escalation.Window <= 0 {
		escalation.Window = 10 * time.Minute
	}
	if escalation.Policy == "" {
		escalation.Policy = EscalateExtend
	}
	return &Gate{
		store:      store,
		mission:    mission,
		clock:      clock,
		notify:     notify,
		logger:     logger,
		escalation: escalation,
	}
}

// Decide resolves the approval suspension point. Approval releases the
// request into dispatch and starts the mission worker; rejection terminates
// it.
func (g *Gate) Decide(ctx context.Context, requestID string, approved bool, rationale string) error {
	snap, err := g.store.Snapshot(requestID)
	if err != nil {
		return err
	}
	if snap.Status != StatusAwaitingApproval {
		return fmt.Errorf("%w: %s is %s, not awaiting approval", ErrInvalidState, requestID, snap.Status)
	}

	// The transition commits the decision log entry and the status change
	// atomically, so a losing concurrent decider leaves no audit trace.
	if !approved {
		msg := "Request rejected by supervisor"
		if rationale != "" {
			msg = fmt.Sprintf("Request rejected by supervisor: %s", rationale)
		}
		if err := g.store.Transition(requestID, StatusRejected, StepCost, "ApproverAgent", msg); err != nil {
			if errors.Is(err, ErrInvalidTransition) {
				return fmt.Errorf("%w: %s already decided", ErrInvalidState, requestID)
			}
			return err
		}
		g.notify.RunEvent(requestID, StatusRejected, snap.Step, "run.rejected", rationale)
		g.logger.Info("request rejected", zap.String("request_id", requestID), zap.String("rationale", rationale))
		return nil
	}

	msg := "Request approved by supervisor"
	if rationale != "" {
		msg = fmt.Sprintf("Request approved by supervisor: %s", rationale)
	}
	if err := g.store.Transition(requestID, StatusDispatching, StepCost, "ApproverAgent", msg); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return fmt.Errorf("%w: %s already decided", ErrInvalidState, requestID)
		}
		return err
	}
	g.notify.RunEvent(requestID, StatusDispatching, snap.Step, "run.approved", rationale)
	g.logger.Info("request approved", zap.String("request_id", requestID))
	go g.mission.Run(context.Background(), requestID)
	return nil
}

// ArmEscalation starts the optional escalation watch for a request that just
// reached AWAITING_APPROVAL. With the policy disabled this is a no-op and
// the gate waits indefinitely.
func (g *Gate) ArmEscalation(requestID string) {
	if !g.escalation.Enabled {
		return
	}
	go g.watch(requestID)
}

func (g *Gate) watch(requestID string) {
	ctx := context.Background()
	for {
		if err := g.clock.Sleep(ctx, g.escalation.Window); err != nil {
			return
		}
		snap, err := g.store.Snapshot(requestID)
		if err != nil || snap.Status != StatusAwaitingApproval {
			return
		}
		if g.escalation.Policy == EscalateReject {
			reason := fmt.Sprintf("no decision within %s escalation window", g.escalation.Window)
			if err := g.Decide(ctx, requestID, false, reason); err != nil {
				g.logger.Warn("escalation auto-reject", zap.String("request_id", requestID), zap.Error(err))
			}
			return
		}
		if err := g.store.AppendLog(requestID, StepCost, "ApproverAgent",
			fmt.Sprintf("Approval pending for more than %s, escalating to supervisor", g.escalation.Window)); err != nil {
			return
		}
		g.notify.RunEvent(requestID, StatusAwaitingApproval, snap.Step, "run.escalated", "")
		g.logger.Warn("approval escalated", zap.String("request_id", requestID))
	}
}
