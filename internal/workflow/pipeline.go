package workflow

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ronappleton/logistics-orchestrator/internal/metrics"
)

// Pipeline runs the ordered analysis phases for one request in a background
// goroutine and leaves it awaiting approval. It writes every observable
// side effect through the store; the log-then-advance ordering is what keeps
// readers from seeing a phase before it is current.
type Pipeline struct {
	store    Store
	collab   Collaborators
	clock    Clock
	notify   *Notifier
	logger   *zap.Logger
	recorder *metrics.Recorder
	settle   time.Duration
}

func NewPipeline(store Store, collab Collaborators, clock Clock, notify *Notifier, logger *zap.Logger, recorder *metrics.Recorder, settle time.Duration) *Pipeline {
	if settle <= 0 {
		settle = time.Second
	}
	return &Pipeline{
		store:    store,
		collab:   collab,
		clock:    clock,
		notify:   notify,
		logger:   logger,
		recorder: recorder,
		settle:   settle,
	}
}

// Run drives the request from INTAKE through AWAITING_APPROVAL. Collaborator
// failures end the request as FAILED; they never escape the worker.
func (p *Pipeline) Run(ctx context.Context, requestID string) {
	snap, err := p.store.Snapshot(requestID)
	if err != nil {
		p.logger.Warn("pipeline start failed", zap.String("request_id", requestID), zap.Error(err))
		return
	}
	req := snap.Request

	// Intake.
	p.log(requestID, StepIntake, "LogisticsOrchestrator",
		fmt.Sprintf("Analyzing request for %s (%d units) to %s", req.PartNumber, req.Quantity, req.Destination))
	p.log(requestID, StepIntake, "LogisticsOrchestrator",
		fmt.Sprintf("Request accepted for analysis with %s priority", req.Priority))
	p.settleAndAdvance(ctx, requestID, StepIntake)

	// Inventory.
	p.log(requestID, StepInventory, "InventoryAgent",
		fmt.Sprintf("Checking inventory for part %s", req.PartNumber))
	inv, err := p.collab.Inventory.CheckInventory(ctx, req.PartNumber, req.Quantity)
	if err == nil {
		err = inv.validate()
	}
	if err != nil {
		p.fail(requestID, StepInventory, "InventoryAgent", &CollaboratorError{Phase: "inventory", Err: err})
		return
	}
	if err := p.store.SetInventoryResult(requestID, inv); err != nil {
		p.logger.Warn("store inventory result", zap.String("request_id", requestID), zap.Error(err))
		return
	}
	p.log(requestID, StepInventory, "InventoryAgent",
		fmt.Sprintf("Found %d units of %s in %s at $%.2f per unit", inv.AvailableQty, req.PartNumber, inv.Warehouse, inv.UnitCost))
	p.settleAndAdvance(ctx, requestID, StepInventory)

	// Fleet.
	p.log(requestID, StepFleet, "FleetAgent",
		fmt.Sprintf("Selecting AGV for delivery from %s to %s", inv.Warehouse, req.Destination))
	fleet, err := p.collab.Fleet.AssignVehicle(ctx, inv.Warehouse, req.Destination, req.Quantity)
	if err == nil {
		err = fleet.validate()
	}
	if err != nil {
		p.fail(requestID, StepFleet, "FleetAgent", &CollaboratorError{Phase: "fleet", Err: err})
		return
	}
	if err := p.store.SetFleetResult(requestID, fleet); err != nil {
		p.logger.Warn("store fleet result", zap.String("request_id", requestID), zap.Error(err))
		return
	}
	p.log(requestID, StepFleet, "FleetAgent",
		fmt.Sprintf("Assigned %s (battery %d%%) - route %.0fm, ETA %.1f min", fleet.VehicleID, fleet.BatteryPct, fleet.DistanceM, fleet.ETAMinutes))
	p.settleAndAdvance(ctx, requestID, StepFleet)

	// Cost.
	p.log(requestID, StepCost, "ApproverAgent",
		fmt.Sprintf("Calculating total cost for %s priority request", req.Priority))
	cost, err := p.collab.Cost.EvaluateCost(ctx, req.Quantity, inv.UnitCost, req.Priority)
	if err == nil {
		err = cost.validate()
	}
	if err != nil {
		p.fail(requestID, StepCost, "ApproverAgent", &CollaboratorError{Phase: "cost", Err: err})
		return
	}
	if err := p.store.SetCostResult(requestID, cost); err != nil {
		p.logger.Warn("store cost result", zap.String("request_id", requestID), zap.Error(err))
		return
	}
	p.log(requestID, StepCost, "ApproverAgent",
		fmt.Sprintf("Total cost calculated: $%.2f (%s tier)", cost.TotalCost, cost.ThresholdTier))
	p.settleAndAdvance(ctx, requestID, StepCost)

	p.log(requestID, StepCost, "LogisticsOrchestrator",
		fmt.Sprintf("Analysis complete. Total cost $%.2f. Awaiting supervisor approval.", cost.TotalCost))
	if err := p.store.SetStatus(requestID, StatusAwaitingApproval); err != nil {
		p.logger.Warn("set awaiting approval", zap.String("request_id", requestID), zap.Error(err))
		return
	}
	p.notify.RunEvent(requestID, StatusAwaitingApproval, StepCost, "run.awaiting_approval", "")
	p.logger.Info("analysis complete",
		zap.String("request_id", requestID),
		zap.Float64("total_cost", cost.TotalCost),
		zap.Bool("approval_required", cost.ApprovalRequired))
}

func (p *Pipeline) log(requestID string, step int, agent, message string) {
	if err := p.store.AppendLog(requestID, step, agent, message); err != nil {
		p.logger.Warn("append log", zap.String("request_id", requestID), zap.Error(err))
	}
}

// settleAndAdvance waits the configured pacing delay, then commits the step.
// The delay is observable pacing only, never a correctness requirement.
func (p *Pipeline) settleAndAdvance(ctx context.Context, requestID string, step int) {
	_ = p.clock.Sleep(ctx, p.settle)
	if err := p.store.AdvanceStep(requestID, step); err != nil {
		p.logger.Warn("advance step", zap.String("request_id", requestID), zap.Int("step", step), zap.Error(err))
	}
}

func (p *Pipeline) fail(requestID string, step int, agent string, cause error) {
	p.log(requestID, step, agent, fmt.Sprintf("Analysis failed: %v", cause))
	if err := p.store.AdvanceStep(requestID, step); err != nil {
		p.logger.Warn("advance step on failure", zap.String("request_id", requestID), zap.Error(err))
	}
	if err := p.store.SetStatus(requestID, StatusFailed); err != nil {
		p.logger.Warn("set failed status", zap.String("request_id", requestID), zap.Error(err))
	}
	p.notify.RunEvent(requestID, StatusFailed, step, "run.failed", cause.Error())
	p.recorder.Failed(context.Background())
	p.logger.Error("pipeline failed", zap.String("request_id", requestID), zap.Error(cause))
}
