package workflow

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ronappleton/logistics-orchestrator/internal/metrics"
)

// MissionConfig paces and bounds the simulated delivery. Travel legs derive
// their duration from the fleet collaborator's ETA; loading and unloading
// use the fixed durations below.
type MissionConfig struct {
	LoadDuration    time.Duration
	UnloadDuration  time.Duration
	TravelPerMinute time.Duration // simulated wall time per route minute
	BatteryFloorPct int
	BatteryDrainPct int // charge consumed per travel leg
}

func DefaultMissionConfig() MissionConfig {
	return MissionConfig{
		LoadDuration:    6 * time.Second,
		UnloadDuration:  4 * time.Second,
		TravelPerMinute: time.Second,
		BatteryFloorPct: 20,
		BatteryDrainPct: 3,
	}
}

// Mission drives one AGV delivery through its phase sequence, updating the
// store incrementally. A second worker never runs for the same request: the
// gate spawns it exactly once, after the pipeline worker has exited.
type Mission struct {
	store    Store
	clock    Clock
	notify   *Notifier
	logger   *zap.Logger
	recorder *metrics.Recorder
	cfg      MissionConfig
}

func NewMission(store Store, clock Clock, notify *Notifier, logger *zap.Logger, recorder *metrics.Recorder, cfg MissionConfig) *Mission {
	if cfg.TravelPerMinute <= 0 {
		cfg.TravelPerMinute = time.Second
	}
	return &Mission{store: store, clock: clock, notify: notify, logger: logger, recorder: recorder, cfg: cfg}
}

// Run executes the delivery for a request in DISPATCHING state.
func (m *Mission) Run(ctx context.Context, requestID string) {
	snap, err := m.store.Snapshot(requestID)
	if err != nil {
		m.logger.Warn("mission start failed", zap.String("request_id", requestID), zap.Error(err))
		return
	}
	req := snap.Request
	fleet := snap.PhaseResults.Fleet
	inv := snap.PhaseResults.Inventory
	if fleet == nil || inv == nil {
		m.fail(requestID, MissionState{Phase: MissionFailed}, StepDispatch,
			fmt.Errorf("dispatch without analysis results"))
		return
	}

	travel := time.Duration(fleet.ETAMinutes * float64(m.cfg.TravelPerMinute))
	ms := MissionState{
		MissionID:  missionID(req.PartNumber, req.RequestID),
		VehicleID:  fleet.VehicleID,
		Phase:      MissionAccepted,
		Location:   "Depot",
		BatteryPct: fleet.BatteryPct,
	}

	// Accept and dispatch.
	if err := m.store.SetMission(requestID, ms); err != nil {
		m.logger.Warn("set mission", zap.String("request_id", requestID), zap.Error(err))
		return
	}
	m.log(requestID, StepDispatch, "FleetAgent",
		fmt.Sprintf("Mission %s accepted by %s (battery %d%%)", ms.MissionID, ms.VehicleID, ms.BatteryPct))
	m.advance(requestID, StepDispatch)
	if err := m.store.SetStatus(requestID, StatusMissionInProgress); err != nil {
		m.logger.Warn("set mission in progress", zap.String("request_id", requestID), zap.Error(err))
		return
	}
	m.notify.RunEvent(requestID, StatusMissionInProgress, StepDispatch, "mission.started", ms.MissionID)

	// Travel to pickup.
	ms.Phase = MissionMovingToPickup
	m.update(requestID, ms)
	m.log(requestID, StepDispatch, "FleetAgent",
		fmt.Sprintf("%s en route to %s (battery %d%%)", ms.VehicleID, inv.Warehouse, ms.BatteryPct))
	if err := m.clock.Sleep(ctx, travel); err != nil {
		m.fail(requestID, ms, StepDispatch, fmt.Errorf("mission interrupted: %w", err))
		return
	}
	ms.BatteryPct -= m.cfg.BatteryDrainPct
	if ms.BatteryPct < m.cfg.BatteryFloorPct {
		m.fail(requestID, ms, StepDispatch,
			fmt.Errorf("battery %d%% below operating floor %d%%", ms.BatteryPct, m.cfg.BatteryFloorPct))
		return
	}

	// Arrive and load.
	ms.Phase = MissionAtPickup
	ms.Location = inv.Warehouse
	m.update(requestID, ms)
	m.log(requestID, StepPickup, "InventoryAgent",
		fmt.Sprintf("%s arrived at %s (battery %d%%)", ms.VehicleID, ms.Location, ms.BatteryPct))
	m.advance(requestID, StepPickup)

	ms.Phase = MissionLoading
	m.update(requestID, ms)
	m.log(requestID, StepPickup, "InventoryAgent",
		fmt.Sprintf("Loading %d units of %s onto %s", req.Quantity, req.PartNumber, ms.VehicleID))
	if err := m.clock.Sleep(ctx, m.cfg.LoadDuration); err != nil {
		m.fail(requestID, ms, StepPickup, fmt.Errorf("mission interrupted: %w", err))
		return
	}
	ms.CargoQty = req.Quantity
	m.update(requestID, ms)

	// Travel to delivery.
	ms.Phase = MissionMovingToDelivery
	m.update(requestID, ms)
	m.log(requestID, StepDelivery, "FleetAgent",
		fmt.Sprintf("%s departing to %s with %d units (battery %d%%)", ms.VehicleID, req.Destination, ms.CargoQty, ms.BatteryPct))
	m.advance(requestID, StepDelivery)
	if err := m.clock.Sleep(ctx, travel); err != nil {
		m.fail(requestID, ms, StepDelivery, fmt.Errorf("mission interrupted: %w", err))
		return
	}
	ms.BatteryPct -= m.cfg.BatteryDrainPct
	if ms.BatteryPct < m.cfg.BatteryFloorPct {
		m.fail(requestID, ms, StepDelivery,
			fmt.Errorf("battery %d%% below operating floor %d%%", ms.BatteryPct, m.cfg.BatteryFloorPct))
		return
	}

	// Arrive and unload.
	ms.Phase = MissionAtDelivery
	ms.Location = req.Destination
	m.update(requestID, ms)
	m.log(requestID, StepDelivery, "FleetAgent",
		fmt.Sprintf("%s arrived at %s (battery %d%%)", ms.VehicleID, ms.Location, ms.BatteryPct))

	ms.Phase = MissionUnloading
	m.update(requestID, ms)
	m.log(requestID, StepDelivery, "InventoryAgent",
		fmt.Sprintf("Unloading %d units of %s at %s", ms.CargoQty, req.PartNumber, req.Destination))
	if err := m.clock.Sleep(ctx, m.cfg.UnloadDuration); err != nil {
		m.fail(requestID, ms, StepDelivery, fmt.Errorf("mission interrupted: %w", err))
		return
	}
	ms.CargoQty = 0

	// Complete.
	ms.Phase = MissionCompleted
	m.update(requestID, ms)
	m.log(requestID, StepDelivery, "LogisticsOrchestrator",
		fmt.Sprintf("Delivery completed. %d units of %s delivered to %s.", req.Quantity, req.PartNumber, req.Destination))
	if err := m.store.SetStatus(requestID, StatusCompleted); err != nil {
		m.logger.Warn("set completed", zap.String("request_id", requestID), zap.Error(err))
		return
	}
	m.notify.RunEvent(requestID, StatusCompleted, StepDelivery, "mission.completed", ms.MissionID)
	m.recorder.Completed(ctx)
	m.logger.Info("mission completed",
		zap.String("request_id", requestID),
		zap.String("mission_id", ms.MissionID),
		zap.String("vehicle_id", ms.VehicleID))
}

func (m *Mission) update(requestID string, ms MissionState) {
	if err := m.store.SetMission(requestID, ms); err != nil {
		m.logger.Warn("update mission", zap.String("request_id", requestID), zap.Error(err))
	}
}

func (m *Mission) log(requestID string, step int, agent, message string) {
	if err := m.store.AppendLog(requestID, step, agent, message); err != nil {
		m.logger.Warn("append mission log", zap.String("request_id", requestID), zap.Error(err))
	}
}

func (m *Mission) advance(requestID string, step int) {
	if err := m.store.AdvanceStep(requestID, step); err != nil {
		m.logger.Warn("advance mission step", zap.String("request_id", requestID), zap.Error(err))
	}
}

func (m *Mission) fail(requestID string, ms MissionState, step int, cause error) {
	ms.Phase = MissionFailed
	m.update(requestID, ms)
	m.log(requestID, step, "FleetAgent", fmt.Sprintf("Mission failed: %v", cause))
	m.advance(requestID, step)
	if err := m.store.SetStatus(requestID, StatusFailed); err != nil {
		m.logger.Warn("set failed status", zap.String("request_id", requestID), zap.Error(err))
	}
	m.notify.RunEvent(requestID, StatusFailed, step, "mission.failed", cause.Error())
	m.recorder.Failed(context.Background())
	m.logger.Error("mission failed", zap.String("request_id", requestID), zap.Error(cause))
}
