package workflow

import (
	"context"
	"fmt"
)

// Collaborator results are fixed structured records. They are validated at
// the orchestration boundary before being stored in PhaseResults.

type InventoryResult struct {
	AvailableQty int     `json:"available_qty"`
	UnitCost     float64 `json:"unit_cost"`
	Warehouse    string  `json:"warehouse"`
}

type FleetResult struct {
	VehicleID  string  `json:"vehicle_id"`
	DistanceM  float64 `json:"distance_m"`
	ETAMinutes float64 `json:"eta_minutes"`
	BatteryPct int     `json:"battery_pct"`
}

type CostResult struct {
	TotalCost        float64 `json:"total_cost"`
	ApprovalRequired bool    `json:"approval_required"`
	ThresholdTier    string  `json:"threshold_tier"`
}

// InventoryChecker looks a part up and confirms the requested quantity can
// be fulfilled.
type InventoryChecker interface {
	CheckInventory(ctx context.Context, partNumber string, quantity int) (InventoryResult, error)
}

// FleetAssigner selects an AGV and estimates the route.
type FleetAssigner interface {
	AssignVehicle(ctx context.Context, origin, destination string, quantity int) (FleetResult, error)
}

// CostEvaluator prices the request and determines the approval tier.
type CostEvaluator interface {
	EvaluateCost(ctx context.Context, quantity int, unitCost float64, priority Priority) (CostResult, error)
}

// Collaborators bundles the external decision functions the pipeline calls.
type Collaborators struct {
	Inventory InventoryChecker
	Fleet     FleetAssigner
	Cost      CostEvaluator
}

func (r InventoryResult) validate() error {
	if r.AvailableQty < 0 {
		return fmt.Errorf("negative available quantity %d", r.AvailableQty)
	}
	if r.UnitCost < 0 {
		return fmt.Errorf("negative unit cost %.2f", r.UnitCost)
	}
	if r.Warehouse == "" {
		return fmt.Errorf("missing warehouse")
	}
	return nil
}

func (r FleetResult) validate() error {
	if r.VehicleID == "" {
		return fmt.Errorf("missing vehicle id")
	}
	if r.DistanceM < 0 || r.ETAMinutes < 0 {
		return fmt.Errorf("negative route estimate")
	}
	if r.BatteryPct < 0 || r.BatteryPct > 100 {
		return fmt.Errorf("battery %d%% out of range", r.BatteryPct)
	}
	return nil
}

func (r CostResult) validate() error {
	if r.TotalCost < 0 {
		return fmt.Errorf("negative total cost %.2f", r.TotalCost)
	}
	if r.ThresholdTier == "" {
		return fmt.Errorf("missing threshold tier")
	}
	return nil
}
