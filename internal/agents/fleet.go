package agents

import (
	"context"
	"fmt"
	"sort"

	"github.com/ronappleton/logistics-orchestrator/internal/workflow"
)

const minOperatingBatteryPct = 30

// Vehicle is one AGV in the roster.
type Vehicle struct {
	ID             string
	Type           string
	CapacityPieces int
	Location       string
	BatteryPct     int
	CostPerTrip    float64
}

// Route is a factory-floor distance/time estimate between two points.
type Route struct {
	DistanceM float64
	Minutes   float64
}

var defaultRoute = Route{DistanceM: 250, Minutes: 8}

// DefaultFleet returns the demo AGV roster.
func DefaultFleet() []Vehicle {
	return []Vehicle{
		{ID: "AGV-001", Type: "heavy_duty_agv", CapacityPieces: 100, Location: "Warehouse A", BatteryPct: 85, CostPerTrip: 5.00},
		{ID: "AGV-002", Type: "standard_agv", CapacityPieces: 50, Location: "Warehouse B", BatteryPct: 92, CostPerTrip: 3.50},
		{ID: "AGV-003", Type: "heavy_duty_agv", CapacityPieces: 100, Location: "Production Floor", BatteryPct: 87, CostPerTrip: 5.00},
		{ID: "AGV-004", Type: "light_duty_agv", CapacityPieces: 25, Location: "Loading Dock", BatteryPct: 82, CostPerTrip: 2.50},
	}
}

// DefaultRoutes returns the demo route table.
func DefaultRoutes() map[[2]string]Route {
	return map[[2]string]Route{
		{"Warehouse A", "Production Floor"}:                            {DistanceM: 150, Minutes: 4},
		{"Warehouse B", "Production Floor"}:                            {DistanceM: 220, Minutes: 6},
		{"Warehouse A", "Loading Dock"}:                                {DistanceM: 80, Minutes: 2},
		{"Warehouse B", "Loading Dock"}:                                {DistanceM: 180, Minutes: 5},
		{"Production Floor", "Warehouse A"}:                            {DistanceM: 150, Minutes: 4},
		{"Production Floor", "Warehouse B"}:                            {DistanceM: 220, Minutes: 6},
		{"Loading Dock", "Warehouse A"}:                                {DistanceM: 80, Minutes: 2},
		{"Loading Dock", "Production Floor"}:                           {DistanceM: 200, Minutes: 5},
		{"Central Warehouse", "Manufacturing Cell 3 - CNC Machine #7"}: {DistanceM: 180, Minutes: 5},
		{"Warehouse A", "Manufacturing Cell 3 - CNC Machine #7"}:       {DistanceM: 160, Minutes: 4.5},
		{"Warehouse B", "Manufacturing Cell 3 - CNC Machine #7"}:       {DistanceM: 240, Minutes: 6.5},
	}
}

// FleetService assigns AGVs from a static roster. Unknown routes fall back
// to a conservative default estimate.
type FleetService struct {
	vehicles []Vehicle
	routes   map[[2]string]Route
}

func NewFleetService(vehicles []Vehicle, routes map[[2]string]Route) *FleetService {
	if vehicles == nil {
		vehicles = DefaultFleet()
	}
	if routes == nil {
		routes = DefaultRoutes()
	}
	return &FleetService{vehicles: vehicles, routes: routes}
}

func (s *FleetService) AssignVehicle(ctx context.Context, origin, destination string, quantity int) (workflow.FleetResult, error) {
	candidates := make([]Vehicle, 0, len(s.vehicles))
	for _, v := range s.vehicles {
		if v.BatteryPct > minOperatingBatteryPct && v.CapacityPieces >= quantity {
			candidates = append(candidates, v)
		}
	}
	if len(candidates) == 0 {
		return workflow.FleetResult{}, fmt.Errorf("no AGV available for %d pieces", quantity)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].CostPerTrip != candidates[j].CostPerTrip {
			return candidates[i].CostPerTrip < candidates[j].CostPerTrip
		}
		return candidates[i].ID < candidates[j].ID
	})
	picked := candidates[0]

	route, ok := s.routes[[2]string{origin, destination}]
	if !ok {
		route = defaultRoute
	}
	return workflow.FleetResult{
		VehicleID:  picked.ID,
		DistanceM:  route.DistanceM,
		ETAMinutes: route.Minutes,
		BatteryPct: picked.BatteryPct,
	}, nil
}
