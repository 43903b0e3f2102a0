package agents

import (
	"context"
	"fmt"

	"github.com/ronappleton/logistics-orchestrator/internal/workflow"
)

// Part is one catalog entry.
type Part struct {
	Description  string
	AvailableQty int
	ReservedQty  int
	Warehouse    string
	UnitCost     float64
	Supplier     string
	LeadTimeDays int
}

// DefaultCatalog returns the demo parts catalog.
func DefaultCatalog() map[string]Part {
	return map[string]Part{
		"HYDRAULIC-PUMP-HP450": {
			Description:  "Heavy-duty hydraulic pump for CNC machinery",
			AvailableQty: 24,
			ReservedQty:  2,
			Warehouse:    "Central Warehouse",
			UnitCost:     245.00,
			Supplier:     "HydroTech Systems",
			LeadTimeDays: 1,
		},
		"PART-ABC123": {
			Description:  "Standard production part",
			AvailableQty: 85,
			ReservedQty:  15,
			Warehouse:    "Warehouse A",
			UnitCost:     12.50,
			Supplier:     "Supplier Corp",
			LeadTimeDays: 2,
		},
		"PART-XYZ789": {
			Description:  "Specialized part",
			AvailableQty: 42,
			ReservedQty:  8,
			Warehouse:    "Warehouse B",
			UnitCost:     18.75,
			Supplier:     "Parts Inc",
			LeadTimeDays: 1,
		},
		"PART-DEF456": {
			Description:  "Common component",
			AvailableQty: 120,
			ReservedQty:  25,
			Warehouse:    "Warehouse A",
			UnitCost:     8.25,
			Supplier:     "FastParts Ltd",
			LeadTimeDays: 3,
		},
	}
}

// InventoryService answers availability checks from an in-memory catalog.
type InventoryService struct {
	catalog map[string]Part
}

func NewInventoryService(catalog map[string]Part) *InventoryService {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &InventoryService{catalog: catalog}
}

func (s *InventoryService) CheckInventory(ctx context.Context, partNumber string, quantity int) (workflow.InventoryResult, error) {
	part, ok := s.catalog[partNumber]
	if !ok {
		return workflow.InventoryResult{}, fmt.Errorf("part %s not found in catalog", partNumber)
	}
	if part.AvailableQty < quantity {
		return workflow.InventoryResult{}, fmt.Errorf("insufficient stock for %s: requested %d, available %d",
			partNumber, quantity, part.AvailableQty)
	}
	return workflow.InventoryResult{
		AvailableQty: part.AvailableQty,
		UnitCost:     part.UnitCost,
		Warehouse:    part.Warehouse,
	}, nil
}
