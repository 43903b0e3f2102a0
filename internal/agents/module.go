package agents

import (
	"go.uber.org/fx"

	"github.com/ronappleton/logistics-orchestrator/internal/workflow"
)

func Module() fx.Option {
	return fx.Provide(func() workflow.Collaborators {
		return workflow.Collaborators{
			Inventory: NewInventoryService(nil),
			Fleet:     NewFleetService(nil, nil),
			Cost:      NewCostService(DefaultCostPolicy()),
		}
	})
}
