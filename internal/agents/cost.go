package agents

import (
	"context"
	"fmt"

	"github.com/ronappleton/logistics-orchestrator/internal/workflow"
)

// Approval tiers, lowest to highest.
const (
	TierAutoApprove = "auto_approve"
	TierManager     = "manager_approval"
	TierDirector    = "director_approval"
	TierBoard       = "board_approval"
)

// CostPolicy holds the threshold schedule. Priorities raise the
// auto-approve limit; everything above it needs a supervisor decision.
type CostPolicy struct {
	AutoApprove float64
	Manager     float64
	Director    float64
	Board       float64

	PriorityLimits map[workflow.Priority]float64
}

func DefaultCostPolicy() CostPolicy {
	return CostPolicy{
		AutoApprove: 1000.0,
		Manager:     5000.0,
		Director:    25000.0,
		Board:       100000.0,
		PriorityLimits: map[workflow.Priority]float64{
			workflow.PriorityLow:      500.0,
			workflow.PriorityMedium:   1000.0,
			workflow.PriorityHigh:     1500.0,
			workflow.PriorityCritical: 2000.0,
		},
	}
}

// CostService prices requests against the policy schedule.
type CostService struct {
	policy CostPolicy
}

func NewCostService(policy CostPolicy) *CostService {
	if policy.AutoApprove == 0 {
		policy = DefaultCostPolicy()
	}
	return &CostService{policy: policy}
}

func (s *CostService) EvaluateCost(ctx context.Context, quantity int, unitCost float64, priority workflow.Priority) (workflow.CostResult, error) {
	if quantity <= 0 {
		return workflow.CostResult{}, fmt.Errorf("quantity must be positive, got %d", quantity)
	}
	if unitCost < 0 {
		return workflow.CostResult{}, fmt.Errorf("unit cost must not be negative, got %.2f", unitCost)
	}
	total := float64(quantity) * unitCost
	if total > s.policy.Board {
		return workflow.CostResult{}, fmt.Errorf("total cost $%.2f exceeds board approval limit $%.2f", total, s.policy.Board)
	}

	limit, ok := s.policy.PriorityLimits[priority]
	if !ok {
		limit = s.policy.AutoApprove
	}
	return workflow.CostResult{
		TotalCost:        total,
		ApprovalRequired: total > limit,
		ThresholdTier:    s.tier(total),
	}, nil
}

func (s *CostService) tier(total float64) string {
	switch {
	case total <= s.policy.AutoApprove:
		return TierAutoApprove
	case total <= s.policy.Manager:
		return TierManager
	case total <= s.policy.Director:
		return TierDirector
	default:
		return TierBoard
	}
}
