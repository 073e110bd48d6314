package interfaces

import (
	"context"

	"ui_relocator/domain/entities"
)

// ActionGuard classifies replay actions before real input is dispatched.
type ActionGuard interface {
	// RequiresApproval reports whether the action against the given target
	// needs explicit user confirmation first.
	RequiresApproval(ctx context.Context, action entities.ReplayAction, target entities.NodeAttributes) bool

	// IsDestructive reports whether the action would trigger a destructive
	// control such as delete, clear or reset.
	IsDestructive(ctx context.Context, action entities.ReplayAction, target entities.NodeAttributes) bool

	// RiskLevel classifies the action into low, medium or high risk.
	RiskLevel(ctx context.Context, action entities.ReplayAction, target entities.NodeAttributes) entities.RiskLevel
}
