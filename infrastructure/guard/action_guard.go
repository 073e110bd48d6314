package guard

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"ui_relocator/domain/entities"
	"ui_relocator/domain/interfaces"
)

// Keyword families for controls that destroy or discard user data, in
// English and Portuguese.
var destructiveKeywords = []string{
	"delete", "excluir", "apagar",
	"remove", "remover",
	"clear", "limpar",
	"reset", "redefinir",
	"discard", "descartar",
	"format", "formatar",
	"uninstall", "desinstalar",
}

// Keyword families for controls that commit something irreversible without
// destroying data.
var commitKeywords = []string{
	"submit", "enviar",
	"pay", "pagar",
	"confirm", "confirmar",
	"purchase", "comprar",
}

// ActionGuard classifies replay actions against the target's attributes and
// decides when a real dispatch needs explicit user approval. It never blocks
// resolve-only or read operations.
type ActionGuard struct {
	logger *logrus.Logger
}

var _ interfaces.ActionGuard = (*ActionGuard)(nil)

// NewActionGuard builds a guard.
func NewActionGuard(logger *logrus.Logger) *ActionGuard {
	return &ActionGuard{logger: logger}
}

// IsDestructive reports whether dispatching the action would trigger a
// control from one of the destructive keyword families.
func (g *ActionGuard) IsDestructive(ctx context.Context, action entities.ReplayAction, target entities.NodeAttributes) bool {
	if !dispatchesInput(action) {
		return false
	}
	return matchesAny(target, destructiveKeywords)
}

// RequiresApproval reports whether the action needs explicit confirmation
// before real input is dispatched.
func (g *ActionGuard) RequiresApproval(ctx context.Context, action entities.ReplayAction, target entities.NodeAttributes) bool {
	if !dispatchesInput(action) {
		return false
	}
	if g.IsDestructive(ctx, action, target) {
		g.logger.Warnf("destructive control %q needs approval", displayName(target))
		return true
	}
	return matchesAny(target, commitKeywords)
}

// RiskLevel classifies the action into low, medium or high risk.
func (g *ActionGuard) RiskLevel(ctx context.Context, action entities.ReplayAction, target entities.NodeAttributes) entities.RiskLevel {
	if !dispatchesInput(action) {
		return entities.RiskLow
	}
	if g.IsDestructive(ctx, action, target) {
		return entities.RiskHigh
	}
	if matchesAny(target, commitKeywords) {
		return entities.RiskHigh
	}
	return entities.RiskMedium
}

func dispatchesInput(action entities.ReplayAction) bool {
	return action == entities.ActionClick || action == entities.ActionInvoke
}

func matchesAny(target entities.NodeAttributes, keywords []string) bool {
	haystack := strings.ToLower(target.Name + " " + target.AutomationID + " " + target.ClassName)
	for _, kw := range keywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

func displayName(target entities.NodeAttributes) string {
	if target.Name != "" {
		return target.Name
	}
	if target.AutomationID != "" {
		return target.AutomationID
	}
	return target.ControlType
}
