package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ui_relocator/application/engine"
	"ui_relocator/domain/entities"
	"ui_relocator/domain/interfaces"
)

var (
	// ErrDebounced marks a capture trigger suppressed by the session
	// debounce window.
	ErrDebounced = errors.New("capture trigger debounced")

	// ErrIncompleteSnapshot marks a snapshot missing the attributes
	// generation needs. The front-end may retry the capture.
	ErrIncompleteSnapshot = errors.New("snapshot is incomplete")
)

// refingerprintThreshold is the similarity above which a new capture is
// treated as the same logical element as a stored record.
const refingerprintThreshold = 0.85

// Workflow drives one named capture end to end: debounce, analyze, generate,
// validate, rank, then persist the record. Captures that fingerprint-match a
// stored element update that record instead of creating a duplicate.
type Workflow struct {
	engine  *engine.Engine
	store   interfaces.ElementStore
	session *Session
	logger  *logrus.Logger
}

// NewWorkflow wires a capture workflow.
func NewWorkflow(eng *engine.Engine, store interfaces.ElementStore, session *Session, logger *logrus.Logger) *Workflow {
	return &Workflow{engine: eng, store: store, session: session, logger: logger}
}

// Capture processes one capture trigger for the given snapshot and persists
// the resulting record under the given display name.
func (w *Workflow) Capture(ctx context.Context, name string, snap *entities.ElementSnapshot) (*entities.CapturedElement, error) {
	if !w.session.Debounce(time.Now()) {
		return nil, ErrDebounced
	}
	if err := validateSnapshot(snap); err != nil {
		return nil, err
	}
	cascade, report, err := w.engine.BuildCascade(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("failed to build cascade: %w", err)
	}
	now := time.Now()
	record := &entities.CapturedElement{
		ID:             uuid.NewString(),
		Name:           name,
		WindowTitle:    snap.WindowTitle,
		ProcessName:    snap.ProcessName,
		Fingerprint:    fingerprintOf(snap, report),
		Cascade:        cascade,
		LegacySelector: legacySelector(snap, cascade),
		CapturedAt:     now,
		UpdatedAt:      now,
	}
	existing, similarity, err := w.store.FindByFingerprint(record.Fingerprint, refingerprintThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to match fingerprint: %w", err)
	}
	if existing != nil {
		// Same logical element captured again: keep its identity and
		// refresh the cascade.
		record.ID = existing.ID
		record.CapturedAt = existing.CapturedAt
		if record.Name == "" {
			record.Name = existing.Name
		}
		w.logger.Infof("re-associated capture with record %s (similarity %.2f)", existing.ID, similarity)
	}
	if err := w.store.Save(record); err != nil {
		return nil, fmt.Errorf("failed to persist captured element: %w", err)
	}
	w.logger.Infof("captured %q with %d cascade entries", record.Name, record.Cascade.Len())
	return record, nil
}

func validateSnapshot(snap *entities.ElementSnapshot) error {
	if snap == nil {
		return fmt.Errorf("%w: no snapshot", ErrIncompleteSnapshot)
	}
	if snap.WindowTitle == "" {
		return fmt.Errorf("%w: missing window title", ErrIncompleteSnapshot)
	}
	if snap.AutomationID == "" && snap.Name == "" && snap.ClassName == "" {
		return fmt.Errorf("%w: element carries no matchable attribute", ErrIncompleteSnapshot)
	}
	return nil
}

func fingerprintOf(snap *entities.ElementSnapshot, report entities.StabilityReport) entities.Fingerprint {
	return entities.Fingerprint{
		Name:         snap.Name,
		ClassName:    snap.ClassName,
		ControlType:  snap.ControlType,
		WindowTitle:  snap.WindowTitle,
		SiblingIndex: snap.SiblingIndex,
		Stability: map[string]float64{
			"automationId": report.AutomationID.Score(),
			"name":         report.Name.Score(),
			"className":    report.ClassName.Score(),
			"controlType":  report.ControlType.Score(),
			"siblingIndex": report.SiblingIndex.Score(),
		},
	}
}

// legacySelector renders the single best selector document for consumers
// that predate cascades. Without a validated entry it falls back to a
// document built straight from the snapshot.
func legacySelector(snap *entities.ElementSnapshot, cascade entities.Cascade) string {
	if best, ok := cascade.Best(); ok {
		return best.Strategy.Serialize()
	}
	leaf := entities.ElementNode{ControlType: snap.ControlType}
	kind := entities.StrategyNameAndType
	switch {
	case snap.AutomationID != "":
		leaf.AutomationID = snap.AutomationID
		kind = entities.StrategyAutomationID
	case snap.Name != "":
		leaf.Name = snap.Name
	default:
		leaf.ClassName = snap.ClassName
		idx := snap.SiblingIndex
		leaf.Index = &idx
		kind = entities.StrategyClassIndex
	}
	fallback := entities.CandidateStrategy{
		Kind:     kind,
		Window:   entities.WindowNode{Title: snap.WindowTitle, ProcessName: snap.ProcessName},
		Elements: []entities.ElementNode{leaf},
	}
	return fallback.Serialize()
}
