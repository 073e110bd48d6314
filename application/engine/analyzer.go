package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"ui_relocator/domain/entities"
	"ui_relocator/domain/interfaces"
)

// Automation id shapes that change between executions.
var (
	guidShape       = regexp.MustCompile(`^\{?[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\}?$`)
	longDigitRun    = regexp.MustCompile(`\d{10,}`)
	hexRun          = regexp.MustCompile(`[0-9a-f]{8,}`)
	doubleIndexTail = regexp.MustCompile(`_\d+_\d+$`)
	generatedPrefix = regexp.MustCompile(`^(temp_|generated_|auto_)`)
	hexTokenSuffix  = regexp.MustCompile(`_[0-9a-fA-F]{6,}$`)
	prefixedCounter = regexp.MustCompile(`^[A-Za-z]{1,8}_?\d{3,}$`)
)

// Automation id shapes typical of hand-authored identifiers.
var (
	stableIDPrefix = regexp.MustCompile(`^(btn|txt|menu|tab|chk|cmb|lst|grp)(_|[A-Z])`)
	stableIDSuffix = regexp.MustCompile(`(Button|Field|Input|Label|_button|_field|_input|_label)$`)
)

// Name content that varies with application data rather than layout.
var (
	dateText    = regexp.MustCompile(`\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4}`)
	timeText    = regexp.MustCompile(`\d{1,2}:\d{2}(:\d{2})?`)
	moneyText   = regexp.MustCompile(`[$€£]\s?\d|R\$\s?\d`)
	percentText = regexp.MustCompile(`\d+([.,]\d+)?%`)
	refText     = regexp.MustCompile(`#\d+`)
	counterText = regexp.MustCompile(`^[A-Za-z]+ \d+$`)
	anyDigit    = regexp.MustCompile(`\d`)
)

// Class name shapes with per-session tokens.
var (
	winformsClass      = regexp.MustCompile(`^WindowsForms\d+\.`)
	classCounterSuffix = regexp.MustCompile(`_\d+$`)
)

// Action labels that stay fixed across sessions, in English and Portuguese.
var stableNameVocab = map[string]bool{
	"ok": true, "cancel": true, "cancelar": true,
	"save": true, "salvar": true, "open": true, "abrir": true,
	"close": true, "fechar": true, "new": true, "novo": true,
	"edit": true, "editar": true, "delete": true, "excluir": true,
	"print": true, "imprimir": true, "search": true, "buscar": true,
	"help": true, "ajuda": true, "yes": true, "sim": true,
	"no": true, "não": true,
}

// Analyzer classifies how likely each captured attribute is to survive
// between executions of the target application. When a live tree is
// available it additionally re-queries the element to catch ids that look
// stable but were regenerated since capture.
type Analyzer struct {
	probe  *Matcher
	logger *logrus.Logger
}

// NewAnalyzer builds an analyzer. A nil tree disables the live re-query
// check, leaving the shape heuristics.
func NewAnalyzer(tree interfaces.UITree, logger *logrus.Logger) *Analyzer {
	a := &Analyzer{logger: logger}
	if tree != nil {
		probePolicy := entities.RetryPolicy{
			Trials:         1,
			SettleDelay:    time.Millisecond,
			AttemptTimeout: 500 * time.Millisecond,
		}
		a.probe = NewMatcher(tree, probePolicy, logger)
	}
	return a
}

// Analyze produces the per-attribute stability report for a snapshot.
func (a *Analyzer) Analyze(ctx context.Context, snap *entities.ElementSnapshot) (entities.StabilityReport, error) {
	if snap == nil {
		return entities.StabilityReport{}, errors.New("no snapshot to analyze")
	}
	report := entities.StabilityReport{
		AutomationID: a.analyzeAutomationID(ctx, snap),
		Name:         a.analyzeName(snap),
		ClassName:    a.analyzeClassName(snap),
		ControlType:  a.analyzeControlType(snap),
		SiblingIndex: a.analyzeSiblingIndex(snap),
	}
	for _, v := range report.Verdicts() {
		a.logger.Debugf("stability %s: %s (%.2f) %s",
			v.Attribute, v.Stability, v.Confidence, strings.Join(v.Reasons, "; "))
	}
	return report, nil
}

func (a *Analyzer) analyzeAutomationID(ctx context.Context, snap *entities.ElementSnapshot) entities.StabilityVerdict {
	v := entities.StabilityVerdict{
		Attribute:  "automationId",
		Stability:  entities.StabilityUnknown,
		Confidence: 0.5,
	}
	id := snap.AutomationID
	if id == "" {
		v.Stability = entities.StabilityVolatile
		v.Confidence = 0.9
		v.Reasons = []string{"automation id is empty"}
		return v
	}
	reasons := dynamicIDReasons(id)
	if len(reasons) > 0 {
		v.Stability = entities.StabilityVolatile
		v.Confidence = math.Min(0.95, 0.7+0.1*float64(len(reasons)))
		v.Reasons = reasons
		return v
	}
	switch {
	case stableIDPrefix.MatchString(id) || stableIDSuffix.MatchString(id):
		v.Stability = entities.StabilityStable
		v.Confidence = 0.85
		v.Reasons = []string{"matches a hand-authored naming scheme"}
	case plainIdentifier(id):
		v.Stability = entities.StabilityStable
		v.Confidence = 0.6
		v.Reasons = []string{"short literal identifier"}
	default:
		v.Reasons = []string{"format is inconclusive"}
	}
	// A live re-query outweighs shape: if the same logical element now
	// carries a different id, the id is regenerated per execution.
	if fresh, ok := a.requeryAutomationID(ctx, snap); ok && fresh != id {
		v.Stability = entities.StabilityVolatile
		v.Confidence = 0.95
		v.Reasons = append(v.Reasons, "live re-query returned a different automation id")
	}
	return v
}

// dynamicIDReasons names every dynamic-shape heuristic the id matches.
func dynamicIDReasons(id string) []string {
	var reasons []string
	if guidShape.MatchString(id) {
		reasons = append(reasons, "value is a GUID")
	}
	if longDigitRun.MatchString(id) {
		reasons = append(reasons, "contains a run of 10 or more digits")
	}
	if hexRun.MatchString(strings.ToLower(id)) {
		reasons = append(reasons, "contains a hex run of 8 or more characters")
	}
	if doubleIndexTail.MatchString(id) {
		reasons = append(reasons, "ends in a double index suffix")
	}
	if generatedPrefix.MatchString(strings.ToLower(id)) {
		reasons = append(reasons, "starts with a generated prefix")
	}
	if hexTokenSuffix.MatchString(id) {
		reasons = append(reasons, "ends in a hex token")
	}
	if prefixedCounter.MatchString(id) {
		reasons = append(reasons, "short prefix followed by a counter")
	}
	return reasons
}

// looksDynamicID reports whether the id matches any dynamic shape. The
// generator uses it to keep regenerated ids out of ancestor predicates.
func looksDynamicID(id string) bool {
	return id == "" || len(dynamicIDReasons(id)) > 0
}

// nameLooksDynamic reports whether the name carries data-driven content.
func nameLooksDynamic(name string) bool {
	return dateText.MatchString(name) ||
		timeText.MatchString(name) ||
		moneyText.MatchString(name) ||
		percentText.MatchString(name) ||
		refText.MatchString(name) ||
		counterText.MatchString(name)
}

// classLooksDynamic reports whether the class name embeds session tokens.
func classLooksDynamic(cls string) bool {
	return cls == "" ||
		winformsClass.MatchString(cls) ||
		classCounterSuffix.MatchString(cls) ||
		hexRun.MatchString(strings.ToLower(cls))
}

func plainIdentifier(s string) bool {
	if utf8.RuneCountInString(s) > 20 {
		return false
	}
	hasLetter := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r), r == '_', r == '-', r == '.':
		default:
			return false
		}
	}
	return hasLetter
}

func (a *Analyzer) analyzeName(snap *entities.ElementSnapshot) entities.StabilityVerdict {
	v := entities.StabilityVerdict{
		Attribute:  "name",
		Stability:  entities.StabilityUnknown,
		Confidence: 0.5,
	}
	name := strings.TrimSpace(snap.Name)
	if name == "" {
		v.Stability = entities.StabilityVolatile
		v.Confidence = 0.8
		v.Reasons = []string{"name is empty"}
		return v
	}
	if stableNameVocab[strings.ToLower(name)] {
		v.Stability = entities.StabilityStable
		v.Confidence = 0.95
		v.Reasons = []string{"common action label"}
		return v
	}
	var reasons []string
	if dateText.MatchString(name) {
		reasons = append(reasons, "contains a date")
	}
	if timeText.MatchString(name) {
		reasons = append(reasons, "contains a time of day")
	}
	if moneyText.MatchString(name) {
		reasons = append(reasons, "contains a currency amount")
	}
	if percentText.MatchString(name) {
		reasons = append(reasons, "contains a percentage")
	}
	if refText.MatchString(name) {
		reasons = append(reasons, "contains a numeric reference")
	}
	if counterText.MatchString(name) {
		reasons = append(reasons, "matches a label-plus-counter template")
	}
	if len(reasons) > 0 {
		v.Stability = entities.StabilityVolatile
		v.Confidence = math.Min(0.95, 0.7+0.1*float64(len(reasons)))
		v.Reasons = reasons
		return v
	}
	if !anyDigit.MatchString(name) {
		v.Stability = entities.StabilityStable
		v.Confidence = 0.8
		v.Reasons = []string{"free of volatile digits"}
		return v
	}
	v.Reasons = []string{"mixes literal text and digits"}
	return v
}

func (a *Analyzer) analyzeClassName(snap *entities.ElementSnapshot) entities.StabilityVerdict {
	v := entities.StabilityVerdict{
		Attribute:  "className",
		Stability:  entities.StabilityUnknown,
		Confidence: 0.5,
	}
	cls := snap.ClassName
	switch {
	case cls == "":
		v.Stability = entities.StabilityVolatile
		v.Confidence = 0.7
		v.Reasons = []string{"class name is empty"}
	case winformsClass.MatchString(cls):
		v.Stability = entities.StabilityVolatile
		v.Confidence = 0.9
		v.Reasons = []string{"framework class with a per-session token"}
	case classCounterSuffix.MatchString(cls):
		v.Stability = entities.StabilityVolatile
		v.Confidence = 0.85
		v.Reasons = []string{"numeric suffix changes between sessions"}
	case hexRun.MatchString(strings.ToLower(cls)):
		v.Stability = entities.StabilityVolatile
		v.Confidence = 0.8
		v.Reasons = []string{"contains a hex run"}
	default:
		v.Stability = entities.StabilityStable
		v.Confidence = 0.8
		v.Reasons = []string{"literal framework class name"}
	}
	return v
}

func (a *Analyzer) analyzeControlType(snap *entities.ElementSnapshot) entities.StabilityVerdict {
	v := entities.StabilityVerdict{Attribute: "controlType"}
	if snap.ControlType == "" {
		v.Stability = entities.StabilityUnknown
		v.Confidence = 0.5
		v.Reasons = []string{"control type missing from the capture"}
		return v
	}
	v.Stability = entities.StabilityStable
	v.Confidence = 0.95
	v.Reasons = []string{"control types are framework constants"}
	return v
}

func (a *Analyzer) analyzeSiblingIndex(snap *entities.ElementSnapshot) entities.StabilityVerdict {
	v := entities.StabilityVerdict{Attribute: "siblingIndex"}
	if snap.SiblingCount > 1 {
		v.Stability = entities.StabilityVolatile
		v.Confidence = 0.9
		v.Reasons = []string{
			fmt.Sprintf("%d siblings share control type %s", snap.SiblingCount, snap.ControlType),
		}
		return v
	}
	v.Stability = entities.StabilityStable
	v.Confidence = 0.8
	v.Reasons = []string{"only node of its type under the parent"}
	return v
}

// requeryAutomationID resolves the snapshot's element again by name and
// control type and returns the automation id it carries now.
func (a *Analyzer) requeryAutomationID(ctx context.Context, snap *entities.ElementSnapshot) (string, bool) {
	if a.probe == nil || snap.Name == "" || snap.ControlType == "" {
		return "", false
	}
	el := entities.ElementNode{ControlType: snap.ControlType}
	if utf8.RuneCountInString(snap.Name) > maxExactNameLength {
		el.NameContains = truncateRunes(snap.Name, maxExactNameLength)
	} else {
		el.Name = snap.Name
	}
	probeStrategy := entities.CandidateStrategy{
		Kind:     entities.StrategyNameAndType,
		Window:   entities.WindowNode{Title: snap.WindowTitle, ProcessName: snap.ProcessName},
		Elements: []entities.ElementNode{el},
	}
	res, err := a.probe.Resolve(ctx, probeStrategy)
	if err != nil {
		return "", false
	}
	return res.Attrs.AutomationID, true
}
