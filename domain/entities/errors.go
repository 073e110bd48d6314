package entities

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies relocation and action failures so callers can react
// per kind instead of parsing messages.
type ErrorKind string

const (
	ErrAttributeUnavailable ErrorKind = "attribute_unavailable"
	ErrNotFound             ErrorKind = "not_found"
	ErrAmbiguousMatch       ErrorKind = "ambiguous_match"
	ErrActionUnsupported    ErrorKind = "action_unsupported"
	ErrStaleReference       ErrorKind = "stale_reference"
	ErrTimeout              ErrorKind = "timeout"
)

// LocateError is the typed failure returned by selector resolution and action
// execution. Hop is the zero-based element hop that failed; WindowHop marks a
// failure while resolving the window itself.
type LocateError struct {
	Kind    ErrorKind
	Hop     int
	Matches int
	Detail  string
}

// WindowHop is the Hop value for failures on the window node.
const WindowHop = -1

func (e *LocateError) Error() string {
	where := fmt.Sprintf("hop %d", e.Hop)
	if e.Hop == WindowHop {
		where = "window"
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s at %s: %s", e.Kind, where, e.Detail)
	}
	return fmt.Sprintf("%s at %s", e.Kind, where)
}

// NewAttributeUnavailable builds a failure for a node that does not expose a
// requested attribute.
func NewAttributeUnavailable(hop int, detail string) *LocateError {
	return &LocateError{Kind: ErrAttributeUnavailable, Hop: hop, Detail: detail}
}

// NewNotFound builds a not-found failure for the given hop.
func NewNotFound(hop int, detail string) *LocateError {
	return &LocateError{Kind: ErrNotFound, Hop: hop, Detail: detail}
}

// NewAmbiguous builds an ambiguous-match failure carrying the match count.
func NewAmbiguous(hop, matches int) *LocateError {
	return &LocateError{
		Kind:    ErrAmbiguousMatch,
		Hop:     hop,
		Matches: matches,
		Detail:  fmt.Sprintf("%d nodes matched", matches),
	}
}

// NewStale builds a stale-reference failure.
func NewStale(hop int, detail string) *LocateError {
	return &LocateError{Kind: ErrStaleReference, Hop: hop, Detail: detail}
}

// NewActionUnsupported builds a failure for an action no method could perform.
func NewActionUnsupported(detail string) *LocateError {
	return &LocateError{Kind: ErrActionUnsupported, Hop: WindowHop, Detail: detail}
}

// NewTimeout builds a timeout failure for an attempt that never completed a
// full resolution pass within its bound.
func NewTimeout(bound time.Duration) *LocateError {
	return &LocateError{
		Kind:   ErrTimeout,
		Hop:    WindowHop,
		Detail: fmt.Sprintf("no resolution pass completed within %s", bound),
	}
}

// KindOf extracts the error kind from err, or "" when err carries none.
func KindOf(err error) ErrorKind {
	var le *LocateError
	if errors.As(err, &le) {
		return le.Kind
	}
	return ""
}

// IsKind reports whether err is a LocateError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
