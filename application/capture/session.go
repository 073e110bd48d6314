package capture

import (
	"sync"
	"time"
)

// DefaultDebounceWindow suppresses duplicate capture triggers fired by key
// repeat or double events from global hotkey hooks.
const DefaultDebounceWindow = 300 * time.Millisecond

// Session owns the state shared across one capture session: the debounce
// window that filters re-entrant triggers. It is passed into the workflow
// explicitly instead of living in a package global, so two sessions never
// share state.
type Session struct {
	mu          sync.Mutex
	window      time.Duration
	lastTrigger time.Time
}

// NewSession builds a session; a non-positive window falls back to the
// default.
func NewSession(window time.Duration) *Session {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Session{window: window}
}

// Debounce reports whether a trigger at now should be accepted. A trigger
// inside the window of the previously accepted one is suppressed and does
// not restart the window.
func (s *Session) Debounce(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.lastTrigger.IsZero() && now.Sub(s.lastTrigger) < s.window {
		return false
	}
	s.lastTrigger = now
	return true
}
