// Package events names the playground's event types and subjects and builds
// the configured event bus.
package events

import "fmt"

const (
	SessionStarted    = "session.started"
	SessionTerminated = "session.terminated"
	RunStateChanged   = "run.state_changed"
)

// SessionSubject is the subject for lifecycle events of one worker session.
func SessionSubject(sessionID string) string {
	return fmt.Sprintf("playground.session.%s", sessionID)
}

// RunStateSubject is the subject carrying run slot transitions of one manager.
func RunStateSubject(managerID string) string {
	return fmt.Sprintf("playground.run.%s.state", managerID)
}
