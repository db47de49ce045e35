// Package notify decides which lifecycle transitions are worth telling
// anyone about, and carries the notification to a pluggable sink.
package notify

import "token-radar/internal/storage"

// Kind labels the feed a notification originates from.
type Kind string

const (
	KindNewCreation Kind = "new_creation"
	KindCompleted   Kind = "completed"
)

// DecideNewCreation returns whether a new_creation transition should
// notify. Only first sightings with a passing social signal do; repeat
// sightings and unverified tokens stay silent.
//
// Pure function: same inputs, same answer, no side effects.
func DecideNewCreation(res storage.CreationResult, sub bool) bool {
	return res.Recorded && sub
}

// DecideCompleted returns whether a completed transition should notify.
// The store already folded the state transition and the external filter
// into the result; an already-completed token never notifies again.
func DecideCompleted(res storage.CompletionResult) bool {
	return (res.Recorded || res.Upgraded) && res.Notify
}
