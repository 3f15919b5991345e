// Package state guards per-user conversation state: phase transitions and
// the mutual exclusion held around every read-modify-write of a record.
package state

import (
	"errors"

	"github.com/Proton-105/budget-bot/internal/domain"
)

// ErrStateLocked indicates that another update for the same user still holds the lock.
var ErrStateLocked = errors.New("state is locked, try again later")

var transitionRecorder = func(from, to string) {}

// RegisterTransitionRecorder allows external packages to observe phase transitions.
func RegisterTransitionRecorder(recorder func(from, to string)) {
	if recorder == nil {
		transitionRecorder = func(string, string) {}
		return
	}

	transitionRecorder = recorder
}

// RecordTransition reports a phase change to the registered recorder.
// Calls where the phase did not change are ignored.
func RecordTransition(from, to domain.Phase) {
	if from == to {
		return
	}
	transitionRecorder(string(from), string(to))
}
