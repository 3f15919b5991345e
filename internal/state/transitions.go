package state

import "github.com/Proton-105/budget-bot/internal/domain"

// validTransitions lists the phase changes a record may go through.
// Active is terminal; a record only leaves it by being deleted.
var validTransitions = map[domain.Phase][]domain.Phase{
	domain.PhaseAwaitingAmount: {
		domain.PhaseAwaitingDays,
		domain.PhaseActive,
	},
	domain.PhaseAwaitingDays: {
		domain.PhaseActive,
	},
}

// IsTransitionAllowed reports whether moving from one phase to another is valid.
func IsTransitionAllowed(from, to domain.Phase) bool {
	if from == to {
		return true
	}

	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}

	for _, phase := range allowed {
		if phase == to {
			return true
		}
	}

	return false
}
