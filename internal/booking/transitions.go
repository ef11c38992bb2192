package booking

// legalTransitions maps each non-terminal status to the statuses it may move
// to. Terminal statuses have no entry.
var legalTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled, StatusNoShow},
}

// CanTransition reports whether the edge from→to is legal. Re-applying the
// current status is handled by the caller as an idempotent no-op, not here.
func CanTransition(from, to Status) bool {
	for _, allowed := range legalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// releasesSeat reports whether entering to from a seat-holding status frees
// the slot seat. Confirmation does not touch capacity: the seat has been held
// since booking time.
func releasesSeat(from, to Status) bool {
	if !from.HoldsSeat() {
		return false
	}
	return to == StatusCancelled || to == StatusNoShow
}
