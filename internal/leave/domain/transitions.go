package domain

// allowedTransitions is the full state graph. Re-applying a transition or
// skipping a state is rejected, which is what makes the reconciliation
// passes idempotent.
var allowedTransitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusDenied, StatusAutoClosed},
	StatusApproved: {StatusActive, StatusRecalled},
	StatusActive:   {StatusExpired, StatusEarlyReturned},
}

// IsTransitionAllowed reports whether from -> to is a legal edge.
func IsTransitionAllowed(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
