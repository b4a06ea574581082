package payments

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSuccess   Status = "SUCCESS"
	StatusChallenge Status = "CHALLENGE"
	StatusDeny      Status = "DENY"
	StatusFailed    Status = "FAILED"
	StatusExpired   Status = "EXPIRED"
	StatusRefunded  Status = "REFUNDED"

	// StatusUnchanged is the mapper's answer for notifications that must not move a payment
	StatusUnchanged Status = ""
)

var transitions = map[Status][]Status{
	StatusPending:   {StatusSuccess, StatusChallenge, StatusDeny, StatusFailed, StatusExpired},
	StatusChallenge: {StatusSuccess, StatusDeny, StatusFailed},
	StatusSuccess:   {StatusRefunded},
}

// IsValid checks if the payment status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusSuccess, StatusChallenge, StatusDeny, StatusFailed, StatusExpired, StatusRefunded:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed
func (s Status) IsTerminal() bool {
	return s.IsValid() && len(transitions[s]) == 0
}

func (s Status) String() string {
	return string(s)
}

// CanTransition reports whether from -> to is in the transition table.
// Same-state pairs are replays and must be handled before calling this.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
