package payments

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindAuthentication
	KindValidation
	KindRateLimited
	KindLockContention
	KindTransitionRejected
	KindNotFound
	KindReconciliation
	KindTicketIssuance
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindValidation:
		return "validation"
	case KindRateLimited:
		return "rate_limited"
	case KindLockContention:
		return "lock_contention"
	case KindTransitionRejected:
		return "transition_rejected"
	case KindNotFound:
		return "not_found"
	case KindReconciliation:
		return "reconciliation"
	case KindTicketIssuance:
		return "ticket_issuance"
	}
	return "unknown"
}

var (
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrPaymentChanged    = errors.New("payment status changed concurrently")
	ErrMalformedPayload  = errors.New("malformed notification payload")
	ErrMissingRequired   = errors.New("missing required notification fields")
	ErrSourceNotAllowed  = errors.New("source address not allowed")
	ErrReconcileTimedOut = errors.New("reconciliation timed out")
	ErrNoStoredPayload   = errors.New("no stored notification to replay")
	ErrUnexpectedBooking = errors.New("booking not in expected state")
)

// Error tags a failure with its kind and the payment it concerns
type Error struct {
	Kind    Kind
	Op      string
	OrderID string
	From    Status
	To      Status
	Err     error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.OrderID != "" {
		msg += " " + e.OrderID
	}
	if e.From != "" || e.To != "" {
		msg += fmt.Sprintf(" (%s -> %s)", e.From, e.To)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
