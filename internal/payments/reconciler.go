package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ferrylink/internal/bookings"
	"ferrylink/internal/shared/txn"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TicketCanceller invalidates a booking's tickets inside the caller's transaction
type TicketCanceller interface {
	CancelByBooking(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID) (int64, error)
}

// ReconcileInput is everything the reconciler needs to apply one classified notification
type ReconcileInput struct {
	OrderID      string
	Target       Status
	Notification *Notification
	Raw          []byte
	PaidAt       *time.Time
}

// ReconcileResult describes the committed change
type ReconcileResult struct {
	PaymentID        uuid.UUID
	BookingID        uuid.UUID
	BookingCode      string
	From             Status
	To               Status
	Replay           bool
	GenerateTickets  bool
	SeatsRestored    int
	TicketsCancelled int64
	// BookingSkipped is set when the booking was not in the state this transition expects
	BookingSkipped bookings.Status
}

type Reconciler struct {
	tx       txn.Transactor
	payments Repository
	bookings bookings.Repository
	tickets  TicketCanceller
	now      func() time.Time
}

func NewReconciler(tx txn.Transactor, payments Repository, bookingRepo bookings.Repository, tickets TicketCanceller) *Reconciler {
	return &Reconciler{
		tx:       tx,
		payments: payments,
		bookings: bookingRepo,
		tickets:  tickets,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Reconcile applies in.Target in one transaction. State is re-read under row locks, so a
// snapshot taken before the caller acquired the webhook lock is never trusted.
func (r *Reconciler) Reconcile(ctx context.Context, in ReconcileInput) (*ReconcileResult, error) {
	var result *ReconcileResult

	err := r.tx.WithinTransaction(ctx, func(tx *gorm.DB) error {
		result = &ReconcileResult{To: in.Target}

		payment, err := r.payments.FindByOrderIDForUpdate(ctx, tx, in.OrderID)
		if err != nil {
			if errors.Is(err, ErrPaymentNotFound) {
				return &Error{Kind: KindNotFound, Op: "reconcile", OrderID: in.OrderID, Err: err}
			}
			return err
		}
		result.PaymentID = payment.ID
		result.BookingID = payment.BookingID
		result.From = payment.Status

		if payment.Status == in.Target {
			result.Replay = true
			return nil
		}

		if !CanTransition(payment.Status, in.Target) {
			return &Error{
				Kind:    KindTransitionRejected,
				Op:      "reconcile",
				OrderID: in.OrderID,
				From:    payment.Status,
				To:      in.Target,
				Err:     ErrInvalidTransition,
			}
		}

		booking, err := r.bookings.FindByIDForUpdate(ctx, tx, payment.BookingID)
		if err != nil {
			return fmt.Errorf("lock booking: %w", err)
		}
		result.BookingCode = booking.Code

		if err := r.applyBooking(ctx, tx, booking, in.Target, result); err != nil {
			return err
		}

		update := Update{
			Status:          in.Target,
			RawNotification: in.Raw,
		}
		if n := in.Notification; n != nil {
			update.PaymentType = n.PaymentType
			update.TransactionID = n.TransactionID
			update.VANumber, update.Bank = n.ChannelReference()
		}
		if in.Target == StatusSuccess {
			paidAt := r.now()
			if in.PaidAt != nil {
				paidAt = *in.PaidAt
			}
			update.PaidAt = &paidAt
		}

		if err := r.payments.ApplyUpdate(ctx, tx, payment.ID, payment.Status, update); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}
		return nil
	})
	if err != nil {
		if KindOf(err) == KindUnknown {
			err = &Error{Kind: KindReconciliation, Op: "reconcile", OrderID: in.OrderID, From: fromOf(result), To: in.Target, Err: err}
		}
		return result, err
	}
	return result, nil
}

// applyBooking mutates the booking only when it is in the state the payment transition expects
func (r *Reconciler) applyBooking(ctx context.Context, tx *gorm.DB, booking *bookings.Booking, target Status, result *ReconcileResult) error {
	now := r.now()

	switch target {
	case StatusSuccess:
		if booking.Status == bookings.StatusConfirmed {
			// Confirmed earlier; issuance is idempotent so let the caller re-check tickets
			result.GenerateTickets = true
			return nil
		}
		if booking.Status != bookings.StatusPending {
			result.BookingSkipped = booking.Status
			return nil
		}
		if err := r.bookings.TransitionStatus(ctx, tx, booking.ID, bookings.Transition{
			From: bookings.StatusPending,
			To:   bookings.StatusConfirmed,
			At:   now,
		}); err != nil {
			return fmt.Errorf("confirm booking: %w", err)
		}
		result.GenerateTickets = true

	case StatusDeny, StatusFailed, StatusExpired:
		if booking.Status != bookings.StatusPending {
			result.BookingSkipped = booking.Status
			return nil
		}
		to, reason := bookings.StatusCancelled, cancellationReason(target)
		if target == StatusExpired {
			to = bookings.StatusExpired
		}
		if err := r.bookings.TransitionStatus(ctx, tx, booking.ID, bookings.Transition{
			From:               bookings.StatusPending,
			To:                 to,
			At:                 now,
			CancellationReason: reason,
		}); err != nil {
			return fmt.Errorf("release booking: %w", err)
		}
		if err := r.bookings.RestoreSeats(ctx, tx, booking.ScheduleID, booking.TotalPassengers); err != nil {
			return fmt.Errorf("restore seats: %w", err)
		}
		result.SeatsRestored = booking.TotalPassengers

	case StatusRefunded:
		if booking.Status != bookings.StatusConfirmed {
			result.BookingSkipped = booking.Status
			return nil
		}
		if err := r.bookings.TransitionStatus(ctx, tx, booking.ID, bookings.Transition{
			From:               bookings.StatusConfirmed,
			To:                 bookings.StatusRefunded,
			At:                 now,
			CancellationReason: cancellationReason(target),
		}); err != nil {
			return fmt.Errorf("refund booking: %w", err)
		}
		cancelled, err := r.tickets.CancelByBooking(ctx, tx, booking.ID)
		if err != nil {
			return fmt.Errorf("cancel tickets: %w", err)
		}
		result.TicketsCancelled = cancelled
		if err := r.bookings.RestoreSeats(ctx, tx, booking.ScheduleID, booking.TotalPassengers); err != nil {
			return fmt.Errorf("restore seats: %w", err)
		}
		result.SeatsRestored = booking.TotalPassengers

	case StatusChallenge:
		// Held for manual review
	}
	return nil
}

func cancellationReason(target Status) string {
	switch target {
	case StatusDeny:
		return "payment denied"
	case StatusFailed:
		return "payment failed"
	case StatusExpired:
		return "payment expired"
	case StatusRefunded:
		return "payment refunded"
	}
	return ""
}

func fromOf(r *ReconcileResult) Status {
	if r == nil {
		return ""
	}
	return r.From
}
