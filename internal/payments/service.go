// Package payments reconciles payment gateway notifications into payment, booking and seat state.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"ferrylink/internal/audit"
	"ferrylink/internal/tickets"
	"ferrylink/internal/webhooklock"
	"ferrylink/pkg/logger"

	"github.com/google/uuid"
)

// TicketIssuer runs the idempotent post-commit issuance step
type TicketIssuer interface {
	IssueForBooking(ctx context.Context, bookingID uuid.UUID) (*tickets.IssueResult, error)
}

// CacheInvalidator drops cached booking views once a change is committed
type CacheInvalidator interface {
	Invalidate(ctx context.Context, code string)
}

// Processor handles one authenticated notification end to end
type Processor interface {
	Process(ctx context.Context, n *Notification, raw []byte) *ProcessResult
	ProcessRaw(ctx context.Context, raw []byte) *ProcessResult
	Replay(ctx context.Context, orderID string) (*ProcessResult, error)
	History(ctx context.Context, orderID string) ([]audit.PaymentEvent, error)
}

type ProcessorOptions struct {
	ReconcileTimeout time.Duration
}

type processor struct {
	payments    Repository
	reconciler  *Reconciler
	locker      webhooklock.Locker
	audit       audit.Recorder
	issuer      TicketIssuer
	invalidator CacheInvalidator
	log         *logger.Logger
	opts        ProcessorOptions
}

func NewProcessor(
	payments Repository,
	reconciler *Reconciler,
	locker webhooklock.Locker,
	recorder audit.Recorder,
	issuer TicketIssuer,
	invalidator CacheInvalidator,
	log *logger.Logger,
	opts ProcessorOptions,
) Processor {
	if opts.ReconcileTimeout <= 0 {
		opts.ReconcileTimeout = 20 * time.Second
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &processor{
		payments:    payments,
		reconciler:  reconciler,
		locker:      locker,
		audit:       recorder,
		issuer:      issuer,
		invalidator: invalidator,
		log:         log,
		opts:        opts,
	}
}

// ProcessRaw decodes a payload that was authenticated before it was queued
func (p *processor) ProcessRaw(ctx context.Context, raw []byte) *ProcessResult {
	var n Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		p.log.ErrorWithContext(ctx, "Dropping undecodable queued notification", err, nil)
		return &ProcessResult{Outcome: OutcomeFailed, Err: fmt.Errorf("%w: %v", ErrMalformedPayload, err)}
	}
	return p.Process(ctx, &n, raw)
}

// Process never panics and never returns an error: every outcome is acknowledged upstream
func (p *processor) Process(ctx context.Context, n *Notification, raw []byte) (result *ProcessResult) {
	start := time.Now()
	// The gateway may hang up; the work must still finish
	ctx = context.WithoutCancel(ctx)
	result = &ProcessResult{OrderID: n.OrderID}

	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("panic during reconciliation: %v", rec)
			p.audit.Error(ctx, nil, n.OrderID, err, string(debug.Stack()), json.RawMessage(raw))
			p.log.ErrorWithContext(ctx, "Recovered from panic while processing notification", err, map[string]interface{}{
				"order_id": n.OrderID,
			})
			result.Outcome = OutcomeFailed
			result.Err = &Error{Kind: KindReconciliation, Op: "process", OrderID: n.OrderID, Err: err}
		}
		result.Latency = time.Since(start)
		p.logOutcome(ctx, result)
	}()

	classification := Classify(n)
	result.To = classification.Target

	payment, err := p.payments.GetByOrderID(ctx, n.OrderID)
	if err != nil {
		p.audit.Received(ctx, nil, n.OrderID, "", classification.Label(), raw)
		if errors.Is(err, ErrPaymentNotFound) {
			p.audit.Error(ctx, nil, n.OrderID, err, "", nil)
			result.Outcome = OutcomeNotFound
			result.Err = &Error{Kind: KindNotFound, Op: "lookup", OrderID: n.OrderID, Err: err}
			return result
		}
		p.audit.Error(ctx, nil, n.OrderID, err, "", nil)
		result.Outcome = OutcomeFailed
		result.Err = &Error{Kind: KindReconciliation, Op: "lookup", OrderID: n.OrderID, Err: err}
		return result
	}
	paymentID := payment.ID
	p.audit.Received(ctx, &paymentID, n.OrderID, string(payment.Status), classification.Label(), raw)
	result.From = payment.Status

	if classification.Target == StatusUnchanged {
		result.Outcome = OutcomeIgnored
		return result
	}
	// Fast path; re-checked under the lock
	if payment.Status == classification.Target {
		result.Outcome = OutcomeReplay
		return result
	}

	var rec *ReconcileResult
	err = p.locker.WithLock(ctx, n.OrderID, func(lockCtx context.Context) error {
		reconcileCtx, cancel := context.WithTimeout(lockCtx, p.opts.ReconcileTimeout)
		defer cancel()

		var rerr error
		rec, rerr = p.reconciler.Reconcile(reconcileCtx, ReconcileInput{
			OrderID:      n.OrderID,
			Target:       classification.Target,
			Notification: n,
			Raw:          raw,
			PaidAt:       classification.PaidAt,
		})
		if rerr != nil && errors.Is(reconcileCtx.Err(), context.DeadlineExceeded) {
			rerr = fmt.Errorf("%w: %w", ErrReconcileTimedOut, rerr)
		}
		return rerr
	})

	switch {
	case errors.Is(err, webhooklock.ErrContended):
		result.Outcome = OutcomeContended
		result.Err = &Error{Kind: KindLockContention, Op: "lock", OrderID: n.OrderID, Err: err}
		p.log.LogLockContended(ctx, n.OrderID)
		return result

	case KindOf(err) == KindTransitionRejected:
		var terr *Error
		errors.As(err, &terr)
		p.audit.Error(ctx, &paymentID, n.OrderID, err, "", audit.Failure{From: string(terr.From), To: string(terr.To)})
		result.Outcome = OutcomeRejected
		result.From = terr.From
		result.Err = err
		return result

	case err != nil:
		p.audit.Error(ctx, &paymentID, n.OrderID, err, "", audit.Failure{From: string(result.From), To: string(classification.Target)})
		result.Outcome = OutcomeFailed
		if KindOf(err) == KindUnknown {
			err = &Error{Kind: KindReconciliation, Op: "lock", OrderID: n.OrderID, Err: err}
		}
		result.Err = err
		return result
	}

	result.From = rec.From
	if rec.Replay {
		result.Outcome = OutcomeReplay
		return result
	}

	latency := time.Since(start)
	p.audit.StatusChanged(ctx, rec.PaymentID, n.OrderID, string(rec.From), string(rec.To), latency, map[string]interface{}{
		"booking_code":      rec.BookingCode,
		"seats_restored":    rec.SeatsRestored,
		"tickets_cancelled": rec.TicketsCancelled,
		"generate_tickets":  rec.GenerateTickets,
	})
	p.log.LogReconciled(ctx, n.OrderID, string(rec.From), string(rec.To), latency)
	if rec.BookingSkipped != "" {
		p.audit.Error(ctx, &paymentID, n.OrderID,
			fmt.Errorf("%w: booking %s is %s", ErrUnexpectedBooking, rec.BookingCode, rec.BookingSkipped),
			"", audit.Failure{From: string(rec.From), To: string(rec.To)})
		p.log.Warn("Payment moved without booking change", "order_id", n.OrderID, "booking_status", string(rec.BookingSkipped))
	}
	if rec.To == StatusChallenge {
		p.log.Warn("Payment held for manual review", "order_id", n.OrderID)
	}
	if p.invalidator != nil {
		p.invalidator.Invalidate(ctx, rec.BookingCode)
	}
	result.Outcome = OutcomeProcessed

	if rec.GenerateTickets && p.issuer != nil {
		result.TicketsIssued = p.issueTickets(ctx, paymentID, n.OrderID, rec.BookingID)
	}
	return result
}

// issueTickets runs after commit; failures are recorded for the repair job and never surface upstream
func (p *processor) issueTickets(ctx context.Context, paymentID uuid.UUID, orderID string, bookingID uuid.UUID) int {
	issued, err := p.issuer.IssueForBooking(ctx, bookingID)
	if err != nil {
		terr := &Error{Kind: KindTicketIssuance, Op: "issue_tickets", OrderID: orderID, Err: err}
		p.audit.Error(ctx, &paymentID, orderID, terr, "", map[string]string{"booking_id": bookingID.String()})
		p.log.ErrorWithContext(ctx, "Ticket issuance failed", terr, map[string]interface{}{
			"order_id":   orderID,
			"booking_id": bookingID.String(),
		})
		return 0
	}
	return issued.Issued
}

// Replay re-runs the latest stored notification for an order through the normal path
func (p *processor) Replay(ctx context.Context, orderID string) (*ProcessResult, error) {
	raw, err := p.audit.LatestPayload(ctx, orderID)
	if err != nil {
		if errors.Is(err, audit.ErrNoReceivedEvent) {
			return nil, &Error{Kind: KindNotFound, Op: "replay", OrderID: orderID, Err: ErrNoStoredPayload}
		}
		return nil, err
	}
	if len(raw) == 0 {
		return nil, &Error{Kind: KindNotFound, Op: "replay", OrderID: orderID, Err: ErrNoStoredPayload}
	}
	return p.ProcessRaw(ctx, raw), nil
}

func (p *processor) History(ctx context.Context, orderID string) ([]audit.PaymentEvent, error) {
	return p.audit.History(ctx, orderID)
}

func (p *processor) logOutcome(ctx context.Context, result *ProcessResult) {
	log := p.log.WithOrderID(result.OrderID)
	args := []interface{}{
		"outcome", string(result.Outcome),
		"from", string(result.From),
		"to", string(result.To),
		"latency_ms", result.Latency.Milliseconds(),
	}
	switch result.Outcome {
	case OutcomeFailed:
		if result.Err != nil {
			args = append(args, "error", result.Err.Error(), "kind", KindOf(result.Err).String())
		}
		log.ErrorContext(ctx, "Webhook processing failed", args...)
	case OutcomeRejected, OutcomeNotFound:
		if result.Err != nil {
			args = append(args, "error", result.Err.Error())
		}
		log.WarnContext(ctx, "Webhook acknowledged without change", args...)
	default:
		log.InfoContext(ctx, "Webhook processed", args...)
	}
}
