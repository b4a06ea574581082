package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ferrylink/internal/audit"
	"ferrylink/internal/bookings"
	"ferrylink/internal/shared/dbtest"
	"ferrylink/internal/shared/txn"
	"ferrylink/internal/tickets"
	"ferrylink/internal/webhooklock"
	"ferrylink/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	scheduleSeats = 10
)

type recordingInvalidator struct {
	mu    sync.Mutex
	codes []string
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes = append(r.codes, code)
}

type contendedLocker struct{}

func (contendedLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	return webhooklock.ErrContended
}

type failingIssuer struct{ err error }

func (f failingIssuer) IssueForBooking(ctx context.Context, bookingID uuid.UUID) (*tickets.IssueResult, error) {
	return nil, f.err
}

type panickingIssuer struct{}

func (panickingIssuer) IssueForBooking(ctx context.Context, bookingID uuid.UUID) (*tickets.IssueResult, error) {
	panic("qr encoder blew up")
}

type harness struct {
	db          *gorm.DB
	payments    Repository
	bookingRepo bookings.Repository
	ticketRepo  tickets.Repository
	auditRepo   audit.Repository
	recorder    audit.Recorder
	issuer      tickets.Issuer
	invalidator *recordingInvalidator
	reconciler  *Reconciler
}

func newHarness(t *testing.T) *harness {
	db := dbtest.Open(t,
		&bookings.Schedule{}, &bookings.Booking{}, &bookings.Passenger{},
		&Payment{}, &tickets.Ticket{}, &audit.PaymentEvent{},
	)
	h := &harness{
		db:          db,
		payments:    NewRepository(db),
		bookingRepo: bookings.NewRepository(db),
		ticketRepo:  tickets.NewRepository(db),
		auditRepo:   audit.NewRepository(db),
		invalidator: &recordingInvalidator{},
	}
	h.recorder = audit.NewService(h.auditRepo, logger.Discard())
	tx := txn.NewTransactor(db)
	h.issuer = tickets.NewIssuer(tx, h.ticketRepo, h.bookingRepo, tickets.NewCodeGenerator("FL"), nil, h.invalidator, logger.Discard(), tickets.Options{})
	h.reconciler = NewReconciler(tx, h.payments, h.bookingRepo, h.ticketRepo)
	return h
}

func (h *harness) processor(locker webhooklock.Locker, issuer TicketIssuer) Processor {
	if locker == nil {
		locker = webhooklock.NewMemoryLocker(5 * time.Second)
	}
	if issuer == nil {
		issuer = h.issuer
	}
	return NewProcessor(h.payments, h.reconciler, locker, h.recorder, issuer, h.invalidator, logger.Discard(), ProcessorOptions{})
}

// seed creates a schedule, a booking holding passengers seats, and its payment
func (h *harness) seed(t *testing.T, orderID string, passengers int, bookingStatus bookings.Status, paymentStatus Status) (*Payment, *bookings.Booking) {
	t.Helper()
	ctx := context.Background()

	schedule := &bookings.Schedule{
		RouteCode:      "MRK-BKH",
		DepartureTime:  time.Date(2026, 12, 1, 7, 0, 0, 0, time.UTC),
		TotalSeats:     scheduleSeats,
		AvailableSeats: scheduleSeats - passengers,
	}
	require.NoError(t, h.bookingRepo.CreateSchedule(ctx, h.db, schedule))

	booking := &bookings.Booking{
		Code:            "FB-" + orderID,
		UserID:          uuid.New(),
		ScheduleID:      schedule.ID,
		Status:          bookingStatus,
		TotalPassengers: passengers,
		TotalAmount:     float64(passengers) * 75000,
		ExpiresAt:       time.Now().Add(time.Hour).UTC(),
	}
	for i := 1; i <= passengers; i++ {
		booking.Passengers = append(booking.Passengers, bookings.Passenger{FullName: fmt.Sprintf("Pax %d", i), Position: i})
	}
	require.NoError(t, h.bookingRepo.Create(ctx, h.db, booking))

	payment := &Payment{
		OrderID:   orderID,
		BookingID: booking.ID,
		Amount:    booking.TotalAmount,
		Status:    paymentStatus,
	}
	require.NoError(t, h.payments.Create(ctx, h.db, payment))
	return payment, booking
}

func (h *harness) paymentStatus(t *testing.T, orderID string) Status {
	p, err := h.payments.GetByOrderID(context.Background(), orderID)
	require.NoError(t, err)
	return p.Status
}

func (h *harness) booking(t *testing.T, id uuid.UUID) *bookings.Booking {
	b, err := h.bookingRepo.GetByID(context.Background(), id)
	require.NoError(t, err)
	return b
}

func (h *harness) availableSeats(t *testing.T, scheduleID uuid.UUID) int {
	s, err := h.bookingRepo.GetSchedule(context.Background(), scheduleID)
	require.NoError(t, err)
	return s.AvailableSeats
}

func (h *harness) ticketCount(t *testing.T, bookingID uuid.UUID) int64 {
	n, err := h.ticketRepo.CountByBooking(context.Background(), h.db, bookingID)
	require.NoError(t, err)
	return n
}

func (h *harness) events(t *testing.T, orderID string, typ audit.EventType) int64 {
	n, err := h.auditRepo.CountByType(context.Background(), orderID, typ)
	require.NoError(t, err)
	return n
}

func signedNotification(orderID, txStatus, fraud string) (*Notification, []byte) {
	n := &Notification{
		OrderID:           orderID,
		StatusCode:        "200",
		GrossAmount:       "150000.00",
		TransactionStatus: txStatus,
		FraudStatus:       fraud,
		PaymentType:       "bank_transfer",
		TransactionID:     "trx-" + orderID,
		VANumbers:         []VANumber{{Bank: "BCA", VANumber: "8808123456"}},
	}
	if txStatus == "settlement" {
		n.SettlementTime = "2026-10-16 10:00:00"
	}
	n.SignatureKey = ComputeSignature(n.OrderID, n.StatusCode, n.GrossAmount, testServerKey)
	raw, _ := json.Marshal(n)
	return n, raw
}

func TestProcess_SettlementConfirmsAndIssuesTickets(t *testing.T) {
	h := newHarness(t)
	_, booking := h.seed(t, "ORD-A", 2, bookings.StatusPending, StatusPending)
	p := h.processor(nil, nil)

	n, raw := signedNotification("ORD-A", "settlement", "accept")
	res := p.Process(context.Background(), n, raw)

	assert.Equal(t, OutcomeProcessed, res.Outcome)
	assert.Equal(t, StatusPending, res.From)
	assert.Equal(t, StatusSuccess, res.To)
	assert.Equal(t, 2, res.TicketsIssued)

	payment, err := h.payments.GetByOrderID(context.Background(), "ORD-A")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, payment.Status)
	assert.Equal(t, "trx-ORD-A", payment.TransactionID)
	assert.Equal(t, "8808123456", payment.VANumber)
	assert.Equal(t, "bca", payment.Bank)
	assert.NotEmpty(t, payment.RawNotification)
	require.NotNil(t, payment.PaidAt)
	assert.True(t, payment.PaidAt.Equal(time.Date(2026, 10, 16, 3, 0, 0, 0, time.UTC)))

	b := h.booking(t, booking.ID)
	assert.Equal(t, bookings.StatusConfirmed, b.Status)
	assert.NotNil(t, b.ConfirmedAt)
	assert.Equal(t, int64(2), h.ticketCount(t, booking.ID))
	assert.Equal(t, scheduleSeats-2, h.availableSeats(t, booking.ScheduleID))

	assert.Equal(t, int64(1), h.events(t, "ORD-A", audit.EventReceived))
	assert.Equal(t, int64(1), h.events(t, "ORD-A", audit.EventStatusChanged))
	assert.Equal(t, int64(0), h.events(t, "ORD-A", audit.EventError))
	assert.Contains(t, h.invalidator.codes, booking.Code)
}

func TestProcess_DuplicateDeliveryIsReplay(t *testing.T) {
	h := newHarness(t)
	_, booking := h.seed(t, "ORD-B", 3, bookings.StatusPending, StatusPending)
	p := h.processor(nil, nil)
	n, raw := signedNotification("ORD-B", "settlement", "")

	first := p.Process(context.Background(), n, raw)
	require.Equal(t, OutcomeProcessed, first.Outcome)

	for i := 0; i < 3; i++ {
		again := p.Process(context.Background(), n, raw)
		assert.Equal(t, OutcomeReplay, again.Outcome)
	}

	assert.Equal(t, int64(3), h.ticketCount(t, booking.ID))
	assert.Equal(t, int64(1), h.events(t, "ORD-B", audit.EventStatusChanged))
	assert.Equal(t, int64(4), h.events(t, "ORD-B", audit.EventReceived))
}

func TestProcess_StalePendingAfterSuccessIsRejected(t *testing.T) {
	h := newHarness(t)
	_, booking := h.seed(t, "ORD-C", 1, bookings.StatusPending, StatusPending)
	p := h.processor(nil, nil)

	n, raw := signedNotification("ORD-C", "settlement", "")
	require.Equal(t, OutcomeProcessed, p.Process(context.Background(), n, raw).Outcome)

	stale, staleRaw := signedNotification("ORD-C", "pending", "")
	res := p.Process(context.Background(), stale, staleRaw)

	assert.Equal(t, OutcomeRejected, res.Outcome)
	assert.Equal(t, KindTransitionRejected, KindOf(res.Err))
	assert.Equal(t, StatusSuccess, h.paymentStatus(t, "ORD-C"))
	assert.Equal(t, bookings.StatusConfirmed, h.booking(t, booking.ID).Status)

	require.Equal(t, int64(1), h.events(t, "ORD-C", audit.EventError))
	history, err := h.recorder.History(context.Background(), "ORD-C")
	require.NoError(t, err)
	for _, e := range history {
		if e.Type == audit.EventError {
			assert.Equal(t, "SUCCESS", e.PreviousStatus)
			assert.Equal(t, "PENDING", e.NewStatus)
		}
	}
}

func TestProcess_DenyCancelsAndRestoresSeatsOnce(t *testing.T) {
	h := newHarness(t)
	_, booking := h.seed(t, "ORD-D", 4, bookings.StatusPending, StatusPending)
	p := h.processor(nil, nil)
	n, raw := signedNotification("ORD-D", "deny", "")

	res := p.Process(context.Background(), n, raw)
	assert.Equal(t, OutcomeProcessed, res.Outcome)
	assert.Equal(t, StatusDeny, h.paymentStatus(t, "ORD-D"))

	b := h.booking(t, booking.ID)
	assert.Equal(t, bookings.StatusCancelled, b.Status)
	assert.Equal(t, "payment denied", b.CancellationReason)
	assert.Equal(t, scheduleSeats, h.availableSeats(t, booking.ScheduleID))
	assert.Zero(t, h.ticketCount(t, booking.ID))

	// Replays and a later cancel never restore seats again
	assert.Equal(t, OutcomeReplay, p.Process(context.Background(), n, raw).Outcome)
	cancel, cancelRaw := signedNotification("ORD-D", "cancel", "")
	assert.Equal(t, OutcomeRejected, p.Process(context.Background(), cancel, cancelRaw).Outcome)
	assert.Equal(t, scheduleSeats, h.availableSeats(t, booking.ScheduleID))
}

func TestProcess_CaptureWithFraudDeny(t *testing.T) {
	h := newHarness(t)
	_, booking := h.seed(t, "ORD-FD", 1, bookings.StatusPending, StatusPending)
	n, raw := signedNotification("ORD-FD", "capture", "deny")

	res := h.processor(nil, nil).Process(context.Background(), n, raw)
	assert.Equal(t, OutcomeProcessed, res.Outcome)
	assert.Equal(t, StatusDeny, h.paymentStatus(t, "ORD-FD"))
	assert.Equal(t, bookings.StatusCancelled, h.booking(t, booking.ID).Status)
}

func TestProcess_FailureCancels(t *testing.T) {
	h := newHarness(t)
	_, booking := h.seed(t, "ORD-F", 2, bookings.StatusPending, StatusPending)
	n, raw := signedNotification("ORD-F", "cancel", "")

	res := h.processor(nil, nil).Process(context.Background(), n, raw)
	assert.Equal(t, OutcomeProcessed, res.Outcome)
	assert.Equal(t, StatusFailed, h.paymentStatus(t, "ORD-F"))

	b := h.booking(t, booking.ID)
	assert.Equal(t, bookings.StatusCancelled, b.Status)
	assert.Equal(t, "payment failed", b.CancellationReason)
	assert.Equal(t, scheduleSeats, h.availableSeats(t, booking.ScheduleID))
}

func TestProcess_ExpireReleasesSeats(t *testing.T) {
	h := newHarness(t)
	_, booking := h.seed(t, "ORD-E", 2, bookings.StatusPending, StatusPending)
	n, raw := signedNotification("ORD-E", "expire", "")

	res := h.processor(nil, nil).Process(context.Background(), n, raw)
	assert.Equal(t, OutcomeProcessed, res.Outcome)
	assert.Equal(t, StatusExpired, h.paymentStatus(t, "ORD-E"))
	expired := h.booking(t, booking.ID)
	assert.Equal(t, bookings.StatusExpired, expired.Status)
	assert.Equal(t, "payment expired", expired.CancellationReason)
	assert.NotNil(t, expired.CancelledAt)
	assert.Equal(t, scheduleSeats, h.availableSeats(t, booking.ScheduleID))
}

func TestProcess_ChallengeThenSettlement(t *testing.T) {
	h := newHarness(t)
	_, booking := h.seed(t, "ORD-CH", 2, bookings.StatusPending, StatusPending)
	p := h.processor(nil, nil)

	n, raw := signedNotification("ORD-CH", "capture", "challenge")
	res := p.Process(context.Background(), n, raw)
	assert.Equal(t, OutcomeProcessed, res.Outcome)
	assert.Equal(t, StatusChallenge, h.paymentStatus(t, "ORD-CH"))
	assert.Equal(t, bookings.StatusPending, h.booking(t, booking.ID).Status)
	assert.Zero(t, h.ticketCount(t, booking.ID))

	ok, okRaw := signedNotification("ORD-CH", "settlement", "accept")
	res = p.Process(context.Background(), ok, okRaw)
	assert.Equal(t, OutcomeProcessed, res.Outcome)
	assert.Equal(t, StatusChallenge, res.From)
	assert.Equal(t, StatusSuccess, h.paymentStatus(t, "ORD-CH"))
	assert.Equal(t, bookings.StatusConfirmed, h.booking(t, booking.ID).Status)
	assert.Equal(t, int64(2), h.ticketCount(t, booking.ID))
	assert.Equal(t, int64(2), h.events(t, "ORD-CH", audit.EventStatusChanged))
}

func TestProcess_ReceivedEventCarriesClassification(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "ORD-RC", 1, bookings.StatusPending, StatusPending)
	p := h.processor(nil, nil)

	n, raw := signedNotification("ORD-RC", "capture", "challenge")
	require.Equal(t, OutcomeProcessed, p.Process(context.Background(), n, raw).Outcome)

	ignored, ignoredRaw := signedNotification("ORD-RC", "authorize", "")
	require.Equal(t, OutcomeIgnored, p.Process(context.Background(), ignored, ignoredRaw).Outcome)

	history, err := h.recorder.History(context.Background(), "ORD-RC")
	require.NoError(t, err)

	var received []audit.PaymentEvent
	for _, e := range history {
		if e.Type == audit.EventReceived {
			received = append(received, e)
		}
	}
	require.Len(t, received, 2)

	byTarget := map[string]audit.PaymentEvent{}
	for _, e := range received {
		byTarget[e.NewStatus] = e
		assert.NotEmpty(t, e.Payload)
	}
	assert.Equal(t, string(StatusPending), byTarget[string(StatusChallenge)].PreviousStatus)
	assert.Equal(t, string(StatusChallenge), byTarget["UNCHANGED"].PreviousStatus)
}

func TestProcess_RefundInvalidatesTicketsAndRestoresSeats(t *testing.T) {
	h := newHarness(t)
	_, booking := h.seed(t, "ORD-R", 2, bookings.StatusPending, StatusPending)
	p := h.processor(nil, nil)

	n, raw := signedNotification("ORD-R", "settlement", "")
	require.Equal(t, OutcomeProcessed, p.Process(context.Background(), n, raw).Outcome)

	refund, refundRaw := signedNotification("ORD-R", "refund", "")
	res := p.Process(context.Background(), refund, refundRaw)
	assert.Equal(t, OutcomeProcessed, res.Outcome)
	assert.Equal(t, StatusRefunded, h.paymentStatus(t, "ORD-R"))
	assert.Equal(t, bookings.StatusRefunded, h.booking(t, booking.ID).Status)
	assert.Equal(t, scheduleSeats, h.availableSeats(t, booking.ScheduleID))

	list, err := h.ticketRepo.ListByBooking(context.Background(), booking.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, tk := range list {
		assert.Equal(t, tickets.StatusCancelled, tk.Status)
	}
}

func TestProcess_RefundFromPendingIsRejected(t *testing.T) {
	h := newHarness(t)
	_, booking := h.seed(t, "ORD-RP", 1, bookings.StatusPending, StatusPending)
	n, raw := signedNotification("ORD-RP", "refund", "")

	res := h.processor(nil, nil).Process(context.Background(), n, raw)
	assert.Equal(t, OutcomeRejected, res.Outcome)
	assert.Equal(t, StatusPending, h.paymentStatus(t, "ORD-RP"))
	assert.Equal(t, scheduleSeats-1, h.availableSeats(t, booking.ScheduleID))
}

func TestProcess_UnknownStatusIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "ORD-U", 1, bookings.StatusPending, StatusPending)
	n, raw := signedNotification("ORD-U", "partial_refund", "")

	res := h.processor(nil, nil).Process(context.Background(), n, raw)
	assert.Equal(t, OutcomeIgnored, res.Outcome)
	assert.Equal(t, StatusPending, h.paymentStatus(t, "ORD-U"))
	assert.Equal(t, int64(1), h.events(t, "ORD-U", audit.EventReceived))
	assert.Equal(t, int64(0), h.events(t, "ORD-U", audit.EventStatusChanged))
}

func TestProcess_UnknownOrder(t *testing.T) {
	h := newHarness(t)
	n, raw := signedNotification("ORD-MISSING", "settlement", "")

	res := h.processor(nil, nil).Process(context.Background(), n, raw)
	assert.Equal(t, OutcomeNotFound, res.Outcome)
	assert.Equal(t, KindNotFound, KindOf(res.Err))
	assert.Equal(t, int64(1), h.events(t, "ORD-MISSING", audit.EventReceived))
	assert.Equal(t, int64(1), h.events(t, "ORD-MISSING", audit.EventError))
}

func TestProcess_ContendedLockDoesNothing(t *testing.T) {
	h := newHarness(t)
	_, booking := h.seed(t, "ORD-L", 1, bookings.StatusPending, StatusPending)
	n, raw := signedNotification("ORD-L", "settlement", "")

	res := h.processor(contendedLocker{}, nil).Process(context.Background(), n, raw)
	assert.Equal(t, OutcomeContended, res.Outcome)
	assert.Equal(t, KindLockContention, KindOf(res.Err))
	assert.Equal(t, StatusPending, h.paymentStatus(t, "ORD-L"))
	assert.Equal(t, bookings.StatusPending, h.booking(t, booking.ID).Status)
	assert.Equal(t, int64(0), h.events(t, "ORD-L", audit.EventStatusChanged))
}

func TestProcess_TicketFailureDoesNotRollBackPayment(t *testing.T) {
	h := newHarness(t)
	_, booking := h.seed(t, "ORD-T", 2, bookings.StatusPending, StatusPending)
	n, raw := signedNotification("ORD-T", "settlement", "")

	res := h.processor(nil, failingIssuer{err: errors.New("code service down")}).Process(context.Background(), n, raw)
	assert.Equal(t, OutcomeProcessed, res.Outcome)
	assert.Zero(t, res.TicketsIssued)
	assert.Equal(t, StatusSuccess, h.paymentStatus(t, "ORD-T"))
	assert.Equal(t, bookings.StatusConfirmed, h.booking(t, booking.ID).Status)
	assert.Equal(t, int64(1), h.events(t, "ORD-T", audit.EventError))

	// The repair path issues the missing tickets later
	repaired, err := h.issuer.RepairMissing(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)
	assert.Equal(t, int64(2), h.ticketCount(t, booking.ID))
}

func TestProcess_PanicIsContained(t *testing.T) {
	h := newHarness(t)
	_, booking := h.seed(t, "ORD-P", 1, bookings.StatusPending, StatusPending)
	n, raw := signedNotification("ORD-P", "settlement", "")

	var res *ProcessResult
	assert.NotPanics(t, func() {
		res = h.processor(nil, panickingIssuer{}).Process(context.Background(), n, raw)
	})
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, StatusSuccess, h.paymentStatus(t, "ORD-P"))
	assert.Equal(t, bookings.StatusConfirmed, h.booking(t, booking.ID).Status)
	assert.Equal(t, int64(1), h.events(t, "ORD-P", audit.EventError))
}

func TestProcess_BookingCancelledOutOfBand(t *testing.T) {
	h := newHarness(t)
	_, booking := h.seed(t, "ORD-X", 2, bookings.StatusCancelled, StatusPending)
	n, raw := signedNotification("ORD-X", "settlement", "")

	res := h.processor(nil, nil).Process(context.Background(), n, raw)
	assert.Equal(t, OutcomeProcessed, res.Outcome)
	assert.Equal(t, StatusSuccess, h.paymentStatus(t, "ORD-X"))
	assert.Equal(t, bookings.StatusCancelled, h.booking(t, booking.ID).Status)
	assert.Zero(t, h.ticketCount(t, booking.ID))
	assert.Equal(t, int64(1), h.events(t, "ORD-X", audit.EventError))
}

func TestProcess_ConcurrentDeliveriesApplyOnce(t *testing.T) {
	h := newHarness(t)
	_, booking := h.seed(t, "ORD-CC", 3, bookings.StatusPending, StatusPending)
	p := h.processor(nil, nil)
	n, raw := signedNotification("ORD-CC", "settlement", "")

	var wg sync.WaitGroup
	outcomes := make(chan Outcome, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes <- p.Process(context.Background(), n, raw).Outcome
		}()
	}
	wg.Wait()
	close(outcomes)

	processed := 0
	for o := range outcomes {
		assert.Contains(t, []Outcome{OutcomeProcessed, OutcomeReplay, OutcomeContended}, o)
		if o == OutcomeProcessed {
			processed++
		}
	}
	assert.Equal(t, 1, processed)
	assert.Equal(t, int64(3), h.ticketCount(t, booking.ID))
	assert.Equal(t, int64(1), h.events(t, "ORD-CC", audit.EventStatusChanged))
	assert.Equal(t, scheduleSeats-3, h.availableSeats(t, booking.ScheduleID))
}

func TestReplay_UsesLatestStoredPayload(t *testing.T) {
	h := newHarness(t)
	_, booking := h.seed(t, "ORD-RE", 1, bookings.StatusPending, StatusPending)

	// First delivery lands while another worker holds the lock
	n, raw := signedNotification("ORD-RE", "settlement", "")
	res := h.processor(contendedLocker{}, nil).Process(context.Background(), n, raw)
	require.Equal(t, OutcomeContended, res.Outcome)

	replayed, err := h.processor(nil, nil).Replay(context.Background(), "ORD-RE")
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, replayed.Outcome)
	assert.Equal(t, bookings.StatusConfirmed, h.booking(t, booking.ID).Status)

	_, err = h.processor(nil, nil).Replay(context.Background(), "ORD-NONE")
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestProcessRaw_Undecodable(t *testing.T) {
	h := newHarness(t)
	res := h.processor(nil, nil).ProcessRaw(context.Background(), []byte(`{"order_id":`))
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrMalformedPayload)
}
