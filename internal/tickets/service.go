// Package tickets issues boarding tickets for confirmed bookings.
package tickets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ferrylink/internal/bookings"
	"ferrylink/internal/shared/constants"
	"ferrylink/internal/shared/txn"
	"ferrylink/pkg/cache"
	"ferrylink/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrCodeExhausted         = errors.New("could not generate a unique ticket code")
	ErrBookingNotConfirmed   = errors.New("booking is not confirmed")
	ErrPassengerCountChanged = errors.New("passenger list does not match booking passenger count")
)

// CacheInvalidator drops cached booking views after tickets change
type CacheInvalidator interface {
	Invalidate(ctx context.Context, code string)
}

// IssueResult reports what one issuance attempt did
type IssueResult struct {
	BookingID   uuid.UUID `json:"booking_id"`
	BookingCode string    `json:"booking_code"`
	Issued      int       `json:"issued"`
	Skipped     bool      `json:"skipped"`
}

type Issuer interface {
	IssueForBooking(ctx context.Context, bookingID uuid.UUID) (*IssueResult, error)
	RegenerateByCode(ctx context.Context, code string) (*IssueResult, error)
	RepairMissing(ctx context.Context, limit int) (int, error)
	ListByBookingCode(ctx context.Context, code string) ([]TicketResponse, error)
}

type Options struct {
	CodeAttempts int
	CacheTTL     time.Duration
}

type issuer struct {
	tx          txn.Transactor
	repo        Repository
	bookingRepo bookings.Repository
	codes       CodeGenerator
	cache       cache.Service
	invalidator CacheInvalidator
	log         *logger.Logger
	opts        Options
}

// NewIssuer builds the issuance service. cacheService and invalidator may be nil.
func NewIssuer(
	tx txn.Transactor,
	repo Repository,
	bookingRepo bookings.Repository,
	codes CodeGenerator,
	cacheService cache.Service,
	invalidator CacheInvalidator,
	log *logger.Logger,
	opts Options,
) Issuer {
	if opts.CodeAttempts <= 0 {
		opts.CodeAttempts = 5
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = constants.TTL_BOOKING_TICKETS
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &issuer{
		tx:          tx,
		repo:        repo,
		bookingRepo: bookingRepo,
		codes:       codes,
		cache:       cacheService,
		invalidator: invalidator,
		log:         log,
		opts:        opts,
	}
}

// IssueForBooking creates one ticket per passenger. Running it again for the same booking is a no-op.
func (s *issuer) IssueForBooking(ctx context.Context, bookingID uuid.UUID) (*IssueResult, error) {
	result := &IssueResult{BookingID: bookingID}

	err := s.tx.WithinTransaction(ctx, func(tx *gorm.DB) error {
		booking, err := s.bookingRepo.FindByIDForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		result.BookingCode = booking.Code

		if !booking.IsConfirmed() {
			return ErrBookingNotConfirmed
		}

		existing, err := s.repo.CountByBooking(ctx, tx, bookingID)
		if err != nil {
			return fmt.Errorf("count tickets: %w", err)
		}
		if existing > 0 {
			result.Skipped = true
			return nil
		}

		var schedule bookings.Schedule
		if err := tx.WithContext(ctx).Where("id = ?", booking.ScheduleID).First(&schedule).Error; err != nil {
			return fmt.Errorf("load schedule: %w", err)
		}

		passengers, err := s.bookingRepo.ListPassengers(ctx, tx, bookingID)
		if err != nil {
			return fmt.Errorf("list passengers: %w", err)
		}
		if len(passengers) != booking.TotalPassengers {
			return fmt.Errorf("%w: have %d, booking says %d", ErrPassengerCountChanged, len(passengers), booking.TotalPassengers)
		}

		batch := make([]Ticket, 0, len(passengers))
		seen := make(map[string]struct{}, len(passengers))
		for _, p := range passengers {
			code, err := s.uniqueCode(ctx, tx, seen)
			if err != nil {
				return err
			}
			seat := SeatLabel(p.Position)

			payload, err := json.Marshal(QRPayload{
				TicketCode:    code,
				BookingCode:   booking.Code,
				PassengerName: p.FullName,
				ScheduleID:    schedule.ID.String(),
				DepartureTime: schedule.DepartureTime,
				Seat:          seat,
			})
			if err != nil {
				return fmt.Errorf("encode qr payload: %w", err)
			}

			batch = append(batch, Ticket{
				BookingID:   bookingID,
				PassengerID: p.ID,
				Code:        code,
				QRPayload:   string(payload),
				SeatNumber:  seat,
				Status:      StatusValid,
			})
		}

		if err := s.repo.CreateBatch(ctx, tx, batch); err != nil {
			return fmt.Errorf("create tickets: %w", err)
		}
		for i, p := range passengers {
			if err := s.bookingRepo.AssignSeat(ctx, tx, p.ID, batch[i].SeatNumber); err != nil {
				return fmt.Errorf("assign seat: %w", err)
			}
		}

		result.Issued = len(batch)
		return nil
	})
	if err != nil {
		return result, err
	}

	if result.Issued > 0 {
		if s.invalidator != nil {
			s.invalidator.Invalidate(ctx, result.BookingCode)
		}
		s.log.LogTicketsIssued(ctx, result.BookingCode, result.Issued)
	}
	return result, nil
}

func (s *issuer) uniqueCode(ctx context.Context, tx *gorm.DB, seen map[string]struct{}) (string, error) {
	for attempt := 0; attempt < s.opts.CodeAttempts; attempt++ {
		code, err := s.codes.Generate()
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		if _, dup := seen[code]; dup {
			continue
		}
		exists, err := s.repo.CodeExists(ctx, tx, code)
		if err != nil {
			return "", fmt.Errorf("check code: %w", err)
		}
		if !exists {
			seen[code] = struct{}{}
			return code, nil
		}
	}
	return "", ErrCodeExhausted
}

func (s *issuer) RegenerateByCode(ctx context.Context, code string) (*IssueResult, error) {
	booking, err := s.bookingRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.IssueForBooking(ctx, booking.ID)
}

// RepairMissing re-runs issuance for confirmed bookings left without tickets
func (s *issuer) RepairMissing(ctx context.Context, limit int) (int, error) {
	ids, err := s.repo.FindConfirmedWithoutTickets(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("find bookings without tickets: %w", err)
	}

	repaired := 0
	for _, id := range ids {
		res, err := s.IssueForBooking(ctx, id)
		if err != nil {
			s.log.ErrorWithContext(ctx, "Ticket repair failed", err, map[string]interface{}{
				"booking_id": id.String(),
			})
			continue
		}
		if res.Issued > 0 {
			repaired++
		}
	}
	return repaired, nil
}

func (s *issuer) ListByBookingCode(ctx context.Context, code string) ([]TicketResponse, error) {
	fetch := func() (interface{}, error) {
		booking, err := s.bookingRepo.GetByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		tickets, err := s.repo.ListByBooking(ctx, booking.ID)
		if err != nil {
			return nil, err
		}
		return ToTicketResponses(tickets), nil
	}

	if s.cache == nil {
		data, err := fetch()
		if err != nil {
			return nil, err
		}
		return data.([]TicketResponse), nil
	}

	var resp []TicketResponse
	if err := s.cache.GetOrSet(ctx, constants.BuildBookingTicketsKey(code), s.opts.CacheTTL, fetch, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}
