package bookings

import (
	"context"
	"errors"
	"time"

	"ferrylink/internal/shared/constants"
	"ferrylink/pkg/cache"
	"ferrylink/pkg/logger"
)

// Service exposes booking reads to collaborators and keeps the read cache coherent
type Service interface {
	GetByCode(ctx context.Context, code string) (*BookingResponse, error)
	Invalidate(ctx context.Context, code string)
}

type service struct {
	repo  Repository
	cache cache.Service
	ttl   time.Duration
}

// NewService wires the booking read path. cacheService may be nil, in which case reads go straight to the store.
func NewService(repo Repository, cacheService cache.Service, ttl time.Duration) Service {
	if ttl <= 0 {
		ttl = constants.TTL_BOOKING_DETAIL
	}
	return &service{repo: repo, cache: cacheService, ttl: ttl}
}

func (s *service) GetByCode(ctx context.Context, code string) (*BookingResponse, error) {
	fetch := func() (interface{}, error) {
		booking, err := s.repo.GetByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		return ToBookingResponse(booking), nil
	}

	if s.cache == nil {
		data, err := fetch()
		if err != nil {
			return nil, err
		}
		return data.(*BookingResponse), nil
	}

	var resp BookingResponse
	if err := s.cache.GetOrSet(ctx, constants.BuildBookingDetailKey(code), s.ttl, fetch, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Invalidate drops every cached view of the booking. Failures are logged and swallowed.
func (s *service) Invalidate(ctx context.Context, code string) {
	if s.cache == nil || code == "" {
		return
	}
	err := s.cache.DeletePattern(ctx, constants.BuildBookingPattern(code))
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.GetDefault().WithError(err).Warn("Failed to invalidate booking cache", "booking_code", code)
	}
}
