package constants

import (
	"time"
)

// Redis key layout
// Pattern: ferrylink:{module}:{operation}:{identifier}

const (
	CACHE_PREFIX = "ferrylink"
)

// ================== CACHE TTL DURATIONS ==================

const (
	TTL_DYNAMIC_MEDIUM = 10 * time.Minute // booking detail
	TTL_DYNAMIC_SHORT  = 5 * time.Minute  // ticket listings
)

// ================== BOOKINGS MODULE ==================

const (
	CACHE_KEY_BOOKING_DETAIL  = CACHE_PREFIX + ":bookings:detail:code:"  // + booking-code
	CACHE_KEY_BOOKING_TICKETS = CACHE_PREFIX + ":bookings:tickets:code:" // + booking-code
)

const (
	TTL_BOOKING_DETAIL  = TTL_DYNAMIC_MEDIUM
	TTL_BOOKING_TICKETS = TTL_DYNAMIC_SHORT
)

// ================== WEBHOOK MODULE ==================

const (
	LOCK_KEY_WEBHOOK_ORDER = CACHE_PREFIX + ":lock:webhook:order:" // + order-id
	RATE_LIMIT_KEY_PREFIX  = CACHE_PREFIX + ":rate_limit:"         // + type:ip
)

// ================== HELPER FUNCTIONS ==================

func BuildBookingDetailKey(code string) string {
	return CACHE_KEY_BOOKING_DETAIL + code
}

func BuildBookingTicketsKey(code string) string {
	return CACHE_KEY_BOOKING_TICKETS + code
}

// BuildBookingPattern matches every cached view of one booking
func BuildBookingPattern(code string) string {
	return CACHE_PREFIX + ":bookings:*:code:" + code
}

func BuildWebhookLockKey(orderID string) string {
	return LOCK_KEY_WEBHOOK_ORDER + orderID
}
