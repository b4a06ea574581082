package bookings

import "time"

type BookingResponse struct {
	ID                 string              `json:"id"`
	Code               string              `json:"code"`
	Status             Status              `json:"status"`
	TotalPassengers    int                 `json:"total_passengers"`
	TotalAmount        float64             `json:"total_amount"`
	ExpiresAt          time.Time           `json:"expires_at"`
	ConfirmedAt        *time.Time          `json:"confirmed_at,omitempty"`
	CancelledAt        *time.Time          `json:"cancelled_at,omitempty"`
	CancellationReason string              `json:"cancellation_reason,omitempty"`
	Schedule           *ScheduleResponse   `json:"schedule,omitempty"`
	Passengers         []PassengerResponse `json:"passengers"`
}

type ScheduleResponse struct {
	ID             string    `json:"id"`
	RouteCode      string    `json:"route_code"`
	DepartureTime  time.Time `json:"departure_time"`
	AvailableSeats int       `json:"available_seats"`
}

type PassengerResponse struct {
	FullName   string `json:"full_name"`
	Position   int    `json:"position"`
	SeatNumber string `json:"seat_number,omitempty"`
}

func ToBookingResponse(b *Booking) *BookingResponse {
	resp := &BookingResponse{
		ID:                 b.ID.String(),
		Code:               b.Code,
		Status:             b.Status,
		TotalPassengers:    b.TotalPassengers,
		TotalAmount:        b.TotalAmount,
		ExpiresAt:          b.ExpiresAt,
		ConfirmedAt:        b.ConfirmedAt,
		CancelledAt:        b.CancelledAt,
		CancellationReason: b.CancellationReason,
		Passengers:         make([]PassengerResponse, 0, len(b.Passengers)),
	}

	if b.Schedule != nil {
		resp.Schedule = &ScheduleResponse{
			ID:             b.Schedule.ID.String(),
			RouteCode:      b.Schedule.RouteCode,
			DepartureTime:  b.Schedule.DepartureTime,
			AvailableSeats: b.Schedule.AvailableSeats,
		}
	}

	for _, p := range b.Passengers {
		resp.Passengers = append(resp.Passengers, PassengerResponse{
			FullName:   p.FullName,
			Position:   p.Position,
			SeatNumber: p.SeatNumber,
		})
	}

	return resp
}
