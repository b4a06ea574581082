package tickets

import "time"

type TicketResponse struct {
	Code        string     `json:"code"`
	PassengerID string     `json:"passenger_id"`
	SeatNumber  string     `json:"seat_number"`
	Status      Status     `json:"status"`
	QRPayload   string     `json:"qr_payload"`
	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`
}

func ToTicketResponses(tickets []Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, TicketResponse{
			Code:        t.Code,
			PassengerID: t.PassengerID.String(),
			SeatNumber:  t.SeatNumber,
			Status:      t.Status,
			QRPayload:   t.QRPayload,
			CheckedInAt: t.CheckedInAt,
		})
	}
	return out
}
