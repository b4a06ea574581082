package tickets

import (
	"errors"
	"net/http"

	"ferrylink/internal/bookings"
	"ferrylink/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
)

type Controller struct {
	issuer Issuer
}

func NewController(issuer Issuer) *Controller {
	return &Controller{issuer: issuer}
}

// ListTickets handles GET /api/v1/bookings/:code/tickets
// @Summary List tickets of a booking
// @Tags tickets
// @Produce json
// @Param code path string true "Booking code"
// @Success 200 {object} response.StandardApiResponse
// @Failure 404 {object} response.StandardApiResponse
// @Router /bookings/{code}/tickets [get]
func (c *Controller) ListTickets(ctx *gin.Context) {
	tickets, err := c.issuer.ListByBookingCode(ctx.Request.Context(), ctx.Param("code"))
	if err != nil {
		if errors.Is(err, bookings.ErrBookingNotFound) {
			response.RespondJSON(ctx, "error", http.StatusNotFound, "Booking not found", nil, nil)
			return
		}
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to list tickets", nil, err.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Tickets retrieved successfully", gin.H{
		"tickets": tickets,
		"count":   len(tickets),
	}, nil)
}

// Regenerate handles POST /api/v1/admin/bookings/:code/tickets/regenerate
// @Summary Re-run ticket issuance for a confirmed booking
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param code path string true "Booking code"
// @Success 200 {object} response.StandardApiResponse
// @Failure 404 {object} response.StandardApiResponse
// @Failure 409 {object} response.StandardApiResponse
// @Router /admin/bookings/{code}/tickets/regenerate [post]
func (c *Controller) Regenerate(ctx *gin.Context) {
	result, err := c.issuer.RegenerateByCode(ctx.Request.Context(), ctx.Param("code"))
	if err != nil {
		switch {
		case errors.Is(err, bookings.ErrBookingNotFound):
			response.RespondJSON(ctx, "error", http.StatusNotFound, "Booking not found", nil, nil)
		case errors.Is(err, ErrBookingNotConfirmed):
			response.RespondJSON(ctx, "error", http.StatusConflict, "Booking is not confirmed", nil, nil)
		default:
			response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to regenerate tickets", nil, err.Error())
		}
		return
	}

	message := "Tickets issued"
	if result.Skipped {
		message = "Tickets already issued"
	}
	response.RespondJSON(ctx, "success", http.StatusOK, message, result, nil)
}
