package bookings

import (
	"github.com/gin-gonic/gin"
)

// SetupBookingRoutes configures booking retrieval routes
func SetupBookingRoutes(rg *gin.RouterGroup, controller *Controller) {
	bookings := rg.Group("/bookings")
	{
		bookings.GET("/:code", controller.GetBooking) // GET /api/v1/bookings/:code
	}
}

// Route definitions for reference:
//
// GET    /api/v1/bookings/:code           - Booking with schedule and passengers
// GET    /api/v1/bookings/:code/tickets   - Issued tickets (registered by the tickets module)
