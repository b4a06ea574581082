package tickets

import (
	"github.com/gin-gonic/gin"
)

// SetupTicketRoutes registers the public listing route and the admin regeneration route.
// admin must already carry the admin auth middleware.
func SetupTicketRoutes(rg *gin.RouterGroup, admin *gin.RouterGroup, controller *Controller) {
	rg.GET("/bookings/:code/tickets", controller.ListTickets) // GET /api/v1/bookings/:code/tickets

	admin.POST("/bookings/:code/tickets/regenerate", controller.Regenerate) // POST /api/v1/admin/bookings/:code/tickets/regenerate
}
