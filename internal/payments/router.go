package payments

import (
	"github.com/gin-gonic/gin"
)

// SetupPaymentRoutes registers the public webhook behind guards and the admin repair routes.
// guards run in order before the handler; admin must already carry the admin auth middleware.
func SetupPaymentRoutes(rg *gin.RouterGroup, admin *gin.RouterGroup, controller *Controller, guards ...gin.HandlerFunc) {
	payments := rg.Group("/payments")
	{
		handlers := append(append([]gin.HandlerFunc{}, guards...), controller.HandleNotification)
		payments.POST("/notification", handlers...) // POST /api/v1/payments/notification
	}

	adminPayments := admin.Group("/payments")
	{
		adminPayments.POST("/:order_id/replay", controller.Replay) // POST /api/v1/admin/payments/:order_id/replay
		adminPayments.GET("/:order_id/events", controller.Events)  // GET /api/v1/admin/payments/:order_id/events
	}
}

// Route definitions for reference:
//
// WEBHOOK INGRESS
// POST   /api/v1/payments/notification              - Gateway notification (IP allowlist, rate limit, signature)
//
// ADMIN REPAIR (JWT, ADMIN role)
// POST   /api/v1/admin/payments/:order_id/replay    - Re-run the latest stored notification
// GET    /api/v1/admin/payments/:order_id/events    - Audit trail
