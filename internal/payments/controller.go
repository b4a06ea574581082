package payments

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"ferrylink/internal/shared/utils/response"
	"ferrylink/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

const maxNotificationBytes = 1 << 20

// Enqueuer hands an authenticated payload to the async worker pool
type Enqueuer interface {
	Publish(ctx context.Context, key string, payload []byte) error
}

type Controller struct {
	processor Processor
	validator *validator.Validate
	serverKey string
	queue     Enqueuer
	log       *logger.Logger
}

// NewController builds the webhook ingress. queue is nil in synchronous mode.
func NewController(processor Processor, serverKey string, queue Enqueuer, log *logger.Logger) *Controller {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Controller{
		processor: processor,
		validator: validator.New(),
		serverKey: serverKey,
		queue:     queue,
		log:       log,
	}
}

// HandleNotification handles POST /api/v1/payments/notification
// @Summary Payment gateway notification
// @Description Authenticated by signature_key. Any failure after authentication is acknowledged with 200.
// @Tags payments
// @Accept json
// @Produce json
// @Param notification body Notification true "Gateway notification"
// @Success 200 {object} response.StandardApiResponse
// @Failure 400 {object} response.StandardApiResponse
// @Failure 403 {object} response.StandardApiResponse
// @Failure 429 {object} response.StandardApiResponse
// @Router /payments/notification [post]
func (c *Controller) HandleNotification(ctx *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(ctx.Request.Body, maxNotificationBytes))
	if err != nil {
		c.reject(ctx, &Error{Kind: KindValidation, Op: "read_body", Err: err})
		return
	}

	n, err := c.authenticate(raw)
	if err != nil {
		c.reject(ctx, err)
		return
	}

	if c.queue != nil {
		err := c.queue.Publish(ctx.Request.Context(), n.OrderID, raw)
		if err == nil {
			response.RespondJSON(ctx, "success", http.StatusOK, "Notification queued", WebhookAck{
				Status:  "ok",
				OrderID: n.OrderID,
				Queued:  true,
			}, nil)
			return
		}
		c.log.ErrorWithContext(ctx.Request.Context(), "Enqueue failed, processing inline", err, map[string]interface{}{
			"order_id": n.OrderID,
		})
	}

	result := c.processor.Process(ctx.Request.Context(), n, raw)
	response.RespondJSON(ctx, "success", http.StatusOK, "Notification acknowledged", WebhookAck{
		Status:  "ok",
		OrderID: n.OrderID,
		Outcome: result.Outcome,
	}, nil)
}

// authenticate checks shape, required fields and signature before any state is touched
func (c *Controller) authenticate(raw []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, &Error{Kind: KindValidation, Op: "decode", Err: errors.Join(ErrMalformedPayload, err)}
	}
	if err := c.validator.Struct(&n); err != nil {
		return nil, &Error{Kind: KindValidation, Op: "validate", OrderID: n.OrderID, Err: errors.Join(ErrMissingRequired, err)}
	}
	if !VerifySignature(&n, c.serverKey) {
		return nil, &Error{Kind: KindAuthentication, Op: "verify_signature", OrderID: n.OrderID, Err: ErrInvalidSignature}
	}
	return &n, nil
}

func (c *Controller) reject(ctx *gin.Context, err error) {
	code := StatusCodeFor(err)
	var orderID string
	var perr *Error
	if errors.As(err, &perr) {
		orderID = perr.OrderID
	}
	c.log.LogWebhookRejected(ctx.Request.Context(), KindOf(err).String(), orderID, ctx.ClientIP())

	message := "Invalid notification"
	if code == http.StatusForbidden {
		message = "Notification rejected"
	}
	response.RespondJSON(ctx, "error", code, message, nil, err.Error())
}

// StatusCodeFor maps an ingress failure to its HTTP status. Kinds raised after authentication are acknowledged.
func StatusCodeFor(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusForbidden
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusOK
	}
}

// Replay handles POST /api/v1/admin/payments/:order_id/replay
// @Summary Re-run reconciliation from the latest stored notification
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param order_id path string true "Gateway order id"
// @Success 200 {object} response.StandardApiResponse
// @Failure 404 {object} response.StandardApiResponse
// @Router /admin/payments/{order_id}/replay [post]
func (c *Controller) Replay(ctx *gin.Context) {
	orderID := ctx.Param("order_id")
	result, err := c.processor.Replay(ctx.Request.Context(), orderID)
	if err != nil {
		if KindOf(err) == KindNotFound {
			response.RespondJSON(ctx, "error", http.StatusNotFound, "No stored notification for order", nil, nil)
			return
		}
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to replay notification", nil, err.Error())
		return
	}

	data := gin.H{
		"order_id":       result.OrderID,
		"outcome":        result.Outcome,
		"from":           result.From,
		"to":             result.To,
		"tickets_issued": result.TicketsIssued,
	}
	if result.Err != nil {
		data["error"] = result.Err.Error()
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Notification replayed", data, nil)
}

// Events handles GET /api/v1/admin/payments/:order_id/events
// @Summary Audit trail of a payment
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param order_id path string true "Gateway order id"
// @Success 200 {object} response.StandardApiResponse
// @Router /admin/payments/{order_id}/events [get]
func (c *Controller) Events(ctx *gin.Context) {
	events, err := c.processor.History(ctx.Request.Context(), ctx.Param("order_id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to load payment events", nil, err.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Payment events retrieved successfully", gin.H{
		"events": ToEventResponses(events),
		"count":  len(events),
	}, nil)
}
