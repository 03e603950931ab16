package dispatch

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"herald/internal/logger"
	"herald/internal/notification"
	"herald/pkg/errors"
)

type Handler struct {
	notification.BaseHandler
	Service Service
}

func NewHandler(service Service, log logger.Logger) *Handler {
	return &Handler{
		BaseHandler: notification.BaseHandler{Logger: log},
		Service:     service,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		v1.POST("/notifications/events", h.SendEvent)
	}
}

// SendEvent godoc
// @Summary      Dispatch an event
// @Description  Deliver an event to every channel of every matching rule and report the outcome counts
// @Tags         notification-events
// @Accept       json
// @Produce      json
// @Param        event  body      EventRequest  true  "Event type and data"
// @Success      200    {object}  Result
// @Failure      400    {object}  errors.ErrorResponse
// @Failure      500    {object}  errors.ErrorResponse
// @Router       /notifications/events [post]
func (h *Handler) SendEvent(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err)
		return
	}
	if !notification.IsValidEventType(req.EventType) {
		h.HandleError(c, errors.Validationf("unknown event type %q", req.EventType))
		return
	}

	result, err := h.Service.SendNotification(c.Request.Context(), req.EventType, req.EventData)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
