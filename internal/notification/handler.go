package notification

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"herald/internal/logger"
	"herald/pkg/errors"
)

type BaseHandler struct {
	Logger logger.Logger
}

// HandleError writes the error response. Client errors are logged at warn
// level, everything else at error level.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	status := errors.ToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	} else {
		h.Logger.WarnwCtx(c.Request.Context(), "Request rejected", "error", err, "path", c.Request.URL.Path)
	}

	c.JSON(status, errors.ToErrorResponse(err))
}

func (h *BaseHandler) BadRequest(c *gin.Context, err error) {
	h.HandleError(c, errors.Validationf("invalid request body: %v", err).WithCause(err))
}

type Handler struct {
	BaseHandler
	Rules    Service
	Channels ChannelService
}

func NewHandler(rules Service, channels ChannelService, log logger.Logger) *Handler {
	return &Handler{
		BaseHandler: BaseHandler{Logger: log},
		Rules:       rules,
		Channels:    channels,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		rules := v1.Group("/notifications/rules")
		{
			rules.GET("", h.ListRules)
			rules.POST("", h.CreateRule)
			rules.GET("/:id", h.GetRule)
			rules.PUT("/:id", h.UpdateRule)
			rules.DELETE("/:id", h.DeleteRule)
			rules.PATCH("/:id/toggle", h.ToggleRule)
		}

		channels := v1.Group("/notifications/channels")
		{
			channels.GET("", h.ListChannels)
			channels.POST("/test", h.TestChannel)
			channels.GET("/:id", h.GetChannel)
			channels.GET("/:id/info", h.GetChannelInfo)
		}
	}
}

// ListRules godoc
// @Summary      List notification rules
// @Description  Get all notification rules, newest first
// @Tags         notification-rules
// @Produce      json
// @Success      200  {array}   Rule
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /notifications/rules [get]
func (h *Handler) ListRules(c *gin.Context) {
	rules, err := h.Rules.ListRules(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rules)
}

// CreateRule godoc
// @Summary      Create a notification rule
// @Description  Create a rule routing one event type to one or more channels
// @Tags         notification-rules
// @Accept       json
// @Produce      json
// @Param        rule  body      CreateRuleRequest  true  "Rule data"
// @Success      201   {object}  Rule
// @Failure      400   {object}  errors.ErrorResponse
// @Failure      500   {object}  errors.ErrorResponse
// @Router       /notifications/rules [post]
func (h *Handler) CreateRule(c *gin.Context) {
	var req CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err)
		return
	}

	rule, err := h.Rules.CreateRule(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, rule)
}

// GetRule godoc
// @Summary      Get a notification rule
// @Tags         notification-rules
// @Produce      json
// @Param        id   path      string  true  "Rule ID"
// @Success      200  {object}  Rule
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /notifications/rules/{id} [get]
func (h *Handler) GetRule(c *gin.Context) {
	rule, err := h.Rules.GetRule(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// UpdateRule godoc
// @Summary      Update a notification rule
// @Description  Partial update. Supplied channel_ids or filters replace the existing set.
// @Tags         notification-rules
// @Accept       json
// @Produce      json
// @Param        id    path      string             true  "Rule ID"
// @Param        rule  body      UpdateRuleRequest  true  "Fields to change"
// @Success      200   {object}  Rule
// @Failure      400   {object}  errors.ErrorResponse
// @Failure      404   {object}  errors.ErrorResponse
// @Failure      500   {object}  errors.ErrorResponse
// @Router       /notifications/rules/{id} [put]
func (h *Handler) UpdateRule(c *gin.Context) {
	var req UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err)
		return
	}

	rule, err := h.Rules.UpdateRule(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// DeleteRule godoc
// @Summary      Delete a notification rule
// @Description  Delete a rule with its filters and channel links and return it
// @Tags         notification-rules
// @Produce      json
// @Param        id   path      string  true  "Rule ID"
// @Success      200  {object}  Rule
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /notifications/rules/{id} [delete]
func (h *Handler) DeleteRule(c *gin.Context) {
	rule, err := h.Rules.DeleteRule(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// ToggleRule godoc
// @Summary      Toggle a notification rule
// @Description  Flip the enabled flag of a rule
// @Tags         notification-rules
// @Produce      json
// @Param        id   path      string  true  "Rule ID"
// @Success      200  {object}  Rule
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /notifications/rules/{id}/toggle [patch]
func (h *Handler) ToggleRule(c *gin.Context) {
	rule, err := h.Rules.ToggleRule(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// ListChannels godoc
// @Summary      List notification channels
// @Tags         notification-channels
// @Produce      json
// @Success      200  {array}   Channel
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /notifications/channels [get]
func (h *Handler) ListChannels(c *gin.Context) {
	channels, err := h.Channels.ListChannels(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, channels)
}

// GetChannel godoc
// @Summary      Get a notification channel
// @Tags         notification-channels
// @Produce      json
// @Param        id   path      string  true  "Channel ID"
// @Success      200  {object}  Channel
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /notifications/channels/{id} [get]
func (h *Handler) GetChannel(c *gin.Context) {
	channel, err := h.Channels.GetChannel(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, channel)
}

// TestChannel godoc
// @Summary      Test push server credentials
// @Description  Probe a push server with the given URL and token without saving anything
// @Tags         notification-channels
// @Accept       json
// @Produce      json
// @Param        channel  body      TestChannelRequest  true  "Server URL and token"
// @Success      200      {object}  gateway.ConnectionResult
// @Failure      400      {object}  errors.ErrorResponse
// @Router       /notifications/channels/test [post]
func (h *Handler) TestChannel(c *gin.Context) {
	var req TestChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Channels.TestChannel(c.Request.Context(), req))
}

// GetChannelInfo godoc
// @Summary      Get push server info
// @Description  Report the version of the server behind a channel
// @Tags         notification-channels
// @Produce      json
// @Param        id   path      string  true  "Channel ID"
// @Success      200  {object}  ChannelInfo
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /notifications/channels/{id}/info [get]
func (h *Handler) GetChannelInfo(c *gin.Context) {
	info, err := h.Channels.GetChannelInfo(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}
