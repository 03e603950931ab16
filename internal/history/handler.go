package history

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"herald/internal/constants"
	"herald/internal/logger"
	"herald/internal/notification"
	"herald/pkg/errors"
)

const (
	dateOnly = "2006-01-02"
	// localDateTime is an ISO-8601 date-time without offset, read as UTC.
	localDateTime = "2006-01-02T15:04:05.999999999"
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
		v1.GET("/notifications/history", h.GetHistory)
	}
}

// GetHistory godoc
// @Summary      Query delivery history
// @Description  List delivery attempts, most recent first, with pagination metadata
// @Tags         notification-history
// @Produce      json
// @Param        start_date  query     string  false  "Inclusive lower bound (RFC 3339 or YYYY-MM-DD)"
// @Param        end_date    query     string  false  "Inclusive upper bound (RFC 3339 or YYYY-MM-DD)"
// @Param        event_type  query     string  false  "Event type"
// @Param        channel_id  query     string  false  "Channel ID"
// @Param        status      query     string  false  "sent or failed"
// @Param        limit       query     int     false  "Page size (1-1000, default 100)"
// @Param        offset      query     int     false  "Entries to skip (default 0)"
// @Success      200  {object}  Page
// @Failure      400  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /notifications/history [get]
func (h *Handler) GetHistory(c *gin.Context) {
	filter, fieldErrs := ParseFilter(c.Request.URL.Query())
	if len(fieldErrs) > 0 {
		h.HandleError(c, errors.NewFieldErrors(fieldErrs))
		return
	}

	page, err := h.Service.Query(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

type queryValues interface {
	Get(key string) string
}

// ParseFilter validates history query parameters. Every invalid field is
// reported, not just the first. A date-only end_date covers the whole day.
func ParseFilter(q queryValues) (Filter, []errors.FieldError) {
	var filter Filter
	var errs []errors.FieldError

	if v := strings.TrimSpace(q.Get("start_date")); v != "" {
		t, err := parseDate(v, false)
		if err != nil {
			errs = append(errs, errors.FieldError{Field: "start_date", Message: "must be an ISO-8601 date or date-time"})
		} else {
			filter.StartDate = &t
		}
	}

	if v := strings.TrimSpace(q.Get("end_date")); v != "" {
		t, err := parseDate(v, true)
		if err != nil {
			errs = append(errs, errors.FieldError{Field: "end_date", Message: "must be an ISO-8601 date or date-time"})
		} else {
			filter.EndDate = &t
		}
	}

	if filter.StartDate != nil && filter.EndDate != nil && filter.StartDate.After(*filter.EndDate) {
		errs = append(errs, errors.FieldError{Field: "end_date", Message: "must not be before start_date"})
	}

	if v := q.Get("event_type"); v != "" {
		if !notification.IsValidEventType(v) {
			errs = append(errs, errors.FieldError{
				Field:   "event_type",
				Message: "must be one of: " + strings.Join(notification.EventTypes, ", "),
			})
		} else {
			filter.EventType = v
		}
	}

	filter.ChannelID = strings.TrimSpace(q.Get("channel_id"))

	if v := q.Get("status"); v != "" {
		if !IsValidStatus(v) {
			errs = append(errs, errors.FieldError{Field: "status", Message: "must be one of: sent, failed"})
		} else {
			filter.Status = Status(v)
		}
	}

	filter.Limit = constants.DefaultLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > constants.MaxLimit {
			errs = append(errs, errors.FieldError{
				Field:   "limit",
				Message: "must be an integer between 1 and " + strconv.Itoa(constants.MaxLimit),
			})
		} else {
			filter.Limit = n
		}
	}

	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			errs = append(errs, errors.FieldError{Field: "offset", Message: "must be a non-negative integer"})
		} else {
			filter.Offset = n
		}
	}

	return filter, errs
}

func parseDate(v string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(localDateTime, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(dateOnly, v)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
