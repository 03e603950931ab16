package history

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herald/internal/logger"
)

func newHistoryRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := newTestService(NewMemoryRepository())
	seed(t, svc)

	router := gin.New()
	NewHandler(svc, logger.NopLogger()).RegisterRoutes(router)
	return router
}

func get(router *gin.Engine, query string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications/history?"+query, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandler_GetHistory(t *testing.T) {
	router := newHistoryRouter(t)

	w := get(router, "event_type=package_update&status=sent&limit=10&offset=0")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var page Page
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Len(t, page.Data, 6)
	assert.Equal(t, 6, page.Pagination.Total)
	for _, e := range page.Data {
		assert.Equal(t, "package_update", e.EventType)
		assert.Equal(t, StatusSent, e.Status)
	}
	assert.Contains(t, w.Body.String(), `"hasMore":false`)
}

func TestHandler_GetHistoryDefaults(t *testing.T) {
	router := newHistoryRouter(t)

	w := get(router, "")
	require.Equal(t, http.StatusOK, w.Code)

	var page Page
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Len(t, page.Data, 25)
	assert.Equal(t, 100, page.Pagination.Limit)
}

func TestHandler_GetHistoryRejectsBadParams(t *testing.T) {
	router := newHistoryRouter(t)

	tests := []struct {
		name   string
		query  string
		fields []string
	}{
		{"limit too large", "limit=1001", []string{"limit"}},
		{"limit zero", "limit=0", []string{"limit"}},
		{"limit not a number", "limit=ten", []string{"limit"}},
		{"negative offset", "offset=-1", []string{"offset"}},
		{"unknown status", "status=pending", []string{"status"}},
		{"unknown event type", "event_type=reboot", []string{"event_type"}},
		{"bad date", "start_date=yesterday", []string{"start_date"}},
		{"inverted range", "start_date=2026-03-02&end_date=2026-03-01", []string{"end_date"}},
		{"several at once", "limit=0&offset=-1&status=x", []string{"status", "limit", "offset"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(router, tt.query)
			require.Equal(t, http.StatusBadRequest, w.Code)

			var body struct {
				ErrorCode string `json:"error_code"`
				Details   struct {
					Errors []struct {
						Field string `json:"field"`
					} `json:"errors"`
				} `json:"details"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "VALIDATION_ERROR", body.ErrorCode)

			fields := make([]string, len(body.Details.Errors))
			for i, fe := range body.Details.Errors {
				fields[i] = fe.Field
			}
			assert.Equal(t, tt.fields, fields)
		})
	}
}

func TestParseFilter_Dates(t *testing.T) {
	q := url.Values{}
	q.Set("start_date", "2026-03-01")
	q.Set("end_date", "2026-03-01")

	f, errs := ParseFilter(q)
	require.Empty(t, errs)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), *f.StartDate)
	assert.Equal(t, time.Date(2026, 3, 1, 23, 59, 59, 999999999, time.UTC), *f.EndDate)

	q.Set("end_date", "2026-03-01T10:00:00+02:00")
	f, errs = ParseFilter(q)
	require.Empty(t, errs)
	assert.Equal(t, time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), *f.EndDate)

	q.Set("start_date", "2026-03-01T06:30:00")
	q.Set("end_date", "2026-03-01T10:00:00.5")
	f, errs = ParseFilter(q)
	require.Empty(t, errs)
	assert.Equal(t, time.Date(2026, 3, 1, 6, 30, 0, 0, time.UTC), *f.StartDate)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 500000000, time.UTC), *f.EndDate)

	q.Set("end_date", "2026-03-01T25:00:00")
	_, errs = ParseFilter(q)
	require.Len(t, errs, 1)
	assert.Equal(t, "end_date", errs[0].Field)
}
