package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herald/internal/notification"
	pkgerrors "herald/pkg/errors"
)

type stubRules map[string]*notification.Rule

func (s stubRules) GetRule(ctx context.Context, id string) (*notification.Rule, error) {
	if r, ok := s[id]; ok {
		return r, nil
	}
	return nil, notification.ErrRuleNotFound
}

type brokenRules struct{}

func (brokenRules) GetRule(ctx context.Context, id string) (*notification.Rule, error) {
	return nil, errors.New("connection reset")
}

var testRules = stubRules{
	"r-pkg":   {ID: "r-pkg", EventType: notification.EventTypePackageUpdate},
	"r-sec":   {ID: "r-sec", EventType: notification.EventTypeSecurityUpdate},
	"r-agent": {ID: "r-agent", EventType: notification.EventTypeAgentUpdate},
}

func newTestService(repo Repository) Service {
	n := 0
	t := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return NewService(repo, testRules,
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("h-%03d", n)
		}),
		WithClock(func() time.Time {
			t = t.Add(time.Minute)
			return t
		}),
	)
}

// seed logs 25 deliveries cycling through three rules and alternating status.
func seed(t *testing.T, svc Service) {
	t.Helper()
	rules := []string{"r-pkg", "r-sec", "r-agent"}
	for i := 0; i < 25; i++ {
		rec := DeliveryRecord{
			ChannelID: fmt.Sprintf("c%d", i%2+1),
			RuleID:    rules[i%3],
			Status:    StatusSent,
			Title:     "title",
			Content:   "body",
		}
		if i%4 == 0 {
			rec.Status = StatusFailed
			rec.Error = "Connection refused"
		}
		_, err := svc.LogDelivery(context.Background(), rec)
		require.NoError(t, err)
	}
}

func TestLogDelivery_Sent(t *testing.T) {
	svc := newTestService(NewMemoryRepository())

	entry, err := svc.LogDelivery(context.Background(), DeliveryRecord{
		ChannelID: "c1", RuleID: "r-sec", Status: StatusSent, Title: "Security Update", Content: "openssl",
	})
	require.NoError(t, err)

	assert.Equal(t, "h-001", entry.ID)
	assert.Equal(t, notification.EventTypeSecurityUpdate, entry.EventType)
	assert.Nil(t, entry.ErrorMessage)
	assert.Equal(t, time.UTC, entry.SentAt.Location())
}

func TestLogDelivery_FailedAlwaysCarriesError(t *testing.T) {
	svc := newTestService(NewMemoryRepository())
	ctx := context.Background()

	entry, err := svc.LogDelivery(ctx, DeliveryRecord{ChannelID: "c1", RuleID: "r-pkg", Status: StatusFailed, Error: "Authentication failed: invalid token"})
	require.NoError(t, err)
	require.NotNil(t, entry.ErrorMessage)
	assert.Equal(t, "Authentication failed: invalid token", *entry.ErrorMessage)

	entry, err = svc.LogDelivery(ctx, DeliveryRecord{ChannelID: "c1", RuleID: "r-pkg", Status: StatusFailed, Error: "  "})
	require.NoError(t, err)
	require.NotNil(t, entry.ErrorMessage)
	assert.Equal(t, "unknown error", *entry.ErrorMessage)

	entry, err = svc.LogDelivery(ctx, DeliveryRecord{ChannelID: "c1", RuleID: "r-pkg", Status: StatusSent, Error: "ignored"})
	require.NoError(t, err)
	assert.Nil(t, entry.ErrorMessage)
}

func TestLogDelivery_SentAtRoundTrips(t *testing.T) {
	repo := NewMemoryRepository()
	sentAt := time.Date(2026, 3, 1, 10, 0, 0, 123456789, time.FixedZone("CET", 3600))
	svc := NewService(repo, testRules, WithClock(func() time.Time { return sentAt }))
	ctx := context.Background()

	entry, err := svc.LogDelivery(ctx, DeliveryRecord{
		ChannelID: "c1", RuleID: "r-sec", Status: StatusFailed, Title: "t", Content: "b", Error: "Connection refused",
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 9, 0, 0, 123000000, time.UTC), entry.SentAt)

	encoded, err := json.Marshal(entry)
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"error_message":"Connection refused"`)

	var decoded Entry
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, *entry, decoded)

	page, err := svc.Query(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, *entry, page.Data[0])
}

func TestLogDelivery_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := newTestService(NewMemoryRepository()).LogDelivery(ctx, DeliveryRecord{RuleID: "r-pkg", Status: "pending"})
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = newTestService(NewMemoryRepository()).LogDelivery(ctx, DeliveryRecord{RuleID: "ghost", Status: StatusSent})
	assert.True(t, pkgerrors.IsNotFound(err))

	svc := NewService(NewMemoryRepository(), brokenRules{})
	_, err = svc.LogDelivery(ctx, DeliveryRecord{RuleID: "r-pkg", Status: StatusSent})
	assert.True(t, pkgerrors.IsStorage(err))
}

func TestQuery_FiltersAndPaginates(t *testing.T) {
	repo := NewMemoryRepository()
	svc := newTestService(repo)
	seed(t, svc)

	filter := Filter{EventType: notification.EventTypePackageUpdate, Status: StatusSent, Limit: 10, Offset: 0}
	page, err := svc.Query(context.Background(), filter)
	require.NoError(t, err)

	assert.LessOrEqual(t, len(page.Data), 10)
	for _, e := range page.Data {
		assert.Equal(t, notification.EventTypePackageUpdate, e.EventType)
		assert.Equal(t, StatusSent, e.Status)
	}

	// i in {0,3,...,24} are package updates; those divisible by 4 failed.
	assert.Equal(t, 6, page.Pagination.Total)
	assert.Len(t, page.Data, 6)
	assert.False(t, page.Pagination.HasMore)
	assert.Equal(t, 10, page.Pagination.Limit)

	count, err := svc.Count(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, page.Pagination.Total, count)
}

func TestQuery_OrdersNewestFirst(t *testing.T) {
	svc := newTestService(NewMemoryRepository())
	seed(t, svc)

	page, err := svc.Query(context.Background(), Filter{Limit: 5, Offset: 5})
	require.NoError(t, err)

	require.Len(t, page.Data, 5)
	assert.Equal(t, "h-020", page.Data[0].ID)
	for i := 1; i < len(page.Data); i++ {
		assert.True(t, page.Data[i-1].SentAt.After(page.Data[i].SentAt))
	}
	assert.Equal(t, 25, page.Pagination.Total)
	assert.True(t, page.Pagination.HasMore)
}

func TestQuery_DateRangeIsInclusive(t *testing.T) {
	svc := newTestService(NewMemoryRepository())
	seed(t, svc)

	start := time.Date(2026, 3, 1, 0, 2, 0, 0, time.UTC)
	end := time.Date(2026, 3, 1, 0, 4, 0, 0, time.UTC)
	page, err := svc.Query(context.Background(), Filter{StartDate: &start, EndDate: &end})
	require.NoError(t, err)

	ids := make([]string, len(page.Data))
	for i, e := range page.Data {
		ids[i] = e.ID
	}
	assert.Equal(t, []string{"h-004", "h-003", "h-002"}, ids)
}

func TestQuery_DefaultsLimit(t *testing.T) {
	svc := newTestService(NewMemoryRepository())

	page, err := svc.Query(context.Background(), Filter{Limit: 5000, Offset: -3})
	require.NoError(t, err)
	assert.NotNil(t, page.Data)
	assert.Empty(t, page.Data)
	assert.Equal(t, 1000, page.Pagination.Limit)
	assert.Zero(t, page.Pagination.Offset)
}

func TestMemoryRepository_EntriesAreImmutable(t *testing.T) {
	repo := NewMemoryRepository()
	svc := newTestService(repo)

	entry, err := svc.LogDelivery(context.Background(), DeliveryRecord{ChannelID: "c1", RuleID: "r-pkg", Status: StatusFailed, Error: "boom"})
	require.NoError(t, err)

	*entry.ErrorMessage = "tampered"
	entry.Status = StatusSent

	page, err := svc.Query(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	page.Data[0].MessageTitle = "tampered"
	assert.Equal(t, StatusFailed, page.Data[0].Status)
	assert.Equal(t, "boom", *page.Data[0].ErrorMessage)

	again, err := repo.Query(context.Background(), Normalize(Filter{}))
	require.NoError(t, err)
	assert.Empty(t, again[0].MessageTitle)

	assert.Error(t, repo.Insert(context.Background(), &Entry{ID: entry.ID}))
}
