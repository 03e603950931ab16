package notification

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herald/internal/broker"
	pkgerrors "herald/pkg/errors"
	"herald/pkg/models"
)

type fixture struct {
	store    *MemoryStore
	producer *broker.MemoryProducer
	svc      Service
}

func sequentialIDs(prefix string) models.IDGenerator {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func steppingClock() func() time.Time {
	t := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := NewMemoryStore()
	for _, id := range []string{"c1", "c2", "c3"} {
		require.NoError(t, store.CreateChannel(context.Background(), &Channel{
			ID:        id,
			Name:      "channel " + id,
			ServerURL: "https://push.example.com",
			Token:     "token-" + id,
			Priority:  5,
		}))
	}

	conditions, err := NewConditionEvaluator()
	require.NoError(t, err)

	producer := broker.NewMemoryProducer()
	svc := NewService(store, store,
		WithIDGenerator(sequentialIDs("rule")),
		WithClock(steppingClock()),
		WithConditions(conditions),
		WithRuleEvents(NewRuleEventPublisher(producer, "notification_rule_events")),
	)

	return &fixture{store: store, producer: producer, svc: svc}
}

func intPtr(v int) *int       { return &v }
func boolPtr(v bool) *bool    { return &v }
func strPtr(v string) *string { return &v }

func TestCreateRule_AppliesDefaultsAndHydrates(t *testing.T) {
	f := newFixture(t)

	rule, err := f.svc.CreateRule(context.Background(), CreateRuleRequest{
		Name:       "  Security alerts  ",
		EventType:  EventTypeSecurityUpdate,
		ChannelIDs: []string{"c2", "c1"},
		Filters:    []Filter{{FilterType: FilterTypeHostID, FilterValue: "h1"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "rule-1", rule.ID)
	assert.Equal(t, "Security alerts", rule.Name)
	assert.True(t, rule.Enabled)
	assert.Equal(t, 5, rule.Priority)
	assert.Equal(t, []string{"c2", "c1"}, rule.ChannelIDs)
	require.Len(t, rule.Channels, 2)
	assert.Equal(t, "c2", rule.Channels[0].ID)
	assert.Equal(t, []Filter{{FilterType: FilterTypeHostID, FilterValue: "h1"}}, rule.Filters)

	published := f.producer.Messages()
	require.Len(t, published, 1)
	assert.Equal(t, "notification_rule_events", published[0].Topic)
	assert.Equal(t, models.ActionCreate, published[0].Envelope.Payload["action"])
	assert.Equal(t, "rule-1", published[0].Envelope.Payload["rule_id"])
}

func TestCreateRule_ExplicitPriorityAndEnabled(t *testing.T) {
	f := newFixture(t)

	rule, err := f.svc.CreateRule(context.Background(), CreateRuleRequest{
		Name:       "quiet",
		EventType:  EventTypeAgentUpdate,
		ChannelIDs: []string{"c1"},
		Priority:   intPtr(0),
		Enabled:    boolPtr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, rule.Priority)
	assert.False(t, rule.Enabled)
}

func TestCreateRule_Validation(t *testing.T) {
	valid := CreateRuleRequest{Name: "r", EventType: EventTypePackageUpdate, ChannelIDs: []string{"c1"}}

	tests := []struct {
		name   string
		mutate func(r *CreateRuleRequest)
		want   string
	}{
		{"blank name", func(r *CreateRuleRequest) { r.Name = "   " }, "name is required"},
		{"unknown event type", func(r *CreateRuleRequest) { r.EventType = "disk_full" }, "invalid event_type"},
		{"no channels", func(r *CreateRuleRequest) { r.ChannelIDs = nil }, "at least one channel"},
		{"duplicate channels", func(r *CreateRuleRequest) { r.ChannelIDs = []string{"c1", "c1"} }, "duplicate channel"},
		{"priority too high", func(r *CreateRuleRequest) { r.Priority = intPtr(11) }, "priority must be between 0 and 10"},
		{"priority negative", func(r *CreateRuleRequest) { r.Priority = intPtr(-1) }, "priority must be between"},
		{"bad filter type", func(r *CreateRuleRequest) {
			r.Filters = []Filter{{FilterType: "hostname", FilterValue: "x"}}
		}, "invalid filter_type"},
		{"empty filter value", func(r *CreateRuleRequest) {
			r.Filters = []Filter{{FilterType: FilterTypeHostID, FilterValue: ""}}
		}, "filter_value is required"},
		{"bad condition", func(r *CreateRuleRequest) { r.Condition = "event.package_name ==" }, "invalid condition"},
		{"non boolean condition", func(r *CreateRuleRequest) { r.Condition = "event_type" }, "invalid condition"},
		{"unknown channel", func(r *CreateRuleRequest) { r.ChannelIDs = []string{"c1", "nope"} }, "channel not found: nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := valid
			tt.mutate(&req)

			_, err := f.svc.CreateRule(context.Background(), req)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsValidation(err), "expected validation error, got %v", err)
			assert.Contains(t, pkgerrors.ToErrorResponse(err)["error"], tt.want)

			rules, err := f.svc.ListRules(context.Background())
			require.NoError(t, err)
			assert.Empty(t, rules)
			assert.Empty(t, f.producer.Messages())
		})
	}
}

func TestUpdateRule_PartialAndReplace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.CreateRule(ctx, CreateRuleRequest{
		Name:            "updates",
		EventType:       EventTypePackageUpdate,
		ChannelIDs:      []string{"c1", "c2"},
		MessageTemplate: "{{package_name}}",
		Filters: []Filter{
			{FilterType: FilterTypeHostID, FilterValue: "h1"},
			{FilterType: FilterTypeHostGroupID, FilterValue: "g1"},
		},
	})
	require.NoError(t, err)

	renamed, err := f.svc.UpdateRule(ctx, created.ID, UpdateRuleRequest{Name: strPtr("renamed")})
	require.NoError(t, err)
	assert.Equal(t, "renamed", renamed.Name)
	assert.Equal(t, []string{"c1", "c2"}, renamed.ChannelIDs)
	assert.Len(t, renamed.Filters, 2)
	assert.Equal(t, "{{package_name}}", renamed.MessageTemplate)
	assert.Equal(t, created.CreatedAt, renamed.CreatedAt)
	assert.True(t, renamed.UpdatedAt.After(created.UpdatedAt))

	replaced, err := f.svc.UpdateRule(ctx, created.ID, UpdateRuleRequest{
		ChannelIDs: []string{"c3"},
		Filters:    []Filter{},
		Priority:   intPtr(9),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c3"}, replaced.ChannelIDs)
	require.Len(t, replaced.Channels, 1)
	assert.Equal(t, "c3", replaced.Channels[0].ID)
	assert.Empty(t, replaced.Filters)
	assert.Equal(t, 9, replaced.Priority)
	assert.Equal(t, "renamed", replaced.Name)
}

func TestUpdateRule_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpdateRule(ctx, "missing", UpdateRuleRequest{Name: strPtr("x")})
	assert.True(t, pkgerrors.IsNotFound(err))

	created, err := f.svc.CreateRule(ctx, CreateRuleRequest{Name: "r", EventType: EventTypeAgentUpdate, ChannelIDs: []string{"c1"}})
	require.NoError(t, err)

	_, err = f.svc.UpdateRule(ctx, created.ID, UpdateRuleRequest{ChannelIDs: []string{}})
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = f.svc.UpdateRule(ctx, created.ID, UpdateRuleRequest{ChannelIDs: []string{"c1", "ghost"}})
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = f.svc.UpdateRule(ctx, created.ID, UpdateRuleRequest{EventType: strPtr("bogus")})
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = f.svc.UpdateRule(ctx, created.ID, UpdateRuleRequest{Name: strPtr(" ")})
	assert.True(t, pkgerrors.IsValidation(err))

	unchanged, err := f.svc.GetRule(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, unchanged.ChannelIDs)
	assert.Equal(t, EventTypeAgentUpdate, unchanged.EventType)
}

func TestDeleteRule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.CreateRule(ctx, CreateRuleRequest{Name: "r", EventType: EventTypeAgentUpdate, ChannelIDs: []string{"c1"}})
	require.NoError(t, err)

	deleted, err := f.svc.DeleteRule(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, deleted.ID)
	assert.Equal(t, []string{"c1"}, deleted.ChannelIDs)

	_, err = f.svc.GetRule(ctx, created.ID)
	assert.True(t, pkgerrors.IsNotFound(err))

	_, err = f.svc.DeleteRule(ctx, created.ID)
	assert.True(t, pkgerrors.IsNotFound(err))

	published := f.producer.Messages()
	require.Len(t, published, 2)
	assert.Equal(t, models.ActionDelete, published[1].Envelope.Payload["action"])
}

func TestToggleRule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.CreateRule(ctx, CreateRuleRequest{Name: "r", EventType: EventTypeAgentUpdate, ChannelIDs: []string{"c1"}})
	require.NoError(t, err)

	toggled, err := f.svc.ToggleRule(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, toggled.Enabled)

	toggled, err = f.svc.ToggleRule(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, toggled.Enabled)

	_, err = f.svc.ToggleRule(ctx, "missing")
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestListRules_NewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, name := range []string{"first", "second", "third"} {
		_, err := f.svc.CreateRule(ctx, CreateRuleRequest{Name: name, EventType: EventTypeAgentUpdate, ChannelIDs: []string{"c1"}})
		require.NoError(t, err)
	}

	rules, err := f.svc.ListRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 3)
	assert.Equal(t, "third", rules[0].Name)
	assert.Equal(t, "second", rules[1].Name)
	assert.Equal(t, "first", rules[2].Name)
}

func TestGetMatchingEventType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	create := func(name, eventType string, priority int, enabled bool) {
		_, err := f.svc.CreateRule(ctx, CreateRuleRequest{
			Name:       name,
			EventType:  eventType,
			ChannelIDs: []string{"c1"},
			Priority:   intPtr(priority),
			Enabled:    boolPtr(enabled),
		})
		require.NoError(t, err)
	}

	create("low", EventTypeSecurityUpdate, 2, true)
	create("high", EventTypeSecurityUpdate, 9, true)
	create("disabled", EventTypeSecurityUpdate, 10, false)
	create("other type", EventTypePackageUpdate, 10, true)
	create("high later", EventTypeSecurityUpdate, 9, true)

	rules, err := f.svc.GetMatchingEventType(ctx, EventTypeSecurityUpdate)
	require.NoError(t, err)

	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = r.Name
		assert.NotEmpty(t, r.Channels)
	}
	assert.Equal(t, []string{"high", "high later", "low"}, names)

	none, err := f.svc.GetMatchingEventType(ctx, "unknown_event")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRuleEventPublishFailureDoesNotFailWrite(t *testing.T) {
	f := newFixture(t)
	f.producer.FailWith(errors.New("broker down"))

	rule, err := f.svc.CreateRule(context.Background(), CreateRuleRequest{Name: "r", EventType: EventTypeAgentUpdate, ChannelIDs: []string{"c1"}})
	require.NoError(t, err)
	assert.NotEmpty(t, rule.ID)
}

type failingRepo struct {
	*MemoryStore
}

func (failingRepo) ListRules(ctx context.Context) ([]Rule, error) {
	return nil, errors.New("connection reset")
}

func (failingRepo) GetMatchingRules(ctx context.Context, eventType string) ([]Rule, error) {
	return nil, errors.New("connection reset")
}

func TestStorageFailuresSurface(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(failingRepo{store}, store)

	_, err := svc.ListRules(context.Background())
	assert.True(t, pkgerrors.IsStorage(err))

	_, err = svc.GetMatchingEventType(context.Background(), EventTypeAgentUpdate)
	assert.True(t, pkgerrors.IsStorage(err))
}

func TestCreateRule_ConditionWithoutEvaluator(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.CreateChannel(context.Background(), &Channel{ID: "c1"}))
	svc := NewService(store, store)

	_, err := svc.CreateRule(context.Background(), CreateRuleRequest{
		Name: "r", EventType: EventTypeAgentUpdate, ChannelIDs: []string{"c1"}, Condition: "true",
	})
	assert.True(t, pkgerrors.IsValidation(err))
}
