package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herald/internal/gateway"
	"herald/internal/history"
	"herald/internal/notification"
	pkgerrors "herald/pkg/errors"
)

// pushServer is a fake push server recording every accepted message.
type pushServer struct {
	*httptest.Server
	mu       sync.Mutex
	received []map[string]interface{}
}

func newPushServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request) bool) *pushServer {
	t.Helper()
	ps := &pushServer{}
	ps.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler != nil && !handler(w, r) {
			return
		}
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		ps.mu.Lock()
		ps.received = append(ps.received, body)
		ps.mu.Unlock()
		_, _ = w.Write([]byte(`{"id":1}`))
	}))
	t.Cleanup(ps.Close)
	return ps
}

func (ps *pushServer) count() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return len(ps.received)
}

func hang(w http.ResponseWriter, r *http.Request) bool {
	select {
	case <-time.After(2 * time.Second):
	case <-r.Context().Done():
	}
	return false
}

func reject(status int) func(w http.ResponseWriter, r *http.Request) bool {
	return func(w http.ResponseWriter, r *http.Request) bool {
		w.WriteHeader(status)
		return false
	}
}

type fixture struct {
	store   *notification.MemoryStore
	rules   notification.Service
	history history.Service
	svc     Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := notification.NewMemoryStore()
	conditions, err := notification.NewConditionEvaluator()
	require.NoError(t, err)

	rules := notification.NewService(store, store, notification.WithConditions(conditions))
	ledger := history.NewService(history.NewMemoryRepository(), store)
	svc := NewService(rules, store, ledger, gateway.NewHTTPClientWithTimeout(100*time.Millisecond),
		WithConditions(conditions),
	)

	return &fixture{store: store, rules: rules, history: ledger, svc: svc}
}

func (f *fixture) channel(t *testing.T, id, serverURL string) {
	t.Helper()
	require.NoError(t, f.store.CreateChannel(context.Background(), &notification.Channel{
		ID: id, Name: id, ServerURL: serverURL, Token: "token-" + id, Priority: 5,
	}))
}

func (f *fixture) rule(t *testing.T, req notification.CreateRuleRequest) *notification.Rule {
	t.Helper()
	if req.Name == "" {
		req.Name = "rule"
	}
	rule, err := f.rules.CreateRule(context.Background(), req)
	require.NoError(t, err)
	return rule
}

func (f *fixture) entries(t *testing.T) []history.Entry {
	t.Helper()
	page, err := f.history.Query(context.Background(), history.Filter{})
	require.NoError(t, err)
	return page.Data
}

var securityEvent = map[string]interface{}{
	"package_name":      "openssl",
	"package_version":   "1.0",
	"available_version": "1.1",
	"host_id":           "h1",
}

func TestSendNotification_SingleChannel(t *testing.T) {
	f := newFixture(t)
	ps := newPushServer(t, nil)
	f.channel(t, "c1", ps.URL)
	rule := f.rule(t, notification.CreateRuleRequest{
		EventType:  notification.EventTypeSecurityUpdate,
		ChannelIDs: []string{"c1"},
	})

	result, err := f.svc.SendNotification(context.Background(), notification.EventTypeSecurityUpdate, securityEvent)
	require.NoError(t, err)
	assert.Equal(t, Result{Sent: 1, Failed: 0}, result)

	entries := f.entries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, history.StatusSent, entries[0].Status)
	assert.Equal(t, rule.ID, entries[0].RuleID)
	assert.Equal(t, "c1", entries[0].ChannelID)
	assert.Equal(t, notification.EventTypeSecurityUpdate, entries[0].EventType)
	assert.Equal(t, "Security Update Available", entries[0].MessageTitle)
	assert.Equal(t, "Security update for openssl: 1.0 -> 1.1", entries[0].MessageContent)
	assert.Nil(t, entries[0].ErrorMessage)

	require.Equal(t, 1, ps.count())
	assert.Equal(t, float64(5), ps.received[0]["priority"])

	channel, err := f.store.GetChannel(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, notification.ChannelStatusConnected, channel.Status)
	assert.NotNil(t, channel.LastCheckedAt)
}

func TestSendNotification_FilterMismatchSkipsRule(t *testing.T) {
	f := newFixture(t)
	ps := newPushServer(t, nil)
	f.channel(t, "c1", ps.URL)
	f.rule(t, notification.CreateRuleRequest{
		EventType:  notification.EventTypeSecurityUpdate,
		ChannelIDs: []string{"c1"},
		Filters:    []notification.Filter{{FilterType: notification.FilterTypeHostID, FilterValue: "h1"}},
	})

	data := map[string]interface{}{"host_id": "h2", "package_name": "openssl"}
	result, err := f.svc.SendNotification(context.Background(), notification.EventTypeSecurityUpdate, data)
	require.NoError(t, err)

	assert.Equal(t, Result{}, result)
	assert.Empty(t, f.entries(t))
	assert.Zero(t, ps.count())
}

func TestSendNotification_PartialFailure(t *testing.T) {
	f := newFixture(t)
	slow := newPushServer(t, hang)
	ok := newPushServer(t, nil)
	f.channel(t, "slow", slow.URL)
	f.channel(t, "ok", ok.URL)
	f.rule(t, notification.CreateRuleRequest{
		EventType:  notification.EventTypeSecurityUpdate,
		ChannelIDs: []string{"slow", "ok"},
	})

	result, err := f.svc.SendNotification(context.Background(), notification.EventTypeSecurityUpdate, securityEvent)
	require.NoError(t, err)
	assert.Equal(t, Result{Sent: 1, Failed: 1}, result)

	entries := f.entries(t)
	require.Len(t, entries, 2)
	byChannel := map[string]history.Entry{}
	for _, e := range entries {
		byChannel[e.ChannelID] = e
	}

	failed := byChannel["slow"]
	assert.Equal(t, history.StatusFailed, failed.Status)
	require.NotNil(t, failed.ErrorMessage)
	assert.Contains(t, *failed.ErrorMessage, "timeout")
	assert.NotContains(t, *failed.ErrorMessage, "token-slow")

	sent := byChannel["ok"]
	assert.Equal(t, history.StatusSent, sent.Status)
	assert.Nil(t, sent.ErrorMessage)

	slowChannel, err := f.store.GetChannel(context.Background(), "slow")
	require.NoError(t, err)
	assert.Equal(t, notification.ChannelStatusDisconnected, slowChannel.Status)
	assert.Contains(t, slowChannel.LastError, "timeout")
}

func TestSendNotification_RoutesExactly(t *testing.T) {
	f := newFixture(t)
	servers := map[string]*pushServer{}
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		servers[id] = newPushServer(t, nil)
		f.channel(t, id, servers[id].URL)
	}

	f.rule(t, notification.CreateRuleRequest{EventType: notification.EventTypePackageUpdate, ChannelIDs: []string{"a"}})
	f.rule(t, notification.CreateRuleRequest{
		EventType:  notification.EventTypePackageUpdate,
		ChannelIDs: []string{"b", "a"},
		Filters: []notification.Filter{
			{FilterType: notification.FilterTypeHostID, FilterValue: "h1"},
			{FilterType: notification.FilterTypeHostGroupID, FilterValue: "g1"},
		},
	})
	f.rule(t, notification.CreateRuleRequest{
		EventType:  notification.EventTypePackageUpdate,
		ChannelIDs: []string{"c"},
		Filters:    []notification.Filter{{FilterType: notification.FilterTypeHostGroupID, FilterValue: "g2"}},
	})
	f.rule(t, notification.CreateRuleRequest{EventType: notification.EventTypePackageUpdate, ChannelIDs: []string{"d"}, Enabled: boolPtr(false)})
	f.rule(t, notification.CreateRuleRequest{EventType: notification.EventTypeAgentUpdate, ChannelIDs: []string{"e"}})
	f.rule(t, notification.CreateRuleRequest{
		EventType:  notification.EventTypePackageUpdate,
		ChannelIDs: []string{"e"},
		Condition:  `event.package_name == "curl"`,
	})

	data := map[string]interface{}{"host_id": "h1", "host_group_id": "g1", "package_name": "openssl"}
	result, err := f.svc.SendNotification(context.Background(), notification.EventTypePackageUpdate, data)
	require.NoError(t, err)
	assert.Equal(t, Result{Sent: 3}, result)

	assert.Equal(t, 2, servers["a"].count())
	assert.Equal(t, 1, servers["b"].count())
	assert.Zero(t, servers["c"].count())
	assert.Zero(t, servers["d"].count())
	assert.Zero(t, servers["e"].count())

	var channels []string
	for _, e := range f.entries(t) {
		channels = append(channels, e.ChannelID)
	}
	sort.Strings(channels)
	assert.Equal(t, []string{"a", "a", "b"}, channels)
}

func TestSendNotification_UsesRuleTemplateAndPriority(t *testing.T) {
	f := newFixture(t)
	ps := newPushServer(t, nil)
	f.channel(t, "c1", ps.URL)
	f.rule(t, notification.CreateRuleRequest{
		EventType:       notification.EventTypeHostStatusChange,
		ChannelIDs:      []string{"c1"},
		Priority:        intPtr(9),
		MessageTitle:    "Host alert",
		MessageTemplate: "{{hostname}} is {{status}}",
	})

	_, err := f.svc.SendNotification(context.Background(), notification.EventTypeHostStatusChange,
		map[string]interface{}{"hostname": "web-1", "status": "offline"})
	require.NoError(t, err)

	require.Equal(t, 1, ps.count())
	assert.Equal(t, "Host alert", ps.received[0]["title"])
	assert.Equal(t, "web-1 is offline", ps.received[0]["message"])
	assert.Equal(t, float64(9), ps.received[0]["priority"])
}

func TestSendNotification_RemoteRejection(t *testing.T) {
	f := newFixture(t)
	ps := newPushServer(t, reject(http.StatusUnauthorized))
	f.channel(t, "c1", ps.URL)
	f.rule(t, notification.CreateRuleRequest{EventType: notification.EventTypeAgentUpdate, ChannelIDs: []string{"c1"}})

	result, err := f.svc.SendNotification(context.Background(), notification.EventTypeAgentUpdate, nil)
	require.NoError(t, err)
	assert.Equal(t, Result{Failed: 1}, result)

	entries := f.entries(t)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].ErrorMessage)
	assert.Contains(t, *entries[0].ErrorMessage, "Authentication failed")
}

func TestSendNotification_NoRules(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.SendNotification(context.Background(), notification.EventTypeAgentUpdate, nil)
	require.NoError(t, err)
	assert.Equal(t, Result{}, result)
}

func TestSendNotification_UnknownEventType(t *testing.T) {
	f := newFixture(t)
	ps := newPushServer(t, nil)
	f.channel(t, "c1", ps.URL)
	f.rule(t, notification.CreateRuleRequest{EventType: notification.EventTypeAgentUpdate, ChannelIDs: []string{"c1"}})

	result, err := f.svc.SendNotification(context.Background(), "reboot", map[string]interface{}{"host_id": "h1"})
	require.NoError(t, err)
	assert.Equal(t, Result{}, result)
	assert.Zero(t, ps.count())
	assert.Empty(t, f.entries(t))
}

type failingRules struct{}

func (failingRules) GetMatchingEventType(ctx context.Context, eventType string) ([]notification.Rule, error) {
	return nil, pkgerrors.Wrap(errors.New("connection refused"), pkgerrors.ErrStorage)
}

func TestSendNotification_RuleStoreFailure(t *testing.T) {
	store := notification.NewMemoryStore()
	svc := NewService(failingRules{}, store, history.NewService(history.NewMemoryRepository(), store), gateway.NewHTTPClient())

	result, err := svc.SendNotification(context.Background(), notification.EventTypeAgentUpdate, nil)
	assert.True(t, pkgerrors.IsStorage(err))
	assert.Equal(t, Result{}, result)
}

type failingLedger struct{ calls int }

func (l *failingLedger) LogDelivery(ctx context.Context, record history.DeliveryRecord) (*history.Entry, error) {
	l.calls++
	return nil, pkgerrors.Wrap(errors.New("disk full"), pkgerrors.ErrStorage)
}

func TestSendNotification_LedgerFailureDoesNotStopDelivery(t *testing.T) {
	f := newFixture(t)
	a := newPushServer(t, nil)
	b := newPushServer(t, nil)
	f.channel(t, "a", a.URL)
	f.channel(t, "b", b.URL)
	f.rule(t, notification.CreateRuleRequest{EventType: notification.EventTypeAgentUpdate, ChannelIDs: []string{"a", "b"}})

	ledger := &failingLedger{}
	svc := NewService(f.rules, f.store, ledger, gateway.NewHTTPClient())

	result, err := svc.SendNotification(context.Background(), notification.EventTypeAgentUpdate, nil)
	require.NoError(t, err)
	assert.Equal(t, Result{Sent: 2}, result)
	assert.Equal(t, 2, ledger.calls)
	assert.Equal(t, 1, a.count())
	assert.Equal(t, 1, b.count())
}

func TestSendNotification_StopsWhenContextEnds(t *testing.T) {
	f := newFixture(t)
	ps := newPushServer(t, nil)
	f.channel(t, "c1", ps.URL)
	f.rule(t, notification.CreateRuleRequest{EventType: notification.EventTypeAgentUpdate, ChannelIDs: []string{"c1"}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.SendNotification(ctx, notification.EventTypeAgentUpdate, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, ps.count())
	assert.Empty(t, f.entries(t))
}

// liveLedger refuses writes on a finished context, like the SQL and Mongo ledgers.
type liveLedger struct{ Ledger }

func (l liveLedger) LogDelivery(ctx context.Context, record history.DeliveryRecord) (*history.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.Ledger.LogDelivery(ctx, record)
}

type liveChannels struct{ ChannelStatusWriter }

func (c liveChannels) UpdateChannelStatus(ctx context.Context, id string, status notification.ChannelStatus, lastError string, checkedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.ChannelStatusWriter.UpdateChannelStatus(ctx, id, status, lastError, checkedAt)
}

func TestSendNotification_RecordsAttemptInterruptedByCaller(t *testing.T) {
	f := newFixture(t)
	ps := newPushServer(t, hang)
	f.channel(t, "c1", ps.URL)
	f.rule(t, notification.CreateRuleRequest{EventType: notification.EventTypeAgentUpdate, ChannelIDs: []string{"c1"}})

	svc := NewService(f.rules, liveChannels{f.store}, liveLedger{f.history}, gateway.NewHTTPClientWithTimeout(time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result, err := svc.SendNotification(ctx, notification.EventTypeAgentUpdate, nil)
	require.NoError(t, err)
	assert.Equal(t, Result{Failed: 1}, result)

	entries := f.entries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, history.StatusFailed, entries[0].Status)
	require.NotNil(t, entries[0].ErrorMessage)

	channel, err := f.store.GetChannel(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, notification.ChannelStatusDisconnected, channel.Status)
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }
