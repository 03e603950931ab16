package notification

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type storedRule struct {
	rule Rule
	seq  uint64
}

// MemoryStore keeps rules and channels in memory. It implements Repository
// and ChannelRepository for unit tests.
type MemoryStore struct {
	mu       sync.RWMutex
	seq      uint64
	rules    map[string]*storedRule
	channels map[string]*Channel
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rules:    make(map[string]*storedRule),
		channels: make(map[string]*Channel),
	}
}

func (s *MemoryStore) CreateRule(ctx context.Context, rule *Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[rule.ID]; exists {
		return fmt.Errorf("rule %s already exists", rule.ID)
	}
	for _, id := range rule.ChannelIDs {
		if _, ok := s.channels[id]; !ok {
			return fmt.Errorf("%w: %s", ErrChannelNotFound, id)
		}
	}

	s.seq++
	s.rules[rule.ID] = &storedRule{rule: cloneRule(*rule), seq: s.seq}
	return nil
}

func (s *MemoryStore) GetRule(ctx context.Context, id string) (*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.rules[id]
	if !ok {
		return nil, ErrRuleNotFound
	}
	rule := s.hydrate(stored.rule)
	return &rule, nil
}

func (s *MemoryStore) ListRules(ctx context.Context) ([]Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.sortedRules(func(a, b *storedRule) bool {
		if !a.rule.CreatedAt.Equal(b.rule.CreatedAt) {
			return a.rule.CreatedAt.After(b.rule.CreatedAt)
		}
		return a.seq > b.seq
	})

	rules := make([]Rule, 0, len(stored))
	for _, sr := range stored {
		rules = append(rules, s.hydrate(sr.rule))
	}
	return rules, nil
}

func (s *MemoryStore) UpdateRule(ctx context.Context, rule *Rule, replaceChannels, replaceFilters bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.rules[rule.ID]
	if !ok {
		return ErrRuleNotFound
	}

	if replaceChannels {
		for _, id := range rule.ChannelIDs {
			if _, ok := s.channels[id]; !ok {
				return fmt.Errorf("%w: %s", ErrChannelNotFound, id)
			}
		}
	}

	updated := cloneRule(*rule)
	updated.CreatedAt = stored.rule.CreatedAt
	if !replaceChannels {
		updated.ChannelIDs = append([]string(nil), stored.rule.ChannelIDs...)
	}
	if !replaceFilters {
		updated.Filters = copyFilters(stored.rule.Filters)
	}
	stored.rule = updated
	return nil
}

func (s *MemoryStore) DeleteRule(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[id]; !ok {
		return ErrRuleNotFound
	}
	delete(s.rules, id)
	return nil
}

func (s *MemoryStore) GetMatchingRules(ctx context.Context, eventType string) ([]Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.sortedRules(func(a, b *storedRule) bool {
		if a.rule.Priority != b.rule.Priority {
			return a.rule.Priority > b.rule.Priority
		}
		if !a.rule.CreatedAt.Equal(b.rule.CreatedAt) {
			return a.rule.CreatedAt.Before(b.rule.CreatedAt)
		}
		return a.seq < b.seq
	})

	var rules []Rule
	for _, sr := range stored {
		if sr.rule.Enabled && sr.rule.EventType == eventType {
			rules = append(rules, s.hydrate(sr.rule))
		}
	}
	return rules, nil
}

func (s *MemoryStore) CreateChannel(ctx context.Context, channel *Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.channels[channel.ID]; exists {
		return fmt.Errorf("channel %s already exists", channel.ID)
	}
	if channel.Status == "" {
		channel.Status = ChannelStatusDisconnected
	}
	c := *channel
	s.channels[channel.ID] = &c
	return nil
}

func (s *MemoryStore) GetChannel(ctx context.Context, id string) (*Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.channels[id]
	if !ok {
		return nil, ErrChannelNotFound
	}
	out := *c
	return &out, nil
}

func (s *MemoryStore) ListChannels(ctx context.Context) ([]Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	channels := make([]Channel, 0, len(s.channels))
	for _, c := range s.channels {
		channels = append(channels, *c)
	}
	sort.Slice(channels, func(i, j int) bool {
		if channels[i].Priority != channels[j].Priority {
			return channels[i].Priority > channels[j].Priority
		}
		return channels[i].Name < channels[j].Name
	})
	return channels, nil
}

func (s *MemoryStore) MissingChannelIDs(ctx context.Context, ids []string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var missing []string
	for _, id := range ids {
		if _, ok := s.channels[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (s *MemoryStore) UpdateChannelStatus(ctx context.Context, id string, status ChannelStatus, lastError string, checkedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.channels[id]
	if !ok {
		return ErrChannelNotFound
	}
	c.Status = status
	c.LastError = lastError
	checked := checkedAt
	c.LastCheckedAt = &checked
	c.UpdatedAt = checkedAt
	return nil
}

func (s *MemoryStore) sortedRules(less func(a, b *storedRule) bool) []*storedRule {
	out := make([]*storedRule, 0, len(s.rules))
	for _, sr := range s.rules {
		out = append(out, sr)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// hydrate resolves channel ids against the channel table. Channels deleted
// after the rule was written are skipped, matching the cascade in SQL.
func (s *MemoryStore) hydrate(rule Rule) Rule {
	out := cloneRule(rule)
	out.Channels = make([]Channel, 0, len(out.ChannelIDs))
	ids := make([]string, 0, len(out.ChannelIDs))
	for _, id := range out.ChannelIDs {
		if c, ok := s.channels[id]; ok {
			out.Channels = append(out.Channels, *c)
			ids = append(ids, id)
		}
	}
	out.ChannelIDs = ids
	return out
}

func cloneRule(r Rule) Rule {
	r.ChannelIDs = append([]string(nil), r.ChannelIDs...)
	r.Filters = copyFilters(r.Filters)
	r.Channels = nil
	return r
}
