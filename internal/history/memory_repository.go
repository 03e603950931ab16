package history

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryRepository keeps entries in memory. Stored entries are copied in and
// out so callers can never alter the ledger.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries []Entry
	ids     map[string]bool
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{ids: make(map[string]bool)}
}

func (r *MemoryRepository) Insert(ctx context.Context, entry *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ids[entry.ID] {
		return fmt.Errorf("history entry %s already exists", entry.ID)
	}
	r.ids[entry.ID] = true
	r.entries = append(r.entries, cloneEntry(*entry))
	return nil
}

func (r *MemoryRepository) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	matched := r.matching(filter)

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].SentAt.Equal(matched[j].SentAt) {
			return matched[i].SentAt.After(matched[j].SentAt)
		}
		return matched[i].ID > matched[j].ID
	})

	if filter.Offset >= len(matched) {
		return []Entry{}, nil
	}
	end := len(matched)
	if filter.Limit > 0 && filter.Offset+filter.Limit < end {
		end = filter.Offset + filter.Limit
	}
	return matched[filter.Offset:end], nil
}

func (r *MemoryRepository) Count(ctx context.Context, filter Filter) (int, error) {
	return len(r.matching(filter)), nil
}

func (r *MemoryRepository) matching(filter Filter) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []Entry{}
	for _, e := range r.entries {
		if Matches(filter, e) {
			out = append(out, cloneEntry(e))
		}
	}
	return out
}

func cloneEntry(e Entry) Entry {
	if e.ErrorMessage != nil {
		msg := *e.ErrorMessage
		e.ErrorMessage = &msg
	}
	return e
}
