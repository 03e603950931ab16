package history

import (
	"context"

	"herald/internal/notification"
)

// Repository is append-only: there is no update or delete.
type Repository interface {
	Insert(ctx context.Context, entry *Entry) error
	// Query returns matching entries ordered by sent_at descending, ties
	// broken by id descending. The filter is already normalized.
	Query(ctx context.Context, filter Filter) ([]Entry, error)
	Count(ctx context.Context, filter Filter) (int, error)
}

// RuleLookup resolves the rule a delivery belongs to.
// notification.Repository satisfies it.
type RuleLookup interface {
	GetRule(ctx context.Context, id string) (*notification.Rule, error)
}

type Service interface {
	LogDelivery(ctx context.Context, record DeliveryRecord) (*Entry, error)
	Query(ctx context.Context, filter Filter) (*Page, error)
	Count(ctx context.Context, filter Filter) (int, error)
}
