package history

import (
	"context"
	"errors"
	"strings"
	"time"

	"herald/internal/constants"
	"herald/internal/logger"
	"herald/internal/notification"
	pkgerrors "herald/pkg/errors"
	"herald/pkg/models"
)

const unknownError = "unknown error"

type service struct {
	repo   Repository
	rules  RuleLookup
	newID  models.IDGenerator
	now    func() time.Time
	logger logger.Logger
}

type ServiceOption func(*service)

func WithIDGenerator(gen models.IDGenerator) ServiceOption {
	return func(s *service) {
		s.newID = gen
	}
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *service) {
		s.now = now
	}
}

func WithLogger(log logger.Logger) ServiceOption {
	return func(s *service) {
		s.logger = log
	}
}

func NewService(repo Repository, rules RuleLookup, opts ...ServiceOption) Service {
	s := &service{
		repo:   repo,
		rules:  rules,
		newID:  models.NewUUID,
		now:    time.Now,
		logger: logger.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) LogDelivery(ctx context.Context, record DeliveryRecord) (*Entry, error) {
	if record.Status != StatusSent && record.Status != StatusFailed {
		return nil, pkgerrors.Validationf("invalid delivery status %q", record.Status)
	}

	rule, err := s.rules.GetRule(ctx, record.RuleID)
	switch {
	case errors.Is(err, notification.ErrRuleNotFound), pkgerrors.IsNotFound(err):
		return nil, pkgerrors.NotFoundf("notification rule %s not found", record.RuleID).WithDetail("id", record.RuleID)
	case err != nil:
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrStorage)
	}

	entry := Entry{
		ID:             s.newID(),
		ChannelID:      record.ChannelID,
		RuleID:         record.RuleID,
		EventType:      rule.EventType,
		Status:         record.Status,
		MessageTitle:   record.Title,
		MessageContent: record.Content,
		SentAt:         s.now().UTC().Truncate(time.Millisecond),
	}
	if record.Status == StatusFailed {
		msg := strings.TrimSpace(record.Error)
		if msg == "" {
			msg = unknownError
		}
		entry.ErrorMessage = &msg
	}

	if err := s.repo.Insert(ctx, &entry); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrStorage)
	}

	s.logger.DebugwCtx(ctx, "Delivery recorded",
		"history_id", entry.ID,
		"rule_id", entry.RuleID,
		"channel_id", entry.ChannelID,
		"status", entry.Status,
	)
	return &entry, nil
}

func (s *service) Query(ctx context.Context, filter Filter) (*Page, error) {
	filter = Normalize(filter)

	entries, err := s.repo.Query(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrStorage)
	}
	if entries == nil {
		entries = []Entry{}
	}

	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrStorage)
	}

	return &Page{
		Data: entries,
		Pagination: Pagination{
			Total:   total,
			Limit:   filter.Limit,
			Offset:  filter.Offset,
			HasMore: filter.Offset+filter.Limit < total,
		},
	}, nil
}

func (s *service) Count(ctx context.Context, filter Filter) (int, error) {
	total, err := s.repo.Count(ctx, Normalize(filter))
	if err != nil {
		return 0, pkgerrors.Wrap(err, pkgerrors.ErrStorage)
	}
	return total, nil
}

// Normalize applies the default limit, caps it and clamps a negative offset.
func Normalize(f Filter) Filter {
	if f.Limit <= 0 {
		f.Limit = constants.DefaultLimit
	}
	if f.Limit > constants.MaxLimit {
		f.Limit = constants.MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Matches reports whether e satisfies every predicate in f. Limit and offset
// are ignored.
func Matches(f Filter, e Entry) bool {
	if f.StartDate != nil && e.SentAt.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && e.SentAt.After(*f.EndDate) {
		return false
	}
	if f.EventType != "" && e.EventType != f.EventType {
		return false
	}
	if f.ChannelID != "" && e.ChannelID != f.ChannelID {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	return true
}
