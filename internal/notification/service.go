package notification

import (
	"context"
	"errors"
	"strings"
	"time"

	"herald/internal/constants"
	"herald/internal/logger"
	pkgerrors "herald/pkg/errors"
	"herald/pkg/models"
)

type service struct {
	repo       Repository
	channels   ChannelRepository
	conditions ConditionEvaluator
	events     *RuleEventPublisher
	newID      models.IDGenerator
	now        func() time.Time
	logger     logger.Logger
}

type ServiceOption func(*service)

func WithIDGenerator(gen models.IDGenerator) ServiceOption {
	return func(s *service) {
		s.newID = gen
	}
}

func WithConditions(conditions ConditionEvaluator) ServiceOption {
	return func(s *service) {
		s.conditions = conditions
	}
}

func WithRuleEvents(events *RuleEventPublisher) ServiceOption {
	return func(s *service) {
		s.events = events
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

func NewService(repo Repository, channels ChannelRepository, opts ...ServiceOption) Service {
	s := &service{
		repo:     repo,
		channels: channels,
		newID:    models.NewUUID,
		now:      time.Now,
		logger:   logger.NopLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *service) CreateRule(ctx context.Context, req CreateRuleRequest) (*Rule, error) {
	if err := ValidateCreateRule(req, s.conditions); err != nil {
		return nil, err
	}
	if err := s.ensureChannelsExist(ctx, req.ChannelIDs); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rule := &Rule{
		ID:              s.newID(),
		Name:            strings.TrimSpace(req.Name),
		Description:     req.Description,
		EventType:       req.EventType,
		Enabled:         true,
		Priority:        constants.DefaultPriority,
		MessageTitle:    req.MessageTitle,
		MessageTemplate: req.MessageTemplate,
		Condition:       strings.TrimSpace(req.Condition),
		ChannelIDs:      append([]string(nil), req.ChannelIDs...),
		Filters:         copyFilters(req.Filters),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
	if req.Priority != nil {
		rule.Priority = *req.Priority
	}

	if err := s.repo.CreateRule(ctx, rule); err != nil {
		return nil, s.mapError(err, rule.ID)
	}

	created, err := s.GetRule(ctx, rule.ID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, models.ActionCreate, created)
	return created, nil
}

func (s *service) GetRule(ctx context.Context, id string) (*Rule, error) {
	rule, err := s.repo.GetRule(ctx, id)
	if err != nil {
		return nil, s.mapError(err, id)
	}
	return rule, nil
}

func (s *service) ListRules(ctx context.Context) ([]Rule, error) {
	rules, err := s.repo.ListRules(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrStorage)
	}
	if rules == nil {
		rules = []Rule{}
	}
	return rules, nil
}

func (s *service) UpdateRule(ctx context.Context, id string, req UpdateRuleRequest) (*Rule, error) {
	if err := ValidateUpdateRule(req, s.conditions); err != nil {
		return nil, err
	}

	rule, err := s.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}

	replaceChannels := req.ChannelIDs != nil
	if replaceChannels {
		if err := s.ensureChannelsExist(ctx, req.ChannelIDs); err != nil {
			return nil, err
		}
		rule.ChannelIDs = append([]string(nil), req.ChannelIDs...)
	}

	replaceFilters := req.Filters != nil
	if replaceFilters {
		rule.Filters = copyFilters(req.Filters)
	}

	applyUpdate(rule, req)
	rule.UpdatedAt = s.now().UTC()

	if err := s.repo.UpdateRule(ctx, rule, replaceChannels, replaceFilters); err != nil {
		return nil, s.mapError(err, id)
	}

	updated, err := s.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, models.ActionUpdate, updated)
	return updated, nil
}

func (s *service) DeleteRule(ctx context.Context, id string) (*Rule, error) {
	rule, err := s.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.repo.DeleteRule(ctx, id); err != nil {
		return nil, s.mapError(err, id)
	}

	s.publish(ctx, models.ActionDelete, rule)
	return rule, nil
}

func (s *service) ToggleRule(ctx context.Context, id string) (*Rule, error) {
	rule, err := s.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}

	rule.Enabled = !rule.Enabled
	rule.UpdatedAt = s.now().UTC()

	if err := s.repo.UpdateRule(ctx, rule, false, false); err != nil {
		return nil, s.mapError(err, id)
	}

	s.publish(ctx, models.ActionToggle, rule)
	return rule, nil
}

// GetMatchingEventType returns enabled rules for eventType in dispatch order.
// Unknown event types simply match nothing.
func (s *service) GetMatchingEventType(ctx context.Context, eventType string) ([]Rule, error) {
	rules, err := s.repo.GetMatchingRules(ctx, eventType)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrStorage)
	}
	return rules, nil
}

func (s *service) ensureChannelsExist(ctx context.Context, ids []string) error {
	missing, err := s.channels.MissingChannelIDs(ctx, ids)
	if err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ErrStorage)
	}
	if len(missing) > 0 {
		return pkgerrors.Validationf("channel not found: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (s *service) mapError(err error, id string) error {
	var appErr *pkgerrors.Error
	switch {
	case errors.Is(err, ErrRuleNotFound):
		return pkgerrors.NotFoundf("notification rule %s not found", id).WithDetail("id", id)
	case errors.Is(err, ErrChannelNotFound):
		return pkgerrors.Validationf("one or more channels no longer exist")
	case errors.As(err, &appErr):
		return err
	default:
		return pkgerrors.Wrap(err, pkgerrors.ErrStorage)
	}
}

func (s *service) publish(ctx context.Context, action string, rule *Rule) {
	if err := s.events.PublishRuleEvent(ctx, action, rule); err != nil {
		s.logger.WarnwCtx(ctx, "Failed to publish rule event",
			"error", err,
			"action", action,
			"rule_id", rule.ID,
		)
	}
}

func applyUpdate(rule *Rule, req UpdateRuleRequest) {
	if req.Name != nil {
		rule.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		rule.Description = *req.Description
	}
	if req.EventType != nil {
		rule.EventType = *req.EventType
	}
	if req.Priority != nil {
		rule.Priority = *req.Priority
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
	if req.MessageTitle != nil {
		rule.MessageTitle = *req.MessageTitle
	}
	if req.MessageTemplate != nil {
		rule.MessageTemplate = *req.MessageTemplate
	}
	if req.Condition != nil {
		rule.Condition = strings.TrimSpace(*req.Condition)
	}
}

func copyFilters(filters []Filter) []Filter {
	out := make([]Filter, len(filters))
	copy(out, filters)
	return out
}
