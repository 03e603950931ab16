package notification

import (
	"strings"

	"herald/internal/constants"
	pkgerrors "herald/pkg/errors"
)

func ValidateCreateRule(req CreateRuleRequest, conditions ConditionEvaluator) error {
	if strings.TrimSpace(req.Name) == "" {
		return pkgerrors.Validationf("name is required")
	}
	if err := validateEventType(req.EventType); err != nil {
		return err
	}
	if err := validateChannelIDs(req.ChannelIDs); err != nil {
		return err
	}
	if err := validatePriority(req.Priority); err != nil {
		return err
	}
	if err := validateFilters(req.Filters); err != nil {
		return err
	}
	return validateCondition(req.Condition, conditions)
}

func ValidateUpdateRule(req UpdateRuleRequest, conditions ConditionEvaluator) error {
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return pkgerrors.Validationf("name cannot be empty")
	}
	if req.EventType != nil {
		if err := validateEventType(*req.EventType); err != nil {
			return err
		}
	}
	if req.ChannelIDs != nil {
		if err := validateChannelIDs(req.ChannelIDs); err != nil {
			return err
		}
	}
	if err := validatePriority(req.Priority); err != nil {
		return err
	}
	if req.Filters != nil {
		if err := validateFilters(req.Filters); err != nil {
			return err
		}
	}
	if req.Condition != nil {
		return validateCondition(*req.Condition, conditions)
	}
	return nil
}

func validateEventType(eventType string) error {
	if !IsValidEventType(eventType) {
		return pkgerrors.Validationf("invalid event_type: %q. Allowed: %s", eventType, strings.Join(EventTypes, ", "))
	}
	return nil
}

func validateChannelIDs(ids []string) error {
	if len(ids) == 0 {
		return pkgerrors.Validationf("at least one channel is required")
	}

	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return pkgerrors.Validationf("channel_ids cannot contain empty values")
		}
		if seen[id] {
			return pkgerrors.Validationf("duplicate channel id: %s", id)
		}
		seen[id] = true
	}
	return nil
}

func validatePriority(priority *int) error {
	if priority == nil {
		return nil
	}
	if *priority < constants.MinPriority || *priority > constants.MaxPriority {
		return pkgerrors.Validationf("priority must be between %d and %d, got %d",
			constants.MinPriority, constants.MaxPriority, *priority)
	}
	return nil
}

func validateFilters(filters []Filter) error {
	for i, f := range filters {
		if !IsValidFilterType(f.FilterType) {
			return pkgerrors.Validationf("filters[%d]: invalid filter_type %q. Allowed: %s, %s",
				i, f.FilterType, FilterTypeHostID, FilterTypeHostGroupID)
		}
		if strings.TrimSpace(f.FilterValue) == "" {
			return pkgerrors.Validationf("filters[%d]: filter_value is required", i)
		}
	}
	return nil
}

func validateCondition(condition string, conditions ConditionEvaluator) error {
	if strings.TrimSpace(condition) == "" {
		return nil
	}
	if conditions == nil {
		return pkgerrors.Validationf("conditions are not supported by this server")
	}
	if err := conditions.ValidateCondition(condition); err != nil {
		return pkgerrors.Validationf("invalid condition: %v", err)
	}
	return nil
}
