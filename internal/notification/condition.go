package notification

import (
	"context"

	"herald/pkg/cel"
)

// ConditionEvaluator checks the optional CEL condition of a rule.
type ConditionEvaluator interface {
	ValidateCondition(expression string) error
	EvaluateCondition(ctx context.Context, expression, eventType string, data map[string]interface{}) (bool, error)
}

var _ ConditionEvaluator = (*cel.Evaluator)(nil)

func NewConditionEvaluator() (ConditionEvaluator, error) {
	return cel.NewEvaluator()
}
