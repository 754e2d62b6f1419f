package rules

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/omc-erp/approval-engine/internal/domain/entity"
)

// Evaluate tests a condition list against the context. Conditions are
// AND-combined; an empty list is vacuously satisfied. A malformed condition
// (unknown type, unknown operator, non-collection value for IN/NOT_IN,
// non-comparable value for an ordering operator) returns an error and the
// list counts as not satisfied.
func Evaluate(conditions []entity.ApprovalCondition, ctx Context) (bool, error) {
	for i := range conditions {
		ok, err := evaluateOne(&conditions[i], ctx)
		if err != nil {
			return false, fmt.Errorf("condition %d (%s): %w", i, conditions[i].ConditionType, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func evaluateOne(cond *entity.ApprovalCondition, ctx Context) (bool, error) {
	actual, known := ctx.value(cond.ConditionType)
	if !known {
		return false, fmt.Errorf("unknown condition type %q", cond.ConditionType)
	}

	switch cond.Operator {
	case entity.OpGT, entity.OpGTE, entity.OpLT, entity.OpLTE:
		return compareOrdered(cond.Operator, actual, cond.Value)
	case entity.OpEQ:
		return equal(actual, cond.Value), nil
	case entity.OpNEQ:
		return !equal(actual, cond.Value), nil
	case entity.OpIn:
		return contains(cond.Value, actual)
	case entity.OpNotIn:
		ok, err := contains(cond.Value, actual)
		if err != nil {
			return false, err
		}
		return !ok, nil
	default:
		return false, fmt.Errorf("unknown operator %q", cond.Operator)
	}
}

func compareOrdered(op entity.Operator, actual, configured interface{}) (bool, error) {
	a, ok := toFloat(actual)
	if !ok {
		return false, fmt.Errorf("attribute %v is not numeric", actual)
	}
	b, ok := toFloat(configured)
	if !ok {
		return false, fmt.Errorf("configured value %v is not numeric", configured)
	}
	switch op {
	case entity.OpGT:
		return a > b, nil
	case entity.OpGTE:
		return a >= b, nil
	case entity.OpLT:
		return a < b, nil
	case entity.OpLTE:
		return a <= b, nil
	}
	return false, fmt.Errorf("unknown operator %q", op)
}

// equal compares numerically when both sides coerce to float64, otherwise by
// string form. JSON decoding hands every number over as float64, so a typed
// int on the Go side still matches.
func equal(actual, configured interface{}) bool {
	a, aok := toFloat(actual)
	b, bok := toFloat(configured)
	if aok && bok {
		return a == b
	}
	return fmt.Sprintf("%v", actual) == fmt.Sprintf("%v", configured)
}

// contains requires the configured value to be a collection. Anything else
// is a configuration error, never a match.
func contains(configured, actual interface{}) (bool, error) {
	switch list := configured.(type) {
	case []interface{}:
		for _, v := range list {
			if equal(actual, v) {
				return true, nil
			}
		}
		return false, nil
	case []string:
		for _, v := range list {
			if equal(actual, v) {
				return true, nil
			}
		}
		return false, nil
	case []float64:
		for _, v := range list {
			if equal(actual, v) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("IN/NOT_IN value must be a collection, got %T", configured)
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
