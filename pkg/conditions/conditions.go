// Package conditions implements the pure condition evaluator used by
// trigger rules and condition nodes. It performs no I/O and has no side
// effects: (lead snapshot, field, operator, value) in, boolean out.
package conditions

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dripflow/dripflow/pkg/models"
)

// Supported operators.
const (
	OpEquals         = "equals"
	OpNotEquals      = "notEquals"
	OpContains       = "contains"
	OpGreaterThan    = "greaterThan"
	OpLessThan       = "lessThan"
	OpGreaterOrEqual = "greaterOrEqual"
	OpLessOrEqual    = "lessOrEqual"
	OpIsEmpty        = "isEmpty"
	OpIsNotEmpty     = "isNotEmpty"
	OpIsTrue         = "isTrue"
	OpIsFalse        = "isFalse"
	OpStartsWith     = "startsWith"
	OpEndsWith       = "endsWith"
	OpMatches        = "matches"
	OpIn             = "in"
	OpNotIn          = "notIn"
)

// neverContactedDays is what lastContactDays resolves to for a lead that
// was never contacted, so "lastContactDays greaterThan N" matches them.
const neverContactedDays = 999

// Evaluate resolves field against the lead snapshot (computed aliases
// first, then dot-path lookup) and applies operator against value.
//
// Unknown operators evaluate to true: a misconfigured condition lets the
// run proceed instead of silently dropping the lead out of the automation.
func Evaluate(lead *models.Lead, field, operator string, value any) bool {
	return EvaluateAt(lead, field, operator, value, time.Now())
}

// EvaluateAt is Evaluate with an explicit reference time for the computed
// aliases, so time-dependent conditions are testable.
func EvaluateAt(lead *models.Lead, field, operator string, value any, now time.Time) bool {
	fieldValue := resolveField(lead, field, now)

	switch operator {
	case OpEquals:
		return equals(fieldValue, value)
	case OpNotEquals:
		return !equals(fieldValue, value)
	case OpContains:
		return strings.Contains(lowerString(fieldValue), lowerString(value))
	case OpGreaterThan:
		return compareNumbers(fieldValue, value, func(a, b float64) bool { return a > b })
	case OpLessThan:
		return compareNumbers(fieldValue, value, func(a, b float64) bool { return a < b })
	case OpGreaterOrEqual:
		return compareNumbers(fieldValue, value, func(a, b float64) bool { return a >= b })
	case OpLessOrEqual:
		return compareNumbers(fieldValue, value, func(a, b float64) bool { return a <= b })
	case OpIsEmpty:
		return isEmpty(fieldValue)
	case OpIsNotEmpty:
		return !isEmpty(fieldValue)
	case OpIsTrue:
		return isTruthy(fieldValue)
	case OpIsFalse:
		return !isTruthy(fieldValue)
	case OpStartsWith:
		return strings.HasPrefix(lowerString(fieldValue), lowerString(value))
	case OpEndsWith:
		return strings.HasSuffix(lowerString(fieldValue), lowerString(value))
	case OpMatches:
		return matches(fieldValue, value)
	case OpIn:
		return contains(valueList(value), fieldValue)
	case OpNotIn:
		return !contains(valueList(value), fieldValue)
	default:
		// Fail-open: an operator this engine does not know must not
		// strand the run.
		return true
	}
}

// All reports whether every condition passes against the lead snapshot.
func All(lead *models.Lead, conds []models.TriggerCondition) bool {
	for _, cond := range conds {
		if !Evaluate(lead, cond.Field, cond.Operator, cond.Value) {
			return false
		}
	}

	return true
}

// resolveField applies the computed-alias table before falling back to a
// dot-path lookup on the snapshot.
func resolveField(lead *models.Lead, field string, now time.Time) any {
	switch field {
	case "lastContactDays":
		if lead == nil || lead.LastContactAt == nil {
			return neverContactedDays
		}

		return now.Sub(*lead.LastContactAt).Hours() / 24

	case "responseTime":
		if lead == nil {
			return nil
		}

		if lead.FirstResponseAt != nil {
			return lead.FirstResponseAt.Sub(lead.CreatedAt).Hours()
		}

		return now.Sub(lead.CreatedAt).Hours()
	}

	value, ok := lead.Field(field)
	if !ok {
		return nil
	}

	return value
}

func equals(a, b any) bool {
	if fa, oka := toNumber(a); oka {
		if fb, okb := toNumber(b); okb {
			return fa == fb
		}
	}

	return lowerString(a) == lowerString(b)
}

func compareNumbers(a, b any, cmp func(a, b float64) bool) bool {
	fa, oka := toNumber(a)
	fb, okb := toNumber(b)

	if !oka || !okb {
		return false
	}

	return cmp(fa, fb)
}

func toNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case nil:
		return 0, false
	case bool:
		if v {
			return 1, true
		}

		return 0, true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}

		return f, true
	default:
		f, err := strconv.ParseFloat(strings.TrimSpace(fmt.Sprint(v)), 64)
		if err != nil {
			return 0, false
		}

		return f, true
	}
}

func lowerString(value any) string {
	if value == nil {
		return ""
	}

	return strings.ToLower(strings.TrimSpace(fmt.Sprint(value)))
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}

func isTruthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		lower := strings.ToLower(strings.TrimSpace(v))

		return lower == "true" || lower == "1" || lower == "yes"
	default:
		if f, ok := toNumber(value); ok {
			return f != 0
		}

		return value != nil
	}
}

func matches(fieldValue, pattern any) bool {
	re, err := regexp.Compile(fmt.Sprint(pattern))
	if err != nil {
		return false
	}

	return re.MatchString(fmt.Sprint(fieldValue))
}

func valueList(value any) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []any:
		list := make([]string, 0, len(v))
		for _, item := range v {
			list = append(list, fmt.Sprint(item))
		}

		return list
	case string:
		return strings.Split(v, ",")
	case nil:
		return nil
	default:
		return []string{fmt.Sprint(v)}
	}
}

func contains(list []string, fieldValue any) bool {
	needle := lowerString(fieldValue)

	for _, item := range list {
		if strings.ToLower(strings.TrimSpace(item)) == needle {
			return true
		}
	}

	return false
}
