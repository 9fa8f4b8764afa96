package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Comparison operators accepted in alert rule conditions. The set is closed;
// anything else fails to parse and the rule never matches.
const (
	OpLess    = "<"
	OpGreater = ">"
	OpEqual   = "=="
)

// equalTolerance is the absolute tolerance for "==" conditions; exact float
// equality would never fire.
const equalTolerance = 0.01

// Condition is an alert rule threshold, parsed once at rule-creation time
// from strings like "value < 10".
type Condition struct {
	Op        string  `json:"op"`
	Threshold float64 `json:"threshold"`
}

// ParseCondition parses a condition string of the form "value {<,>,==} N".
// Malformed input returns an error so callers can fail closed.
func ParseCondition(s string) (Condition, error) {
	var op string
	switch {
	case strings.Contains(s, OpEqual):
		op = OpEqual
	case strings.Contains(s, OpLess):
		op = OpLess
	case strings.Contains(s, OpGreater):
		op = OpGreater
	default:
		return Condition{}, fmt.Errorf("condition %q: no comparison operator", s)
	}

	parts := strings.SplitN(s, op, 2)
	threshold, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Condition{}, fmt.Errorf("condition %q: bad threshold: %w", s, err)
	}

	return Condition{Op: op, Threshold: threshold}, nil
}

// Matches reports whether a KPI value satisfies the condition. A zero-valued
// (unparsed) condition never matches.
func (c Condition) Matches(value float64) bool {
	switch c.Op {
	case OpLess:
		return value < c.Threshold
	case OpGreater:
		return value > c.Threshold
	case OpEqual:
		diff := value - c.Threshold
		if diff < 0 {
			diff = -diff
		}
		return diff < equalTolerance
	default:
		return false
	}
}

// String renders the condition back into its rule form
func (c Condition) String() string {
	if c.Op == "" {
		return ""
	}
	return fmt.Sprintf("value %s %g", c.Op, c.Threshold)
}
