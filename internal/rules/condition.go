package rules

import (
	"strconv"
	"strings"
)

// Rule compares the value at Field against Value using Op.
type Rule struct {
	Field string `yaml:"field" json:"field"`
	Op    string `yaml:"op" json:"op"`
	Value any    `yaml:"value" json:"value"`
}

// Condition is a pair of rule groups. Every All rule must pass and at least
// one Any rule must pass; an empty group places no constraint.
type Condition struct {
	All []Rule `yaml:"all" json:"all,omitempty"`
	Any []Rule `yaml:"any" json:"any,omitempty"`
}

// Empty reports whether the condition constrains nothing.
func (c *Condition) Empty() bool {
	return c == nil || len(c.All) == 0 && len(c.Any) == 0
}

// Ops lists the supported rule operators.
var Ops = map[string]bool{
	"==": true, "!=": true, ">": true, ">=": true, "<": true, "<=": true,
	"includes": true, "includesAny": true, "every": true,
}

// MatchRule evaluates one rule against ctx. vars binds the names an
// arithmetic rule value may reference.
func MatchRule(ctx Document, r Rule, vars map[string]float64) bool {
	left, _ := Get(ctx, r.Field)
	right := ResolveValue(r.Value, vars)

	switch r.Op {
	case "==":
		return strictEqual(left, right)
	case "!=":
		return !strictEqual(left, right)
	case ">", ">=", "<", "<=":
		c, ok := compare(left, right)
		if !ok {
			return false
		}
		switch r.Op {
		case ">":
			return c > 0
		case ">=":
			return c >= 0
		case "<":
			return c < 0
		default:
			return c <= 0
		}
	case "includes":
		s, ok := left.(string)
		return ok && strings.Contains(s, stringify(right))
	case "includesAny":
		s, ok := left.(string)
		list, isList := right.([]any)
		if !ok || !isList {
			return false
		}
		for _, k := range list {
			if strings.Contains(s, stringify(k)) {
				return true
			}
		}
		return false
	case "every":
		list, ok := asList(left)
		if !ok || len(list) == 0 {
			return false
		}
		for _, x := range list {
			if !strictEqual(x, right) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// MatchCondition evaluates both groups of c. A nil condition matches.
func MatchCondition(ctx Document, c *Condition, vars map[string]float64) bool {
	if c == nil {
		return true
	}
	for _, r := range c.All {
		if !MatchRule(ctx, r, vars) {
			return false
		}
	}
	if len(c.Any) == 0 {
		return true
	}
	for _, r := range c.Any {
		if MatchRule(ctx, r, vars) {
			return true
		}
	}
	return false
}

// ToFloat normalises every Go numeric kind to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func strictEqual(a, b any) bool {
	if x, ok := ToFloat(a); ok {
		y, ok := ToFloat(b)
		return ok && x == y
	}
	switch x := a.(type) {
	case nil:
		return b == nil
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	}
	return false
}

func compare(a, b any) (int, bool) {
	if x, ok := ToFloat(a); ok {
		y, ok := ToFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		case x == y:
			return 0, true
		}
		return 0, false // NaN
	}
	x, ok := a.(string)
	y, ok2 := b.(string)
	if !ok || !ok2 {
		return 0, false
	}
	return strings.Compare(x, y), true
}

func stringify(v any) string {
	if f, ok := ToFloat(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case nil:
		return "null"
	}
	if list, ok := asList(v); ok {
		parts := make([]string, len(list))
		for i, x := range list {
			parts[i] = stringify(x)
		}
		return strings.Join(parts, ",")
	}
	return ""
}

func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}
