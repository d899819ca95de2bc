package config

import (
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Number is an authored numeric constant. Values that are missing, non-finite
// or not numbers at all leave it unset so callers fall back to a default.
type Number struct {
	V   float64
	Set bool
}

// Num builds a set Number.
func Num(v float64) Number { return Number{V: v, Set: true} }

func (n *Number) UnmarshalYAML(node *yaml.Node) error {
	*n = Number{}
	if node.Kind != yaml.ScalarNode {
		return nil
	}
	var f float64
	if err := node.Decode(&f); err != nil {
		// quoted numbers are tolerated
		parsed, perr := strconv.ParseFloat(strings.TrimSpace(node.Value), 64)
		if perr != nil {
			return nil
		}
		f = parsed
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	n.V, n.Set = f, true
	return nil
}

func (n Number) MarshalYAML() (any, error) {
	if !n.Set {
		return nil, nil
	}
	return n.V, nil
}

// Or returns the value, or def when unset.
func (n Number) Or(def float64) float64 {
	if !n.Set {
		return def
	}
	return n.V
}

// IntOr is Or truncated to an int.
func (n Number) IntOr(def int) int {
	if !n.Set {
		return def
	}
	return int(n.V)
}

// Ptr returns nil when unset.
func (n Number) Ptr() *float64 {
	if !n.Set {
		return nil
	}
	v := n.V
	return &v
}

// StringList keeps only the scalar entries of a YAML sequence.
type StringList []string

func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	*l = nil
	if node.Kind != yaml.SequenceNode {
		return nil
	}
	for _, item := range node.Content {
		if item.Kind == yaml.ScalarNode && item.Tag == "!!str" {
			*l = append(*l, item.Value)
		}
	}
	return nil
}
