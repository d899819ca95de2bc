package rules

import (
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EffectKind tags how an Effect changes its field.
type EffectKind int

const (
	// EffectAdd adds Add to the field.
	EffectAdd EffectKind = iota
	// EffectPercentLoss removes a share of the field sized by the
	// triggering event's chance.
	EffectPercentLoss
)

func (k EffectKind) String() string {
	switch k {
	case EffectAdd:
		return "add"
	case EffectPercentLoss:
		return "percent"
	default:
		return "unknown"
	}
}

// Effect is one numeric change to a field of the character document.
type Effect struct {
	Field string
	Kind  EffectKind
	Add   float64
	// Malformed marks an authored add that was missing or not a number.
	Malformed bool
}

// Percent-loss tuning: the event chance is clamped into [minChance,maxChance]
// and mapped linearly onto a loss share in [maxLoss,minLoss].
const (
	percentMinChance     = 0.01
	percentMaxChance     = 0.02
	percentDefaultChance = 0.015
	percentMinLoss       = 0.10
	percentMaxLoss       = 0.30
)

type rawEffect struct {
	Field   string `yaml:"field"`
	Add     any    `yaml:"add"`
	Percent any    `yaml:"percent"`
}

// UnmarshalYAML accepts {field, add} or {field, percent: true}. A malformed
// add becomes 0 rather than failing the catalog load.
func (e *Effect) UnmarshalYAML(node *yaml.Node) error {
	var raw rawEffect
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*e = Effect{Field: raw.Field}
	if p, ok := raw.Percent.(bool); ok && p {
		e.Kind = EffectPercentLoss
		return nil
	}
	e.Kind = EffectAdd
	e.Add, e.Malformed = coerceNumber(raw.Add)
	return nil
}

// MarshalYAML writes the authored form back.
func (e Effect) MarshalYAML() (any, error) {
	if e.Kind == EffectPercentLoss {
		return map[string]any{"field": e.Field, "percent": true}, nil
	}
	return map[string]any{"field": e.Field, "add": e.Add}, nil
}

// Sign reports the direction of the effect: +1, -1 or 0. Percent loss is
// always negative.
func (e Effect) Sign() int {
	if e.Kind == EffectPercentLoss {
		return -1
	}
	switch {
	case e.Add > 0:
		return 1
	case e.Add < 0:
		return -1
	}
	return 0
}

// coerceNumber reports true as its second result when v is unusable.
func coerceNumber(v any) (float64, bool) {
	if f, ok := ToFloat(v); ok {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, true
		}
		return f, false
	}
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return f, false
		}
	}
	return 0, true
}

// PercentLossFraction maps an event chance to the share of the field lost.
// A nil or non-finite chance uses the midpoint.
func PercentLossFraction(chance *float64) float64 {
	c := percentDefaultChance
	if chance != nil && !math.IsNaN(*chance) && !math.IsInf(*chance, 0) {
		c = *chance
	}
	c = math.Max(percentMinChance, math.Min(percentMaxChance, c))
	t := (c - percentMinChance) / (percentMaxChance - percentMinChance)
	return percentMaxLoss - t*(percentMaxLoss-percentMinLoss)
}

// ApplyEffects applies effects to doc in order. chance is the triggering
// event's chance and only matters for percent-loss effects. Fields that are
// missing or not numeric are left alone.
func ApplyEffects(doc Document, effects []Effect, chance *float64) {
	for _, e := range effects {
		cur, ok := Get(doc, e.Field)
		if !ok {
			continue
		}
		v, ok := ToFloat(cur)
		if !ok {
			continue
		}
		switch e.Kind {
		case EffectPercentLoss:
			v -= math.Floor(v * PercentLossFraction(chance))
		default:
			v += e.Add
		}
		Set(doc, e.Field, v)
	}
}
