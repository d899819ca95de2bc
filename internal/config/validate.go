package config

import (
	"errors"
	"fmt"
	"strings"

	"lifesim/internal/rules"
)

// Issue is one authoring mistake found by Validate.
type Issue struct {
	Path string
	Msg  string
}

func (i Issue) Error() string { return i.Path + ": " + i.Msg }

// ExprVariables are the names rule expressions may reference.
var ExprVariables = []string{"realmIdx"}

// Validate checks the authoring contract of a catalog. Nothing it reports
// stops a simulation; the engine degrades around every issue. The result
// joins all issues, or is nil.
func Validate(c *Catalog) error {
	var issues []error
	add := func(path, format string, args ...any) {
		issues = append(issues, Issue{Path: path, Msg: fmt.Sprintf(format, args...)})
	}

	if len(c.Realms) < 2 {
		add("realms", "need at least two realms, have %d", len(c.Realms))
	}
	if len(c.Titles) == 0 {
		add("titles", "empty")
	}
	for _, s := range c.Rules.Breakthrough.CheckStats {
		if !IsStat(s) {
			add("rules.breakthrough.check_stats", "unknown stat %q", s)
		}
	}

	for i, t := range c.Talents {
		path := fmt.Sprintf("talents[%d]", i)
		if t.Name == "" {
			add(path+".name", "empty")
		}
		switch t.Type {
		case TalentPositive, TalentNegative, TalentNeutral:
		default:
			add(path+".type", "unknown talent type %q", t.Type)
		}
		checkEffects(path, t.Effects, add)
	}
	checkEvents := func(prefix string, events []EventDef) {
		for i, e := range events {
			path := fmt.Sprintf("%s[%d]", prefix, i)
			if e.Malformed {
				add(path, "has a field of the wrong type; the event is skipped")
				continue
			}
			if e.Text == "" {
				add(path+".text", "empty")
			}
			if e.Chance.Set && (e.Chance.V < 0 || e.Chance.V > 1) {
				add(path+".chance", "%v is outside [0, 1]", e.Chance.V)
			}
			checkCondition(path+".trigger", e.Trigger, add)
			checkEffects(path, e.Effects, add)
		}
	}
	checkEvents("events", c.Events)
	checkEvents("childhood.events", c.Childhood.Events)
	for i, t := range c.Titles {
		path := fmt.Sprintf("titles[%d]", i)
		if t.Name == "" {
			add(path+".name", "empty")
		}
		checkCondition(path+".condition", t.Condition, add)
	}
	return errors.Join(issues...)
}

func checkEffects(path string, effects []rules.Effect, add func(string, string, ...any)) {
	for i, e := range effects {
		p := fmt.Sprintf("%s.effects[%d]", path, i)
		if e.Field == "" {
			add(p+".field", "empty")
		}
		if e.Malformed {
			add(p, "needs a finite add or percent: true")
		}
	}
}

func checkCondition(path string, c *rules.Condition, add func(string, string, ...any)) {
	if c == nil {
		return
	}
	groups := []struct {
		name string
		list []rules.Rule
	}{{"all", c.All}, {"any", c.Any}}
	for _, g := range groups {
		for i, r := range g.list {
			p := fmt.Sprintf("%s.%s[%d]", path, g.name, i)
			if r.Field == "" {
				add(p+".field", "empty")
			}
			if !rules.Ops[r.Op] {
				add(p+".op", "unsupported operator %q", r.Op)
			}
			if r.Op == "includesAny" {
				if _, ok := r.Value.([]any); !ok {
					add(p+".value", "includesAny needs a list")
				}
			}
			s, ok := r.Value.(string)
			if !ok || !mentionsExprVariable(s) {
				continue
			}
			vars := map[string]float64{}
			for _, v := range ExprVariables {
				vars[v] = 1
			}
			if _, err := rules.Eval(s, vars); err != nil && !errors.Is(err, rules.ErrDivisionByZero) {
				add(p+".value", "expression %q: %v", s, err)
			}
		}
	}
}

func mentionsExprVariable(s string) bool {
	for _, v := range ExprVariables {
		if strings.Contains(s, v) {
			return true
		}
	}
	return false
}
