package sim

import (
	"math"
	"regexp"
	"strconv"

	"lifesim/internal/config"
	"lifesim/internal/rules"
	"lifesim/internal/util"
)

// CooldownTracker maps event text to the years left before it may fire
// again.
type CooldownTracker map[string]int

func (c CooldownTracker) Set(text string, years int) {
	if years <= 0 {
		delete(c, text)
		return
	}
	c[text] = years
}

func (c CooldownTracker) Active(text string) bool { return c[text] > 0 }

// Tick removes one year from every entry and drops the expired ones.
func (c CooldownTracker) Tick() {
	for k, v := range c {
		if v <= 1 {
			delete(c, k)
			continue
		}
		c[k] = v - 1
	}
}

type EventClass int

const (
	ClassFiller EventClass = iota
	ClassPositive
	ClassNegative
	ClassNeutral
	ClassDeath
)

func (c EventClass) String() string {
	switch c {
	case ClassPositive:
		return "positive"
	case ClassNegative:
		return "negative"
	case ClassNeutral:
		return "neutral"
	case ClassDeath:
		return "death"
	default:
		return "filler"
	}
}

// Classify derives the class from explicit flags first, then from the signs
// of the effect deltas.
func Classify(e *config.EventDef) EventClass {
	switch {
	case e.IsDeath:
		return ClassDeath
	case e.IsNegative:
		return ClassNegative
	}
	pos, neg := false, false
	for _, ef := range e.Effects {
		switch ef.Sign() {
		case 1:
			pos = true
		case -1:
			neg = true
		}
	}
	switch {
	case pos && neg:
		return ClassNeutral
	case pos:
		return ClassPositive
	case neg:
		return ClassNegative
	}
	return ClassFiller
}

var (
	ageMarkerEN = regexp.MustCompile(`(?i)^\s*age\s+(\d+)\b`)
	ageMarkerZH = regexp.MustCompile(`(\d+)岁`)
)

// ExactAge extracts the age an event text is pinned to, if any.
func ExactAge(text string) (int, bool) {
	m := ageMarkerEN.FindStringSubmatch(text)
	if m == nil {
		m = ageMarkerZH.FindStringSubmatch(text)
	}
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// EventColor is the style class for an event of the given chance.
func EventColor(chance float64) string {
	switch {
	case chance < 0.01:
		return "c-legend"
	case chance < 0.02:
		return "c-epic"
	case chance < 0.05:
		return "c-rare"
	case chance < 0.1:
		return "c-uncommon"
	}
	return "c-common"
}

// PositiveChance boosts chance by luck, capped, and never above 1.
func PositiveChance(chance, luck float64, p config.Params) float64 {
	bonus := math.Min(math.Max(luck, 0)*p.LuckBonusPerPoint, p.LuckBonusCap)
	return math.Min(1, chance*(1+bonus))
}

// Outcome is what an EventSelector picked for one tick.
type Outcome struct {
	Event     *config.EventDef
	Text      string
	Class     EventClass
	Effects   []rules.Effect
	Chance    *float64
	Color     string
	ExactAge  bool
	Synthetic bool
}

// Selector draws the narrative outcome of a tick.
type Selector struct {
	cat *config.Catalog
	p   *config.Params
	rng util.Sampler
}

func NewSelector(cat *config.Catalog, p config.Params, rng util.Sampler) *Selector {
	return &Selector{cat: cat, p: &p, rng: rng}
}

func (s *Selector) inChildhood(age int) bool {
	return age >= s.p.ChildhoodMinAge && age <= s.p.ChildhoodMaxAge
}

func (s *Selector) catalogFor(age int) []config.EventDef {
	if s.inChildhood(age) && len(s.cat.Childhood.Events) > 0 {
		return s.cat.Childhood.Events
	}
	return s.cat.Events
}

func (s *Selector) fillersFor(age int) []config.Filler {
	if s.inChildhood(age) && len(s.cat.Childhood.Fillers) > 0 {
		return s.cat.Childhood.Fillers
	}
	return s.cat.Fillers
}

// Select runs the selection pipeline against st without modifying it.
func (s *Selector) Select(st *CharacterState) Outcome {
	doc := st.Document()
	vars := st.vars()
	catalog := s.catalogFor(st.Age)

	var triggered []*config.EventDef
	for i := range catalog {
		e := &catalog[i]
		if !e.Malformed && rules.MatchCondition(doc, e.Trigger, vars) {
			triggered = append(triggered, e)
		}
	}

	for _, e := range triggered {
		if age, ok := ExactAge(e.Text); ok && age == st.Age {
			out := s.outcome(e)
			out.ExactAge = true
			return out
		}
	}

	candidates := triggered[:0:0]
	for _, e := range triggered {
		if !st.Cooldowns.Active(e.Text) {
			candidates = append(candidates, e)
		}
	}
	util.Shuffle(s.rng, len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	for _, e := range candidates {
		if !e.Chance.Set || e.Chance.V <= 0 {
			continue
		}
		chance := e.Chance.V
		if Classify(e) == ClassPositive {
			chance = PositiveChance(chance, st.Stats.Luck, *s.p)
		}
		if s.rng.Float64() < chance {
			return s.outcome(e)
		}
	}
	return s.filler(st)
}

func (s *Selector) outcome(e *config.EventDef) Outcome {
	out := Outcome{
		Event:   e,
		Text:    e.Text,
		Class:   Classify(e),
		Effects: e.Effects,
		Chance:  e.Chance.Ptr(),
		Color:   e.Color,
	}
	if out.Color == "" {
		out.Color = EventColor(e.Chance.Or(1))
	}
	if out.Class == ClassDeath {
		out.Color = "c-death"
	}
	return out
}

const quietYear = "A quiet year passes."

func (s *Selector) filler(st *CharacterState) Outcome {
	text := quietYear
	if fillers := s.fillersFor(st.Age); len(fillers) > 0 {
		if t := fillers[util.Intn(s.rng, len(fillers))].For(st.Gender); t != "" {
			text = t
		}
	}
	gain := PassiveGain(*s.p, st.RealmIdx, st.Stats.Growth)
	return Outcome{
		Text:      text,
		Class:     ClassFiller,
		Effects:   []rules.Effect{{Field: "cultivation", Kind: rules.EffectAdd, Add: gain}},
		Color:     "c-common",
		Synthetic: true,
	}
}

// PassiveGain is the cultivation a filler year yields.
func PassiveGain(p config.Params, realm int, growth float64) float64 {
	g := p.RealmBaseFor(realm) * (1 + growth*p.GrowthMultiplier)
	if math.IsNaN(g) {
		g = 0
	}
	return math.Max(g, p.MinCultivationGain)
}

// ExemptionThreshold is the luck a character must exceed to shrug off a
// negative or death event at realm.
func ExemptionThreshold(realm int) float64 {
	return float64(realm*2+3) * 10
}

// DeathDamage is the vitality a death event costs.
func DeathDamage(realm int, vitality float64) float64 {
	return math.Max(float64(realm+1)*10, math.Floor(vitality*0.8))
}
