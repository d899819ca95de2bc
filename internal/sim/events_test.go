package sim

import (
	"testing"

	"lifesim/internal/config"
	"lifesim/internal/rules"
	"lifesim/internal/util"
)

func add(field string, v float64) rules.Effect {
	return rules.Effect{Field: field, Kind: rules.EffectAdd, Add: v}
}

func TestCooldownTracker(t *testing.T) {
	c := CooldownTracker{}
	c.Set("Met a wandering bard.", 10)
	for i := 0; i < 9; i++ {
		c.Tick()
		if !c.Active("Met a wandering bard.") {
			t.Fatalf("free after %d decrements", i+1)
		}
	}
	c.Tick()
	if c.Active("Met a wandering bard.") {
		t.Fatal("still blocked after 10 decrements")
	}
	if len(c) != 0 {
		t.Fatalf("expired entries kept: %v", c)
	}
	c.Set("x", 0)
	if len(c) != 0 {
		t.Fatal("a zero cooldown should not be stored")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		ev   config.EventDef
		want EventClass
	}{
		{"death flag wins", config.EventDef{IsDeath: true, Effects: []rules.Effect{add("stats.luck", 5)}}, ClassDeath},
		{"negative flag", config.EventDef{IsNegative: true, Effects: []rules.Effect{add("stats.luck", 5)}}, ClassNegative},
		{"positive", config.EventDef{Effects: []rules.Effect{add("stats.luck", 5), add("cultivation", 0)}}, ClassPositive},
		{"negative", config.EventDef{Effects: []rules.Effect{add("stats.luck", -1)}}, ClassNegative},
		{"percent counts as loss", config.EventDef{Effects: []rules.Effect{{Field: "cultivation", Kind: rules.EffectPercentLoss}}}, ClassNegative},
		{"mixed", config.EventDef{Effects: []rules.Effect{add("stats.luck", 5), add("stats.vitality", -2)}}, ClassNeutral},
		{"no deltas", config.EventDef{Effects: []rules.Effect{add("stats.luck", 0)}}, ClassFiller},
		{"no effects", config.EventDef{}, ClassFiller},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(&tc.ev); got != tc.want {
				t.Fatalf("Classify = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestExactAge(t *testing.T) {
	tests := []struct {
		text string
		age  int
		ok   bool
	}{
		{"Age 16: You come of age.", 16, true},
		{"  age 3 - first words", 3, true},
		{"16岁，你成年了。", 16, true},
		{"The village elder is aged and frail.", 0, false},
		{"You pass your 16th winter.", 0, false},
	}
	for _, tc := range tests {
		age, ok := ExactAge(tc.text)
		if age != tc.age || ok != tc.ok {
			t.Fatalf("ExactAge(%q) = %d,%v want %d,%v", tc.text, age, ok, tc.age, tc.ok)
		}
	}
}

func TestEventColor(t *testing.T) {
	tests := map[float64]string{
		0.005: "c-legend",
		0.015: "c-epic",
		0.03:  "c-rare",
		0.07:  "c-uncommon",
		0.1:   "c-common",
		1:     "c-common",
	}
	for chance, want := range tests {
		if got := EventColor(chance); got != want {
			t.Fatalf("EventColor(%v) = %q, want %q", chance, got, want)
		}
	}

	sel := NewSelector(testCatalog(), config.RulesConfig{}.Resolve(), util.New(1))
	death := config.EventDef{Text: "x", IsDeath: true, Chance: config.Num(0.005), Color: "c-legend"}
	if got := sel.outcome(&death).Color; got != "c-death" {
		t.Fatalf("death color = %q", got)
	}
	authored := config.EventDef{Text: "x", Chance: config.Num(0.5), Color: "c-epic"}
	if got := sel.outcome(&authored).Color; got != "c-epic" {
		t.Fatalf("authored color = %q", got)
	}
}

func TestPositiveChanceMonotonicAndCapped(t *testing.T) {
	p := config.RulesConfig{}.Resolve()
	prev := 0.0
	for luck := -10.0; luck <= 500; luck += 5 {
		c := PositiveChance(0.1, luck, p)
		if c < prev {
			t.Fatalf("chance dropped at luck %v: %v < %v", luck, c, prev)
		}
		if c > 0.1*(1+p.LuckBonusCap)+1e-12 {
			t.Fatalf("chance %v above cap at luck %v", c, luck)
		}
		prev = c
	}
	if got := PositiveChance(0.9, 1000, p); got != 1 {
		t.Fatalf("chance not clamped to 1: %v", got)
	}
}

func selectOnce(cat *config.Catalog, luck float64, rolls ...float64) Outcome {
	p := config.RulesConfig{}.Resolve()
	st := newState(p, "male")
	st.Age = 20
	st.Stats.Luck = luck
	return NewSelector(cat, p, &util.Sequence{Values: rolls}).Select(&st)
}

func TestLuckBoostsOnlyPositiveEvents(t *testing.T) {
	cat := testCatalog()
	cat.Events = []config.EventDef{{Text: "A merchant gifts you a charm.", Chance: config.Num(0.1), Effects: []rules.Effect{add("stats.luck", 1)}}}
	if out := selectOnce(cat, 0, 0.11); !out.Synthetic {
		t.Fatalf("luck 0 should miss a 0.11 roll, got %q", out.Text)
	}
	if out := selectOnce(cat, 40, 0.11); out.Synthetic || out.Class != ClassPositive {
		t.Fatalf("luck 40 should hit a 0.11 roll, got %+v", out)
	}

	cat.Events = []config.EventDef{{Text: "You catch a fever.", Chance: config.Num(0.1), Effects: []rules.Effect{add("stats.vitality", -1)}}}
	if out := selectOnce(cat, 40, 0.11); !out.Synthetic {
		t.Fatalf("negative events get no luck bonus, got %q", out.Text)
	}
	cat.Events = []config.EventDef{{Text: "A plague sweeps the land.", Chance: config.Num(0.1), IsDeath: true}}
	if out := selectOnce(cat, 40, 0.11); !out.Synthetic {
		t.Fatalf("death events get no luck bonus, got %q", out.Text)
	}
	if out := selectOnce(cat, 0, 0.05); out.Class != ClassDeath || out.Color != "c-death" {
		t.Fatalf("death event under its chance: %+v", out)
	}
}

func TestSelectSkipsUnsetChance(t *testing.T) {
	cat := testCatalog()
	cat.Events = []config.EventDef{{Text: "Nothing in particular.", Effects: []rules.Effect{add("stats.luck", 1)}}}
	if out := selectOnce(cat, 0, 0); !out.Synthetic {
		t.Fatalf("event without a chance fired: %q", out.Text)
	}
}

func TestSelectSkipsMalformedEvents(t *testing.T) {
	cat := testCatalog()
	cat.Events = []config.EventDef{
		{Text: "Age 20: A broken omen.", Chance: config.Num(1), Malformed: true},
		{Text: "A broken gift.", Chance: config.Num(1), Malformed: true, Effects: []rules.Effect{add("stats.luck", 1)}},
	}
	if out := selectOnce(cat, 0, 0, 0, 0); !out.Synthetic {
		t.Fatalf("malformed events should never fire, got %q", out.Text)
	}
}

func TestFillers(t *testing.T) {
	cat := testCatalog()
	cat.Fillers = []config.Filler{{Male: "He drills with the militia.", Female: "She drills with the militia."}}
	cat.Childhood.Fillers = []config.Filler{{Text: "You chase geese around the yard."}}
	p := config.RulesConfig{}.Resolve()

	st := newState(p, "female")
	st.Age = 30
	st.Stats.Growth = 5
	out := NewSelector(cat, p, util.New(1)).Select(&st)
	if out.Text != "She drills with the militia." || !out.Synthetic || out.Class != ClassFiller {
		t.Fatalf("outcome = %+v", out)
	}
	want := p.RealmBaseFor(0) * (1 + 5*p.GrowthMultiplier)
	if len(out.Effects) != 1 || out.Effects[0].Field != "cultivation" || out.Effects[0].Add != want {
		t.Fatalf("filler effects = %+v, want cultivation +%v", out.Effects, want)
	}

	st.Age = 4
	if out := NewSelector(cat, p, util.New(1)).Select(&st); out.Text != "You chase geese around the yard." {
		t.Fatalf("childhood filler = %q", out.Text)
	}

	cat.Fillers = nil
	st.Age = 40
	if out := NewSelector(cat, p, util.New(1)).Select(&st); out.Text != quietYear {
		t.Fatalf("empty filler catalog = %q", out.Text)
	}
}

func TestChildhoodCatalogIsExclusive(t *testing.T) {
	cat := testCatalog()
	cat.Events = []config.EventDef{{Text: "You enlist.", Chance: config.Num(1), Effects: []rules.Effect{add("stats.vitality", 1)}}}
	cat.Childhood.Events = []config.EventDef{{Text: "You learn to walk.", Chance: config.Num(1), Effects: []rules.Effect{add("stats.growth", 1)}}}
	p := config.RulesConfig{}.Resolve()
	st := newState(p, "male")
	st.Age = 1
	if out := NewSelector(cat, p, util.New(1)).Select(&st); out.Text != "You learn to walk." {
		t.Fatalf("age 1 = %q", out.Text)
	}
	st.Age = 11
	if out := NewSelector(cat, p, util.New(1)).Select(&st); out.Text != "You enlist." {
		t.Fatalf("age 11 = %q", out.Text)
	}
}

func TestPassiveGainNeverNegative(t *testing.T) {
	p := config.RulesConfig{}.Resolve()
	if got := PassiveGain(p, 0, -1000); got != p.MinCultivationGain {
		t.Fatalf("PassiveGain with negative growth = %v", got)
	}
	p.RealmBase = []float64{10, 15}
	if got := PassiveGain(p, 1, 0); got != 15 {
		t.Fatalf("PassiveGain(1) = %v, want 15", got)
	}
}

func TestResolveTitle(t *testing.T) {
	titles := []config.TitleDef{
		{Name: "Dragon Slayer", Condition: &rules.Condition{All: []rules.Rule{{Field: "realmIdx", Op: ">=", Value: 2.0}}}},
		{Name: "Lucky Fool", Condition: &rules.Condition{Any: []rules.Rule{{Field: "stats.luck", Op: ">", Value: 50.0}}}},
		{Name: "Forgotten", Condition: &rules.Condition{All: []rules.Rule{{Field: "age", Op: ">", Value: 9999.0}}}},
	}
	p := config.RulesConfig{}.Resolve()
	st := newState(p, "male")
	if got := ResolveTitle(titles, st.Document(), st.vars()); got.Name != "Forgotten" {
		t.Fatalf("fallback = %q", got.Name)
	}
	st.Stats.Luck = 60
	st.RealmIdx = 2
	if got := ResolveTitle(titles, st.Document(), st.vars()); got.Name != "Dragon Slayer" {
		t.Fatalf("first match = %q", got.Name)
	}
	if got := ResolveTitle(nil, st.Document(), st.vars()); got.Name != "" {
		t.Fatalf("empty catalog = %+v", got)
	}
}

func TestHighestStatTies(t *testing.T) {
	st := newState(config.RulesConfig{}.Resolve(), "male")
	st.Stats = Stats{Growth: 3, Insight: 5, Vitality: 5, Luck: 1}
	if got := st.HighestStat(); got != config.StatInsight {
		t.Fatalf("HighestStat = %q", got)
	}
}

func TestSetFlagsAndCounters(t *testing.T) {
	cat := testCatalog()
	cat.Rules.InitialFlags = map[string]any{"romanceCount": 0, "metTheQueen": false}
	cat.Events = []config.EventDef{{
		Text:     "You dance with the queen.",
		Chance:   config.Num(1),
		Effects:  []rules.Effect{add("romanceCount", 1), add("stats.luck", 1)},
		SetFlags: map[string]any{"metTheQueen": true},
	}}
	s := startedSession(t, cat, util.New(1))
	s.Tick()
	if s.State.Flags["metTheQueen"] != true {
		t.Fatalf("flags = %v", s.State.Flags)
	}
	if v, _ := rules.ToFloat(s.State.Flags["romanceCount"]); v != 1 {
		t.Fatalf("romanceCount = %v", s.State.Flags["romanceCount"])
	}
}
