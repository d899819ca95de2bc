package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lifesim/internal/rules"

	"gopkg.in/yaml.v3"
)

func TestLoadAllShippedAssets(t *testing.T) {
	cat, err := LoadAll(filepath.Join("..", "..", "assets"))
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(cat.Realms) != 11 {
		t.Fatalf("expected 11 realms, got %d", len(cat.Realms))
	}
	if len(cat.Talents) == 0 || len(cat.Events) == 0 || len(cat.Titles) == 0 {
		t.Fatal("expected talents, events and titles")
	}
	if len(cat.Childhood.Events) == 0 || len(cat.Childhood.Fillers) == 0 {
		t.Fatal("expected childhood catalog")
	}
	if len(cat.Childhood.Birth.Male) == 0 || len(cat.Childhood.Birth.Female) == 0 {
		t.Fatal("expected birth descriptions")
	}
	if err := Validate(cat); err != nil {
		t.Fatalf("shipped assets should validate: %v", err)
	}

	p := cat.Rules.Resolve()
	if p.TickInterval != 400*time.Millisecond {
		t.Fatalf("tick interval = %v", p.TickInterval)
	}
	if p.RealmBaseFor(10) != 500 || p.RealmBaseFor(42) != DefaultRealmBase {
		t.Fatalf("unexpected realm base table %v", p.RealmBase)
	}
	if got := p.InitialFlags["hasTriggeredRomance"]; got != false {
		t.Fatalf("initial flag = %v", got)
	}

	gendered := 0
	for _, f := range cat.Fillers {
		if f.Male != "" && f.Female != "" {
			gendered++
		}
	}
	if gendered == 0 {
		t.Fatal("expected gender-split fillers")
	}
}

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadAllOptionalAndRequiredFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, RulesFile, "tick_ms: 100\n")
	writeFile(t, dir, RealmsFile, "realms: [A, B]\n")
	writeFile(t, dir, EventsFile, "events: []\n")

	if _, err := LoadAll(dir); err == nil || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing titles should fail with ErrNotExist, got %v", err)
	}

	writeFile(t, dir, TitlesFile, "titles:\n  - name: Nobody\n    condition: {all: [{field: always, op: '==', value: true}]}\n")
	cat, err := LoadAll(dir)
	if err != nil {
		t.Fatalf("optional files should be optional: %v", err)
	}
	if cat.Rules.Resolve().TickInterval != 100*time.Millisecond {
		t.Fatal("tick_ms not honoured")
	}
	if len(cat.Talents) != 0 || len(cat.Fillers) != 0 {
		t.Fatal("absent optional catalogs should be empty")
	}

	writeFile(t, dir, EventsFile, "events: [\n")
	if _, err := LoadAll(dir); err == nil || !strings.Contains(err.Error(), EventsFile) {
		t.Fatalf("broken yaml should name the file, got %v", err)
	}
}

func TestBreakthroughDefaultsOnBadInput(t *testing.T) {
	src := `
req_base: lots
base_chance: .nan
per_realm_penalty: "3"
stat_bonus_mul: [1, 2]
check_stats: [vitality, 7, bogus, {a: b}]
fail_cultivation_keep: 4
`
	var bc BreakthroughConfig
	if err := yaml.Unmarshal([]byte(src), &bc); err != nil {
		t.Fatalf("tolerant decode should not fail: %v", err)
	}
	b := bc.Resolve()
	if b.ReqBase != DefaultReqBase || b.BaseChance != DefaultBaseChance || b.StatBonusMul != DefaultStatBonusMul {
		t.Fatalf("bad values should default: %+v", b)
	}
	if b.PerRealmPenalty != 3 {
		t.Fatalf("quoted number should parse, got %v", b.PerRealmPenalty)
	}
	if len(b.CheckStats) != 1 || b.CheckStats[0] != StatVitality {
		t.Fatalf("check stats = %v", b.CheckStats)
	}
	if b.FailCultivationKeep != DefaultFailCultivationKeep {
		t.Fatalf("keep outside [0,1] should default, got %v", b.FailCultivationKeep)
	}

	empty := BreakthroughConfig{}.Resolve()
	if len(empty.CheckStats) != 2 || empty.CheckStats[0] != StatInsight || empty.CheckStats[1] != StatLuck {
		t.Fatalf("default check stats = %v", empty.CheckStats)
	}
}

func TestResolveCoercesRules(t *testing.T) {
	r := RulesConfig{
		OldAgeStep: Num(0),
		TickMs:     Num(-5),
		Filler:     FillerRules{MinCultivationGain: Num(-2)},
		RealmBase:  []Number{Num(7), {}},
	}
	p := r.Resolve()
	if p.OldAgeStep != DefaultOldAgeStep {
		t.Fatalf("zero step should default, got %d", p.OldAgeStep)
	}
	if p.TickInterval != DefaultTickMs*time.Millisecond {
		t.Fatalf("negative tick should default, got %v", p.TickInterval)
	}
	if p.MinCultivationGain != 0 {
		t.Fatalf("min gain should be clamped to 0, got %v", p.MinCultivationGain)
	}
	if p.RealmBaseFor(0) != 7 || p.RealmBaseFor(1) != DefaultRealmBase {
		t.Fatalf("realm base = %v", p.RealmBase)
	}
	if p.OldAgeStart != DefaultOldAgeStart || p.CooldownYears != DefaultEventCooldownYears {
		t.Fatalf("unexpected defaults %+v", p)
	}
	if Num(0).Or(5) != 0 {
		t.Fatal("an explicit zero is a value")
	}
}

func TestResolveCountsBelowOne(t *testing.T) {
	cases := []struct {
		name string
		in   Number
		want int
	}{
		{"half", Num(0.5), -1},
		{"just under one", Num(0.999), -1},
		{"unset", Number{}, -1},
		{"huge", Num(1e12), -1},
		{"one", Num(1), 1},
		{"fraction above one", Num(2.7), 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := RulesConfig{
				OldAgeStep: tc.in,
				TickMs:     tc.in,
				TalentDraw: TalentDraw{MaxAttempts: tc.in},
			}.Resolve()
			step, tick, attempts := tc.want, time.Duration(tc.want)*time.Millisecond, tc.want
			if tc.want < 0 {
				step, tick, attempts = DefaultOldAgeStep, DefaultTickMs*time.Millisecond, DefaultTalentMaxAttempts
			}
			if p.OldAgeStep != step {
				t.Errorf("old age step = %d, want %d", p.OldAgeStep, step)
			}
			if p.TickInterval != tick {
				t.Errorf("tick interval = %v, want %v", p.TickInterval, tick)
			}
			if p.TalentMaxAttempts != attempts {
				t.Errorf("talent attempts = %d, want %d", p.TalentMaxAttempts, attempts)
			}
		})
	}
}

func TestFillerForGender(t *testing.T) {
	var fillers []Filler
	src := "- plain line\n- {male: his line, female: her line}\n- {male: only his}\n"
	if err := yaml.Unmarshal([]byte(src), &fillers); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	tests := []struct {
		f      Filler
		gender string
		want   string
	}{
		{fillers[0], "male", "plain line"},
		{fillers[1], "male", "his line"},
		{fillers[1], "female", "her line"},
		{fillers[2], "female", "only his"},
	}
	for _, tc := range tests {
		if got := tc.f.For(tc.gender); got != tc.want {
			t.Fatalf("For(%q) = %q, want %q", tc.gender, got, tc.want)
		}
	}
}

func TestEventDecodeIsolatesBadEntries(t *testing.T) {
	src := `
events:
  - text: "Found a coin."
    chance: 0.5
    is_negative: false
    trigger: {all: [{field: age, op: ">", value: 3}]}
    effects: [{field: stats.luck, add: 1}]
  - text: "Bad death flag."
    is_death: sometimes
  - text: "Bad trigger."
    trigger: always
  - text: "Bad effects."
    effects: {field: stats.luck, add: 1}
  - just a string
`
	var ec EventsConfig
	if err := yaml.Unmarshal([]byte(src), &ec); err != nil {
		t.Fatalf("one bad event should not fail the file: %v", err)
	}
	if len(ec.Events) != 5 {
		t.Fatalf("got %d events", len(ec.Events))
	}
	good := ec.Events[0]
	if good.Malformed || good.Text != "Found a coin." || good.Chance.V != 0.5 || good.Trigger == nil || len(good.Effects) != 1 {
		t.Fatalf("good event = %+v", good)
	}
	for i, e := range ec.Events[1:] {
		if !e.Malformed {
			t.Errorf("event %d should be malformed: %+v", i+1, e)
		}
	}

	err := Validate(&Catalog{Realms: []string{"A", "B"}, Events: ec.Events, Titles: []TitleDef{{Name: "N"}}})
	if err == nil || !strings.Contains(err.Error(), "events[1]") || strings.Contains(err.Error(), "events[0]") {
		t.Fatalf("Validate = %v", err)
	}
}

func TestValidateReportsIssues(t *testing.T) {
	cat := &Catalog{
		Realms: []string{"A"},
		Talents: []TalentDef{
			{Name: "Odd", Type: "mystery", Effects: []rules.Effect{{Field: "stats.luck", Malformed: true}}},
		},
		Events: []EventDef{
			{Text: "x", Chance: Num(1.5)},
			{Text: "y", Trigger: &rules.Condition{All: []rules.Rule{
				{Field: "stats.luck", Op: "~", Value: 1},
				{Field: "stats.luck", Op: "<", Value: "realmIdx+unknownVar"},
				{Field: "deathReason", Op: "includesAny", Value: "sky"},
			}}},
		},
		Titles: []TitleDef{{Name: "Nobody"}},
	}
	err := Validate(cat)
	if err == nil {
		t.Fatal("expected issues")
	}
	msg := err.Error()
	for _, want := range []string{
		"realms",
		"talents[0].type",
		"talents[0].effects[0]",
		"events[0].chance",
		"events[1].trigger.all[0].op",
		"events[1].trigger.all[1].value",
		"events[1].trigger.all[2].value",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("missing issue %q in:\n%s", want, msg)
		}
	}
	var issue Issue
	if !errors.As(err, &issue) {
		t.Fatal("issues should unwrap to Issue")
	}
}

func TestLoadSettings(t *testing.T) {
	t.Setenv("LIFESIM_TICK_INTERVAL", "250ms")
	t.Setenv("DB_DIALECT", "postgres")
	t.Setenv("DATABASE_URL", "postgres://fallback")
	s, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.TickInterval != 250*time.Millisecond {
		t.Fatalf("tick interval = %v", s.TickInterval)
	}
	if s.SaveKey != "lifesim_save" || s.AssetsDir != "assets" {
		t.Fatalf("defaults not applied: %+v", s)
	}
	if s.PostgresURL() != "postgres://fallback" {
		t.Fatalf("postgres url = %q", s.PostgresURL())
	}
	t.Setenv("DB_POSTGRES_DSN", "postgres://primary")
	s, _ = LoadSettings()
	if s.PostgresURL() != "postgres://primary" {
		t.Fatalf("DB_POSTGRES_DSN should win, got %q", s.PostgresURL())
	}

	t.Setenv("LIFESIM_SEED", "not-a-number")
	if _, err := LoadSettings(); err == nil || !strings.Contains(err.Error(), "parse env") {
		t.Fatalf("expected wrapped parse error, got %v", err)
	}
}
