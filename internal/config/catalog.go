package config

import (
	"lifesim/internal/rules"

	"gopkg.in/yaml.v3"
)

// Stat keys as they appear in catalogs under "stats.".
const (
	StatGrowth   = "growth"
	StatInsight  = "insight"
	StatVitality = "vitality"
	StatLuck     = "luck"
)

// StatKeys is the canonical stat order.
var StatKeys = []string{StatGrowth, StatInsight, StatVitality, StatLuck}

// IsStat reports whether key names one of the four stats.
func IsStat(key string) bool {
	for _, k := range StatKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Talent categories.
const (
	TalentPositive = "positive"
	TalentNegative = "negative"
	TalentNeutral  = "neutral"
)

type RulesConfig struct {
	StartPoints        Number             `yaml:"start_points"`
	TickMs             Number             `yaml:"tick_ms"`
	OldAgeStart        Number             `yaml:"old_age_start"`
	OldAgeStep         Number             `yaml:"old_age_step"`
	OldAgeVitalityLoss Number             `yaml:"old_age_vitality_loss"`
	BaseStats          map[string]float64 `yaml:"base_stats"`
	StatLabels         map[string]string  `yaml:"stat_labels"`
	Breakthrough       BreakthroughConfig `yaml:"breakthrough"`
	Filler             FillerRules        `yaml:"filler"`
	RealmBase          []Number           `yaml:"realm_base_cultivation"`
	CultivationFormula struct {
		GrowthMultiplier Number `yaml:"growth_multiplier"`
	} `yaml:"cultivation_formula"`
	Luck               LuckRules      `yaml:"luck"`
	EventCooldownYears Number         `yaml:"event_cooldown_years"`
	Childhood          AgeWindow      `yaml:"childhood"`
	TalentDraw         TalentDraw     `yaml:"talent_draw"`
	InitialFlags       map[string]any `yaml:"initial_flags"`
}

type BreakthroughConfig struct {
	ReqBase                Number     `yaml:"req_base"`
	BaseChance             Number     `yaml:"base_chance"`
	PerRealmPenalty        Number     `yaml:"per_realm_penalty"`
	StatBonusMul           Number     `yaml:"stat_bonus_mul"`
	CheckStats             StringList `yaml:"check_stats"`
	SuccessVitalityGainMul Number     `yaml:"success_vitality_gain_mul"`
	SuccessGrowthGain      Number     `yaml:"success_growth_gain"`
	FailVitalityLossMul    Number     `yaml:"fail_vitality_loss_mul"`
	FailCultivationKeep    Number     `yaml:"fail_cultivation_keep"`
}

type FillerRules struct {
	MinCultivationGain Number `yaml:"min_cultivation_gain"`
}

type LuckRules struct {
	PositiveBonusPerPoint Number `yaml:"positive_bonus_per_point"`
	PositiveBonusCap      Number `yaml:"positive_bonus_cap"`
}

type AgeWindow struct {
	MinAge Number `yaml:"min_age"`
	MaxAge Number `yaml:"max_age"`
}

type TalentDraw struct {
	Count       Number `yaml:"count"`
	MaxAttempts Number `yaml:"max_attempts"`
}

type TalentDef struct {
	Name    string         `yaml:"name" json:"name"`
	Type    string         `yaml:"type" json:"type"`
	Desc    string         `yaml:"desc" json:"desc"`
	Effects []rules.Effect `yaml:"effects" json:"-"`
}

type EventDef struct {
	Text       string           `yaml:"text"`
	Trigger    *rules.Condition `yaml:"trigger"`
	Chance     Number           `yaml:"chance"`
	Effects    []rules.Effect   `yaml:"effects"`
	IsDeath    bool             `yaml:"is_death"`
	IsNegative bool             `yaml:"is_negative"`
	Color      string           `yaml:"color"`
	SetFlags   map[string]any   `yaml:"set_flags"`
	// Malformed marks an entry with a field of the wrong shape. It stays in
	// the catalog for Validate but never fires.
	Malformed bool `yaml:"-"`
}

func (e *EventDef) UnmarshalYAML(node *yaml.Node) error {
	*e = EventDef{}
	var raw struct {
		Text       yaml.Node `yaml:"text"`
		Trigger    yaml.Node `yaml:"trigger"`
		Chance     Number    `yaml:"chance"`
		Effects    yaml.Node `yaml:"effects"`
		IsDeath    yaml.Node `yaml:"is_death"`
		IsNegative yaml.Node `yaml:"is_negative"`
		Color      yaml.Node `yaml:"color"`
		SetFlags   yaml.Node `yaml:"set_flags"`
	}
	if node.Kind != yaml.MappingNode || node.Decode(&raw) != nil {
		e.Malformed = true
		return nil
	}
	e.Chance = raw.Chance
	fields := []struct {
		node *yaml.Node
		out  any
	}{
		{&raw.Text, &e.Text},
		{&raw.Trigger, &e.Trigger},
		{&raw.Effects, &e.Effects},
		{&raw.IsDeath, &e.IsDeath},
		{&raw.IsNegative, &e.IsNegative},
		{&raw.Color, &e.Color},
		{&raw.SetFlags, &e.SetFlags},
	}
	for _, f := range fields {
		if f.node.Kind == 0 {
			continue
		}
		if err := f.node.Decode(f.out); err != nil {
			e.Malformed = true
		}
	}
	return nil
}

type TitleDef struct {
	Name      string           `yaml:"name" json:"name"`
	Color     string           `yaml:"color" json:"color"`
	Rarity    string           `yaml:"rarity" json:"rarity"`
	Desc      string           `yaml:"desc" json:"desc"`
	Hidden    bool             `yaml:"hidden" json:"hidden,omitempty"`
	Condition *rules.Condition `yaml:"condition" json:"-"`
}

// Filler is a flavour line, either shared or split by gender.
type Filler struct {
	Text   string
	Male   string
	Female string
}

func (f *Filler) UnmarshalYAML(node *yaml.Node) error {
	*f = Filler{}
	switch node.Kind {
	case yaml.ScalarNode:
		f.Text = node.Value
	case yaml.MappingNode:
		var raw struct {
			Text   string `yaml:"text"`
			Male   string `yaml:"male"`
			Female string `yaml:"female"`
		}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		f.Text, f.Male, f.Female = raw.Text, raw.Male, raw.Female
	}
	return nil
}

// For picks the line for gender, falling back to whatever text exists.
func (f Filler) For(gender string) string {
	switch {
	case gender == "female" && f.Female != "":
		return f.Female
	case gender == "male" && f.Male != "":
		return f.Male
	case f.Text != "":
		return f.Text
	case f.Male != "":
		return f.Male
	}
	return f.Female
}

type BirthDesc struct {
	Male   []string `yaml:"male"`
	Female []string `yaml:"female"`
}

type RealmsConfig struct {
	Realms []string `yaml:"realms"`
}

type TalentsConfig struct {
	Talents []TalentDef `yaml:"talents"`
}

type EventsConfig struct {
	Events []EventDef `yaml:"events"`
}

type ChildhoodConfig struct {
	Birth   BirthDesc  `yaml:"birth"`
	Events  []EventDef `yaml:"events"`
	Fillers []Filler   `yaml:"fillers"`
}

type FillersConfig struct {
	Fillers []Filler `yaml:"fillers"`
}

type TitlesConfig struct {
	Titles []TitleDef `yaml:"titles"`
}

// Catalog is every authored table. It is read-only once loaded.
type Catalog struct {
	Rules     RulesConfig
	Realms    []string
	Talents   []TalentDef
	Events    []EventDef
	Childhood ChildhoodConfig
	Fillers   []Filler
	Titles    []TitleDef
}
