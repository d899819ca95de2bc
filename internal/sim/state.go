package sim

import (
	"math"

	"lifesim/internal/config"
	"lifesim/internal/rules"
)

type Stats struct {
	Growth   float64 `json:"growth"`
	Insight  float64 `json:"insight"`
	Vitality float64 `json:"vitality"`
	Luck     float64 `json:"luck"`
}

func (s Stats) Get(key string) float64 {
	switch key {
	case config.StatGrowth:
		return s.Growth
	case config.StatInsight:
		return s.Insight
	case config.StatVitality:
		return s.Vitality
	case config.StatLuck:
		return s.Luck
	}
	return 0
}

func (s *Stats) Set(key string, v float64) {
	switch key {
	case config.StatGrowth:
		s.Growth = v
	case config.StatInsight:
		s.Insight = v
	case config.StatVitality:
		s.Vitality = v
	case config.StatLuck:
		s.Luck = v
	}
}

func (s Stats) Map() map[string]any {
	m := make(map[string]any, len(config.StatKeys))
	for _, k := range config.StatKeys {
		m[k] = s.Get(k)
	}
	return m
}

func statsFrom(m map[string]float64) Stats {
	var s Stats
	for k, v := range m {
		s.Set(k, v)
	}
	return s
}

// CharacterState is one life. It is created at birth and discarded at
// reincarnation.
type CharacterState struct {
	Stats            Stats           `json:"stats"`
	StartStats       Stats           `json:"startStats"`
	Age              int             `json:"age"`
	Cultivation      float64         `json:"cultivation"`
	RealmIdx         int             `json:"realmIdx"`
	IsDead           bool            `json:"isDead"`
	FailCount        int             `json:"failCount"`
	DeathEventCount  int             `json:"deathEventCount"`
	Gender           string          `json:"gender"`
	DeathReason      string          `json:"deathReason"`
	Cooldowns        CooldownTracker `json:"eventCooldowns"`
	Flags            map[string]any  `json:"flags"`
	MaxCultivation   float64         `json:"maxCultivation"`
	MaxStats         Stats           `json:"maxStats"`
	MinVitality      float64         `json:"minVitality"`
	StartTalentTypes []string        `json:"startTalentTypes"`
}

func newState(p config.Params, gender string) CharacterState {
	st := CharacterState{
		Stats:     statsFrom(p.BaseStats),
		Gender:    gender,
		Cooldowns: CooldownTracker{},
		Flags:     map[string]any{},
	}
	for k, v := range p.InitialFlags {
		st.Flags[k] = v
	}
	st.MaxStats = st.Stats
	st.MinVitality = st.Stats.Vitality
	return st
}

// DeclinedStats counts non-vitality stats below their value at the start of
// the life.
func (st *CharacterState) DeclinedStats() int {
	n := 0
	for _, k := range config.StatKeys {
		if k != config.StatVitality && st.Stats.Get(k) < st.StartStats.Get(k) {
			n++
		}
	}
	return n
}

// Document is the rule-engine view of the state. Flags sit at the root so
// catalogs can address them by bare name.
func (st *CharacterState) Document() rules.Document {
	types := make([]any, len(st.StartTalentTypes))
	for i, t := range st.StartTalentTypes {
		types[i] = t
	}
	doc := rules.Document{}
	for k, v := range st.Flags {
		doc[k] = v
	}
	doc["stats"] = st.Stats.Map()
	doc["maxStats"] = st.MaxStats.Map()
	doc["age"] = float64(st.Age)
	doc["cultivation"] = st.Cultivation
	doc["realmIdx"] = float64(st.RealmIdx)
	doc["isDead"] = st.IsDead
	doc["failCount"] = float64(st.FailCount)
	doc["deathEventCount"] = float64(st.DeathEventCount)
	doc["gender"] = st.Gender
	doc["deathReason"] = st.DeathReason
	doc["maxCultivation"] = st.MaxCultivation
	doc["maxVitality"] = st.MaxStats.Vitality
	doc["minVitality"] = st.MinVitality
	doc["declinedStats"] = float64(st.DeclinedStats())
	doc["startTalentTypes"] = types
	return doc
}

// Absorb copies effect results back from doc. Only stats, cultivation and
// flags are writable; every other field is derived.
func (st *CharacterState) Absorb(doc rules.Document) {
	for _, k := range config.StatKeys {
		if v, ok := rules.Get(doc, "stats."+k); ok {
			if f, ok := rules.ToFloat(v); ok {
				st.Stats.Set(k, f)
			}
		}
	}
	if v, ok := rules.Get(doc, "cultivation"); ok {
		if f, ok := rules.ToFloat(v); ok {
			st.Cultivation = f
		}
	}
	for k := range st.Flags {
		if v, ok := doc[k]; ok {
			st.Flags[k] = v
		}
	}
}

func (st *CharacterState) vars() map[string]float64 {
	return map[string]float64{"realmIdx": float64(st.RealmIdx)}
}

func (st *CharacterState) clampCultivation() {
	if st.Cultivation < 0 || math.IsNaN(st.Cultivation) {
		st.Cultivation = 0
	}
}

func (st *CharacterState) trackMax() {
	st.MaxCultivation = math.Max(st.MaxCultivation, st.Cultivation)
	for _, k := range config.StatKeys {
		if v := st.Stats.Get(k); v > st.MaxStats.Get(k) {
			st.MaxStats.Set(k, v)
		}
	}
	st.MinVitality = math.Min(st.MinVitality, st.Stats.Vitality)
}

// HighestStat names the largest stat; ties go to the earlier key.
func (st *CharacterState) HighestStat() string {
	best := config.StatKeys[0]
	for _, k := range config.StatKeys[1:] {
		if st.Stats.Get(k) > st.Stats.Get(best) {
			best = k
		}
	}
	return best
}
