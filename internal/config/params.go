package config

import (
	"math"
	"time"
)

// Defaults for every tunable rule. Authored values that are missing or
// malformed resolve to these.
const (
	DefaultStartPoints        = 20
	DefaultTickMs             = 400
	DefaultOldAgeStart        = 100
	DefaultOldAgeStep         = 10
	DefaultOldAgeVitalityLoss = 1

	DefaultReqBase                = 150
	DefaultBaseChance             = 70
	DefaultPerRealmPenalty        = 2
	DefaultStatBonusMul           = 4
	DefaultSuccessVitalityGainMul = 4
	DefaultSuccessGrowthGain      = 2
	DefaultFailVitalityLossMul    = 2
	DefaultFailCultivationKeep    = 0.8

	DefaultRealmBase          = 10
	DefaultGrowthMultiplier   = 0.08
	DefaultMinCultivationGain = 1

	DefaultLuckBonusPerPoint = 0.01
	DefaultLuckBonusCap      = 0.5

	DefaultEventCooldownYears = 10
	DefaultChildhoodMinAge    = 1
	DefaultChildhoodMaxAge    = 10
	DefaultTalentCount        = 3
	DefaultTalentMaxAttempts  = 50
)

// DefaultCheckStats is used when no valid check stat is authored.
var DefaultCheckStats = []string{StatInsight, StatLuck}

// Breakthrough holds the coerced breakthrough parameters.
type Breakthrough struct {
	ReqBase                float64
	BaseChance             float64
	PerRealmPenalty        float64
	StatBonusMul           float64
	CheckStats             []string
	SuccessVitalityGainMul float64
	SuccessGrowthGain      float64
	FailVitalityLossMul    float64
	FailCultivationKeep    float64
}

// Params is RulesConfig with every default applied.
type Params struct {
	StartPoints        int
	TickInterval       time.Duration
	OldAgeStart        int
	OldAgeStep         int
	OldAgeVitalityLoss float64
	BaseStats          map[string]float64
	Breakthrough       Breakthrough
	RealmBase          []float64
	GrowthMultiplier   float64
	MinCultivationGain float64
	LuckBonusPerPoint  float64
	LuckBonusCap       float64
	CooldownYears      int
	ChildhoodMinAge    int
	ChildhoodMaxAge    int
	TalentCount        int
	TalentMaxAttempts  int
	InitialFlags       map[string]any
}

// Resolve applies defaults. It never fails.
func (r RulesConfig) Resolve() Params {
	p := Params{
		StartPoints:        nonNegInt(r.StartPoints, DefaultStartPoints),
		TickInterval:       time.Duration(atLeastOne(r.TickMs, DefaultTickMs)) * time.Millisecond,
		OldAgeStart:        nonNegInt(r.OldAgeStart, DefaultOldAgeStart),
		OldAgeStep:         atLeastOne(r.OldAgeStep, DefaultOldAgeStep),
		OldAgeVitalityLoss: r.OldAgeVitalityLoss.Or(DefaultOldAgeVitalityLoss),
		BaseStats:          map[string]float64{},
		Breakthrough:       r.Breakthrough.Resolve(),
		GrowthMultiplier:   r.CultivationFormula.GrowthMultiplier.Or(DefaultGrowthMultiplier),
		MinCultivationGain: math.Max(0, r.Filler.MinCultivationGain.Or(DefaultMinCultivationGain)),
		LuckBonusPerPoint:  math.Max(0, r.Luck.PositiveBonusPerPoint.Or(DefaultLuckBonusPerPoint)),
		LuckBonusCap:       math.Max(0, r.Luck.PositiveBonusCap.Or(DefaultLuckBonusCap)),
		CooldownYears:      nonNegInt(r.EventCooldownYears, DefaultEventCooldownYears),
		ChildhoodMinAge:    nonNegInt(r.Childhood.MinAge, DefaultChildhoodMinAge),
		ChildhoodMaxAge:    nonNegInt(r.Childhood.MaxAge, DefaultChildhoodMaxAge),
		TalentCount:        nonNegInt(r.TalentDraw.Count, DefaultTalentCount),
		TalentMaxAttempts:  atLeastOne(r.TalentDraw.MaxAttempts, DefaultTalentMaxAttempts),
		InitialFlags:       map[string]any{},
	}
	for _, k := range StatKeys {
		p.BaseStats[k] = r.BaseStats[k]
	}
	for _, n := range r.RealmBase {
		p.RealmBase = append(p.RealmBase, n.Or(DefaultRealmBase))
	}
	for k, v := range r.InitialFlags {
		p.InitialFlags[k] = v
	}
	return p
}

// RealmBaseFor returns the passive gain base for realm.
func (p Params) RealmBaseFor(realm int) float64 {
	if realm < 0 || realm >= len(p.RealmBase) {
		return DefaultRealmBase
	}
	return p.RealmBase[realm]
}

// Resolve coerces every breakthrough parameter.
func (b BreakthroughConfig) Resolve() Breakthrough {
	out := Breakthrough{
		ReqBase:                positive(b.ReqBase, DefaultReqBase),
		BaseChance:             b.BaseChance.Or(DefaultBaseChance),
		PerRealmPenalty:        b.PerRealmPenalty.Or(DefaultPerRealmPenalty),
		StatBonusMul:           b.StatBonusMul.Or(DefaultStatBonusMul),
		SuccessVitalityGainMul: b.SuccessVitalityGainMul.Or(DefaultSuccessVitalityGainMul),
		SuccessGrowthGain:      b.SuccessGrowthGain.Or(DefaultSuccessGrowthGain),
		FailVitalityLossMul:    b.FailVitalityLossMul.Or(DefaultFailVitalityLossMul),
		FailCultivationKeep:    b.FailCultivationKeep.Or(DefaultFailCultivationKeep),
	}
	if out.FailCultivationKeep < 0 || out.FailCultivationKeep > 1 {
		out.FailCultivationKeep = DefaultFailCultivationKeep
	}
	for _, s := range b.CheckStats {
		if IsStat(s) {
			out.CheckStats = append(out.CheckStats, s)
		}
	}
	if len(out.CheckStats) == 0 {
		out.CheckStats = append([]string(nil), DefaultCheckStats...)
	}
	return out
}

func positive(n Number, def float64) float64 {
	if v := n.Or(def); v > 0 {
		return v
	}
	return def
}

// atLeastOne is for counts and steps used as divisors or tick lengths:
// anything that truncates below 1 takes the default.
func atLeastOne(n Number, def int) int {
	if !n.Set || n.V < 1 || n.V > math.MaxInt32 {
		return def
	}
	return int(n.V)
}

func nonNegInt(n Number, def int) int {
	if v := n.IntOr(def); v >= 0 {
		return v
	}
	return def
}
