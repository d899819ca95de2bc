package sim

import (
	"fmt"
	"math"

	"lifesim/internal/config"
	"lifesim/internal/util"
)

// Requirement is the cultivation needed to attempt leaving realm.
func Requirement(b config.Breakthrough, realm int) float64 {
	return math.Floor(b.ReqBase * math.Pow(float64(realm+1), 2.5))
}

// StageOneChance is the percent chance of reaching the stat check.
func StageOneChance(b config.Breakthrough, realm int) float64 {
	c := b.BaseChance - float64(realm)*b.PerRealmPenalty
	return math.Max(0, math.Min(100, c))
}

// StatThreshold is the score the stat check must exceed at realm.
func StatThreshold(realm int) float64 {
	return float64(realm*2+1) * 10
}

// BreakthroughResult describes one attempt.
type BreakthroughResult int

const (
	NoAttempt BreakthroughResult = iota
	Advanced
	FailedStageOne
	FailedStageTwo
)

func (r BreakthroughResult) String() string {
	switch r {
	case Advanced:
		return "advanced"
	case FailedStageOne:
		return "failed_stage_one"
	case FailedStageTwo:
		return "failed_stage_two"
	}
	return "no_attempt"
}

// attemptBreakthrough runs the two-stage gate against st. It only mutates
// st; logging and death are left to the caller.
func attemptBreakthrough(st *CharacterState, b config.Breakthrough, realms int, rng util.Sampler) (BreakthroughResult, float64) {
	if st.RealmIdx >= realms-1 || st.Cultivation < Requirement(b, st.RealmIdx) {
		return NoAttempt, 0
	}
	realm := st.RealmIdx
	if rng.Float64()*100 >= StageOneChance(b, realm) {
		loss := float64(realm+1) * b.FailVitalityLossMul
		st.Stats.Vitality -= loss
		st.Cultivation *= b.FailCultivationKeep
		st.FailCount++
		return FailedStageOne, loss
	}

	score := 0.0
	for _, k := range b.CheckStats {
		score += st.Stats.Get(k)
	}
	score *= b.StatBonusMul
	if score > StatThreshold(realm) {
		st.RealmIdx++
		st.Cultivation = 0
		gain := float64(st.RealmIdx) * b.SuccessVitalityGainMul
		st.Stats.Vitality += gain
		st.Stats.Growth += b.SuccessGrowthGain
		return Advanced, gain
	}
	st.Cultivation *= b.FailCultivationKeep
	st.FailCount++
	return FailedStageTwo, 0
}

func (s *Session) checkBreakthrough() {
	st := &s.State
	from := st.RealmIdx
	res, amount := attemptBreakthrough(st, s.Params.Breakthrough, len(s.Catalog.Realms), s.rng)
	switch res {
	case NoAttempt:
		return
	case Advanced:
		s.logf("c-legend", "Breakthrough! Promoted to %s. Vitality +%s.", s.realmName(st.RealmIdx), num(amount))
	case FailedStageOne:
		s.logf("c-death", "The attempt at %s failed. The backlash costs %s vitality.", s.realmName(from+1), num(amount))
	case FailedStageTwo:
		s.logf("c-rare", "You reached for %s but your foundation was not ready. Progress slips away.", s.realmName(from+1))
	}
	s.logger.Debug("breakthrough", "result", res, "realm", st.RealmIdx, "age", st.Age)
	if st.Stats.Vitality <= 0 {
		s.die(fmt.Sprintf("Died from the backlash of a failed promotion to %s.", s.realmName(from+1)))
	}
}

func num(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.1f", v)
}
