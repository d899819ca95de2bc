// Package sim runs one simulated life at a time: birth, talent draw, stat
// allocation, the yearly tick and death.
//
// A Session is not safe for concurrent use. Callers that drive it from a
// TickerClock while reading it elsewhere must serialise access themselves.
package sim

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"lifesim/internal/config"
	"lifesim/internal/rules"
	"lifesim/internal/util"
)

var (
	ErrUnknownStat  = errors.New("unknown stat")
	ErrNoPoints     = errors.New("no points left to allocate")
	ErrAtFloor      = errors.New("stat is already at its starting value")
	ErrPointsLeft   = errors.New("unallocated points remain")
	ErrStarted      = errors.New("life already started")
	ErrTalentsDrawn = errors.New("talents already drawn")
	ErrNotDrawn     = errors.New("talents not drawn yet")
	ErrRedrawUsed   = errors.New("talent redraw already used")
)

// Ledger keeps the record that outlives a single life.
type Ledger interface {
	RecordLife(title, highestStat string) error
}

type Options struct {
	Rng    util.Sampler
	Sink   Sink
	Logger *log.Logger
	Ledger Ledger
	// Clock drives Tick after Start. Nil leaves ticking to the caller.
	Clock Clock
	// TickInterval overrides the catalog's tick_ms when positive.
	TickInterval time.Duration
	// Gender is male or female; anything else is drawn at random.
	Gender string
}

// Epitaph is the terminal summary of a life.
type Epitaph struct {
	Cause       string          `json:"cause"`
	Title       config.TitleDef `json:"title"`
	Age         int             `json:"age"`
	Realm       string          `json:"realm"`
	RealmIdx    int             `json:"realmIdx"`
	HighestStat string          `json:"highestStat"`
}

type Session struct {
	Catalog *config.Catalog
	Params  config.Params
	State   CharacterState
	Talents []config.TalentDef
	Points  int
	Paused  bool
	Epitaph *Epitaph

	floor    Stats
	preDraw  *predraw
	redrawn  bool
	started  bool
	rng      util.Sampler
	sink     Sink
	logger   *log.Logger
	ledger   Ledger
	clock    Clock
	interval time.Duration
	selector *Selector
	cancel   func()
}

// NewSession begins a life: the character is born and awaits its talents.
func NewSession(cat *config.Catalog, opts Options) *Session {
	s := &Session{
		Catalog: cat,
		Params:  cat.Rules.Resolve(),
		rng:     opts.Rng,
		sink:    opts.Sink,
		logger:  opts.Logger,
		ledger:  opts.Ledger,
		clock:   opts.Clock,
	}
	if s.rng == nil {
		s.rng = util.New(time.Now().UnixNano())
	}
	if s.sink == nil {
		s.sink = nopSink{}
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard)
	}
	s.interval = s.Params.TickInterval
	if opts.TickInterval > 0 {
		s.interval = opts.TickInterval
	}
	s.selector = &Selector{cat: cat, p: &s.Params, rng: s.rng}

	gender := opts.Gender
	if gender != "male" && gender != "female" {
		gender = "male"
		if s.rng.Float64() < 0.5 {
			gender = "female"
		}
	}
	s.State = newState(s.Params, gender)
	s.floor = s.State.Stats
	s.Points = s.Params.StartPoints

	births := cat.Childhood.Birth.Male
	if gender == "female" {
		births = cat.Childhood.Birth.Female
	}
	if len(births) > 0 {
		s.logLine(fmt.Sprintf("Age 0: %s", births[util.Intn(s.rng, len(births))]), "c-common")
	}
	return s
}

// Started reports whether the yearly clock has begun.
func (s *Session) Started() bool { return s.started }

// DrawTalents picks the starting talents and applies their effects. It may
// only be called once, before Start.
func (s *Session) DrawTalents() ([]config.TalentDef, error) {
	if s.started {
		return nil, ErrStarted
	}
	if s.Talents != nil {
		return nil, ErrTalentsDrawn
	}
	s.preDraw = &predraw{stats: s.State.Stats, cultivation: s.State.Cultivation, flags: map[string]any{}}
	for k, v := range s.State.Flags {
		s.preDraw.flags[k] = v
	}
	s.Talents = SampleTalents(s.Catalog.Talents, s.Params.TalentCount, s.Params.TalentMaxAttempts, s.rng)
	if s.Talents == nil {
		s.Talents = []config.TalentDef{}
	}
	doc := s.State.Document()
	types := make([]string, 0, len(s.Talents))
	for _, t := range s.Talents {
		rules.ApplyEffects(doc, t.Effects, nil)
		types = append(types, t.Type)
	}
	s.State.Absorb(doc)
	s.State.StartTalentTypes = types
	s.floor = s.State.Stats
	for _, t := range s.Talents {
		s.logLine(fmt.Sprintf("Talent: %s. %s", t.Name, t.Desc), talentClass(t.Type))
	}
	return s.Talents, nil
}

type predraw struct {
	stats       Stats
	cultivation float64
	flags       map[string]any
}

// Redrawn reports whether the one redraw has been spent.
func (s *Session) Redrawn() bool { return s.redrawn }

// RedrawTalents undoes the drawn talents and any allocation, then draws
// again. Each life gets one redraw.
func (s *Session) RedrawTalents() ([]config.TalentDef, error) {
	switch {
	case s.started:
		return nil, ErrStarted
	case s.preDraw == nil:
		return nil, ErrNotDrawn
	case s.redrawn:
		return nil, ErrRedrawUsed
	}
	st := &s.State
	st.Stats = s.preDraw.stats
	st.Cultivation = s.preDraw.cultivation
	st.Flags = s.preDraw.flags
	st.StartTalentTypes = nil
	s.Points = s.Params.StartPoints
	s.Talents = nil
	s.redrawn = true
	s.logLine("The stars shift. Your fate is drawn anew.", "c-common")
	return s.DrawTalents()
}

func talentClass(typ string) string {
	switch typ {
	case config.TalentPositive:
		return "c-rare"
	case config.TalentNegative:
		return "c-death"
	}
	return "c-common"
}

// Allocate moves points into (delta > 0) or out of (delta < 0) a stat. A
// stat never drops below its value after the talent draw.
func (s *Session) Allocate(key string, delta int) error {
	if s.started {
		return ErrStarted
	}
	if !config.IsStat(key) {
		return fmt.Errorf("%w: %q", ErrUnknownStat, key)
	}
	for ; delta > 0; delta-- {
		if s.Points <= 0 {
			return ErrNoPoints
		}
		s.State.Stats.Set(key, s.State.Stats.Get(key)+1)
		s.Points--
	}
	for ; delta < 0; delta++ {
		if s.State.Stats.Get(key) <= s.floor.Get(key) {
			return ErrAtFloor
		}
		s.State.Stats.Set(key, s.State.Stats.Get(key)-1)
		s.Points++
	}
	return nil
}

// AllocateRandom resets the allocation and spends every point at random.
func (s *Session) AllocateRandom() error {
	if s.started {
		return ErrStarted
	}
	s.State.Stats = s.floor
	s.Points = s.Params.StartPoints
	for ; s.Points > 0; s.Points-- {
		k := config.StatKeys[util.Intn(s.rng, len(config.StatKeys))]
		s.State.Stats.Set(k, s.State.Stats.Get(k)+1)
	}
	return nil
}

// Start ends setup and begins ticking.
func (s *Session) Start() error {
	if s.started {
		return ErrStarted
	}
	if s.Points > 0 {
		return ErrPointsLeft
	}
	st := &s.State
	if st.Stats.Vitality <= 0 {
		st.Stats.Vitality = 1
	}
	st.StartStats = st.Stats
	st.MaxStats = st.Stats
	st.MinVitality = st.Stats.Vitality
	s.started = true
	s.logLine("Reborn once more, you set out on the road.", "c-legend")
	s.pushFields()
	s.logger.Info("life started", "gender", st.Gender, "talents", len(s.Talents), "interval", s.interval)
	if s.clock != nil {
		s.cancel = s.clock.Every(s.interval, s.Tick)
	}
	return nil
}

// Pause and Resume gate Tick without touching the clock.
func (s *Session) Pause() {
	s.Paused = true
	s.sink.Field("paused", true)
}

func (s *Session) Resume() {
	s.Paused = false
	s.sink.Field("paused", false)
}

// Stop releases the clock. The life stays where it is.
func (s *Session) Stop() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Tick advances the life by one year.
func (s *Session) Tick() {
	st := &s.State
	if !s.started || st.IsDead || s.Paused {
		return
	}
	st.Cooldowns.Tick()
	st.Age++
	p := s.Params
	if p.OldAgeStep > 0 && st.Age > p.OldAgeStart && st.Age%p.OldAgeStep == 0 {
		st.Stats.Vitality -= p.OldAgeVitalityLoss
	}
	if st.Stats.Vitality <= 0 {
		s.die("Lifespan exhausted. You passed away quietly in seclusion.")
		return
	}

	s.checkBreakthrough()
	if st.IsDead {
		return
	}
	s.triggerEvent()
	if st.IsDead {
		return
	}
	st.trackMax()
	s.pushFields()
}

func (s *Session) triggerEvent() {
	st := &s.State
	out := s.selector.Select(st)
	if !out.Synthetic {
		st.Cooldowns.Set(out.Text, s.Params.CooldownYears)
	}
	text := withAge(out.Text, st.Age)
	s.logger.Debug("event", "age", st.Age, "class", out.Class, "exact", out.ExactAge, "text", out.Text)

	if (out.Class == ClassNegative || out.Class == ClassDeath) && s.exempt() {
		s.logLine(text, out.Color)
		s.logLine("Fortune smiles on you. The misfortune passes you by.", "c-legend")
		return
	}

	doc := st.Document()
	rules.ApplyEffects(doc, out.Effects, out.Chance)
	st.Absorb(doc)
	st.clampCultivation()
	if out.Event != nil {
		for k, v := range out.Event.SetFlags {
			st.Flags[k] = v
		}
	}
	s.logLine(text, out.Color)

	if out.Class == ClassDeath {
		s.resolveDeathEvent(out.Text)
	}
}

func withAge(text string, age int) string {
	if _, ok := ExactAge(text); ok {
		return text
	}
	return fmt.Sprintf("Age %d: %s", age, text)
}

func (s *Session) exempt() bool {
	return s.State.Stats.Luck > ExemptionThreshold(s.State.RealmIdx)
}

// HandleDeathEvent applies a death event directly. It reports false when
// luck averted it.
func (s *Session) HandleDeathEvent(cause string) bool {
	if s.State.IsDead {
		return false
	}
	if s.exempt() {
		s.logLine("Fortune smiles on you. Death passes you by.", "c-legend")
		return false
	}
	s.resolveDeathEvent(cause)
	return true
}

func (s *Session) resolveDeathEvent(cause string) {
	st := &s.State
	dmg := DeathDamage(st.RealmIdx, st.Stats.Vitality)
	st.Stats.Vitality -= dmg
	st.DeathEventCount++
	if st.Stats.Vitality <= 0 {
		s.die(cause)
		return
	}
	s.logf("c-rare", "You cheated death! Vitality -%s.", num(dmg))
}

// Settle ends the life now through the normal death path.
func (s *Session) Settle(reason string) *Epitaph {
	return s.die(reason)
}

func (s *Session) die(reason string) *Epitaph {
	st := &s.State
	if st.IsDead {
		return s.Epitaph
	}
	st.trackMax()
	st.IsDead = true
	st.DeathReason = reason
	s.Stop()

	title := ResolveTitle(s.Catalog.Titles, st.Document(), st.vars())
	highest := st.HighestStat()
	if s.ledger != nil {
		if err := s.ledger.RecordLife(title.Name, highest); err != nil {
			s.logger.Warn("record life", "err", err)
		}
	}
	s.Epitaph = &Epitaph{
		Cause:       reason,
		Title:       title,
		Age:         st.Age,
		Realm:       s.realmName(st.RealmIdx),
		RealmIdx:    st.RealmIdx,
		HighestStat: highest,
	}
	s.logf("c-death", "Age %d: Your journey ends. Cause of death: %s", st.Age, reason)
	s.pushFields()
	s.sink.Field("epitaph", *s.Epitaph)
	s.logger.Info("life ended", "age", st.Age, "realm", s.Epitaph.Realm, "title", title.Name, "cause", reason)
	return s.Epitaph
}

func (s *Session) realmName(idx int) string {
	if idx < 0 || idx >= len(s.Catalog.Realms) {
		return fmt.Sprintf("realm %d", idx)
	}
	return s.Catalog.Realms[idx]
}

// Requirement is the cultivation needed for the next breakthrough.
func (s *Session) Requirement() float64 {
	return Requirement(s.Params.Breakthrough, s.State.RealmIdx)
}

// Progress is cultivation toward the next breakthrough as a percentage.
func (s *Session) Progress() float64 {
	req := s.Requirement()
	if req <= 0 {
		return 100
	}
	pct := s.State.Cultivation / req * 100
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}

func (s *Session) logLine(text, class string) {
	s.sink.Log(LogEntry{Age: s.State.Age, Text: text, Class: class})
}

func (s *Session) logf(class, format string, args ...any) {
	s.logLine(fmt.Sprintf(format, args...), class)
}

func (s *Session) pushFields() {
	st := &s.State
	s.sink.Field("age", st.Age)
	s.sink.Field("realm", s.realmName(st.RealmIdx))
	s.sink.Field("cultivation", st.Cultivation)
	s.sink.Field("progress", s.Progress())
	s.sink.Field("stats", st.Stats)
	s.sink.Field("dead", st.IsDead)
}

// View is a read-only snapshot of a session.
type View struct {
	State       CharacterState     `json:"state"`
	Realm       string             `json:"realm"`
	Requirement float64            `json:"requirement"`
	Progress    float64            `json:"progress"`
	Points      int                `json:"points"`
	Started     bool               `json:"started"`
	Paused      bool               `json:"paused"`
	Talents     []config.TalentDef `json:"talents"`
	Epitaph     *Epitaph           `json:"epitaph,omitempty"`
}

func (s *Session) View() View {
	st := s.State
	st.Cooldowns = make(CooldownTracker, len(s.State.Cooldowns))
	for k, v := range s.State.Cooldowns {
		st.Cooldowns[k] = v
	}
	st.Flags = make(map[string]any, len(s.State.Flags))
	for k, v := range s.State.Flags {
		st.Flags[k] = v
	}
	return View{
		State:       st,
		Realm:       s.realmName(st.RealmIdx),
		Requirement: s.Requirement(),
		Progress:    s.Progress(),
		Points:      s.Points,
		Started:     s.started,
		Paused:      s.Paused,
		Talents:     s.Talents,
		Epitaph:     s.Epitaph,
	}
}
