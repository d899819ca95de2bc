package sim

import (
	"lifesim/internal/config"
)

// Result is a finished headless life.
type Result struct {
	Epitaph    Epitaph            `json:"epitaph"`
	Ticks      int                `json:"ticks"`
	Talents    []config.TalentDef `json:"talents"`
	FinalStats Stats              `json:"finalStats"`
	Events     []Event            `json:"events,omitempty"`
}

// DefaultMaxTicks caps a headless life.
const DefaultMaxTicks = 5000

// RunLife plays one life to the end without a clock: random talents, random
// allocation, then Tick until death. A life still going after maxTicks is
// settled as having run out of years.
func RunLife(cat *config.Catalog, opts Options, maxTicks int) (Result, error) {
	if maxTicks <= 0 {
		maxTicks = DefaultMaxTicks
	}
	rec := &Recorder{}
	if opts.Sink != nil {
		opts.Sink = MultiSink{rec, opts.Sink}
	} else {
		opts.Sink = rec
	}
	opts.Clock = nil
	s := NewSession(cat, opts)
	if _, err := s.DrawTalents(); err != nil {
		return Result{}, err
	}
	if err := s.AllocateRandom(); err != nil {
		return Result{}, err
	}
	if err := s.Start(); err != nil {
		return Result{}, err
	}
	ticks := 0
	for !s.State.IsDead && ticks < maxTicks {
		s.Tick()
		ticks++
	}
	if !s.State.IsDead {
		s.Settle("The years ran out before the road did.")
	}
	return Result{
		Epitaph:    *s.Epitaph,
		Ticks:      ticks,
		Talents:    s.Talents,
		FinalStats: s.State.Stats,
		Events:     rec.Events,
	}, nil
}
