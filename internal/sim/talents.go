package sim

import (
	"lifesim/internal/config"
	"lifesim/internal/util"
)

type statDirections struct {
	up   bool
	down int
}

// HasStatConflict reports whether the set raises and lowers the same field,
// or lowers one field from more than one talent.
func HasStatConflict(talents []config.TalentDef) bool {
	dirs := map[string]*statDirections{}
	for _, t := range talents {
		up, down := map[string]bool{}, map[string]bool{}
		for _, e := range t.Effects {
			switch e.Sign() {
			case 1:
				up[e.Field] = true
			case -1:
				down[e.Field] = true
			}
		}
		for f := range up {
			d := dirs[f]
			if d == nil {
				d = &statDirections{}
				dirs[f] = d
			}
			d.up = true
		}
		for f := range down {
			d := dirs[f]
			if d == nil {
				d = &statDirections{}
				dirs[f] = d
			}
			d.down++
		}
	}
	for _, d := range dirs {
		if d.down > 1 || d.up && d.down > 0 {
			return true
		}
	}
	return false
}

// SampleTalents draws n talents from pool, reshuffling up to maxAttempts
// times to avoid a conflicting set. When every attempt conflicts the last
// draw is returned.
func SampleTalents(pool []config.TalentDef, n, maxAttempts int, rng util.Sampler) []config.TalentDef {
	if n <= 0 || len(pool) == 0 {
		return nil
	}
	if n > len(pool) {
		n = len(pool)
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	idx := make([]int, len(pool))
	var picked []config.TalentDef
	for attempt := 0; attempt < maxAttempts; attempt++ {
		for i := range idx {
			idx[i] = i
		}
		util.Shuffle(rng, len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		picked = make([]config.TalentDef, n)
		for i := 0; i < n; i++ {
			picked[i] = pool[idx[i]]
		}
		if !HasStatConflict(picked) {
			return picked
		}
	}
	return picked
}
