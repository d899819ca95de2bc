package sim

import (
	"lifesim/internal/config"
	"lifesim/internal/rules"
)

// ResolveTitle returns the first title whose condition holds for doc, in
// catalog order; a title without a condition always holds. The last title
// is the fallback.
func ResolveTitle(titles []config.TitleDef, doc rules.Document, vars map[string]float64) config.TitleDef {
	if len(titles) == 0 {
		return config.TitleDef{}
	}
	for _, t := range titles {
		if rules.MatchCondition(doc, t.Condition, vars) {
			return t
		}
	}
	return titles[len(titles)-1]
}
