package signals

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/sheetsite/pkg/types"
)

//go:embed heuristics.yaml
var heuristicsYAML []byte

// Suggestion ids
const (
	LeadCaptureFirst = "opt_lead_capture_first"
	HeroUpgrade      = "opt_hero_upgrade"
	AddTrust         = "opt_add_trust"
	ReduceFriction   = "opt_reduce_friction"
)

// Conversion-rate rule thresholds
const (
	minViewsForRate   = 5
	lowConversionRate = 0.02
	maxRichTextBlocks = 2
)

// socialProofIDs are layout ids treated as trust components regardless of type
var socialProofIDs = map[string]bool{
	"trust_indicators": true,
	"reviews_local":    true,
	"reviews_marquee":  true,
}

type heuristic struct {
	ID              string  `yaml:"id"`
	Reason          string  `yaml:"reason"`
	SuggestedAction string  `yaml:"suggested_action"`
	Confidence      float64 `yaml:"confidence"`

	applies func(page *types.PageEntity, stats Stats) bool
}

var conditions = map[string]func(page *types.PageEntity, stats Stats) bool{
	LeadCaptureFirst: func(_ *types.PageEntity, s Stats) bool {
		return s.Views > minViewsForRate && s.ConversionRate < lowConversionRate
	},
	HeroUpgrade: func(p *types.PageEntity, _ Stats) bool {
		_, hero, ok := firstHero(p)
		return ok && hero.Type == types.ComponentHeroV1
	},
	AddTrust: func(p *types.PageEntity, _ Stats) bool {
		return !hasSocialProof(p)
	},
	ReduceFriction: func(p *types.PageEntity, _ Stats) bool {
		return countType(p, types.ComponentRichText) > maxRichTextBlocks
	},
}

var heuristics = mustLoadHeuristics(heuristicsYAML)

func mustLoadHeuristics(data []byte) []heuristic {
	var hs []heuristic
	if err := yaml.Unmarshal(data, &hs); err != nil {
		panic(fmt.Sprintf("load heuristics.yaml: %v", err))
	}
	for i := range hs {
		cond, ok := conditions[hs[i].ID]
		if !ok {
			panic(fmt.Sprintf("heuristics.yaml: no condition for %q", hs[i].ID))
		}
		if hs[i].Confidence < 0 || hs[i].Confidence > 1 {
			panic(fmt.Sprintf("heuristics.yaml: %s confidence %v out of range", hs[i].ID, hs[i].Confidence))
		}
		hs[i].applies = cond
	}
	return hs
}

// Evaluate runs every heuristic against page and stats, in catalog order
func Evaluate(page *types.PageEntity, stats Stats) []types.OptimizationSuggestion {
	if page == nil {
		return nil
	}
	var out []types.OptimizationSuggestion
	for _, h := range heuristics {
		if !h.applies(page, stats) {
			continue
		}
		out = append(out, types.OptimizationSuggestion{
			ID:              h.ID,
			Reason:          h.Reason,
			SuggestedAction: h.SuggestedAction,
			Confidence:      h.Confidence,
		})
	}
	return out
}

// firstHero returns the first hero-family component in layout order
func firstHero(p *types.PageEntity) (int, types.ComponentRecord, bool) {
	for i, id := range p.Layout {
		if c, ok := p.Components[id]; ok && types.IsHero(c.Type) {
			return i, c, true
		}
	}
	return -1, types.ComponentRecord{}, false
}

func hasSocialProof(p *types.PageEntity) bool {
	for _, id := range p.Layout {
		if socialProofIDs[id] {
			return true
		}
		if c, ok := p.Components[id]; ok && c.Type == types.ComponentTrustMarquee {
			return true
		}
	}
	return false
}

func countType(p *types.PageEntity, typ types.ComponentType) int {
	n := 0
	for _, id := range p.Layout {
		if c, ok := p.Components[id]; ok && c.Type == typ {
			n++
		}
	}
	return n
}

// Mutate builds the layout change that applies a suggestion to page.
// It reports false when the suggestion has no automatic rewrite or the
// page already satisfies it.
func Mutate(page *types.PageEntity, suggestionID string) (types.PageMutation, bool) {
	if page == nil {
		return types.PageMutation{}, false
	}
	p := page.Clone()

	switch suggestionID {
	case LeadCaptureFirst:
		idx := -1
		for i, id := range p.Layout {
			if c, ok := p.Components[id]; ok && isLeadForm(c.Type) {
				idx = i
				break
			}
		}
		switch {
		case idx == 0:
			return types.PageMutation{}, false
		case idx > 0:
			id := p.Layout[idx]
			p.Layout = append(p.Layout[:idx:idx], p.Layout[idx+1:]...)
			p.Layout = insert(p.Layout, 0, id)
		default:
			id := uniqueID(p, "lead_capture")
			p.Components[id] = types.ComponentRecord{
				ID:    id,
				Type:  types.ComponentLeadFormSplit,
				Props: map[string]any{"title": "Get a free quote", "subtitle": "Leave your details for an instant callback."},
			}
			p.Layout = insert(p.Layout, 0, id)
		}

	case HeroUpgrade:
		_, hero, ok := firstHero(p)
		if !ok || hero.Type != types.ComponentHeroV1 {
			return types.PageMutation{}, false
		}
		hero.Type = types.ComponentHeroMagic
		p.Components[hero.ID] = hero

	case AddTrust:
		if hasSocialProof(p) {
			return types.PageMutation{}, false
		}
		id := "trust_indicators"
		if _, exists := p.Components[id]; exists {
			id = uniqueID(p, id)
		}
		p.Components[id] = types.ComponentRecord{
			ID:    id,
			Type:  types.ComponentTrustMarquee,
			Props: map[string]any{"reviews": []any{}},
		}
		at := 0
		if i, _, ok := firstHero(p); ok {
			at = i + 1
		}
		p.Layout = insert(p.Layout, at, id)

	default:
		return types.PageMutation{}, false
	}

	return types.PageMutation{
		Slug:       p.Slug,
		Kind:       suggestionID,
		Layout:     p.Layout,
		Components: p.Components,
	}, true
}

func isLeadForm(t types.ComponentType) bool {
	return t == types.ComponentLeadFormSplit || t == types.ComponentLeadFormSimple
}

func insert(layout []string, at int, id string) []string {
	out := make([]string, 0, len(layout)+1)
	out = append(out, layout[:at]...)
	out = append(out, id)
	return append(out, layout[at:]...)
}

func uniqueID(p *types.PageEntity, base string) string {
	id := base
	for n := 2; ; n++ {
		if _, taken := p.Components[id]; !taken {
			return id
		}
		id = fmt.Sprintf("%s_%d", base, n)
	}
}
