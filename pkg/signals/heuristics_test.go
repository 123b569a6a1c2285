package signals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/sheetsite/pkg/types"
)

func page(layout []string, comps ...types.ComponentRecord) *types.PageEntity {
	p := &types.PageEntity{
		Slug:       "/test",
		Layout:     layout,
		Components: make(map[string]types.ComponentRecord),
	}
	for _, c := range comps {
		p.Components[c.ID] = c
	}
	return p
}

func comp(id string, typ types.ComponentType) types.ComponentRecord {
	return types.ComponentRecord{ID: id, Type: typ, Props: map[string]any{}}
}

func ids(suggestions []types.OptimizationSuggestion) []string {
	out := make([]string, 0, len(suggestions))
	for _, s := range suggestions {
		out = append(out, s.ID)
	}
	return out
}

func TestCatalogLoaded(t *testing.T) {
	require.Len(t, heuristics, 4)
	assert.Equal(t, LeadCaptureFirst, heuristics[0].ID)
	assert.Equal(t, 0.99, heuristics[0].Confidence)
	assert.Equal(t, HeroUpgrade, heuristics[1].ID)
	assert.Equal(t, 0.89, heuristics[1].Confidence)
	assert.Equal(t, AddTrust, heuristics[2].ID)
	assert.Equal(t, 0.95, heuristics[2].Confidence)
	assert.Equal(t, ReduceFriction, heuristics[3].ID)
}

func TestEvaluate(t *testing.T) {
	heroV1 := page([]string{"hero"}, comp("hero", types.ComponentHeroV1))
	trusted := page([]string{"hero", "trust_indicators"},
		comp("hero", types.ComponentHeroMagic),
		comp("trust_indicators", types.ComponentTrustMarquee))
	wordy := page([]string{"hero", "reviews_local", "a", "b", "c"},
		comp("hero", types.ComponentHeroV2),
		comp("reviews_local", "reviews_widget"),
		comp("a", types.ComponentRichText),
		comp("b", types.ComponentRichText),
		comp("c", types.ComponentRichText))

	tests := []struct {
		name  string
		page  *types.PageEntity
		stats Stats
		want  []string
	}{
		{
			name:  "all rules in catalog order",
			page:  heroV1,
			stats: Stats{Views: 6, ConversionRate: 0.01},
			want:  []string{LeadCaptureFirst, HeroUpgrade, AddTrust},
		},
		{
			name:  "too few views for conversion rule",
			page:  heroV1,
			stats: Stats{Views: 5, ConversionRate: 0},
			want:  []string{HeroUpgrade, AddTrust},
		},
		{
			name:  "healthy conversion rate",
			page:  heroV1,
			stats: Stats{Views: 100, ConversionRate: 0.02},
			want:  []string{HeroUpgrade, AddTrust},
		},
		{
			name: "social proof by type",
			page: trusted,
			want: nil,
		},
		{
			name: "social proof by id and text density",
			page: wordy,
			want: []string{ReduceFriction},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.page, tt.stats)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestEvaluateHeroOrder(t *testing.T) {
	// Only the first hero in layout order counts.
	p := page([]string{"top", "later"},
		comp("top", types.ComponentHeroMagic),
		comp("later", types.ComponentHeroV1))
	assert.NotContains(t, ids(Evaluate(p, Stats{})), HeroUpgrade)

	assert.Nil(t, Evaluate(nil, Stats{}))
}

func TestMutateLeadCaptureFirst(t *testing.T) {
	t.Run("moves existing form to the top", func(t *testing.T) {
		p := page([]string{"hero", "body", "form"},
			comp("hero", types.ComponentHeroV1),
			comp("body", types.ComponentRichText),
			comp("form", types.ComponentLeadFormSimple))

		m, ok := Mutate(p, LeadCaptureFirst)
		require.True(t, ok)
		assert.Equal(t, []string{"form", "hero", "body"}, m.Layout)
		assert.Equal(t, "/test", m.Slug)
		assert.Equal(t, LeadCaptureFirst, m.Kind)
		assert.Equal(t, []string{"hero", "body", "form"}, p.Layout, "input page must not change")
	})

	t.Run("injects a form when none exists", func(t *testing.T) {
		p := page([]string{"hero"}, comp("hero", types.ComponentHeroV1))

		m, ok := Mutate(p, LeadCaptureFirst)
		require.True(t, ok)
		assert.Equal(t, []string{"lead_capture", "hero"}, m.Layout)
		assert.Equal(t, types.ComponentLeadFormSplit, m.Components["lead_capture"].Type)
		assert.NotContains(t, p.Components, "lead_capture")
	})

	t.Run("form already first", func(t *testing.T) {
		p := page([]string{"form", "hero"},
			comp("form", types.ComponentLeadFormSplit),
			comp("hero", types.ComponentHeroV1))
		_, ok := Mutate(p, LeadCaptureFirst)
		assert.False(t, ok)
	})
}

func TestMutateHeroUpgrade(t *testing.T) {
	p := page([]string{"intro", "hero"},
		comp("intro", types.ComponentRichText),
		comp("hero", types.ComponentHeroV1))

	m, ok := Mutate(p, HeroUpgrade)
	require.True(t, ok)
	assert.Equal(t, types.ComponentHeroMagic, m.Components["hero"].Type)
	assert.Equal(t, []string{"intro", "hero"}, m.Layout)
	assert.Equal(t, types.ComponentHeroV1, p.Components["hero"].Type)

	_, ok = Mutate(&types.PageEntity{Components: m.Components, Layout: m.Layout}, HeroUpgrade)
	assert.False(t, ok)
}

func TestMutateAddTrust(t *testing.T) {
	p := page([]string{"hero", "faq"},
		comp("hero", types.ComponentHeroV2),
		comp("faq", types.ComponentFaqSection))

	m, ok := Mutate(p, AddTrust)
	require.True(t, ok)
	assert.Equal(t, []string{"hero", "trust_indicators", "faq"}, m.Layout)
	assert.Equal(t, types.ComponentTrustMarquee, m.Components["trust_indicators"].Type)

	_, ok = Mutate(&types.PageEntity{Components: m.Components, Layout: m.Layout}, AddTrust)
	assert.False(t, ok, "page already has social proof")
}

func TestMutateWithoutRewrite(t *testing.T) {
	p := page([]string{"a"}, comp("a", types.ComponentRichText))
	_, ok := Mutate(p, ReduceFriction)
	assert.False(t, ok)
	_, ok = Mutate(p, "opt_unknown")
	assert.False(t, ok)
	_, ok = Mutate(nil, HeroUpgrade)
	assert.False(t, ok)
}
