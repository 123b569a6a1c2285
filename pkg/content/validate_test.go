package content

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/sheetsite/pkg/types"
)

func validCandidate() map[string]any {
	return map[string]any{
		"slug":            "/areas/bondi",
		"metaTitle":       "Bondi Roofers",
		"metaDescription": "Local.",
		"layout":          []any{"local_hero", "local_map"},
		"components": map[string]any{
			"local_hero": map[string]any{"id": "local_hero", "type": "hero_v1", "props": map[string]any{"headline": "Bondi"}},
			"local_map":  map[string]any{"id": "local_map", "type": "local_map", "props": map[string]any{}},
		},
	}
}

func TestValidateAccepts(t *testing.T) {
	page, err := Validate(validCandidate(), "/areas/bondi")
	require.NoError(t, err)

	assert.Equal(t, "/areas/bondi", page.Slug)
	assert.Equal(t, "Bondi Roofers", page.MetaTitle)
	assert.Equal(t, []string{"local_hero", "local_map"}, page.Layout)
	require.Contains(t, page.Components, "local_hero")
	assert.Equal(t, types.ComponentHeroV1, page.Components["local_hero"].Type)
	assert.Nil(t, page.ThemeOverrides)
}

func TestValidateRejectsMalformedComponents(t *testing.T) {
	tests := []struct {
		name   string
		record map[string]any
	}{
		{name: "missing id", record: map[string]any{"type": "hero_v1", "props": map[string]any{}}},
		{name: "missing type", record: map[string]any{"id": "local_hero", "props": map[string]any{}}},
		{name: "missing props", record: map[string]any{"id": "local_hero", "type": "hero_v1"}},
		{name: "null props", record: map[string]any{"id": "local_hero", "type": "hero_v1", "props": nil}},
		{name: "props not a mapping", record: map[string]any{"id": "local_hero", "type": "hero_v1", "props": "[]"}},
		{name: "non-string id", record: map[string]any{"id": 7.0, "type": "hero_v1", "props": map[string]any{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCandidate()
			c["components"].(map[string]any)["local_hero"] = tt.record

			page, err := Validate(c, "/areas/bondi")
			assert.Nil(t, page)
			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, "local_hero", vErr.ComponentID)
			assert.False(t, IsValid(c, "/areas/bondi"))
		})
	}
}

func TestValidateRejectsShape(t *testing.T) {
	tests := []struct {
		name      string
		candidate any
	}{
		{name: "nil", candidate: nil},
		{name: "not a mapping", candidate: []any{"hero"}},
		{name: "layout not a sequence", candidate: map[string]any{"layout": "hero", "components": map[string]any{}}},
		{name: "layout with non-string id", candidate: map[string]any{"layout": []any{1.0}, "components": map[string]any{}}},
		{name: "components not a mapping", candidate: map[string]any{"layout": []any{}, "components": []any{}}},
		{name: "components missing", candidate: map[string]any{"layout": []any{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, IsValid(tt.candidate, "/"))
		})
	}
}

func TestValidateToleratesMissingReference(t *testing.T) {
	c := validCandidate()
	c["layout"] = []any{"local_hero", "ghost", "local_map"}

	page, err := Validate(c, "/areas/bondi")
	require.NoError(t, err)
	assert.Equal(t, []string{"local_hero", "ghost", "local_map"}, page.Layout)
	assert.NotContains(t, page.Components, "ghost")
}

func TestValidateDefaultsMeta(t *testing.T) {
	c := validCandidate()
	delete(c, "metaTitle")
	delete(c, "metaDescription")

	page, err := Validate(c, "/areas/bondi")
	require.NoError(t, err)
	assert.Equal(t, types.DefaultCompanyName, page.MetaTitle)
	assert.Equal(t, "", page.MetaDescription)
}

func TestValidateRekeysMismatchedID(t *testing.T) {
	c := validCandidate()
	c["components"].(map[string]any)["local_map"] = map[string]any{"id": "map", "type": "local_map", "props": map[string]any{}}

	page, err := Validate(c, "/areas/bondi")
	require.NoError(t, err)
	assert.Equal(t, "local_map", page.Components["local_map"].ID)
}

func TestValidateUnreferencedComponents(t *testing.T) {
	c := validCandidate()
	comps := c["components"].(map[string]any)
	comps["spare"] = map[string]any{"id": "spare", "type": "rich_text", "props": map[string]any{}}
	comps["broken"] = map[string]any{"id": "broken"}

	page, err := Validate(c, "/areas/bondi")
	require.NoError(t, err, "malformed records outside the layout do not reject the page")
	assert.Contains(t, page.Components, "spare")
	assert.NotContains(t, page.Components, "broken")
}

func TestValidateThemeOverrides(t *testing.T) {
	c := validCandidate()
	c["themeOverrides"] = map[string]any{"primaryColor": "221.2 83.2% 53.3%", "radius": "0.5rem"}

	page, err := Validate(c, "/areas/bondi")
	require.NoError(t, err)
	require.NotNil(t, page.ThemeOverrides)
	assert.Equal(t, "221.2 83.2% 53.3%", page.ThemeOverrides.PrimaryColor)
	assert.Equal(t, "0.5rem", page.ThemeOverrides.Radius)
}

func TestValidateVariantTag(t *testing.T) {
	c := validCandidate()
	c["components"].(map[string]any)["local_hero"].(map[string]any)["variant"] = "B"

	page, err := Validate(c, "/areas/bondi")
	require.NoError(t, err)
	assert.Equal(t, "B", page.Components["local_hero"].Variant)
}
