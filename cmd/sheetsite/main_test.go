package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/sheetsite/pkg/config"
	"github.com/cuemby/sheetsite/pkg/content"
	"github.com/cuemby/sheetsite/pkg/types"
)

const pageYAML = `
apiVersion: sheetsite/v1
kind: Page
metadata:
  name: /areas/coogee/
spec:
  metaTitle: Coogee Roofers
  layout: [hero, form]
  components:
    hero:
      id: hero
      type: hero_v1
      props:
        headline: Coogee Roofers
    form:
      id: form
      type: lead_form_simple
      props: {}
  themeOverrides:
    primaryColor: "210 40% 50%"
---
apiVersion: sheetsite/v1
kind: Global
spec:
  companyName: Coogee Roofing
  phone: "02 9000 0000"
`

func TestDecodeResources(t *testing.T) {
	resources, err := decodeResources(strings.NewReader(pageYAML))
	require.NoError(t, err)
	require.Len(t, resources, 2)
	assert.Equal(t, "Page", resources[0].Kind)
	assert.Equal(t, "Global", resources[1].Kind)

	_, err = decodeResources(strings.NewReader("---\n"))
	assert.Error(t, err)
}

func TestPageFromResource(t *testing.T) {
	resources, err := decodeResources(strings.NewReader(pageYAML))
	require.NoError(t, err)

	page, err := pageFromResource(resources[0])
	require.NoError(t, err)
	assert.Equal(t, "/areas/coogee", page.Slug)
	assert.Equal(t, []string{"hero", "form"}, page.Layout)
	assert.Equal(t, types.ComponentHeroV1, page.Components["hero"].Type)
	require.NotNil(t, page.ThemeOverrides)
	assert.Equal(t, "210 40% 50%", page.ThemeOverrides.PrimaryColor)

	bad := resources[0]
	bad.Metadata.Name = ""
	_, err = pageFromResource(bad)
	assert.Error(t, err)
}

func memoryStack(t *testing.T) *stack {
	t.Helper()
	cfg := config.Default()
	cfg.Store.Type = config.StoreMemory
	cfg.Content.CacheTTL = 0
	st, err := openStack(cfg)
	require.NoError(t, err)
	t.Cleanup(st.Close)
	return st
}

func TestApplyAndResolve(t *testing.T) {
	st := memoryStack(t)
	ctx := context.Background()

	resources, err := decodeResources(strings.NewReader(pageYAML))
	require.NoError(t, err)
	for _, r := range resources {
		require.NoError(t, applyResource(ctx, st, r))
	}

	page, src, err := st.resolver.Resolve(ctx, "/areas/coogee", "")
	require.NoError(t, err)
	assert.Equal(t, content.OriginRemote, src.Origin)
	assert.Equal(t, "Coogee Roofers", page.MetaTitle)

	global := st.resolver.Global(ctx)
	assert.Equal(t, "Coogee Roofing", global.CompanyName)
	assert.Equal(t, "02 9000 0000", global.Phone)

	// Applying twice updates in place.
	require.NoError(t, applyResource(ctx, st, resources[0]))
	rows, err := st.gateway.PageRows(ctx, "/areas/coogee")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestApplyUnknownKind(t *testing.T) {
	st := memoryStack(t)
	err := applyResource(context.Background(), st, Resource{Kind: "Service"})
	assert.ErrorContains(t, err, "unsupported resource kind")
}

func TestBrowse(t *testing.T) {
	st := memoryStack(t)
	nav := content.NewNavigator(st.resolver)

	var out bytes.Buffer
	err := browse(context.Background(), nav, strings.NewReader("/areas/bondi\n\n"), &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), `/areas/bondi -> /areas/bondi [mock] "Bondi Roofers", 3 blocks`)

	out.Reset()
	require.NoError(t, browse(context.Background(), nav, strings.NewReader("/missing\n"), &out))
	assert.Contains(t, out.String(), "/missing: not found")

	require.NotNil(t, nav.Current())
	assert.Equal(t, "/areas/bondi", nav.Current().Source.Slug)
}

func TestBrowseAppliesLastLine(t *testing.T) {
	st := memoryStack(t)

	for i := 0; i < 50; i++ {
		nav := content.NewNavigator(st.resolver)
		var out bytes.Buffer
		in := strings.NewReader("/areas/bondi\n/services/roof-restoration\n/\n")
		require.NoError(t, browse(context.Background(), nav, in, &out))

		current := nav.Current()
		require.NotNil(t, current, "run %d", i)
		assert.Equal(t, "/", current.Source.Slug, "run %d: output %s", i, out.String())
	}
}
