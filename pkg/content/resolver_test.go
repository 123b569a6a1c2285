package content

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/sheetsite/pkg/storage"
	"github.com/cuemby/sheetsite/pkg/throttle"
	"github.com/cuemby/sheetsite/pkg/types"
)

func newGatewayForTest(t *testing.T) (*storage.Gateway, *storage.MemoryBackend) {
	t.Helper()
	th := throttle.New(0)
	th.Start()
	t.Cleanup(th.Stop)
	backend := storage.NewMemoryBackend()
	return storage.NewGateway(backend, th), backend
}

// normalize passes a page through JSON so numeric props compare as float64
func normalize(t *testing.T, p *types.PageEntity) *types.PageEntity {
	t.Helper()
	data, err := json.Marshal(p)
	require.NoError(t, err)
	var out types.PageEntity
	require.NoError(t, json.Unmarshal(data, &out))
	return &out
}

func assertSamePage(t *testing.T, want, got *types.PageEntity) {
	t.Helper()
	if diff := cmp.Diff(normalize(t, want), normalize(t, got), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("page mismatch (-want +got):\n%s", diff)
	}
}

func seedPage(t *testing.T, backend *storage.MemoryBackend, page *types.PageEntity) {
	t.Helper()
	row := PageRow(page)
	layout, _ := json.Marshal(row.Layout)
	comps, _ := json.Marshal(row.Components)
	require.NoError(t, backend.Insert(context.Background(), storage.TablePages, storage.Row{
		"slug":             row.Slug,
		"meta_title":       row.MetaTitle,
		"meta_description": row.MetaDescription,
		"layout":           string(layout),
		"components":       string(comps),
	}))
}

func remotePage(slug, title string) *types.PageEntity {
	return &types.PageEntity{
		Slug:      slug,
		MetaTitle: title,
		Layout:    []string{"hero"},
		Components: map[string]types.ComponentRecord{
			"hero": {ID: "hero", Type: types.ComponentHeroV2, Props: map[string]any{"headline": title}},
		},
	}
}

// countingStore wraps a store and counts page reads
type countingStore struct {
	Store
	pageReads atomic.Int32
	fail      error
}

func (c *countingStore) PageRows(ctx context.Context, slug string) ([]storage.PageRow, error) {
	c.pageReads.Add(1)
	if c.fail != nil {
		return nil, c.fail
	}
	return c.Store.PageRows(ctx, slug)
}

func (c *countingStore) GlobalRows(ctx context.Context) ([]storage.GlobalRow, error) {
	if c.fail != nil {
		return nil, c.fail
	}
	return c.Store.GlobalRows(ctx)
}

func TestResolveRemote(t *testing.T) {
	gw, backend := newGatewayForTest(t)
	seedPage(t, backend, remotePage("/areas/bondi", "Remote Bondi"))

	r := NewResolver(gw, WithMock(NewMockSet()))
	page, src, err := r.Resolve(context.Background(), "/areas/bondi", "")
	require.NoError(t, err)
	assert.Equal(t, Source{Origin: OriginRemote, Slug: "/areas/bondi"}, src)
	assertSamePage(t, remotePage("/areas/bondi", "Remote Bondi"), page)
	assert.Equal(t, OriginRemote, r.LastOrigin())
}

func TestResolveTrailingSlashEquivalence(t *testing.T) {
	gw, backend := newGatewayForTest(t)
	seedPage(t, backend, remotePage("/areas/bondi", "Remote Bondi"))
	r := NewResolver(gw)

	paths := []string{"/areas/bondi/", "/areas/bondi//", "areas/bondi", "/areas/bondi?utm=x"}
	want, _, err := r.Resolve(context.Background(), "/areas/bondi", "")
	require.NoError(t, err)

	for _, p := range paths {
		t.Run(p, func(t *testing.T) {
			got, src, err := r.Resolve(context.Background(), p, "")
			require.NoError(t, err)
			assert.Equal(t, "/areas/bondi", src.Slug)
			assertSamePage(t, want, got)
		})
	}
}

func TestResolveVariant(t *testing.T) {
	tests := []struct {
		name     string
		pages    []*types.PageEntity
		path     string
		variant  string
		wantSlug string
		wantMeta string
	}{
		{
			name:     "root variant present",
			pages:    []*types.PageEntity{remotePage("/", "Home"), remotePage("/_B", "Home B")},
			path:     "/",
			variant:  "B",
			wantSlug: "/_B",
			wantMeta: "Home B",
		},
		{
			name:     "root variant missing falls back to root",
			pages:    []*types.PageEntity{remotePage("/", "Home")},
			path:     "/",
			variant:  "B",
			wantSlug: "/",
			wantMeta: "Home",
		},
		{
			name:     "nested variant",
			pages:    []*types.PageEntity{remotePage("/areas/bondi", "Bondi"), remotePage("/areas/bondi_B", "Bondi B")},
			path:     "/areas/bondi/",
			variant:  "B",
			wantSlug: "/areas/bondi_B",
			wantMeta: "Bondi B",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw, backend := newGatewayForTest(t)
			for _, p := range tt.pages {
				seedPage(t, backend, p)
			}
			r := NewResolver(gw)

			page, src, err := r.Resolve(context.Background(), tt.path, tt.variant)
			require.NoError(t, err)
			assert.Equal(t, OriginRemote, src.Origin)
			assert.Equal(t, tt.wantSlug, src.Slug)
			assert.Equal(t, tt.wantMeta, page.MetaTitle)
		})
	}
}

func TestResolveInvalidRemoteFallsBack(t *testing.T) {
	gw, backend := newGatewayForTest(t)
	require.NoError(t, backend.Insert(context.Background(), storage.TablePages, storage.Row{
		"slug":       "/areas/bondi",
		"layout":     `["hero"]`,
		"components": `{"hero":{"id":"hero","type":"hero_v1"}}`,
	}))

	r := NewResolver(gw, WithMock(NewMockSet()))
	page, src, err := r.Resolve(context.Background(), "/areas/bondi", "")
	require.NoError(t, err)
	assert.Equal(t, OriginMock, src.Origin)
	assert.Equal(t, "Bondi Roofers", page.MetaTitle)
}

func TestResolveStoreUnreachable(t *testing.T) {
	gw, _ := newGatewayForTest(t)
	store := &countingStore{Store: gw, fail: errors.New("dial tcp: connection refused")}
	r := NewResolver(store, WithMock(NewMockSet()))

	page, src, err := r.Resolve(context.Background(), "/services/roof-restoration", "")
	require.NoError(t, err)
	assert.Equal(t, Source{Origin: OriginMock, Slug: "/services/roof-restoration"}, src)
	want, _ := NewMockSet().Page("/services/roof-restoration")
	assertSamePage(t, want, page)
	assert.Equal(t, int32(1), store.pageReads.Load(), "an unreachable store is not retried for the base slug")

	_, _, err = r.Resolve(context.Background(), "/services/gutters", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveMockVariantOrder(t *testing.T) {
	r := NewResolver(nil, WithMock(NewMockSet()))

	page, src, err := r.Resolve(context.Background(), "/", "B")
	require.NoError(t, err)
	assert.Equal(t, Source{Origin: OriginMock, Slug: "/"}, src)
	assert.Equal(t, "Expert Roof Tilers", page.MetaTitle)
}

func TestResolveNotFoundWithoutMock(t *testing.T) {
	gw, _ := newGatewayForTest(t)
	r := NewResolver(gw)

	page, _, err := r.Resolve(context.Background(), "/", "")
	assert.Nil(t, page)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveCancelled(t *testing.T) {
	r := NewResolver(nil, WithMock(NewMockSet()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := r.Resolve(ctx, "/", "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolveReturnsFreshCopies(t *testing.T) {
	r := NewResolver(nil, WithMock(NewMockSet()))

	first, _, err := r.Resolve(context.Background(), "/", "")
	require.NoError(t, err)
	first.Layout[0] = "mutated"
	first.Components["hero_section"].Props["headline"] = "mutated"

	second, _, err := r.Resolve(context.Background(), "/", "")
	require.NoError(t, err)
	assert.Equal(t, "hero_section", second.Layout[0])
	assert.Equal(t, "The Future of Roof Protection", second.Components["hero_section"].Props["headline"])
}

func TestResolveCache(t *testing.T) {
	gw, backend := newGatewayForTest(t)
	seedPage(t, backend, remotePage("/", "Home"))
	store := &countingStore{Store: gw}

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewResolver(store, WithCacheTTL(time.Minute))
	r.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		_, _, err := r.Resolve(context.Background(), "/", "")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), store.pageReads.Load())

	now = now.Add(2 * time.Minute)
	_, _, err := r.Resolve(context.Background(), "/", "")
	require.NoError(t, err)
	assert.Equal(t, int32(2), store.pageReads.Load())

	r.Invalidate("/")
	_, _, err = r.Resolve(context.Background(), "/", "")
	require.NoError(t, err)
	assert.Equal(t, int32(3), store.pageReads.Load())
}

func TestInvalidateDropsVariants(t *testing.T) {
	gw, backend := newGatewayForTest(t)
	seedPage(t, backend, remotePage("/areas/bondi", "Bondi"))
	seedPage(t, backend, remotePage("/areas/bondi_b", "Bondi B"))
	seedPage(t, backend, remotePage("/areas/manly", "Manly"))
	store := &countingStore{Store: gw}
	r := NewResolver(store, WithCacheTTL(time.Minute))

	resolveAll := func() {
		for _, req := range []struct{ path, variant string }{
			{"/areas/bondi", ""},
			{"/areas/bondi", "b"},
			{"/areas/manly", ""},
		} {
			_, _, err := r.Resolve(context.Background(), req.path, req.variant)
			require.NoError(t, err)
		}
	}

	resolveAll()
	assert.Equal(t, int32(3), store.pageReads.Load())

	r.Invalidate("/areas/bondi/")
	resolveAll()
	assert.Equal(t, int32(5), store.pageReads.Load(), "bondi and its variant refetched, manly cached")
}

func TestGlobal(t *testing.T) {
	t.Run("remote", func(t *testing.T) {
		gw, backend := newGatewayForTest(t)
		require.NoError(t, backend.Insert(context.Background(), storage.TableGlobal,
			storage.Row{"key": "companyName", "value": "Coastal Roofing"}))
		r := NewResolver(gw, WithMock(NewMockSet()))
		assert.Equal(t, "Coastal Roofing", r.Global(context.Background()).CompanyName)
	})

	t.Run("empty table uses mock", func(t *testing.T) {
		gw, _ := newGatewayForTest(t)
		r := NewResolver(gw, WithMock(NewMockSet()))
		g := r.Global(context.Background())
		assert.Equal(t, "1300 ROOF GEN", g.Phone)
		assert.Len(t, g.Navigation, 3)
	})

	t.Run("unreachable without mock uses defaults", func(t *testing.T) {
		gw, _ := newGatewayForTest(t)
		r := NewResolver(&countingStore{Store: gw, fail: errors.New("timeout")})
		assert.Equal(t, types.DefaultGlobalConfig(), r.Global(context.Background()))
	})
}
