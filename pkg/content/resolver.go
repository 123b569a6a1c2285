package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"

	"github.com/cuemby/sheetsite/pkg/log"
	"github.com/cuemby/sheetsite/pkg/metrics"
	"github.com/cuemby/sheetsite/pkg/storage"
	"github.com/cuemby/sheetsite/pkg/types"
)

// ErrNotFound is returned when no page resolves through the remote store,
// the variant fallback or the mock set
var ErrNotFound = errors.New("page not found")

// Store is the read side of the storage gateway
type Store interface {
	GlobalRows(ctx context.Context) ([]storage.GlobalRow, error)
	PageRows(ctx context.Context, slug string) ([]storage.PageRow, error)
}

// Origin tells where a resolved page came from
type Origin string

const (
	OriginRemote Origin = "remote"
	OriginMock   Origin = "mock"
)

// Source describes a successful resolution
type Source struct {
	Origin Origin
	// Slug is the effective slug, the variant slug when the variant matched
	Slug string
}

// Option configures a Resolver
type Option func(*Resolver)

// WithMock enables fallback to the given mock set
func WithMock(m *MockSet) Option {
	return func(r *Resolver) { r.mock = m }
}

// WithCacheTTL keeps remote results (including misses) for ttl.
// Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(r *Resolver) { r.ttl = ttl }
}

// WithCacheSize bounds the number of cached slugs (default 256)
func WithCacheSize(n int) Option {
	return func(r *Resolver) { r.cacheSize = n }
}

// Resolver maps a navigation path and optional experiment variant to a page
type Resolver struct {
	store     Store
	mock      *MockSet
	ttl       time.Duration
	cacheSize int
	cache     *lru.Cache
	logger    zerolog.Logger

	mu         sync.Mutex
	global     *types.GlobalConfig
	globalAt   time.Time
	lastOrigin Origin

	now func() time.Time
}

type cachedPage struct {
	page    *types.PageEntity // nil records a miss
	expires time.Time
}

// NewResolver creates a resolver reading from store. A nil store serves
// the mock set only.
func NewResolver(store Store, opts ...Option) *Resolver {
	r := &Resolver{
		store:     store,
		cacheSize: 256,
		logger:    log.WithComponent("resolver"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.ttl > 0 {
		cache, err := lru.New(r.cacheSize)
		if err != nil {
			r.logger.Warn().Err(err).Msg("Page cache disabled")
		} else {
			r.cache = cache
		}
	}
	return r
}

// Resolve returns the page for path and variant.
//
// The variant slug is tried first, then the base slug. When the store
// fails or has no valid row for either, the mock set is consulted in the
// same order. ErrNotFound is returned when nothing matches.
func (r *Resolver) Resolve(ctx context.Context, path, variant string) (*types.PageEntity, Source, error) {
	req := types.ExperimentRequest{Path: path, Variant: variant}
	slug := req.Slug()
	order := []string{slug}
	if vs := req.VariantSlug(); vs != "" {
		order = []string{vs, slug}
	}
	logger := r.logger.With().Str("slug", slug).Str("variant", variant).Logger()

	if r.store != nil {
		for _, s := range order {
			if err := ctx.Err(); err != nil {
				return nil, Source{}, err
			}
			page, err := r.fetch(ctx, s)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, Source{}, ctxErr
				}
				logger.Warn().Err(err).Str("tried", s).Msg("Store unavailable, falling back to mock content")
				break
			}
			if page != nil {
				r.observe(OriginRemote)
				return page, Source{Origin: OriginRemote, Slug: s}, nil
			}
			logger.Debug().Str("tried", s).Msg("No valid page row")
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, Source{}, err
	}

	if r.mock != nil {
		for _, s := range order {
			if page, ok := r.mock.Page(s); ok {
				logger.Info().Str("effective_slug", s).Msg("Serving mock content")
				r.observe(OriginMock)
				return page, Source{Origin: OriginMock, Slug: s}, nil
			}
		}
	}

	metrics.PageResolutionsTotal.WithLabelValues("none").Inc()
	return nil, Source{}, fmt.Errorf("%w: %s", ErrNotFound, slug)
}

// Global returns the site settings, cached for the resolver's TTL.
// Store failures and empty tables fall back to the mock settings, or to
// the defaults when mock fallback is off.
func (r *Resolver) Global(ctx context.Context) types.GlobalConfig {
	r.mu.Lock()
	if r.global != nil && r.ttl > 0 && r.now().Sub(r.globalAt) < r.ttl {
		g := *r.global
		g.Navigation = append([]types.NavItem(nil), r.global.Navigation...)
		r.mu.Unlock()
		return g
	}
	r.mu.Unlock()

	if r.store != nil {
		rows, err := r.store.GlobalRows(ctx)
		switch {
		case err != nil:
			r.logger.Warn().Err(err).Msg("Global settings unavailable")
		case len(rows) == 0:
			r.logger.Warn().Msg("Global table is empty")
		default:
			cfg := ParseGlobal(rows)
			r.mu.Lock()
			r.global = &cfg
			r.globalAt = r.now()
			r.mu.Unlock()
			return cfg
		}
	}
	if r.mock != nil {
		return r.mock.Global()
	}
	return types.DefaultGlobalConfig()
}

// LastOrigin reports where the most recent successful resolution came from
func (r *Resolver) LastOrigin() Origin {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastOrigin
}

// Invalidate drops cached results for slug and its variants, or everything
// when slug is empty
func (r *Resolver) Invalidate(slug string) {
	if r.cache == nil {
		return
	}
	if slug == "" {
		r.cache.Purge()
		r.mu.Lock()
		r.global = nil
		r.mu.Unlock()
		return
	}
	slug = types.NormalizeSlug(slug)
	prefix := slug + "_"
	if slug == "/" {
		prefix = "/_"
	}
	for _, k := range r.cache.Keys() {
		if key, ok := k.(string); ok && (key == slug || strings.HasPrefix(key, prefix)) {
			r.cache.Remove(key)
		}
	}
}

func (r *Resolver) observe(origin Origin) {
	metrics.PageResolutionsTotal.WithLabelValues(string(origin)).Inc()
	r.mu.Lock()
	r.lastOrigin = origin
	r.mu.Unlock()
}

// fetch returns the first valid page row for slug, or nil when there is none
func (r *Resolver) fetch(ctx context.Context, slug string) (*types.PageEntity, error) {
	if r.cache != nil {
		if v, ok := r.cache.Get(slug); ok {
			entry := v.(cachedPage)
			if r.now().Before(entry.expires) {
				return entry.page.Clone(), nil
			}
			r.cache.Remove(slug)
		}
	}

	rows, err := r.store.PageRows(ctx, slug)
	if err != nil {
		return nil, err
	}

	var page *types.PageEntity
	for _, row := range rows {
		if row.Slug != slug {
			continue
		}
		p, err := Validate(Candidate(row), slug)
		if err != nil {
			continue
		}
		page = p
		break
	}

	if r.cache != nil {
		r.cache.Add(slug, cachedPage{page: page, expires: r.now().Add(r.ttl)})
	}
	return page.Clone(), nil
}
