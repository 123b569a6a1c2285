package content

import (
	"context"
	"errors"
	"sync"

	"github.com/cuemby/sheetsite/pkg/types"
)

// ErrSuperseded is returned by a navigation overtaken by a newer one
var ErrSuperseded = errors.New("navigation superseded")

// Navigation is an applied resolution
type Navigation struct {
	Request types.ExperimentRequest
	Page    *types.PageEntity
	Source  Source
}

// Navigator serializes navigations so that only the latest one is applied.
// Starting a navigation cancels the one in flight; a result whose
// generation is no longer current is discarded.
type Navigator struct {
	resolver *Resolver

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	current *Navigation
}

// NewNavigator creates a navigator over resolver
func NewNavigator(resolver *Resolver) *Navigator {
	return &Navigator{resolver: resolver}
}

// Pending is a navigation that has taken its place in line but not yet
// resolved
type Pending struct {
	nav    *Navigator
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc
	req    types.ExperimentRequest
}

// Begin claims the next generation and cancels the navigation in flight.
// Call it in request order; Wait may then run on any goroutine.
func (n *Navigator) Begin(ctx context.Context, path, variant string) *Pending {
	ctx, cancel := context.WithCancel(ctx)

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cancel != nil {
		n.cancel()
	}
	n.gen++
	n.cancel = cancel
	return &Pending{
		nav:    n,
		gen:    n.gen,
		ctx:    ctx,
		cancel: cancel,
		req:    types.ExperimentRequest{Path: path, Variant: variant},
	}
}

// Wait resolves the navigation and applies it if no newer one has begun
func (p *Pending) Wait() (*Navigation, error) {
	defer p.cancel()
	page, src, err := p.nav.resolver.Resolve(p.ctx, p.req.Path, p.req.Variant)

	n := p.nav
	n.mu.Lock()
	defer n.mu.Unlock()
	if p.gen != n.gen {
		return nil, ErrSuperseded
	}
	n.cancel = nil
	if err != nil {
		return nil, err
	}
	n.current = &Navigation{Request: p.req, Page: page, Source: src}
	return n.current, nil
}

// Navigate resolves path and variant, superseding any navigation in flight
func (n *Navigator) Navigate(ctx context.Context, path, variant string) (*Navigation, error) {
	return n.Begin(ctx, path, variant).Wait()
}

// Current returns the last applied navigation, or nil
func (n *Navigator) Current() *Navigation {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}
