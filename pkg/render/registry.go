package render

import (
	"html/template"
	"sort"
	"sync"

	"github.com/cuemby/sheetsite/pkg/types"
)

// Renderer turns validated component props into markup. Renderers are
// stateless and know nothing about how the props were resolved.
type Renderer interface {
	Render(props map[string]any) (template.HTML, error)
}

// RendererFunc adapts a function to Renderer
type RendererFunc func(props map[string]any) (template.HTML, error)

// Render implements Renderer
func (f RendererFunc) Render(props map[string]any) (template.HTML, error) {
	return f(props)
}

// Registry maps component type tags to renderers.
// Content may name types the registry does not know; Lookup reports them
// as absent and assembly renders a placeholder.
type Registry struct {
	mu        sync.RWMutex
	renderers map[types.ComponentType]Renderer
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{renderers: make(map[types.ComponentType]Renderer)}
}

// Register binds a type tag to a renderer, replacing any previous binding
func (r *Registry) Register(typ types.ComponentType, renderer Renderer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renderers[typ] = renderer
}

// Lookup returns the renderer for a type tag
func (r *Registry) Lookup(typ types.ComponentType) (Renderer, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	renderer, ok := r.renderers[typ]
	return renderer, ok && renderer != nil
}

// Types lists the registered tags in sorted order
func (r *Registry) Types() []types.ComponentType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.ComponentType, 0, len(r.renderers))
	for t := range r.renderers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// DefaultRegistry returns a registry holding every built-in renderer
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(types.ComponentHeroV1, heroRenderer{variant: "v1"})
	r.Register(types.ComponentHeroV2, heroRenderer{variant: "v2"})
	r.Register(types.ComponentHeroMagic, templateRenderer[heroProps]("hero_magic"))

	r.Register(types.ComponentLeadFormSplit, leadFormRenderer{mode: "split"})
	r.Register(types.ComponentLeadFormSimple, leadFormRenderer{mode: "simple"})

	r.Register(types.ComponentServicesGrid, templateRenderer[servicesGridProps]("services_grid"))
	r.Register(types.ComponentTrustMarquee, templateRenderer[trustMarqueeProps]("trust_marquee"))
	r.Register(types.ComponentRichText, RendererFunc(renderRichText))
	r.Register(types.ComponentStatsBar, templateRenderer[statsBarProps]("stats_bar"))
	r.Register(types.ComponentFaqSection, templateRenderer[faqProps]("faq_section"))
	r.Register(types.ComponentLocalMap, templateRenderer[localMapProps]("local_map"))
	r.Register(types.ComponentGalleryGrid, templateRenderer[galleryProps]("gallery_grid"))
	r.Register(types.ComponentBentoGrid, templateRenderer[bentoProps]("bento_grid"))

	return r
}
