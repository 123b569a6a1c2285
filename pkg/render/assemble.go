package render

import (
	"fmt"
	"html/template"

	"github.com/cuemby/sheetsite/pkg/log"
	"github.com/cuemby/sheetsite/pkg/metrics"
	"github.com/cuemby/sheetsite/pkg/types"
)

// Block is one rendered layout entry
type Block struct {
	ID          string
	Type        types.ComponentType
	HTML        template.HTML
	Placeholder bool
}

// Assemble renders the page layout in order.
//
// Layout ids missing from the components map are skipped. Unknown types
// and renderer failures become placeholder blocks naming the problem, so
// one bad entry never fails the page.
func Assemble(page *types.PageEntity, registry *Registry) []Block {
	if page == nil {
		return nil
	}
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.PageRenderDuration)

	logger := log.WithSlug(page.Slug).With().Str("component", "assembly").Logger()
	blocks := make([]Block, 0, len(page.Layout))

	for _, id := range page.Layout {
		record, ok := page.Component(id)
		if !ok {
			logger.Warn().Str("id", id).Msg("Skipping layout entry with no component")
			metrics.ComponentsRenderedTotal.WithLabelValues("missing").Inc()
			continue
		}

		renderer, ok := registry.Lookup(record.Type)
		if !ok {
			logger.Warn().Str("id", id).Str("type", record.Type).Msg("Unknown component type")
			metrics.ComponentsRenderedTotal.WithLabelValues("unknown").Inc()
			blocks = append(blocks, placeholder(id, record.Type, "Unknown Component: "+record.Type))
			continue
		}

		html, err := renderer.Render(record.Props)
		if err != nil {
			logger.Error().Err(err).Str("id", id).Str("type", record.Type).Msg("Component failed to render")
			metrics.ComponentsRenderedTotal.WithLabelValues("error").Inc()
			blocks = append(blocks, placeholder(id, record.Type, fmt.Sprintf("Component %s (%s) failed: %v", id, record.Type, err)))
			continue
		}

		metrics.ComponentsRenderedTotal.WithLabelValues("ok").Inc()
		blocks = append(blocks, Block{ID: id, Type: record.Type, HTML: wrap(id, record.Type, html)})
	}
	return blocks
}

func placeholder(id string, typ types.ComponentType, message string) Block {
	html, err := execute("placeholder", struct{ Message string }{message})
	if err != nil {
		html = template.HTML(template.HTMLEscapeString(message))
	}
	return Block{ID: id, Type: typ, HTML: wrap(id, typ, html), Placeholder: true}
}

func wrap(id string, typ types.ComponentType, inner template.HTML) template.HTML {
	return template.HTML(fmt.Sprintf(`<div class="block" data-component-id="%s" data-component-type="%s">%s</div>`,
		template.HTMLEscapeString(id), template.HTMLEscapeString(typ), inner))
}
