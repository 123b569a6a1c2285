package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/cuemby/sheetsite/pkg/decode"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"stars": stars,
	"span":  span,
}).ParseFS(templateFS, "templates/*.html"))

// richTextPolicy allows the formatting editors paste into rich_text cells
var richTextPolicy = bluemonday.UGCPolicy()

type heroProps struct {
	Headline    string `json:"headline"`
	Subheadline string `json:"subheadline"`
	CtaText     string `json:"ctaText"`
	ImageURL    string `json:"imageUrl"`
	Variant     string `json:"-"`
}

type leadFormProps struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Mode     string `json:"-"`
	Source   string `json:"-"`
}

type servicesGridProps struct {
	Title string `json:"title"`
	Items []struct {
		Title string `json:"title"`
		Desc  string `json:"desc"`
	} `json:"items"`
}

type trustMarqueeProps struct {
	Reviews []struct {
		Name   string  `json:"name"`
		Text   string  `json:"text"`
		Rating float64 `json:"rating"`
	} `json:"reviews"`
}

type richTextProps struct {
	Content string `json:"content"`
}

type statsBarProps struct {
	Stats []struct {
		Label string `json:"label"`
		Value string `json:"value"`
	} `json:"stats"`
}

type faqProps struct {
	Title string `json:"title"`
	Items []struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
	} `json:"items"`
}

type localMapProps struct {
	AreaName      string `json:"areaName"`
	ServiceRadius string `json:"serviceRadius"`
	MapURL        string `json:"mapUrl"`
}

type galleryProps struct {
	Title  string `json:"title"`
	Images []struct {
		URL   string `json:"url"`
		Alt   string `json:"alt"`
		Label string `json:"label"`
	} `json:"images"`
}

type bentoProps struct {
	Title string `json:"title"`
	Items []struct {
		Title       string  `json:"title"`
		Description string  `json:"description"`
		ColSpan     float64 `json:"colSpan"`
	} `json:"items"`
}

// templateRenderer decodes props into P and executes the named template
func templateRenderer[P any](name string) Renderer {
	return RendererFunc(func(props map[string]any) (template.HTML, error) {
		var p P
		if err := decode.Into(props, &p); err != nil {
			return "", fmt.Errorf("%s props: %w", name, err)
		}
		return execute(name, p)
	})
}

// heroRenderer serves hero_v1 and hero_v2
type heroRenderer struct {
	variant string
}

func (h heroRenderer) Render(props map[string]any) (template.HTML, error) {
	var p heroProps
	if err := decode.Into(props, &p); err != nil {
		return "", fmt.Errorf("hero props: %w", err)
	}
	if p.Headline == "" {
		return "", fmt.Errorf("hero props: headline is required")
	}
	p.Variant = h.variant
	return execute("hero", p)
}

// leadFormRenderer serves lead_form_split and lead_form_simple
type leadFormRenderer struct {
	mode string
}

func (l leadFormRenderer) Render(props map[string]any) (template.HTML, error) {
	var p leadFormProps
	if err := decode.Into(props, &p); err != nil {
		return "", fmt.Errorf("lead form props: %w", err)
	}
	if p.Title == "" {
		p.Title = "Get a free quote"
	}
	p.Mode = l.mode
	p.Source = "lead_form_" + l.mode
	return execute("lead_form", p)
}

func renderRichText(props map[string]any) (template.HTML, error) {
	var p richTextProps
	if err := decode.Into(props, &p); err != nil {
		return "", fmt.Errorf("rich_text props: %w", err)
	}
	safe := template.HTML(richTextPolicy.Sanitize(p.Content))
	return execute("rich_text", struct{ Content template.HTML }{safe})
}

func execute(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

func stars(rating float64) string {
	n := int(rating)
	if n < 0 {
		n = 0
	}
	if n > 5 {
		n = 5
	}
	return strings.Repeat("★", n) + strings.Repeat("☆", 5-n)
}

func span(colSpan float64) int {
	if colSpan >= 2 {
		return 2
	}
	return 1
}
