package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultCompanyName is used when the global table has no companyName row
const DefaultCompanyName = "Gen Roof Tiling"

// NavItem is one entry of the site navigation
type NavItem struct {
	Label string `json:"label" yaml:"label"`
	Href  string `json:"href" yaml:"href"`
}

// GlobalConfig holds the process-wide site settings read from the global table
type GlobalConfig struct {
	CompanyName string    `json:"companyName" yaml:"companyName"`
	Phone       string    `json:"phone" yaml:"phone"`
	Email       string    `json:"email" yaml:"email"`
	Navigation  []NavItem `json:"navigation" yaml:"navigation"`
}

// DefaultGlobalConfig returns the settings used before any global row is applied
func DefaultGlobalConfig() GlobalConfig {
	return GlobalConfig{
		CompanyName: DefaultCompanyName,
		Navigation:  []NavItem{},
	}
}

// ComponentType is the content-declared tag selecting a renderer.
// The vocabulary is open: content may carry tags the code does not know yet.
type ComponentType = string

const (
	ComponentHeroV1         ComponentType = "hero_v1"
	ComponentHeroV2         ComponentType = "hero_v2"
	ComponentHeroMagic      ComponentType = "hero_magic"
	ComponentServicesGrid   ComponentType = "services_grid"
	ComponentLeadFormSplit  ComponentType = "lead_form_split"
	ComponentLeadFormSimple ComponentType = "lead_form_simple"
	ComponentTrustMarquee   ComponentType = "trust_marquee"
	ComponentRichText       ComponentType = "rich_text"
	ComponentStatsBar       ComponentType = "stats_bar"
	ComponentFaqSection     ComponentType = "faq_section"
	ComponentLocalMap       ComponentType = "local_map"
	ComponentGalleryGrid    ComponentType = "gallery_grid"
	ComponentBentoGrid      ComponentType = "bento_grid"
)

// IsHero reports whether the tag belongs to the hero family
func IsHero(t ComponentType) bool {
	return strings.HasPrefix(t, "hero")
}

// ComponentRecord is one typed, prop-carrying unit of content within a page
type ComponentRecord struct {
	ID      string         `json:"id" yaml:"id"`
	Type    ComponentType  `json:"type" yaml:"type"`
	Props   map[string]any `json:"props" yaml:"props"`
	Variant string         `json:"variant,omitempty" yaml:"variant,omitempty"`
}

// ThemeOverrides carries per-page design tokens
type ThemeOverrides struct {
	PrimaryColor string `json:"primaryColor,omitempty" yaml:"primaryColor,omitempty"`
	Radius       string `json:"radius,omitempty" yaml:"radius,omitempty"`
}

// IsZero reports whether no token is set
func (t *ThemeOverrides) IsZero() bool {
	return t == nil || (t.PrimaryColor == "" && t.Radius == "")
}

// PageEntity is a validated page definition.
// Layout is the sole source of render order; Components is keyed by instance id.
type PageEntity struct {
	Slug            string                     `json:"slug" yaml:"slug"`
	MetaTitle       string                     `json:"metaTitle" yaml:"metaTitle"`
	MetaDescription string                     `json:"metaDescription" yaml:"metaDescription"`
	Layout          []string                   `json:"layout" yaml:"layout"`
	Components      map[string]ComponentRecord `json:"components" yaml:"components"`
	ThemeOverrides  *ThemeOverrides            `json:"themeOverrides,omitempty" yaml:"themeOverrides,omitempty"`
}

// Clone returns a deep copy so callers never share mutable state with a cached entity
func (p *PageEntity) Clone() *PageEntity {
	if p == nil {
		return nil
	}
	out := *p
	out.Layout = append([]string(nil), p.Layout...)
	out.Components = make(map[string]ComponentRecord, len(p.Components))
	for k, c := range p.Components {
		c.Props = cloneMap(c.Props)
		out.Components[k] = c
	}
	if p.ThemeOverrides != nil {
		theme := *p.ThemeOverrides
		out.ThemeOverrides = &theme
	}
	return &out
}

// Component returns the record for a layout id
func (p *PageEntity) Component(id string) (ComponentRecord, bool) {
	c, ok := p.Components[id]
	return c, ok
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	default:
		return v
	}
}

// ExperimentRequest is the per-navigation input of the page resolver
type ExperimentRequest struct {
	Path    string
	Variant string
}

// Slug returns the normalized slug of the request path
func (r ExperimentRequest) Slug() string {
	return NormalizeSlug(r.Path)
}

// VariantSlug returns the experiment slug, or "" when no variant is set
func (r ExperimentRequest) VariantSlug() string {
	if r.Variant == "" {
		return ""
	}
	return VariantSlug(r.Slug(), r.Variant)
}

// NormalizeSlug maps a navigation path to a slug: query and fragment
// dropped, leading slash ensured, trailing slash stripped except for root.
func NormalizeSlug(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimSpace(path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	for len(path) > 1 && strings.HasSuffix(path, "/") {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}

// VariantSlug derives the slug holding the variant's content:
// root becomes /_<variant>, anything else <slug>_<variant>.
func VariantSlug(slug, variant string) string {
	if slug == "/" {
		return "/_" + variant
	}
	return slug + "_" + variant
}

// SignalType classifies an observed client event
type SignalType string

const (
	SignalView       SignalType = "view"
	SignalScroll     SignalType = "scroll"
	SignalClick      SignalType = "click"
	SignalConversion SignalType = "conversion"
)

// Valid reports whether the type is one of the known signal types
func (t SignalType) Valid() bool {
	switch t {
	case SignalView, SignalScroll, SignalClick, SignalConversion:
		return true
	}
	return false
}

// Signal is one observed client event destined for the signals table
type Signal struct {
	Type        SignalType     `json:"type"`
	Path        string         `json:"path"`
	ComponentID string         `json:"componentId,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// UnmarshalJSON accepts the timestamp as epoch milliseconds, the form
// browsers send, or as an RFC 3339 string.
func (s *Signal) UnmarshalJSON(data []byte) error {
	type plain Signal
	var wire struct {
		plain
		Timestamp json.RawMessage `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	ts, err := parseTimestamp(wire.Timestamp)
	if err != nil {
		return err
	}
	*s = Signal(wire.plain)
	s.Timestamp = ts
	return nil
}

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, nil
	}
	if raw[0] == '"' {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return time.Time{}, err
		}
		if str == "" {
			return time.Time{}, nil
		}
		if ms, err := strconv.ParseInt(str, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), nil
		}
		return time.Parse(time.RFC3339Nano, str)
	}
	ms, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("signal timestamp %s: %w", raw, err)
	}
	return time.UnixMilli(int64(ms)).UTC(), nil
}

// OptimizationSuggestion is a derived, non-persisted content change proposal
type OptimizationSuggestion struct {
	ID              string  `json:"id" yaml:"id"`
	Reason          string  `json:"reason" yaml:"reason"`
	SuggestedAction string  `json:"suggestedAction" yaml:"suggestedAction"`
	Confidence      float64 `json:"confidence" yaml:"confidence"`
}

// Lead is a captured contact request
type Lead struct {
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Source    string    `json:"source"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// PageMutation is a layout rewrite applied to one row of the pages table
type PageMutation struct {
	Slug       string
	Kind       string
	Layout     []string
	Components map[string]ComponentRecord
}
