package content

import (
	"sort"

	"github.com/cuemby/sheetsite/pkg/storage"
	"github.com/cuemby/sheetsite/pkg/types"
)

// MockSet is the built-in content served when the remote store is
// unreachable or empty, so the site is never blank.
type MockSet struct {
	global types.GlobalConfig
	pages  map[string]*types.PageEntity
}

// mockPrimaryColor is the HSL token of the default theme
const mockPrimaryColor = "262.1 83.3% 57.8%"

// NewMockSet returns the built-in content set
func NewMockSet() *MockSet {
	return &MockSet{
		global: types.GlobalConfig{
			CompanyName: types.DefaultCompanyName,
			Phone:       "1300 ROOF GEN",
			Email:       "quotes@genroofing.com.au",
			Navigation: []types.NavItem{
				{Label: "Home", Href: "/"},
				{Label: "Restorations", Href: "/services/roof-restoration"},
				{Label: "Bondi Area", Href: "/areas/bondi"},
			},
		},
		pages: map[string]*types.PageEntity{
			"/":                          mockHome(),
			"/services/roof-restoration": mockRestoration(),
			"/areas/bondi":               mockBondi(),
		},
	}
}

// Global returns a copy of the mock settings
func (m *MockSet) Global() types.GlobalConfig {
	g := m.global
	g.Navigation = append([]types.NavItem(nil), m.global.Navigation...)
	return g
}

// Page returns a fresh copy of the mock page for slug
func (m *MockSet) Page(slug string) (*types.PageEntity, bool) {
	p, ok := m.pages[slug]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// Slugs lists the mock pages in sorted order
func (m *MockSet) Slugs() []string {
	slugs := make([]string, 0, len(m.pages))
	for s := range m.pages {
		slugs = append(slugs, s)
	}
	sort.Strings(slugs)
	return slugs
}

// Rows encodes the set as global and pages rows, for seeding a store
func (m *MockSet) Rows() ([]storage.GlobalRow, []storage.PageRow) {
	pages := make([]storage.PageRow, 0, len(m.pages))
	for _, slug := range m.Slugs() {
		pages = append(pages, PageRow(m.pages[slug]))
	}
	return GlobalRows(m.global), pages
}

func component(id string, typ types.ComponentType, props map[string]any) types.ComponentRecord {
	return types.ComponentRecord{ID: id, Type: typ, Props: props}
}

func components(records ...types.ComponentRecord) map[string]types.ComponentRecord {
	out := make(map[string]types.ComponentRecord, len(records))
	for _, r := range records {
		out[r.ID] = r
	}
	return out
}

func mockHome() *types.PageEntity {
	return &types.PageEntity{
		Slug:            "/",
		MetaTitle:       "Expert Roof Tilers",
		MetaDescription: "Professional roof tiling services.",
		ThemeOverrides:  &types.ThemeOverrides{PrimaryColor: mockPrimaryColor},
		Layout:          []string{"hero_section", "trust_indicators", "bento_showcase", "lead_cta"},
		Components: components(
			component("hero_section", types.ComponentHeroMagic, map[string]any{
				"headline":    "The Future of Roof Protection",
				"subheadline": "Experience the next generation of weatherproofing. AI-driven assessments, superior materials, and lifetime guarantees.",
				"ctaText":     "Start Transformation",
				"imageUrl":    "",
			}),
			component("trust_indicators", types.ComponentTrustMarquee, map[string]any{
				"reviews": []any{
					map[string]any{"name": "John D.", "text": "Best in the business.", "rating": 5},
					map[string]any{"name": "Sarah M.", "text": "Fixed my leak instantly.", "rating": 5},
					map[string]any{"name": "Mike T.", "text": "Professional and clean.", "rating": 5},
					map[string]any{"name": "Building Co.", "text": "Our go-to tilers.", "rating": 5},
				},
			}),
			component("bento_showcase", types.ComponentBentoGrid, map[string]any{
				"title": "Why We Are Different",
				"items": []any{
					map[string]any{"title": "Smart Leak Detection", "description": "We use thermal imaging to find leaks others miss.", "colSpan": 2},
					map[string]any{"title": "Rapid Response", "description": "On-site within 60 minutes for emergencies.", "colSpan": 1},
					map[string]any{"title": "10 Year Warranty", "description": "Every job is backed by a decade of security.", "colSpan": 1},
					map[string]any{"title": "Licensed & Insured", "description": "Fully qualified Master Roof Tilers.", "colSpan": 2},
				},
			}),
			component("lead_cta", types.ComponentLeadFormSplit, map[string]any{
				"title":    "Ready to upgrade?",
				"subtitle": "Enter your details for an instant callback.",
			}),
		),
	}
}

func mockRestoration() *types.PageEntity {
	return &types.PageEntity{
		Slug:            "/services/roof-restoration",
		MetaTitle:       "Roof Restoration",
		MetaDescription: "Complete roof restoration.",
		Layout:          []string{"service_hero", "gallery_section", "faq_section"},
		Components: components(
			component("service_hero", types.ComponentHeroV2, map[string]any{
				"headline":    "Roof Restoration",
				"subheadline": "Restore vs Replace",
				"ctaText":     "Quote",
				"imageUrl":    "https://images.unsplash.com/photo-1632759995252-8d769e46927d?q=80&w=2670&auto=format&fit=crop",
			}),
			component("gallery_section", types.ComponentGalleryGrid, map[string]any{
				"title": "Our Work",
				"images": []any{
					map[string]any{"url": "https://images.unsplash.com/photo-1622372738946-62e02505feb3?q=80&w=800&auto=format&fit=crop", "alt": "1"},
					map[string]any{"url": "https://images.unsplash.com/photo-1594818379496-da1e345b0ded?q=80&w=800&auto=format&fit=crop", "alt": "2"},
				},
			}),
			component("faq_section", types.ComponentFaqSection, map[string]any{
				"title": "FAQs",
				"items": []any{
					map[string]any{"question": "What is the cost?", "answer": "Prices start from $2500 depending on roof size."},
				},
			}),
		),
	}
}

func mockBondi() *types.PageEntity {
	return &types.PageEntity{
		Slug:            "/areas/bondi",
		MetaTitle:       "Bondi Roofers",
		MetaDescription: "Local.",
		Layout:          []string{"local_hero", "local_map", "lead_cta_local"},
		Components: components(
			component("local_hero", types.ComponentHeroV1, map[string]any{
				"headline":    "Bondi Roofers",
				"subheadline": "Your local specialists in Bondi Beach.",
				"ctaText":     "Call Now",
				"imageUrl":    "https://images.unsplash.com/photo-1596520371804-b9718423f03a?q=80&w=2670&auto=format&fit=crop",
			}),
			component("local_map", types.ComponentLocalMap, map[string]any{
				"areaName":      "Bondi",
				"serviceRadius": "5km",
			}),
			component("lead_cta_local", types.ComponentLeadFormSimple, map[string]any{
				"title": "Get a Quick Quote",
			}),
		),
	}
}
