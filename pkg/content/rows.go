package content

import (
	"github.com/cuemby/sheetsite/pkg/decode"
	"github.com/cuemby/sheetsite/pkg/storage"
	"github.com/cuemby/sheetsite/pkg/types"
)

// ParseGlobal builds the site settings from global rows. Keys not present
// keep their defaults; navigation is decoded from its JSON cell.
func ParseGlobal(rows []storage.GlobalRow) types.GlobalConfig {
	cfg := types.DefaultGlobalConfig()
	for _, row := range rows {
		switch row.Key {
		case "navigation":
			cfg.Navigation = decode.Or(row.Value, []types.NavItem{})
		case "companyName":
			if row.Value != "" {
				cfg.CompanyName = row.Value
			}
		case "phone":
			if row.Value != "" {
				cfg.Phone = row.Value
			}
		case "email":
			if row.Value != "" {
				cfg.Email = row.Value
			}
		}
	}
	return cfg
}

// Candidate decodes the structured cells of a pages row into the
// unvalidated form consumed by Validate. Undecodable cells fall back to
// empty values, so a page with a broken layout cell renders empty rather
// than failing.
func Candidate(row storage.PageRow) map[string]any {
	return map[string]any{
		"slug":            row.Slug,
		"metaTitle":       row.MetaTitle,
		"metaDescription": row.MetaDescription,
		"layout":          decode.Or(row.Layout, []any{}),
		"components":      decode.Or(row.Components, map[string]any{}),
		"themeOverrides":  decode.Or[map[string]any](row.ThemeOverrides, nil),
	}
}

// GlobalRows encodes settings back into global rows
func GlobalRows(cfg types.GlobalConfig) []storage.GlobalRow {
	nav, _ := decode.Encode(cfg.Navigation)
	return []storage.GlobalRow{
		{Key: "companyName", Value: cfg.CompanyName, Description: "Brand name shown in the header and titles"},
		{Key: "phone", Value: cfg.Phone, Description: "Primary contact number"},
		{Key: "email", Value: cfg.Email, Description: "Quotes inbox"},
		{Key: "navigation", Value: nav, Description: "JSON array of {label, href}"},
	}
}

// PageRow converts an entity into the row shape stored in the pages table
func PageRow(p *types.PageEntity) storage.PageRow {
	row := storage.PageRow{
		Slug:            p.Slug,
		MetaTitle:       p.MetaTitle,
		MetaDescription: p.MetaDescription,
		Layout:          p.Layout,
		Components:      p.Components,
	}
	if !p.ThemeOverrides.IsZero() {
		row.ThemeOverrides = p.ThemeOverrides
	}
	return row
}
