package content

import (
	"fmt"

	"github.com/cuemby/sheetsite/pkg/decode"
	"github.com/cuemby/sheetsite/pkg/log"
	"github.com/cuemby/sheetsite/pkg/metrics"
	"github.com/cuemby/sheetsite/pkg/types"
)

// ValidationError explains why a candidate page was rejected
type ValidationError struct {
	Slug        string
	ComponentID string
	Reason      string
}

func (e *ValidationError) Error() string {
	if e.ComponentID != "" {
		return fmt.Sprintf("page %q: component %q: %s", e.Slug, e.ComponentID, e.Reason)
	}
	return fmt.Sprintf("page %q: %s", e.Slug, e.Reason)
}

// IsValid reports whether Validate would accept the candidate
func IsValid(candidate any, slug string) bool {
	_, err := Validate(candidate, slug)
	return err == nil
}

// Validate checks a decoded candidate and builds the page entity from it.
//
// Checks run in order: the candidate is a mapping, layout is a sequence of
// strings, components is a mapping, and every layout id either resolves to a
// well-formed component record or is absent. An absent id is tolerated with a
// warning; one malformed record rejects the whole page.
func Validate(candidate any, slug string) (*types.PageEntity, error) {
	logger := log.WithSlug(slug).With().Str("component", "validator").Logger()

	fail := func(componentID, reason string) (*types.PageEntity, error) {
		err := &ValidationError{Slug: slug, ComponentID: componentID, Reason: reason}
		logger.Error().Str("id", componentID).Msg(reason)
		metrics.PageValidationFailures.Inc()
		return nil, err
	}

	data, ok := candidate.(map[string]any)
	if !ok || data == nil {
		return fail("", "candidate is not a mapping")
	}

	layout, ok := stringSlice(data["layout"])
	if !ok {
		return fail("", fmt.Sprintf("invalid layout: expected a sequence of ids, got %T", data["layout"]))
	}

	components, ok := data["components"].(map[string]any)
	if !ok || components == nil {
		return fail("", fmt.Sprintf("invalid components: expected a mapping, got %T", data["components"]))
	}

	page := &types.PageEntity{
		Slug:            slug,
		MetaTitle:       types.DefaultCompanyName,
		Layout:          layout,
		Components:      make(map[string]types.ComponentRecord, len(components)),
		MetaDescription: "",
	}
	if s, ok := data["slug"].(string); ok && s != "" {
		page.Slug = s
	}
	if s, ok := data["metaTitle"].(string); ok && s != "" {
		page.MetaTitle = s
	}
	if s, ok := data["metaDescription"].(string); ok {
		page.MetaDescription = s
	}

	referenced := make(map[string]bool, len(layout))
	for _, id := range layout {
		referenced[id] = true
		raw, present := components[id]
		if !present || raw == nil {
			logger.Warn().Str("id", id).Msg("Layout references a missing component; it will be skipped")
			continue
		}
		record, reason := componentRecord(raw)
		if reason != "" {
			return fail(id, "malformed component: "+reason)
		}
		if record.ID != id {
			logger.Warn().Str("id", id).Str("declared_id", record.ID).Msg("Component id differs from its key; re-keying")
			record.ID = id
		}
		page.Components[id] = record
	}

	// Records outside the layout are never rendered; keep the well-formed ones.
	for id, raw := range components {
		if referenced[id] {
			continue
		}
		record, reason := componentRecord(raw)
		if reason != "" {
			logger.Debug().Str("id", id).Str("reason", reason).Msg("Dropping unreferenced malformed component")
			continue
		}
		record.ID = id
		page.Components[id] = record
	}

	if theme := data["themeOverrides"]; theme != nil {
		var overrides types.ThemeOverrides
		if err := decode.Into(theme, &overrides); err != nil {
			logger.Warn().Err(err).Msg("Ignoring malformed theme overrides")
		} else if !overrides.IsZero() {
			page.ThemeOverrides = &overrides
		}
	}

	return page, nil
}

// componentRecord checks the mandatory id, type and props of a record.
// A non-empty reason means the record is malformed.
func componentRecord(raw any) (types.ComponentRecord, string) {
	m, ok := raw.(map[string]any)
	if !ok {
		return types.ComponentRecord{}, fmt.Sprintf("expected a mapping, got %T", raw)
	}
	id, ok := m["id"].(string)
	if !ok {
		return types.ComponentRecord{}, "missing string id"
	}
	typ, ok := m["type"].(string)
	if !ok {
		return types.ComponentRecord{}, "missing string type"
	}
	props, ok := m["props"].(map[string]any)
	if !ok || props == nil {
		return types.ComponentRecord{}, "props must be a non-null mapping"
	}
	record := types.ComponentRecord{ID: id, Type: typ, Props: props}
	if v, ok := m["variant"].(string); ok {
		record.Variant = v
	}
	return record, ""
}

func stringSlice(v any) ([]string, bool) {
	switch s := v.(type) {
	case []string:
		return append([]string(nil), s...), true
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			id, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, id)
		}
		return out, true
	default:
		return nil, false
	}
}
