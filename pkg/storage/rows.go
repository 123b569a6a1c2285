package storage

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/cuemby/sheetsite/pkg/decode"
	"github.com/cuemby/sheetsite/pkg/types"
)

// Column names of the pages table
const (
	ColSlug            = "slug"
	ColMetaTitle       = "meta_title"
	ColMetaDescription = "meta_description"
	ColLayout          = "layout"
	ColComponents      = "components"
	ColThemeOverrides  = "theme_overrides"
	ColLastOptimized   = "last_optimized"
	ColLastMutation    = "last_mutation"
)

// GlobalRow is one key/value row of the global table
type GlobalRow struct {
	Key         string
	Value       string
	Description string
}

func globalRowFrom(r Row) GlobalRow {
	return GlobalRow{
		Key:         r.String("key"),
		Value:       r.String("value"),
		Description: r.String("description"),
	}
}

func (g GlobalRow) row() Row {
	return Row{"key": g.Key, "value": g.Value, "description": g.Description}
}

// PageRow is one raw row of the pages table. Structured columns are kept
// as returned by the store (usually strings) for the decoder to handle.
type PageRow struct {
	Slug            string
	MetaTitle       string
	MetaDescription string
	Layout          any
	Components      any
	ThemeOverrides  any
	LastOptimized   string
	LastMutation    string
}

func pageRowFrom(r Row) PageRow {
	return PageRow{
		Slug:            r.String(ColSlug),
		MetaTitle:       r.String(ColMetaTitle),
		MetaDescription: r.String(ColMetaDescription),
		Layout:          r[ColLayout],
		Components:      r[ColComponents],
		ThemeOverrides:  r[ColThemeOverrides],
		LastOptimized:   r.String(ColLastOptimized),
		LastMutation:    r.String(ColLastMutation),
	}
}

// row encodes structured columns to their cell form
func (p PageRow) row() (Row, error) {
	out := Row{
		ColSlug:            p.Slug,
		ColMetaTitle:       p.MetaTitle,
		ColMetaDescription: p.MetaDescription,
	}
	for col, v := range map[string]any{
		ColLayout:         p.Layout,
		ColComponents:     p.Components,
		ColThemeOverrides: p.ThemeOverrides,
	} {
		if v == nil {
			out[col] = ""
			continue
		}
		s, err := decode.Encode(v)
		if err != nil {
			return nil, err
		}
		out[col] = s
	}
	if p.LastOptimized != "" {
		out[ColLastOptimized] = p.LastOptimized
	}
	if p.LastMutation != "" {
		out[ColLastMutation] = p.LastMutation
	}
	return out, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Column names of the signals table
const (
	ColSignalTimestamp   = "timestamp"
	ColSignalPath        = "path"
	ColSignalType        = "type"
	ColSignalComponentID = "componentId"
	ColSignalMetadata    = "metadata"
)

func signalFrom(r Row) types.Signal {
	s := types.Signal{
		Type:        types.SignalType(r.String(ColSignalType)),
		Path:        r.String(ColSignalPath),
		ComponentID: r.String(ColSignalComponentID),
	}
	if ms, ok := millis(r[ColSignalTimestamp]); ok {
		s.Timestamp = time.UnixMilli(ms).UTC()
	}
	s.Metadata = decode.Or[map[string]any](r[ColSignalMetadata], nil)
	return s
}

// millis reads an epoch-milliseconds cell as stored by any backend
func millis(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		return n, err == nil
	}
	return 0, false
}
