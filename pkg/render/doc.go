// Package render dispatches component records to renderers and assembles
// pages into HTML.
//
// The set of type tags is open: content can reference a type before any
// renderer exists for it. Such entries render as a visible placeholder
// carrying the type name instead of failing the page.
package render
