/*
Package storage provides the tabular backends behind the site's content and the
Gateway that fronts them.

# Backends

A Backend stores rows (column header to cell value) in named tables:

  - Sheet2DB: the production store, a Google Sheet behind the sheet2db REST API
  - BoltBackend: a local BoltDB file, one bucket per table, for offline work
  - MemoryBackend: in-process tables for tests

Tables are global (key/value/description), pages (one row per slug, with
layout, components and theme_overrides stored as JSON text), leads and
signals (append-only).

# Gateway

The Gateway is the only caller of a Backend. It maps the site's operations
onto table calls and enqueues every call on the shared throttle.Throttler, so
the store sees at most one request per delay window:

	gw := storage.NewGateway(backend, throttler)
	rows, err := gw.PageRows(ctx, "/services/roof-restoration")

Concurrent reads of the same key (the global table, or one page slug) are
collapsed with singleflight before they reach the throttle queue.

Structured cells are encoded with decode.Encode on write. Reads return them
untouched; decoding and validation belong to package content.
*/
package storage
