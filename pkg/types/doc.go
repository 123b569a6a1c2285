/*
Package types defines the data model shared by every sheetsite package.

Content lives in a remote spreadsheet with two content tables (global, pages)
and two ingestion tables (leads, signals). The types here are the validated,
strongly-shaped form of those rows; nothing in this package talks to the
network or knows how rows are decoded.

# Core Types

Site settings:
  - GlobalConfig: company name, phone, email, ordered navigation
  - NavItem: label + href

Pages:
  - PageEntity: slug, meta, ordered layout, components keyed by instance id
  - ComponentRecord: id, open-vocabulary type tag, props, optional variant
  - ThemeOverrides: primary color and corner radius tokens
  - ExperimentRequest: path + optional A/B variant

Analytics:
  - Signal / SignalType: view, scroll, click, conversion
  - OptimizationSuggestion: heuristic output with a confidence in [0,1]
  - Lead: contact form submission
  - PageMutation: layout rewrite written back to the pages table

# Invariants

A PageEntity is immutable once built. The layout is the only source of render
order; components map order is irrelevant. A layout id with no matching
component is tolerated and skipped at assembly time. Use Clone before handing
an entity to code that might modify it.
*/
package types
