/*
Package content turns spreadsheet rows into validated pages and decides which
page a navigation shows.

Rows arrive loosely typed: layout, components and theme_overrides are JSON
text edited by hand. Candidate decodes them with fallbacks, Validate accepts
or rejects the result, and the Resolver walks the lookup chain:

	variant slug  ->  base slug  ->  mock variant slug  ->  mock base slug  ->  ErrNotFound

A variant slug is "/_B" for the root and "/areas/bondi_B" elsewhere. The mock
set is consulted when the store fails or holds no valid row for either slug,
so the site is never blank while the sheet is unreachable.

A Navigator wraps the Resolver for callers that navigate repeatedly: a new
navigation cancels the one in flight and stale results return ErrSuperseded.
*/
package content
