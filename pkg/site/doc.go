/*
Package site serves the marketing site over HTTP.

Routes:

	GET  /*                      resolve, assemble and render a page
	POST /api/leads              capture a lead (form or JSON), rate limited per client
	POST /api/signals            record one client signal or a JSON array of them
	GET  /api/pages/suggestions  optimization suggestions for ?path=&variant=
	POST /api/pages/mutations    apply a suggestion (X-Admin-Token)
	GET  /health, /ready, /metrics

Lead writes are fire-and-forget: the visitor gets 202 as soon as the lead
is validated, and store failures are logged. Every rendered page records a
view signal carrying the visitor's session cookie.
*/
package site
