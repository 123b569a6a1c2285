/*
Package health probes the content store and publishes the outcome to the
metrics health registry served by /health and /ready.

A Monitor runs a Checker on an interval. A component is marked unhealthy
only after Retries consecutive failures and recovers on the first success.
The store probe reads the global table through the storage gateway, so it
shares the request throttle and the read de-duplication with page traffic.
*/
package health
