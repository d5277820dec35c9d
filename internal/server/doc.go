// Package server hosts the media API and delivery endpoints from a single
// HTTP server.
//
// The server builds a consistent middleware chain of rate limiting, CORS,
// security headers, metrics, and logging so handlers all share common
// protections and instrumentation.
package server
