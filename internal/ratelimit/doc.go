// Package ratelimit is per-client rate limiting for the public resource
// routes.
//
// It is in-memory and per-instance. It keeps one client from flooding
// the resource endpoints with requests that trigger staleness checks, and
// it does not protect against distributed clients.
package ratelimit
