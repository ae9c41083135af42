// Package httpmw provides HTTP middleware for the resource dev server and
// the admin listener.
//
// httpserver.NewHandler composes them outermost first: security headers,
// recover, request ID, OTEL tracing, trace headers, metrics, request-scoped
// logger, then the chi router with route annotation and access logging.
//
// Query strings and request headers other than the request ID are kept out
// of logs.
package httpmw
